// Package reactor drives concurrent persistent HTTP/1.1 connections through per-connection state machines
package reactor

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/docbench_go/pkg/metrics"
)

// DefaultConnectTimeout bounds the dial phase when no timeout is configured
const DefaultConnectTimeout = 10 * time.Second

// Reactor establishes a batch of connections and runs one Handler on each
type Reactor struct {
	dialer            Dialer
	encoder           *encoder
	credentials       string
	connectTimeout    time.Duration
	connectionTimeout time.Duration
	logger            logrus.FieldLogger
	metrics           *metrics.Phase
	onConnectionDone  func(i int, timedOut bool)
}

// Option configures a Reactor
type Option func(*Reactor)

// WithCredentials sends "user:password" as Basic authorization on every request
func WithCredentials(credentials string) Option {
	return func(r *Reactor) { r.credentials = credentials }
}

// WithConnectTimeout bounds the time to establish all connections
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Reactor) { r.connectTimeout = d }
}

// WithConnectionTimeout bounds the time a single connection may take to finish its
// operations. A connection exceeding it is closed and reported as timed out.
func WithConnectionTimeout(d time.Duration) Option {
	return func(r *Reactor) { r.connectionTimeout = d }
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Reactor) { r.logger = logger }
}

// WithMetrics records transport activity on m
func WithMetrics(m *metrics.Phase) Option {
	return func(r *Reactor) { r.metrics = m }
}

// OnConnectionDone registers a callback invoked once per connection when it stops.
// It is called concurrently from connection goroutines.
func OnConnectionDone(fn func(i int, timedOut bool)) Option {
	return func(r *Reactor) { r.onConnectionDone = fn }
}

// New creates a Reactor that dials through dialer
func New(dialer Dialer, opts ...Option) (*Reactor, error) {
	r := &Reactor{
		dialer:         dialer,
		connectTimeout: DefaultConnectTimeout,
		logger:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	enc, err := newEncoder(dialer.Address(), r.credentials)
	if err != nil {
		return nil, err
	}
	r.encoder = enc
	return r, nil
}

// Run opens n connections, binds each to the Handler returned by factory and blocks
// until every connection has finished. The first fatal error on any connection
// cancels the others and is returned once all of them have stopped.
func (r *Reactor) Run(ctx context.Context, n int, factory func(i int) Handler) error {
	conns, err := r.dialAll(ctx, n)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ErrInterrupted, "while connecting")
		}
		return err
	}
	r.logger.Debugf("Established %d connections to %s", n, r.dialer.Address())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		firstErr error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	wg.Add(n)
	for i := range conns {
		conn := newConn(i, conns[i], r.encoder, r.logger, r.metrics)
		handler := factory(i)
		go func() {
			defer wg.Done()
			timedOut, err := r.runConn(runCtx, conn, handler)
			if err != nil {
				conn.logger.WithError(err).Debug("Connection failed")
				fail(err)
			}
			if r.onConnectionDone != nil {
				r.onConnectionDone(conn.id, timedOut)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if ctx.Err() != nil {
		return errors.Wrap(ErrInterrupted, "while waiting for connections")
	}
	return nil
}

func (r *Reactor) runConn(runCtx context.Context, conn *Conn, h Handler) (bool, error) {
	connCtx := runCtx
	if r.connectionTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(runCtx, r.connectionTimeout)
		defer cancel()
	}

	r.metrics.ConnectionStarted()
	err := conn.run(connCtx, h)

	switch {
	case err == nil:
		r.metrics.ConnectionFinished(false)
		return false, nil
	case runCtx.Err() != nil:
		// Cancelled by the caller or by another connection's failure.
		r.metrics.ConnectionFinished(false)
		return false, nil
	case errors.Is(err, context.DeadlineExceeded):
		conn.logger.Warnf("Connection did not finish within %s", r.connectionTimeout)
		r.metrics.ConnectionFinished(true)
		return true, nil
	default:
		r.metrics.ConnectionFinished(false)
		return false, err
	}
}

func (r *Reactor) dialAll(ctx context.Context, n int) ([]net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	conns := make([]net.Conn, n)
	g, gctx := errgroup.WithContext(dialCtx)
	for i := range n {
		g.Go(func() error {
			conn, err := r.dialer.Dial(gctx)
			if err != nil {
				return err
			}
			conns[i] = conn
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, conn := range conns {
			if conn != nil {
				conn.Close()
			}
		}
		return nil, &ConnectError{Address: r.dialer.Address(), Err: err}
	}
	return conns, nil
}
