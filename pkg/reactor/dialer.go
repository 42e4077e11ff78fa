// Package reactor drives concurrent persistent HTTP/1.1 connections through per-connection state machines
package reactor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

// Dialer opens one transport connection to the benchmark target
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
	// Address returns the host:port the dialer connects to
	Address() string
}

// PlainDialer opens unencrypted TCP connections, honouring ALL_PROXY and NO_PROXY
type PlainDialer struct {
	address string
	base    proxy.Dialer
}

// NewPlainDialer creates a dialer for address
func NewPlainDialer(address string) *PlainDialer {
	return &PlainDialer{
		address: address,
		base:    proxy.FromEnvironmentUsing(&net.Dialer{KeepAlive: 30 * time.Second}),
	}
}

func (d *PlainDialer) Address() string {
	return d.address
}

// Dial connects to the target
func (d *PlainDialer) Dial(ctx context.Context) (net.Conn, error) {
	if cd, ok := d.base.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", d.address)
	}

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := d.base.Dial("tcp", d.address)
		done <- result{conn, err}
	}()
	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// TLSOptions configures the client side of the secure channel
type TLSOptions struct {
	Insecure bool
	CAFile   string
}

// TLSDialer wraps plain connections in a TLS client
type TLSDialer struct {
	plain  *PlainDialer
	config *tls.Config
}

// NewTLSDialer creates a TLS dialer for address
func NewTLSDialer(address string, opts TLSOptions) (*TLSDialer, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", address)
	}

	config := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: opts.Insecure,
		NextProtos:         []string{"http/1.1"},
		MinVersion:         tls.VersionTLS12,
	}
	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CA file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificates found in %s", opts.CAFile)
		}
		config.RootCAs = pool
	}

	return &TLSDialer{plain: NewPlainDialer(address), config: config}, nil
}

func (d *TLSDialer) Address() string {
	return d.plain.Address()
}

// Dial connects to the target and completes the TLS handshake
func (d *TLSDialer) Dial(ctx context.Context) (net.Conn, error) {
	raw, err := d.plain.Dial(ctx)
	if err != nil {
		return nil, err
	}
	conn := tls.Client(raw, d.config.Clone())
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, errors.Wrap(err, "TLS handshake failed")
	}
	return conn, nil
}
