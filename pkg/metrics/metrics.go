// Package metrics exposes live Prometheus instrumentation of a benchmark run
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const prefix = "docbench_"

// Metrics holds the collectors of one process
type Metrics struct {
	registry          *prometheus.Registry
	bytesSent         *prometheus.CounterVec
	bytesReceived     *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeConnections *prometheus.GaugeVec
	timeouts          *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		bytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "json_bytes_sent_total",
			Help: "JSON body bytes handed to the transport",
		}, []string{"phase"}),
		bytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "json_bytes_received_total",
			Help: "JSON body bytes read from responses",
		}, []string{"phase"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "requests_total",
			Help: "Responses received grouped by status code",
		}, []string{"phase", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "request_duration_seconds",
			Help:    "Request round trip time",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"phase"}),
		activeConnections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "active_connections",
			Help: "Connections currently running their operations",
		}, []string{"phase"}),
		timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "connection_timeouts_total",
			Help: "Connections that did not finish within the connection timeout",
		}, []string{"phase"}),
	}
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Phase returns the collectors bound to one benchmark phase. A nil Metrics yields a nil
// Phase whose methods do nothing.
func (m *Metrics) Phase(name string) *Phase {
	if m == nil {
		return nil
	}
	labels := prometheus.Labels{"phase": name}
	return &Phase{
		name:              name,
		requests:          m.requests.MustCurryWith(labels),
		bytesSent:         m.bytesSent.With(labels),
		bytesReceived:     m.bytesReceived.With(labels),
		requestDuration:   m.requestDuration.With(labels),
		activeConnections: m.activeConnections.With(labels),
		timeouts:          m.timeouts.With(labels),
	}
}

// Phase records the activity of one benchmark phase
type Phase struct {
	name              string
	requests          *prometheus.CounterVec
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
	requestDuration   prometheus.Observer
	activeConnections prometheus.Gauge
	timeouts          prometheus.Counter
}

func (p *Phase) RequestSent(bodyBytes int) {
	if p == nil {
		return
	}
	p.bytesSent.Add(float64(bodyBytes))
}

func (p *Phase) ResponseReceived(statusCode, bodyBytes int, latency time.Duration) {
	if p == nil {
		return
	}
	p.requests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	p.bytesReceived.Add(float64(bodyBytes))
	p.requestDuration.Observe(latency.Seconds())
}

func (p *Phase) ConnectionStarted() {
	if p == nil {
		return
	}
	p.activeConnections.Inc()
}

func (p *Phase) ConnectionFinished(timedOut bool) {
	if p == nil {
		return
	}
	p.activeConnections.Dec()
	if timedOut {
		p.timeouts.Inc()
	}
}

// Serve exposes the registry on address under /metrics until ctx is done
func Serve(ctx context.Context, address string, m *Metrics, logger logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("metrics server shutdown failed")
		}
	}()

	logger.Infof("Serving metrics at http://%s/metrics", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
