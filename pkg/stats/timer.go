// Package stats provides per-connection phase timing and population statistics
package stats

import (
	"fmt"
	"time"
)

// Phase identifies one of the mutually exclusive timing buckets of a connection
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLocalProcessing
	PhaseSendData
	PhaseRemoteProcessing
	PhaseReceiveData
	PhaseRemoteCreate
	PhaseRemoteRead
	PhaseRemoteUpdate
	PhaseRemoteDelete
	numPhases
)

var phaseNames = [numPhases]string{
	"idle",
	"localProcessing",
	"sendData",
	"remoteProcessing",
	"receiveData",
	"remoteCreateProcessing",
	"remoteReadProcessing",
	"remoteUpdateProcessing",
	"remoteDeleteProcessing",
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Kind is the operation family a connection runs
type Kind int

const (
	KindBulkInsert Kind = iota
	KindCrud
)

func (k Kind) String() string {
	switch k {
	case KindBulkInsert:
		return "bulkInsert"
	case KindCrud:
		return "crud"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Phases returns the phases a connection of this kind passes through, in report order
func (k Kind) Phases() []Phase {
	switch k {
	case KindBulkInsert:
		return []Phase{PhaseLocalProcessing, PhaseSendData, PhaseRemoteProcessing, PhaseReceiveData}
	case KindCrud:
		return []Phase{PhaseLocalProcessing, PhaseSendData, PhaseRemoteCreate, PhaseRemoteRead, PhaseRemoteUpdate, PhaseRemoteDelete}
	default:
		return nil
	}
}

func (k Kind) allows(p Phase) bool {
	for _, q := range k.Phases() {
		if q == p {
			return true
		}
	}
	return false
}

// Clock returns the current time
type Clock func() time.Time

// ConnectionStatistics accumulates the phase durations and byte counts of one
// connection. It is owned by that connection's event loop and is not safe for
// concurrent use; the aggregator reads it only after the run has finished.
type ConnectionStatistics struct {
	kind  Kind
	clock Clock

	running    Phase
	phaseStart time.Time
	connStart  time.Time
	finished   bool

	durations [numPhases]time.Duration
	totalTime time.Duration

	jsonBytesSent     int64
	jsonBytesReceived int64

	latency *LatencyHistogram
}

// NewConnectionStatistics creates statistics for one connection of the given kind.
// A nil clock means time.Now.
func NewConnectionStatistics(kind Kind, clock Clock) *ConnectionStatistics {
	if clock == nil {
		clock = time.Now
	}
	return &ConnectionStatistics{
		kind:    kind,
		clock:   clock,
		running: PhaseIdle,
		latency: NewLatencyHistogram(),
	}
}

// Kind returns the operation family of the connection
func (s *ConnectionStatistics) Kind() Kind {
	return s.kind
}

// Now returns the current time from the statistics clock
func (s *ConnectionStatistics) Now() time.Time {
	return s.clock()
}

// Running returns the currently open phase
func (s *ConnectionStatistics) Running() Phase {
	return s.running
}

// Start closes the open phase, adding its elapsed time to its bucket, and opens p.
// The first call marks the start of the connection's active lifetime.
func (s *ConnectionStatistics) Start(p Phase) {
	if s.finished {
		panic(fmt.Sprintf("stats: start %s after connection finished", p))
	}
	if !s.kind.allows(p) {
		panic(fmt.Sprintf("stats: phase %s is not valid for %s connections", p, s.kind))
	}

	now := s.clock()
	if s.running == PhaseIdle {
		if s.connStart.IsZero() {
			s.connStart = now
		}
	} else {
		s.durations[s.running] += now.Sub(s.phaseStart)
	}
	s.running = p
	s.phaseStart = now
}

// AdvanceIf moves from phase from to phase to only if from is still open.
// A write completion that fires after the response has already moved the
// connection on is therefore a no-op.
func (s *ConnectionStatistics) AdvanceIf(from, to Phase) bool {
	if s.finished || s.running != from {
		return false
	}
	s.Start(to)
	return true
}

// Finish closes the open phase and records the total active time
func (s *ConnectionStatistics) Finish() {
	if s.finished {
		return
	}
	now := s.clock()
	if s.running != PhaseIdle {
		s.durations[s.running] += now.Sub(s.phaseStart)
	}
	if !s.connStart.IsZero() {
		s.totalTime = now.Sub(s.connStart)
	}
	s.running = PhaseIdle
	s.finished = true
}

// Finished reports whether Finish was called
func (s *ConnectionStatistics) Finished() bool {
	return s.finished
}

// Duration returns the cumulative recorded time of phase p
func (s *ConnectionStatistics) Duration(p Phase) time.Duration {
	if p < 0 || p >= numPhases {
		return 0
	}
	return s.durations[p]
}

// TotalTime returns the connection's active lifetime, or 0 if it never finished
func (s *ConnectionStatistics) TotalTime() time.Duration {
	return s.totalTime
}

// TotalTimeMillis returns TotalTime in whole milliseconds
func (s *ConnectionStatistics) TotalTimeMillis() int64 {
	return s.totalTime.Milliseconds()
}

// TimedOut reports whether the connection never completed its operations
func (s *ConnectionStatistics) TimedOut() bool {
	return s.totalTime == 0
}

// SentJSONBytes records n body bytes handed to the transport
func (s *ConnectionStatistics) SentJSONBytes(n int) {
	s.jsonBytesSent += int64(n)
}

// ReceivedJSONBytes records n body bytes read from a response
func (s *ConnectionStatistics) ReceivedJSONBytes(n int) {
	s.jsonBytesReceived += int64(n)
}

// JSONBytesSent returns the total body bytes sent
func (s *ConnectionStatistics) JSONBytesSent() int64 {
	return s.jsonBytesSent
}

// JSONBytesReceived returns the total body bytes received
func (s *ConnectionStatistics) JSONBytesReceived() int64 {
	return s.jsonBytesReceived
}

// RecordLatency records the round trip time of one request
func (s *ConnectionStatistics) RecordLatency(d time.Duration) {
	// Values beyond the histogram range are dropped; the phase buckets still hold them.
	_ = s.latency.RecordValue(d)
}

// Latency returns the per-request latency histogram
func (s *ConnectionStatistics) Latency() *LatencyHistogram {
	return s.latency
}
