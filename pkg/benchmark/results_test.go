package benchmark

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbench_go/pkg/crud"
	"github.com/docbench_go/pkg/stats"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// bulkCycle runs one insert with the given phase durations in milliseconds
func bulkCycle(clock *fakeClock, s stats.BulkInsertStatistics, local, send, remote, receive int, sent, received int) {
	s.Start(stats.PhaseLocalProcessing)
	s.SentJSONBytes(sent)
	clock.Advance(time.Duration(local) * time.Millisecond)
	s.Start(stats.PhaseSendData)
	clock.Advance(time.Duration(send) * time.Millisecond)
	s.AdvanceIf(stats.PhaseSendData, stats.PhaseRemoteProcessing)
	clock.Advance(time.Duration(remote) * time.Millisecond)
	s.Start(stats.PhaseReceiveData)
	clock.Advance(time.Duration(receive) * time.Millisecond)
	s.ReceivedJSONBytes(received)
	s.RecordLatency(time.Duration(send+remote+receive) * time.Millisecond)
}

func TestNewBulkInsertResults(t *testing.T) {
	clock := newFakeClock()

	fast := stats.NewBulkInsertStatistics(clock.Now)
	bulkCycle(clock, fast, 10, 20, 100, 5, 100, 30)
	fast.Finish()

	slow := stats.NewBulkInsertStatistics(clock.Now)
	bulkCycle(clock, slow, 10, 20, 200, 5, 100, 30)
	slow.Finish()

	neverConnected := stats.NewBulkInsertStatistics(clock.Now)

	results := NewBulkInsertResults(50, []stats.BulkInsertStatistics{fast, slow, neverConnected})

	assert.Equal(t, 235*time.Millisecond, results.TimeTaken)
	assert.Equal(t, 1, results.ConnectionTimeouts)
	assert.Equal(t, 3, results.Connections)
	assert.Equal(t, int64(200), results.TotalJSONBytesSent)
	assert.Equal(t, int64(60), results.TotalJSONBytesReceived)

	assert.Equal(t, 3, results.RemoteProcessing.Count)
	assert.Equal(t, 0.0, results.RemoteProcessing.Min)
	assert.Equal(t, 200.0, results.RemoteProcessing.Max)
	assert.Equal(t, 100.0, results.RemoteProcessing.Median)
	assert.InDelta(t, 100.0, results.RemoteProcessing.Mean, 1e-9)
	assert.InDelta(t, 10.0, results.LocalProcessing.Median, 1e-9)
	assert.InDelta(t, 40.0, results.SendData.Sum, 1e-9)
	assert.InDelta(t, 10.0, results.ReceiveData.Sum, 1e-9)

	// 50 docs / 0.1s + 50 docs / 0.2s
	assert.InDelta(t, 750.0, results.RemoteProcessingRate, 1e-6)
	// 50 docs / 0.125s + 50 docs / 0.225s
	assert.InDelta(t, 400.0+50/0.225, results.LocalInsertRate, 1e-6)

	assert.Equal(t, int64(2), results.Latency.Count)
}

func TestNewBulkInsertResults_TimeoutCountedOnce(t *testing.T) {
	idle := stats.NewBulkInsertStatistics(nil)
	require.Equal(t, int64(0), idle.TotalTimeMillis())

	results := NewBulkInsertResults(10, []stats.BulkInsertStatistics{idle})

	assert.Equal(t, 1, results.ConnectionTimeouts)
	assert.Equal(t, time.Duration(0), results.TimeTaken)
	assert.Equal(t, 0.0, results.RemoteProcessingRate)
	assert.Equal(t, 0.0, results.LocalInsertRate)
	assert.Equal(t, 1, results.LocalProcessing.Count)
	assert.Equal(t, 0.0, results.LocalProcessing.Max)
}

func TestNewBulkInsertResults_ZeroRemoteTimeIsSkipped(t *testing.T) {
	clock := newFakeClock()

	instant := stats.NewBulkInsertStatistics(clock.Now)
	bulkCycle(clock, instant, 1, 0, 0, 0, 10, 10)
	instant.Finish()

	timed := stats.NewBulkInsertStatistics(clock.Now)
	bulkCycle(clock, timed, 1, 0, 500, 0, 10, 10)
	timed.Finish()

	results := NewBulkInsertResults(100, []stats.BulkInsertStatistics{instant, timed})

	assert.False(t, math.IsInf(results.RemoteProcessingRate, 0))
	assert.False(t, math.IsNaN(results.RemoteProcessingRate))
	assert.InDelta(t, 200.0, results.RemoteProcessingRate, 1e-9)
	assert.InDelta(t, 200.0, results.LocalInsertRate, 1e-9)
}

func TestNewBulkInsertResults_TimedOutConnectionExcludedFromRates(t *testing.T) {
	clock := newFakeClock()

	// Started but never finished, as when a connection timeout fires
	partial := stats.NewBulkInsertStatistics(clock.Now)
	bulkCycle(clock, partial, 1, 1, 50, 1, 10, 0)

	done := stats.NewBulkInsertStatistics(clock.Now)
	bulkCycle(clock, done, 1, 1, 100, 1, 10, 10)
	done.Finish()

	results := NewBulkInsertResults(10, []stats.BulkInsertStatistics{partial, done})

	assert.Equal(t, 1, results.ConnectionTimeouts)
	assert.InDelta(t, 100.0, results.RemoteProcessingRate, 1e-9)
	assert.Equal(t, int64(20), results.TotalJSONBytesSent)
}

func TestNewCrudResults(t *testing.T) {
	clock := newFakeClock()
	verbs := []stats.Phase{stats.PhaseRemoteCreate, stats.PhaseRemoteRead, stats.PhaseRemoteUpdate, stats.PhaseRemoteDelete}

	run := func(remote time.Duration) stats.CrudStatistics {
		s := stats.NewCrudStatistics(clock.Now)
		for _, verb := range verbs {
			s.Start(stats.PhaseLocalProcessing)
			clock.Advance(time.Millisecond)
			s.Start(stats.PhaseSendData)
			s.SentJSONBytes(40)
			clock.Advance(time.Millisecond)
			s.AdvanceIf(stats.PhaseSendData, verb)
			clock.Advance(remote)
			s.ReceivedJSONBytes(20)
		}
		s.Finish()
		return s
	}

	a := run(250 * time.Millisecond)
	b := run(500 * time.Millisecond)
	counts := crud.Counts{Creates: 1, Reads: 1, Updates: 1, Deletes: 1}

	results := NewCrudResults(counts, []stats.CrudStatistics{a, b, stats.NewCrudStatistics(nil)})

	assert.Equal(t, 1, results.ConnectionTimeouts)
	assert.Equal(t, int64(320), results.TotalJSONBytesSent)
	assert.Equal(t, int64(160), results.TotalJSONBytesReceived)
	assert.Equal(t, 4*(2*time.Millisecond+500*time.Millisecond), results.TimeTaken)

	// 1 op / 0.25s + 1 op / 0.5s
	for name, r := range map[string]float64{
		"create": results.RemoteCreateRate,
		"read":   results.RemoteReadRate,
		"update": results.RemoteUpdateRate,
		"delete": results.RemoteDeleteRate,
	} {
		assert.InDelta(t, 6.0, r, 1e-9, name)
	}
	assert.Equal(t, 500.0, results.RemoteDeleteProcessing.Max)
	assert.Equal(t, 0.0, results.RemoteDeleteProcessing.Min)
	assert.InDelta(t, 4.0, results.LocalProcessing.Median, 1e-9)
}

func TestNewCrudResults_UnusedVerbHasNoRate(t *testing.T) {
	clock := newFakeClock()
	s := stats.NewCrudStatistics(clock.Now)
	s.Start(stats.PhaseLocalProcessing)
	s.Start(stats.PhaseSendData)
	s.AdvanceIf(stats.PhaseSendData, stats.PhaseRemoteCreate)
	clock.Advance(100 * time.Millisecond)
	s.Finish()

	results := NewCrudResults(crud.Counts{Creates: 1}, []stats.CrudStatistics{s})

	assert.InDelta(t, 10.0, results.RemoteCreateRate, 1e-9)
	assert.Equal(t, 0.0, results.RemoteReadRate)
	assert.Equal(t, 0.0, results.RemoteDeleteProcessing.Sum)
}
