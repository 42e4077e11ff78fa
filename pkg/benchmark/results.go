// Package benchmark runs the bulk insert and CRUD phases and reduces their statistics
package benchmark

import (
	"time"

	"github.com/docbench_go/pkg/crud"
	"github.com/docbench_go/pkg/stats"
)

// Totals are the figures every phase report carries
type Totals struct {
	TimeTaken              time.Duration `json:"timeTaken"`
	ConnectionTimeouts     int           `json:"connectionTimeouts"`
	TotalJSONBytesSent     int64         `json:"totalJsonBytesSent"`
	TotalJSONBytesReceived int64         `json:"totalJsonBytesReceived"`
	Connections            int           `json:"connections"`
}

// BulkInsertResults is the report of a bulk insert run. Phase samples are in milliseconds.
type BulkInsertResults struct {
	Totals
	LocalProcessing      stats.Sample         `json:"localProcessing"`
	SendData             stats.Sample         `json:"sendData"`
	RemoteProcessing     stats.Sample         `json:"remoteProcessing"`
	ReceiveData          stats.Sample         `json:"receiveData"`
	RemoteProcessingRate float64              `json:"remoteProcessingRate"` // docs/sec
	LocalInsertRate      float64              `json:"localInsertRate"`      // docs/sec
	Latency              stats.LatencySummary `json:"latency"`
}

// CrudResults is the report of a CRUD run. Phase samples are in milliseconds.
type CrudResults struct {
	Totals
	LocalProcessing        stats.Sample         `json:"localProcessing"`
	SendData               stats.Sample         `json:"sendData"`
	RemoteCreateProcessing stats.Sample         `json:"remoteCreateProcessing"`
	RemoteReadProcessing   stats.Sample         `json:"remoteReadProcessing"`
	RemoteUpdateProcessing stats.Sample         `json:"remoteUpdateProcessing"`
	RemoteDeleteProcessing stats.Sample         `json:"remoteDeleteProcessing"`
	RemoteCreateRate       float64              `json:"remoteCreateProcessingRate"` // docs/sec
	RemoteReadRate         float64              `json:"remoteReadProcessingRate"`
	RemoteUpdateRate       float64              `json:"remoteUpdateProcessingRate"`
	RemoteDeleteRate       float64              `json:"remoteDeleteProcessingRate"`
	Latency                stats.LatencySummary `json:"latency"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func totalsOf(all []*stats.ConnectionStatistics) (Totals, *stats.LatencyHistogram) {
	t := Totals{Connections: len(all)}
	latency := stats.NewLatencyHistogram()
	for _, s := range all {
		if s.TotalTime() > t.TimeTaken {
			t.TimeTaken = s.TotalTime()
		}
		if s.TimedOut() {
			t.ConnectionTimeouts++
		}
		t.TotalJSONBytesSent += s.JSONBytesSent()
		t.TotalJSONBytesReceived += s.JSONBytesReceived()
		latency.Merge(s.Latency())
	}
	return t, latency
}

// phaseSample computes the statistics of one phase. Connections that never entered
// the phase contribute 0.
func phaseSample(all []*stats.ConnectionStatistics, p stats.Phase) stats.Sample {
	values := make([]float64, len(all))
	for i, s := range all {
		values[i] = millis(s.Duration(p))
	}
	sample, err := stats.Compute(values)
	if err != nil {
		return stats.Sample{}
	}
	return sample
}

// rate sums count/seconds over the finished connections that spent time in the phase
func rate(all []*stats.ConnectionStatistics, count float64, durationOf func(*stats.ConnectionStatistics) time.Duration) float64 {
	var sum float64
	for _, s := range all {
		if s.TimedOut() {
			continue
		}
		if d := durationOf(s); d > 0 {
			sum += count / d.Seconds()
		}
	}
	return sum
}

// NewBulkInsertResults reduces the statistics of a finished bulk insert run.
// documentsPerConnection is the number of documents each connection inserts.
func NewBulkInsertResults(documentsPerConnection int64, connections []stats.BulkInsertStatistics) *BulkInsertResults {
	all := make([]*stats.ConnectionStatistics, len(connections))
	for i, c := range connections {
		all[i] = c.ConnectionStatistics
	}
	totals, latency := totalsOf(all)
	docs := float64(documentsPerConnection)

	return &BulkInsertResults{
		Totals:           totals,
		LocalProcessing:  phaseSample(all, stats.PhaseLocalProcessing),
		SendData:         phaseSample(all, stats.PhaseSendData),
		RemoteProcessing: phaseSample(all, stats.PhaseRemoteProcessing),
		ReceiveData:      phaseSample(all, stats.PhaseReceiveData),
		RemoteProcessingRate: rate(all, docs, func(s *stats.ConnectionStatistics) time.Duration {
			return s.Duration(stats.PhaseRemoteProcessing)
		}),
		LocalInsertRate: rate(all, docs, func(s *stats.ConnectionStatistics) time.Duration {
			return s.Duration(stats.PhaseSendData) + s.Duration(stats.PhaseRemoteProcessing) + s.Duration(stats.PhaseReceiveData)
		}),
		Latency: latency.Summary(),
	}
}

// NewCrudResults reduces the statistics of a finished CRUD run. counts are the
// operations each connection performs.
func NewCrudResults(counts crud.Counts, connections []stats.CrudStatistics) *CrudResults {
	all := make([]*stats.ConnectionStatistics, len(connections))
	for i, c := range connections {
		all[i] = c.ConnectionStatistics
	}
	totals, latency := totalsOf(all)

	verbRate := func(count int, p stats.Phase) float64 {
		return rate(all, float64(count), func(s *stats.ConnectionStatistics) time.Duration {
			return s.Duration(p)
		})
	}

	return &CrudResults{
		Totals:                 totals,
		LocalProcessing:        phaseSample(all, stats.PhaseLocalProcessing),
		SendData:               phaseSample(all, stats.PhaseSendData),
		RemoteCreateProcessing: phaseSample(all, stats.PhaseRemoteCreate),
		RemoteReadProcessing:   phaseSample(all, stats.PhaseRemoteRead),
		RemoteUpdateProcessing: phaseSample(all, stats.PhaseRemoteUpdate),
		RemoteDeleteProcessing: phaseSample(all, stats.PhaseRemoteDelete),
		RemoteCreateRate:       verbRate(counts.Creates, stats.PhaseRemoteCreate),
		RemoteReadRate:         verbRate(counts.Reads, stats.PhaseRemoteRead),
		RemoteUpdateRate:       verbRate(counts.Updates, stats.PhaseRemoteUpdate),
		RemoteDeleteRate:       verbRate(counts.Deletes, stats.PhaseRemoteDelete),
		Latency:                latency.Summary(),
	}
}
