// Package stats provides per-connection phase timing and population statistics
package stats

import "time"

// BulkInsertStatistics is the bulk insert view of a connection's statistics
type BulkInsertStatistics struct {
	*ConnectionStatistics
}

// NewBulkInsertStatistics creates statistics for one bulk insert connection
func NewBulkInsertStatistics(clock Clock) BulkInsertStatistics {
	return BulkInsertStatistics{NewConnectionStatistics(KindBulkInsert, clock)}
}

func (s BulkInsertStatistics) LocalProcessing() time.Duration {
	return s.Duration(PhaseLocalProcessing)
}

func (s BulkInsertStatistics) SendData() time.Duration {
	return s.Duration(PhaseSendData)
}

func (s BulkInsertStatistics) RemoteProcessing() time.Duration {
	return s.Duration(PhaseRemoteProcessing)
}

func (s BulkInsertStatistics) ReceiveData() time.Duration {
	return s.Duration(PhaseReceiveData)
}

// CrudStatistics is the CRUD view of a connection's statistics
type CrudStatistics struct {
	*ConnectionStatistics
}

// NewCrudStatistics creates statistics for one CRUD connection
func NewCrudStatistics(clock Clock) CrudStatistics {
	return CrudStatistics{NewConnectionStatistics(KindCrud, clock)}
}

func (s CrudStatistics) LocalProcessing() time.Duration {
	return s.Duration(PhaseLocalProcessing)
}

func (s CrudStatistics) SendData() time.Duration {
	return s.Duration(PhaseSendData)
}

func (s CrudStatistics) RemoteCreate() time.Duration {
	return s.Duration(PhaseRemoteCreate)
}

func (s CrudStatistics) RemoteRead() time.Duration {
	return s.Duration(PhaseRemoteRead)
}

func (s CrudStatistics) RemoteUpdate() time.Duration {
	return s.Duration(PhaseRemoteUpdate)
}

func (s CrudStatistics) RemoteDelete() time.Duration {
	return s.Duration(PhaseRemoteDelete)
}
