package zbus

import "sync/atomic"

// AdapterMetrics contains atomic metrics for a bus adapter.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type AdapterMetrics struct {
	// FrameSendCount indicates the number of frames sent.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of response lines received.
	FrameRecvCount atomic.Uint64
	// AckRetryCount indicates the number of request frames resent while waiting for ack.
	AckRetryCount atomic.Uint64
	// DataWaitCount indicates the number of idle frames sent while waiting for read data.
	DataWaitCount atomic.Uint64
	// StaleDrainCount indicates the number of owed responses discarded after an aborted wait.
	StaleDrainCount atomic.Uint64

	// WriteCount indicates the number of completed word writes.
	WriteCount atomic.Uint64
	// ReadCount indicates the number of completed word reads.
	ReadCount atomic.Uint64
	// IdleCount indicates the number of idle cycles requested through Idle or sent at startup.
	IdleCount atomic.Uint64
	// ErrCount indicates the number of failed operations.
	ErrCount atomic.Uint64
}

func (m *AdapterMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *AdapterMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *AdapterMetrics) incAckRetryCount() {
	m.AckRetryCount.Add(1)
}

func (m *AdapterMetrics) incDataWaitCount() {
	m.DataWaitCount.Add(1)
}

func (m *AdapterMetrics) incStaleDrainCount() {
	m.StaleDrainCount.Add(1)
}

func (m *AdapterMetrics) incWriteCount() {
	m.WriteCount.Add(1)
}

func (m *AdapterMetrics) incReadCount() {
	m.ReadCount.Add(1)
}

func (m *AdapterMetrics) addIdleCount(n int) {
	m.IdleCount.Add(uint64(n)) //nolint:gosec // n is validated positive
}

func (m *AdapterMetrics) incErrCount() {
	m.ErrCount.Add(1)
}
