package zbus

import "sync/atomic"

// AdapterState is the handshake state of an Adapter.
type AdapterState uint32

const (
	// IdleState: no outstanding request.
	IdleState AdapterState = iota
	// AwaitingAckState: a request frame was sent and the peer has not acknowledged it yet.
	AwaitingAckState
	// AwaitingDataState: a read was acknowledged and the adapter idles until data is ready.
	AwaitingDataState
	// ClosedState is terminal.
	ClosedState
)

func (s AdapterState) String() string {
	switch s {
	case IdleState:
		return "Idle"
	case AwaitingAckState:
		return "AwaitingAck"
	case AwaitingDataState:
		return "AwaitingData"
	case ClosedState:
		return "Closed"
	default:
		return "Unknown"
	}
}

// atomicState holds an AdapterState readable from any goroutine, so a peer or monitor
// can observe the adapter while an operation blocks.
type atomicState struct {
	state atomic.Uint32
}

func (st *atomicState) Get() AdapterState {
	return AdapterState(st.state.Load())
}

// Set moves to state unless the adapter is already closed. It reports whether the
// state was changed.
func (st *atomicState) Set(state AdapterState) bool {
	for {
		cur := st.state.Load()
		if AdapterState(cur) == ClosedState {
			return false
		}
		if st.state.CompareAndSwap(cur, uint32(state)) {
			return true
		}
	}
}

func (st *atomicState) IsClosed() bool {
	return st.Get() == ClosedState
}

// ToClosed moves to ClosedState and reports whether this call closed the adapter.
func (st *atomicState) ToClosed() bool {
	return st.state.Swap(uint32(ClosedState)) != uint32(ClosedState)
}
