package zbus

import (
	"testing"
	"time"

	"github.com/arloliu/go-zbus/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapterConfig_Defaults(t *testing.T) {
	cfg, err := newAdapterConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultName, cfg.Name())
	assert.Equal(t, DefaultWaitTimeout, cfg.WaitTimeout())
	assert.Equal(t, DefaultRetryLimit, cfg.RetryLimit())
	assert.Equal(t, DefaultDataWaitLimit, cfg.DataWaitLimit())
	assert.Equal(t, DefaultStartupIdle, cfg.StartupIdle())
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewAdapterConfig_Options(t *testing.T) {
	l := logger.NewMockLogger()

	cfg, err := newAdapterConfig([]AdapterOption{
		WithName("dut"),
		WithWaitTimeout(2 * time.Second),
		WithRetryLimit(5),
		WithDataWaitLimit(10),
		WithStartupIdle(3),
		WithLogger(l),
	})
	require.NoError(t, err)

	assert.Equal(t, "dut", cfg.Name())
	assert.Equal(t, 2*time.Second, cfg.WaitTimeout())
	assert.Equal(t, 5, cfg.RetryLimit())
	assert.Equal(t, 10, cfg.DataWaitLimit())
	assert.Equal(t, 3, cfg.StartupIdle())
	assert.Same(t, l, cfg.GetLogger())
}

func TestNewAdapterConfig_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  AdapterOption
	}{
		{"empty name", WithName("")},
		{"negative wait timeout", WithWaitTimeout(-time.Second)},
		{"wait timeout too large", WithWaitTimeout(MaxWaitTimeout + time.Second)},
		{"negative retry limit", WithRetryLimit(-1)},
		{"negative data wait limit", WithDataWaitLimit(-1)},
		{"negative startup idle", WithStartupIdle(-1)},
		{"startup idle too large", WithStartupIdle(MaxStartupIdle + 1)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := newAdapterConfig([]AdapterOption{tt.opt})
			require.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestAdapterState_String(t *testing.T) {
	assert.Equal(t, "Idle", IdleState.String())
	assert.Equal(t, "AwaitingAck", AwaitingAckState.String())
	assert.Equal(t, "AwaitingData", AwaitingDataState.String())
	assert.Equal(t, "Closed", ClosedState.String())
	assert.Equal(t, "Unknown", AdapterState(42).String())
}

func TestAtomicState_ClosedIsTerminal(t *testing.T) {
	var st atomicState

	assert.True(t, st.Set(AwaitingAckState))
	assert.Equal(t, AwaitingAckState, st.Get())

	assert.True(t, st.ToClosed())
	assert.False(t, st.ToClosed())
	assert.True(t, st.IsClosed())

	assert.False(t, st.Set(IdleState))
	assert.Equal(t, ClosedState, st.Get())
}
