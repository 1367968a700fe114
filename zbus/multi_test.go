package zbus

import (
	"context"
	"testing"

	"github.com/arloliu/go-zbus/linechan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMulti(t *testing.T, n int, opts ...AdapterOption) (*MultiAdapter, []*linechan.Stream) {
	t.Helper()

	chs := make([]linechan.Channel, n)
	remotes := make([]*linechan.Stream, n)
	for i := range chs {
		local, remote := newTestPipe(t)
		chs[i], remotes[i] = local, remote
	}

	m, err := NewMultiAdapter(chs, opts...)
	require.NoError(t, err)

	return m, remotes
}

func TestNewMultiAdapter_NoChannels(t *testing.T) {
	_, err := NewMultiAdapter(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewMultiAdapter_InvalidOption(t *testing.T) {
	local, _ := newTestPipe(t)

	_, err := NewMultiAdapter([]linechan.Channel{local}, WithRetryLimit(-1))
	require.Error(t, err)
}

func TestMultiAdapter_ChannelNames(t *testing.T) {
	m, _ := newTestMulti(t, 2, WithName("tb"))

	assert.Equal(t, 2, m.Len())

	a0, err := m.Channel(0)
	require.NoError(t, err)
	assert.Equal(t, "tb[0]", a0.Name())

	a1, err := m.Channel(1)
	require.NoError(t, err)
	assert.Equal(t, "tb[1]", a1.Name())
}

func TestMultiAdapter_ChannelIndex(t *testing.T) {
	m, _ := newTestMulti(t, 2)

	_, err := m.Channel(2)
	require.ErrorIs(t, err, ErrChannelIndex)

	_, err = m.Channel(-1)
	require.ErrorIs(t, err, ErrChannelIndex)
}

func TestMultiAdapter_ChannelsAreIndependent(t *testing.T) {
	m, remotes := newTestMulti(t, 2)
	peer0 := runPeer(t, remotes[0], []string{ackResp}, nil)
	peer1 := runPeer(t, remotes[1], []string{"3000000aa"}, nil)

	a0, err := m.Channel(0)
	require.NoError(t, err)
	a1, err := m.Channel(1)
	require.NoError(t, err)

	require.NoError(t, a0.WriteWord(context.Background(), 0x21, 0x54))

	v, err := a1.ReadWord(context.Background(), 0x0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xaa), v)

	assert.Equal(t, []string{writeF}, peer0.Frames())
	assert.Equal(t, []string{readF}, peer1.Frames())
}

func TestMultiAdapter_Exchange(t *testing.T) {
	m, remotes := newTestMulti(t, 3)
	peers := []*scriptedPeer{
		runPeer(t, remotes[0], []string{ackResp}, nil),
		runPeer(t, remotes[1], []string{nakResp}, nil),
		runPeer(t, remotes[2], []string{"100000007"}, nil),
	}

	sts, err := m.Exchange(context.Background(), []Transaction{
		WriteTx(0x21, 0x54, SelectAll),
		ReadTx(0x0, SelectAll),
		IdleTx(),
	})
	require.NoError(t, err)
	require.Len(t, sts, 3)

	assert.True(t, sts[0].Ack)
	assert.False(t, sts[1].Ack)
	assert.True(t, sts[2].ReqPending)

	v, err := sts[2].Payload()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)

	assert.Equal(t, []string{writeF}, peers[0].Frames())
	assert.Equal(t, []string{readF}, peers[1].Frames())
	assert.Equal(t, []string{idleF}, peers[2].Frames())

	a1, err := m.Channel(1)
	require.NoError(t, err)
	assert.Equal(t, AwaitingAckState, a1.State(), "unacked read stays outstanding")
}

func TestMultiAdapter_ZW_LengthMismatch(t *testing.T) {
	m, _ := newTestMulti(t, 2)

	err := m.ZW(context.Background(), []Transaction{IdleTx()})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMultiAdapter_ZW_InvalidBatchSendsNothing(t *testing.T) {
	m, remotes := newTestMulti(t, 2)

	err := m.ZW(context.Background(), []Transaction{IdleTx(), WriteTx(0, 0, 0x1F)})
	require.ErrorIs(t, err, ErrInvalidSelect)
	assert.Contains(t, err.Error(), "channel 1")

	ctx, cancel := context.WithTimeout(context.Background(), testDelay)
	defer cancel()

	_, err = remotes[0].Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "channel 0 must not receive a frame")

	for i := 0; i < m.Len(); i++ {
		a, err := m.Channel(i)
		require.NoError(t, err)
		assert.Zero(t, a.Metrics().FrameSendCount.Load())
		assert.Equal(t, IdleState, a.State())
	}

	// the collect side has nothing to take
	_, err = m.ZR(context.Background())
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMultiAdapter_ZW_ClosedChannelSendsNothing(t *testing.T) {
	m, _ := newTestMulti(t, 2)

	a0, err := m.Channel(0)
	require.NoError(t, err)
	a1, err := m.Channel(1)
	require.NoError(t, err)
	require.NoError(t, a1.Close())

	err = m.ZW(context.Background(), []Transaction{IdleTx(), IdleTx()})
	require.ErrorIs(t, err, ErrClosedAdapter)

	assert.Zero(t, a0.Metrics().FrameSendCount.Load())
	assert.Equal(t, IdleState, a0.State())
}

func TestMultiAdapter_IdleAll(t *testing.T) {
	m, remotes := newTestMulti(t, 2)
	peer0 := runPeer(t, remotes[0], repeat(nakResp, 2), nil)
	peer1 := runPeer(t, remotes[1], []string{nakResp, "1xxxxxxxx"}, nil)

	lines, err := m.IdleAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{nakResp, "1xxxxxxxx"}, lines)

	assert.Equal(t, repeat(idleF, 2), peer0.Frames())
	assert.Equal(t, repeat(idleF, 2), peer1.Frames())
}

func TestMultiAdapter_FinishAll(t *testing.T) {
	m, remotes := newTestMulti(t, 3)
	peer0 := runPeer(t, remotes[0], []string{nakResp}, nil)
	peer2 := runPeer(t, remotes[2], []string{nakResp}, nil)

	// channel 1 is already closed and must be skipped
	a1, err := m.Channel(1)
	require.NoError(t, err)
	require.NoError(t, a1.Close())

	require.NoError(t, m.FinishAll(context.Background()))

	assert.Equal(t, []string{finishF}, peer0.Frames())
	assert.Equal(t, []string{finishF}, peer2.Frames())

	for i := 0; i < m.Len(); i++ {
		a, err := m.Channel(i)
		require.NoError(t, err)
		assert.Equal(t, ClosedState, a.State())
	}
}

func TestMultiAdapter_FinishAll_JoinsErrors(t *testing.T) {
	m, remotes := newTestMulti(t, 2)
	require.NoError(t, remotes[0].Close())
	peer1 := runPeer(t, remotes[1], []string{nakResp}, nil)

	err := m.FinishAll(context.Background())
	require.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "channel 0")

	assert.Equal(t, []string{finishF}, peer1.Frames(), "later channels are still finished")
}
