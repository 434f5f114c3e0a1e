package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemPair(t *testing.T, peerID Endpoint) (hostNet *Net, peerNet *Net, network *MemNetwork) {
	t.Helper()
	network = NewMemNetwork()

	hostReg := NewChannelRegistry(func(string) (Channel, error) {
		return network.Host(), nil
	})
	peerReg := NewChannelRegistry(func(string) (Channel, error) {
		return network.Join(peerID), nil
	})

	var err error
	hostNet, err = NewNet(nil, RoleHost, network.Directory(), hostReg)
	require.NoError(t, err)
	peerNet, err = NewNet(nil, RolePeer, nil, peerReg)
	require.NoError(t, err)
	return hostNet, peerNet, network
}

// Peer sends pos(1,2,3); after both ticks the host sees exactly one record.
func TestPeerToHostScenario(t *testing.T) {
	hostNet, peerNet, _ := newMemPair(t, "peer1")

	_, err := peerNet.Send("pos", 1, 2, 3)
	require.NoError(t, err)

	peerNet.Step()
	hostNet.Step()

	recs := hostNet.Query("pos").Records()
	require.Len(t, recs, 1)
	assert.Equal(t, Endpoint("peer1"), recs[0].Sender)
	assert.Equal(t, Tuple{1, 2, 3}, recs[0].Data)
}

// Host sends a:"x" to P1 and a:"y" to P2 in one tick; neither peer sees the
// other's value.
func TestHostFanOutNoCrossContamination(t *testing.T) {
	network := NewMemNetwork()
	hostReg := NewChannelRegistry(func(string) (Channel, error) { return network.Host(), nil })
	hostNet, err := NewNet(nil, RoleHost, network.Directory(), hostReg)
	require.NoError(t, err)

	p1Reg := NewChannelRegistry(func(string) (Channel, error) { return network.Join("p1"), nil })
	p2Reg := NewChannelRegistry(func(string) (Channel, error) { return network.Join("p2"), nil })
	p1Net, err := NewNet(nil, RolePeer, nil, p1Reg)
	require.NoError(t, err)
	p2Net, err := NewNet(nil, RolePeer, nil, p2Reg)
	require.NoError(t, err)

	_, err = hostNet.SendTo(ToEndpoint("p1"), "a", "x")
	require.NoError(t, err)
	_, err = hostNet.SendTo(ToEndpoint("p2"), "a", "y")
	require.NoError(t, err)

	hostNet.Step()
	p1Net.Step()
	p2Net.Step()

	p1Recs := p1Net.Query("a").Records()
	require.Len(t, p1Recs, 1)
	assert.Equal(t, Tuple{"x"}, p1Recs[0].Data)
	assert.Equal(t, HostEndpoint, p1Recs[0].Sender)

	p2Recs := p2Net.Query("a").Records()
	require.Len(t, p2Recs, 1)
	assert.Equal(t, Tuple{"y"}, p2Recs[0].Data)
}

func TestSendDefaultRecipientPerRole(t *testing.T) {
	hostNet, peerNet, network := newMemPair(t, "peer1")
	network.Join("peer2")

	// Host default is broadcast to all known endpoints.
	_, err := hostNet.Send("sync", 1)
	require.NoError(t, err)
	hostNet.Step()

	peerNet.Step()
	assert.Equal(t, 1, peerNet.Query("sync").Count())

	// Peer default is the host.
	_, err = peerNet.Send("ready")
	require.NoError(t, err)
	peerNet.Step()
	hostNet.Step()
	assert.Equal(t, 1, hostNet.Query("ready").Count())
}

func TestNetsSharingKeyShareChannel(t *testing.T) {
	network := NewMemNetwork()
	opened := 0
	reg := NewChannelRegistry(func(string) (Channel, error) {
		opened++
		return network.Host(), nil
	})

	cfg := &NetConfig{Channel: ReliableChannel, Event: "combat"}
	a, err := NewNet(cfg, RoleHost, network.Directory(), reg)
	require.NoError(t, err)
	b, err := NewNet(&NetConfig{Channel: ReliableChannel, Event: "combat"}, RoleHost, network.Directory(), reg)
	require.NoError(t, err)

	assert.Equal(t, 1, opened, "same (channel, event) key opens one channel")
	assert.NotSame(t, a.Bridge(), b.Bridge(), "each net owns its own bridge")

	other, err := NewNet(&NetConfig{Channel: ReliableChannel, Event: "lobby"}, RoleHost, network.Directory(), reg)
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Equal(t, 2, opened, "different event opens a new channel")
}

func TestNetConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *NetConfig
		ok   bool
	}{
		{name: "defaults", cfg: DefaultNetConfig(), ok: true},
		{name: "unreliable accepted", cfg: &NetConfig{Channel: UnreliableChannel}, ok: true},
		{name: "unknown channel class", cfg: &NetConfig{Channel: "telepathy"}, ok: false},
		{name: "negative ratelimit", cfg: &NetConfig{Ratelimit: -1}, ok: false},
		{name: "bad limiter algorithm", cfg: &NetConfig{RecvLimit: RecvLimitConfig{Algorithm: "magic", RPS: 1}}, ok: false},
		{name: "token limiter without rps", cfg: &NetConfig{RecvLimit: RecvLimitConfig{Algorithm: "token"}}, ok: false},
		{name: "token limiter", cfg: &NetConfig{RecvLimit: RecvLimitConfig{Algorithm: "token", RPS: 100, Burst: 10}}, ok: true},
	}

	network := NewMemNetwork()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewChannelRegistry(func(string) (Channel, error) { return network.Host(), nil })
			_, err := NewNet(tt.cfg, RoleHost, network.Directory(), reg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRegisterFlushRunsAfterUpdateHooks(t *testing.T) {
	hostNet, peerNet, _ := newMemPair(t, "peer1")

	sched := NewLoopScheduler()
	cancel, err := hostNet.Register(sched)
	require.NoError(t, err)
	defer cancel()

	// Application logic scheduled in the update phase; its sends must be
	// flushed by the same tick even though it was registered after the net.
	_, err = sched.Schedule(DefaultEvent, PhaseUpdate, func() {
		_, _ = hostNet.Send("state", "tick")
	})
	require.NoError(t, err)

	sched.Advance(DefaultEvent)
	peerNet.Step()
	assert.Equal(t, 1, peerNet.Query("state").Count())
}

func TestNetUseInstallsMiddleware(t *testing.T) {
	hostNet, peerNet, _ := newMemPair(t, "peer1")

	hostNet.Use(func(d *RecvDelivery, next RecvFilterHandleFunc) error {
		if d.Record.Identifier == "cheat" {
			return ErrRecvLimited
		}
		return next(d)
	})

	_, _ = peerNet.Send("cheat", 1)
	_, _ = peerNet.Send("pos", 2)
	peerNet.Step()
	hostNet.Step()

	assert.Equal(t, 0, hostNet.Query("cheat").Count())
	assert.Equal(t, 1, hostNet.Query("pos").Count())
}

func TestNetOnConfigChangedUpdatesBudget(t *testing.T) {
	hostNet, _, _ := newMemPair(t, "peer1")

	newCfg := DefaultNetConfig()
	newCfg.Ratelimit = 1
	require.NoError(t, hostNet.OnConfigChanged("ticknet", newCfg, DefaultNetConfig()))

	_, err := hostNet.Send("a", 1)
	require.NoError(t, err)
	_, err = hostNet.Send("a", 2)
	assert.ErrorIs(t, err, ErrSendBudget)

	// Updates for other configs are ignored.
	assert.NoError(t, hostNet.OnConfigChanged("log", newCfg, nil))
}
