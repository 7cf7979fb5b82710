package tunnel

import (
	"errors"
	"testing"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKeySource struct{}

func (failingKeySource) Read(b []byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}

// zeroKeySource always returns zero bytes.
type zeroKeySource struct{}

func (zeroKeySource) Read(b []byte) (int, error) {
	clear(b)
	return len(b), nil
}

func TestBuilder_Build(t *testing.T) {
	for n := MinHops; n <= MaxHops; n++ {
		cfg, err := NewBuilder().Build(BuildRequest{Peers: testPeers(n), Now: testEpoch})
		require.NoError(t, err, "%d hops", n)

		assert.Equal(t, n, cfg.Length())
		assert.Equal(t, testPeers(n), cfg.Peers())
		assert.Equal(t, testEpoch.Add(DefaultTunnelLifetime), cfg.Expiration())

		seen := make(map[TunnelID]bool)
		for i := 0; i < n; i++ {
			id := cfg.Hop(i).ReceiveTunnelID()
			assert.NotZero(t, id)
			assert.False(t, seen[id], "tunnel ID reused")
			seen[id] = true
		}
		assert.Zero(t, cfg.Endpoint().SendTunnelID())
	}
}

func TestBuilder_BuildLifetimeAndDirection(t *testing.T) {
	cfg, err := NewBuilder().Build(BuildRequest{
		Peers:     testPeers(3),
		Direction: Outbound,
		Lifetime:  2 * time.Minute,
		Now:       testEpoch,
	})
	require.NoError(t, err)
	assert.Equal(t, Outbound, cfg.Direction())
	assert.Equal(t, testEpoch.Add(2*time.Minute), cfg.Expiration())
}

func TestBuilder_BuildDefaultsNow(t *testing.T) {
	before := time.Now()
	cfg, err := NewBuilder().Build(BuildRequest{Peers: testPeers(2)})
	require.NoError(t, err)
	assert.False(t, cfg.Expiration().Before(before.Add(DefaultTunnelLifetime)))
}

func TestBuilder_BuildRejectsPeers(t *testing.T) {
	repeated := testPeers(3)
	repeated[2] = repeated[1]

	tests := []struct {
		name  string
		peers []common.Hash
	}{
		{"no peers", nil},
		{"one peer", testPeers(1)},
		{"too many peers", testPeers(MaxHops + 1)},
		{"adjacent duplicate", repeated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder().Build(BuildRequest{Peers: tt.peers, Now: testEpoch})
			assert.ErrorIs(t, err, ErrInvalidTunnelConfig)
		})
	}
}

func TestBuilder_KeySource(t *testing.T) {
	t.Run("deterministic with a seeded source", func(t *testing.T) {
		a, err := NewBuilder(WithKeySource(seededKeys(7))).Build(BuildRequest{Peers: testPeers(4), Now: testEpoch})
		require.NoError(t, err)
		b, err := NewBuilder(WithKeySource(seededKeys(7))).Build(BuildRequest{Peers: testPeers(4), Now: testEpoch})
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			assert.Equal(t, a.Hop(i).Params(), b.Hop(i).Params())
		}
	})

	t.Run("different seeds differ", func(t *testing.T) {
		a, err := NewBuilder(WithKeySource(seededKeys(1))).Build(BuildRequest{Peers: testPeers(2), Now: testEpoch})
		require.NoError(t, err)
		b, err := NewBuilder(WithKeySource(seededKeys(2))).Build(BuildRequest{Peers: testPeers(2), Now: testEpoch})
		require.NoError(t, err)
		assert.NotEqual(t, a.Gateway().LayerKey(), b.Gateway().LayerKey())
	})

	t.Run("source error", func(t *testing.T) {
		_, err := NewBuilder(WithKeySource(failingKeySource{})).Build(BuildRequest{Peers: testPeers(2), Now: testEpoch})
		assert.Error(t, err)
	})

	t.Run("all zero source", func(t *testing.T) {
		_, err := NewBuilder(WithKeySource(zeroKeySource{})).Build(BuildRequest{Peers: testPeers(2), Now: testEpoch})
		assert.Error(t, err)
	})

	t.Run("nil source keeps default", func(t *testing.T) {
		_, err := NewBuilder(WithKeySource(nil)).Build(BuildRequest{Peers: testPeers(2), Now: testEpoch})
		assert.NoError(t, err)
	})
}

func TestBuilder_BuiltTunnelRoundTrip(t *testing.T) {
	cfg := buildTestTunnel(t, 5)
	stages, err := cfg.Stages(testClock())
	require.NoError(t, err)
	require.Len(t, stages, 5)

	payload := randomBytes(t, 6*BlockSize)
	msg, err := cfg.NewMessage(payload)
	require.NoError(t, err)
	assert.NotEqual(t, payload, PayloadOf(msg))

	assert.Equal(t, -1, runPipeline(cfg, stages, msg))
	assert.Equal(t, payload, PayloadOf(msg))
}

func TestNewMessage_RejectsBadPayload(t *testing.T) {
	cfg := buildTestTunnel(t, 2)
	for _, n := range []int{0, 1, 15, 17} {
		_, err := cfg.NewMessage(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidMessageLength, "%d bytes", n)
	}
}
