package tunnel

import (
	"testing"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTunnelConfig_Valid(t *testing.T) {
	expiration := testEpoch.Add(DefaultTunnelLifetime)
	for n := MinHops; n <= MaxHops; n++ {
		cfg := configFromParams(t, chainParams(n, expiration))
		assert.Equal(t, n, cfg.Length())
		assert.Equal(t, Inbound, cfg.Direction())
		assert.Equal(t, testPeers(n), cfg.Peers())
		assert.Same(t, cfg.Hop(0), cfg.Gateway())
		assert.Same(t, cfg.Hop(n-1), cfg.Endpoint())
	}
}

func TestNewTunnelConfig_Invariants(t *testing.T) {
	expiration := testEpoch.Add(DefaultTunnelLifetime)
	stranger := testPeer(77)

	tests := []struct {
		name   string
		n      int
		mutate func(p []HopParams)
	}{
		{"single hop", 1, func(p []HopParams) {}},
		{"too many hops", MaxHops + 1, func(p []HopParams) {}},
		{"gateway with predecessor", 3, func(p []HopParams) { p[0].ReceiveFrom = &stranger }},
		{"endpoint with successor", 3, func(p []HopParams) { p[2].SendTo = &stranger }},
		{"participant predecessor wrong", 4, func(p []HopParams) { p[2].ReceiveFrom = &stranger }},
		{"participant successor wrong", 4, func(p []HopParams) { p[1].SendTo = &stranger }},
		{"endpoint predecessor wrong", 3, func(p []HopParams) { p[2].ReceiveFrom = &stranger }},
		{"endpoint predecessor missing", 3, func(p []HopParams) { p[2].ReceiveFrom = nil }},
		{"tunnel IDs do not line up", 3, func(p []HopParams) { p[0].SendTunnelID = 9 }},
		{"layer key reused across hops", 3, func(p []HopParams) { p[2].LayerKey = p[0].LayerKey }},
		{"IV key reused as another hop's layer key", 3, func(p []HopParams) { p[1].IVKey = p[2].LayerKey }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := chainParams(tt.n, expiration)
			tt.mutate(params)
			hops := hopsFromParams(t, params)
			cfg, err := NewTunnelConfig(Inbound, hops...)
			assert.ErrorIs(t, err, ErrInvalidTunnelConfig)
			assert.Nil(t, cfg)
		})
	}

	t.Run("nil hop", func(t *testing.T) {
		hops := hopsFromParams(t, chainParams(3, expiration))
		hops[1] = nil
		_, err := NewTunnelConfig(Inbound, hops...)
		assert.ErrorIs(t, err, ErrInvalidTunnelConfig)
	})
}

// TestNewTunnelConfig_CopiesHops verifies the caller cannot reorder a
// TunnelConfig through the slice it passed in.
func TestNewTunnelConfig_CopiesHops(t *testing.T) {
	hops := hopsFromParams(t, chainParams(3, testEpoch.Add(time.Hour)))
	cfg, err := NewTunnelConfig(Outbound, hops...)
	require.NoError(t, err)

	first := hops[0]
	hops[0] = hops[2]
	assert.Same(t, first, cfg.Gateway())
	assert.Equal(t, Outbound, cfg.Direction())
}

func TestTunnelConfig_Predecessor(t *testing.T) {
	cfg := configFromParams(t, chainParams(4, testEpoch.Add(time.Hour)))

	_, ok := cfg.Predecessor(0)
	assert.False(t, ok)
	_, ok = cfg.Predecessor(4)
	assert.False(t, ok)
	_, ok = cfg.Predecessor(-1)
	assert.False(t, ok)

	for i := 1; i < 4; i++ {
		p, ok := cfg.Predecessor(i)
		require.True(t, ok)
		assert.Equal(t, cfg.Hop(i-1).Peer(), p)
	}
}

func TestTunnelConfig_Expiration(t *testing.T) {
	params := chainParams(3, testEpoch.Add(time.Hour))
	params[1].Expiration = testEpoch.Add(5 * time.Minute)
	cfg := configFromParams(t, params)

	assert.Equal(t, testEpoch.Add(5*time.Minute), cfg.Expiration())
	assert.False(t, cfg.IsExpired(testEpoch.Add(5*time.Minute)))
	assert.True(t, cfg.IsExpired(testEpoch.Add(6*time.Minute)))
}

func TestDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"inbound", Inbound, false},
		{"in", Inbound, false},
		{"outbound", Outbound, false},
		{"out", Outbound, false},
		{"sideways", Inbound, true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Contains(t, []string{"inbound", "outbound"}, got.String())
	}
	assert.Equal(t, "unknown", Direction(9).String())
}

// TestEndpointUsesPathForPredecessor verifies the endpoint resolves its
// predecessor from the path, which the path invariants tie to ReceiveFrom.
func TestEndpointUsesPathForPredecessor(t *testing.T) {
	cfg := configFromParams(t, chainParams(3, testEpoch.Add(time.Hour)))
	ep, err := NewEndpointProcessor(cfg, testClock())
	require.NoError(t, err)

	from, ok := cfg.Endpoint().ReceiveFrom()
	require.True(t, ok)
	assert.NoError(t, ep.Validate(from))
	assert.NoError(t, ep.Validate(cfg.Hop(1).Peer()))
	assert.ErrorIs(t, ep.Validate(common.Hash{}), ErrPredecessorMismatch)
}
