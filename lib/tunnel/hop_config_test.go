package tunnel

import (
	"testing"
	"time"

	cryptotunnel "github.com/go-i2p/crypto/tunnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHopConfig(t *testing.T) {
	expiration := testEpoch.Add(DefaultTunnelLifetime)
	base := chainParams(3, expiration)[1]
	self := base.Peer

	tests := []struct {
		name        string
		mutate      func(p *HopParams)
		expectError bool
	}{
		{
			name:   "valid participant",
			mutate: func(p *HopParams) {},
		},
		{
			name:   "valid gateway",
			mutate: func(p *HopParams) { p.ReceiveFrom = nil },
		},
		{
			name:   "valid endpoint",
			mutate: func(p *HopParams) { p.SendTo = nil },
		},
		{
			name:        "zero layer key",
			mutate:      func(p *HopParams) { p.LayerKey = cryptotunnel.TunnelKey{} },
			expectError: true,
		},
		{
			name:        "zero IV key",
			mutate:      func(p *HopParams) { p.IVKey = cryptotunnel.TunnelKey{} },
			expectError: true,
		},
		{
			name:        "layer key equals IV key",
			mutate:      func(p *HopParams) { p.IVKey = p.LayerKey },
			expectError: true,
		},
		{
			name:        "no expiration",
			mutate:      func(p *HopParams) { p.Expiration = time.Time{} },
			expectError: true,
		},
		{
			name:        "receives from itself",
			mutate:      func(p *HopParams) { p.ReceiveFrom = &self },
			expectError: true,
		},
		{
			name:        "sends to itself",
			mutate:      func(p *HopParams) { p.SendTo = &self },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			h, err := NewHopConfig(p)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidHopConfig)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, h)
		})
	}
}

func TestHopConfig_Accessors(t *testing.T) {
	expiration := testEpoch.Add(DefaultTunnelLifetime)
	params := chainParams(3, expiration)
	hops := hopsFromParams(t, params)

	gw, mid, end := hops[0], hops[1], hops[2]

	assert.True(t, gw.IsGateway())
	assert.False(t, gw.IsEndpoint())
	_, ok := gw.ReceiveFrom()
	assert.False(t, ok)

	from, ok := mid.ReceiveFrom()
	require.True(t, ok)
	assert.Equal(t, gw.Peer(), from)
	to, ok := mid.SendTo()
	require.True(t, ok)
	assert.Equal(t, end.Peer(), to)
	assert.False(t, mid.IsGateway())
	assert.False(t, mid.IsEndpoint())

	assert.True(t, end.IsEndpoint())
	_, ok = end.SendTo()
	assert.False(t, ok)

	assert.Equal(t, params[1].LayerKey, mid.LayerKey())
	assert.Equal(t, params[1].IVKey, mid.IVKey())
	assert.Equal(t, TunnelID(1001), mid.ReceiveTunnelID())
	assert.Equal(t, TunnelID(1002), mid.SendTunnelID())
	assert.Equal(t, expiration, mid.Expiration())
}

// TestHopConfig_Immutable verifies that neither the caller's params nor the
// returned copies can change a HopConfig.
func TestHopConfig_Immutable(t *testing.T) {
	params := chainParams(3, testEpoch.Add(time.Minute))
	p := params[1]
	h, err := NewHopConfig(p)
	require.NoError(t, err)

	want, _ := h.ReceiveFrom()
	p.ReceiveFrom[0] ^= 0xFF
	got, _ := h.ReceiveFrom()
	assert.Equal(t, want, got)

	key := h.LayerKey()
	key[0] ^= 0xFF
	assert.NotEqual(t, key, h.LayerKey())

	out := h.Params()
	out.SendTo[0] ^= 0xFF
	to, _ := h.SendTo()
	assert.NotEqual(t, *out.SendTo, to)
}

func TestHopConfig_ParamsRoundTrip(t *testing.T) {
	for i, p := range chainParams(4, testEpoch.Add(time.Hour)) {
		h, err := NewHopConfig(p)
		require.NoError(t, err, "hop %d", i)
		assert.Equal(t, p, h.Params(), "hop %d", i)
	}
}

func TestHopConfig_IsExpired(t *testing.T) {
	expiration := testEpoch.Add(DefaultTunnelLifetime)
	h := hopsFromParams(t, chainParams(2, expiration))[0]

	assert.False(t, h.IsExpired(testEpoch))
	assert.False(t, h.IsExpired(expiration))
	assert.True(t, h.IsExpired(expiration.Add(time.Nanosecond)))
}
