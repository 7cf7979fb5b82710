package tunnel

import (
	"fmt"
	mrand "math/rand/v2"
	"testing"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/crypto/rand"
	cryptotunnel "github.com/go-i2p/crypto/tunnel"
	"github.com/go-i2p/tunnelpipe/lib/util/time/monotonic"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// testPeer returns a stable identity hash for router i.
func testPeer(i int) common.Hash {
	return common.HashData([]byte(fmt.Sprintf("router-%d", i)))
}

func testPeers(n int) []common.Hash {
	peers := make([]common.Hash, n)
	for i := range peers {
		peers[i] = testPeer(i)
	}
	return peers
}

// testKey returns a distinct, non-zero key for (hop, which).
func testKey(hop, which int) cryptotunnel.TunnelKey {
	var k cryptotunnel.TunnelKey
	for i := range k {
		k[i] = byte(hop*7 + which*3 + i + 1)
	}
	k[0] = byte(hop)
	k[1] = byte(which + 1)
	return k
}

// chainParams returns linked params for an n-hop tunnel with fixed keys.
func chainParams(n int, expiration time.Time) []HopParams {
	peers := testPeers(n)
	params := make([]HopParams, n)
	for i := 0; i < n; i++ {
		p := HopParams{
			Peer:            peers[i],
			LayerKey:        testKey(i, 0),
			IVKey:           testKey(i, 1),
			ReceiveTunnelID: TunnelID(1000 + i),
			Expiration:      expiration,
		}
		if i > 0 {
			from := peers[i-1]
			p.ReceiveFrom = &from
		}
		if i < n-1 {
			to := peers[i+1]
			p.SendTo = &to
			p.SendTunnelID = TunnelID(1000 + i + 1)
		}
		params[i] = p
	}
	return params
}

func hopsFromParams(t *testing.T, params []HopParams) []*HopConfig {
	t.Helper()
	hops := make([]*HopConfig, len(params))
	for i, p := range params {
		h, err := NewHopConfig(p)
		require.NoError(t, err, "hop %d", i)
		hops[i] = h
	}
	return hops
}

func configFromParams(t *testing.T, params []HopParams) *TunnelConfig {
	t.Helper()
	cfg, err := NewTunnelConfig(Inbound, hopsFromParams(t, params)...)
	require.NoError(t, err)
	return cfg
}

// buildTestTunnel builds an n-hop tunnel with random keys that expires
// ten minutes after testEpoch.
func buildTestTunnel(t *testing.T, n int) *TunnelConfig {
	t.Helper()
	cfg, err := NewBuilder().Build(BuildRequest{
		Peers:     testPeers(n),
		Direction: Inbound,
		Now:       testEpoch,
	})
	require.NoError(t, err)
	return cfg
}

func testClock() *monotonic.FrozenClock {
	return monotonic.NewFrozenClock(testEpoch)
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// runPipeline pushes msg through stages in order, claiming the previous
// hop's peer at every step. It returns the index of the first stage that
// dropped the message, or -1.
func runPipeline(cfg *TunnelConfig, stages []Stage, msg []byte) int {
	var from common.Hash
	for i, s := range stages {
		if !s.Process(msg, 0, len(msg), from) {
			return i
		}
		from = cfg.Hop(i).Peer()
	}
	return -1
}

// seededKeys returns a deterministic KeySource.
func seededKeys(seed byte) KeySource {
	var s [32]byte
	s[0] = seed
	return mrand.NewChaCha8(s)
}
