package tunnel

import (
	"encoding/binary"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/crypto/rand"
	cryptotunnel "github.com/go-i2p/crypto/tunnel"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// DefaultTunnelLifetime is the standard I2P tunnel lifetime.
const DefaultTunnelLifetime = 10 * time.Minute

// KeySource supplies the secure random bytes used for keys and tunnel IDs.
type KeySource interface {
	Read(b []byte) (int, error)
}

// cryptoRandSource reads from github.com/go-i2p/crypto/rand.
type cryptoRandSource struct{}

func (cryptoRandSource) Read(b []byte) (int, error) {
	return rand.Read(b)
}

// Builder assembles TunnelConfigs for a creator. It stands in for the build
// protocol: given the peers chosen for a path, it generates fresh keys and
// tunnel IDs for every hop and links the hops together.
type Builder struct {
	keys KeySource
}

// BuilderOption customises a Builder.
type BuilderOption func(*Builder)

// WithKeySource replaces the random source. Used by tests for reproducible keys.
func WithKeySource(ks KeySource) BuilderOption {
	return func(b *Builder) {
		if ks != nil {
			b.keys = ks
		}
	}
}

// NewBuilder returns a Builder backed by crypto/rand unless overridden.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{keys: cryptoRandSource{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildRequest describes the tunnel to assemble.
type BuildRequest struct {
	// Peers in path order, gateway first. MinHops..MaxHops entries.
	Peers     []common.Hash
	Direction Direction
	// Lifetime defaults to DefaultTunnelLifetime when zero.
	Lifetime time.Duration
	// Now defaults to time.Now() when zero.
	Now time.Time
}

// Build creates the TunnelConfig for req.
//
// Returns an error if:
// - the peer count is outside MinHops..MaxHops
// - the same peer appears twice in a row
// - the key source fails
func (b *Builder) Build(req BuildRequest) (*TunnelConfig, error) {
	if err := validatePeers(req.Peers); err != nil {
		return nil, err
	}
	lifetime := req.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultTunnelLifetime
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	expiration := now.Add(lifetime)

	ids, err := b.generateTunnelIDs(len(req.Peers))
	if err != nil {
		return nil, err
	}

	hops, err := b.createAllHops(req.Peers, ids, expiration)
	if err != nil {
		return nil, err
	}

	cfg, err := NewTunnelConfig(req.Direction, hops...)
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"at":         "(Builder) Build",
		"hop_count":  len(hops),
		"direction":  req.Direction.String(),
		"expiration": expiration.UTC().Format(time.RFC3339),
	}).Debug("built tunnel configuration")
	return cfg, nil
}

func validatePeers(peers []common.Hash) error {
	if len(peers) < MinHops || len(peers) > MaxHops {
		return oops.Wrapf(ErrInvalidTunnelConfig, "hop count must be between %d and %d, got %d", MinHops, MaxHops, len(peers))
	}
	for i := 1; i < len(peers); i++ {
		if peers[i] == peers[i-1] {
			return oops.Wrapf(ErrInvalidTunnelConfig, "peer at hop %d repeats hop %d", i, i-1)
		}
	}
	return nil
}

// createAllHops creates one HopConfig per peer. Hop i receives on ids[i]
// and sends on ids[i+1]; the endpoint's send ID is zero.
func (b *Builder) createAllHops(peers []common.Hash, ids []TunnelID, expiration time.Time) ([]*HopConfig, error) {
	used := make(map[cryptotunnel.TunnelKey]struct{}, 2*len(peers))
	hops := make([]*HopConfig, len(peers))

	for i := range peers {
		layerKey, err := b.generateKey(used)
		if err != nil {
			return nil, oops.Wrapf(err, "failed to generate layer key for hop %d", i)
		}
		ivKey, err := b.generateKey(used)
		if err != nil {
			return nil, oops.Wrapf(err, "failed to generate IV key for hop %d", i)
		}

		p := HopParams{
			Peer:            peers[i],
			LayerKey:        layerKey,
			IVKey:           ivKey,
			ReceiveTunnelID: ids[i],
			Expiration:      expiration,
		}
		if i > 0 {
			from := peers[i-1]
			p.ReceiveFrom = &from
		}
		if i < len(peers)-1 {
			to := peers[i+1]
			p.SendTo = &to
			p.SendTunnelID = ids[i+1]
		}

		hop, err := NewHopConfig(p)
		if err != nil {
			return nil, oops.Wrapf(err, "hop %d", i)
		}
		hops[i] = hop
	}
	return hops, nil
}

// generateKey draws a non-zero key that is not already in used, and records it.
func (b *Builder) generateKey(used map[cryptotunnel.TunnelKey]struct{}) (cryptotunnel.TunnelKey, error) {
	var zero cryptotunnel.TunnelKey
	for attempt := 0; attempt < 4; attempt++ {
		var key cryptotunnel.TunnelKey
		if _, err := b.keys.Read(key[:]); err != nil {
			return zero, oops.Wrapf(err, "failed to read random data")
		}
		if key == zero {
			continue
		}
		if _, dup := used[key]; dup {
			continue
		}
		used[key] = struct{}{}
		return key, nil
	}
	return zero, oops.Errorf("key source keeps returning zero or duplicate keys")
}

// generateTunnelIDs draws n distinct non-zero tunnel IDs.
func (b *Builder) generateTunnelIDs(n int) ([]TunnelID, error) {
	ids := make([]TunnelID, 0, n)
	seen := make(map[TunnelID]struct{}, n)
	var buf [4]byte
	for attempts := 0; len(ids) < n; attempts++ {
		if attempts > 4*n {
			return nil, oops.Errorf("key source keeps returning zero or duplicate tunnel IDs")
		}
		if _, err := b.keys.Read(buf[:]); err != nil {
			return nil, oops.Wrapf(err, "failed to generate tunnel ID")
		}
		id := TunnelID(binary.BigEndian.Uint32(buf[:]))
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
