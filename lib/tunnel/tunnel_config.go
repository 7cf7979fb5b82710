package tunnel

import (
	"errors"
	"time"

	common "github.com/go-i2p/common/data"
	cryptotunnel "github.com/go-i2p/crypto/tunnel"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

const (
	// MinHops is the shortest tunnel: a gateway and an endpoint.
	MinHops = 2
	// MaxHops matches the number of records a tunnel build message carries.
	MaxHops = 8
)

// ErrInvalidTunnelConfig is returned when the hop chain violates a path invariant.
var ErrInvalidTunnelConfig = errors.New("invalid tunnel configuration")

// Direction tells which end of the tunnel belongs to the creator.
type Direction int

const (
	// Inbound tunnels deliver to the creator, which is the endpoint.
	Inbound Direction = iota
	// Outbound tunnels start at the creator, which is the gateway and
	// applies all layers before handing the message to hop 0.
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ParseDirection maps "inbound"/"outbound" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "inbound", "in":
		return Inbound, nil
	case "outbound", "out":
		return Outbound, nil
	default:
		return Inbound, oops.Errorf("unknown tunnel direction %q", s)
	}
}

// TunnelConfig is the full ordered path of one tunnel, gateway first.
// It is the privileged view: only the router that created the tunnel holds it.
// It is immutable once NewTunnelConfig returns.
type TunnelConfig struct {
	direction Direction
	hops      []*HopConfig
}

// NewTunnelConfig checks the hop chain and freezes it into a TunnelConfig.
//
// Invariants enforced:
// - MinHops <= len(hops) <= MaxHops, no nil hops
// - hop 0 has no predecessor and the last hop has no successor
// - hops[i].ReceiveFrom == hops[i-1].Peer for i > 0
// - hops[i].SendTo == hops[i+1].Peer and hops[i].SendTunnelID == hops[i+1].ReceiveTunnelID for i < N-1
// - no layer or IV key appears twice anywhere in the tunnel
func NewTunnelConfig(direction Direction, hops ...*HopConfig) (*TunnelConfig, error) {
	if err := validatePath(hops); err != nil {
		log.WithFields(logger.Fields{
			"at":        "NewTunnelConfig",
			"hop_count": len(hops),
			"direction": direction.String(),
		}).WithError(err).Error("rejected tunnel configuration")
		return nil, err
	}

	owned := make([]*HopConfig, len(hops))
	copy(owned, hops)

	log.WithFields(logger.Fields{
		"at":        "NewTunnelConfig",
		"hop_count": len(owned),
		"direction": direction.String(),
	}).Debug("created tunnel configuration")
	return &TunnelConfig{direction: direction, hops: owned}, nil
}

func validatePath(hops []*HopConfig) error {
	n := len(hops)
	if n < MinHops || n > MaxHops {
		return oops.Wrapf(ErrInvalidTunnelConfig, "hop count must be between %d and %d, got %d", MinHops, MaxHops, n)
	}
	for i, h := range hops {
		if h == nil {
			return oops.Wrapf(ErrInvalidTunnelConfig, "hop %d is nil", i)
		}
	}
	if !hops[0].IsGateway() {
		return oops.Wrapf(ErrInvalidTunnelConfig, "gateway must not have a predecessor")
	}
	if !hops[n-1].IsEndpoint() {
		return oops.Wrapf(ErrInvalidTunnelConfig, "endpoint must not have a successor")
	}
	for i := 1; i < n; i++ {
		if err := validateLink(i-1, hops[i-1], hops[i]); err != nil {
			return err
		}
	}
	return validateKeysDistinct(hops)
}

// validateLink checks that prev and next agree on each other.
func validateLink(i int, prev, next *HopConfig) error {
	from, ok := next.ReceiveFrom()
	if !ok || from != prev.Peer() {
		return oops.Wrapf(ErrInvalidTunnelConfig, "hop %d predecessor does not match hop %d peer", i+1, i)
	}
	to, ok := prev.SendTo()
	if !ok || to != next.Peer() {
		return oops.Wrapf(ErrInvalidTunnelConfig, "hop %d successor does not match hop %d peer", i, i+1)
	}
	if prev.SendTunnelID() != next.ReceiveTunnelID() {
		return oops.Wrapf(ErrInvalidTunnelConfig, "hop %d send tunnel ID %d does not match hop %d receive tunnel ID %d",
			i, prev.SendTunnelID(), i+1, next.ReceiveTunnelID())
	}
	return nil
}

func validateKeysDistinct(hops []*HopConfig) error {
	seen := make(map[cryptotunnel.TunnelKey]int, 2*len(hops))
	for i, h := range hops {
		for _, k := range []cryptotunnel.TunnelKey{h.layerKey, h.ivKey} {
			if j, dup := seen[k]; dup {
				return oops.Wrapf(ErrInvalidTunnelConfig, "hop %d reuses a key from hop %d", i, j)
			}
			seen[k] = i
		}
	}
	return nil
}

func (t *TunnelConfig) Direction() Direction {
	return t.direction
}

// Length returns the number of hops.
func (t *TunnelConfig) Length() int {
	return len(t.hops)
}

// Hop returns hop i, gateway first. It panics if i is out of range,
// the same as indexing a slice.
func (t *TunnelConfig) Hop(i int) *HopConfig {
	return t.hops[i]
}

func (t *TunnelConfig) Gateway() *HopConfig {
	return t.hops[0]
}

func (t *TunnelConfig) Endpoint() *HopConfig {
	return t.hops[len(t.hops)-1]
}

// Predecessor returns the peer that forwards into hop i. ok is false for the
// gateway and for out of range indexes.
func (t *TunnelConfig) Predecessor(i int) (peer common.Hash, ok bool) {
	if i <= 0 || i >= len(t.hops) {
		return common.Hash{}, false
	}
	return t.hops[i-1].Peer(), true
}

// Peers returns the hop identities in path order.
func (t *TunnelConfig) Peers() []common.Hash {
	peers := make([]common.Hash, len(t.hops))
	for i, h := range t.hops {
		peers[i] = h.Peer()
	}
	return peers
}

// Expiration returns the earliest hop expiration, after which some hop of
// the tunnel will refuse traffic.
func (t *TunnelConfig) Expiration() time.Time {
	earliest := t.hops[0].Expiration()
	for _, h := range t.hops[1:] {
		if h.Expiration().Before(earliest) {
			earliest = h.Expiration()
		}
	}
	return earliest
}

// IsExpired reports whether any hop has expired at now.
func (t *TunnelConfig) IsExpired(now time.Time) bool {
	return now.After(t.Expiration())
}
