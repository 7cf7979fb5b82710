package tunnel

import (
	"errors"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/logger"
	"github.com/go-i2p/tunnelpipe/lib/util/time/monotonic"
	"github.com/samber/oops"
)

var (
	// ErrPredecessorMismatch is returned when a message claims to come from a
	// peer other than the hop's expected predecessor.
	ErrPredecessorMismatch = errors.New("tunnel message from unexpected predecessor")
	// ErrHopExpired is returned when the hop configuration is past its expiration.
	ErrHopExpired = errors.New("tunnel hop configuration expired")
)

// Clock supplies the wall clock used for expiration checks.
// *monotonic.Clock and *monotonic.FrozenClock satisfy it.
type Clock = monotonic.Source

// Stage is the shape every processor shares: take a message in buf[offset:offset+length]
// that claimedPredecessor says it sent, transform it in place, report whether it may be
// forwarded. On false the caller drops the message.
type Stage interface {
	Process(buf []byte, offset, length int, claimedPredecessor common.Hash) bool
}

// Role identifies a processor's position in the tunnel.
type Role int

const (
	RoleGateway Role = iota
	RoleParticipant
	RoleEndpoint
)

func (r Role) String() string {
	switch r {
	case RoleGateway:
		return "gateway"
	case RoleParticipant:
		return "participant"
	case RoleEndpoint:
		return "endpoint"
	default:
		return "unknown"
	}
}

// predecessorPolicy decides whether a claimed sender is acceptable.
type predecessorPolicy interface {
	check(claimed common.Hash) error
}

// anyPredecessor accepts every sender. Traffic enters a tunnel at the gateway
// from outside the modelled path.
type anyPredecessor struct{}

func (anyPredecessor) check(common.Hash) error { return nil }

// fixedPredecessor accepts only the hop's configured receiveFrom.
type fixedPredecessor struct {
	expected common.Hash
}

func (f fixedPredecessor) check(claimed common.Hash) error {
	if claimed != f.expected {
		return oops.Wrapf(ErrPredecessorMismatch, "expected %s, got %s", shortHash(f.expected), shortHash(claimed))
	}
	return nil
}

// pathPredecessor resolves the expected sender of the endpoint from the full path.
type pathPredecessor struct {
	path *TunnelConfig
}

func (p pathPredecessor) check(claimed common.Hash) error {
	expected, ok := p.path.Predecessor(p.path.Length() - 1)
	if !ok {
		return oops.Wrapf(ErrPredecessorMismatch, "path has no predecessor for the endpoint")
	}
	return fixedPredecessor{expected: expected}.check(claimed)
}

// Processor removes one layer of the tunnel cipher for one hop.
//
// Gateway, participant and endpoint differ only in how they check the claimed
// predecessor; the transform is the same. A Processor keeps no state between
// calls, so one instance may process many messages concurrently as long as
// every message has its own buffer.
type Processor struct {
	role   Role
	hop    *HopConfig
	policy predecessorPolicy
	clock  Clock
}

func newProcessor(role Role, hop *HopConfig, policy predecessorPolicy, clock Clock) *Processor {
	if clock == nil {
		clock = monotonic.NewClock()
	}
	return &Processor{role: role, hop: hop, policy: policy, clock: clock}
}

func (p *Processor) Role() Role {
	return p.role
}

// Hop returns the configuration this processor peels with.
func (p *Processor) Hop() *HopConfig {
	return p.hop
}

// Validate runs the expiration check, then the predecessor check.
// Expiration wins: an expired hop fails even for the right predecessor.
func (p *Processor) Validate(claimedPredecessor common.Hash) error {
	if monotonic.IsExpiredAt(p.clock, p.hop.Expiration()) {
		return oops.Wrapf(ErrHopExpired, "%s hop expired at %s", p.role, p.hop.Expiration().UTC().Format(time.RFC3339))
	}
	return p.policy.check(claimedPredecessor)
}

// Transform peels this hop's layer off msg in place.
// msg is the whole message, chaining IV first.
func (p *Processor) Transform(msg []byte) error {
	if err := checkMessageLength(len(msg)); err != nil {
		return err
	}
	peelLayer(p.hop, msg)
	return nil
}

// Peel validates and then transforms msg. msg is only written when every check
// passes, so a rejected message is left exactly as it arrived.
func (p *Processor) Peel(msg []byte, claimedPredecessor common.Hash) error {
	if err := checkMessageLength(len(msg)); err != nil {
		return err
	}
	if err := p.Validate(claimedPredecessor); err != nil {
		return err
	}
	peelLayer(p.hop, msg)
	return nil
}

// Process is Peel over buf[offset:offset+length] with a boolean result.
// Failures are logged and reported as false; the caller drops the message.
func (p *Processor) Process(buf []byte, offset, length int, claimedPredecessor common.Hash) bool {
	msg, err := window(buf, offset, length)
	if err == nil {
		err = p.Peel(msg, claimedPredecessor)
	}
	if err != nil {
		log.WithFields(logger.Fields{
			"at":      "(Processor) Process",
			"role":    p.role.String(),
			"peer":    shortHash(p.hop.Peer()),
			"claimed": shortHash(claimedPredecessor),
			"length":  length,
		}).WithError(err).Warn("dropping tunnel message")
		return false
	}

	log.WithFields(logger.Fields{
		"at":     "(Processor) Process",
		"role":   p.role.String(),
		"peer":   shortHash(p.hop.Peer()),
		"length": length,
	}).Debug("peeled tunnel layer")
	return true
}

// window returns buf[offset:offset+length] after bounds checks.
func window(buf []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset > len(buf) || length > len(buf)-offset {
		return nil, oops.Wrapf(ErrInvalidMessageLength, "window [%d:%d+%d] outside %d byte buffer", offset, offset, length, len(buf))
	}
	return buf[offset : offset+length], nil
}

var _ Stage = (*Processor)(nil)
