package tunnel

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"time"

	common "github.com/go-i2p/common/data"
	cryptotunnel "github.com/go-i2p/crypto/tunnel"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// TunnelID is the 4-byte routing label a hop uses to recognise a tunnel on
// the link to an adjacent hop. It has no cryptographic meaning.
type TunnelID uint32

var (
	// ErrInvalidHopConfig is returned when a hop configuration is malformed.
	ErrInvalidHopConfig = errors.New("invalid tunnel hop configuration")
	// ErrNilHopConfig is returned when a processor is created without a hop.
	ErrNilHopConfig = errors.New("tunnel hop configuration cannot be nil")
)

// HopParams carries the fields the build protocol negotiated for one hop.
// ReceiveFrom is nil for the gateway and SendTo is nil for the endpoint.
type HopParams struct {
	Peer            common.Hash
	LayerKey        cryptotunnel.TunnelKey
	IVKey           cryptotunnel.TunnelKey
	ReceiveTunnelID TunnelID
	SendTunnelID    TunnelID
	ReceiveFrom     *common.Hash
	SendTo          *common.Hash
	Expiration      time.Time
}

// HopConfig is one hop's view of a tunnel: its own identity, its own keys and
// the identities of its neighbours. A relay only ever holds the HopConfig for
// its own position; the ordered chain lives in TunnelConfig, which only the
// tunnel creator owns.
//
// A HopConfig is immutable. The AES key schedules are expanded once at
// construction and are safe to share between goroutines.
type HopConfig struct {
	peer common.Hash

	layerKey cryptotunnel.TunnelKey
	ivKey    cryptotunnel.TunnelKey

	layerCipher cipher.Block
	ivCipher    cipher.Block

	receiveTunnelID TunnelID
	sendTunnelID    TunnelID

	receiveFrom    common.Hash
	hasReceiveFrom bool
	sendTo         common.Hash
	hasSendTo      bool

	expiration time.Time
}

// NewHopConfig validates p and builds an immutable HopConfig from it.
//
// Returns ErrInvalidHopConfig (wrapped) if:
// - either key is all zero, or the layer key equals the IV key
// - the expiration is unset
// - the hop names itself as its predecessor or successor
func NewHopConfig(p HopParams) (*HopConfig, error) {
	if err := validateHopParams(p); err != nil {
		log.WithFields(logger.Fields{
			"at":   "NewHopConfig",
			"peer": shortHash(p.Peer),
		}).WithError(err).Error("rejected hop configuration")
		return nil, err
	}

	layerCipher, err := aes.NewCipher(p.LayerKey[:])
	if err != nil {
		return nil, oops.Wrapf(err, "failed to expand layer key")
	}
	ivCipher, err := aes.NewCipher(p.IVKey[:])
	if err != nil {
		return nil, oops.Wrapf(err, "failed to expand IV key")
	}

	h := &HopConfig{
		peer:            p.Peer,
		layerKey:        p.LayerKey,
		ivKey:           p.IVKey,
		layerCipher:     layerCipher,
		ivCipher:        ivCipher,
		receiveTunnelID: p.ReceiveTunnelID,
		sendTunnelID:    p.SendTunnelID,
		expiration:      p.Expiration,
	}
	if p.ReceiveFrom != nil {
		h.receiveFrom = *p.ReceiveFrom
		h.hasReceiveFrom = true
	}
	if p.SendTo != nil {
		h.sendTo = *p.SendTo
		h.hasSendTo = true
	}

	log.WithFields(logger.Fields{
		"at":         "NewHopConfig",
		"peer":       shortHash(h.peer),
		"receive_id": h.receiveTunnelID,
		"send_id":    h.sendTunnelID,
		"gateway":    h.IsGateway(),
		"endpoint":   h.IsEndpoint(),
	}).Debug("created hop configuration")
	return h, nil
}

func validateHopParams(p HopParams) error {
	var zero cryptotunnel.TunnelKey
	if p.LayerKey == zero {
		return oops.Wrapf(ErrInvalidHopConfig, "layer key is zero")
	}
	if p.IVKey == zero {
		return oops.Wrapf(ErrInvalidHopConfig, "IV key is zero")
	}
	if p.LayerKey == p.IVKey {
		return oops.Wrapf(ErrInvalidHopConfig, "layer key and IV key must differ")
	}
	if p.Expiration.IsZero() {
		return oops.Wrapf(ErrInvalidHopConfig, "expiration is not set")
	}
	if p.ReceiveFrom != nil && *p.ReceiveFrom == p.Peer {
		return oops.Wrapf(ErrInvalidHopConfig, "hop cannot receive from itself")
	}
	if p.SendTo != nil && *p.SendTo == p.Peer {
		return oops.Wrapf(ErrInvalidHopConfig, "hop cannot send to itself")
	}
	return nil
}

// Peer returns the identity hash of the router that owns this hop.
func (h *HopConfig) Peer() common.Hash {
	return h.peer
}

// LayerKey returns a copy of the payload key.
func (h *HopConfig) LayerKey() cryptotunnel.TunnelKey {
	return h.layerKey
}

// IVKey returns a copy of the chaining IV key.
func (h *HopConfig) IVKey() cryptotunnel.TunnelKey {
	return h.ivKey
}

func (h *HopConfig) ReceiveTunnelID() TunnelID {
	return h.receiveTunnelID
}

func (h *HopConfig) SendTunnelID() TunnelID {
	return h.sendTunnelID
}

// ReceiveFrom returns the expected predecessor. ok is false for the gateway.
func (h *HopConfig) ReceiveFrom() (peer common.Hash, ok bool) {
	return h.receiveFrom, h.hasReceiveFrom
}

// SendTo returns the expected successor. ok is false for the endpoint.
func (h *HopConfig) SendTo() (peer common.Hash, ok bool) {
	return h.sendTo, h.hasSendTo
}

func (h *HopConfig) Expiration() time.Time {
	return h.expiration
}

// IsGateway reports whether this hop is where traffic enters the tunnel.
func (h *HopConfig) IsGateway() bool {
	return !h.hasReceiveFrom
}

// IsEndpoint reports whether this hop is the last one.
func (h *HopConfig) IsEndpoint() bool {
	return !h.hasSendTo
}

// IsExpired reports whether now is past the hop's expiration.
func (h *HopConfig) IsExpired(now time.Time) bool {
	return now.After(h.expiration)
}

// Params returns the values this hop was built from. The returned struct owns
// fresh copies of the neighbour hashes.
func (h *HopConfig) Params() HopParams {
	p := HopParams{
		Peer:            h.peer,
		LayerKey:        h.layerKey,
		IVKey:           h.ivKey,
		ReceiveTunnelID: h.receiveTunnelID,
		SendTunnelID:    h.sendTunnelID,
		Expiration:      h.expiration,
	}
	if h.hasReceiveFrom {
		from := h.receiveFrom
		p.ReceiveFrom = &from
	}
	if h.hasSendTo {
		to := h.sendTo
		p.SendTo = &to
	}
	return p
}
