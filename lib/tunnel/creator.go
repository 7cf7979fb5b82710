package tunnel

import (
	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// EncryptLayers applies every hop's layer to msg in place, endpoint first and
// gateway last, so that gateway, participants and endpoint peeling in path
// order recover the original payload. msg is [chaining IV][payload].
//
// Only the tunnel creator can do this: it needs every hop's keys.
func (t *TunnelConfig) EncryptLayers(msg []byte) error {
	if err := checkMessageLength(len(msg)); err != nil {
		return err
	}
	for i := len(t.hops) - 1; i >= 0; i-- {
		addLayer(t.hops[i], msg)
	}
	return nil
}

// NewMessage builds a layered message for payload: a fresh random chaining
// IV followed by a copy of payload, with all layers applied. payload must be
// a non-empty multiple of BlockSize.
func (t *TunnelConfig) NewMessage(payload []byte) ([]byte, error) {
	msg := make([]byte, IVLength+len(payload))
	if err := checkMessageLength(len(msg)); err != nil {
		return nil, err
	}
	if _, err := rand.Read(msg[:IVLength]); err != nil {
		return nil, oops.Wrapf(err, "failed to generate chaining IV")
	}
	copy(msg[IVLength:], payload)

	if err := t.EncryptLayers(msg); err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"at":          "(TunnelConfig) NewMessage",
		"payload_len": len(payload),
		"hop_count":   len(t.hops),
	}).Debug("layered tunnel message")
	return msg, nil
}

// Stages builds the processors for every hop in path order: a gateway,
// N-2 participants and the endpoint. Each stage expects the previous hop's
// peer as the claimed predecessor.
//
// Holding every stage means holding every key, so this is only for the
// creator's own use (local simulation, self tests). A relay builds the single
// processor for the HopConfig it was given.
func (t *TunnelConfig) Stages(clock Clock) ([]Stage, error) {
	stages := make([]Stage, 0, len(t.hops))

	gw, err := NewGatewayProcessor(t.Gateway(), clock)
	if err != nil {
		return nil, err
	}
	stages = append(stages, gw)

	for i := 1; i < len(t.hops)-1; i++ {
		hp, err := NewHopProcessor(t.hops[i], clock)
		if err != nil {
			return nil, oops.Wrapf(err, "hop %d", i)
		}
		stages = append(stages, hp)
	}

	ep, err := NewEndpointProcessor(t, clock)
	if err != nil {
		return nil, err
	}
	return append(stages, ep), nil
}
