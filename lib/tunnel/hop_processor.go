package tunnel

import (
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// HopProcessor peels one layer at an intermediate hop. It only accepts
// messages that claim to come from the hop's configured predecessor.
type HopProcessor struct {
	*Processor
}

// NewHopProcessor creates the processor for a participant hop.
//
// Returns ErrNilHopConfig if hop is nil and ErrInvalidHopConfig if hop has no
// predecessor (that is a gateway, see NewGatewayProcessor). A nil clock
// selects the router's monotonic clock.
func NewHopProcessor(hop *HopConfig, clock Clock) (*HopProcessor, error) {
	if hop == nil {
		return nil, ErrNilHopConfig
	}
	from, ok := hop.ReceiveFrom()
	if !ok {
		return nil, oops.Wrapf(ErrInvalidHopConfig, "participant hop %s has no predecessor", shortHash(hop.Peer()))
	}

	hp := &HopProcessor{Processor: newProcessor(RoleParticipant, hop, fixedPredecessor{expected: from}, clock)}

	log.WithFields(logger.Fields{
		"at":         "NewHopProcessor",
		"peer":       shortHash(hop.Peer()),
		"from":       shortHash(from),
		"receive_id": hop.ReceiveTunnelID(),
		"send_id":    hop.SendTunnelID(),
	}).Debug("created hop processor")
	return hp, nil
}
