package tunnel

import (
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// GatewayProcessor applies hop 0's layer to a message entering the tunnel.
// There is no predecessor to check: the gateway is where traffic comes in
// from outside the path. Expiration and length are still enforced.
type GatewayProcessor struct {
	*Processor
}

// NewGatewayProcessor creates the processor for the tunnel's first hop.
//
// Returns ErrNilHopConfig if hop is nil and ErrInvalidHopConfig if hop has a
// configured predecessor (it is not a gateway). A nil clock selects the
// router's monotonic clock.
func NewGatewayProcessor(hop *HopConfig, clock Clock) (*GatewayProcessor, error) {
	if hop == nil {
		return nil, ErrNilHopConfig
	}
	if !hop.IsGateway() {
		return nil, oops.Wrapf(ErrInvalidHopConfig, "gateway hop %s has a predecessor", shortHash(hop.Peer()))
	}

	gp := &GatewayProcessor{Processor: newProcessor(RoleGateway, hop, anyPredecessor{}, clock)}

	log.WithFields(logger.Fields{
		"at":         "NewGatewayProcessor",
		"peer":       shortHash(hop.Peer()),
		"receive_id": hop.ReceiveTunnelID(),
	}).Debug("created gateway processor")
	return gp, nil
}
