package tunnel

import (
	"errors"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/logger"
)

// ErrNilTunnelConfig is returned when an endpoint is created without a path.
var ErrNilTunnelConfig = errors.New("tunnel configuration cannot be nil")

// EndpointProcessor removes the last layer at the tunnel's terminal hop.
// It holds the full path so it can resolve which peer is allowed to deliver
// to it, and peels with the last hop's keys.
//
// After a successful RetrievePreprocessedData the payload region equals what
// the creator layered. The chaining IV region is consumed state: its value is
// undefined and callers must not depend on it.
type EndpointProcessor struct {
	*Processor
	path *TunnelConfig
}

// NewEndpointProcessor creates the processor for path's last hop.
// A nil clock selects the router's monotonic clock.
func NewEndpointProcessor(path *TunnelConfig, clock Clock) (*EndpointProcessor, error) {
	if path == nil {
		return nil, ErrNilTunnelConfig
	}
	hop := path.Endpoint()

	ep := &EndpointProcessor{
		Processor: newProcessor(RoleEndpoint, hop, pathPredecessor{path: path}, clock),
		path:      path,
	}

	log.WithFields(logger.Fields{
		"at":         "NewEndpointProcessor",
		"peer":       shortHash(hop.Peer()),
		"hop_count":  path.Length(),
		"direction":  path.Direction().String(),
		"receive_id": hop.ReceiveTunnelID(),
	}).Debug("created endpoint processor")
	return ep, nil
}

// RetrievePreprocessedData validates the claimed predecessor against the
// path, peels the final layer of buf[offset:offset+length] in place and
// reports whether the payload may be handed to the delivery layer.
//
// Garbage that has a valid length decrypts to garbage and still returns true;
// the checksum in the delivery layer is what rejects it.
func (e *EndpointProcessor) RetrievePreprocessedData(buf []byte, offset, length int, claimedPredecessor common.Hash) bool {
	return e.Process(buf, offset, length, claimedPredecessor)
}

// Path returns the tunnel this endpoint terminates.
func (e *EndpointProcessor) Path() *TunnelConfig {
	return e.path
}

// Payload returns the recovered payload of a message this endpoint has
// processed. It aliases msg and excludes the chaining IV.
func (e *EndpointProcessor) Payload(msg []byte) []byte {
	if len(msg) < IVLength {
		log.WithFields(logger.Fields{
			"at":     "(EndpointProcessor) Payload",
			"length": len(msg),
		}).Warn("message shorter than chaining IV")
		return nil
	}
	return PayloadOf(msg)
}
