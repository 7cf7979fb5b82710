// Package tunnel implements the I2P tunnel cipher pipeline: the per-hop
// configuration, and the transforms the gateway, the participants and the
// endpoint apply to a tunnel message as it crosses the path.
//
// # Overview
//
// A tunnel is a fixed, unidirectional path of 2 to 8 routers:
//
//	origin → Gateway(hop 0) → Participant(hop 1) → … → Endpoint(hop N-1)
//
// Each hop owns a layer key and an IV key. A message is
//
//	[chaining IV : 16 bytes][payload : k*16 bytes]
//
// and every hop peels one layer in place:
//
//	iv'      = AES-ECB-Decrypt(ivKey, iv)
//	payload' = AES-CBC-Decrypt(layerKey, iv', payload)
//
// The creator of the tunnel applies the inverse for hops N-1 down to 0
// (TunnelConfig.EncryptLayers), so that after the endpoint the payload is the
// original plaintext. The chaining IV after the endpoint is not part of the
// contract.
//
// # Views
//
// HopConfig is what a relay holds: its own keys and neighbours. TunnelConfig
// is the ordered chain and is only held by the creator. The endpoint of an
// inbound tunnel is the creator, which is why EndpointProcessor takes a
// TunnelConfig.
//
// # Roles
//
// GatewayProcessor, HopProcessor and EndpointProcessor all wrap the same
// Processor and differ in one thing, the predecessor check:
//
//   - Gateway: none, traffic enters from outside the path
//   - Participant: the claimed sender must equal the hop's ReceiveFrom
//   - Endpoint: the claimed sender must equal the path's hop N-2
//
// All three reject expired hops. Checks run before any byte is written, so a
// rejected message is untouched.
//
// # Integrity
//
// The pipeline authenticates path adjacency only. A tampered message decrypts
// to garbage and is caught by the checksum in the delivery layer above.
//
// # Thread Safety
//
// HopConfig, TunnelConfig and all processors are immutable. Concurrent calls
// are safe provided each message has its own buffer.
//
// # Usage Example
//
//	cfg, err := tunnel.NewBuilder().Build(tunnel.BuildRequest{Peers: peers})
//	if err != nil {
//	    return err
//	}
//	msg, err := cfg.NewMessage(payload)
//	stages, err := cfg.Stages(clock)
//	from := common.Hash{}
//	for i, stage := range stages {
//	    if !stage.Process(msg, 0, len(msg), from) {
//	        return errDropped
//	    }
//	    from = cfg.Hop(i).Peer()
//	}
//	// tunnel.PayloadOf(msg) now equals payload
package tunnel
