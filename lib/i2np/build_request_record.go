package i2np

import (
	"encoding/binary"
	"time"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/common/session_key"
	"github.com/go-i2p/crypto/rand"
	cryptotunnel "github.com/go-i2p/crypto/tunnel"
	"github.com/go-i2p/logger"
	"github.com/go-i2p/tunnelpipe/lib/tunnel"
	"github.com/go-i2p/tunnelpipe/lib/util/time/monotonic"
	"github.com/go-i2p/tunnelpipe/lib/util/time/skew"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

/*
I2P I2NP BuildRequestRecord
https://geti2p.net/spec/i2np

Cleartext:

+----+----+----+----+----+----+----+----+
| receive_tunnel    | our_ident         |
+----+----+----+----+                   +
|                                       |
+                                       +
|                                       |
+                                       +
|                                       |
+                   +----+----+----+----+
|                   | next_tunnel       |
+----+----+----+----+----+----+----+----+
| next_ident                            |
~                                       ~
+----+----+----+----+----+----+----+----+
| layer_key                             |
~                                       ~
+----+----+----+----+----+----+----+----+
| iv_key                                |
~                                       ~
+----+----+----+----+----+----+----+----+
| reply_key                             |
~                                       ~
+----+----+----+----+----+----+----+----+
| reply_iv                              |
+                                       +
|                                       |
+----+----+----+----+----+----+----+----+
|flag| request_time      | send_msg_id
+----+----+----+----+----+----+----+----+
     |                                  |
+----+                                  +
|         29 bytes padding              |
~                                       ~
+----+----+----+----+----+----+

receive_tunnel :: TunnelId, 4 bytes
our_ident      :: Hash, 32 bytes
next_tunnel    :: TunnelId, 4 bytes
next_ident     :: Hash, 32 bytes
layer_key      :: SessionKey, 32 bytes
iv_key         :: SessionKey, 32 bytes
reply_key      :: SessionKey, 32 bytes
reply_iv       :: 16 bytes
flag           :: Integer, 1 byte
request_time   :: Integer, 4 bytes, hours since the epoch
send_msg_id    :: Integer, 4 bytes
padding        :: 29 random bytes

total length: 222
*/

type BuildRequestRecord struct {
	ReceiveTunnel tunnel.TunnelID
	OurIdent      common.Hash
	NextTunnel    tunnel.TunnelID
	NextIdent     common.Hash
	LayerKey      session_key.SessionKey
	IVKey         session_key.SessionKey
	ReplyKey      session_key.SessionKey
	ReplyIV       [16]byte
	Flag          int
	RequestTime   time.Time
	SendMessageID int
	Padding       [29]byte
}

func ReadBuildRequestRecord(data []byte) (BuildRequestRecord, error) {
	record := BuildRequestRecord{}

	if len(data) < BUILD_REQUEST_RECORD_SIZE {
		log.WithFields(logger.Fields{
			"at":     "i2np.ReadBuildRequestRecord",
			"length": len(data),
		}).Error("build request record too short")
		return record, oops.Wrapf(ERR_BUILD_REQUEST_RECORD_NOT_ENOUGH_DATA, "got %d bytes, need %d", len(data), BUILD_REQUEST_RECORD_SIZE)
	}

	parseTunnelIdentifiers(data, &record)
	parseSessionKeys(data, &record)
	parseMetadata(data, &record)

	log.WithFields(logger.Fields{
		"at":             "i2np.ReadBuildRequestRecord",
		"receive_tunnel": record.ReceiveTunnel,
		"next_tunnel":    record.NextTunnel,
		"flag":           record.Flag,
	}).Debug("parsed_build_request_record")
	return record, nil
}

// parseTunnelIdentifiers extracts tunnel and identity information from the record data.
func parseTunnelIdentifiers(data []byte, record *BuildRequestRecord) {
	record.ReceiveTunnel = tunnel.TunnelID(common.Integer(data[offsetReceiveTunnel:offsetOurIdent]).Int())
	copy(record.OurIdent[:], data[offsetOurIdent:offsetNextTunnel])
	record.NextTunnel = tunnel.TunnelID(common.Integer(data[offsetNextTunnel:offsetNextIdent]).Int())
	copy(record.NextIdent[:], data[offsetNextIdent:offsetLayerKey])
}

// parseSessionKeys extracts all cryptographic keys from the record data.
func parseSessionKeys(data []byte, record *BuildRequestRecord) {
	copy(record.LayerKey[:], data[offsetLayerKey:offsetIVKey])
	copy(record.IVKey[:], data[offsetIVKey:offsetReplyKey])
	copy(record.ReplyKey[:], data[offsetReplyKey:offsetReplyIV])
	copy(record.ReplyIV[:], data[offsetReplyIV:offsetFlag])
}

// parseMetadata extracts flags, timestamps, and padding from the record data.
func parseMetadata(data []byte, record *BuildRequestRecord) {
	record.Flag = common.Integer(data[offsetFlag:offsetRequestTime]).Int()
	hours := common.Integer(data[offsetRequestTime:offsetSendMessageID]).Int()
	record.RequestTime = time.Unix(0, 0).UTC().Add(time.Duration(hours) * time.Hour)
	record.SendMessageID = common.Integer(data[offsetSendMessageID:offsetPadding]).Int()
	copy(record.Padding[:], data[offsetPadding:BUILD_REQUEST_RECORD_SIZE])
}

// Bytes serializes the record into its 222 byte cleartext form.
// RequestTime is truncated to the hour.
func (b *BuildRequestRecord) Bytes() []byte {
	out := make([]byte, BUILD_REQUEST_RECORD_SIZE)
	binary.BigEndian.PutUint32(out[offsetReceiveTunnel:], uint32(b.ReceiveTunnel))
	copy(out[offsetOurIdent:], b.OurIdent[:])
	binary.BigEndian.PutUint32(out[offsetNextTunnel:], uint32(b.NextTunnel))
	copy(out[offsetNextIdent:], b.NextIdent[:])
	copy(out[offsetLayerKey:], b.LayerKey[:])
	copy(out[offsetIVKey:], b.IVKey[:])
	copy(out[offsetReplyKey:], b.ReplyKey[:])
	copy(out[offsetReplyIV:], b.ReplyIV[:])
	out[offsetFlag] = byte(b.Flag)
	binary.BigEndian.PutUint32(out[offsetRequestTime:], uint32(b.RequestTime.Unix()/3600))
	binary.BigEndian.PutUint32(out[offsetSendMessageID:], uint32(b.SendMessageID))
	copy(out[offsetPadding:], b.Padding[:])
	return out
}

// NewBuildRequestRecord fills a record from the hop it describes. The reply
// key, reply IV and padding are random. The flag is left clear; set it with
// RecordsForTunnel, which knows the tunnel direction.
func NewBuildRequestRecord(hop *tunnel.HopConfig, requestTime time.Time) (BuildRequestRecord, error) {
	if hop == nil {
		return BuildRequestRecord{}, tunnel.ErrNilHopConfig
	}

	record := BuildRequestRecord{
		ReceiveTunnel: hop.ReceiveTunnelID(),
		OurIdent:      hop.Peer(),
		NextTunnel:    hop.SendTunnelID(),
		LayerKey:      session_key.SessionKey(hop.LayerKey()),
		IVKey:         session_key.SessionKey(hop.IVKey()),
		RequestTime:   requestTime.UTC().Truncate(time.Hour),
	}
	if next, ok := hop.SendTo(); ok {
		record.NextIdent = next
	}

	for _, field := range [][]byte{record.ReplyKey[:], record.ReplyIV[:], record.Padding[:]} {
		if _, err := rand.Read(field); err != nil {
			return BuildRequestRecord{}, oops.Wrapf(err, "failed to generate build request record randomness")
		}
	}
	var id [4]byte
	if _, err := rand.Read(id[:]); err != nil {
		return BuildRequestRecord{}, oops.Wrapf(err, "failed to generate send message ID")
	}
	record.SendMessageID = int(binary.BigEndian.Uint32(id[:]) >> 1)

	return record, nil
}

// IsEndpoint reports whether the record names no next hop.
func (b *BuildRequestRecord) IsEndpoint() bool {
	return b.NextIdent == common.Hash{}
}

// CheckRequestTime rejects a record whose request time is further from
// clock than skew.MaxBuildRequestSkew. A relay calls it before HopConfig so
// a replayed request cannot install keys.
func (b *BuildRequestRecord) CheckRequestTime(clock monotonic.Source) error {
	if err := skew.Validate(clock, b.RequestTime, skew.MaxBuildRequestSkew); err != nil {
		return oops.Wrapf(err, "build request for tunnel %d", b.ReceiveTunnel)
	}
	return nil
}

// HopConfig turns the record into the relay's single-hop view.
//
// The record does not say who the predecessor is; the relay supplies it from
// the link the build message arrived on, or nil when the record is flagged as
// an inbound gateway. An all-zero next_ident makes the hop an endpoint.
func (b *BuildRequestRecord) HopConfig(receiveFrom *common.Hash, expiration time.Time) (*tunnel.HopConfig, error) {
	if b.Flag&FLAG_INBOUND_GATEWAY != 0 && receiveFrom != nil {
		return nil, oops.Wrapf(ERR_BUILD_REQUEST_RECORD_INCONSISTENT, "inbound gateway record given a predecessor")
	}
	if b.Flag&FLAG_OUTBOUND_ENDPOINT != 0 && !b.IsEndpoint() {
		return nil, oops.Wrapf(ERR_BUILD_REQUEST_RECORD_INCONSISTENT, "outbound endpoint record names a next hop")
	}

	p := tunnel.HopParams{
		Peer:            b.OurIdent,
		LayerKey:        cryptotunnel.TunnelKey(b.LayerKey),
		IVKey:           cryptotunnel.TunnelKey(b.IVKey),
		ReceiveTunnelID: b.ReceiveTunnel,
		Expiration:      expiration,
	}
	if receiveFrom != nil {
		from := *receiveFrom
		p.ReceiveFrom = &from
	}
	if !b.IsEndpoint() {
		next := b.NextIdent
		p.SendTo = &next
		p.SendTunnelID = b.NextTunnel
	}

	hop, err := tunnel.NewHopConfig(p)
	if err != nil {
		return nil, oops.Wrapf(err, "build request record does not describe a valid hop")
	}
	return hop, nil
}

// RecordsForTunnel produces one record per hop of cfg, gateway first.
// The inbound gateway and the outbound endpoint carry their flag bits.
func RecordsForTunnel(cfg *tunnel.TunnelConfig, now time.Time) ([]BuildRequestRecord, error) {
	if cfg == nil {
		return nil, tunnel.ErrNilTunnelConfig
	}

	records := make([]BuildRequestRecord, cfg.Length())
	for i := range records {
		record, err := NewBuildRequestRecord(cfg.Hop(i), now)
		if err != nil {
			return nil, oops.Wrapf(err, "hop %d", i)
		}
		switch {
		case i == 0 && cfg.Direction() == tunnel.Inbound:
			record.Flag |= FLAG_INBOUND_GATEWAY
		case i == cfg.Length()-1 && cfg.Direction() == tunnel.Outbound:
			record.Flag |= FLAG_OUTBOUND_ENDPOINT
		}
		records[i] = record
	}

	log.WithFields(logger.Fields{
		"at":        "i2np.RecordsForTunnel",
		"hop_count": len(records),
		"direction": cfg.Direction().String(),
	}).Debug("created_build_request_records")
	return records, nil
}
