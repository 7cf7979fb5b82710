package i2np

import (
	"errors"
)

// BuildRequestRecord layout. Offsets are into the 222 byte cleartext record.
const (
	BUILD_REQUEST_RECORD_SIZE = 222

	offsetReceiveTunnel = 0
	offsetOurIdent      = 4
	offsetNextTunnel    = 36
	offsetNextIdent     = 40
	offsetLayerKey      = 72
	offsetIVKey         = 104
	offsetReplyKey      = 136
	offsetReplyIV       = 168
	offsetFlag          = 184
	offsetRequestTime   = 185
	offsetSendMessageID = 189
	offsetPadding       = 193
)

// Flag bits of a BuildRequestRecord.
const (
	// FLAG_INBOUND_GATEWAY lets the hop accept messages from anyone.
	FLAG_INBOUND_GATEWAY = 0x80
	// FLAG_OUTBOUND_ENDPOINT lets the hop send messages to anyone.
	FLAG_OUTBOUND_ENDPOINT = 0x40
)

// I2NP Error Constants
// These use errors.New (not oops.Errorf) so callers can match them with errors.Is().
var (
	ERR_BUILD_REQUEST_RECORD_NOT_ENOUGH_DATA = errors.New("not enough i2np build request record data")
	ERR_BUILD_REQUEST_RECORD_INCONSISTENT    = errors.New("i2np build request record flags disagree with hop position")
)
