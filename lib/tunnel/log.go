package tunnel

import (
	"encoding/hex"

	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// shortHash renders the first four bytes of an identity for log fields.
// Full identities never go to the log.
func shortHash(h common.Hash) string {
	return hex.EncodeToString(h[:4])
}
