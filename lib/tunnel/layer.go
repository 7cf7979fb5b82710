package tunnel

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/samber/oops"
)

const (
	// BlockSize is the AES block size; the payload is processed in whole blocks.
	BlockSize = aes.BlockSize
	// IVLength is the size of the chaining IV field at the front of a message.
	IVLength = 16
	// KeySize is the size of the layer and IV keys (AES-256).
	KeySize = 32
	// MinMessageLength is one IV field plus one payload block.
	MinMessageLength = IVLength + BlockSize
)

// ErrInvalidMessageLength is returned when a buffer cannot be a tunnel message:
// shorter than MinMessageLength, payload not a whole number of blocks, or an
// offset/length pair outside the buffer.
var ErrInvalidMessageLength = errors.New("invalid tunnel message length")

// ValidMessageLength reports whether n bytes can hold [IV][payload] with a
// non-empty, block aligned payload.
func ValidMessageLength(n int) bool {
	return n >= MinMessageLength && (n-IVLength)%BlockSize == 0
}

func checkMessageLength(n int) error {
	if !ValidMessageLength(n) {
		return oops.Wrapf(ErrInvalidMessageLength, "got %d bytes, need %d + k*%d", n, IVLength, BlockSize)
	}
	return nil
}

// PayloadOf returns the payload region of a message, everything after the
// chaining IV. The slice aliases msg.
func PayloadOf(msg []byte) []byte {
	return msg[IVLength:]
}

// peelLayer removes one hop's layer from msg in place.
//
//	iv'      = ECB-Decrypt(ivKey, iv)
//	payload' = CBC-Decrypt(layerKey, iv', payload)
//	msg      = iv' || payload'
//
// msg must satisfy ValidMessageLength.
func peelLayer(h *HopConfig, msg []byte) {
	var iv [IVLength]byte
	ecbDecrypt(h.ivCipher, iv[:], msg[:IVLength])

	payload := msg[IVLength:]
	cipher.NewCBCDecrypter(h.layerCipher, iv[:]).CryptBlocks(payload, payload)

	copy(msg[:IVLength], iv[:])
}

// addLayer is the inverse of peelLayer: what the tunnel creator applies for
// each hop, endpoint first, before the message reaches the gateway.
//
//	payload = CBC-Encrypt(layerKey, iv', payload')
//	iv      = ECB-Encrypt(ivKey, iv')
func addLayer(h *HopConfig, msg []byte) {
	payload := msg[IVLength:]
	// NewCBCEncrypter copies the IV, so the field can be overwritten below.
	cipher.NewCBCEncrypter(h.layerCipher, msg[:IVLength]).CryptBlocks(payload, payload)
	ecbEncrypt(h.ivCipher, msg[:IVLength], msg[:IVLength])
}

// ecbDecrypt decrypts src into dst block by block with no chaining.
func ecbDecrypt(b cipher.Block, dst, src []byte) {
	for i := 0; i+BlockSize <= len(src); i += BlockSize {
		b.Decrypt(dst[i:i+BlockSize], src[i:i+BlockSize])
	}
}

func ecbEncrypt(b cipher.Block, dst, src []byte) {
	for i := 0; i+BlockSize <= len(src); i += BlockSize {
		b.Encrypt(dst[i:i+BlockSize], src[i:i+BlockSize])
	}
}
