// Package crypto implements the cryptographic primitives the encrypted
// server-to-server and server-to-client connection needs: Blowfish ECB
// framing (post-handshake transport) and Diffie-Hellman key agreement (the
// handshake itself).
package crypto

import (
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// BlockSize is the Blowfish cipher block size in bytes.
const BlockSize = blowfish.BlockSize

// BlowfishCipher wraps Blowfish ECB encryption/decryption for the
// connection's packet framing. ECB is what the wire protocol specifies:
// each 8-byte block is encrypted independently, with the padded-size
// framing in internal/netconn guaranteeing block alignment.
type BlowfishCipher struct {
	cipher *blowfish.Cipher
}

// NewBlowfishCipher builds a cipher from an arbitrary-length key. The
// handshake (internal/netconn/framing.go) always derives an 8-byte key from the
// shared DH secret, but the type accepts any length blowfish.NewCipher
// supports so it can also wrap a statically configured key.
func NewBlowfishCipher(key []byte) (*BlowfishCipher, error) {
	c, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating blowfish cipher: %w", err)
	}
	return &BlowfishCipher{cipher: c}, nil
}

// Encrypt encrypts data[offset:offset+size] in place. size must be a
// multiple of BlockSize.
func (b *BlowfishCipher) Encrypt(data []byte, offset, size int) error {
	if size%BlockSize != 0 {
		return fmt.Errorf("blowfish encrypt: size %d is not a multiple of %d", size, BlockSize)
	}
	if offset+size > len(data) {
		return fmt.Errorf("blowfish encrypt: offset %d + size %d exceeds data length %d", offset, size, len(data))
	}
	for i := offset; i < offset+size; i += BlockSize {
		b.cipher.Encrypt(data[i:i+BlockSize], data[i:i+BlockSize])
	}
	return nil
}

// Decrypt decrypts data[offset:offset+size] in place. size must be a
// multiple of BlockSize.
func (b *BlowfishCipher) Decrypt(data []byte, offset, size int) error {
	if size%BlockSize != 0 {
		return fmt.Errorf("blowfish decrypt: size %d is not a multiple of %d", size, BlockSize)
	}
	if offset+size > len(data) {
		return fmt.Errorf("blowfish decrypt: offset %d + size %d exceeds data length %d", offset, size, len(data))
	}
	for i := offset; i < offset+size; i += BlockSize {
		b.cipher.Decrypt(data[i:i+BlockSize], data[i:i+BlockSize])
	}
	return nil
}
