package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DHKeySize is the bit length of the Diffie-Hellman prime used by the
// handshake (spec: "1024-bit value").
const DHKeySize = 1024

// DHGenerator is the fixed generator used for the multiplicative group.
var DHGenerator = big.NewInt(2)

// DHParams is the shared (prime, generator) pair that both sides of a
// handshake agree on before exchanging public keys. The prime may come
// from config (diffie_hellman_key_pair) so that it is stable across
// restarts, or be generated fresh at boot if config omits it (spec open
// question, resolved in DESIGN.md: treat as optional, generate if absent).
type DHParams struct {
	Prime     *big.Int
	Generator *big.Int
}

// GenerateDHParams builds a fresh random 1024-bit prime (rand.Prime; not a
// safe prime) and the standard generator. The prime search is relatively
// expensive, so the processes run it once at boot, not per connection.
func GenerateDHParams() (*DHParams, error) {
	prime, err := rand.Prime(rand.Reader, DHKeySize)
	if err != nil {
		return nil, fmt.Errorf("generating dh prime: %w", err)
	}
	return &DHParams{Prime: prime, Generator: new(big.Int).Set(DHGenerator)}, nil
}

// DHParamsFromHex rebuilds DHParams from a config-supplied hex-encoded
// prime (config key diffie_hellman_key_pair).
func DHParamsFromHex(hexPrime string) (*DHParams, error) {
	prime, ok := new(big.Int).SetString(hexPrime, 16)
	if !ok {
		return nil, fmt.Errorf("parsing dh prime from hex: invalid hex string")
	}
	return &DHParams{Prime: prime, Generator: new(big.Int).Set(DHGenerator)}, nil
}

// Hex returns the prime encoded as hex, suitable for caching back into
// config.
func (p *DHParams) Hex() string {
	return p.Prime.Text(16)
}

// DHKeyPair is one side's private/public key for a single handshake.
type DHKeyPair struct {
	params  *DHParams
	private *big.Int
	public  *big.Int
}

// GenerateDHKeyPair derives a fresh private exponent and the corresponding
// public value g^private mod p.
func GenerateDHKeyPair(params *DHParams) (*DHKeyPair, error) {
	private, err := rand.Int(rand.Reader, params.Prime)
	if err != nil {
		return nil, fmt.Errorf("generating dh private key: %w", err)
	}
	public := new(big.Int).Exp(params.Generator, private, params.Prime)
	return &DHKeyPair{params: params, private: private, public: public}, nil
}

// PublicBytes returns the public value as fixed-width big-endian bytes
// sized to the prime (spec: "the shared-data transport is 128 bytes" for a
// 1024-bit prime).
func (kp *DHKeyPair) PublicBytes() []byte {
	return padBigEndian(kp.public, DHKeySize/8)
}

// SharedSecret computes (peerPublic)^private mod p, the Diffie-Hellman
// shared secret, for use in deriving the Blowfish session key.
func (kp *DHKeyPair) SharedSecret(peerPublic []byte) []byte {
	peer := new(big.Int).SetBytes(peerPublic)
	secret := new(big.Int).Exp(peer, kp.private, kp.params.Prime)
	return padBigEndian(secret, DHKeySize/8)
}

// BlowfishKeyFromSecret takes the low 8 bytes of the shared secret as the
// 64-bit Blowfish session key, per spec §6.
func BlowfishKeyFromSecret(secret []byte) []byte {
	if len(secret) < BlockSize {
		key := make([]byte, BlockSize)
		copy(key[BlockSize-len(secret):], secret)
		return key
	}
	return secret[len(secret)-BlockSize:]
}

func padBigEndian(v *big.Int, size int) []byte {
	raw := v.Bytes()
	if len(raw) >= size {
		return raw[len(raw)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(raw):], raw)
	return out
}
