package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlowfishRoundTrip(t *testing.T) {
	key := []byte("01234567")
	c, err := NewBlowfishCipher(key)
	require.NoError(t, err)

	plain := []byte("ABCDEFGHIJKLMNOP") // 16 bytes, 2 blocks
	buf := append([]byte(nil), plain...)

	require.NoError(t, c.Encrypt(buf, 0, len(buf)))
	assert.NotEqual(t, plain, buf)

	require.NoError(t, c.Decrypt(buf, 0, len(buf)))
	assert.Equal(t, plain, buf)
}

func TestBlowfishRejectsUnalignedSize(t *testing.T) {
	c, err := NewBlowfishCipher([]byte("01234567"))
	require.NoError(t, err)

	buf := make([]byte, 10)
	assert.Error(t, c.Encrypt(buf, 0, 10))
}

func TestDHSharedSecretAgrees(t *testing.T) {
	params, err := DHParamsFromHex("ffffffffffffffffc90fdaa22168c234c4c6628b80dc1cd129024e088a67cc74020bbea63b139b22514a08798e3404ddef9519b3cd3a431b302b0a6df25f14374fe1356d6d51c245e485b576625e7ec6f44c42e9a637ed6b0bff5cb6f406b7edee386bfb5a899fa5ae9f24117c4b1fe649286651ece45b3dc2007cb8a163bf0598da48361c55d39a69163fa8fd24cf5f83655d23dca3ad961c62f356208552bb9ed529077096966d670c354e4abc9804f1746c08ca237327ffffffffffffffff")
	require.NoError(t, err)

	alice, err := GenerateDHKeyPair(params)
	require.NoError(t, err)
	bob, err := GenerateDHKeyPair(params)
	require.NoError(t, err)

	aliceSecret := alice.SharedSecret(bob.PublicBytes())
	bobSecret := bob.SharedSecret(alice.PublicBytes())
	assert.True(t, bytes.Equal(aliceSecret, bobSecret))
	assert.Len(t, aliceSecret, DHKeySize/8)
}

func TestBlowfishKeyFromSecretTakesLow8Bytes(t *testing.T) {
	secret := make([]byte, 128)
	for i := range secret {
		secret[i] = byte(i)
	}
	key := BlowfishKeyFromSecret(secret)
	require.Len(t, key, BlockSize)
	assert.Equal(t, secret[len(secret)-BlockSize:], key)
}

func TestBlowfishKeyFromSecretPadsShortSecret(t *testing.T) {
	key := BlowfishKeyFromSecret([]byte{0x01, 0x02})
	require.Len(t, key, BlockSize)
	assert.Equal(t, byte(0x01), key[BlockSize-2])
	assert.Equal(t, byte(0x02), key[BlockSize-1])
}
