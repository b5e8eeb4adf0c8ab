package netconn

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/crypto"
	"github.com/nexusmmo/core/internal/wire"
)

// extMagic marks a pre-handshake extension frame rather than the start of
// a handshake-init frame (spec §4.4 "extension framing"). An init frame
// always begins with the DH prime's byte length, which for a 1024-bit
// prime is 128 and can never collide with this sentinel.
const extMagic uint32 = 0xFFFFFFFF

// Extension commands: small fixed frames exchanged before (or instead of)
// the DH handshake, used for keepalive and for a world server announcing
// itself to the lobby/channel it is paired with.
const (
	extCmdPing    uint32 = 1
	extCmdPong    uint32 = 2
	extCmdWorldUp uint32 = 3
)

const extFrameSize = 8 // magic(4) + command(4); param rides in a second read

// dhPublicKeySize is the byte length of a 1024-bit Diffie-Hellman value.
const dhPublicKeySize = crypto.DHKeySize / 8

// WorldUpHandler is invoked when a peer announces itself via the world-up
// extension frame. port is the announcing world's listen port.
type WorldUpHandler func(port uint32)

// StartHandshake is called once, immediately after a server-role
// connection is accepted, to push the DH parameters and our public key to
// the peer before any application data flows.
func (c *Connection) StartHandshake() error {
	if c.role != RoleServer {
		return nil
	}

	kp, err := crypto.GenerateDHKeyPair(c.params)
	if err != nil {
		return fmt.Errorf("generating handshake keypair: %w", err)
	}
	c.mu.Lock()
	c.keyPair = kp
	c.mu.Unlock()

	prime := c.params.Prime.Bytes()
	generator := uint32(c.params.Generator.Int64())
	pub := kp.PublicBytes()

	buf := make([]byte, 4+len(prime)+4+4+len(pub))
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(prime)))
	off += 4
	copy(buf[off:], prime)
	off += len(prime)
	binary.BigEndian.PutUint32(buf[off:], generator)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(len(pub)))
	off += 4
	copy(buf[off:], pub)

	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("writing handshake init: %w", err)
	}
	c.setStatus(StatusAwaitingEncryption)
	return nil
}

// SendPing writes a plaintext ping extension frame. Used as a keepalive on
// links that have not yet (or will never) complete the DH handshake.
func (c *Connection) SendPing() error {
	return c.writeExtensionFrame(extCmdPing, 0)
}

// SendWorldUp announces this process as a world server listening on port.
func (c *Connection) SendWorldUp(port uint32) error {
	return c.writeExtensionFrame(extCmdWorldUp, port)
}

func (c *Connection) writeExtensionFrame(cmd, param uint32) error {
	buf := make([]byte, extFrameSize)
	binary.BigEndian.PutUint32(buf[0:4], extMagic)
	binary.BigEndian.PutUint32(buf[4:8], cmd)
	paramBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(paramBuf, param)
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("writing extension frame: %w", err)
	}
	if _, err := c.conn.Write(paramBuf); err != nil {
		return fmt.Errorf("writing extension param: %w", err)
	}
	return nil
}

// readHandshakeOrExtension runs while Status == StatusConnected. It reads
// one leading 4-byte big-endian word and dispatches on whether it is the
// extension sentinel or the length of an incoming DH prime.
func (c *Connection) readHandshakeOrExtension() (*bus.Message, error) {
	var head [4]byte
	if _, err := io.ReadFull(c.conn, head[:]); err != nil {
		return nil, fmt.Errorf("reading frame head: %w", err)
	}
	word := binary.BigEndian.Uint32(head[:])

	if word == extMagic {
		return c.readExtensionFrame()
	}

	return c.readHandshakeInit(int(word))
}

func (c *Connection) readExtensionFrame() (*bus.Message, error) {
	var rest [8]byte
	if _, err := io.ReadFull(c.conn, rest[:]); err != nil {
		return nil, fmt.Errorf("reading extension frame: %w", err)
	}
	cmd := binary.BigEndian.Uint32(rest[0:4])
	param := binary.BigEndian.Uint32(rest[4:8])

	switch cmd {
	case extCmdPing:
		if err := c.writeExtensionFrame(extCmdPong, 0); err != nil {
			return nil, err
		}
		return nil, nil
	case extCmdPong:
		return nil, nil
	case extCmdWorldUp:
		return &bus.Message{
			Kind:         bus.KindWorldNotification,
			ConnectionID: c.id,
			Payload:      param,
		}, nil
	default:
		return nil, fmt.Errorf("unknown extension command %d", cmd)
	}
}

// readHandshakeInit parses the DH prime/generator/peer-public triple a
// server-role connection sent unprompted, then replies with our own
// public key and transitions straight to encrypted: the client side
// already has everything it needs to derive the shared secret.
func (c *Connection) readHandshakeInit(primeLen int) (*bus.Message, error) {
	if c.role != RoleClient {
		return nil, fmt.Errorf("unexpected handshake init on %v-role connection", c.role)
	}
	if primeLen <= 0 || primeLen > dhPublicKeySize {
		return nil, fmt.Errorf("implausible DH prime length %d", primeLen)
	}

	prime := make([]byte, primeLen)
	if _, err := io.ReadFull(c.conn, prime); err != nil {
		return nil, fmt.Errorf("reading DH prime: %w", err)
	}

	var genBuf, pubLenBuf [4]byte
	if _, err := io.ReadFull(c.conn, genBuf[:]); err != nil {
		return nil, fmt.Errorf("reading DH generator: %w", err)
	}
	if _, err := io.ReadFull(c.conn, pubLenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading DH peer public length: %w", err)
	}
	pubLen := binary.BigEndian.Uint32(pubLenBuf[:])
	if pubLen == 0 || int(pubLen) > dhPublicKeySize {
		return nil, fmt.Errorf("implausible DH public key length %d", pubLen)
	}
	peerPub := make([]byte, pubLen)
	if _, err := io.ReadFull(c.conn, peerPub); err != nil {
		return nil, fmt.Errorf("reading DH peer public: %w", err)
	}

	params := &crypto.DHParams{
		Prime:     new(big.Int).SetBytes(prime),
		Generator: new(big.Int).SetBytes(genBuf[:]),
	}
	kp, err := crypto.GenerateDHKeyPair(params)
	if err != nil {
		return nil, fmt.Errorf("generating handshake keypair: %w", err)
	}
	secret := kp.SharedSecret(peerPub)
	key := crypto.BlowfishKeyFromSecret(secret)
	cipher, err := crypto.NewBlowfishCipher(key)
	if err != nil {
		return nil, fmt.Errorf("deriving blowfish cipher: %w", err)
	}

	c.mu.Lock()
	c.keyPair = kp
	c.cipher = cipher
	c.mu.Unlock()

	if _, err := c.conn.Write(kp.PublicBytes()); err != nil {
		return nil, fmt.Errorf("writing handshake response: %w", err)
	}
	c.setStatus(StatusEncrypted)
	return &bus.Message{Kind: bus.KindConnectionEncrypted, ConnectionID: c.id}, nil
}

// readHandshakeFinish runs while Status == StatusAwaitingEncryption, on a
// server-role connection that already sent its init frame and is now
// waiting for the peer's public key.
func (c *Connection) readHandshakeFinish() (*bus.Message, error) {
	if c.role != RoleServer {
		return nil, fmt.Errorf("unexpected handshake finish on %v-role connection", c.role)
	}

	peerPub := make([]byte, dhPublicKeySize)
	if _, err := io.ReadFull(c.conn, peerPub); err != nil {
		return nil, fmt.Errorf("reading handshake response: %w", err)
	}

	c.mu.Lock()
	kp := c.keyPair
	c.mu.Unlock()
	if kp == nil {
		return nil, fmt.Errorf("handshake finished before init was sent")
	}

	secret := kp.SharedSecret(peerPub)
	key := crypto.BlowfishKeyFromSecret(secret)
	cipher, err := crypto.NewBlowfishCipher(key)
	if err != nil {
		return nil, fmt.Errorf("deriving blowfish cipher: %w", err)
	}

	c.mu.Lock()
	c.cipher = cipher
	c.mu.Unlock()
	c.setStatus(StatusEncrypted)
	return &bus.Message{Kind: bus.KindConnectionEncrypted, ConnectionID: c.id}, nil
}

// readPacket runs while Status == StatusEncrypted. Frame layout:
//
//	u16 LE total frame length (header included)
//	encrypted body, padded to a multiple of crypto.BlockSize:
//	  u32 LE real payload size
//	  payload bytes (first two bytes are the command code)
//	  zero padding
func (c *Connection) readPacket() (*bus.Message, error) {
	var header [2]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, fmt.Errorf("reading packet header: %w", err)
	}
	total := binary.LittleEndian.Uint16(header[:])
	if int(total) < 2 {
		return nil, fmt.Errorf("invalid frame length %d", total)
	}
	bodyLen := int(total) - 2
	if bodyLen == 0 || bodyLen%crypto.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted body length %d is not block-aligned", bodyLen)
	}
	if bodyLen > wire.MaxPacketSize {
		return nil, fmt.Errorf("frame body %d exceeds max packet size", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, fmt.Errorf("reading packet body: %w", err)
	}

	cipher := c.Cipher()
	if cipher == nil {
		return nil, fmt.Errorf("received encrypted frame before cipher was ready")
	}
	if err := cipher.Decrypt(body, 0, bodyLen); err != nil {
		return nil, fmt.Errorf("decrypting packet body: %w", err)
	}

	if bodyLen < 4 {
		return nil, fmt.Errorf("decrypted body too short for real-size prefix")
	}
	realSize := binary.LittleEndian.Uint32(body[0:4])
	if int(realSize) > bodyLen-4 {
		return nil, fmt.Errorf("real size %d exceeds decrypted body", realSize)
	}
	payload := body[4 : 4+realSize]

	return &bus.Message{
		Kind:         bus.KindPacket,
		ConnectionID: c.id,
		Packet:       payload,
	}, nil
}

// EncodePacket builds a ready-to-send encrypted frame from a plaintext
// payload (command code followed by arguments).
func EncodePacket(cipher *crypto.BlowfishCipher, payload []byte) ([]byte, error) {
	bodyLen := 4 + len(payload)
	padding := (crypto.BlockSize - bodyLen%crypto.BlockSize) % crypto.BlockSize
	bodyLen += padding

	body := make([]byte, bodyLen)
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(payload)))
	copy(body[4:], payload)

	if err := cipher.Encrypt(body, 0, bodyLen); err != nil {
		return nil, fmt.Errorf("encrypting packet body: %w", err)
	}

	frame := make([]byte, 2+bodyLen)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(2+bodyLen))
	copy(frame[2:], body)
	return frame, nil
}
