// Package wire implements the shared wire formats: the Packet byte buffer
// (C1 data model), the relay envelope used to bridge channel<->world<->
// channel traffic, and the data-sync / character-login packet codecs
// (spec §6).
package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// MaxPacketSize is the hard cap on a single packet's payload, per spec §3.
const MaxPacketSize = 16 * 1024

// Packet is an append/read byte buffer with a cursor that can rewind,
// little- and big-endian accessors, and a size cap enforced on every
// append. Invariant: cursor <= size <= capacity.
type Packet struct {
	buf    []byte
	cursor int
}

// NewPacket returns an empty packet ready for appending.
func NewPacket() *Packet {
	return &Packet{buf: make([]byte, 0, 256)}
}

// NewPacketFromBytes wraps an existing byte slice for reading; the cursor
// starts at 0.
func NewPacketFromBytes(data []byte) *Packet {
	return &Packet{buf: data}
}

// Size returns the number of bytes currently in the buffer.
func (p *Packet) Size() int { return len(p.buf) }

// Bytes returns the full underlying buffer (not just the unread tail).
func (p *Packet) Bytes() []byte { return p.buf }

// Remaining returns the number of unread bytes from the cursor to the end.
func (p *Packet) Remaining() int { return len(p.buf) - p.cursor }

// Cursor returns the current read/write cursor position.
func (p *Packet) Cursor() int { return p.cursor }

// Rewind resets the cursor to the start of the buffer.
func (p *Packet) Rewind() { p.cursor = 0 }

// Seek moves the cursor to an absolute offset.
func (p *Packet) Seek(offset int) error {
	if offset < 0 || offset > len(p.buf) {
		return fmt.Errorf("packet seek: offset %d out of range [0,%d]", offset, len(p.buf))
	}
	p.cursor = offset
	return nil
}

// Clear empties the buffer and resets the cursor; any unread bytes are
// discarded.
func (p *Packet) Clear() {
	p.buf = p.buf[:0]
	p.cursor = 0
}

func (p *Packet) ensure(n int) error {
	if len(p.buf)+n > MaxPacketSize {
		return fmt.Errorf("packet write: would exceed max packet size %d", MaxPacketSize)
	}
	return nil
}

// --- little-endian writers ---

func (p *Packet) WriteU8(v uint8) error {
	if err := p.ensure(1); err != nil {
		return err
	}
	p.buf = append(p.buf, v)
	return nil
}

func (p *Packet) WriteU16LE(v uint16) error {
	if err := p.ensure(2); err != nil {
		return err
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	p.buf = append(p.buf, b[:]...)
	return nil
}

func (p *Packet) WriteU32LE(v uint32) error {
	if err := p.ensure(4); err != nil {
		return err
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	p.buf = append(p.buf, b[:]...)
	return nil
}

func (p *Packet) WriteI32LE(v int32) error { return p.WriteU32LE(uint32(v)) }

func (p *Packet) WriteBytes(data []byte) error {
	if err := p.ensure(len(data)); err != nil {
		return err
	}
	p.buf = append(p.buf, data...)
	return nil
}

// WriteString16 writes a u16 length prefix followed by UTF-8 bytes.
func (p *Packet) WriteString16(s string) error {
	data := []byte(s)
	if err := p.WriteU16LE(uint16(len(data))); err != nil {
		return err
	}
	return p.WriteBytes(data)
}

// WriteStringUTF16 writes a null-terminated UTF-16LE string, matching the
// client-facing wire convention the original server uses for text fields.
func (p *Packet) WriteStringUTF16(s string) error {
	for _, r := range utf16.Encode([]rune(s)) {
		if err := p.WriteU16LE(r); err != nil {
			return err
		}
	}
	return p.WriteU16LE(0)
}

// --- readers (advance the cursor; big-endian variants for the handshake
// magic frames described in spec §4.4) ---

func (p *Packet) need(n int) error {
	if p.cursor+n > len(p.buf) {
		return fmt.Errorf("packet read: need %d bytes at cursor %d, have %d", n, p.cursor, len(p.buf))
	}
	return nil
}

func (p *Packet) ReadU8() (uint8, error) {
	if err := p.need(1); err != nil {
		return 0, err
	}
	v := p.buf[p.cursor]
	p.cursor++
	return v, nil
}

func (p *Packet) ReadU16LE() (uint16, error) {
	if err := p.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(p.buf[p.cursor:])
	p.cursor += 2
	return v, nil
}

func (p *Packet) ReadU32LE() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(p.buf[p.cursor:])
	p.cursor += 4
	return v, nil
}

func (p *Packet) ReadI32LE() (int32, error) {
	v, err := p.ReadU32LE()
	return int32(v), err
}

func (p *Packet) ReadU32BE() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(p.buf[p.cursor:])
	p.cursor += 4
	return v, nil
}

func (p *Packet) ReadBytes(n int) ([]byte, error) {
	if err := p.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p.buf[p.cursor:p.cursor+n])
	p.cursor += n
	return out, nil
}

// ReadString16 reads a u16 length prefix followed by that many UTF-8 bytes.
func (p *Packet) ReadString16() (string, error) {
	n, err := p.ReadU16LE()
	if err != nil {
		return "", err
	}
	data, err := p.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadStringUTF16 reads a null-terminated UTF-16LE string.
func (p *Packet) ReadStringUTF16() (string, error) {
	var units []uint16
	for {
		u, err := p.ReadU16LE()
		if err != nil {
			return "", err
		}
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}
