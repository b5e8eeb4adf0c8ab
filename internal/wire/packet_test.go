package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketWriteReadRoundTrip(t *testing.T) {
	p := NewPacket()
	require.NoError(t, p.WriteU8(0x42))
	require.NoError(t, p.WriteU16LE(0x1234))
	require.NoError(t, p.WriteU32LE(0xdeadbeef))
	require.NoError(t, p.WriteString16("hello"))

	p.Rewind()
	b, err := p.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), b)

	u16, err := p.ReadU16LE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := p.ReadU32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	s, err := p.ReadString16()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestPacketUTF16RoundTrip(t *testing.T) {
	p := NewPacket()
	require.NoError(t, p.WriteStringUTF16("Zone100"))
	p.Rewind()
	s, err := p.ReadStringUTF16()
	require.NoError(t, err)
	assert.Equal(t, "Zone100", s)
}

func TestPacketRejectsOversize(t *testing.T) {
	p := NewPacket()
	big := make([]byte, MaxPacketSize+1)
	assert.Error(t, p.WriteBytes(big))
}

func TestPacketReadPastEndErrors(t *testing.T) {
	p := NewPacket()
	require.NoError(t, p.WriteU8(1))
	p.Rewind()
	_, err := p.ReadU8()
	require.NoError(t, err)
	_, err = p.ReadU8()
	assert.Error(t, err)
}

func TestPacketClearResetsBuffer(t *testing.T) {
	p := NewPacket()
	require.NoError(t, p.WriteU32LE(1))
	p.Clear()
	assert.Equal(t, 0, p.Size())
	assert.Equal(t, 0, p.Cursor())
}

func TestPacketBigEndianRead(t *testing.T) {
	p := NewPacketFromBytes([]byte{0x00, 0x00, 0x00, 0x02})
	v, err := p.ReadU32BE()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)
}
