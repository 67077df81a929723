package gbstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewBuffer()
	w.Write8(0xAB)
	w.Write16(0xBEEF)
	w.Write32(0xDEADBEEF)
	w.Write64(0x0123456789ABCDEF)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteData([]byte{1, 2, 3})
	w.WriteBlock([]byte{4, 5, 6, 7})

	r := FromBytes(w.Bytes())
	assert.Equal(t, uint8(0xAB), r.Read8())
	assert.Equal(t, uint16(0xBEEF), r.Read16())
	assert.Equal(t, uint32(0xDEADBEEF), r.Read32())
	assert.Equal(t, uint64(0x0123456789ABCDEF), r.Read64())
	assert.True(t, r.ReadBool())
	assert.False(t, r.ReadBool())
	assert.Equal(t, []byte{1, 2, 3}, r.ReadData(3))
	assert.Equal(t, []byte{4, 5, 6, 7}, r.ReadBlock())
	assert.Equal(t, 0, r.Remaining())
}

func TestResetRewindsReadPosition(t *testing.T) {
	w := NewBuffer()
	w.Write8(0x11)
	w.Write8(0x22)

	r := FromBytes(w.Bytes())
	assert.Equal(t, uint8(0x11), r.Read8())
	r.Reset()
	assert.Equal(t, uint8(0x11), r.Read8())
	assert.Equal(t, uint8(0x22), r.Read8())
}

func TestLenAndRemaining(t *testing.T) {
	w := NewBuffer()
	w.Write32(1)
	w.Write32(2)
	assert.Equal(t, 8, w.Len())

	r := FromBytes(w.Bytes())
	assert.Equal(t, 8, r.Remaining())
	r.Read32()
	assert.Equal(t, 4, r.Remaining())
}
