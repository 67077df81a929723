package mmu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galecore/gbcore/internal/boot"
	"github.com/galecore/gbcore/internal/cartridge"
	"github.com/galecore/gbcore/internal/interrupts"
	"github.com/galecore/gbcore/pkg/emulator"
	"github.com/galecore/gbcore/pkg/gblog"
)

// recordingBus is a minimal IOBus stub that records the last address/value
// it saw and returns a fixed byte, enough to verify the MMU routed a
// request to the right peripheral without needing a real one.
type recordingBus struct {
	readValue   uint8
	lastRead    uint16
	lastWrite   uint16
	lastWritten uint8
}

func (b *recordingBus) Read(address uint16) uint8 {
	b.lastRead = address
	return b.readValue
}

func (b *recordingBus) Write(address uint16, value uint8) {
	b.lastWrite = address
	b.lastWritten = value
}

func romOnlyCartridge(t *testing.T) *cartridge.Cartridge {
	t.Helper()
	rom := make([]byte, 0x8000)
	copy(rom[0x134:0x144], "TESTROM")
	rom[0x147] = 0x00
	rom[0x148] = 0x00
	rom[0x149] = 0x00
	var x uint8
	for addr := 0x0134; addr <= 0x014C; addr++ {
		x = x - rom[addr] - 1
	}
	rom[0x14D] = x
	rom[0x200] = 0xAB

	c, err := cartridge.New(rom)
	require.NoError(t, err)
	return c
}

func newTestMMU(t *testing.T) (*MMU, *recordingBus) {
	t.Helper()
	cart := romOnlyCartridge(t)
	irq := interrupts.NewService()
	m := New(cart, irq, nil, gblog.Null())

	video := &recordingBus{}
	m.AttachVideo(video)
	m.AttachSound(&recordingBus{})
	m.AttachJoypad(&recordingBus{})
	m.AttachTimer(&recordingBus{})
	m.AttachSerial(&recordingBus{})
	return m, video
}

func TestReadRoutesCartridgeROM(t *testing.T) {
	m, _ := newTestMMU(t)
	assert.Equal(t, uint8(0xAB), m.Read(0x200))
}

func TestReadRoutesVRAM(t *testing.T) {
	m, video := newTestMMU(t)
	video.readValue = 0x5A
	assert.Equal(t, uint8(0x5A), m.Read(0x8123))
	assert.Equal(t, uint16(0x8123), video.lastRead)
}

func TestWorkRAMEchoRegion(t *testing.T) {
	m, _ := newTestMMU(t)
	m.Write(0xC010, 0x99)
	assert.Equal(t, uint8(0x99), m.Read(0xE010), "0xE000-0xFDFF echoes 0xC000-0xDDFF")
}

func TestHRAMReadWrite(t *testing.T) {
	m, _ := newTestMMU(t)
	m.Write(0xFF80, 0x11)
	assert.Equal(t, uint8(0x11), m.Read(0xFF80))
}

func TestUnusableRegionReadsZero(t *testing.T) {
	m, _ := newTestMMU(t)
	assert.Equal(t, uint8(0x00), m.Read(0xFEA0))
	m.Write(0xFEA0, 0x42) // discarded
	assert.Equal(t, uint8(0x00), m.Read(0xFEA0))
}

func TestUnmappedIOReportsInvalidAccess(t *testing.T) {
	m, _ := newTestMMU(t)
	var kinds []emulator.Kind
	var addrs []uint16
	m.SetErrorHandler(func(kind emulator.Kind, value interface{}) {
		kinds = append(kinds, kind)
		addrs = append(addrs, value.(uint16))
	})
	assert.Equal(t, uint8(0xFF), m.Read(0xFF7F))
	m.Write(0xFF7F, 0x01)
	assert.Equal(t, []emulator.Kind{emulator.InvalidRead, emulator.InvalidWrite}, kinds)
	assert.Equal(t, []uint16{0xFF7F, 0xFF7F}, addrs)
}

func TestBootROMShadowsCartridgeUntilUnmapped(t *testing.T) {
	bootImage := make([]byte, 256)
	bootImage[0] = 0x77
	rom, err := boot.LoadBootROM(bootImage)
	require.NoError(t, err)

	cart := romOnlyCartridge(t)
	irq := interrupts.NewService()
	m := New(cart, irq, rom, gblog.Null())
	m.AttachVideo(&recordingBus{})
	m.AttachSound(&recordingBus{})
	m.AttachJoypad(&recordingBus{})
	m.AttachTimer(&recordingBus{})
	m.AttachSerial(&recordingBus{})

	assert.True(t, m.BootActive())
	assert.Equal(t, uint8(0x77), m.Read(0x0000))

	m.Write(0xFF50, 0x01) // any write unmaps the boot ROM
	assert.False(t, m.BootActive())
}

func TestOAMDMACopiesFromSource(t *testing.T) {
	m, video := newTestMMU(t)
	m.Write(0xC09F, 0x42) // last byte of the 160-byte DMA window
	m.Write(0xFF46, 0xC0) // trigger DMA from 0xC000
	assert.Equal(t, uint16(0xFE9F), video.lastWrite)
	assert.Equal(t, uint8(0x42), video.lastWritten)
}

func TestWRAMAndHRAMSnapshotRoundTrip(t *testing.T) {
	m, _ := newTestMMU(t)
	m.Write(0xC000, 0x01)
	m.Write(0xFF80, 0x02)

	wram := append([]byte{}, m.WRAMBytes()...)
	hram := append([]byte{}, m.HRAMBytes()...)

	m.Write(0xC000, 0x00)
	m.Write(0xFF80, 0x00)

	m.LoadWRAMBytes(wram)
	m.LoadHRAMBytes(hram)

	assert.Equal(t, uint8(0x01), m.Read(0xC000))
	assert.Equal(t, uint8(0x02), m.Read(0xFF80))
}
