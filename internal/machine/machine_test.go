package machine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galecore/gbcore/internal/cpu"
	"github.com/galecore/gbcore/internal/joypad"
	"github.com/galecore/gbcore/pkg/emulator"
)

// romOnlyCartridge builds a minimal, checksum-valid 32 KiB ROM-only
// image with the given program written starting at 0x0150 (just past
// the header), ending in an infinite JP to itself so RunFrame has
// something to step through without running off the end of the ROM.
func romOnlyCartridge(program ...uint8) []byte {
	rom := make([]byte, 0x8000)
	// entry point at 0x100: NOP; JP 0x150, the way real cartridges route
	// around the header to their actual code.
	rom[0x100] = 0x00
	rom[0x101] = 0xC3
	rom[0x102] = 0x50
	rom[0x103] = 0x01

	copy(rom[0x134:0x144], "TESTROM")
	rom[0x147] = 0x00 // ROM only
	rom[0x148] = 0x00 // 32 KiB
	rom[0x149] = 0x00 // no RAM

	copy(rom[0x150:], program)
	loopAt := 0x150 + len(program)
	rom[loopAt] = 0xC3 // JP loopAt
	rom[loopAt+1] = uint8(loopAt)
	rom[loopAt+2] = uint8(loopAt >> 8)

	var x uint8
	for addr := 0x0134; addr <= 0x014C; addr++ {
		x = x - rom[addr] - 1
	}
	rom[0x14D] = x
	return rom
}

func TestNewWiresPeripheralsAndStartsPostBoot(t *testing.T) {
	rom := romOnlyCartridge(0x00) // NOP
	m, err := New(rom, nil, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), m.CPU.PC, "no boot rom: CPU starts at the post-boot PC, cartridge header entry point")
	assert.Equal(t, uint8(0x01), m.CPU.A, "post-boot register state matches real hardware")
}

func TestRunFrameAdvancesAndCompletes(t *testing.T) {
	rom := romOnlyCartridge(0x00) // NOP, then loops forever
	m, err := New(rom, nil, Hooks{})
	require.NoError(t, err)

	m.RunFrame()
	// one frame is 70224 T-cycles; after the single NOP, the JP-to-itself
	// loop (16 cycles per iteration) must have executed many iterations,
	// landing PC back on the loop rather than stuck at the reset vector.
	assert.Equal(t, uint16(0x0151), m.CPU.PC)
}

func TestBreakpointHookFires(t *testing.T) {
	rom := romOnlyCartridge(0x00) // NOP at 0x150
	var hit bool
	var hitPC uint16
	m, err := New(rom, nil, Hooks{
		OnBreakpoint: func(index int, c *cpu.CPU) {
			hit = true
			hitPC = c.PC
		},
	})
	require.NoError(t, err)

	m.SetBreakpoint(0x0150)
	m.CPU.Step() // NOP at the entry point, 0x0100 -> 0x0101
	m.CPU.Step() // JP 0x0150, lands PC on the armed breakpoint
	m.CPU.Step() // fetches the sentinel at 0x0150 and fires the hook

	assert.True(t, hit)
	assert.Equal(t, uint16(0x0150), hitPC)
}

func TestSaveStateLoadStateRoundTrips(t *testing.T) {
	rom := romOnlyCartridge(0x3C, 0x3C) // two INC A, then loops forever
	m, err := New(rom, nil, Hooks{})
	require.NoError(t, err)

	m.CPU.Step() // NOP at the entry point
	m.CPU.Step() // JP 0x0150
	m.CPU.Step() // first INC A: A becomes 2

	var buf bytes.Buffer
	require.NoError(t, m.SaveState(&buf))

	m.CPU.Step() // second INC A: A becomes 3
	require.NoError(t, m.LoadState(bytes.NewReader(buf.Bytes())))

	assert.Equal(t, uint8(2), m.CPU.A, "state load restores the CPU to the saved point")
	assert.Equal(t, uint16(0x0151), m.CPU.PC)
}

func TestLoadStateRejectsFingerprintMismatch(t *testing.T) {
	romA := romOnlyCartridge(0x00)
	mA, err := New(romA, nil, Hooks{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, mA.SaveState(&buf))

	romB := romOnlyCartridge(0x00)
	copy(romB[0x134:0x144], "DIFFERENT")
	var x uint8
	for addr := 0x0134; addr <= 0x014C; addr++ {
		x = x - romB[addr] - 1
	}
	romB[0x14D] = x
	mB, err := New(romB, nil, Hooks{})
	require.NoError(t, err)

	err = mB.LoadState(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}

// mbc3RTCCartridge builds a checksum-valid 64 KiB MBC3+TIMER+RAM+BATTERY
// image with 32 KiB of cart RAM, for exercising the .sav layout and RTC
// catch-up paths.
func mbc3RTCCartridge() []byte {
	rom := make([]byte, 0x10000)
	rom[0x100] = 0x00
	rom[0x101] = 0xC3
	rom[0x102] = 0x01
	rom[0x103] = 0x01 // JP 0x0101, loops on itself harmlessly

	copy(rom[0x134:0x144], "RTCROM")
	rom[0x147] = 0x10 // MBC3+TIMER+RAM+BATTERY
	rom[0x148] = 0x01 // 64 KiB
	rom[0x149] = 0x03 // 32 KiB RAM

	var x uint8
	for addr := 0x0134; addr <= 0x014C; addr++ {
		x = x - rom[addr] - 1
	}
	rom[0x14D] = x
	return rom
}

func TestInvalidOpcodeTerminatesFrameAndReportsError(t *testing.T) {
	rom := romOnlyCartridge(0xDB) // undefined primary opcode
	var kinds []emulator.Kind
	var values []interface{}
	m, err := New(rom, nil, Hooks{
		OnError: func(kind emulator.Kind, value interface{}) {
			kinds = append(kinds, kind)
			values = append(values, value)
		},
	})
	require.NoError(t, err)

	m.RunFrame() // must return rather than spin on the bad byte

	require.Equal(t, []emulator.Kind{emulator.InvalidOpcode}, kinds)
	assert.Equal(t, uint8(0xDB), values[0])
	assert.Equal(t, emulator.Errored, m.Status())
	assert.Equal(t, uint16(0x0151), m.CPU.PC, "PC stops just past the bad byte for post-mortem inspection")
}

func TestResetClearsWRAMKeepsHRAM(t *testing.T) {
	rom := romOnlyCartridge(0x00)
	m, err := New(rom, nil, Hooks{})
	require.NoError(t, err)

	m.WriteByte(0xC123, 0x42)
	m.WriteByte(0xFF80, 0x99)
	m.CPU.A = 0x77

	m.Reset()

	assert.Equal(t, uint8(0x00), m.ReadByte(0xC123), "WRAM cleared on reset")
	assert.Equal(t, uint8(0x99), m.ReadByte(0xFF80), "HRAM survives reset")
	assert.Equal(t, uint16(0x0100), m.CPU.PC)
	assert.Equal(t, uint8(0x01), m.CPU.A, "post-boot register values restored")
}

func TestSetJoypadActiveLow(t *testing.T) {
	rom := romOnlyCartridge(0x00)
	m, err := New(rom, nil, Hooks{})
	require.NoError(t, err)

	m.WriteByte(0xFF00, 0x20)               // select the d-pad row (bit 4 low)
	m.SetJoypad(^uint8(joypad.ButtonRight)) // Right held, everything else up

	p1 := m.ReadByte(0xFF00)
	assert.Zero(t, p1&0x01, "Right reads low while held and its row is selected")
	assert.NotZero(t, p1&0x0E, "other buttons read high")
}

func TestPauseStopsFrameStepping(t *testing.T) {
	rom := romOnlyCartridge(0x00)
	m, err := New(rom, nil, Hooks{})
	require.NoError(t, err)

	m.Pause()
	pc := m.CPU.PC
	m.RunFrame()
	assert.Equal(t, pc, m.CPU.PC, "paused machine does not step")
	assert.True(t, m.Paused())

	m.Resume()
	m.RunFrame()
	assert.NotEqual(t, pc, m.CPU.PC)
}

func TestHandleCommandPauseResumeAndUnsupported(t *testing.T) {
	rom := romOnlyCartridge(0x00)
	m, err := New(rom, nil, Hooks{})
	require.NoError(t, err)

	resp := m.HandleCommand(emulator.CommandPacket{Command: emulator.CommandPause})
	require.NoError(t, resp.Error)
	assert.True(t, m.Paused())

	resp = m.HandleCommand(emulator.CommandPacket{Command: emulator.CommandResume})
	require.NoError(t, resp.Error)
	assert.False(t, m.Paused())

	resp = m.HandleCommand(emulator.CommandPacket{Command: emulator.CommandSetSpeed})
	assert.Error(t, resp.Error, "speed is the host pacing loop's concern")
}

func TestSaveSRAMLayoutRoundTripWithRTC(t *testing.T) {
	now := int64(1_000_000)
	hooks := Hooks{Now: func() int64 { return now }}

	m, err := New(mbc3RTCCartridge(), nil, hooks)
	require.NoError(t, err)

	m.WriteByte(0x0000, 0x0A) // enable cart RAM
	m.WriteByte(0xA000, 0x55)
	assert.True(t, m.SRAMDirty())

	layout := m.SaveSRAMLayout()
	assert.Len(t, layout, 32*1024+5+4, "SRAM, five RTC bytes, 32-bit timestamp")
	assert.False(t, m.SRAMDirty(), "flush acknowledged")

	m2, err := New(mbc3RTCCartridge(), nil, hooks)
	require.NoError(t, err)
	require.NoError(t, m2.LoadSRAMLayout(layout))

	m2.WriteByte(0x0000, 0x0A)
	assert.Equal(t, uint8(0x55), m2.ReadByte(0xA000))
}

func TestLoadSRAMLayoutCatchesUpRTC(t *testing.T) {
	saveTime := int64(1_000_000)
	m, err := New(mbc3RTCCartridge(), nil, Hooks{Now: func() int64 { return saveTime }})
	require.NoError(t, err)
	layout := m.SaveSRAMLayout()

	// reload 100 wall-clock seconds later
	m2, err := New(mbc3RTCCartridge(), nil, Hooks{Now: func() int64 { return saveTime + 100 }})
	require.NoError(t, err)
	require.NoError(t, m2.LoadSRAMLayout(layout))

	m2.RunFrame() // applies the owed seconds

	m2.WriteByte(0x0000, 0x0A) // RAM+RTC enable
	m2.WriteByte(0x4000, 0x08) // map RTC seconds register
	assert.Equal(t, uint8(40), m2.ReadByte(0xA000), "100 elapsed seconds roll into 1m40s")
	m2.WriteByte(0x4000, 0x09) // RTC minutes
	assert.Equal(t, uint8(1), m2.ReadByte(0xA000))
}

func TestLoadSRAMLayoutRejectsWrongLength(t *testing.T) {
	m, err := New(mbc3RTCCartridge(), nil, Hooks{})
	require.NoError(t, err)
	err = m.LoadSRAMLayout(make([]byte, 32*1024)) // missing the RTC block
	assert.Error(t, err)
}
