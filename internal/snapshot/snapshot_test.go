package snapshot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galecore/gbcore/internal/apu"
	"github.com/galecore/gbcore/internal/cpu"
	"github.com/galecore/gbcore/internal/interrupts"
	"github.com/galecore/gbcore/internal/joypad"
	"github.com/galecore/gbcore/internal/ppu"
	"github.com/galecore/gbcore/internal/serial"
	"github.com/galecore/gbcore/internal/timer"
	"github.com/galecore/gbcore/pkg/emulator"
)

// stubBus is just enough of a cpu.Bus to construct a *cpu.CPU; nothing in
// this test ever steps it.
type stubBus struct{}

func (stubBus) Read(address uint16) uint8        { return 0 }
func (stubBus) Write(address uint16, value uint8) {}

func newTestInput() Input {
	irq := interrupts.NewService()
	wram := make([]byte, 8192)
	hram := make([]byte, 127)
	cartRAM := make([]byte, 0)

	return Input{
		CPU:    cpu.New(stubBus{}, irq),
		IRQ:    irq,
		Timer:  timer.NewController(irq),
		Serial: serial.NewController(irq),
		Joypad: joypad.New(irq),
		APU:    apu.New(),
		PPU:    ppu.New(irq),

		GetWRAM: func() []byte { return wram },
		SetWRAM: func(b []byte) { copy(wram, b) },
		GetHRAM: func() []byte { return hram },
		SetHRAM: func(b []byte) { copy(hram, b) },

		GetCartRAM: func() []byte { return cartRAM },
		SetCartRAM: func(b []byte) error { copy(cartRAM, b); return nil },

		HasRTC: false,

		Breakpoints:        func() []uint16 { return nil },
		RestoreBreakpoints: func([]uint16) {},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	in := newTestInput()
	in.CPU.A = 0x42
	in.Fingerprint[0] = 7

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	out := newTestInput()
	out.Fingerprint = in.Fingerprint
	require.NoError(t, Load(bytes.NewReader(buf.Bytes()), out))
	assert.Equal(t, uint8(0x42), out.CPU.A)
}

func TestLoadRejectsMagicMismatch(t *testing.T) {
	in := newTestInput()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	raw := buf.Bytes()
	raw[0] ^= 0xFF

	err := Load(bytes.NewReader(raw), in)
	requireKind(t, err, emulator.StateMagicMismatch)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	in := newTestInput()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	raw := buf.Bytes()
	raw[8] = formatVersion + 1

	err := Load(bytes.NewReader(raw), in)
	requireKind(t, err, emulator.StateVersionMismatch)
}

func TestLoadRejectsEndianMismatch(t *testing.T) {
	in := newTestInput()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	raw := buf.Bytes()
	raw[9] = endianByte + 1

	err := Load(bytes.NewReader(raw), in)
	requireKind(t, err, emulator.StateEndianMismatch)
}

func TestLoadRejectsPointerWidthMismatch(t *testing.T) {
	in := newTestInput()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	raw := buf.Bytes()
	raw[10] = pointerWidthByte() + 1

	err := Load(bytes.NewReader(raw), in)
	requireKind(t, err, emulator.StatePointerWidthMismatch)
}

func TestLoadRejectsFingerprintMismatch(t *testing.T) {
	in := newTestInput()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	out := newTestInput()
	out.Fingerprint[0] = in.Fingerprint[0] + 1

	err := Load(bytes.NewReader(buf.Bytes()), out)
	requireKind(t, err, emulator.StateFingerprintMismatch)
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	in := newTestInput()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF // corrupt the compressed body, not the stored checksum

	err := Load(bytes.NewReader(raw), in)
	requireKind(t, err, emulator.StateChecksumMismatch)
}

func TestLoadRejectsTruncatedInput(t *testing.T) {
	in := newTestInput()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, in, false))

	raw := buf.Bytes()[:headerSize-1]

	err := Load(bytes.NewReader(raw), in)
	requireKind(t, err, emulator.StateSizeMismatch)
}

func requireKind(t *testing.T, err error, kind emulator.Kind) {
	t.Helper()
	require.Error(t, err)
	gbErr, ok := err.(*emulator.Error)
	require.True(t, ok, "expected *emulator.Error, got %T", err)
	assert.Equal(t, kind, gbErr.Kind)
}
