// Package apu implements the sound hardware's register surface only: raw
// storage for NR10-NR52 and wave RAM, master-disable masking, and a
// pluggable Synthesizer a host can attach to actually produce audio. The
// core itself never synthesizes a waveform.
package apu

// registerCount covers 0xFF10-0xFF3F inclusive.
const registerCount = 0xFF3F - 0xFF10 + 1

// unusableMask holds the fixed OR-mask returned for each register address
// when read back, matching real hardware's write-only/unused bits. Indexed
// by address - 0xFF10.
var unusableMask = [registerCount]uint8{
	0x00: 0x80, 0x01: 0x3F, 0x02: 0x00, 0x03: 0xFF, 0x04: 0xBF,
	0x06: 0x3F, 0x07: 0x00, 0x08: 0xFF, 0x09: 0xBF,
	0x0A: 0x7F, 0x0B: 0xFF, 0x0C: 0x9F, 0x0D: 0xFF, 0x0E: 0xBF,
	0x10: 0xFF, 0x11: 0x00, 0x12: 0x00, 0x13: 0xBF,
	0x14: 0x00, 0x15: 0x00, 0x16: 0x70,
}

// Synthesizer is the host-provided audio backend. The core calls
// WriteRegister on every register write it accepts and Tick with the
// T-cycle count of each CPU step; Sample is polled by the host's own audio callback, not by the
// core. A nil Synthesizer makes the APU a pure register store.
type Synthesizer interface {
	WriteRegister(address uint16, value uint8)
	Tick(cycles uint8)
	Sample() (left, right float32)
}

// APU is the DMG audio register front.
type APU struct {
	enabled bool
	regs    [registerCount]uint8
	waveRAM [16]byte

	synth Synthesizer
}

// New returns an APU with all registers zeroed, as at power-on before the
// boot ROM enables sound.
func New() *APU {
	return &APU{}
}

// Reset returns the register front to its power-on state. The attached
// synthesizer, if any, stays attached; it is host property.
func (a *APU) Reset() {
	a.enabled = false
	a.regs = [registerCount]uint8{}
	a.waveRAM = [16]byte{}
}

// AttachSynthesizer installs the host's audio backend. Pass nil to detach.
func (a *APU) AttachSynthesizer(s Synthesizer) {
	a.synth = s
}

// Tick advances the attached synthesizer by the given number of T-cycles,
// if one is attached. The register front itself has no time-dependent
// state of its own.
func (a *APU) Tick(cycles uint8) {
	if a.synth != nil {
		a.synth.Tick(cycles)
	}
}

// Read returns the register or wave-RAM byte at address, applying the
// unusable-bit OR-mask real hardware exposes.
func (a *APU) Read(address uint16) uint8 {
	if address >= 0xFF30 && address <= 0xFF3F {
		return a.waveRAM[address-0xFF30]
	}
	if address < 0xFF10 || address > 0xFF3F {
		return 0xFF
	}
	i := address - 0xFF10
	if address == 0xFF26 {
		return a.statusByte()
	}
	if !a.enabled && address != 0xFF26 {
		return unusableMask[i]
	}
	return a.regs[i] | unusableMask[i]
}

// Write stores the byte at address, subject to the master-disable mask:
// while sound is off, writes to every register except NR52, the NRx1
// length registers (NR11, NR21, NR31, NR41) and wave RAM are dropped,
// matching real hardware.
func (a *APU) Write(address uint16, value uint8) {
	if address >= 0xFF30 && address <= 0xFF3F {
		a.waveRAM[address-0xFF30] = value
		if a.synth != nil {
			a.synth.WriteRegister(address, value)
		}
		return
	}
	if address < 0xFF10 || address > 0xFF3F {
		return
	}

	if address == 0xFF26 {
		wasEnabled := a.enabled
		a.enabled = value&0x80 != 0
		if wasEnabled && !a.enabled {
			for i := uint16(0xFF10); i < 0xFF26; i++ {
				a.regs[i-0xFF10] = 0
				if a.synth != nil {
					a.synth.WriteRegister(i, 0)
				}
			}
		}
		return
	}

	if !a.enabled {
		// NRx1 length-timer bits load even while sound is off on DMG.
		if address != 0xFF11 && address != 0xFF16 && address != 0xFF1B && address != 0xFF20 {
			return
		}
	}

	a.regs[address-0xFF10] = value
	if a.synth != nil {
		a.synth.WriteRegister(address, value)
	}
}

func (a *APU) statusByte() uint8 {
	var b uint8
	if a.enabled {
		b |= 0x80
	}
	return b | unusableMask[0xFF26-0xFF10]
}

// Save appends the register front's state to b, for the state snapshot.
// The attached synthesizer, if any, is a host concern and is not captured.
func (a *APU) Save(b []byte) []byte {
	var enabled uint8
	if a.enabled {
		enabled = 1
	}
	b = append(b, enabled)
	b = append(b, a.regs[:]...)
	b = append(b, a.waveRAM[:]...)
	return b
}

// Load restores the register front's state from b, returning the
// remaining bytes.
func (a *APU) Load(b []byte) []byte {
	a.enabled = b[0] != 0
	b = b[1:]
	copy(a.regs[:], b[:registerCount])
	b = b[registerCount:]
	copy(a.waveRAM[:], b[:16])
	return b[16:]
}
