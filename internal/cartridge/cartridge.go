// Package cartridge implements the cartridge header parser and the
// bank-controller (MBC) read/write dispatch.
package cartridge

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/galecore/gbcore/pkg/emulator"
)

// Cartridge owns a loaded ROM image, its parsed header, and the active
// bank controller.
type Cartridge struct {
	header Header
	mbc    *MBC
	md5    string
}

// New parses rom's header, validates its checksum, and constructs the bank
// controller matching its declared cartridge type.
func New(rom []byte) (*Cartridge, error) {
	if len(rom) < 0x150 {
		return nil, emulator.New(emulator.InitCartridgeUnsupported, "rom too small")
	}
	if !verifyHeaderChecksum(rom) {
		return nil, emulator.New(emulator.InitInvalidChecksum, nil)
	}

	header := parseHeader(rom[HeaderOffset : HeaderOffset+0x50])

	kind, battery, rtc, err := classify(header.CartridgeType)
	if err != nil {
		return nil, err
	}

	hash := md5.Sum(rom)
	return &Cartridge{
		header: header,
		mbc:    newMBC(kind, rom, header.RAMSize, battery, rtc),
		md5:    hex.EncodeToString(hash[:]),
	}, nil
}

func classify(t Type) (kind Kind, battery, rtc bool, err error) {
	switch t {
	case ROM:
		return KindROM, false, false, nil
	case MBC1, MBC1RAM:
		return KindMBC1, false, false, nil
	case MBC1RAMBATT:
		return KindMBC1, true, false, nil
	case MBC2:
		return KindMBC2, false, false, nil
	case MBC2BATT:
		return KindMBC2, true, false, nil
	case MBC3RAM:
		return KindMBC3, false, false, nil
	case MBC3RAMBATT:
		return KindMBC3, true, false, nil
	case MBC3TIMERBATT:
		return KindMBC3, true, true, nil
	case MBC3TIMERRAMBATT:
		return KindMBC3, true, true, nil
	case MBC3:
		return KindMBC3, false, false, nil
	case MBC5, MBC5RUMBLE:
		return KindMBC5, false, false, nil
	case MBC5RAM, MBC5RUMBLERAM:
		return KindMBC5, false, false, nil
	case MBC5RAMBATT, MBC5RUMBLERAMBATT:
		return KindMBC5, true, false, nil
	default:
		return 0, false, false, emulator.New(emulator.InitCartridgeUnsupported, t)
	}
}

// Header returns the parsed cartridge header.
func (c *Cartridge) Header() *Header {
	return &c.header
}

// Title returns the cartridge's title string from the header.
func (c *Cartridge) Title() string {
	return c.header.Title
}

// MD5 returns the hex-encoded MD5 hash of the full ROM image.
func (c *Cartridge) MD5() string {
	return c.md5
}

// HasBattery reports whether the cartridge persists RAM/RTC across power
// cycles.
func (c *Cartridge) HasBattery() bool {
	return c.mbc.battery
}

// HasRTC reports whether the cartridge carries an MBC3 real-time clock.
func (c *Cartridge) HasRTC() bool {
	return c.mbc.hasRTC
}

// Read reads a byte from ROM (0x0000-0x7FFF) or external RAM (0xA000-0xBFFF).
func (c *Cartridge) Read(address uint16) uint8 {
	return c.mbc.Read(address)
}

// Write writes a byte to a bank-controller register or external RAM.
func (c *Cartridge) Write(address uint16, value uint8) {
	c.mbc.Write(address, value)
}

// TickRTC advances the cartridge's real-time clock, if present, by the
// given number of T-cycles. Called after every CPU step from the frame
// driver.
func (c *Cartridge) TickRTC(cycles uint32) {
	if c.mbc.hasRTC {
		c.mbc.rtc.Tick(cycles)
	}
}

// SetRTC sets the RTC to an absolute elapsed-seconds value, used when a
// host restores a timestamp saved alongside .sav data.
func (c *Cartridge) SetRTC(seconds uint32) {
	if !c.mbc.hasRTC {
		return
	}
	c.mbc.rtc = RTC{}
	c.mbc.rtc.Advance(seconds)
	c.mbc.rtc.Latch()
}

// CatchUpRTC advances the RTC by elapsed wall-clock seconds since the last
// save, in bounded per-call chunks so a very large gap (the host having
// been closed for days) doesn't stall a single frame.
func (c *Cartridge) CatchUpRTC(elapsedSeconds uint32, maxSecondsPerCall uint32) (remaining uint32) {
	if !c.mbc.hasRTC {
		return 0
	}
	step := elapsedSeconds
	if step > maxSecondsPerCall {
		step = maxSecondsPerCall
	}
	c.mbc.rtc.Advance(step)
	c.mbc.rtc.Latch()
	return elapsedSeconds - step
}

// SRAMDirty reports whether any external-RAM write has changed a byte
// since the last ClearSRAMDirty. The host polls this to decide when a
// .sav flush is due.
func (c *Cartridge) SRAMDirty() bool {
	return c.mbc.sramDirty
}

// ClearSRAMDirty acknowledges a completed .sav flush.
func (c *Cartridge) ClearSRAMDirty() {
	c.mbc.sramDirty = false
}

// SRAM returns the raw external RAM bytes, for .sav persistence.
func (c *Cartridge) SRAM() []byte {
	return c.mbc.ram
}

// LoadSRAM restores external RAM bytes from a .sav file.
func (c *Cartridge) LoadSRAM(data []byte) error {
	if len(data) != len(c.mbc.ram) {
		return emulator.New(emulator.StateSramSizeMismatch, len(data))
	}
	copy(c.mbc.ram, data)
	return nil
}

// RTCBytes returns the five live RTC registers, for .sav persistence.
func (c *Cartridge) RTCBytes() [5]byte {
	return c.mbc.rtc.Bytes()
}

// LoadRTCBytes restores the five RTC registers from a .sav file.
func (c *Cartridge) LoadRTCBytes(b [5]byte) {
	c.mbc.rtc.LoadBytes(b)
}

// Fingerprint returns the ROM header bytes 0x0134-0x014F, used by the
// state snapshot to detect a save loaded against the wrong ROM.
func (c *Cartridge) Fingerprint(rom []byte) [FingerprintSize]byte {
	var fp [FingerprintSize]byte
	copy(fp[:], rom[0x134:0x134+FingerprintSize])
	return fp
}

// RawROM returns the full, unbanked ROM image backing the cartridge. The
// breakpoint mechanism patches bytes directly here, since the CPU address
// space reaches only whichever bank is currently switched in.
func (c *Cartridge) RawROM() []byte {
	return c.mbc.rom
}

// CurrentBank returns the ROM bank mapped at address, used by the
// breakpoint mechanism to detect a bank switch between arming a breakpoint
// and the CPU reaching it again.
func (c *Cartridge) CurrentBank(address uint16) int {
	return c.mbc.currentBank(address)
}

// AbsoluteOffset translates a CPU address in ROM space (0x0000-0x7FFF)
// into an offset into RawROM, honouring the currently switched-in bank.
func (c *Cartridge) AbsoluteOffset(address uint16) int {
	bank := c.CurrentBank(address)
	if address < 0x4000 {
		return bank*0x4000 + int(address)
	}
	return bank*0x4000 + int(address-0x4000)
}
