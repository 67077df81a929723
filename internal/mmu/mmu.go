// Package mmu implements the 16-bit address-space dispatcher: it owns no
// state of its own beyond work RAM and HRAM, and routes every read/write
// to the component that owns the targeted region.
package mmu

import (
	"fmt"

	"github.com/galecore/gbcore/internal/boot"
	"github.com/galecore/gbcore/internal/cartridge"
	"github.com/galecore/gbcore/internal/interrupts"
	"github.com/galecore/gbcore/internal/ram"
	"github.com/galecore/gbcore/pkg/emulator"
	"github.com/galecore/gbcore/pkg/gblog"
)

// IOBus is the interface every component attached to the MMU implements.
type IOBus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// MMU dispatches reads and writes across the Game Boy's 64 KiB address
// space: boot ROM/cartridge ROM, VRAM, cartridge RAM, work RAM (plus its
// echo), OAM, I/O registers, HRAM, and the interrupt-enable register.
type MMU struct {
	cart *cartridge.Cartridge
	wram *WRAM
	hram *ram.Ram

	video    IOBus
	sound    IOBus
	joypad   IOBus
	timer    IOBus
	serial   IOBus
	irq      *interrupts.Service
	bootROM  *boot.ROM
	bootDone bool

	log gblog.Logger

	// onError, when set, is told about reads/writes in regions with no
	// defined behaviour. They are recoverable: the read still returns and
	// the write is still discarded.
	onError func(kind emulator.Kind, value interface{})
}

// New returns an MMU wired to the given cartridge and peripherals. boot
// may be nil, in which case the machine starts as if the boot ROM had
// already run.
func New(cart *cartridge.Cartridge, irq *interrupts.Service, bootROM *boot.ROM, logger gblog.Logger) *MMU {
	if logger == nil {
		logger = gblog.Null()
	}
	return &MMU{
		cart:     cart,
		wram:     NewWRAM(),
		hram:     ram.NewRAM(0x80),
		irq:      irq,
		bootROM:  bootROM,
		bootDone: bootROM == nil,
		log:      logger,
	}
}

// AttachVideo attaches the PPU as the handler for VRAM, OAM, and LCD
// registers.
func (m *MMU) AttachVideo(video IOBus) { m.video = video }

// AttachSound attaches the APU as the handler for the sound registers.
func (m *MMU) AttachSound(sound IOBus) { m.sound = sound }

// AttachJoypad attaches the joypad as the handler for the P1 register.
func (m *MMU) AttachJoypad(joypad IOBus) { m.joypad = joypad }

// AttachTimer attaches the timer as the handler for DIV/TIMA/TMA/TAC.
func (m *MMU) AttachTimer(timer IOBus) { m.timer = timer }

// AttachSerial attaches the serial port as the handler for SB/SC.
func (m *MMU) AttachSerial(serial IOBus) { m.serial = serial }

// SetErrorHandler installs the host's recoverable-error callback for
// InvalidRead/InvalidWrite reports.
func (m *MMU) SetErrorHandler(fn func(kind emulator.Kind, value interface{})) { m.onError = fn }

func (m *MMU) reportError(kind emulator.Kind, address uint16) {
	if m.onError != nil {
		m.onError(kind, address)
	}
}

// Reset clears work RAM and re-arms the boot ROM mapping if one is
// attached. HRAM deliberately keeps its contents: DMG hardware retains
// both HRAM and OAM across a reset.
func (m *MMU) Reset() {
	m.wram = NewWRAM()
	m.bootDone = m.bootROM == nil
}

// BootActive reports whether the boot ROM is still mapped over
// 0x0000-0x00FF.
func (m *MMU) BootActive() bool {
	return !m.bootDone
}

// Read returns the byte at the given 16-bit address.
func (m *MMU) Read(address uint16) uint8 {
	switch {
	case address < 0x8000:
		if !m.bootDone && address < 0x100 && m.bootROM != nil {
			return m.bootROM.Read(address)
		}
		return m.cart.Read(address)
	case address < 0xA000:
		return m.video.Read(address)
	case address < 0xC000:
		return m.cart.Read(address)
	case address < 0xE000:
		return m.wram.Read(address)
	case address < 0xFE00:
		return m.wram.Read(address) // echo of 0xC000-0xDDFF
	case address < 0xFEA0:
		return m.video.Read(address)
	case address < 0xFF00:
		return 0x00 // unusable region
	case address < 0xFF80:
		return m.readIO(address)
	case address < 0xFFFF:
		return m.hram.Read(address - 0xFF80)
	default:
		return m.irq.Read(address)
	}
}

// Write writes the given byte to the given 16-bit address.
func (m *MMU) Write(address uint16, value uint8) {
	switch {
	case address < 0x8000:
		m.cart.Write(address, value)
	case address < 0xA000:
		m.video.Write(address, value)
	case address < 0xC000:
		m.cart.Write(address, value)
	case address < 0xE000:
		m.wram.Write(address, value)
	case address < 0xFE00:
		m.log.Debugf("mmu: write to shadow RAM at %#04x", address)
		m.wram.Write(address, value)
	case address < 0xFEA0:
		m.video.Write(address, value)
	case address < 0xFF00:
		// unusable region, writes are discarded
	case address < 0xFF80:
		m.writeIO(address, value)
	case address < 0xFFFF:
		m.hram.Write(address-0xFF80, value)
	default:
		m.irq.Write(address, value)
	}
}

func (m *MMU) readIO(address uint16) uint8 {
	switch {
	case address == 0xFF00:
		return m.joypad.Read(address)
	case address == 0xFF01 || address == 0xFF02:
		return m.serial.Read(address)
	case address >= 0xFF04 && address <= 0xFF07:
		return m.timer.Read(address)
	case address == 0xFF0F:
		return m.irq.Read(address)
	case address >= 0xFF10 && address <= 0xFF3F:
		return m.sound.Read(address)
	case address >= 0xFF40 && address <= 0xFF4B:
		return m.video.Read(address)
	case address == 0xFF50:
		return 0xFF
	default:
		m.log.Debugf("mmu: unmapped IO read at %#04x", address)
		m.reportError(emulator.InvalidRead, address)
		return 0xFF
	}
}

func (m *MMU) writeIO(address uint16, value uint8) {
	switch {
	case address == 0xFF00:
		m.joypad.Write(address, value)
	case address == 0xFF01 || address == 0xFF02:
		m.serial.Write(address, value)
	case address >= 0xFF04 && address <= 0xFF07:
		m.timer.Write(address, value)
	case address == 0xFF0F:
		m.irq.Write(address, value)
	case address >= 0xFF10 && address <= 0xFF3F:
		m.sound.Write(address, value)
	case address == 0xFF46:
		m.dmaTransfer(value)
	case address >= 0xFF40 && address <= 0xFF4B:
		m.video.Write(address, value)
	case address == 0xFF50:
		// any write unmaps the boot ROM, regardless of value
		m.bootDone = true
	default:
		m.log.Debugf("mmu: unmapped IO write at %#04x = %#02x", address, value)
		m.reportError(emulator.InvalidWrite, address)
	}
}

// Cartridge returns the attached cartridge, for components (the state
// snapshot, the frame driver's RTC catch-up) that need direct access.
func (m *MMU) Cartridge() *cartridge.Cartridge { return m.cart }

// WRAMBytes returns the work RAM contents, for the state snapshot.
func (m *MMU) WRAMBytes() []byte { return m.wram.Bytes() }

// LoadWRAMBytes restores work RAM contents from a state snapshot.
func (m *MMU) LoadWRAMBytes(b []byte) { m.wram.LoadBytes(b) }

// HRAMBytes returns the zero-page RAM contents, for the state snapshot.
func (m *MMU) HRAMBytes() []byte { return m.hram.Bytes() }

// LoadHRAMBytes restores zero-page RAM contents from a state snapshot.
func (m *MMU) LoadHRAMBytes(b []byte) { m.hram.Load(b) }

// String implements fmt.Stringer for diagnostic logging.
func (m *MMU) String() string {
	return fmt.Sprintf("MMU{cart=%s bootDone=%t}", m.cart.Title(), m.bootDone)
}
