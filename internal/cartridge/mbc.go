package cartridge

// Kind identifies which bank-controller behaviour a cartridge uses. Rather
// than modelling each controller as a distinct type behind an interface,
// the controller state lives inline in MBC and Read/Write switch on Kind —
// a tagged variant instead of dynamic dispatch, since the set of
// controllers is closed and known up front.
type Kind uint8

const (
	KindROM Kind = iota
	KindMBC1
	KindMBC2
	KindMBC3
	KindMBC5
)

// MBC holds the bank-switching state for every supported cartridge
// controller. Only the fields relevant to the active Kind are meaningful.
type MBC struct {
	kind Kind

	rom []byte
	ram []byte

	battery    bool
	hasRTC     bool
	ramEnabled bool

	// sramDirty is set by any external-RAM write that actually changed a
	// byte, so the host knows when a .sav flush is worthwhile.
	sramDirty bool

	romBank int
	ramBank int

	// MBC1-specific
	mode        bool // false = ROM banking mode, true = RAM banking mode
	isMultiCart bool

	// MBC5-specific: 9-bit ROM bank split across two write regions
	romBankLow  uint8
	romBankHigh uint8

	rtc RTC

	romBanks int
	ramBanks int
}

func newMBC(kind Kind, rom []byte, ramSize uint, battery, rtc bool) *MBC {
	m := &MBC{
		kind:     kind,
		rom:      rom,
		ram:      make([]byte, ramSize),
		battery:  battery,
		hasRTC:   rtc,
		romBank:  1,
		romBanks: len(rom) / 0x4000,
	}
	if kind == KindMBC2 {
		// MBC2 has a fixed 512x4-bit internal RAM, ignoring the header's
		// declared RAM size.
		m.ram = make([]byte, 512)
	}
	if ramSize > 0 {
		m.ramBanks = int(ramSize / 0x2000)
	}
	if m.romBanks == 0 {
		m.romBanks = 1
	}
	if kind == KindMBC1 {
		m.isMultiCart = detectMulticart(rom)
	}
	return m
}

// Read dispatches a cartridge-space read (0x0000-0x7FFF ROM, 0xA000-0xBFFF
// external RAM) to the active controller's behaviour.
func (m *MBC) Read(address uint16) uint8 {
	switch m.kind {
	case KindROM:
		return m.readROM(address)
	case KindMBC1:
		return m.readMBC1(address)
	case KindMBC2:
		return m.readMBC2(address)
	case KindMBC3:
		return m.readMBC3(address)
	case KindMBC5:
		return m.readMBC5(address)
	}
	return 0xFF
}

// Write dispatches a cartridge-space write to the active controller's
// register/bank-select behaviour.
func (m *MBC) Write(address uint16, value uint8) {
	switch m.kind {
	case KindROM:
		// no-op: plain ROM cartridges have no writable registers
	case KindMBC1:
		m.writeMBC1(address, value)
	case KindMBC2:
		m.writeMBC2(address, value)
	case KindMBC3:
		m.writeMBC3(address, value)
	case KindMBC5:
		m.writeMBC5(address, value)
	}
}

// writeRAM stores value at external-RAM offset off, tracking whether the
// byte actually changed.
func (m *MBC) writeRAM(off int, value uint8) {
	if m.ram[off] != value {
		m.ram[off] = value
		m.sramDirty = true
	}
}

func (m *MBC) readROM(address uint16) uint8 {
	if address < 0x8000 && int(address) < len(m.rom) {
		return m.rom[address]
	}
	return 0xFF
}

// detectMulticart applies the usual Nintendo-logo heuristic: a 1 MiB (or
// larger) MBC1 ROM whose 0x10000, 0x20000, and 0x30000-byte banks all
// repeat the Nintendo logo is treated
// as a MMM01-style multicart, which changes how the upper bank-select bits
// are shifted into the effective bank number.
func detectMulticart(rom []byte) bool {
	if len(rom) < 0x100000 {
		return false
	}
	logoOffset := 0x0104
	for _, bank := range []int{0x10000, 0x20000, 0x30000} {
		for i := 0; i < 0x30; i++ {
			if rom[bank+logoOffset+i] != rom[logoOffset+i] {
				return false
			}
		}
	}
	return true
}
