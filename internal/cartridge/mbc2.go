package cartridge

// MBC2 banks ROM in 4-bit steps and has a fixed 512x4-bit internal RAM.
// The RAM-enable/ROM-bank-select registers share the 0x0000-0x3FFF write
// window, distinguished by address bit 8: set selects a ROM bank, clear
// toggles RAM enable.

func (m *MBC) readMBC2(address uint16) uint8 {
	switch {
	case address < 0x4000:
		return m.romAt(0, address)
	case address < 0x8000:
		bank := m.romBank % max1(m.romBanks)
		if bank == 0 {
			bank = 1
		}
		return m.romAt(bank, address-0x4000)
	case address >= 0xA000 && address < 0xC000:
		if !m.ramEnabled {
			return 0xFF
		}
		// the upper nibble always reads back as 1, and the 512 nibbles
		// are mirrored across the full 0xA000-0xBFFF window
		return m.ram[int(address-0xA000)%512] | 0xF0
	}
	return 0xFF
}

func (m *MBC) writeMBC2(address uint16, value uint8) {
	switch {
	case address < 0x4000:
		if address&0x0100 == 0 {
			m.ramEnabled = value&0x0F == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = int(bank)
		}
	case address >= 0xA000 && address < 0xC000:
		if !m.ramEnabled {
			return
		}
		m.writeRAM(int(address-0xA000)%512, value&0x0F)
	}
}
