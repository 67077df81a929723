package cartridge

// MBC3 banks up to 128 ROM banks with a 7-bit register, up to 4 RAM banks,
// and optionally a real-time clock whose five registers are exposed
// through the same 0xA000-0xBFFF window as cart RAM once the RAM-bank
// register is set to 0x08-0x0C.

func (m *MBC) readMBC3(address uint16) uint8 {
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
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			return m.rtc.ReadLatched(uint8(m.ramBank - 0x08))
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramBank%max1(m.ramBanks)*0x2000 + int(address-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	}
	return 0xFF
}

func (m *MBC) writeMBC3(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case address < 0x4000:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = int(bank)
	case address < 0x6000:
		m.ramBank = int(value)
	case address < 0x8000:
		if m.hasRTC {
			m.rtc.WriteLatch(value)
		}
	case address >= 0xA000 && address < 0xC000:
		if !m.ramEnabled {
			return
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.rtc.WriteSelected(uint8(m.ramBank-0x08), value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		off := m.ramBank%max1(m.ramBanks)*0x2000 + int(address-0xA000)
		if off < len(m.ram) {
			m.writeRAM(off, value)
		}
	}
}
