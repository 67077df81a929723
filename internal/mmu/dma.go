package mmu

// dmaTransfer performs the OAM DMA copy triggered by a write to 0xFF46: 160
// bytes from source*0x100 into OAM (0xFE00-0xFE9F). Real hardware spreads
// this over 160 M-cycles with a bus-conflict window; this core
// approximates it as an immediate synchronous copy instead.
func (m *MMU) dmaTransfer(value uint8) {
	source := uint16(value) << 8
	if source >= 0xFE00 {
		source -= 0x2000
	}
	for i := uint16(0); i < 0xA0; i++ {
		m.video.Write(0xFE00+i, m.dmaSourceRead(source+i))
	}
}

// dmaSourceRead reads a source byte for the DMA copy directly, bypassing
// OAM/VRAM access locking, since the copy itself is instantaneous in this
// model.
func (m *MMU) dmaSourceRead(address uint16) uint8 {
	switch {
	case address < 0x8000:
		return m.cart.Read(address)
	case address < 0xA000:
		return m.video.Read(address)
	case address < 0xC000:
		return m.cart.Read(address)
	case address < 0xE000:
		return m.wram.Read(address)
	default:
		return m.wram.Read(address)
	}
}
