// Package ppu implements the scanline-driven picture processing unit: a
// 456-T-cycle-per-line state machine producing a 160x144 frame buffer of
// 2-bit shades tagged with a 2-bit palette source, run synchronously from
// the CPU's step loop rather than on a background goroutine.
package ppu

import (
	"github.com/galecore/gbcore/internal/interrupts"
	"github.com/galecore/gbcore/pkg/bits"
)

const (
	oamSearchDots = 80
	transferDots  = 172
	lineDots      = 456
	visibleLines  = 144
	totalLines    = 154
)

// Palette tags identify which of the three palette registers produced a
// pixel's shade, carried alongside the frame buffer for the presentation
// layer.
const (
	TagBG = iota
	TagOBJ0
	TagOBJ1
)

// PPU is the DMG picture processing unit. The LCDC register is stored as
// its raw byte and decoded through the helpers in registers.go; the STAT
// register is split into the program-writable enable bits (statEnable)
// and the PPU-maintained mode and coincidence state.
type PPU struct {
	LY, LYC    uint8
	SCX, SCY   uint8
	WX, WY     uint8
	BGP        uint8
	OBP0, OBP1 uint8

	vram   [0x2000]uint8
	oam    *OAM
	buffer [visibleLines][160]uint8

	irq *interrupts.Service

	lcdc        uint8
	statEnable  uint8
	mode        Mode
	coincidence bool

	dots         uint16
	frameDone    bool
	lcdBlank     bool
	windowLine   uint8
	wyFrame      uint8
	statLinePrev bool

	// DrawMask, when index [ly] is false, skips that line's pixel work as a
	// presentation-layer frame-skip hint; BG/window/OAM state still advances.
	DrawMask [visibleLines]bool
}

// New returns a PPU with power-on register defaults.
func New(irq *interrupts.Service) *PPU {
	p := &PPU{
		oam:  NewOAM(),
		irq:  irq,
		lcdc: lcdcPostBoot,
		mode: ModeOAMScan,
		BGP:  0xFC,
		OBP0: 0xFF,
		OBP1: 0xFF,
	}
	for i := range p.DrawMask {
		p.DrawMask[i] = true
	}
	return p
}

// SetDrawMask installs a per-line frame-skip hint from the presentation
// layer. It never affects BG/window/OAM state, only whether a line's pixels
// are computed.
func (p *PPU) SetDrawMask(mask [visibleLines]bool) {
	p.DrawMask = mask
}

// ForceFrameDone marks the current frame complete regardless of where the
// scanline machine is, so the frame driver returns at the next check. Used
// when the CPU hits an invalid opcode and the host needs control back.
func (p *PPU) ForceFrameDone() {
	p.frameDone = true
}

// Reset returns the PPU to its power-on state: VRAM cleared, registers at
// their defaults, the scanline machine back at the top of the frame. OAM
// keeps its contents, matching DMG hardware across a reset.
func (p *PPU) Reset() {
	p.lcdc = lcdcPostBoot
	p.statEnable = 0
	p.mode = ModeOAMScan
	p.coincidence = false
	p.LY, p.LYC = 0, 0
	p.SCX, p.SCY = 0, 0
	p.WX, p.WY = 0, 0
	p.BGP = 0xFC
	p.OBP0, p.OBP1 = 0xFF, 0xFF
	p.vram = [0x2000]uint8{}
	p.dots = 0
	p.frameDone = false
	p.lcdBlank = false
	p.windowLine = 0
	p.wyFrame = 0
	p.statLinePrev = false
}

// ConsumeFrameDone reports whether the PPU has entered VBlank since the
// last call, clearing the flag. The frame driver uses this as its
// suspension point.
func (p *PPU) ConsumeFrameDone() bool {
	done := p.frameDone
	p.frameDone = false
	return done
}

// FrameBuffer returns the current 160x144 frame, one byte per pixel: bits
// 0-1 are the 2-bit shade, bits 2-3 the palette tag (TagBG/TagOBJ0/TagOBJ1).
func (p *PPU) FrameBuffer() *[visibleLines][160]uint8 {
	return &p.buffer
}

// Tick advances the PPU by the given number of T-cycles, driving the mode
// machine and, on a Draw->HBlank edge, rendering the line that just
// finished.
func (p *PPU) Tick(tcycles uint8) {
	if !p.lcdEnabled() {
		return
	}
	for i := uint8(0); i < tcycles; i++ {
		p.tickDot()
	}
}

func (p *PPU) tickDot() {
	p.dots++

	if p.LY < visibleLines {
		switch p.mode {
		case ModeOAMScan:
			if p.dots == oamSearchDots {
				p.enterMode(ModeDraw)
			}
		case ModeDraw:
			if p.dots == oamSearchDots+transferDots {
				p.renderLine(p.LY)
				p.enterMode(ModeHBlank)
			}
		case ModeHBlank:
			if p.dots == lineDots {
				p.dots = 0
				p.setLY(p.LY + 1)
				if p.LY == visibleLines {
					p.enterMode(ModeVBlank)
					p.irq.Request(interrupts.VBlankFlag)
					p.frameDone = true
				} else {
					p.enterMode(ModeOAMScan)
				}
			}
		}
		return
	}

	// VBlank: LY runs 144..153 then wraps to 0 and a new frame begins.
	if p.dots == lineDots {
		p.dots = 0
		p.setLY(p.LY + 1)
		if p.LY == totalLines {
			p.setLY(0)
			p.windowLine = 0
			p.wyFrame = p.WY
			p.lcdBlank = false
			p.enterMode(ModeOAMScan)
		}
	}
}

func (p *PPU) enterMode(mode Mode) {
	p.mode = mode
	p.updateStatLine()
}

func (p *PPU) setLY(ly uint8) {
	p.LY = ly
	p.coincidence = p.LY == p.LYC
	p.updateStatLine()
}

// updateStatLine recomputes the combined STAT interrupt condition and
// requests an LCDC interrupt on its rising edge.
func (p *PPU) updateStatLine() {
	line := (p.coincidence && p.statEnable&statLYCIRQ != 0) ||
		(p.mode == ModeOAMScan && p.statEnable&statOAMIRQ != 0) ||
		(p.mode == ModeVBlank && p.statEnable&statVBlankIRQ != 0) ||
		(p.mode == ModeHBlank && p.statEnable&statHBlankIRQ != 0)
	if line && !p.statLinePrev {
		p.irq.Request(interrupts.LCDFlag)
	}
	p.statLinePrev = line
}

// vramRead/vramWrite bypass CPU access locking for the PPU's own line
// rendering, which must see VRAM regardless of the current mode.
func (p *PPU) vramRead(address uint16) uint8 { return p.vram[address] }

// renderLine decodes and writes the 160 pixels of scanline ly, applying
// BG, window, and sprite layers in that priority order.
func (p *PPU) renderLine(ly uint8) {
	windowDrawn := p.lcdc&lcdcWindowEnable != 0 && ly >= p.wyFrame && p.WX < 167
	if !p.DrawMask[ly] {
		if windowDrawn {
			p.windowLine++
		}
		return
	}

	if p.lcdBlank {
		p.buffer[ly] = [160]uint8{}
		if windowDrawn {
			p.windowLine++
		}
		return
	}

	var line [160]uint8
	var opaque [160]bool

	if p.lcdc&lcdcBGEnable != 0 {
		for x := 0; x < 160; x++ {
			bgX := p.SCX + uint8(x)
			bgY := p.SCY + ly
			idx := p.tileColorIndex(p.bgMapBase(), bgX, bgY)
			line[x] = pack(applyPalette(p.BGP, idx), TagBG)
			opaque[x] = idx != 0
		}
	}

	if windowDrawn {
		start := 0
		if p.WX >= 7 {
			start = int(p.WX) - 7
		}
		for x := start; x < 160; x++ {
			winX := uint8(x - start)
			idx := p.tileColorIndex(p.windowMapBase(), winX, p.windowLine)
			line[x] = pack(applyPalette(p.BGP, idx), TagBG)
			opaque[x] = idx != 0
		}
		p.windowLine++
	}

	if p.lcdc&lcdcOBJEnable != 0 {
		p.renderSprites(ly, &line, &opaque)
	}

	p.buffer[ly] = line
}

// tileColorIndex decodes the 2-bit color index for the tile-map pixel at
// (mapX, mapY) within the given 32x32 tile map, honoring the LCDC tile-data
// addressing mode (unsigned 0x8000 vs. signed 0x8800).
func (p *PPU) tileColorIndex(mapBase uint16, mapX, mapY uint8) uint8 {
	tileCol := uint16(mapX / 8)
	tileRow := uint16(mapY / 8)
	mapAddr := mapBase + tileRow*32 + tileCol
	tileIndex := p.vramRead(mapAddr - 0x8000)

	var tileAddr uint16
	if p.signedTileData() {
		tileAddr = uint16(int32(0x9000) + int32(int8(tileIndex))*16)
	} else {
		tileAddr = 0x8000 + uint16(tileIndex)*16
	}

	row := uint16(mapY % 8)
	lo := p.vramRead(tileAddr - 0x8000 + row*2)
	hi := p.vramRead(tileAddr - 0x8000 + row*2 + 1)
	bit := 7 - (mapX % 8)
	return bits.Val(lo, bit) | bits.Val(hi, bit)<<1
}

// TileAt decodes the full 8x8 tile at the given tile-data index, honoring
// the current LCDC addressing mode. This is a tooling accessor (VRAM
// viewers, debuggers); the line renderer decodes single rows inline.
func (p *PPU) TileAt(index uint8) Tile {
	var base uint16
	if p.signedTileData() {
		base = uint16(int32(0x9000)+int32(int8(index))*16) - 0x8000
	} else {
		base = uint16(index) * 16
	}
	var raw [16]uint8
	copy(raw[:], p.vram[base:base+16])
	return NewTile(raw)
}

// renderSprites scans OAM for sprites intersecting line ly, keeps at most
// 10 in priority order (lowest X first, OAM index tiebreak), and draws them
// lowest-priority-first so higher-priority sprites end up on top.
func (p *PPU) renderSprites(ly uint8, line *[160]uint8, opaque *[160]bool) {
	height := p.objHeight()

	var candidates []*Sprite
	for _, s := range p.oam.Sprites {
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		candidates = append(candidates, s)
		if len(candidates) == 10 {
			break
		}
	}

	// Insertion sort by descending X, and by descending OAM index among
	// equal X, so the highest-priority sprite (lowest X, then lowest OAM
	// index) is drawn last and ends up on top.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].X >= candidates[j-1].X; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	for _, s := range candidates {
		p.drawSprite(s, ly, height, line, opaque)
	}
}

func (p *PPU) drawSprite(s *Sprite, ly uint8, height int, line *[160]uint8, opaque *[160]bool) {
	row := int(ly) - s.Y
	if s.FlipY {
		row = height - 1 - row
	}

	tile := s.Tile
	if height == 16 {
		tile &^= 0x01
		if row >= 8 {
			tile |= 0x01
			row -= 8
		}
	}

	addr := uint16(tile)*16 + uint16(row)*2
	lo := p.vramRead(addr)
	hi := p.vramRead(addr + 1)

	palette := p.OBP0
	tag := uint8(TagOBJ0)
	if s.Palette == 1 {
		palette = p.OBP1
		tag = TagOBJ1
	}

	for sx := 0; sx < 8; sx++ {
		screenX := s.X + sx
		if screenX < 0 || screenX >= 160 {
			continue
		}
		col := sx
		if s.FlipX {
			col = 7 - sx
		}
		bit := uint8(7 - col)
		idx := bits.Val(lo, bit) | bits.Val(hi, bit)<<1
		if idx == 0 {
			continue
		}
		if s.BehindBG && opaque[screenX] {
			continue
		}
		line[screenX] = pack(applyPalette(palette, idx), tag)
	}
}

func applyPalette(palette, index uint8) uint8 {
	return (palette >> (index * 2)) & 0x03
}

func pack(shade, tag uint8) uint8 {
	return shade | tag<<2
}

// Read implements the MMU's IOBus interface for VRAM (0x8000-0x9FFF), OAM
// (0xFE00-0xFE9F), and the LCD register block (0xFF40-0xFF4B).
func (p *PPU) Read(address uint16) uint8 {
	switch {
	case address >= 0x8000 && address < 0xA000:
		if p.mode == ModeDraw {
			return 0xFF
		}
		return p.vram[address-0x8000]
	case address >= 0xFE00 && address < 0xFEA0:
		if p.mode == ModeOAMScan || p.mode == ModeDraw {
			return 0xFF
		}
		return p.oam.Read(address - 0xFE00)
	case address == regLCDC:
		return p.lcdc
	case address == regSTAT:
		return p.statRead()
	case address == regSCY:
		return p.SCY
	case address == regSCX:
		return p.SCX
	case address == regLY:
		return p.LY
	case address == regLYC:
		return p.LYC
	case address == regBGP:
		return p.BGP
	case address == regOBP0:
		return p.OBP0
	case address == regOBP1:
		return p.OBP1
	case address == regWY:
		return p.WY
	case address == regWX:
		return p.WX
	}
	return 0xFF
}

// Write implements the MMU's IOBus interface for the same address ranges
// as Read.
func (p *PPU) Write(address uint16, value uint8) {
	switch {
	case address >= 0x8000 && address < 0xA000:
		if p.mode == ModeDraw {
			return
		}
		p.vram[address-0x8000] = value
	case address >= 0xFE00 && address < 0xFEA0:
		if p.mode == ModeOAMScan || p.mode == ModeDraw {
			return
		}
		p.oam.Write(address-0xFE00, value)
	case address == regLCDC:
		wasEnabled := p.lcdEnabled()
		p.lcdc = value
		if wasEnabled && !p.lcdEnabled() {
			p.dots = 0
			p.LY = 0
			p.coincidence = false
			p.mode = ModeHBlank
		} else if !wasEnabled && p.lcdEnabled() {
			p.dots = 0
			p.LY = 0
			p.windowLine = 0
			p.wyFrame = p.WY
			p.lcdBlank = true
			p.mode = ModeOAMScan
		}
	case address == regSTAT:
		p.statWrite(value)
		p.updateStatLine()
	case address == regSCY:
		p.SCY = value
	case address == regSCX:
		p.SCX = value
	case address == regLY:
		// LY is read-only.
	case address == regLYC:
		p.LYC = value
		p.coincidence = p.LY == p.LYC
		p.updateStatLine()
	case address == regBGP:
		p.BGP = value
	case address == regOBP0:
		p.OBP0 = value
	case address == regOBP1:
		p.OBP1 = value
	case address == regWY:
		p.WY = value
	case address == regWX:
		p.WX = value
	}
}

// VRAMBytes returns the raw 8 KiB VRAM contents, for the state snapshot.
func (p *PPU) VRAMBytes() []byte { return append([]byte(nil), p.vram[:]...) }

// LoadVRAMBytes restores VRAM contents from a state snapshot.
func (p *PPU) LoadVRAMBytes(b []byte) { copy(p.vram[:], b) }

// OAMBytes returns the raw 160-byte OAM table, for the state snapshot.
func (p *PPU) OAMBytes() []byte { return p.oam.Bytes() }

// LoadOAMBytes restores OAM (and its decoded sprites) from a state
// snapshot.
func (p *PPU) LoadOAMBytes(b []byte) { p.oam.LoadBytes(b) }

// Save appends the PPU's full state, including VRAM and OAM, to b, for
// the state snapshot.
func (p *PPU) Save(b []byte) []byte {
	var frameDone, lcdBlank, statLinePrev uint8
	if p.frameDone {
		frameDone = 1
	}
	if p.lcdBlank {
		lcdBlank = 1
	}
	if p.statLinePrev {
		statLinePrev = 1
	}
	var coincidence uint8
	if p.coincidence {
		coincidence = 1
	}
	b = append(b, p.lcdc, p.statEnable)
	b = append(b, uint8(p.mode), coincidence)
	b = append(b, p.LY, p.LYC, p.SCX, p.SCY, p.WX, p.WY, p.BGP, p.OBP0, p.OBP1)
	b = append(b, uint8(p.dots>>8), uint8(p.dots))
	b = append(b, frameDone, lcdBlank, p.windowLine, p.wyFrame, statLinePrev)
	b = append(b, p.vram[:]...)
	b = append(b, p.oam.Bytes()...)
	return b
}

// Load restores the PPU's full state from b, returning the remaining
// bytes.
func (p *PPU) Load(b []byte) []byte {
	p.lcdc = b[0]
	p.statEnable = b[1] & statEnableMask
	p.mode = Mode(b[2])
	p.coincidence = b[3] != 0
	p.LY, p.LYC, p.SCX, p.SCY, p.WX, p.WY, p.BGP, p.OBP0, p.OBP1 =
		b[4], b[5], b[6], b[7], b[8], b[9], b[10], b[11], b[12]
	p.dots = uint16(b[13])<<8 | uint16(b[14])
	p.frameDone = b[15] != 0
	p.lcdBlank = b[16] != 0
	p.windowLine = b[17]
	p.wyFrame = b[18]
	p.statLinePrev = b[19] != 0
	b = b[20:]
	copy(p.vram[:], b[:len(p.vram)])
	b = b[len(p.vram):]
	p.oam.LoadBytes(b[:len(p.oam.Bytes())])
	return b[len(p.oam.Bytes()):]
}
