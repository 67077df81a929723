package ppu

// Sprite holds one OAM entry's decoded attributes. Game Boy sprite
// coordinates are offset by (8, 16) from screen space; Update stores them
// already adjusted so callers can compare directly against LY/X.
type Sprite struct {
	X    int
	Y    int
	Tile uint8
	// BehindBG is set when the sprite draws behind background/window colors
	// 1-3 (OBJ-to-BG priority bit). Background color 0 never hides a sprite.
	BehindBG bool
	// FlipY mirrors the sprite vertically.
	FlipY bool
	// FlipX mirrors the sprite horizontally.
	FlipX bool
	// Palette selects OBP0 (0) or OBP1 (1).
	Palette uint8
}

// Update applies one of the four OAM attribute bytes (0=Y, 1=X, 2=tile,
// 3=flags) to the sprite.
func (s *Sprite) Update(attribute int, value uint8) {
	switch attribute {
	case 0:
		s.Y = int(value) - 16
	case 1:
		s.X = int(value) - 8
	case 2:
		s.Tile = value
	case 3:
		s.BehindBG = value&0x80 != 0
		s.FlipY = value&0x40 != 0
		s.FlipX = value&0x20 != 0
		if value&0x10 != 0 {
			s.Palette = 1
		} else {
			s.Palette = 0
		}
	}
}
