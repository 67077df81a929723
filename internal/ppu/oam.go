package ppu

// OAM (Object Attribute Memory) is the memory used to store the
// attributes of the sprites. It is 160 bytes long and is located at
// 0xFE00-0xFE9F in the memory map. It is divided in 40 entries of 4 bytes
// each, each entry representing a sprite.
type OAM struct {
	Sprites [40]*Sprite // 40 sprites

	// raw data
	data [160]byte
}

func (o *OAM) init() {
	for i := range o.Sprites {
		o.Sprites[i] = &Sprite{}
	}
}

// NewOAM returns an empty OAM table.
func NewOAM() *OAM {
	o := &OAM{}
	o.init()
	return o
}

// Read returns the raw byte at the given OAM-relative address (0-159).
func (o *OAM) Read(address uint16) uint8 {
	return o.data[address]
}

// Write writes the raw byte at the given OAM-relative address (0-159) and
// updates the decoded Sprite it belongs to.
func (o *OAM) Write(address uint16, value uint8) {
	o.Sprites[address>>2].Update(int(address)%4, value)
	o.data[address] = value
}

// Bytes returns the raw 160-byte OAM table, for the state snapshot.
func (o *OAM) Bytes() []byte {
	return append([]byte(nil), o.data[:]...)
}

// LoadBytes restores the OAM table (and its decoded sprites) from a
// snapshot.
func (o *OAM) LoadBytes(b []byte) {
	for i := 0; i < 160; i++ {
		o.Write(uint16(i), b[i])
	}
}
