// Package boot provides optional DMG boot ROM support. Whilst not strictly
// required for the core to function, a boot ROM can be mapped over
// 0x0000-0x00FF so the Nintendo logo scroll and register initialization
// run as real hardware.
package boot

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// ROM represents a DMG boot ROM. Once it has scrolled the logo and
// initialized hardware registers, the game writes to BDIS (0xFF50) to
// unmap it and start cartridge execution.
type ROM struct {
	raw      []byte
	checksum string
}

// LoadBootROM loads a boot ROM, validating it is the 256-byte DMG/MGB/SGB
// length. CGB boot ROMs (2304 bytes) are out of scope.
func LoadBootROM(b []byte) (*ROM, error) {
	if len(b) != 256 {
		return nil, fmt.Errorf("boot: invalid boot rom length: %d", len(b))
	}
	sum := md5.Sum(b)
	return &ROM{
		raw:      b,
		checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// Read returns the byte at the given address.
func (b *ROM) Read(addr uint16) byte {
	return b.raw[addr]
}

// Checksum returns the MD5 checksum of the boot ROM.
func (b *ROM) Checksum() string {
	if b == nil {
		return ""
	}
	return b.checksum
}

// Model returns the known model name for the boot ROM's checksum, or
// "unknown" if it isn't one of the recognised dumps.
func (b *ROM) Model() string {
	if b == nil {
		return "none"
	}
	if model, ok := knownBootROMChecksums[b.checksum]; ok {
		return model
	}
	return "unknown"
}

var knownBootROMChecksums = map[string]string{
	DMG0: "Game Boy (DMG-0)",
	DMG:  "Game Boy (DMG-01)",
	MGB:  "Game Boy Pocket",
}

const (
	// DMG0 is the checksum of the early DMG boot ROM found only in very
	// early, Japan-only units. On a failed cartridge checksum, it flashes
	// the screen rather than hanging after the logo.
	DMG0 = "a8f84a0ac44da5d3f0ee19f9cea80a8c"
	// DMG is the checksum of the boot ROM found in most original DMG-01
	// units.
	DMG = "32fbbd84168d3482956eb3c5051637f5"
	// MGB is the checksum of the Game Boy Pocket boot ROM, which differs
	// from DMG by a single byte: it loads 0xFF into A instead of 0x01, so
	// games can detect MGB hardware.
	MGB = "71a378e71ff30b2d8a1f02bf5c7896aa"
)
