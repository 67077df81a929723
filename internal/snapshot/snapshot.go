// Package snapshot implements the machine-wide save state: a fixed
// header (magic, version, endianness, pointer width, a timestamp, and a
// script-present flag), a ROM fingerprint, the
// serialized state of every component, and an xxhash checksum over the
// compressed body. WRAM, VRAM (carried inside the PPU block), and cart
// RAM dominate the body's size, so the whole body is brotli-compressed
// as one stream rather than block by block.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cespare/xxhash"

	"github.com/galecore/gbcore/internal/apu"
	"github.com/galecore/gbcore/internal/cartridge"
	"github.com/galecore/gbcore/internal/cpu"
	"github.com/galecore/gbcore/internal/interrupts"
	"github.com/galecore/gbcore/internal/joypad"
	"github.com/galecore/gbcore/internal/ppu"
	"github.com/galecore/gbcore/internal/serial"
	"github.com/galecore/gbcore/internal/timer"
	"github.com/galecore/gbcore/pkg/emulator"
)

// magic opens every snapshot file, chosen to be unambiguous in a hex
// dump and to abort cleanly on a text-mode line-ending transform (the
// trailing \n\x1A mirrors the DOS EOF convention many binary formats
// borrow for exactly that reason).
var magic = [8]byte{0xFA, 0x43, 0x42, 's', 'a', 'v', '\n', 0x1A}

const formatVersion uint8 = 1

// endianByte records the byte order the body was written in. The core
// only ever runs little-endian, but the byte is still checked at load
// time so a save produced by a differently-endianed build fails loudly
// instead of decoding into garbage state.
const endianByte uint8 = 1

const headerSize = 8 + 1 + 1 + 1 + 1 + 8 + 1 + cartridge.FingerprintSize + 4 + 4 + 8

func pointerWidthByte() uint8 { return uint8(strconv.IntSize / 8) }

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readUint32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[:4])
}

// Input gathers everything Save needs to read and Load needs to write
// back into, without snapshot importing the machine or mmu packages
// directly.
type Input struct {
	CPU    *cpu.CPU
	IRQ    *interrupts.Service
	Timer  *timer.Controller
	Serial *serial.Controller
	Joypad *joypad.Joypad
	APU    *apu.APU
	PPU    *ppu.PPU

	GetWRAM func() []byte
	SetWRAM func([]byte)
	GetHRAM func() []byte
	SetHRAM func([]byte)

	GetCartRAM func() []byte
	SetCartRAM func([]byte) error

	HasRTC bool
	GetRTC func() [5]byte
	SetRTC func([5]byte)

	Fingerprint [cartridge.FingerprintSize]byte

	// Breakpoints returns the currently armed breakpoint addresses, for
	// Save. RestoreBreakpoints re-arms a loaded set of addresses.
	Breakpoints        func() []uint16
	RestoreBreakpoints func([]uint16)
}

func (in Input) body() []byte {
	var buf []byte
	buf = in.CPU.Save(buf)
	buf = in.IRQ.Save(buf)
	buf = in.Timer.Save(buf)
	buf = in.Serial.Save(buf)
	buf = in.Joypad.Save(buf)
	buf = in.APU.Save(buf)
	buf = in.PPU.Save(buf)

	wram := in.GetWRAM()
	buf = appendUint32(buf, uint32(len(wram)))
	buf = append(buf, wram...)

	hram := in.GetHRAM()
	buf = appendUint32(buf, uint32(len(hram)))
	buf = append(buf, hram...)

	cartRAM := in.GetCartRAM()
	buf = appendUint32(buf, uint32(len(cartRAM)))
	buf = append(buf, cartRAM...)

	var hasRTC uint8
	if in.HasRTC {
		hasRTC = 1
	}
	buf = append(buf, hasRTC)
	if in.HasRTC {
		rtc := in.GetRTC()
		buf = append(buf, rtc[:]...)
	}

	breakpoints := in.Breakpoints()
	buf = append(buf, byte(len(breakpoints)), byte(len(breakpoints)>>8))
	for _, addr := range breakpoints {
		buf = append(buf, byte(addr), byte(addr>>8))
	}

	return buf
}

func (in Input) load(buf []byte) error {
	// Every component block has a fixed size, so the cart-RAM length can be
	// located and checked before any component is restored.
	off := len(in.CPU.Save(nil)) + len(in.IRQ.Save(nil)) + len(in.Timer.Save(nil)) +
		len(in.Serial.Save(nil)) + len(in.Joypad.Save(nil)) + len(in.APU.Save(nil)) + len(in.PPU.Save(nil))
	off += 4 + int(readUint32(buf[off:])) // WRAM
	off += 4 + int(readUint32(buf[off:])) // HRAM
	if cartRAMLen := int(readUint32(buf[off:])); cartRAMLen != len(in.GetCartRAM()) {
		return emulator.New(emulator.StateSramSizeMismatch, cartRAMLen)
	}

	buf = in.CPU.Load(buf)
	buf = in.IRQ.Load(buf)
	buf = in.Timer.Load(buf)
	buf = in.Serial.Load(buf)
	buf = in.Joypad.Load(buf)
	buf = in.APU.Load(buf)
	buf = in.PPU.Load(buf)

	wramLen := int(readUint32(buf))
	buf = buf[4:]
	in.SetWRAM(buf[:wramLen])
	buf = buf[wramLen:]

	hramLen := int(readUint32(buf))
	buf = buf[4:]
	in.SetHRAM(buf[:hramLen])
	buf = buf[hramLen:]

	cartRAMLen := int(readUint32(buf))
	buf = buf[4:]
	if len(in.GetCartRAM()) != cartRAMLen {
		return emulator.New(emulator.StateSramSizeMismatch, cartRAMLen)
	}
	if err := in.SetCartRAM(buf[:cartRAMLen]); err != nil {
		return err
	}
	buf = buf[cartRAMLen:]

	hasRTC := buf[0] != 0
	buf = buf[1:]
	if hasRTC && in.HasRTC {
		var rtc [5]byte
		copy(rtc[:], buf[:5])
		in.SetRTC(rtc)
		buf = buf[5:]
	} else if hasRTC {
		buf = buf[5:]
	}

	bpCount := int(buf[0]) | int(buf[1])<<8
	buf = buf[2:]
	addrs := make([]uint16, bpCount)
	for i := 0; i < bpCount; i++ {
		addrs[i] = uint16(buf[0]) | uint16(buf[1])<<8
		buf = buf[2:]
	}
	if in.RestoreBreakpoints != nil {
		in.RestoreBreakpoints(addrs)
	}

	return nil
}

// Save writes a full machine snapshot to w. scripted marks whether a
// breakpoint script was active, a hint the header carries for tooling
// that wants to distinguish plain save states from scripted sessions.
func Save(w io.Writer, in Input, scripted bool) error {
	plain := in.body()

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.DefaultCompression)
	if _, err := bw.Write(plain); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}

	checksum := xxhash.Sum64(compressed.Bytes())

	var scriptFlag uint8
	if scripted {
		scriptFlag = 1
	}

	header := make([]byte, 0, headerSize)
	header = append(header, magic[:]...)
	header = append(header, formatVersion, endianByte, pointerWidthByte(), 0)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(time.Now().Unix()))
	header = append(header, ts[:]...)
	header = append(header, scriptFlag)
	header = append(header, in.Fingerprint[:]...)

	var lens [8]byte
	binary.LittleEndian.PutUint32(lens[:4], uint32(compressed.Len()))
	binary.LittleEndian.PutUint32(lens[4:], uint32(len(plain)))
	header = append(header, lens[:]...)

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], checksum)
	header = append(header, sum[:]...)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(compressed.Bytes())
	return err
}

// Load reads a snapshot written by Save and restores it into in's
// components. The loaded state is validated against the currently
// running machine's ROM fingerprint and cart-RAM size before anything is
// mutated; on any validation failure, in is left untouched.
func Load(r io.Reader, in Input) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(raw) < headerSize {
		return emulator.New(emulator.StateSizeMismatch, len(raw))
	}

	if !bytes.Equal(raw[:8], magic[:]) {
		return emulator.New(emulator.StateMagicMismatch, raw[:8])
	}
	pos := 8

	if raw[pos] != formatVersion {
		return emulator.New(emulator.StateVersionMismatch, raw[pos])
	}
	pos++
	if raw[pos] != endianByte {
		return emulator.New(emulator.StateEndianMismatch, raw[pos])
	}
	pos++
	if raw[pos] != pointerWidthByte() {
		return emulator.New(emulator.StatePointerWidthMismatch, raw[pos])
	}
	pos++
	pos++ // reserved
	pos += 8 // timestamp, informational only
	pos++    // script flag, informational only

	var fingerprint [cartridge.FingerprintSize]byte
	copy(fingerprint[:], raw[pos:pos+cartridge.FingerprintSize])
	pos += cartridge.FingerprintSize
	if fingerprint != in.Fingerprint {
		return emulator.New(emulator.StateFingerprintMismatch, fingerprint)
	}

	compressedLen := binary.LittleEndian.Uint32(raw[pos : pos+4])
	pos += 4
	plainLen := binary.LittleEndian.Uint32(raw[pos : pos+4])
	pos += 4
	checksum := binary.LittleEndian.Uint64(raw[pos : pos+8])
	pos += 8

	if pos+int(compressedLen) != len(raw) {
		return emulator.New(emulator.StateSizeMismatch, len(raw)-pos)
	}
	body := raw[pos:]

	if xxhash.Sum64(body) != checksum {
		return emulator.New(emulator.StateChecksumMismatch, nil)
	}

	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	if err != nil {
		return err
	}
	if uint32(len(plain)) != plainLen {
		return emulator.New(emulator.StateSizeMismatch, len(plain))
	}

	return in.load(plain)
}
