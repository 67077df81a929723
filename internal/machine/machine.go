// Package machine assembles the CPU and its peripherals into a runnable
// Game Boy and drives them one frame at a time: Step the CPU, distribute
// its returned cycle count to the timer, PPU, APU, and serial port, and
// stop once the PPU reports a completed frame.
package machine

import (
	"fmt"
	"io"
	"time"

	"github.com/galecore/gbcore/internal/apu"
	"github.com/galecore/gbcore/internal/boot"
	"github.com/galecore/gbcore/internal/breakpoint"
	"github.com/galecore/gbcore/internal/cartridge"
	"github.com/galecore/gbcore/internal/cpu"
	"github.com/galecore/gbcore/internal/gbstate"
	"github.com/galecore/gbcore/internal/interrupts"
	"github.com/galecore/gbcore/internal/joypad"
	"github.com/galecore/gbcore/internal/mmu"
	"github.com/galecore/gbcore/internal/ppu"
	"github.com/galecore/gbcore/internal/serial"
	"github.com/galecore/gbcore/internal/snapshot"
	"github.com/galecore/gbcore/internal/timer"
	"github.com/galecore/gbcore/pkg/emulator"
	"github.com/galecore/gbcore/pkg/gblog"
)

// Hooks lets an embedding host observe machine events without the core
// importing anything host-specific.
type Hooks struct {
	// OnBreakpoint is invoked when execution reaches an armed breakpoint.
	OnBreakpoint func(index int, c *cpu.CPU)
	// OnError is invoked for non-fatal conditions the core wants to
	// surface: an invalid opcode, or a read or write of an unmapped I/O
	// register. Cartridge and save errors are returned, not reported here.
	OnError func(kind emulator.Kind, value interface{})
	// Now returns the current Unix timestamp, used for .sav timestamps
	// and RTC catch-up. A nil Now falls back to the wall clock.
	Now func() int64
}

// rtcCatchUpSecondsPerFrame bounds how many owed RTC seconds a single
// RunFrame applies, so loading a weeks-old save never stalls one frame;
// the backlog drains across consecutive frames instead.
const rtcCatchUpSecondsPerFrame = 86400

type breakpointHookFunc func(index int, c *cpu.CPU)

func (f breakpointHookFunc) OnBreakpoint(index int, c *cpu.CPU) { f(index, c) }

// Machine owns one loaded cartridge and every peripheral wired to it.
type Machine struct {
	CPU *cpu.CPU

	mmu         *mmu.MMU
	ppu         *ppu.PPU
	apu         *apu.APU
	joypad      *joypad.Joypad
	timer       *timer.Controller
	serial      *serial.Controller
	irq         *interrupts.Service
	cart        *cartridge.Cartridge
	bootROM     *boot.ROM
	breakpoints *breakpoint.Manager

	hooks Hooks

	state   emulator.State
	status  emulator.Status
	rtcOwed uint32
}

var _ emulator.Controller = (*Machine)(nil)

// New loads rom and builds a machine ready to run. bootROM may be nil, in
// which case the CPU starts in its post-boot register state; otherwise
// execution begins at 0x0000 and runs the boot ROM first.
func New(rom []byte, bootROM []byte, hooks Hooks) (*Machine, error) {
	cart, err := cartridge.New(rom)
	if err != nil {
		return nil, err
	}

	var bootImage *boot.ROM
	if bootROM != nil {
		bootImage, err = boot.LoadBootROM(bootROM)
		if err != nil {
			return nil, err
		}
	}

	irq := interrupts.NewService()

	m := &Machine{
		irq:     irq,
		cart:    cart,
		bootROM: bootImage,
		hooks:   hooks,
	}

	m.ppu = ppu.New(irq)
	m.apu = apu.New()
	m.timer = timer.NewController(irq)
	m.serial = serial.NewController(irq)
	m.joypad = joypad.New(irq)

	m.mmu = mmu.New(cart, irq, bootImage, gblog.New())
	m.mmu.AttachVideo(m.ppu)
	m.mmu.AttachSound(m.apu)
	m.mmu.AttachJoypad(m.joypad)
	m.mmu.AttachTimer(m.timer)
	m.mmu.AttachSerial(m.serial)

	m.CPU = cpu.New(m.mmu, irq)
	if bootImage == nil {
		m.CPU.SetPostBootState()
	} else {
		m.CPU.Reset()
	}

	m.breakpoints = breakpoint.NewManager(cart, nil)
	if hooks.OnBreakpoint != nil {
		m.breakpoints.SetHook(breakpointHookFunc(hooks.OnBreakpoint))
	}
	m.CPU.Breakpoints = m.breakpoints

	m.mmu.SetErrorHandler(m.reportError)
	m.CPU.InvalidOpcodeHandler = func(opcode uint8) {
		m.status = emulator.Errored
		m.reportError(emulator.InvalidOpcode, opcode)
		// Hand control back to the host at the next frame-done check so
		// it can present an error; the machine stays inspectable.
		m.ppu.ForceFrameDone()
	}

	return m, nil
}

// Reset restores the machine to its state just after construction: CPU at
// its post-boot register values (or at 0x0000 with the boot ROM remapped,
// when one is attached), WRAM and VRAM cleared, the PPU, APU, timer,
// serial and interrupt registers at their power-on defaults. OAM and HRAM
// keep their contents, matching DMG hardware across a reset. Cart RAM, the
// RTC, armed breakpoints, and the joypad's row select and held buttons are
// untouched.
func (m *Machine) Reset() {
	if m.bootROM == nil {
		m.CPU.SetPostBootState()
	} else {
		m.CPU.Reset()
	}
	m.mmu.Reset()
	m.ppu.Reset()
	m.apu.Reset()
	m.timer.Reset()
	m.serial.Reset()
	m.irq.Reset()
	m.state = emulator.Running
	m.status = emulator.Execution
}

// RunFrame steps the CPU until the PPU completes one frame, ticking every
// peripheral by the cycle cost of each instruction along the way.
func (m *Machine) RunFrame() {
	if m.state == emulator.Paused || m.state == emulator.Stopped {
		return
	}
	if m.rtcOwed > 0 {
		m.rtcOwed = m.cart.CatchUpRTC(m.rtcOwed, rtcCatchUpSecondsPerFrame)
	}
	for {
		cycles := m.CPU.Step()
		m.timer.Tick(cycles)
		m.ppu.Tick(cycles)
		m.apu.Tick(cycles)
		m.serial.Tick(cycles)
		m.cart.TickRTC(uint32(cycles))

		if m.ppu.ConsumeFrameDone() {
			return
		}
	}
}

// FrameBuffer returns the PPU's completed-frame pixel buffer, 160x144, one
// byte per pixel: bits 0-1 are the 2-bit shade, bits 2-3 the palette tag
// (ppu.TagBG/TagOBJ0/TagOBJ1).
func (m *Machine) FrameBuffer() *[144][160]uint8 {
	return m.ppu.FrameBuffer()
}

// SetDrawMask installs a per-line mask: a line whose entry is false is not
// rendered and keeps its previous pixels in the frame buffer.
func (m *Machine) SetDrawMask(mask [144]bool) {
	m.ppu.SetDrawMask(mask)
}

// AttachSynthesizer wires an audio backend to the APU's register-level
// front end. Synthesis itself is out of scope for the core.
func (m *Machine) AttachSynthesizer(s apu.Synthesizer) {
	m.apu.AttachSynthesizer(s)
}

// ProcessInputs applies a batch of joypad button transitions.
func (m *Machine) ProcessInputs(inputs joypad.Inputs) {
	m.joypad.ProcessInputs(inputs)
}

// ReadByte reads a single byte from the full 64 KiB address space, for
// tooling that needs raw memory access (a debugger, a disassembler).
func (m *Machine) ReadByte(address uint16) uint8 { return m.mmu.Read(address) }

// WriteByte writes a single byte to the full 64 KiB address space.
func (m *Machine) WriteByte(address uint16, value uint8) { m.mmu.Write(address, value) }

// Cartridge returns the loaded cartridge, for inspecting its header or
// persisting its battery-backed RAM.
func (m *Machine) Cartridge() *cartridge.Cartridge { return m.cart }

// SetBreakpoint arms a breakpoint at address in the currently switched-in
// ROM bank and returns its index.
func (m *Machine) SetBreakpoint(address uint16) int { return m.breakpoints.Set(address) }

// ClearBreakpoint disarms the breakpoint at index.
func (m *Machine) ClearBreakpoint(index int) { m.breakpoints.Clear(index) }

// SaveSRAM returns a copy of the cartridge's battery-backed RAM.
func (m *Machine) SaveSRAM() []byte {
	sram := m.cart.SRAM()
	out := make([]byte, len(sram))
	copy(out, sram)
	return out
}

// LoadSRAM restores battery-backed RAM from a previously saved image.
func (m *Machine) LoadSRAM(data []byte) error { return m.cart.LoadSRAM(data) }

// CatchUpRTC advances the cartridge's real-time clock by elapsedSeconds
// of wall-clock time, in bounded per-call chunks, and returns the portion
// still owed to a future call.
func (m *Machine) CatchUpRTC(elapsedSeconds, maxSecondsPerCall uint32) uint32 {
	return m.cart.CatchUpRTC(elapsedSeconds, maxSecondsPerCall)
}

// SetJoypad applies a full joypad state in the hardware's active-low
// convention: a cleared bit means the button is held. Bit order is
// A/B/Select/Start/Right/Left/Up/Down from bit 0.
func (m *Machine) SetJoypad(bits uint8) {
	m.joypad.SetState(^bits)
}

// SetRTC resets the cartridge's real-time clock, if present, to the given
// absolute elapsed-seconds value.
func (m *Machine) SetRTC(seconds uint32) {
	m.cart.SetRTC(seconds)
}

// SRAMDirty reports whether cart RAM has changed since the last call to
// SaveSRAMLayout (or ClearSRAMDirty on the cartridge).
func (m *Machine) SRAMDirty() bool { return m.cart.SRAMDirty() }

// SaveSRAMLayout encodes the persistent .sav byte layout: the raw cart
// RAM, then, if the cartridge carries a battery-backed RTC, the five live
// RTC registers and a little-endian 32-bit last-saved Unix timestamp.
func (m *Machine) SaveSRAMLayout() []byte {
	buf := gbstate.NewBuffer()
	buf.WriteData(m.cart.SRAM())
	if m.cart.HasRTC() {
		rtc := m.cart.RTCBytes()
		buf.WriteData(rtc[:])
		buf.Write32(uint32(m.now()))
	}
	m.cart.ClearSRAMDirty()
	return buf.Bytes()
}

// LoadSRAMLayout restores a SaveSRAMLayout-encoded .sav image. When the
// image carries an RTC block and its timestamp is in the past, the
// elapsed seconds are owed to the RTC and applied over the following
// frames in bounded chunks.
func (m *Machine) LoadSRAMLayout(data []byte) error {
	sramLen := len(m.cart.SRAM())
	if !m.cart.HasRTC() {
		return m.cart.LoadSRAM(data)
	}

	if len(data) != sramLen+5+4 {
		return emulator.New(emulator.StateSramSizeMismatch, len(data))
	}
	buf := gbstate.FromBytes(data)
	if err := m.cart.LoadSRAM(buf.ReadData(sramLen)); err != nil {
		return err
	}
	var rtc [5]byte
	copy(rtc[:], buf.ReadData(5))
	m.cart.LoadRTCBytes(rtc)
	if saved := int64(buf.Read32()); m.now() > saved {
		m.rtcOwed = uint32(m.now() - saved)
	}
	return nil
}

func (m *Machine) now() int64 {
	if m.hooks.Now != nil {
		return m.hooks.Now()
	}
	return time.Now().Unix()
}

// Pause suspends frame stepping; RunFrame returns immediately until
// Resume.
func (m *Machine) Pause() { m.state = emulator.Paused }

// Resume re-enables frame stepping after a Pause (or a Close command).
func (m *Machine) Resume() { m.state = emulator.Running }

// Paused reports whether the machine is currently paused.
func (m *Machine) Paused() bool { return m.state.IsPaused() }

// State returns the machine's run/pause/stop lifecycle state.
func (m *Machine) State() emulator.State { return m.state }

// Status returns the CPU's condition: Errored after an invalid opcode,
// Halted while waiting on an interrupt, Execution otherwise.
func (m *Machine) Status() emulator.Status {
	if m.status == emulator.Errored {
		return emulator.Errored
	}
	if m.CPU.Halted() {
		return emulator.Halted
	}
	return emulator.Execution
}

// HandleCommand services one host control-channel packet and returns its
// response, so an embedding host can drive the machine over a queue or
// socket without binding to its method set.
func (m *Machine) HandleCommand(pkt emulator.CommandPacket) emulator.ResponsePacket {
	resp := emulator.ResponsePacket{Command: pkt.Command}
	switch pkt.Command {
	case emulator.CommandPause:
		m.Pause()
	case emulator.CommandResume:
		m.Resume()
	case emulator.CommandReset:
		m.Reset()
	case emulator.CommandClose:
		m.state = emulator.Stopped
		resp.Data = m.SaveSRAMLayout()
	case emulator.CommandLoadSave:
		resp.Error = m.LoadSRAMLayout(pkt.Data)
	default:
		// CommandLoadROM and CommandSetSpeed need a new machine and a
		// host-side pacing loop respectively; neither can be serviced
		// from inside a running instance.
		resp.Error = fmt.Errorf("machine: unsupported command %d", pkt.Command)
	}
	return resp
}

// reportError forwards a non-fatal condition to the host, if it asked to
// hear about them.
func (m *Machine) reportError(kind emulator.Kind, value interface{}) {
	if m.hooks.OnError != nil {
		m.hooks.OnError(kind, value)
	}
}

func (m *Machine) snapshotInput() snapshot.Input {
	rom := m.cart.RawROM()
	fp := m.cart.Fingerprint(rom)
	return snapshot.Input{
		CPU:    m.CPU,
		IRQ:    m.irq,
		Timer:  m.timer,
		Serial: m.serial,
		Joypad: m.joypad,
		APU:    m.apu,
		PPU:    m.ppu,

		GetWRAM: m.mmu.WRAMBytes,
		SetWRAM: m.mmu.LoadWRAMBytes,
		GetHRAM: m.mmu.HRAMBytes,
		SetHRAM: m.mmu.LoadHRAMBytes,

		GetCartRAM: m.cart.SRAM,
		SetCartRAM: m.cart.LoadSRAM,

		HasRTC: m.cart.HasRTC(),
		GetRTC: m.cart.RTCBytes,
		SetRTC: m.cart.LoadRTCBytes,

		Fingerprint: fp,

		Breakpoints:        m.breakpoints.Addresses,
		RestoreBreakpoints: m.breakpoints.Restore,
	}
}

// SaveState writes a full machine snapshot to w: CPU, interrupt, timer,
// serial, joypad, APU, and PPU state, WRAM, HRAM, cart RAM, RTC (if
// present), and the active breakpoint set.
func (m *Machine) SaveState(w io.Writer) error {
	scripted := m.hooks.OnBreakpoint != nil
	return snapshot.Save(w, m.snapshotInput(), scripted)
}

// LoadState restores a machine snapshot previously written by SaveState.
// The snapshot's ROM fingerprint and cart-RAM size must match this
// machine's currently loaded cartridge; on any mismatch, the machine is
// left unmodified.
func (m *Machine) LoadState(r io.Reader) error {
	if err := snapshot.Load(r, m.snapshotInput()); err != nil {
		return err
	}
	// A restored machine is healthy by definition, even if this instance
	// had previously hit an invalid opcode.
	m.status = emulator.Execution
	return nil
}
