// Package cpu implements a cycle-approximate interpreter for the Sharp
// LR35902: the CPU fetches and executes exactly one instruction (or,
// while halted, reports a fixed quantum) per Step call and returns the
// T-cycles it consumed. It does not advance the timer, PPU, APU, or
// serial port itself; the frame driver ticks those components by the
// returned cycle count, keeping the CPU free of back-pointers into the
// rest of the machine.
package cpu

import (
	"github.com/galecore/gbcore/internal/interrupts"
)

// BreakpointOpcode is the illegal DMG opcode used as a breakpoint sentinel.
const BreakpointOpcode = 0xD3

// Bus is the address space the CPU fetches instructions and data from.
// *mmu.MMU satisfies this; tests can supply a flat byte-array fake.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// BreakpointHook lets a higher layer intercept execution when the CPU
// fetches BreakpointOpcode. Implementations restore the original byte,
// run user code, optionally execute the real instruction, and reinstall
// the sentinel, returning the T-cycles consumed.
type BreakpointHook interface {
	Hit(c *CPU) uint8
}

// CPU is the Sharp LR35902 interpreter.
type CPU struct {
	Registers
	PC uint16
	SP uint16

	bus Bus
	irq *interrupts.Service

	halted bool

	// imeScheduled counts down the EI instruction's documented one-
	// instruction delay before IME actually takes effect: 2 at the step
	// following EI, 1 (and IME set) at the step after that.
	imeScheduled uint8

	Breakpoints BreakpointHook

	// InvalidOpcodeHandler is invoked when the CPU fetches a byte with no
	// defined instruction (0xD3, 0xDB, ...). PC has already advanced past
	// the offending byte when it runs, so the handler can inspect PC-1 for
	// post-mortem reporting.
	InvalidOpcodeHandler func(opcode uint8)
}

// New returns a CPU wired to the given bus and interrupt controller, with
// registers at their documented DMG post-boot-ROM values. Callers that
// attach a boot ROM should leave these at zero instead by calling Reset.
func New(bus Bus, irq *interrupts.Service) *CPU {
	c := &CPU{bus: bus, irq: irq}
	c.SetPostBootState()
	return c
}

// SetPostBootState sets the registers to the values real DMG hardware
// leaves them in immediately after the boot ROM hands off to the
// cartridge, used when no boot ROM image is supplied.
func (c *CPU) SetPostBootState() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.halted = false
	c.imeScheduled = 0
}

// Reset sets the CPU to its true power-on state, PC at 0x0000, for use
// with an attached boot ROM.
func (c *CPU) Reset() {
	c.Registers = Registers{}
	c.SP = 0
	c.PC = 0
	c.halted = false
	c.imeScheduled = 0
}

// Halted reports whether the CPU is in the HALT low-power state.
func (c *CPU) Halted() bool { return c.halted }

// Step services a pending interrupt, executes exactly one instruction (or
// the fixed HALT quantum), and returns the number of T-cycles consumed.
func (c *CPU) Step() uint8 {
	if c.imeScheduled > 0 {
		c.imeScheduled--
		if c.imeScheduled == 0 {
			c.irq.IME = true
		}
	}

	pending := c.irq.Flag & c.irq.Enable & 0x1F
	if c.halted && pending != 0 {
		c.halted = false
	}

	if c.irq.IME && pending != 0 {
		return c.serviceInterrupt(pending)
	}

	if c.halted {
		return 4
	}

	if c.bus.Read(c.PC) == BreakpointOpcode && c.Breakpoints != nil {
		return c.Breakpoints.Hit(c)
	}
	return c.ExecuteOne()
}

// scheduleEnableIME arms the EI delay: IME takes effect at the start of
// the step after the one immediately following EI's own.
func (c *CPU) scheduleEnableIME() { c.imeScheduled = 2 }

// ExecuteOne fetches and executes a single instruction at PC, advancing
// PC past it, without touching interrupt or HALT state. Exposed for the
// breakpoint mechanism, which re-enters it after temporarily restoring a
// patched-over opcode.
func (c *CPU) ExecuteOne() uint8 {
	opcode := c.fetch8()
	instr := opcodes[opcode]
	return instr.execute(c)
}

var interruptVectors = [5]uint16{
	interrupts.VBlank,
	interrupts.LCD,
	interrupts.Timer,
	interrupts.Serial,
	interrupts.Joypad,
}

// serviceInterrupt dispatches the highest-priority pending, enabled
// interrupt: VBLANK > LCDC > TIMER > SERIAL > JOYPAD. Servicing costs a
// fixed 5 M-cycles (20 T-cycles) on real hardware.
func (c *CPU) serviceInterrupt(pending uint8) uint8 {
	for i := uint8(0); i < 5; i++ {
		if pending&(1<<i) == 0 {
			continue
		}
		c.irq.IME = false
		c.irq.Clear(i)
		c.push16(c.PC)
		c.PC = interruptVectors[i]
		return 20
	}
	return 0
}

// Save appends the CPU's register file and scheduling state to b, for the
// state snapshot.
func (c *CPU) Save(b []byte) []byte {
	var halted uint8
	if c.halted {
		halted = 1
	}
	b = append(b, c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L)
	b = append(b, uint8(c.PC>>8), uint8(c.PC), uint8(c.SP>>8), uint8(c.SP))
	b = append(b, halted, c.imeScheduled)
	return b
}

// Load restores the CPU's register file and scheduling state from b,
// returning the remaining bytes.
func (c *CPU) Load(b []byte) []byte {
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7]
	c.PC = uint16(b[8])<<8 | uint16(b[9])
	c.SP = uint16(b[10])<<8 | uint16(b[11])
	c.halted = b[12] != 0
	c.imeScheduled = b[13]
	return b[14:]
}

// invalidOpcode reports a fetch of an undefined instruction byte and
// consumes a fetch's worth of cycles so the machine stays steppable for
// post-mortem inspection.
func (c *CPU) invalidOpcode(opcode uint8) uint8 {
	if c.InvalidOpcodeHandler != nil {
		c.InvalidOpcodeHandler(opcode)
	}
	return 4
}

func (c *CPU) readByte(addr uint16) uint8      { return c.bus.Read(addr) }
func (c *CPU) writeByte(addr uint16, v uint8)  { c.bus.Write(addr, v) }

func (c *CPU) fetch8() uint8 {
	v := c.bus.Read(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.bus.Write(c.SP, uint8(v))
	c.bus.Write(c.SP+1, uint8(v>>8))
}

func (c *CPU) pop16() uint16 {
	lo := c.bus.Read(c.SP)
	hi := c.bus.Read(c.SP + 1)
	c.SP += 2
	return uint16(hi)<<8 | uint16(lo)
}
