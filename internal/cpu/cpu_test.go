package cpu

import (
	"testing"

	"github.com/galecore/gbcore/internal/interrupts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatBus is a 64 KiB byte array satisfying Bus, used to isolate the CPU
// in tests from the real MMU's banking/attachment machinery.
type flatBus [0x10000]uint8

func (b *flatBus) Read(address uint16) uint8     { return b[address] }
func (b *flatBus) Write(address uint16, v uint8) { b[address] = v }

func newTestCPU() (*CPU, *flatBus) {
	bus := &flatBus{}
	irq := interrupts.NewService()
	c := New(bus, irq)
	c.PC = 0x0000
	return c, bus
}

func load(bus *flatBus, addr uint16, program ...uint8) {
	for i, b := range program {
		bus[int(addr)+i] = b
	}
}

func TestLoadRegisterImmediate(t *testing.T) {
	c, bus := newTestCPU()
	load(bus, 0, 0x06, 0x42) // LD B,0x42
	cycles := c.Step()
	assert.Equal(t, uint8(8), cycles)
	assert.Equal(t, uint8(0x42), c.B)
	assert.Equal(t, uint16(2), c.PC)
}

func TestLoadRegisterToRegister(t *testing.T) {
	c, bus := newTestCPU()
	c.B = 0x99
	load(bus, 0, 0x41) // LD B,C
	c.C = 0x7

	c.Step()
	assert.Equal(t, uint8(0x7), c.B)
}

func TestAddSetsCarryAndHalfCarry(t *testing.T) {
	c, bus := newTestCPU()
	c.A = 0xFF
	c.B = 0x01
	load(bus, 0, 0x80) // ADD A,B
	c.Step()

	assert.Equal(t, uint8(0), c.A)
	assert.True(t, c.isFlagSet(FlagZero))
	assert.True(t, c.isFlagSet(FlagCarry))
	assert.True(t, c.isFlagSet(FlagHalfCarry))
	assert.False(t, c.isFlagSet(FlagSubtract))
}

func TestIncDecFlags(t *testing.T) {
	c, bus := newTestCPU()
	c.A = 0x0F
	load(bus, 0, 0x3C) // INC A
	c.Step()
	assert.Equal(t, uint8(0x10), c.A)
	assert.True(t, c.isFlagSet(FlagHalfCarry))

	c2, bus2 := newTestCPU()
	c2.B = 0x01
	load(bus2, 0, 0x05) // DEC B
	c2.Step()
	assert.Equal(t, uint8(0), c2.B)
	assert.True(t, c2.isFlagSet(FlagZero))
	assert.True(t, c2.isFlagSet(FlagSubtract))
}

func TestJumpRelativeConditional(t *testing.T) {
	c, bus := newTestCPU()
	c.setFlag(FlagZero)
	load(bus, 0, 0x28, 0x05) // JR Z,+5
	cycles := c.Step()
	assert.Equal(t, uint8(12), cycles)
	assert.Equal(t, uint16(7), c.PC)

	c2, bus2 := newTestCPU()
	c2.clearFlag(FlagZero)
	load(bus2, 0, 0x28, 0x05) // JR Z,+5, not taken
	cycles2 := c2.Step()
	assert.Equal(t, uint8(8), cycles2)
	assert.Equal(t, uint16(2), c2.PC)
}

func TestCallAndReturn(t *testing.T) {
	c, bus := newTestCPU()
	c.SP = 0xFFFE
	load(bus, 0, 0xCD, 0x00, 0x10) // CALL 0x1000
	load(bus, 0x1000, 0xC9)        // RET

	cycles := c.Step()
	assert.Equal(t, uint8(24), cycles)
	assert.Equal(t, uint16(0x1000), c.PC)

	cycles = c.Step()
	assert.Equal(t, uint8(16), cycles)
	assert.Equal(t, uint16(3), c.PC)
}

func TestPushPop(t *testing.T) {
	c, bus := newTestCPU()
	c.SP = 0xFFFE
	c.SetBC(0xBEEF)
	load(bus, 0, 0xC5, 0xD1) // PUSH BC; POP DE
	c.Step()
	c.Step()
	assert.Equal(t, uint16(0xBEEF), c.DE())
}

func TestHaltWaitsForInterrupt(t *testing.T) {
	c, bus := newTestCPU()
	load(bus, 0, 0x76) // HALT
	c.Step()
	require.True(t, c.Halted())

	assert.Equal(t, uint8(4), c.Step())
	assert.True(t, c.Halted())

	c.irq.Enable = 1 << interrupts.VBlankFlag
	c.irq.Request(interrupts.VBlankFlag)
	c.irq.IME = true

	cycles := c.Step()
	assert.False(t, c.Halted())
	assert.Equal(t, uint8(20), cycles)
	assert.Equal(t, interrupts.VBlank, c.PC)
}

func TestInterruptPriorityOrder(t *testing.T) {
	c, bus := newTestCPU()
	load(bus, 0, 0x00) // NOP, in case nothing fires
	c.irq.IME = true
	c.irq.Enable = 0x1F
	c.irq.Flag = 1<<interrupts.TimerFlag | 1<<interrupts.VBlankFlag

	c.Step()
	assert.Equal(t, interrupts.VBlank, c.PC)
	assert.Equal(t, uint8(1<<interrupts.TimerFlag), c.irq.Flag)
}

func TestEIDelaysInterruptByOneInstruction(t *testing.T) {
	c, bus := newTestCPU()
	load(bus, 0, 0xFB, 0x00, 0x00) // EI; NOP; NOP
	c.irq.Enable = 1 << interrupts.VBlankFlag
	c.irq.Request(interrupts.VBlankFlag)

	c.Step() // EI: IME not yet active
	assert.False(t, c.irq.IME)
	assert.Equal(t, uint16(1), c.PC)

	c.Step() // the instruction right after EI still must execute normally
	assert.False(t, c.irq.IME)
	assert.Equal(t, uint16(2), c.PC)

	cycles := c.Step() // IME becomes active at the top of this step
	assert.Equal(t, uint8(20), cycles)
	assert.Equal(t, interrupts.VBlank, c.PC)
}

func TestCBRotateSetsZeroFlag(t *testing.T) {
	c, bus := newTestCPU()
	c.B = 0x00
	load(bus, 0, 0xCB, 0x00) // RLC B
	cycles := c.Step()
	assert.Equal(t, uint8(8), cycles)
	assert.Equal(t, uint8(0), c.B)
	assert.True(t, c.isFlagSet(FlagZero))
}

func TestCBBitTest(t *testing.T) {
	c, bus := newTestCPU()
	c.A = 0x80
	load(bus, 0, 0xCB, 0x7F) // BIT 7,A
	c.Step()
	assert.False(t, c.isFlagSet(FlagZero))
	assert.True(t, c.isFlagSet(FlagHalfCarry))
}

func TestDAAAfterBCDAddition(t *testing.T) {
	c, bus := newTestCPU()
	c.A = 0x45
	load(bus, 0, 0xC6, 0x38) // ADD A,0x38 -> 0x7D
	c.Step()
	assert.Equal(t, uint8(0x7D), c.A)

	load(bus, c.PC, 0x27) // DAA -> 0x83 (BCD for 45+38=83)
	c.Step()
	assert.Equal(t, uint8(0x83), c.A)
}

func TestBreakpointHookInterceptsSentinelOpcode(t *testing.T) {
	c, bus := newTestCPU()
	load(bus, 0, BreakpointOpcode)
	hook := &recordingHook{}
	c.Breakpoints = hook

	cycles := c.Step()
	assert.True(t, hook.hit)
	assert.Equal(t, uint8(4), cycles)
}

type recordingHook struct{ hit bool }

func (h *recordingHook) Hit(c *CPU) uint8 {
	h.hit = true
	return 4
}

func TestInvalidOpcodeInvokesHandler(t *testing.T) {
	undefined := []uint8{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}
	for _, op := range undefined {
		c, bus := newTestCPU()
		load(bus, 0, op)
		var seen []uint8
		c.InvalidOpcodeHandler = func(opcode uint8) { seen = append(seen, opcode) }

		cycles := c.Step()
		assert.Equal(t, []uint8{op}, seen, "opcode %#02x", op)
		assert.Equal(t, uint8(4), cycles)
		assert.Equal(t, uint16(0x0001), c.PC, "PC stops past the undefined byte")
	}
}

func TestInvalidOpcodeWithoutHandlerDoesNotPanic(t *testing.T) {
	c, bus := newTestCPU()
	load(bus, 0, 0xED)
	assert.NotPanics(t, func() { c.Step() })
}
