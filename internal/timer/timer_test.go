package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/galecore/gbcore/internal/interrupts"
)

func tick(c *Controller, cycles int) {
	for cycles > 0 {
		step := cycles
		if step > 255 {
			step = 255
		}
		c.Tick(uint8(step))
		cycles -= step
	}
}

func TestDIVIncrementsEvery256Cycles(t *testing.T) {
	c := NewController(interrupts.NewService())
	tick(c, 255)
	assert.Equal(t, uint8(0), c.Read(0xFF04))
	tick(c, 1)
	assert.Equal(t, uint8(1), c.Read(0xFF04))
	tick(c, 256)
	assert.Equal(t, uint8(2), c.Read(0xFF04))
}

func TestDIVWriteResetsToZero(t *testing.T) {
	c := NewController(interrupts.NewService())
	tick(c, 1000)
	c.Write(0xFF04, 0xAB) // value is irrelevant, any write clears
	assert.Equal(t, uint8(0), c.Read(0xFF04))
}

func TestTIMAOverflowReloadsFromTMAAndRaisesInterrupt(t *testing.T) {
	irq := interrupts.NewService()
	c := NewController(irq)
	c.Write(0xFF07, 0x04) // enable, 4096 Hz (1024 cycles per increment)
	c.Write(0xFF06, 0xFE) // TMA
	c.Write(0xFF05, 0xFF) // TIMA one short of overflow

	tick(c, 1024)
	// overflow happened; the reload and interrupt land one M-cycle later
	assert.Equal(t, uint8(0x00), c.Read(0xFF05), "TIMA reads zero during the reload window")
	assert.Zero(t, irq.Flag&(1<<interrupts.TimerFlag))

	tick(c, 4)
	assert.Equal(t, uint8(0xFE), c.Read(0xFF05), "TIMA reloaded from TMA")
	assert.NotZero(t, irq.Flag&(1<<interrupts.TimerFlag), "timer interrupt requested")
}

func TestTIMADisabledByTACEnableBit(t *testing.T) {
	irq := interrupts.NewService()
	c := NewController(irq)
	c.Write(0xFF07, 0x00) // disabled
	c.Write(0xFF05, 0xFF)
	tick(c, 4096)
	assert.Equal(t, uint8(0xFF), c.Read(0xFF05))
	assert.Zero(t, irq.Flag)
}

func TestTIMARateSelection(t *testing.T) {
	for _, tc := range []struct {
		tac    uint8
		cycles int
	}{
		{0x04, 1024}, // 4096 Hz
		{0x05, 16},   // 262144 Hz
		{0x06, 64},   // 65536 Hz
		{0x07, 256},  // 16384 Hz
	} {
		c := NewController(interrupts.NewService())
		c.Write(0xFF07, tc.tac)
		tick(c, tc.cycles)
		assert.Equal(t, uint8(1), c.Read(0xFF05), "TAC=%#02x", tc.tac)
	}
}

func TestTACReadSetsUnusedBits(t *testing.T) {
	c := NewController(interrupts.NewService())
	c.Write(0xFF07, 0x05)
	assert.Equal(t, uint8(0xFD), c.Read(0xFF07))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := NewController(interrupts.NewService())
	c.Write(0xFF07, 0x05)
	c.Write(0xFF06, 0x42)
	tick(c, 300)

	saved := c.Save(nil)
	restored := NewController(interrupts.NewService())
	rest := restored.Load(saved)
	assert.Empty(t, rest)
	assert.Equal(t, c.Read(0xFF04), restored.Read(0xFF04))
	assert.Equal(t, c.Read(0xFF05), restored.Read(0xFF05))
	assert.Equal(t, c.Read(0xFF06), restored.Read(0xFF06))
	assert.Equal(t, c.Read(0xFF07), restored.Read(0xFF07))
}
