// Package timer emulates the Game Boy's DIV/TIMA/TMA/TAC timer hardware.
package timer

import (
	"github.com/galecore/gbcore/internal/interrupts"
)

// rate gives the number of T-cycles between TIMA increments for each of
// the four TAC clock-select values (4096, 262144, 65536, 16384 Hz at a
// 4.194304 MHz system clock).
var rate = [4]uint16{1024, 16, 64, 256}

// Controller implements the DIV/TIMA/TMA/TAC registers: a free-running
// 16-bit divider, of which the upper byte is the visible DIV register,
// and an independently clocked TIMA counter that
// reloads from TMA and raises the timer interrupt on overflow.
type Controller struct {
	div  uint16
	tima uint8
	tma  uint8
	tac  uint8

	// reloadDelay counts down the one-M-cycle window between TIMA
	// overflowing and the reload from TMA actually taking effect, during
	// which a read sees 0x00, as on real hardware.
	reloadDelay int8

	irq *interrupts.Service
}

// NewController returns a Controller wired to the given interrupt service.
func NewController(irq *interrupts.Service) *Controller {
	return &Controller{irq: irq, reloadDelay: -1}
}

// Reset returns every timer register to its power-on value.
func (c *Controller) Reset() {
	c.div = 0
	c.tima = 0
	c.tma = 0
	c.tac = 0
	c.reloadDelay = -1
}

// Tick advances the timer by the given number of T-cycles. The frame
// driver calls it once per CPU step with that step's T-cycle count.
func (c *Controller) Tick(cycles uint8) {
	for i := uint8(0); i < cycles; i++ {
		c.tickOne()
	}
}

func (c *Controller) tickOne() {
	if c.reloadDelay >= 0 {
		c.reloadDelay--
		if c.reloadDelay == 0 {
			c.tima = c.tma
			c.irq.Request(interrupts.TimerFlag)
		}
	}

	prevBit := c.timerBit()
	c.div++
	newBit := c.timerBit()

	// TIMA increments on the falling edge of the selected divider bit,
	// ANDed with the TAC enable bit.
	if prevBit && !newBit {
		c.incrementTIMA()
	}
}

func (c *Controller) timerBit() bool {
	if c.tac&0x04 == 0 {
		return false
	}
	mask := rate[c.tac&0x03] >> 1
	return c.div&mask != 0
}

func (c *Controller) incrementTIMA() {
	c.tima++
	if c.tima == 0 {
		// Overflow: the reload from TMA and the interrupt request are
		// delayed by one M-cycle (4 T-cycles); tima reads as 0x00 until
		// then.
		c.reloadDelay = 4
	}
}

// Read returns the value of the register at the given address.
func (c *Controller) Read(address uint16) uint8 {
	switch address {
	case 0xFF04:
		return uint8(c.div >> 8)
	case 0xFF05:
		return c.tima
	case 0xFF06:
		return c.tma
	case 0xFF07:
		return c.tac | 0xF8
	}
	return 0xFF
}

// Write writes the given value to the register at the given address.
func (c *Controller) Write(address uint16, value uint8) {
	switch address {
	case 0xFF04:
		// Any write resets the full internal divider to zero, which can
		// itself trigger a spurious falling edge and increment TIMA.
		prevBit := c.timerBit()
		c.div = 0
		if prevBit {
			c.incrementTIMA()
		}
	case 0xFF05:
		if c.reloadDelay > 0 {
			// writing during the reload window cancels the pending reload
			c.reloadDelay = -1
		}
		c.tima = value
	case 0xFF06:
		c.tma = value
		if c.reloadDelay == 0 {
			c.tima = value
		}
	case 0xFF07:
		c.tac = value & 0x07
	}
}

// Save appends the timer's state to b, for the state snapshot.
func (c *Controller) Save(b []byte) []byte {
	b = append(b, uint8(c.div>>8), uint8(c.div), c.tima, c.tma, c.tac, uint8(c.reloadDelay))
	return b
}

// Load restores the timer's state from b, returning the remaining bytes.
func (c *Controller) Load(b []byte) []byte {
	c.div = uint16(b[0])<<8 | uint16(b[1])
	c.tima = b[2]
	c.tma = b[3]
	c.tac = b[4]
	c.reloadDelay = int8(b[5])
	return b[6:]
}
