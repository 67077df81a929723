// Package serial implements the SB/SC register pair (0xFF01-0xFF02) as a
// harmless stub. There is no link to a second device: a requested
// transfer shifts in idle-high bits and raises the SERIAL interrupt once
// it would have completed.
package serial

import "github.com/galecore/gbcore/internal/interrupts"

const transferBits = 8

// Controller owns the SB (data) and SC (control) registers.
type Controller struct {
	data    uint8
	control uint8

	bitsRemaining uint8
	cycleCounter  uint16

	irq *interrupts.Service
}

// NewController returns a Controller with SC's unused bits set high, as on
// real hardware.
func NewController(irq *interrupts.Service) *Controller {
	return &Controller{irq: irq, control: 0x7E}
}

// Reset returns the SB/SC registers to their power-on values, cancelling
// any transfer in flight.
func (c *Controller) Reset() {
	c.data = 0
	c.control = 0x7E
	c.bitsRemaining = 0
	c.cycleCounter = 0
}

// Tick advances a pending transfer by the given number of T-cycles. A
// transfer with the internal clock selected completes after 8 bit periods
// of 64 T-cycles each (512 cycles in all); there being no attached
// device, each shifted-in bit is idle-high (0xFF from the line).
func (c *Controller) Tick(cycles uint8) {
	if c.control&0x81 != 0x81 {
		return // no transfer requested, or using the (unsupported) external clock
	}
	c.cycleCounter += uint16(cycles)
	for c.cycleCounter >= 512/transferBits {
		c.cycleCounter -= 512 / transferBits
		c.data = c.data<<1 | 1
		c.bitsRemaining++
		if c.bitsRemaining == transferBits {
			c.bitsRemaining = 0
			c.control &^= 0x80
			c.irq.Request(interrupts.SerialFlag)
			return
		}
	}
}

// Read returns the SB or SC register.
func (c *Controller) Read(address uint16) uint8 {
	switch address {
	case 0xFF01:
		return c.data
	case 0xFF02:
		return c.control
	}
	return 0xFF
}

// Write updates the SB or SC register.
func (c *Controller) Write(address uint16, value uint8) {
	switch address {
	case 0xFF01:
		c.data = value
	case 0xFF02:
		c.control = value | 0x7E
		c.cycleCounter = 0
		c.bitsRemaining = 0
	}
}

// Save appends the serial controller's state to b, for the state
// snapshot.
func (c *Controller) Save(b []byte) []byte {
	return append(b, c.data, c.control, c.bitsRemaining, uint8(c.cycleCounter>>8), uint8(c.cycleCounter))
}

// Load restores the serial controller's state from b, returning the
// remaining bytes.
func (c *Controller) Load(b []byte) []byte {
	c.data = b[0]
	c.control = b[1]
	c.bitsRemaining = b[2]
	c.cycleCounter = uint16(b[3])<<8 | uint16(b[4])
	return b[5:]
}
