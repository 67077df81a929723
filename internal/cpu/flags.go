package cpu

// Flag bit positions within the F register.
const (
	FlagZero      uint8 = 7
	FlagSubtract  uint8 = 6
	FlagHalfCarry uint8 = 5
	FlagCarry     uint8 = 4
)

func (c *CPU) setFlag(flag uint8)   { c.F |= 1 << flag }
func (c *CPU) clearFlag(flag uint8) { c.F &^= 1 << flag }

func (c *CPU) putFlag(flag uint8, v bool) {
	if v {
		c.setFlag(flag)
	} else {
		c.clearFlag(flag)
	}
}

func (c *CPU) isFlagSet(flag uint8) bool { return c.F&(1<<flag) != 0 }

// setFlags writes all four flags at once, the common shape for an ALU
// operation's result.
func (c *CPU) setFlags(zero, subtract, halfCarry, carry bool) {
	c.putFlag(FlagZero, zero)
	c.putFlag(FlagSubtract, subtract)
	c.putFlag(FlagHalfCarry, halfCarry)
	c.putFlag(FlagCarry, carry)
}
