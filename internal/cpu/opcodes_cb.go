package cpu

var opcodesCB [256]opcode

func rlc(v uint8) (uint8, bool) { carry := v >> 7; return v<<1 | carry, carry == 1 }
func rrc(v uint8) (uint8, bool) { carry := v & 1; return v>>1 | carry<<7, carry == 1 }

func rl(v uint8, cin uint8) (uint8, bool) { carry := v >> 7; return v<<1 | cin, carry == 1 }
func rr(v uint8, cin uint8) (uint8, bool) { carry := v & 1; return v>>1 | cin<<7, carry == 1 }

func sla(v uint8) (uint8, bool) { carry := v >> 7; return v << 1, carry == 1 }
func sra(v uint8) (uint8, bool) { carry := v & 1; return v>>1 | v&0x80, carry == 1 }
func srl(v uint8) (uint8, bool) { carry := v & 1; return v >> 1, carry == 1 }
func swap(v uint8) uint8        { return v<<4 | v>>4 }

func init() {
	shiftOps := [8]func(c *CPU, v uint8) uint8{
		func(c *CPU, v uint8) uint8 { res, carry := rlc(v); c.setFlags(res == 0, false, false, carry); return res },
		func(c *CPU, v uint8) uint8 { res, carry := rrc(v); c.setFlags(res == 0, false, false, carry); return res },
		func(c *CPU, v uint8) uint8 {
			var cin uint8
			if c.isFlagSet(FlagCarry) {
				cin = 1
			}
			res, carry := rl(v, cin)
			c.setFlags(res == 0, false, false, carry)
			return res
		},
		func(c *CPU, v uint8) uint8 {
			var cin uint8
			if c.isFlagSet(FlagCarry) {
				cin = 1
			}
			res, carry := rr(v, cin)
			c.setFlags(res == 0, false, false, carry)
			return res
		},
		func(c *CPU, v uint8) uint8 { res, carry := sla(v); c.setFlags(res == 0, false, false, carry); return res },
		func(c *CPU, v uint8) uint8 { res, carry := sra(v); c.setFlags(res == 0, false, false, carry); return res },
		func(c *CPU, v uint8) uint8 { res := swap(v); c.setFlags(res == 0, false, false, false); return res },
		func(c *CPU, v uint8) uint8 { res, carry := srl(v); c.setFlags(res == 0, false, false, carry); return res },
	}

	for op := uint8(0); op < 8; op++ {
		fn := shiftOps[op]
		for r := uint8(0); r < 8; r++ {
			ri := r
			opcodesCB[8*int(op)+int(r)] = opcode{execute: func(c *CPU) uint8 {
				c.setReg8(ri, fn(c, c.reg8(ri)))
				if ri == 6 {
					return 16
				}
				return 8
			}}
		}
	}

	for b := uint8(0); b < 8; b++ {
		bit := b
		for r := uint8(0); r < 8; r++ {
			ri := r
			opcodesCB[0x40+8*int(bit)+int(ri)] = opcode{execute: func(c *CPU) uint8 {
				v := c.reg8(ri)
				c.putFlag(FlagZero, v&(1<<bit) == 0)
				c.clearFlag(FlagSubtract)
				c.setFlag(FlagHalfCarry)
				if ri == 6 {
					return 12
				}
				return 8
			}}
			opcodesCB[0x80+8*int(bit)+int(ri)] = opcode{execute: func(c *CPU) uint8 {
				c.setReg8(ri, c.reg8(ri)&^(1<<bit))
				if ri == 6 {
					return 16
				}
				return 8
			}}
			opcodesCB[0xC0+8*int(bit)+int(ri)] = opcode{execute: func(c *CPU) uint8 {
				c.setReg8(ri, c.reg8(ri)|1<<bit)
				if ri == 6 {
					return 16
				}
				return 8
			}}
		}
	}
}
