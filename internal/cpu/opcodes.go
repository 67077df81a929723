package cpu

// opcode is a single entry in the main (or CB-prefixed) dispatch table. It
// performs the instruction's effect and returns its T-cycle cost.
type opcode struct {
	execute func(c *CPU) uint8
}

var opcodes [256]opcode

// reg8 decodes the standard 3-bit register index used throughout the main
// opcode table: 0=B 1=C 2=D 3=E 4=H 5=L 6=(HL) 7=A.
func (c *CPU) reg8(i uint8) uint8 {
	switch i {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.readByte(c.HL())
	default:
		return c.A
	}
}

func (c *CPU) setReg8(i uint8, v uint8) {
	switch i {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.writeByte(c.HL(), v)
	default:
		c.A = v
	}
}

// getPair/setPair decode the 2-bit register-pair index used by 16-bit
// load/inc/dec/add-HL opcodes: 0=BC 1=DE 2=HL 3=SP.
func (c *CPU) getPair(p uint8) uint16 {
	switch p {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	default:
		return c.SP
	}
}

func (c *CPU) setPair(p uint8, v uint16) {
	switch p {
	case 0:
		c.SetBC(v)
	case 1:
		c.SetDE(v)
	case 2:
		c.SetHL(v)
	default:
		c.SP = v
	}
}

// getPairPush/setPairPop decode the PUSH/POP register-pair index, which
// swaps the SP slot for AF: 0=BC 1=DE 2=HL 3=AF.
func (c *CPU) getPairPush(p uint8) uint16 {
	if p == 3 {
		return c.AF()
	}
	return c.getPair(p)
}

func (c *CPU) setPairPop(p uint8, v uint16) {
	if p == 3 {
		c.SetAF(v)
		return
	}
	c.setPair(p, v)
}

func (c *CPU) condition(cc uint8) bool {
	switch cc {
	case 0:
		return !c.isFlagSet(FlagZero)
	case 1:
		return c.isFlagSet(FlagZero)
	case 2:
		return !c.isFlagSet(FlagCarry)
	default:
		return c.isFlagSet(FlagCarry)
	}
}

// --- 8-bit ALU ---

func (c *CPU) addA(v uint8) {
	a := c.A
	res := uint16(a) + uint16(v)
	c.setFlags(uint8(res) == 0, false, (a&0xF)+(v&0xF) > 0xF, res > 0xFF)
	c.A = uint8(res)
}

func (c *CPU) adcA(v uint8) {
	a := c.A
	var cy uint8
	if c.isFlagSet(FlagCarry) {
		cy = 1
	}
	res := uint16(a) + uint16(v) + uint16(cy)
	h := (a&0xF)+(v&0xF)+cy > 0xF
	c.setFlags(uint8(res) == 0, false, h, res > 0xFF)
	c.A = uint8(res)
}

func (c *CPU) subA(v uint8) {
	a := c.A
	res := int16(a) - int16(v)
	h := int16(a&0xF)-int16(v&0xF) < 0
	c.setFlags(uint8(res) == 0, true, h, res < 0)
	c.A = uint8(res)
}

func (c *CPU) sbcA(v uint8) {
	a := c.A
	var cy int16
	if c.isFlagSet(FlagCarry) {
		cy = 1
	}
	res := int16(a) - int16(v) - cy
	h := int16(a&0xF)-int16(v&0xF)-cy < 0
	c.setFlags(uint8(res) == 0, true, h, res < 0)
	c.A = uint8(res)
}

func (c *CPU) andA(v uint8) { c.A &= v; c.setFlags(c.A == 0, false, true, false) }
func (c *CPU) xorA(v uint8) { c.A ^= v; c.setFlags(c.A == 0, false, false, false) }
func (c *CPU) orA(v uint8)  { c.A |= v; c.setFlags(c.A == 0, false, false, false) }

func (c *CPU) cpA(v uint8) {
	a := c.A
	res := int16(a) - int16(v)
	h := int16(a&0xF)-int16(v&0xF) < 0
	c.setFlags(uint8(res) == 0, true, h, res < 0)
}

var aluOps = [8]func(c *CPU, v uint8){
	(*CPU).addA, (*CPU).adcA, (*CPU).subA, (*CPU).sbcA,
	(*CPU).andA, (*CPU).xorA, (*CPU).orA, (*CPU).cpA,
}

func (c *CPU) inc8(v uint8) uint8 {
	res := v + 1
	c.putFlag(FlagZero, res == 0)
	c.clearFlag(FlagSubtract)
	c.putFlag(FlagHalfCarry, v&0xF == 0xF)
	return res
}

func (c *CPU) dec8(v uint8) uint8 {
	res := v - 1
	c.putFlag(FlagZero, res == 0)
	c.setFlag(FlagSubtract)
	c.putFlag(FlagHalfCarry, v&0xF == 0)
	return res
}

// --- 16-bit arithmetic ---

func (c *CPU) addHL(v uint16) {
	hl := c.HL()
	res := uint32(hl) + uint32(v)
	c.clearFlag(FlagSubtract)
	c.putFlag(FlagHalfCarry, (hl&0xFFF)+(v&0xFFF) > 0xFFF)
	c.putFlag(FlagCarry, res > 0xFFFF)
	c.SetHL(uint16(res))
}

// spPlusE8 implements the shared SP+e8 arithmetic used by ADD SP,e8 and
// LD HL,SP+e8: flags are computed on the unsigned byte addition regardless
// of the signed displacement's direction, matching real hardware.
func (c *CPU) spPlusE8() uint16 {
	e := int8(c.fetch8())
	sp := c.SP
	res := uint16(int32(sp) + int32(e))
	c.clearFlag(FlagZero)
	c.clearFlag(FlagSubtract)
	c.putFlag(FlagHalfCarry, (sp&0xF)+uint16(uint8(e)&0xF) > 0xF)
	c.putFlag(FlagCarry, (sp&0xFF)+uint16(uint8(e)) > 0xFF)
	return res
}

// --- accumulator rotates (always clear Z, unlike their CB counterparts) ---

func (c *CPU) rlca() {
	carry := c.A >> 7
	c.A = c.A<<1 | carry
	c.setFlags(false, false, false, carry == 1)
}

func (c *CPU) rrca() {
	carry := c.A & 1
	c.A = c.A>>1 | carry<<7
	c.setFlags(false, false, false, carry == 1)
}

func (c *CPU) rla() {
	old := c.A
	var cin uint8
	if c.isFlagSet(FlagCarry) {
		cin = 1
	}
	carry := old >> 7
	c.A = old<<1 | cin
	c.setFlags(false, false, false, carry == 1)
}

func (c *CPU) rra() {
	old := c.A
	var cin uint8
	if c.isFlagSet(FlagCarry) {
		cin = 1
	}
	carry := old & 1
	c.A = old>>1 | cin<<7
	c.setFlags(false, false, false, carry == 1)
}

func (c *CPU) daa() {
	a := c.A
	var adjust uint8
	carry := false
	if c.isFlagSet(FlagHalfCarry) || (!c.isFlagSet(FlagSubtract) && a&0xF > 9) {
		adjust |= 0x06
	}
	if c.isFlagSet(FlagCarry) || (!c.isFlagSet(FlagSubtract) && a > 0x99) {
		adjust |= 0x60
		carry = true
	}
	if c.isFlagSet(FlagSubtract) {
		a -= adjust
	} else {
		a += adjust
	}
	c.A = a
	c.putFlag(FlagZero, a == 0)
	c.clearFlag(FlagHalfCarry)
	c.putFlag(FlagCarry, carry)
}

// --- control flow ---

func (c *CPU) jr() uint8 {
	e := int8(c.fetch8())
	c.PC = uint16(int32(c.PC) + int32(e))
	return 12
}

func (c *CPU) jrCC(cc uint8) uint8 {
	e := int8(c.fetch8())
	if c.condition(cc) {
		c.PC = uint16(int32(c.PC) + int32(e))
		return 12
	}
	return 8
}

func (c *CPU) jp() uint8 { c.PC = c.fetch16(); return 16 }

func (c *CPU) jpCC(cc uint8) uint8 {
	addr := c.fetch16()
	if c.condition(cc) {
		c.PC = addr
		return 16
	}
	return 12
}

func (c *CPU) callInstr() uint8 {
	addr := c.fetch16()
	c.push16(c.PC)
	c.PC = addr
	return 24
}

func (c *CPU) callCC(cc uint8) uint8 {
	addr := c.fetch16()
	if c.condition(cc) {
		c.push16(c.PC)
		c.PC = addr
		return 24
	}
	return 12
}

func (c *CPU) retInstr() uint8 { c.PC = c.pop16(); return 16 }

func (c *CPU) retCC(cc uint8) uint8 {
	if c.condition(cc) {
		c.PC = c.pop16()
		return 20
	}
	return 8
}

func (c *CPU) rst(addr uint16) uint8 {
	c.push16(c.PC)
	c.PC = addr
	return 16
}

func init() {
	// Every slot starts as an invalid-opcode trap; the assignments and
	// loops below overwrite the 245 defined instructions, leaving the 11
	// undefined bytes (0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED,
	// 0xF4, 0xFC, 0xFD) routed to the handler.
	for i := range opcodes {
		op := uint8(i)
		opcodes[i] = opcode{execute: func(c *CPU) uint8 { return c.invalidOpcode(op) }}
	}

	opcodes[0x00] = opcode{execute: func(c *CPU) uint8 { return 4 }}
	opcodes[0x10] = opcode{execute: func(c *CPU) uint8 { c.fetch8(); return 4 }}
	opcodes[0x76] = opcode{execute: func(c *CPU) uint8 { c.halted = true; return 4 }}

	opcodes[0x07] = opcode{execute: func(c *CPU) uint8 { c.rlca(); return 4 }}
	opcodes[0x0F] = opcode{execute: func(c *CPU) uint8 { c.rrca(); return 4 }}
	opcodes[0x17] = opcode{execute: func(c *CPU) uint8 { c.rla(); return 4 }}
	opcodes[0x1F] = opcode{execute: func(c *CPU) uint8 { c.rra(); return 4 }}
	opcodes[0x27] = opcode{execute: func(c *CPU) uint8 { c.daa(); return 4 }}
	opcodes[0x2F] = opcode{execute: func(c *CPU) uint8 {
		c.A = ^c.A
		c.setFlag(FlagSubtract)
		c.setFlag(FlagHalfCarry)
		return 4
	}}
	opcodes[0x37] = opcode{execute: func(c *CPU) uint8 {
		c.clearFlag(FlagSubtract)
		c.clearFlag(FlagHalfCarry)
		c.setFlag(FlagCarry)
		return 4
	}}
	opcodes[0x3F] = opcode{execute: func(c *CPU) uint8 {
		c.clearFlag(FlagSubtract)
		c.clearFlag(FlagHalfCarry)
		c.putFlag(FlagCarry, !c.isFlagSet(FlagCarry))
		return 4
	}}

	opcodes[0x08] = opcode{execute: func(c *CPU) uint8 {
		addr := c.fetch16()
		c.writeByte(addr, uint8(c.SP))
		c.writeByte(addr+1, uint8(c.SP>>8))
		return 20
	}}

	opcodes[0x18] = opcode{execute: func(c *CPU) uint8 { return c.jr() }}
	opcodes[0xC3] = opcode{execute: func(c *CPU) uint8 { return c.jp() }}
	opcodes[0xCD] = opcode{execute: func(c *CPU) uint8 { return c.callInstr() }}
	opcodes[0xC9] = opcode{execute: func(c *CPU) uint8 { return c.retInstr() }}
	opcodes[0xD9] = opcode{execute: func(c *CPU) uint8 {
		c.PC = c.pop16()
		c.irq.IME = true
		return 16
	}}
	opcodes[0xE9] = opcode{execute: func(c *CPU) uint8 { c.PC = c.HL(); return 4 }}

	opcodes[0xE0] = opcode{execute: func(c *CPU) uint8 {
		addr := 0xFF00 + uint16(c.fetch8())
		c.writeByte(addr, c.A)
		return 12
	}}
	opcodes[0xF0] = opcode{execute: func(c *CPU) uint8 {
		addr := 0xFF00 + uint16(c.fetch8())
		c.A = c.readByte(addr)
		return 12
	}}
	opcodes[0xE2] = opcode{execute: func(c *CPU) uint8 { c.writeByte(0xFF00+uint16(c.C), c.A); return 8 }}
	opcodes[0xF2] = opcode{execute: func(c *CPU) uint8 { c.A = c.readByte(0xFF00 + uint16(c.C)); return 8 }}
	opcodes[0xEA] = opcode{execute: func(c *CPU) uint8 { c.writeByte(c.fetch16(), c.A); return 16 }}
	opcodes[0xFA] = opcode{execute: func(c *CPU) uint8 { c.A = c.readByte(c.fetch16()); return 16 }}

	opcodes[0xE8] = opcode{execute: func(c *CPU) uint8 { c.SP = c.spPlusE8(); return 16 }}
	opcodes[0xF8] = opcode{execute: func(c *CPU) uint8 { c.SetHL(c.spPlusE8()); return 12 }}
	opcodes[0xF9] = opcode{execute: func(c *CPU) uint8 { c.SP = c.HL(); return 8 }}

	opcodes[0xF3] = opcode{execute: func(c *CPU) uint8 {
		c.irq.IME = false
		c.imeScheduled = 0
		return 4
	}}
	opcodes[0xFB] = opcode{execute: func(c *CPU) uint8 { c.scheduleEnableIME(); return 4 }}

	opcodes[0xCB] = opcode{execute: func(c *CPU) uint8 {
		sub := c.fetch8()
		return opcodesCB[sub].execute(c)
	}}

	opcodes[0x02] = opcode{execute: func(c *CPU) uint8 { c.writeByte(c.BC(), c.A); return 8 }}
	opcodes[0x12] = opcode{execute: func(c *CPU) uint8 { c.writeByte(c.DE(), c.A); return 8 }}
	opcodes[0x22] = opcode{execute: func(c *CPU) uint8 {
		c.writeByte(c.HL(), c.A)
		c.SetHL(c.HL() + 1)
		return 8
	}}
	opcodes[0x32] = opcode{execute: func(c *CPU) uint8 {
		c.writeByte(c.HL(), c.A)
		c.SetHL(c.HL() - 1)
		return 8
	}}
	opcodes[0x0A] = opcode{execute: func(c *CPU) uint8 { c.A = c.readByte(c.BC()); return 8 }}
	opcodes[0x1A] = opcode{execute: func(c *CPU) uint8 { c.A = c.readByte(c.DE()); return 8 }}
	opcodes[0x2A] = opcode{execute: func(c *CPU) uint8 {
		c.A = c.readByte(c.HL())
		c.SetHL(c.HL() + 1)
		return 8
	}}
	opcodes[0x3A] = opcode{execute: func(c *CPU) uint8 {
		c.A = c.readByte(c.HL())
		c.SetHL(c.HL() - 1)
		return 8
	}}

	// 16-bit register-pair group: LD rr,d16 / INC rr / DEC rr / ADD HL,rr
	for p := uint8(0); p < 4; p++ {
		pp := p
		base := 0x10 * int(p)
		opcodes[0x01+base] = opcode{execute: func(c *CPU) uint8 { c.setPair(pp, c.fetch16()); return 12 }}
		opcodes[0x03+base] = opcode{execute: func(c *CPU) uint8 { c.setPair(pp, c.getPair(pp)+1); return 8 }}
		opcodes[0x0B+base] = opcode{execute: func(c *CPU) uint8 { c.setPair(pp, c.getPair(pp)-1); return 8 }}
		opcodes[0x09+base] = opcode{execute: func(c *CPU) uint8 { c.addHL(c.getPair(pp)); return 8 }}
	}

	// PUSH/POP group
	for p := uint8(0); p < 4; p++ {
		pp := p
		base := 0x10 * int(p)
		opcodes[0xC5+base] = opcode{execute: func(c *CPU) uint8 { c.push16(c.getPairPush(pp)); return 16 }}
		opcodes[0xC1+base] = opcode{execute: func(c *CPU) uint8 { c.setPairPop(pp, c.pop16()); return 12 }}
	}

	// INC r / DEC r / LD r,d8 group
	for r := uint8(0); r < 8; r++ {
		rr := r
		base := 8 * int(r)
		opcodes[0x04+base] = opcode{execute: func(c *CPU) uint8 {
			c.setReg8(rr, c.inc8(c.reg8(rr)))
			if rr == 6 {
				return 12
			}
			return 4
		}}
		opcodes[0x05+base] = opcode{execute: func(c *CPU) uint8 {
			c.setReg8(rr, c.dec8(c.reg8(rr)))
			if rr == 6 {
				return 12
			}
			return 4
		}}
		opcodes[0x06+base] = opcode{execute: func(c *CPU) uint8 {
			c.setReg8(rr, c.fetch8())
			if rr == 6 {
				return 12
			}
			return 8
		}}
	}

	// LD r,r' group (0x40-0x7F, 0x76 already claimed by HALT above)
	for dst := uint8(0); dst < 8; dst++ {
		for src := uint8(0); src < 8; src++ {
			if dst == 6 && src == 6 {
				continue
			}
			d, s := dst, src
			opcodes[0x40+8*int(d)+int(s)] = opcode{execute: func(c *CPU) uint8 {
				c.setReg8(d, c.reg8(s))
				if d == 6 || s == 6 {
					return 8
				}
				return 4
			}}
		}
	}

	// ALU A,r group (0x80-0xBF) and ALU A,d8 group (0xC6 + 8*op)
	for op := uint8(0); op < 8; op++ {
		fn := aluOps[op]
		for r := uint8(0); r < 8; r++ {
			rr := r
			opcodes[0x80+8*int(op)+int(r)] = opcode{execute: func(c *CPU) uint8 {
				fn(c, c.reg8(rr))
				if rr == 6 {
					return 8
				}
				return 4
			}}
		}
		opcodes[0xC6+8*int(op)] = opcode{execute: func(c *CPU) uint8 { fn(c, c.fetch8()); return 8 }}
	}

	// conditional jump/call/ret group
	for cc := uint8(0); cc < 4; cc++ {
		ccc := cc
		base := 8 * int(cc)
		opcodes[0x20+base] = opcode{execute: func(c *CPU) uint8 { return c.jrCC(ccc) }}
		opcodes[0xC2+base] = opcode{execute: func(c *CPU) uint8 { return c.jpCC(ccc) }}
		opcodes[0xC4+base] = opcode{execute: func(c *CPU) uint8 { return c.callCC(ccc) }}
		opcodes[0xC0+base] = opcode{execute: func(c *CPU) uint8 { return c.retCC(ccc) }}
	}

	// RST group
	for n := uint8(0); n < 8; n++ {
		addr := uint16(n) * 8
		opcodes[0xC7+8*int(n)] = opcode{execute: func(c *CPU) uint8 { return c.rst(addr) }}
	}
}
