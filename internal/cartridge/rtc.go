package cartridge

// RTC models the MBC3 real-time clock: five latchable registers (seconds,
// minutes, hours, and a 9-bit day counter split across two bytes), plus a
// halt flag and a sticky day-counter overflow flag.
type RTC struct {
	Seconds uint8
	Minutes uint8
	Hours   uint8
	DayLow  uint8
	DayHigh uint8 // bit 0: day counter bit 8, bit 6: halt, bit 7: day overflow (sticky)

	latched       [5]byte
	latchWritten0 bool

	// accumulated sub-second T-cycles, for advancing real time at the
	// Game Boy's ~4.194304 MHz system clock
	cycleAccum uint32
}

const rtcCyclesPerSecond = 4194304

// Halted reports whether the RTC's halt bit (DayHigh bit 6) is set.
func (r *RTC) Halted() bool {
	return r.DayHigh&0x40 != 0
}

// Tick advances the RTC by the given number of T-cycles, unless halted.
func (r *RTC) Tick(cycles uint32) {
	if r.Halted() {
		return
	}
	r.cycleAccum += cycles
	for r.cycleAccum >= rtcCyclesPerSecond {
		r.cycleAccum -= rtcCyclesPerSecond
		r.tickSecond()
	}
}

func (r *RTC) tickSecond() {
	r.Seconds++
	if r.Seconds < 60 {
		return
	}
	r.Seconds = 0
	r.Minutes++
	if r.Minutes < 60 {
		return
	}
	r.Minutes = 0
	r.Hours++
	if r.Hours < 24 {
		return
	}
	r.Hours = 0
	day := uint16(r.DayLow) | uint16(r.DayHigh&0x01)<<8
	day++
	if day > 0x1FF {
		day = 0
		r.DayHigh |= 0x80 // sticky overflow, never auto-clears
	}
	r.DayLow = uint8(day)
	r.DayHigh = r.DayHigh&0xFE | uint8(day>>8)&0x01
}

// Advance fast-forwards the RTC by the given number of whole seconds, used
// to catch up real elapsed time recorded in a .sav file. Callers cap the
// seconds processed per call and loop across frames to finish a large
// backlog without stalling any single frame.
func (r *RTC) Advance(seconds uint32) {
	if r.Halted() {
		return
	}
	for i := uint32(0); i < seconds; i++ {
		r.tickSecond()
	}
}

// Latch copies the live registers into the latched snapshot that CPU reads
// observe. Real hardware does this on a write-0-then-write-1 sequence to
// the latch register (0x6000-0x7FFF on MBC3); WriteLatch implements that
// edge detection.
func (r *RTC) Latch() {
	r.latched = [5]byte{r.Seconds, r.Minutes, r.Hours, r.DayLow, r.DayHigh}
}

// WriteLatch implements the MBC3 latch register's 0-then-1 edge trigger.
func (r *RTC) WriteLatch(value uint8) {
	if value == 0x00 {
		r.latchWritten0 = true
		return
	}
	if value == 0x01 && r.latchWritten0 {
		r.Latch()
	}
	r.latchWritten0 = false
}

// ReadLatched returns the latched register selected by index (0-4, S/M/H/DL/DH).
func (r *RTC) ReadLatched(index uint8) uint8 {
	if index > 4 {
		return 0xFF
	}
	return r.latched[index]
}

// WriteSelected writes directly to the live register selected by index, as
// happens when the host writes to the RTC register window without a
// pending latch (used for RTC register writes at 0xA000-0xBFFF when the
// RAM bank is mapped to an RTC index).
func (r *RTC) WriteSelected(index uint8, value uint8) {
	switch index {
	case 0:
		r.Seconds = value % 60
	case 1:
		r.Minutes = value % 60
	case 2:
		r.Hours = value % 24
	case 3:
		r.DayLow = value
	case 4:
		r.DayHigh = value & 0xC1
	}
}

// Bytes serializes the live (not latched) RTC registers for .sav persistence.
func (r *RTC) Bytes() [5]byte {
	return [5]byte{r.Seconds, r.Minutes, r.Hours, r.DayLow, r.DayHigh}
}

// LoadBytes restores the live RTC registers from a .sav file.
func (r *RTC) LoadBytes(b [5]byte) {
	r.Seconds, r.Minutes, r.Hours, r.DayLow, r.DayHigh = b[0], b[1], b[2], b[3], b[4]
	r.Latch()
}
