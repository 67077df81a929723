// Package joypad emulates the Game Boy joypad register (0xFF00): reading
// back whichever button row the program selected, and raising a falling-
// edge interrupt when a previously-unset button is pressed while its row
// is selected.
package joypad

// Button represents a physical button on the Game Boy.
type Button = uint8

const (
	ButtonA      Button = 0x01
	ButtonB      Button = 0x02
	ButtonSelect Button = 0x04
	ButtonStart  Button = 0x08
	ButtonRight  Button = 0x10
	ButtonLeft   Button = 0x20
	ButtonUp     Button = 0x40
	ButtonDown   Button = 0x80
)

// IRQRequester is satisfied by *interrupts.Service.
type IRQRequester interface {
	Request(flag uint8)
}

// Joypad tracks the P1 register and which buttons are currently held.
type Joypad struct {
	register uint8
	state    Button

	irq IRQRequester
}

// irqFlag mirrors interrupts.JoypadFlag without importing the interrupts
// package, avoiding a dependency cycle since interrupts never needs the
// joypad.
const irqFlag = 0x04

// New returns a joypad with no buttons held and both rows deselected.
func New(irq IRQRequester) *Joypad {
	return &Joypad{register: 0x3F, irq: irq}
}

// Read returns the P1 register as the CPU would observe it: the selected
// row's buttons pulled low (0), unselected rows reading high.
func (j *Joypad) Read(address uint16) uint8 {
	if j.register&0x10 == 0 {
		return j.register &^ (j.state >> 4)
	}
	if j.register&0x20 == 0 {
		return j.register &^ (j.state & 0x0F)
	}
	return j.register | 0x0F
}

// Write updates the row-select bits (4-5); bits 0-3 are read-only from the
// program's side.
func (j *Joypad) Write(address uint16, value uint8) {
	j.register = (j.register & 0xCF) | (value & 0x30)
}

// Press marks key as held, requesting a joypad interrupt if it was
// previously released and its row is currently selected.
func (j *Joypad) Press(key Button) {
	wasReleased := j.state&key == 0
	j.state |= key

	dPad := key > ButtonStart
	rowSelected := (dPad && j.register&0x10 == 0) || (!dPad && j.register&0x20 == 0)

	if wasReleased && rowSelected && j.irq != nil {
		j.irq.Request(irqFlag)
	}
}

// Release marks key as no longer held.
func (j *Joypad) Release(key Button) {
	j.state &^= key
}

// SetState replaces the full held-button mask in one call: a set bit in
// pressed means that button is held. Newly pressed buttons go through
// Press so row-selected falling edges still raise the joypad interrupt.
func (j *Joypad) SetState(pressed uint8) {
	for bit := uint8(0); bit < 8; bit++ {
		key := Button(1) << bit
		if pressed&key != 0 {
			j.Press(key)
		} else {
			j.Release(key)
		}
	}
}

// Inputs batches a frame's worth of button transitions.
type Inputs struct {
	Pressed, Released []Button
}

// ProcessInputs applies a batch of transitions in press-then-release order.
func (j *Joypad) ProcessInputs(inputs Inputs) {
	for _, key := range inputs.Pressed {
		j.Press(key)
	}
	for _, key := range inputs.Released {
		j.Release(key)
	}
}

// Save appends the joypad's state to b, for the state snapshot.
func (j *Joypad) Save(b []byte) []byte {
	return append(b, j.register, j.state)
}

// Load restores the joypad's state from b, returning the remaining bytes.
func (j *Joypad) Load(b []byte) []byte {
	j.register = b[0]
	j.state = b[1]
	return b[2:]
}
