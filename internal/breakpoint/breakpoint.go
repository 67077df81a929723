// Package breakpoint implements scripted ROM patches: a breakpoint
// overwrites a ROM byte with an illegal opcode the CPU traps on, restores
// it long enough to run the real instruction once a registered hook has
// had a chance to inspect or rewrite machine state, then reinstalls it.
package breakpoint

import (
	"github.com/galecore/gbcore/internal/cartridge"
	"github.com/galecore/gbcore/internal/cpu"
)

// Hook is notified when execution reaches an armed breakpoint. It may
// freely read or mutate CPU/MMU state; if it changes PC or triggers a
// bank switch, the Manager treats the breakpoint's own instruction as
// skipped rather than resuming it underneath the hook.
type Hook interface {
	OnBreakpoint(index int, c *cpu.CPU)
}

type entry struct {
	address      uint16
	romOffset    int
	originalByte uint8
	armed        bool
}

// Manager owns the set of active breakpoints for one loaded cartridge and
// implements cpu.BreakpointHook.
type Manager struct {
	cart    *cartridge.Cartridge
	entries []*entry
	byOffset map[int]int
	hook    Hook
}

// NewManager returns a Manager patching ROM bytes directly on cart. hook
// may be nil, in which case hitting a breakpoint simply runs the original
// instruction it covers, in the same step, and reinstalls the sentinel.
func NewManager(cart *cartridge.Cartridge, hook Hook) *Manager {
	return &Manager{cart: cart, byOffset: make(map[int]int), hook: hook}
}

// SetHook attaches or replaces the breakpoint hook.
func (m *Manager) SetHook(hook Hook) { m.hook = hook }

// Set arms a breakpoint at the given CPU address, in whichever ROM bank is
// currently switched in, and returns its index. Setting the same absolute
// ROM offset twice returns the existing index without re-patching.
func (m *Manager) Set(address uint16) int {
	offset := m.cart.AbsoluteOffset(address)
	if idx, ok := m.byOffset[offset]; ok {
		return idx
	}
	rom := m.cart.RawROM()
	e := &entry{
		address:      address,
		romOffset:    offset,
		originalByte: rom[offset],
		armed:        true,
	}
	rom[offset] = cpu.BreakpointOpcode
	idx := len(m.entries)
	m.entries = append(m.entries, e)
	m.byOffset[offset] = idx
	return idx
}

// Clear disarms the breakpoint at index, restoring its original byte.
func (m *Manager) Clear(index int) {
	if index < 0 || index >= len(m.entries) {
		return
	}
	e := m.entries[index]
	if !e.armed {
		return
	}
	m.cart.RawROM()[e.romOffset] = e.originalByte
	e.armed = false
}

// Len reports the number of breakpoints ever set, armed or not.
func (m *Manager) Len() int { return len(m.entries) }

// Addresses returns the CPU addresses of every currently armed
// breakpoint, for the state snapshot.
func (m *Manager) Addresses() []uint16 {
	addrs := make([]uint16, 0, len(m.entries))
	for _, e := range m.entries {
		if e.armed {
			addrs = append(addrs, e.address)
		}
	}
	return addrs
}

// Restore re-arms exactly the given addresses, clearing any breakpoints
// currently set that aren't among them. Used when loading a snapshot.
func (m *Manager) Restore(addresses []uint16) {
	for i := range m.entries {
		if m.entries[i].armed {
			m.Clear(i)
		}
	}
	m.entries = nil
	m.byOffset = make(map[int]int)
	for _, addr := range addresses {
		m.Set(addr)
	}
}

// Hit implements cpu.BreakpointHook. It is called when the CPU fetches the
// illegal-opcode sentinel at the current PC.
func (m *Manager) Hit(c *cpu.CPU) uint8 {
	offset := m.cart.AbsoluteOffset(c.PC)
	idx, ok := m.byOffset[offset]
	if !ok {
		// The sentinel byte is in the ROM for a reason other than one of
		// our breakpoints; let the decoder trap it as the illegal opcode
		// it is.
		return c.ExecuteOne()
	}

	e := m.entries[idx]
	if !e.armed {
		return c.ExecuteOne()
	}

	rom := m.cart.RawROM()
	rom[offset] = e.originalByte

	pcBefore := c.PC
	bankBefore := m.cart.CurrentBank(c.PC)
	if m.hook != nil {
		m.hook.OnBreakpoint(idx, c)
	}

	var cycles uint8
	if c.PC == pcBefore && m.cart.CurrentBank(c.PC) == bankBefore {
		cycles = c.ExecuteOne()
	} else {
		// the hook redirected execution itself; nothing left to resume.
		cycles = 4
	}

	if e.armed {
		rom[offset] = cpu.BreakpointOpcode
	}
	return cycles
}
