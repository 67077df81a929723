package emulator

// Controller defines the interface contract a host uses to drive a core
// instance without reaching into its internals: no window or input-device
// assumptions, just frame stepping and lifecycle control. machine.Machine
// satisfies it.
type Controller interface {
	RunFrame()
	Reset()
	Pause()
	Resume()
	Paused() bool
	LoadSRAM(data []byte) error
}
