// Command gbcore runs the core headlessly: load a ROM, optionally a boot
// ROM, step it for a fixed number of frames (or until a breakpoint
// fires), and persist cart RAM and a final state snapshot on exit. There
// is no display or input surface here; gbcore is a driver for exercising
// and debugging the core, not a game boy.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	"github.com/galecore/gbcore/internal/cpu"
	"github.com/galecore/gbcore/internal/machine"
	"github.com/galecore/gbcore/pkg/emulator"
	"github.com/galecore/gbcore/pkg/romload"
	"github.com/galecore/gbcore/pkg/saveio"
)

// config mirrors the CLI flags so a gbcore.toml file can set the same
// options without repeating them on every invocation.
type config struct {
	ROM         string   `toml:"rom"`
	Boot        string   `toml:"boot"`
	Frames      int      `toml:"frames"`
	SavePath    string   `toml:"save"`
	StatePath   string   `toml:"state"`
	Breakpoints []string `toml:"breakpoints"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}

func main() {
	app := &cli.App{
		Name:  "gbcore",
		Usage: "run a Game Boy ROM headlessly against gbcore",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "gbcore.toml config file"},
			&cli.StringFlag{Name: "rom", Usage: "ROM file to load"},
			&cli.StringFlag{Name: "boot", Usage: "optional DMG boot ROM"},
			&cli.IntFlag{Name: "frames", Value: 60, Usage: "number of frames to run"},
			&cli.StringFlag{Name: "save", Usage: "path to persist cart RAM (.sav)"},
			&cli.StringFlag{Name: "state", Usage: "path to write a final state snapshot"},
			&cli.StringSliceFlag{Name: "breakpoint", Usage: "hex ROM address to break on, repeatable"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gbcore:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	romPath := firstNonEmpty(ctx.String("rom"), cfg.ROM)
	if romPath == "" {
		return fmt.Errorf("no ROM specified: pass --rom or set rom in --config")
	}
	rom, err := romload.LoadFile(romPath)
	if err != nil {
		return fmt.Errorf("load rom: %w", err)
	}

	var boot []byte
	if bootPath := firstNonEmpty(ctx.String("boot"), cfg.Boot); bootPath != "" {
		boot, err = romload.LoadFile(bootPath)
		if err != nil {
			return fmt.Errorf("load boot rom: %w", err)
		}
	}

	breakpoints := append(append([]string{}, cfg.Breakpoints...), ctx.StringSlice("breakpoint")...)

	var breakpointHit bool
	m, err := machine.New(rom, boot, machine.Hooks{
		OnBreakpoint: func(index int, c *cpu.CPU) {
			fmt.Printf("breakpoint %d hit at PC=%#04x\n", index, c.PC)
			breakpointHit = true
		},
		OnError: func(kind emulator.Kind, value interface{}) {
			fmt.Fprintf(os.Stderr, "gbcore: %s: %v\n", kind, value)
		},
	})
	if err != nil {
		return fmt.Errorf("init machine: %w", err)
	}

	savePath := firstNonEmpty(ctx.String("save"), cfg.SavePath)
	if savePath != "" {
		if data, rerr := saveio.ReadFile(savePath); rerr == nil {
			if lerr := m.LoadSRAMLayout(data); lerr != nil {
				return fmt.Errorf("load save: %w", lerr)
			}
		}
	}

	for _, bp := range breakpoints {
		addr, err := parseHexAddress(bp)
		if err != nil {
			return fmt.Errorf("invalid breakpoint %q: %w", bp, err)
		}
		m.SetBreakpoint(addr)
	}

	frames := ctx.Int("frames")
	if frames <= 0 || (!ctx.IsSet("frames") && cfg.Frames > 0) {
		frames = cfg.Frames
	}
	for i := 0; i < frames && !breakpointHit; i++ {
		m.RunFrame()
	}

	if savePath != "" {
		if err := saveio.WriteFile(savePath, m.SaveSRAMLayout()); err != nil {
			return fmt.Errorf("write save: %w", err)
		}
	}

	if statePath := firstNonEmpty(ctx.String("state"), cfg.StatePath); statePath != "" {
		if err := writeState(m, statePath); err != nil {
			return fmt.Errorf("write state: %w", err)
		}
	}

	return nil
}

func writeState(m *machine.Machine, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil && !os.IsExist(err) {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.SaveState(f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseHexAddress(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
