// Command remu is an interactive RISC-V-like 32-bit emulator and debugger
// (SPEC_FULL.md §6). It loads a raw instruction image into guest memory,
// seeds the processor's PC, and hands control to the debugger's REPL.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	cli "gopkg.in/urfave/cli.v2"

	"github.com/remu/remu/pkg/cpu"
	"github.com/remu/remu/pkg/debugger"
	"github.com/remu/remu/pkg/isa"
	"github.com/remu/remu/pkg/memory"
)

// sampleImage is the five-word AUIPC/SB/LBU/EBREAK program from
// SPEC_FULL.md §6: with no image file given, remu loads this so a user can
// exercise the debugger with no setup, mirroring the reference
// implementation's hardcoded main().
var sampleImage = []uint32{0x00000297, 0x00028823, 0x0102c503, 0x00100073, 0xdeadbeef}

func main() {
	log.SetFlags(0)

	app := &cli.App{
		Name:      "remu",
		Usage:     "interactive RISC-V-like emulator and debugger",
		ArgsUsage: "[image-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "load-addr",
				Value: fmt.Sprintf("0x%08x", isa.MemBase),
				Usage: "guest address to load image-file at (also seeds PC)",
			},
			&cli.StringSliceFlag{
				Name:  "break",
				Usage: "install a breakpoint at HEX before the session starts (repeatable)",
			},
			&cli.StringFlag{
				Name:  "batch",
				Usage: "read debugger commands from FILE instead of stdin",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "suppress the startup register dump",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	loadAddr, err := parseHex(c.String("load-addr"))
	if err != nil {
		return fmt.Errorf("--load-addr: %w", err)
	}

	mem := memory.New()
	proc := cpu.New(mem)
	proc.SetPC(loadAddr)
	proc.SetNPC(loadAddr)

	if err := loadImage(mem, loadAddr, c.Args().First()); err != nil {
		return err
	}

	input := os.Stdin
	if batch := c.String("batch"); batch != "" {
		f, err := os.Open(batch)
		if err != nil {
			return fmt.Errorf("--batch: %w", err)
		}
		defer f.Close()
		input = f
	}
	dbg := debugger.New(proc, input, os.Stdout)

	for _, h := range c.StringSlice("break") {
		addr, err := parseHex(h)
		if err != nil {
			return fmt.Errorf("--break %s: %w", h, err)
		}
		if _, err := dbg.AddBreakpoint(addr); err != nil {
			return err
		}
	}

	if !c.Bool("quiet") {
		fmt.Println("remu: guest memory", fmt.Sprintf("[0x%08x, 0x%08x)", isa.MemBase, isa.MemBase+isa.MemSize))
		proc.PrintGeneralReg(os.Stdout)
	}

	return dbg.Run()
}

// loadImage places name's raw bytes at addr, or the built-in sample image
// if name is empty (SPEC_FULL.md §6 supplement).
func loadImage(mem *memory.Memory, addr isa.Word, name string) error {
	if name == "" {
		buf := make([]byte, 0, len(sampleImage)*4)
		for _, w := range sampleImage {
			buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
		return mem.LoadBytes(addr, buf)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading image %s: %w", name, err)
	}
	return mem.LoadBytes(addr, data)
}

// parseHex accepts a 0x-prefixed or bare hexadecimal string.
func parseHex(s string) (isa.Word, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return isa.Word(v), nil
}
