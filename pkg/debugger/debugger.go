// Package debugger implements the GDB-like control loop: breakpoints,
// watchpoints, and the nine fixed REPL commands dispatched over a running
// pkg/cpu.Processor (spec.md §4.4).
package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/remu/remu/pkg/cpu"
	"github.com/remu/remu/pkg/decode"
	"github.com/remu/remu/pkg/expr"
	"github.com/remu/remu/pkg/isa"
	"github.com/remu/remu/pkg/memory"
)

// Prompt is printed before every command read, matching spec.md §6.
const Prompt = "(remu) "

// AssertionFailedError reports an internal invariant violation — here,
// a breakpoint requested at a non-4-byte-aligned address (spec.md §7).
type AssertionFailedError struct {
	Msg string
}

func (e *AssertionFailedError) Error() string { return "assertion failed: " + e.Msg }

// Debugger owns the breakpoint and watchpoint sets and drives the
// processor one instruction at a time. It holds non-owning references to
// the processor and its memory (spec.md §3 ownership model).
type Debugger struct {
	cpu *cpu.Processor
	mem *memory.Memory

	in  *bufio.Scanner
	out io.Writer

	breakpoints []Breakpoint
	watchpoints []Watchpoint
	nextBPID    int

	pauseRequested bool
	quit           bool
}

// New builds a debugger reading commands from in and writing all
// diagnostics/output to out.
func New(p *cpu.Processor, in io.Reader, out io.Writer) *Debugger {
	return &Debugger{
		cpu: p,
		mem: p.Memory(),
		in:  bufio.NewScanner(in),
		out: out,
	}
}

// AddBreakpoint installs a breakpoint at addr, asserting 4-byte alignment.
// Uniqueness is by address: re-adding an existing address returns the
// existing breakpoint rather than creating a duplicate.
func (d *Debugger) AddBreakpoint(addr isa.Word) (*Breakpoint, error) {
	if addr%4 != 0 {
		return nil, &AssertionFailedError{Msg: fmt.Sprintf("breakpoint address 0x%08x is not 4-byte aligned", addr)}
	}
	for i := range d.breakpoints {
		if d.breakpoints[i].Addr == addr {
			return &d.breakpoints[i], nil
		}
	}
	bp := Breakpoint{ID: d.nextBPID, Addr: addr}
	d.nextBPID++
	d.breakpoints = append(d.breakpoints, bp)
	return &d.breakpoints[len(d.breakpoints)-1], nil
}

// RemoveBreakpoint deletes the breakpoint with the given id, if present.
func (d *Debugger) RemoveBreakpoint(id int) {
	for i, bp := range d.breakpoints {
		if bp.ID == id {
			d.breakpoints = append(d.breakpoints[:i], d.breakpoints[i+1:]...)
			return
		}
	}
}

// AddWatchpoint installs a watchpoint over the 4-byte span starting at
// addr. The watchpoint and its backing write-tracer share the same id
// (spec.md §3), obtained from Memory's shared tracer id sequence.
func (d *Debugger) AddWatchpoint(addr isa.Word) (*Watchpoint, error) {
	span := watchpointSpan(addr)
	if !d.mem.IsValidMemSpan(span) {
		return nil, fmt.Errorf("%w: watchpoint span [0x%08x,0x%08x]", memory.ErrInvalidAddress, span.Lo, span.Hi)
	}
	id := d.mem.NextTracerID()
	d.mem.AddWriteTracer(memory.Tracer{
		ID:   id,
		Span: span,
		Handler: func(vaddr, data isa.Word, n int) {
			fmt.Fprintf(d.out, "[Watchpoint %d]: write %d bytes at 0x%08x, data = 0x%08x\n", id, n, vaddr, data)
			d.pauseRequested = true
		},
	})
	wp := Watchpoint{ID: id, Span: span}
	d.watchpoints = append(d.watchpoints, wp)
	return &d.watchpoints[len(d.watchpoints)-1], nil
}

// RemoveWatchpoint deletes the watchpoint and its backing write-tracer,
// leaving the tracer registry's size unchanged relative to before the
// matching AddWatchpoint call (spec.md §8 invariant 9).
func (d *Debugger) RemoveWatchpoint(id int) {
	d.mem.RemoveWriteTracer(id)
	for i, wp := range d.watchpoints {
		if wp.ID == id {
			d.watchpoints = append(d.watchpoints[:i], d.watchpoints[i+1:]...)
			return
		}
	}
}

func (d *Debugger) breakpointAt(pc isa.Word) bool {
	for _, bp := range d.breakpoints {
		if bp.Addr == pc {
			return true
		}
	}
	return false
}

// Run drives the REPL until a quit command, EOF on the input, or a fatal
// processor error. It returns nil on a clean quit/EOF and the fatal error
// otherwise (cmd/remu's main logs it and exits non-zero, per SPEC_FULL.md §7).
func (d *Debugger) Run() error {
	for !d.quit {
		fmt.Fprint(d.out, Prompt)
		if !d.in.Scan() {
			return nil
		}
		cmd, err := parseCommand(d.in.Text())
		if err != nil {
			fmt.Fprintln(d.out, err)
			continue
		}
		n, err := d.dispatch(cmd)
		if err != nil {
			return err
		}
		if err := d.runInstructions(n); err != nil {
			return err
		}
	}
	return nil
}

// runInstructions executes up to n instructions, stopping early on a
// watchpoint pause request, a breakpoint match on the advanced pc, an
// ebreak halt request (printed, not fatal), or quit (spec.md §4.4 steps
// 3-4).
func (d *Debugger) runInstructions(n int) error {
	for i := 0; i < n && !d.quit; i++ {
		if err := d.cpu.Step(); err != nil {
			if errors.Is(err, decode.ErrHaltRequested) {
				fmt.Fprintln(d.out, "ebreak: halt requested")
				return nil
			}
			return err
		}
		if d.pauseRequested {
			d.pauseRequested = false
			return nil
		}
		if d.breakpointAt(d.cpu.PC()) {
			return nil
		}
	}
	return nil
}

// dispatch executes the side effect of a parsed command and returns the
// number of instructions the caller should subsequently run: 1 for si, a
// large bound for c (runInstructions stops early on breakpoint/watchpoint/
// halt), 0 for every inspection-only command (spec.md §4.4 step 2).
func (d *Debugger) dispatch(cmd *command) (int, error) {
	switch cmd.kind {
	case kindStep:
		return 1, nil
	case kindContinue:
		return math.MaxInt32, nil
	case kindBreak:
		addr, err := expr.Eval(cmd.expr, d.cpu)
		if err != nil {
			fmt.Fprintln(d.out, err)
			return 0, nil
		}
		if _, err := d.AddBreakpoint(addr); err != nil {
			fmt.Fprintln(d.out, err)
		}
		return 0, nil
	case kindWatch:
		addr, err := expr.Eval(cmd.expr, d.cpu)
		if err != nil {
			fmt.Fprintln(d.out, err)
			return 0, nil
		}
		if _, err := d.AddWatchpoint(addr); err != nil {
			fmt.Fprintln(d.out, err)
		}
		return 0, nil
	case kindDelete:
		switch cmd.deleteTarget {
		case deleteBreak:
			d.RemoveBreakpoint(cmd.deleteID)
		case deleteWatch:
			d.RemoveWatchpoint(cmd.deleteID)
		}
		return 0, nil
	case kindPrint:
		v, err := expr.Eval(cmd.expr, d.cpu)
		if err != nil {
			fmt.Fprintln(d.out, err)
			return 0, nil
		}
		fmt.Fprintln(d.out, v)
		return 0, nil
	case kindExamine:
		base, err := expr.Eval(cmd.examineExpr, d.cpu)
		if err != nil {
			fmt.Fprintln(d.out, err)
			return 0, nil
		}
		d.dumpWords(base, cmd.examineN)
		return 0, nil
	case kindInfo:
		switch cmd.infoTarget {
		case infoRegisters:
			d.cpu.PrintGeneralReg(d.out)
		case infoBreakpoints:
			d.printBreakpoints()
		case infoWatchpoints:
			d.printWatchpoints()
		}
		return 0, nil
	case kindQuit:
		d.quit = true
		return 0, nil
	default:
		return 0, nil
	}
}

// dumpWords prints n 4-byte words starting at base, one line per word in
// the "0xAAAAAAAA: BB BB BB BB" format (little-endian byte order, byte at
// addr first) from spec.md §6.
func (d *Debugger) dumpWords(base isa.Word, n int) {
	for i := 0; i < n; i++ {
		addr := base + isa.Word(i*4)
		b0, err0 := d.mem.ReadU8(addr)
		b1, err1 := d.mem.ReadU8(addr + 1)
		b2, err2 := d.mem.ReadU8(addr + 2)
		b3, err3 := d.mem.ReadU8(addr + 3)
		if err0 != nil || err1 != nil || err2 != nil || err3 != nil {
			fmt.Fprintf(d.out, "0x%08x: <invalid address>\n", addr)
			continue
		}
		fmt.Fprintf(d.out, "0x%08x: %02X %02X %02X %02X\n", addr, b0, b1, b2, b3)
	}
}

func (d *Debugger) printBreakpoints() {
	for _, bp := range d.breakpoints {
		fmt.Fprintf(d.out, "[Breakpoint %d]: vaddr = 0x%08x\n", bp.ID, bp.Addr)
	}
}

func (d *Debugger) printWatchpoints() {
	for _, wp := range d.watchpoints {
		fmt.Fprintf(d.out, "[Watchpoint %d]:\n", wp.ID)
		d.dumpWords(wp.Span.Lo, 1)
	}
}
