// Command uftrace attaches to a running process read-only and
// disassembles a window of instructions starting at a named symbol or
// explicit address, rendering them the way a reverse-engineering tool
// would. It never writes to the target: no patch, no call-site
// redirection, just internal/task's attach-and-inspect path plus
// internal/ui/colorize for display.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/ulpatch/ulpatch/internal/arch"
	"github.com/ulpatch/ulpatch/internal/symbol"
	"github.com/ulpatch/ulpatch/internal/task"
	"github.com/ulpatch/ulpatch/internal/ui/colorize"
	"github.com/ulpatch/ulpatch/internal/ulog"
)

func main() {
	var count int
	var debug bool
	var selfOnly, libcOnly bool

	root := &cobra.Command{
		Use:   "uftrace <pid> <symbol-or-0xaddr>",
		Short: "Disassemble a window of instructions in a live process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}

			log := ulog.New(debug)
			flags := task.LoadVMAs | task.LoadVMAELFs
			switch {
			case selfOnly:
				// Symbols defined in the target's own executable only — skips
				// every shared-library leader, useful when the address being
				// traced is known to live in the main binary.
				flags |= task.LoadSelfELF
			case libcOnly:
				flags |= task.LoadLibcELF
			default:
				flags |= task.LoadSelfELF | task.LoadLibcELF | task.LoadSymbols
			}
			t, err := task.OpenTarget(pid, flags, "", log)
			if err != nil {
				return err
			}
			defer task.CloseTarget(t)

			addr, err := resolveAddr(t, args[1])
			if err != nil {
				return err
			}
			return disassemble(t, addr, count)
		},
	}
	root.Flags().IntVar(&count, "count", 20, "number of instructions to disassemble")
	root.Flags().BoolVar(&selfOnly, "self-only", false, "resolve symbols from the target's own executable only, skip shared libraries")
	root.Flags().BoolVar(&libcOnly, "libc-only", false, "resolve symbols from libc only, skip the executable and other shared libraries")
	root.Flags().BoolVar(&debug, "debug", false, "verbose logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveAddr(t *task.Task, ref string) (uint64, error) {
	if strings.HasPrefix(ref, "0x") || strings.HasPrefix(ref, "0X") {
		v, err := strconv.ParseUint(ref[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address %q: %w", ref, err)
		}
		return v, nil
	}
	if t.Syms == nil {
		return 0, fmt.Errorf("no symbol table loaded, pass an explicit 0x address")
	}
	sym, ok := t.Syms.Lookup(ref)
	if !ok {
		return 0, fmt.Errorf("symbol %q not found", ref)
	}
	return symbol.RuntimeAddr(sym, t.VMAs)
}

func disassemble(t *task.Task, addr uint64, count int) error {
	const maxInsnLen = 16
	window, err := t.Mem.ReadAt(addr, maxInsnLen*count)
	if err != nil {
		return fmt.Errorf("read code window at 0x%x: %w", addr, err)
	}

	isaName := string(t.ISA)
	off := 0
	for i := 0; i < count && off < len(window); i++ {
		text, size, err := decodeOne(t.ISA, window[off:])
		if err != nil {
			fmt.Printf("%s  %s\n", colorize.Address(addr+uint64(off)), colorize.Error(err.Error()))
			break
		}
		fmt.Printf("%s  %s\n", colorize.Address(addr+uint64(off)), colorize.Instruction(isaName, text))
		off += size
	}
	return nil
}

func decodeOne(isa arch.ISA, code []byte) (string, int, error) {
	switch isa {
	case arch.X86_64:
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			return "", 0, err
		}
		return x86asm.GNUSyntax(inst, 0, nil), inst.Len, nil
	case arch.AArch64:
		inst, err := arm64asm.Decode(code)
		if err != nil {
			return "", 0, err
		}
		return arm64asm.GNUSyntax(inst), 4, nil
	default:
		return "", 0, fmt.Errorf("no disassembler for ISA %q", isa)
	}
}
