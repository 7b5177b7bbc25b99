// Package colorize provides syntax highlighting for uftrace's disassembly
// output and the phase/detail columns of ultask's --status view, reusing
// the IDA-style disasm-dark Chroma
// theme so instructions, addresses, and call-site annotations read the
// way a reverse-engineering tool would render them.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// getAssemblyLexer picks a lexer by target ISA, falling back through
// GAS/NASM dialects if the exact one isn't registered.
func getAssemblyLexer(isa string) chroma.Lexer {
	var candidates []string
	switch isa {
	case "aarch64":
		candidates = []string{"armasm", "gas", "GAS", "nasm"}
	default:
		candidates = []string{"gas", "GAS", "nasm", "armasm"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("ULPATCH_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Instruction colorizes one disassembled instruction for the target isa
// ("x86_64" or "aarch64").
func Instruction(isa, insn string) string {
	if IsDisabled() {
		return insn
	}

	lexer := getAssemblyLexer(isa)
	if lexer == nil {
		return insn
	}

	_ = DisasmDark // force style registration
	style := getDisasmStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, insn)
	if err != nil {
		return insn
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return insn
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// Address formats a runtime address in yellow.
func Address(addr uint64) string {
	if IsDisabled() {
		return fmt.Sprintf("%016x", addr)
	}
	return fmt.Sprintf("\033[38;2;255;200;0m%016x\033[0m", addr)
}

// Tag formats an opevent phase tag in light pink.
func Tag(tag string) string {
	if IsDisabled() {
		return tag
	}
	return fmt.Sprintf("\033[38;2;255;180;200m%s\033[0m", tag)
}

// Detail formats detail text in light gray.
func Detail(detail string) string {
	if IsDisabled() {
		return detail
	}
	return fmt.Sprintf("\033[38;2;180;180;180m%s\033[0m", detail)
}

// Error formats error messages in pink.
func Error(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;255;128;192m%s\033[0m", s)
}
