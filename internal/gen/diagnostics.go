package gen

import (
	"fmt"
	"go/token"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
)

// Diagnostic reports an interface that could not be generated. It aborts
// generation for that interface only.
type Diagnostic struct {
	Pos       token.Position
	Interface string
	Message   string
}

// String formats the diagnostic like a compiler error.
func (d Diagnostic) String() string {
	pos := d.Pos.String()
	if pos == "-" {
		pos = d.Interface
	}
	return fmt.Sprintf("%s: %s", pos, d.Message)
}

// SortDiagnostics orders diagnostics by file, line and column.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Pos, diags[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

const (
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// Printer writes diagnostics, in color when the destination is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a printer for f. Color is used only when f is a
// terminal, NO_COLOR is unset and TERM is not "dumb".
func NewPrinter(f *os.File) *Printer {
	return &Printer{w: f, color: useColor(f)}
}

// NewPlainPrinter returns a printer that never emits escape codes.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func useColor(f *os.File) bool {
	// https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print writes one line per diagnostic.
func (p *Printer) Print(diags []Diagnostic) {
	for _, d := range diags {
		if !p.color {
			fmt.Fprintln(p.w, d.String())
			continue
		}
		pos := d.Pos.String()
		if pos == "-" {
			pos = d.Interface
		}
		fmt.Fprintf(p.w, "%s%s:%s %serror:%s %s\n", ansiBold, pos, ansiReset, ansiRed, ansiReset, d.Message)
	}
}
