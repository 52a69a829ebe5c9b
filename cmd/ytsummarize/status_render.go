package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// statusPrinter writes the doctor report: section headers and aligned
// "label: [KIND] detail" lines, coloured when out is a terminal.
type statusPrinter struct {
	out      io.Writer
	colorize bool
	sections int
	// errors counts lines printed with statusError.
	errors int
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	p := &statusPrinter{out: out}
	if f, ok := out.(*os.File); ok {
		p.colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return p
}

func (p *statusPrinter) paint(color, line string) string {
	if !p.colorize {
		return line
	}
	return color + line + ansiReset
}

func (p *statusPrinter) section(title string) {
	if p.sections > 0 {
		fmt.Fprintln(p.out)
	}
	p.sections++
	fmt.Fprintln(p.out, p.paint(statusStyles[statusInfo].color, "== "+title+" =="))
}

func (p *statusPrinter) line(label string, kind statusKind, detail string) {
	if kind == statusError {
		p.errors++
	}
	style := statusStyles[kind]
	text := fmt.Sprintf("  %-22s [%s]", label+":", style.label)
	if detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(p.out, p.paint(style.color, text))
}

// writeJSON encodes v as indented JSON to out.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
