package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// printer writes command output, colored when the terminal allows it.
type printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

// resolveColors turns an auto|always|never mode into a yes/no.
func resolveColors(mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false, nil
		}
		if os.Getenv("TERM") == "dumb" {
			return false, nil
		}
		return !color.NoColor, nil
	default:
		return false, fmt.Errorf("invalid color mode %q: must be auto, always, or never", mode)
	}
}

func newPrinter(useColors bool) *printer {
	return &printer{out: os.Stdout, err: os.Stderr, useColors: useColors}
}

func (p *printer) Success(format string, args ...any) {
	if p.useColors {
		color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "✓ "+format+"\n", args...)
}

func (p *printer) Warning(format string, args ...any) {
	if p.useColors {
		color.New(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "⚠ "+format+"\n", args...)
}

func (p *printer) Field(label string, value any) {
	if p.useColors {
		label = color.New(color.Faint).Sprint(label)
	}
	fmt.Fprintf(p.out, "  %-10s %v\n", label+":", value)
}

// Status renders a filled dot for true and a hollow one for false.
func (p *printer) Status(ok bool) string {
	if !p.useColors {
		if ok {
			return "●"
		}
		return "○"
	}
	if ok {
		return color.GreenString("●")
	}
	return color.RedString("●")
}
