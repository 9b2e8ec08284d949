package cmds

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/go-delve/dwarfscan/pkg/config"
	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

const (
	colorTag   = "\x1b[34m"
	colorAttr  = "\x1b[36m"
	colorError = "\x1b[31m"
	colorReset = "\x1b[0m"
)

// printer writes command output, optionally with ANSI colors.
type printer struct {
	w     io.Writer
	color bool
	conf  *config.Config
}

// colorMode is the value of the --color flag.
type colorMode string

var _ pflag.Value = (*colorMode)(nil)

func (m *colorMode) String() string { return string(*m) }

func (m *colorMode) Set(s string) error {
	switch s {
	case "auto", "always", "never":
		*m = colorMode(s)
		return nil
	}
	return fmt.Errorf("must be auto, always or never")
}

func (m *colorMode) Type() string { return "when" }

// colorEnabled interprets the --color flag for output written to f.
func colorEnabled(mode string, f *os.File) (bool, error) {
	switch mode {
	case "", "auto":
		return isatty.IsTerminal(f.Fd()), nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	}
	return false, fmt.Errorf("invalid --color value %q (must be auto, always or never)", mode)
}

// newStdoutPrinter returns a printer for standard output and a function
// that flushes it.
func newStdoutPrinter(mode string, conf *config.Config) (*printer, func() error, error) {
	color, err := colorEnabled(mode, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	var out io.Writer = os.Stdout
	if color {
		// translates escape codes on Windows consoles
		out = colorable.NewColorableStdout()
	}
	bw := bufio.NewWriter(out)
	return &printer{w: bw, color: color, conf: conf}, bw.Flush, nil
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) colorize(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + colorReset
}

func (p *printer) tag(t dwarf.Tag) string {
	return p.colorize(colorTag, t.String())
}

func (p *printer) attr(a dwarf.Attr) string {
	return p.colorize(colorAttr, a.String())
}

func (p *printer) errorf(format string, args ...interface{}) {
	p.printf("%s\n", p.colorize(colorError, fmt.Sprintf(format, args...)))
}

func (p *printer) path(s string) string {
	return p.conf.Substitute(s)
}
