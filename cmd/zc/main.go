// Command zc encodes, decodes and inspects formula buffers from the shell.
//
//	zc schema 'struct Point { x: i32, y: i32 }'
//	echo '{x: 1, y: -2}' | zc encode Point --hex
//	zc inspect Point point.bin -i
//
// Formula names resolve against the [formulas] table of zc.toml.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/zerocopy/codec"
	"github.com/wippyai/zerocopy/formula"
)

// cli holds the global flags and the state every command shares.
type cli struct {
	fs     afero.Fs
	stdin  io.Reader
	stdout io.Writer

	configPath *string
	verbose    *bool
	color      *string
	borrow     *bool
	borrowSet  bool

	cfg *config
}

func (c *cli) setup(_ *kingpin.ParseContext) error {
	if *c.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		codec.SetLogger(logger)
	}

	path, explicit := *c.configPath, true
	if path == "" {
		path, explicit = defaultConfigPath, false
	}
	cfg, err := loadConfig(c.fs, path, explicit)
	if err != nil {
		return err
	}
	if c.borrowSet {
		cfg.options.Borrow = *c.borrow
	}
	if *c.color != "" {
		cfg.color = *c.color
	}
	c.cfg = cfg
	return nil
}

func (c *cli) formula(text string) (*formula.Formula, error) {
	f, err := c.cfg.resolve(text)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", text, err)
	}
	return f, nil
}

// readInput reads a file, or stdin for "" and "-". With asHex the input is
// hex text, whitespace ignored.
func (c *cli) readInput(path string, asHex bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(c.stdin)
	} else {
		data, err = afero.ReadFile(c.fs, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", displayName(path), err)
	}
	if !asHex {
		return data, nil
	}
	out, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", displayName(path), err)
	}
	return out, nil
}

func displayName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

// styled reports whether output to w gets ANSI colors.
func (c *cli) styled(w io.Writer) bool {
	switch c.cfg.color {
	case colorAlways:
		return true
	case colorNever:
		return false
	}
	return isTerminal(w)
}

// paint returns a color that honors the color mode for stdout.
func (c *cli) paint(attrs ...color.Attribute) *color.Color {
	p := color.New(attrs...)
	if c.styled(c.stdout) {
		p.EnableColor()
	} else {
		p.DisableColor()
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newApp(fs afero.Fs, stdin io.Reader, stdout io.Writer) *kingpin.Application {
	app := kingpin.New("zc", "Encode, decode and inspect formula buffers.")
	app.HelpFlag.Short('h')

	c := &cli{fs: fs, stdin: stdin, stdout: stdout}
	c.configPath = app.Flag("config", "Configuration file. Defaults to zc.toml when present.").Short('c').String()
	c.verbose = app.Flag("verbose", "Log codec activity to stderr.").Short('v').Bool()
	c.color = app.Flag("color", "Colorize output.").Enum(colorAuto, colorAlways, colorNever)
	c.borrow = app.Flag("borrow", "Alias decoded bytes and strings to the input.").IsSetByUser(&c.borrowSet).Bool()
	app.PreAction(c.setup)

	addSchemaCommand(app, c)
	addEncodeCommand(app, c)
	addDecodeCommand(app, c)
	addValidateCommand(app, c)
	addInspectCommand(app, c)
	return app
}

func main() {
	app := newApp(afero.NewOsFs(), os.Stdin, os.Stdout)
	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "zc: %v\n", err)
		os.Exit(1)
	}
}
