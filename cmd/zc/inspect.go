package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/wippyai/zerocopy/codec"
	"github.com/wippyai/zerocopy/formula"
)

type inspectCommand struct {
	cli         *cli
	formula     *string
	input       *string
	hex         *bool
	dump        *bool
	interactive *bool
}

func addInspectCommand(app *kingpin.Application, c *cli) {
	cmd := &inspectCommand{cli: c}
	inspect := app.Command("inspect", "Show the layout and value tree of a buffer.").Action(cmd.run)
	cmd.formula = inspect.Arg("formula", "Formula text or configured name.").Required().String()
	cmd.input = inspect.Arg("input", "Buffer file, stdin when omitted.").String()
	cmd.hex = inspect.Flag("hex", "Read hex text instead of raw bytes.").Bool()
	cmd.dump = inspect.Flag("dump", "Hex dump the stack and heap regions.").Bool()
	cmd.interactive = inspect.Flag("interactive", "Browse the value tree in a terminal UI.").Short('i').Bool()
}

// layout is a decoded buffer with its root regions.
type layout struct {
	f     *formula.Formula
	data  []byte
	nodes []node
	stack int
}

func (l *layout) heap() int { return len(l.data) - l.stack }

func (l *layout) summary() string {
	return fmt.Sprintf("%s total, stack %s, heap %s",
		humanize.Bytes(uint64(len(l.data))),
		humanize.Bytes(uint64(l.stack)),
		humanize.Bytes(uint64(l.heap())))
}

func (cmd *inspectCommand) load() (*layout, error) {
	c := cmd.cli
	f, err := c.formula(*cmd.formula)
	if err != nil {
		return nil, err
	}
	data, err := c.readInput(*cmd.input, *cmd.hex)
	if err != nil {
		return nil, err
	}
	var v any
	if err := codec.NewDecoder(c.cfg.options).Unmarshal(f, data, &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &layout{f: f, data: data, nodes: flatten(v), stack: f.Stride()}, nil
}

func (cmd *inspectCommand) run(_ *kingpin.ParseContext) error {
	l, err := cmd.load()
	if err != nil {
		return err
	}
	if *cmd.interactive {
		return runBrowser(l, cmd.cli.stdin, cmd.cli.stdout)
	}

	c := cmd.cli
	bold, faint := c.paint(color.Bold), c.paint(color.Faint)
	fmt.Fprintf(c.stdout, "%s %s\n", bold.Sprint("formula"), l.f)
	fmt.Fprintf(c.stdout, "%s %s\n", bold.Sprint("size   "), l.summary())
	if *cmd.dump {
		fmt.Fprintf(c.stdout, "%s\n%s", bold.Sprint("stack"), hex.Dump(l.data[:l.stack]))
		if l.heap() > 0 {
			fmt.Fprintf(c.stdout, "%s\n%s", bold.Sprint("heap"), hex.Dump(l.data[l.stack:]))
		}
	}
	for _, n := range l.nodes {
		fmt.Fprintf(c.stdout, "%s%s %s\n", strings.Repeat("  ", n.depth), faint.Sprint(n.label+":"), n.value)
	}
	return nil
}

func runBrowser(l *layout, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(newBrowserModel(l), tea.WithInput(in), tea.WithOutput(out))
	_, err := p.Run()
	return err
}
