package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/wippyai/zerocopy/formula"
)

type schemaCommand struct {
	cli     *cli
	formula *string
	goPkg   *string
	list    *bool
}

func addSchemaCommand(app *kingpin.Application, c *cli) {
	cmd := &schemaCommand{cli: c}
	schema := app.Command("schema", "Print a formula with its size properties.").Action(cmd.run)
	cmd.formula = schema.Arg("formula", "Formula text or configured name.").String()
	cmd.goPkg = schema.Flag("go", "Print a Go expression building the formula, qualified with this package name.").PlaceHolder("PKG").String()
	cmd.list = schema.Flag("list", "List the configured formulas.").Short('l').Bool()
}

func (cmd *schemaCommand) run(_ *kingpin.ParseContext) error {
	c := cmd.cli
	if *cmd.list {
		bold := c.paint(color.Bold)
		for _, name := range c.cfg.names() {
			fmt.Fprintf(c.stdout, "%s\t%s\n", bold.Sprint(name), c.cfg.formulas[name])
		}
		return nil
	}
	if *cmd.formula == "" {
		return fmt.Errorf("schema: a formula is required unless --list is set")
	}

	f, err := c.formula(*cmd.formula)
	if err != nil {
		return err
	}
	if *cmd.goPkg != "" {
		fmt.Fprintln(c.stdout, f.GoSource(*cmd.goPkg))
		return nil
	}

	label := c.paint(color.Faint)
	row := func(k string, v any) {
		fmt.Fprintf(c.stdout, "%s %v\n", label.Sprintf("%-10s", k), v)
	}
	row("formula", f)
	row("kind", f.Kind())
	row("max stack", f.MaxStackSize())
	row("stride", f.Stride())
	row("exact", f.ExactSize())
	row("heapless", f.Heapless())
	if f.Kind() == formula.KindEnum {
		row("tag", fmt.Sprintf("%d bytes", f.DiscriminantSize()))
	}
	return nil
}
