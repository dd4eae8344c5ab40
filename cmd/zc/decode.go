package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/wippyai/zerocopy/codec"
)

type decodeCommand struct {
	cli     *cli
	formula *string
	input   *string
	hex     *bool
}

func addDecodeCommand(app *kingpin.Application, c *cli) {
	cmd := &decodeCommand{cli: c}
	decode := app.Command("decode", "Decode a buffer to YAML.").Action(cmd.run)
	cmd.formula = decode.Arg("formula", "Formula text or configured name.").Required().String()
	cmd.input = decode.Arg("input", "Buffer file, stdin when omitted.").String()
	cmd.hex = decode.Flag("hex", "Read hex text instead of raw bytes.").Bool()
}

func (cmd *decodeCommand) run(_ *kingpin.ParseContext) error {
	c := cmd.cli
	f, err := c.formula(*cmd.formula)
	if err != nil {
		return err
	}
	data, err := c.readInput(*cmd.input, *cmd.hex)
	if err != nil {
		return err
	}

	var v any
	if err := codec.NewDecoder(c.cfg.options).Unmarshal(f, data, &v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	out, err := renderValue(v)
	if err != nil {
		return err
	}
	_, err = c.stdout.Write(out)
	return err
}

type validateCommand struct {
	cli     *cli
	formula *string
	files   *[]string
	hex     *bool
}

func addValidateCommand(app *kingpin.Application, c *cli) {
	cmd := &validateCommand{cli: c}
	validate := app.Command("validate", "Check buffers against a formula.").Action(cmd.run)
	cmd.formula = validate.Arg("formula", "Formula text or configured name.").Required().String()
	cmd.files = validate.Arg("files", "Buffer files.").Required().Strings()
	cmd.hex = validate.Flag("hex", "Read hex text instead of raw bytes.").Bool()
}

func (cmd *validateCommand) run(_ *kingpin.ParseContext) error {
	c := cmd.cli
	f, err := c.formula(*cmd.formula)
	if err != nil {
		return err
	}

	dec := codec.NewDecoder(c.cfg.options)
	ok, bad := c.paint(color.FgGreen), c.paint(color.FgRed, color.Bold)
	failed := 0
	for _, path := range *cmd.files {
		data, err := c.readInput(path, *cmd.hex)
		if err == nil {
			err = dec.Validate(f, data)
		}
		if err != nil {
			failed++
			fmt.Fprintf(c.stdout, "%s %s: %v\n", bad.Sprint("FAIL"), path, err)
			continue
		}
		fmt.Fprintf(c.stdout, "%s %s (%s)\n", ok.Sprint("ok  "), path, humanize.Bytes(uint64(len(data))))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d buffers failed validation", failed, len(*cmd.files))
	}
	return nil
}
