package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/zerocopy/codec"
)

var errBinaryToTerminal = errors.New("refusing to write binary to a terminal, use --hex or -o")

type encodeCommand struct {
	cli     *cli
	formula *string
	input   *string
	output  *string
	hex     *bool
}

func addEncodeCommand(app *kingpin.Application, c *cli) {
	cmd := &encodeCommand{cli: c}
	encode := app.Command("encode", "Encode a YAML value.").Action(cmd.run)
	cmd.formula = encode.Arg("formula", "Formula text or configured name.").Required().String()
	cmd.input = encode.Arg("input", "YAML value file, stdin when omitted.").String()
	cmd.output = encode.Flag("output", "Write the buffer to this file instead of stdout.").Short('o').String()
	cmd.hex = encode.Flag("hex", "Write hex text instead of raw bytes.").Bool()
}

func (cmd *encodeCommand) run(_ *kingpin.ParseContext) error {
	c := cmd.cli
	f, err := c.formula(*cmd.formula)
	if err != nil {
		return err
	}
	src, err := c.readInput(*cmd.input, false)
	if err != nil {
		return err
	}
	v, err := parseValue(src)
	if err != nil {
		return err
	}

	// A *any binds the root dynamically whatever YAML scalar it holds.
	root := any(&v)
	if v == nil {
		root = nil
	}
	data, sizes, err := codec.NewEncoder(c.cfg.options).MarshalAppend(f, root, nil)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	codec.Logger().Debug("encoded",
		zap.Stringer("formula", f),
		zap.Stringer("sizes", sizes),
		zap.String("total", humanize.Bytes(uint64(len(data)))))

	if *cmd.hex {
		data = []byte(hex.EncodeToString(data) + "\n")
	}
	if *cmd.output != "" {
		if err := afero.WriteFile(c.fs, *cmd.output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *cmd.output, err)
		}
		return nil
	}
	if !*cmd.hex && isTerminal(c.stdout) {
		return errBinaryToTerminal
	}
	_, err = c.stdout.Write(data)
	return err
}
