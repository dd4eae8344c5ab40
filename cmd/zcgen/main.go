// Command zcgen writes formula declarations for the annotated types of a Go
// package. Use it from go:generate:
//
//	//go:generate go run github.com/wippyai/zerocopy/cmd/zcgen
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/zerocopy/derive"
)

type generateCommand struct {
	fs      afero.Fs
	dir     *string
	output  *string
	check   *bool
	verbose *bool
}

func (cmd *generateCommand) run(_ *kingpin.ParseContext) error {
	if *cmd.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		derive.SetLogger(logger)
	}

	out, err := cmd.generate()
	if err != nil {
		return err
	}

	path := filepath.Join(*cmd.dir, *cmd.output)
	if *cmd.check {
		have, err := afero.ReadFile(cmd.fs, path)
		if err != nil || string(have) != string(out) {
			return fmt.Errorf("%s is out of date", path)
		}
		return nil
	}
	if err := afero.WriteFile(cmd.fs, path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (cmd *generateCommand) generate() ([]byte, error) {
	pkg, err := derive.ParseFS(cmd.fs, *cmd.dir)
	if err != nil {
		return nil, err
	}
	res, err := derive.Build(pkg, nil)
	if err != nil {
		return nil, err
	}
	return derive.Generate(res)
}

func newApp(fs afero.Fs) *kingpin.Application {
	app := kingpin.New("zcgen", "Generate formula declarations for annotated Go types.")
	cmd := &generateCommand{fs: fs}
	app.Action(cmd.run)
	cmd.dir = app.Flag("dir", "Package directory to read.").Default(".").String()
	cmd.output = app.Flag("output", "File name to write inside the package directory.").Short('o').Default("zz_formula.go").String()
	cmd.check = app.Flag("check", "Fail if the output file is missing or stale instead of writing it.").Bool()
	cmd.verbose = app.Flag("verbose", "Log derivation steps.").Short('v').Bool()
	return app
}

func main() {
	app := newApp(afero.NewOsFs())
	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "zcgen: %v\n", err)
		os.Exit(1)
	}
}
