package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/wippyai/zerocopy/codec"
	"github.com/wippyai/zerocopy/formula"
)

// defaultConfigPath is read when present; an explicit --config must exist.
const defaultConfigPath = "zc.toml"

// fileConfig is the layout of zc.toml.
type fileConfig struct {
	Formulas map[string]string `toml:"formulas"`
	Decode   struct {
		Borrow bool `toml:"borrow"`
	} `toml:"decode"`
	Output struct {
		Color string `toml:"color"`
	} `toml:"output"`
	Limits struct {
		MaxDepth      int `toml:"max_depth"`
		MaxListLength int `toml:"max_list_length"`
		MaxStringSize int `toml:"max_string_size"`
	} `toml:"limits"`
}

// config is a loaded zc.toml with its named formulas parsed.
type config struct {
	formulas map[string]*formula.Formula
	options  codec.Options
	color    string
}

func loadConfig(fs afero.Fs, path string, explicit bool) (*config, error) {
	cfg := &config{
		formulas: map[string]*formula.Formula{},
		options:  codec.DefaultOptions(),
		color:    colorAuto,
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var raw fileConfig
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config parse failed (%s): unknown key %s", path, undecoded[0])
	}

	if meta.IsDefined("limits", "max_depth") {
		cfg.options.MaxDepth = raw.Limits.MaxDepth
	}
	if meta.IsDefined("limits", "max_list_length") {
		cfg.options.MaxListLength = raw.Limits.MaxListLength
	}
	if meta.IsDefined("limits", "max_string_size") {
		cfg.options.MaxStringSize = raw.Limits.MaxStringSize
	}
	cfg.options.Borrow = raw.Decode.Borrow
	if meta.IsDefined("output", "color") {
		if err := checkColor(raw.Output.Color); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.color = raw.Output.Color
	}

	if err := cfg.parseFormulas(raw.Formulas); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

func checkColor(mode string) error {
	switch mode {
	case colorAuto, colorAlways, colorNever:
		return nil
	}
	return fmt.Errorf("color must be auto, always or never, got %q", mode)
}

// parseFormulas parses named formulas that may refer to each other in any
// order. Each pass parses whatever its dependencies allow.
func (c *config) parseFormulas(src map[string]string) error {
	pending := make([]string, 0, len(src))
	for name := range src {
		pending = append(pending, name)
	}
	sort.Strings(pending)

	for len(pending) > 0 {
		var (
			next    []string
			lastErr error
		)
		for _, name := range pending {
			f, err := formula.ParseWith(src[name], c.formulas)
			if err != nil {
				next = append(next, name)
				lastErr = fmt.Errorf("formula %s: %w", name, err)
				continue
			}
			if err := formula.Check(f); err != nil {
				return fmt.Errorf("formula %s: %w", name, err)
			}
			c.formulas[name] = f
		}
		if len(next) == len(pending) {
			return lastErr
		}
		pending = next
	}
	return nil
}

// resolve returns the named formula, or parses text as a formula over the
// named ones.
func (c *config) resolve(text string) (*formula.Formula, error) {
	text = strings.TrimSpace(text)
	if f, ok := c.formulas[text]; ok {
		return f, nil
	}
	f, err := formula.ParseWith(text, c.formulas)
	if err != nil {
		return nil, err
	}
	if err := formula.Check(f); err != nil {
		return nil, err
	}
	return f, nil
}

// names returns the configured formula names in order.
func (c *config) names() []string {
	out := make([]string, 0, len(c.formulas))
	for name := range c.formulas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
