// Package config loads driver settings from letc.toml and the environment.
// The compiler core never reads either; it receives the resolved values.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"letc/pkg/compiler"
	"letc/pkg/cpu"
)

const (
	FileName = "letc.toml"

	// EnvSymbolPrefix overrides the symbol prefix.
	EnvSymbolPrefix = "LETC_SYMBOL_PREFIX"
	// EnvLegacyOS set to MAC selects the "_" prefix.
	EnvLegacyOS = "OS"
)

type Config struct {
	Output Output `toml:"output"`
	Run    Run    `toml:"run"`
}

// Output controls code generation.
type Output struct {
	// SymbolPrefix is prepended to every function symbol.
	SymbolPrefix string `toml:"symbol_prefix"`
	// Parallel compiles functions concurrently.
	Parallel bool `toml:"parallel"`
	// File is the default assembly output path. Empty means stdout.
	File string `toml:"file"`
}

// Run controls the emulator used by -run and letvm.
type Run struct {
	Entry           string `toml:"entry"`
	MaxSteps        int    `toml:"max_steps"`
	StackSize       int    `toml:"stack_size"`
	StrictAlignment bool   `toml:"strict_alignment"`
}

// DefaultSymbolPrefix is "_" on platforms whose C symbols carry a leading
// underscore.
func DefaultSymbolPrefix(goos string) string {
	if goos == "darwin" {
		return "_"
	}
	return ""
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Output: Output{SymbolPrefix: DefaultSymbolPrefix(runtime.GOOS)},
		Run: Run{
			Entry:     "main",
			MaxSteps:  cpu.DefaultMaxSteps,
			StackSize: cpu.DefaultStackSize,
		},
	}
}

// Parse decodes TOML on top of the defaults, so absent keys keep their
// default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at path. A missing file is not an error when
// optional is set; the defaults are returned instead.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Save writes the config as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv applies environment overrides. LETC_SYMBOL_PREFIX wins over the
// legacy OS=MAC switch.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLegacyOS); ok && strings.EqualFold(v, "MAC") {
		c.Output.SymbolPrefix = "_"
	}
	if v, ok := lookup(EnvSymbolPrefix); ok {
		c.Output.SymbolPrefix = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	for _, ch := range c.Output.SymbolPrefix {
		if !(ch == '_' || ch == '.' || ch == '$' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9') {
			err = multierr.Append(err, fmt.Errorf("output.symbol_prefix %q: invalid character %q", c.Output.SymbolPrefix, ch))
			break
		}
	}
	if c.Run.Entry == "" {
		err = multierr.Append(err, errors.New("run.entry must not be empty"))
	}
	if c.Run.MaxSteps < 0 {
		err = multierr.Append(err, fmt.Errorf("run.max_steps must not be negative, got %d", c.Run.MaxSteps))
	}
	if c.Run.StackSize < 0 || c.Run.StackSize%16 != 0 {
		err = multierr.Append(err, fmt.Errorf("run.stack_size must be a non-negative multiple of 16, got %d", c.Run.StackSize))
	}
	return err
}

// Naming is the symbol naming the compiler renders with.
func (c *Config) Naming() compiler.Naming {
	return compiler.Naming{SymbolPrefix: c.Output.SymbolPrefix}
}

// CompileOptions is the compiler configuration.
func (c *Config) CompileOptions() compiler.Options {
	return compiler.Options{Parallel: c.Output.Parallel}
}

// CPUOptions is the emulator configuration.
func (c *Config) CPUOptions() cpu.Options {
	return cpu.Options{
		StackSize:       c.Run.StackSize,
		MaxSteps:        c.Run.MaxSteps,
		StrictAlignment: c.Run.StrictAlignment,
	}
}

// EntrySymbol is the entry function's assembly-level name.
func (c *Config) EntrySymbol() string {
	return c.Naming().Symbol(c.Run.Entry)
}
