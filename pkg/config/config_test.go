package config

import (
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"letc/pkg/cpu"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
[output]
symbol_prefix = "_"
parallel = true

[run]
max_steps = 500
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Output.SymbolPrefix != "_" || !cfg.Output.Parallel {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Run.MaxSteps != 500 {
		t.Errorf("max_steps = %d; want 500", cfg.Run.MaxSteps)
	}
	// Absent keys keep their defaults.
	if cfg.Run.StackSize != cpu.DefaultStackSize || cfg.Run.Entry != "main" {
		t.Errorf("run = %+v; defaults lost", cfg.Run)
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte("[output\n"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, FileName)

	cfg, err := Load(missing, true)
	if err != nil {
		t.Fatalf("optional Load of a missing file failed: %v", err)
	}
	if cfg.Run.Entry != "main" {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	if _, err := Load(missing, false); err == nil {
		t.Error("required Load of a missing file should fail")
	}

	cfg.Output.SymbolPrefix = "_"
	cfg.Run.StrictAlignment = true
	if err := cfg.Save(missing); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(missing, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("Load after Save = %+v; want %+v", loaded, cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"none", map[string]string{}, ""},
		{"legacy mac", map[string]string{"OS": "MAC"}, "_"},
		{"legacy other", map[string]string{"OS": "Windows_NT"}, ""},
		{"explicit", map[string]string{"LETC_SYMBOL_PREFIX": "my_"}, "my_"},
		{"explicit empty wins over legacy", map[string]string{"OS": "MAC", "LETC_SYMBOL_PREFIX": ""}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Output.SymbolPrefix = ""
			cfg.ApplyEnv(envFrom(tc.env))
			if cfg.Output.SymbolPrefix != tc.want {
				t.Errorf("prefix = %q; want %q", cfg.Output.SymbolPrefix, tc.want)
			}
			if got := cfg.EntrySymbol(); got != tc.want+"main" {
				t.Errorf("EntrySymbol() = %q", got)
			}
		})
	}
}

func TestDefaultSymbolPrefix(t *testing.T) {
	if DefaultSymbolPrefix("darwin") != "_" {
		t.Error("darwin should use _")
	}
	if DefaultSymbolPrefix("linux") != "" {
		t.Error("linux should use no prefix")
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}

	cfg := Default()
	cfg.Output.SymbolPrefix = "bad prefix"
	cfg.Run.Entry = ""
	cfg.Run.MaxSteps = -1
	cfg.Run.StackSize = 100
	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 4 {
		t.Errorf("expected 4 errors, got %d: %v", got, err)
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Output.Parallel = true
	cfg.Run.StrictAlignment = true
	if !cfg.CompileOptions().Parallel {
		t.Error("CompileOptions lost Parallel")
	}
	opts := cfg.CPUOptions()
	if !opts.StrictAlignment || opts.MaxSteps != cpu.DefaultMaxSteps {
		t.Errorf("CPUOptions() = %+v", opts)
	}
}
