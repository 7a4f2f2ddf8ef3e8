// Command letvm assembles an Intel-syntax .s file and runs one of its
// functions on the emulator.
//
//	letvm prog.s
//	letvm -entry add prog.s 2 3
//
// The exit status is 3 when the program finished but made a call with a
// misaligned stack.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"letc/pkg/asm"
	"letc/pkg/config"
	"letc/pkg/cpu"
	"letc/pkg/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("letvm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config `file` (default: letc.toml next to the input, if present)")
	entry := fs.String("entry", "", "function to call (default: run.entry from the config)")
	strict := fs.Bool("strict", false, "fail on a call with a misaligned stack")
	maxSteps := fs.Int("max-steps", 0, "instruction limit (default: run.max_steps from the config)")
	state := fs.Bool("state", false, "print the final machine state as JSON")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: letvm [flags] file.s [args...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	logger, err := utils.NewLogger(*verbose)
	if err != nil {
		fmt.Fprintln(stderr, "failed to create logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	inPath := fs.Arg(0)
	callArgs, err := parseArgs(fs.Args()[1:])
	if err != nil {
		logger.Error("invalid argument", zap.Error(err))
		return 2
	}

	text, dir, err := utils.ReadSource(inPath)
	if err != nil {
		logger.Error("failed to read input", zap.Error(err))
		return 1
	}

	var cfg *config.Config
	if *configPath != "" {
		cfg, err = config.Load(*configPath, false)
	} else {
		cfg, err = config.Load(filepath.Join(dir, config.FileName), true)
	}
	if err == nil {
		cfg.ApplyEnv(os.LookupEnv)
		err = cfg.Validate()
	}
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}
	if *entry != "" {
		cfg.Run.Entry = *entry
	}
	if *strict {
		cfg.Run.StrictAlignment = true
	}
	if *maxSteps > 0 {
		cfg.Run.MaxSteps = *maxSteps
	}

	prog, err := asm.Assemble(text)
	if err != nil {
		logger.Error("assembly failed", zap.String("file", inPath), zap.Error(err))
		return 1
	}
	logger.Debug("assembled",
		zap.Int("instructions", len(prog.Instructions)),
		zap.Strings("globals", prog.Globals))

	vm := cpu.New(prog, cfg.CPUOptions())
	result, err := vm.Run(cfg.EntrySymbol(), callArgs...)
	for _, f := range vm.Faults {
		logger.Warn("call with misaligned stack",
			zap.String("target", f.Target),
			zap.Int("line", f.Line),
			zap.Uint64("rsp", f.RSP))
	}
	if err != nil {
		logger.Error("execution failed", zap.Error(err))
		return 1
	}
	logger.Debug("executed", zap.Int("steps", vm.Steps))
	fmt.Fprintln(stdout, result)

	if *state {
		data, err := vm.MarshalState()
		if err != nil {
			logger.Error("failed to encode machine state", zap.Error(err))
			return 1
		}
		fmt.Fprintln(stdout, string(data))
	}
	if len(vm.Faults) > 0 {
		return 3
	}
	return 0
}

func parseArgs(raw []string) ([]int64, error) {
	if len(raw) > len(cpu.ArgRegs) {
		return nil, fmt.Errorf("%d arguments, at most %d are supported", len(raw), len(cpu.ArgRegs))
	}
	args := make([]int64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args[i] = v
	}
	return args, nil
}
