// Command letc compiles a program to x86-64 assembly.
//
//	letc 'func main() 1 + 2'
//	letc -f prog.let -o prog.s
//	letc -f prog.let -run
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sanity-io/litter"
	"go.uber.org/zap"

	"letc/pkg/asm"
	"letc/pkg/compiler"
	"letc/pkg/config"
	"letc/pkg/cpu"
	"letc/pkg/diag"
	"letc/pkg/utils"
)

type options struct {
	file        string
	out         string
	configPath  string
	writeConfig string
	tokens      bool
	ast         bool
	run         bool
	state       bool
	parallel    bool
	verbose     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("letc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.file, "f", "", "read the program from `file` instead of the first argument")
	fs.StringVar(&opts.out, "o", "", "write assembly to `file` (default: stdout, or output.file from the config)")
	fs.StringVar(&opts.configPath, "config", "", "config `file` (default: letc.toml next to the source, if present)")
	fs.StringVar(&opts.writeConfig, "write-config", "", "write the effective config to `file` and exit")
	fs.BoolVar(&opts.tokens, "tokens", false, "print the token stream")
	fs.BoolVar(&opts.ast, "ast", false, "print the syntax tree")
	fs.BoolVar(&opts.run, "run", false, "assemble and execute on the emulator, printing main's result")
	fs.BoolVar(&opts.state, "state", false, "with -run, print the final machine state as JSON")
	fs.BoolVar(&opts.parallel, "parallel", false, "compile functions concurrently")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := utils.NewLogger(opts.verbose)
	if err != nil {
		fmt.Fprintln(stderr, "failed to create logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if opts.writeConfig != "" {
		return writeConfig(opts, logger)
	}

	src, dir, err := loadSource(opts, fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(opts, dir)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}
	if opts.parallel {
		cfg.Output.Parallel = true
	}
	logger.Debug("configuration",
		zap.String("symbol_prefix", cfg.Output.SymbolPrefix),
		zap.Bool("parallel", cfg.Output.Parallel))

	text, ok := compile(src, cfg, opts, stdout, stderr, logger)
	if !ok {
		return 1
	}

	if opts.run {
		return execute(text, cfg, opts, stdout, logger)
	}

	out := opts.out
	if out == "" {
		out = cfg.Output.File
	}
	if err := utils.WriteOutput(out, text); err != nil {
		logger.Error("failed to write assembly", zap.Error(err))
		return 1
	}
	if out != "" && out != "-" {
		logger.Info("assembly written", zap.String("path", out), zap.Int("bytes", len(text)))
	}
	return 0
}

// loadSource returns the program text and the directory to look for a
// config file in.
func loadSource(opts options, positional []string) (string, string, error) {
	switch {
	case opts.file != "" && len(positional) > 0:
		return "", "", fmt.Errorf("give the program either with -f or as an argument, not both")
	case opts.file != "":
		return utils.ReadSource(opts.file)
	case len(positional) == 1:
		return positional[0], ".", nil
	case len(positional) > 1:
		return "", "", fmt.Errorf("expected one program argument, got %d", len(positional))
	}
	return "", "", fmt.Errorf("no program given")
}

func loadConfig(opts options, dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath, false)
	} else {
		cfg, err = config.Load(filepath.Join(dir, config.FileName), true)
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeConfig saves the configuration letc would use in the current
// directory, flags applied.
func writeConfig(opts options, logger *zap.Logger) int {
	cfg, err := loadConfig(opts, ".")
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}
	if opts.parallel {
		cfg.Output.Parallel = true
	}
	if err := cfg.Save(opts.writeConfig); err != nil {
		logger.Error("failed to write config", zap.Error(err))
		return 1
	}
	logger.Info("config written", zap.String("path", opts.writeConfig))
	return 0
}

// compile runs the pipeline, printing the requested intermediate dumps.
// Failures are rendered against the source on stderr.
func compile(src string, cfg *config.Config, opts options, stdout, stderr io.Writer, logger *zap.Logger) (string, bool) {
	fail := func(stage string, err error) (string, bool) {
		logger.Debug(stage+" failed", zap.Error(err))
		fmt.Fprint(stderr, diag.FromError(src, err))
		return "", false
	}

	tokens, err := compiler.Tokenize(src)
	if err != nil {
		return fail("lexing", err)
	}
	logger.Debug("lexed", zap.Int("tokens", len(tokens)))
	if opts.tokens {
		for _, tok := range tokens {
			fmt.Fprintln(stdout, tok)
		}
	}

	root, err := compiler.Parse(tokens)
	if err != nil {
		return fail("parsing", err)
	}
	logger.Debug("parsed", zap.Int("functions", len(root.Functions)))
	if opts.ast {
		fmt.Fprintln(stdout, litter.Options{StripPackageNames: true, HidePrivateFields: true}.Sdump(root))
	}

	prog, err := compiler.Compile(root, cfg.CompileOptions())
	if err != nil {
		return fail("code generation", err)
	}
	return prog.Render(cfg.Naming()), true
}

func execute(text string, cfg *config.Config, opts options, stdout io.Writer, logger *zap.Logger) int {
	prog, err := asm.Assemble(text)
	if err != nil {
		logger.Error("assembly failed", zap.Error(err))
		return 1
	}
	vm := cpu.New(prog, cfg.CPUOptions())
	result, err := vm.Run(cfg.EntrySymbol())
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

	if opts.state {
		data, err := vm.MarshalState()
		if err != nil {
			logger.Error("failed to encode machine state", zap.Error(err))
			return 1
		}
		fmt.Fprintln(stdout, string(data))
	}
	return 0
}
