package compiler

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Options controls a whole-program compile.
type Options struct {
	// Parallel compiles functions concurrently. Output and error selection
	// are the same as for a sequential compile.
	Parallel bool
}

// CompiledFunction is the generated code of one function.
type CompiledFunction struct {
	Name  string
	Lines []Line
}

// Program is the generated code of every function, in source order.
type Program struct {
	Functions []CompiledFunction
}

// Compile generates code for every function of root. Functions share no
// state, so each gets its own FunctionCompiler. When several fail, the error
// of the earliest function in the source is returned.
func Compile(root *Root, opts Options) (*Program, error) {
	prog := &Program{Functions: make([]CompiledFunction, len(root.Functions))}
	errs := make([]error, len(root.Functions))

	compileOne := func(i int) {
		fn := root.Functions[i]
		lines, err := NewFunctionCompiler().Compile(fn)
		prog.Functions[i] = CompiledFunction{Name: fn.Name.Name, Lines: lines}
		errs[i] = err
	}

	if opts.Parallel {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range root.Functions {
			i := i
			g.Go(func() error {
				compileOne(i)
				return errs[i]
			})
		}
		if err := g.Wait(); err == nil {
			return prog, nil
		}
	} else {
		for i := range root.Functions {
			compileOne(i)
			if errs[i] != nil {
				break
			}
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// CompileSource runs the whole pipeline on source text.
func CompileSource(src string, opts Options) (*Program, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	root, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	return Compile(root, opts)
}

// Render produces the Intel-syntax assembly text of the program.
func (p *Program) Render(n Naming) string {
	var sb strings.Builder
	sb.WriteString(".intel_syntax noprefix\n")
	for _, fn := range p.Functions {
		sym := n.Symbol(fn.Name)
		fmt.Fprintf(&sb, ".global %s\n", sym)
		fmt.Fprintf(&sb, "%s:\n", sym)
		sb.WriteString(RenderLines(fn.Lines, n))
	}
	return sb.String()
}

// Function returns the compiled function called name.
func (p *Program) Function(name string) (CompiledFunction, bool) {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return CompiledFunction{}, false
}
