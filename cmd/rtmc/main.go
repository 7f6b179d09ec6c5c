// Command rtmc is the RT-Micro-C compiler and VM front end: it drives the
// preprocess -> lex -> parse -> analyze -> layout -> optimize -> codegen ->
// encode pipeline (spec.md §4) and, on request, loads the resulting .vmb
// straight into the VM. Grounded on the teacher's main.go: a single-file
// driver around one core data structure and flag-gated dump/debug modes.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/bytecode"
	"github.com/rtmc-lang/rtmc/internal/codegen"
	"github.com/rtmc-lang/rtmc/internal/diag"
	"github.com/rtmc-lang/rtmc/internal/layout"
	"github.com/rtmc-lang/rtmc/internal/optimizer"
	"github.com/rtmc-lang/rtmc/internal/parser"
	"github.com/rtmc-lang/rtmc/internal/preprocess"
	"github.com/rtmc-lang/rtmc/internal/sema"
	"github.com/rtmc-lang/rtmc/vm"
)

func main() {
	app := &cli.App{
		Name:      "rtmc",
		Usage:     "compile and run RT-Micro-C programs",
		ArgsUsage: "<input.rtmc>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output .vmb path (defaults to input with .vmb extension)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print a compile summary"},
			&cli.BoolFlag{Name: "tokens", Usage: "dump the token stream and exit"},
			&cli.BoolFlag{Name: "ast", Usage: "dump the parsed AST and exit"},
			&cli.BoolFlag{Name: "no-optimize", Usage: "skip the constant-folding/dead-code optimizer pass"},
			&cli.BoolFlag{Name: "no-semantic", Usage: "skip semantic analysis (for inspecting malformed programs)"},
			&cli.BoolFlag{Name: "release", Usage: "strip debug line/column info from emitted bytecode"},
			&cli.BoolFlag{Name: "run", Usage: "run the compiled program in-process instead of only writing it"},
			&cli.BoolFlag{Name: "debug-vm", Usage: "enable verbose VM runtime logging"},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "step the running program through a debug REPL (implies --run)"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one input file", 2)
	}
	inputPath := c.Args().First()

	src, err := preprocess.Run(inputPath)
	if err != nil {
		return errors.Wrapf(err, "preprocessing %s", inputPath)
	}

	if c.Bool("tokens") {
		return dumpTokens(src, inputPath)
	}

	prog, bag := parser.Parse(src, inputPath)
	if bag.HasErrors() {
		return reportAndExit(bag)
	}
	reportWarnings(bag)

	if c.Bool("ast") {
		dumpProgram(prog)
		return nil
	}

	sr := &sema.Result{Structs: map[string]*ast.StructDecl{}, Funcs: map[string]*ast.Function{}}
	if !c.Bool("no-semantic") {
		r, sbag := sema.Analyze(prog)
		if sbag.HasErrors() {
			return reportAndExit(sbag)
		}
		reportWarnings(sbag)
		sr = r
	}

	lt, lbag := layout.Build(sr.Structs)
	if lbag.HasErrors() {
		return reportAndExit(lbag)
	}
	reportWarnings(lbag)

	if !c.Bool("no-optimize") {
		obag := &diag.Bag{}
		optimizer.Optimize(prog, obag)
		reportWarnings(obag)
	}

	mode := bytecode.Debug
	if c.Bool("release") {
		mode = bytecode.Release
	}
	bc, cbag := codegen.Generate(prog, sr, lt, mode)
	if cbag.HasErrors() {
		return reportAndExit(cbag)
	}
	reportWarnings(cbag)

	outPath := c.String("out")
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, ext(inputPath)) + ".vmb"
	}
	if err := bytecode.WriteFile(outPath, bc); err != nil {
		return errors.Wrapf(err, "writing %s", outPath)
	}

	if c.Bool("verbose") {
		printSummary(outPath, bc)
	}

	if c.Bool("interactive") {
		machine := vm.New(bc, vm.WithDebug(c.Bool("debug-vm")))
		runDebugREPL(machine)
	} else if c.Bool("run") {
		machine := vm.New(bc, vm.WithDebug(c.Bool("debug-vm")))
		if err := machine.Run(); err != nil {
			return errors.Wrap(err, "running program")
		}
		for _, t := range machine.Tasks() {
			if t.Err != nil {
				fmt.Fprintf(os.Stderr, "task %s (%d) faulted: %v\n", t.Name, t.ID, t.Err)
			}
		}
	}
	return nil
}

func ext(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return p[i:]
	}
	return ""
}

func reportAndExit(bag *diag.Bag) error {
	for _, d := range bag.Errors() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	return cli.Exit("compilation failed", 1)
}

func reportWarnings(bag *diag.Bag) {
	for _, d := range bag.Warnings() {
		fmt.Fprintln(os.Stderr, d.String())
	}
}

func printSummary(outPath string, bc *bytecode.BytecodeProgram) {
	fmt.Printf("wrote %s\n", outPath)
	fmt.Printf("  functions:    %d\n", len(bc.FunctionOrder))
	fmt.Printf("  symbols:      %d\n", len(bc.SymbolOrder))
	fmt.Printf("  structs:      %d\n", len(bc.Structs))
	fmt.Printf("  constants:    %d\n", len(bc.Constants))
	fmt.Printf("  instructions: %d\n", len(bc.Instructions))
}
