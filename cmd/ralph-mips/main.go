package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/raymyers/ralph-mips/pkg/backend"
	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/config"
	"github.com/raymyers/ralph-mips/pkg/mips"
	"github.com/raymyers/ralph-mips/pkg/mips/sim"
	"github.com/raymyers/ralph-mips/pkg/selection"
	"github.com/raymyers/ralph-mips/pkg/tigerir"
	"github.com/raymyers/ralph-mips/pkg/vasm"
)

var version = "0.1.0"

// flags holds everything the root command reads besides the config flags.
type flags struct {
	configPath string
	output     string
	dSel       bool
	dCFG       bool
	dRegalloc  bool
	run        bool
	verbose    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "ralph-mips [file.vasm | file.ir]",
		Short: "ralph-mips allocates registers and lays out frames for MIPS",
		Long: `ralph-mips reads functions written against an unbounded set of
virtual registers and emits MARS-compatible MIPS assembly: registers
allocated, spills materialized, prologues and epilogues generated.
Files ending in .ir are read as Tiger IR and instruction-selected first.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			err := compileFile(cmd, args[0], &f, out)
			if err != nil {
				fmt.Fprintf(errOut, "ralph-mips: %v\n", err)
			}
			return err
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	fs := rootCmd.Flags()
	config.BindFlags(fs)
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVarP(&f.output, "output", "o", "", "write assembly to this file instead of stdout")
	fs.BoolVar(&f.dSel, "dsel", false, "Dump the selected virtual assembly")
	fs.BoolVar(&f.dCFG, "dcfg", false, "Dump basic blocks and edges")
	fs.BoolVar(&f.dRegalloc, "dregalloc", false, "Dump live ranges and register maps")
	fs.BoolVar(&f.run, "run", false, "Run the compiled program on the built-in simulator")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Trace compiler passes to stderr")

	return rootCmd
}

// resolveConfig layers the config file, environment and flags over the
// defaults.
func resolveConfig(cmd *cobra.Command, f *flags) (backend.Options, error) {
	c := config.Default()
	if f.configPath != "" {
		if err := c.Load(f.configPath); err != nil {
			return backend.Options{}, err
		}
	}
	c.ApplyEnv()
	if err := c.ApplyFlags(cmd.Flags()); err != nil {
		return backend.Options{}, err
	}
	return c.Options()
}

func compileFile(cmd *cobra.Command, filename string, f *flags, out io.Writer) error {
	opts, err := resolveConfig(cmd, f)
	if err != nil {
		return err
	}

	prog, err := readProgram(filename)
	if err != nil {
		return err
	}

	if f.dSel {
		pr := mips.NewPrinter(out)
		for i := range prog.Functions {
			pr.PrintSource(&prog.Functions[i])
		}
		return nil
	}
	if f.dCFG {
		return dumpCFG(prog, out)
	}

	ctx := context.Background()
	if f.verbose {
		ctx = tlog.ContextWithSpan(ctx, tlog.Root())
	}

	p, err := backend.Compile(ctx, prog, opts)
	if err != nil {
		return err
	}

	switch {
	case f.dRegalloc:
		for _, fn := range p.Funcs {
			fmt.Fprint(out, fn.Alloc.String())
		}
		return nil
	case f.run:
		m, err := sim.New(p.Code(), out)
		if err != nil {
			return err
		}
		m.SetInput(cmd.InOrStdin())
		if err := m.Run(ctx, p.Entry); err != nil {
			return err
		}
		return nil
	}

	if f.output == "" {
		p.Print(out)
		return nil
	}

	outFile, err := os.Create(f.output)
	if err != nil {
		return err
	}
	p.Print(outFile)
	if err := outFile.Close(); err != nil {
		return errors.Wrap(err, "close %v", f.output)
	}
	return nil
}

// readProgram reads virtual assembly, or Tiger IR when the file name
// ends in .ir.
func readProgram(filename string) (*mips.Program, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	if filepath.Ext(filename) != ".ir" {
		prog, err := vasm.Parse(string(src))
		if err != nil {
			return nil, errors.Wrap(err, "%v", filename)
		}
		return prog, nil
	}

	ir, err := tigerir.Parse(string(src))
	if err != nil {
		return nil, errors.Wrap(err, "%v", filename)
	}
	prog, err := selection.SelectProgram(ir)
	if err != nil {
		return nil, errors.Wrap(err, "%v", filename)
	}
	return prog, nil
}

// dumpCFG prints the blocks of every function without allocating.
func dumpCFG(prog *mips.Program, out io.Writer) error {
	for _, fn := range prog.Functions {
		g, err := cfg.Build(fn.Body)
		if err != nil {
			return errors.Wrap(err, "func %v", fn.Name)
		}
		fmt.Fprintf(out, "func %s\n%s", fn.Name, g)
	}
	return nil
}
