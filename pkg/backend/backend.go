// Package backend drives the per-function pipeline: control-flow graph,
// liveness, register allocation and frame materialization.
package backend

import (
	"context"
	"io"
	"sync"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/mips"
	"github.com/raymyers/ralph-mips/pkg/regalloc"
	"github.com/raymyers/ralph-mips/pkg/stacking"
)

// Options configure a compilation.
type Options struct {
	Strategy   regalloc.Strategy
	UseSaved   bool // add $s0-$s7 to the allocatable pool
	Optimize   bool
	Entry      string
	StackAlign int
	Parallel   bool // compile functions concurrently
}

// DefaultOptions returns the options the CLI starts from.
func DefaultOptions() Options {
	return Options{
		Strategy:   regalloc.Local,
		Entry:      stacking.DefaultEntry,
		StackAlign: stacking.DefaultStackAlign,
	}
}

// Func is everything produced for one function.
type Func struct {
	Source *mips.Function
	Graph  *cfg.Graph
	Alloc  *regalloc.Result
	Out    *stacking.Function
}

// Program is a compiled program, functions in source order.
type Program struct {
	Entry string
	Funcs []*Func
}

// Compile lowers every function of prog. Results and the first error are
// reported in source order whether or not functions run concurrently.
func Compile(ctx context.Context, prog *mips.Program, opts Options) (_ *Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "backend: compile program", "funcs", len(prog.Functions), "allocator", opts.Strategy, "parallel", opts.Parallel)
	defer tr.Finish("err", &err)

	if opts.Entry == "" {
		opts.Entry = stacking.DefaultEntry
	}

	funcs := make([]*Func, len(prog.Functions))
	errs := make([]error, len(prog.Functions))

	if opts.Parallel {
		var wg sync.WaitGroup
		for i := range prog.Functions {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				funcs[i], errs[i] = CompileFunc(ctx, &prog.Functions[i], opts)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range prog.Functions {
			funcs[i], errs[i] = CompileFunc(ctx, &prog.Functions[i], opts)
			if errs[i] != nil {
				break
			}
		}
	}

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrap(err, "func %v", prog.Functions[i].Name)
		}
	}

	return &Program{Entry: opts.Entry, Funcs: funcs}, nil
}

// CompileFunc lowers a single function.
func CompileFunc(ctx context.Context, fn *mips.Function, opts Options) (_ *Func, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "func", "name", fn.Name, "args", len(fn.Args), "instrs", len(fn.Body))
	defer tr.Finish("err", &err)

	if opts.Entry == "" {
		opts.Entry = stacking.DefaultEntry
	}

	if err := fn.Validate(); err != nil {
		return nil, err
	}

	g, err := cfg.Build(fn.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cfg")
	}
	tr.Printw("cfg", "blocks", len(g.Blocks))

	pool := regalloc.DefaultPool(opts.UseSaved)
	res, err := regalloc.NewAllocator(opts.Strategy, pool).Allocate(fn, g)
	if err != nil {
		return nil, err
	}
	tr.Printw("allocated", "units", len(res.Units), "spills", res.SpillCount())

	if tr.If("dump_alloc") {
		for _, u := range res.Units {
			tr.Printw("unit", "leader", u.Leader(), "order", u.Order, "map", u.Map.String())
		}
	}

	out, err := stacking.Transform(fn, res, stacking.Options{
		Entry:      opts.Entry,
		Scratch:    pool.Scratch,
		Optimize:   opts.Optimize,
		StackAlign: opts.StackAlign,
	})
	if err != nil {
		return nil, err
	}
	tr.Printw("frame", "size", out.Frame.TotalSize, "working", out.Frame.Working, "saved", out.Frame.Saved, "padding", out.Frame.Padding)

	return &Func{Source: fn, Graph: g, Alloc: res, Out: out}, nil
}

// ordered returns the functions with the entry first.
func (p *Program) ordered() []*Func {
	out := make([]*Func, 0, len(p.Funcs))
	for _, f := range p.Funcs {
		if f.Out.Name == p.Entry {
			out = append(out, f)
		}
	}
	for _, f := range p.Funcs {
		if f.Out.Name != p.Entry {
			out = append(out, f)
		}
	}
	return out
}

// Print writes the program as MARS assembly, entry function first.
func (p *Program) Print(w io.Writer) {
	pr := mips.NewPrinter(w)
	pr.PrintHeader(p.Entry)
	for _, f := range p.ordered() {
		pr.PrintFunction(f.Out.Name, f.Out.Sections()...)
	}
}

// Code returns the whole program as one instruction stream, each function
// introduced by its label, entry function first.
func (p *Program) Code() []mips.Instr {
	var code []mips.Instr
	for _, f := range p.ordered() {
		code = append(code, mips.Label(f.Out.Name))
		code = append(code, f.Out.Code()...)
	}
	return code
}
