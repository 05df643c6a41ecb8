package stacking

import (
	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/mips"
	"github.com/raymyers/ralph-mips/pkg/regalloc"
)

// DefaultEntry is the function that ends the program instead of returning.
const DefaultEntry = "main"

// Options control how a function is materialized.
type Options struct {
	Entry      string     // defaults to DefaultEntry
	Scratch    []mips.Reg // registers reserved for spilled values
	Optimize   bool       // skip reloads of values a scratch register still holds
	StackAlign int        // defaults to DefaultStackAlign
}

// Function is a fully materialized function, ready to print.
type Function struct {
	Name     string
	Prologue []mips.Instr
	Body     []mips.Instr
	Epilogue []mips.Instr
	Return   []mips.Instr
	Frame    *FrameLayout
}

// Sections returns the function's code in emission order.
func (f *Function) Sections() [][]mips.Instr {
	return [][]mips.Instr{f.Prologue, f.Body, f.Epilogue, f.Return}
}

// Code returns all of the function's instructions.
func (f *Function) Code() []mips.Instr {
	var code []mips.Instr
	for _, s := range f.Sections() {
		code = append(code, s...)
	}
	return code
}

// Transform rewrites an allocated function into frame-pointer-relative
// machine code. Every unit of res must be assigned; each is materialized
// as its code is emitted.
func Transform(fn *mips.Function, res *regalloc.Result, opts Options) (*Function, error) {
	if opts.Entry == "" {
		opts.Entry = DefaultEntry
	}
	if opts.StackAlign == 0 {
		opts.StackAlign = DefaultStackAlign
	}
	t := &transformer{fn: fn, res: res, opts: opts}
	return t.transform()
}

// transformer holds state during the rewrite of one function
type transformer struct {
	fn     *mips.Function
	res    *regalloc.Result
	opts   Options
	layout *FrameLayout
}

func (t *transformer) transform() (*Function, error) {
	entry := t.fn.Name == t.opts.Entry

	// 1. Reserve the saved $fp, argument slots, arrays and homes
	layout, err := ComputeLayout(t.fn)
	if err != nil {
		return nil, errors.Wrap(err, "layout %v", t.fn.Name)
	}
	t.layout = layout

	// 2. Rewrite the body
	body, err := t.rewriteBody()
	if err != nil {
		return nil, err
	}

	// 3. Pick the registers that compute array base addresses
	arrayRegs, err := t.arrayRegs()
	if err != nil {
		return nil, err
	}

	// 4. Reserve the save area for every register the code writes
	var extra []mips.Reg
	for _, a := range t.fn.Arrays {
		extra = append(extra, arrayRegs[a.Name])
	}
	working, saved := WrittenRegs(body, extra...)
	if err := layout.Finish(working, saved, !entry, t.opts.StackAlign); err != nil {
		return nil, errors.Wrap(err, "layout %v", t.fn.Name)
	}

	// 5. Generate prologue, epilogue and return
	prologue, err := GeneratePrologue(layout, t.fn, arrayRegs)
	if err != nil {
		return nil, errors.Wrap(err, "prologue %v", t.fn.Name)
	}

	return &Function{
		Name:     t.fn.Name,
		Prologue: prologue,
		Body:     body,
		Epilogue: GenerateEpilogue(layout, t.fn.Name),
		Return:   GenerateReturn(entry),
		Frame:    layout,
	}, nil
}

func (t *transformer) rewriteBody() ([]mips.Instr, error) {
	w := &rewriter{
		fn:       t.fn,
		layout:   t.layout,
		scratch:  t.opts.Scratch,
		optimize: t.opts.Optimize,
		align:    t.opts.StackAlign,
		holds:    make(map[mips.Reg]mips.Reg),
	}
	perBlock := t.res.Strategy.PerBlock()

	for _, b := range t.res.Graph.Blocks {
		u := t.res.UnitFor(b.Leader)
		if u == nil {
			return nil, &regalloc.AllocationError{Func: t.fn.Name, Block: b.Leader, Reason: "no allocation unit"}
		}
		if err := w.block(b, u, perBlock); err != nil {
			return nil, err
		}
		if perBlock {
			if err := u.Materialize(); err != nil {
				return nil, &regalloc.AllocationError{Func: t.fn.Name, Block: b.Leader, Reason: err.Error()}
			}
		}
	}
	if !perBlock {
		for _, u := range t.res.Units {
			if err := u.Materialize(); err != nil {
				return nil, &regalloc.AllocationError{Func: t.fn.Name, Block: -1, Reason: err.Error()}
			}
		}
	}

	return w.out, nil
}

// arrayRegs uses an array's machine register when a function-wide unit
// keeps it in one, and the first scratch register otherwise.
func (t *transformer) arrayRegs() (map[mips.Reg]mips.Reg, error) {
	regs := make(map[mips.Reg]mips.Reg, len(t.fn.Arrays))
	for _, a := range t.fn.Arrays {
		if !t.res.Strategy.PerBlock() && len(t.res.Units) == 1 {
			if p, ok := t.res.Units[0].Map.Phys(a.Name); ok {
				regs[a.Name] = p
				continue
			}
		}
		if len(t.opts.Scratch) == 0 {
			return nil, &regalloc.AllocationError{Func: t.fn.Name, Block: -1, Reason: "no scratch register for array " + string(a.Name)}
		}
		regs[a.Name] = t.opts.Scratch[0]
	}
	return regs, nil
}
