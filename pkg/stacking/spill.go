package stacking

import (
	"fmt"

	"github.com/raymyers/ralph-mips/pkg/cfg"
	"github.com/raymyers/ralph-mips/pkg/liveness"
	"github.com/raymyers/ralph-mips/pkg/mips"
	"github.com/raymyers/ralph-mips/pkg/regalloc"
)

// rewriter emits a function body with every virtual register replaced by
// its machine register, or shuttled through a scratch register when it is
// spilled.
type rewriter struct {
	fn       *mips.Function
	layout   *FrameLayout
	scratch  []mips.Reg
	optimize bool
	align    int

	leader int
	m      regalloc.RegMap

	// holds maps a scratch register to the virtual register whose home
	// value it still carries. Only consulted when optimize is set.
	holds map[mips.Reg]mips.Reg

	out []mips.Instr
}

func (w *rewriter) emit(ins ...mips.Instr) {
	w.out = append(w.out, ins...)
}

func (w *rewriter) fail(format string, args ...any) error {
	return &regalloc.AllocationError{Func: w.fn.Name, Block: w.leader, Reason: fmt.Sprintf(format, args...)}
}

func (w *rewriter) home(r mips.Reg) (int, error) {
	off, err := w.layout.Home(w.fn, r)
	if err != nil {
		return 0, w.fail("%v", err)
	}
	return off, nil
}

func (w *rewriter) isScratch(r mips.Reg) bool {
	for _, s := range w.scratch {
		if s == r {
			return true
		}
	}
	return false
}

// forget drops everything known about scratch contents.
func (w *rewriter) forget() {
	clear(w.holds)
}

// load brings r's home value into scratch register s.
func (w *rewriter) load(s, r mips.Reg) error {
	if w.optimize && w.holds[s] == r {
		return nil
	}
	off, err := w.home(r)
	if err != nil {
		return err
	}
	w.emit(mips.Lw(s, off, mips.FP))
	w.holds[s] = r
	return nil
}

// store writes src to r's home.
func (w *rewriter) store(src, r mips.Reg) error {
	off, err := w.home(r)
	if err != nil {
		return err
	}
	w.emit(mips.Sw(src, off, mips.FP))
	for s, v := range w.holds {
		if v == r && s != src {
			delete(w.holds, s)
		}
	}
	if w.isScratch(src) {
		w.holds[src] = r
	}
	return nil
}

// loc returns where virtual register r lives in the current unit.
func (w *rewriter) loc(r mips.Reg) (regalloc.Loc, error) {
	loc, ok := w.m[r]
	if !ok {
		return nil, w.fail("%v has no location", r)
	}
	return loc, nil
}

// assignScratch gives each distinct spilled register of in its own scratch
// register, avoiding every machine register the rewritten instruction
// names.
func (w *rewriter) assignScratch(in mips.Instr) (map[mips.Reg]mips.Reg, error) {
	named := make(map[mips.Reg]bool)
	var spilled []mips.Reg
	seen := make(map[mips.Reg]bool)
	for _, r := range in.Regs {
		if !r.IsVirtual() {
			named[r] = true
			continue
		}
		loc, err := w.loc(r)
		if err != nil {
			return nil, err
		}
		switch loc := loc.(type) {
		case regalloc.R:
			named[loc.Reg] = true
		case regalloc.Spill:
			if !seen[r] {
				seen[r] = true
				spilled = append(spilled, r)
			}
		}
	}
	if len(spilled) == 0 {
		return nil, nil
	}

	var free []mips.Reg
	for _, s := range w.scratch {
		if !named[s] {
			free = append(free, s)
		}
	}
	if len(spilled) > len(free) {
		return nil, w.fail("%q needs %d scratch registers, %d available", in.String(), len(spilled), len(free))
	}

	assign := make(map[mips.Reg]mips.Reg, len(spilled))
	taken := make(map[mips.Reg]bool)
	if w.optimize {
		for _, r := range spilled {
			for _, s := range free {
				if !taken[s] && w.holds[s] == r {
					assign[r] = s
					taken[s] = true
					break
				}
			}
		}
	}
	for _, r := range spilled {
		if _, ok := assign[r]; ok {
			continue
		}
		for _, s := range free {
			if !taken[s] {
				assign[r] = s
				taken[s] = true
				break
			}
		}
	}
	return assign, nil
}

// value returns a register holding virtual or physical register r,
// loading spilled values into the first scratch register.
func (w *rewriter) value(r mips.Reg) (mips.Reg, error) {
	if !r.IsVirtual() {
		return r, nil
	}
	loc, err := w.loc(r)
	if err != nil {
		return "", err
	}
	if p, ok := loc.(regalloc.R); ok {
		return p.Reg, nil
	}
	if len(w.scratch) == 0 {
		return "", w.fail("no scratch register for %v", r)
	}
	s := w.scratch[0]
	return s, w.load(s, r)
}

// rewrite emits one body instruction.
func (w *rewriter) rewrite(in mips.Instr) error {
	switch {
	case in.Op == mips.OpLabel:
		w.emit(mips.Label(LocalLabel(w.fn.Name, in.Target)))
		w.forget()
		return nil
	case in.Op == mips.OpCall || in.Op == mips.OpCallr:
		return w.call(in)
	case in.Op == mips.OpReturn:
		return w.ret(in)
	case in.Op == mips.OpJr && len(in.Regs) == 1 && in.Regs[0] == mips.RA:
		w.emit(mips.J(EpilogueLabel(w.fn.Name)))
		return nil
	}

	assign, err := w.assignScratch(in)
	if err != nil {
		return err
	}

	regs := make([]mips.Reg, len(in.Regs))
	for i, r := range in.Regs {
		switch {
		case !r.IsVirtual():
			regs[i] = r
		case assign[r] != "":
			regs[i] = assign[r]
		default:
			regs[i], _ = w.m.Phys(r)
		}
	}

	loaded := make(map[mips.Reg]bool)
	for _, r := range in.Uses() {
		if s := assign[r]; s != "" && !loaded[r] {
			loaded[r] = true
			if err := w.load(s, r); err != nil {
				return err
			}
		}
	}

	out := in.WithRegs(regs)
	if out.Op.ResolvesTarget() {
		out.Target = LocalLabel(w.fn.Name, in.Target)
	}
	w.emit(out)

	for _, d := range out.Defs() {
		delete(w.holds, d)
	}
	for _, r := range in.Defs() {
		if s := assign[r]; s != "" {
			if err := w.store(s, r); err != nil {
				return err
			}
		}
	}

	if out.Op.IsLink() || out.Op == mips.OpSyscall {
		w.forget()
	}
	return nil
}

// ret replaces a return with a move to $v0 and a jump to the epilogue.
func (w *rewriter) ret(in mips.Instr) error {
	if len(in.Regs) == 1 {
		src, err := w.value(in.Regs[0])
		if err != nil {
			return err
		}
		if src != mips.V0 {
			w.emit(mips.Move(mips.V0, src))
		}
	}
	w.emit(mips.J(EpilogueLabel(w.fn.Name)))
	return nil
}

// entryLoads fills the machine registers of values the block reads before
// writing them.
func (w *rewriter) entryLoads(live liveness.RegSet) error {
	for _, r := range live.Slice() {
		p, ok := w.m.Phys(r)
		if !ok {
			continue
		}
		off, err := w.home(r)
		if err != nil {
			return err
		}
		w.emit(mips.Lw(p, off, mips.FP))
		delete(w.holds, p)
	}
	return nil
}

// exitStores writes register-resident values that later blocks read back
// to their homes. skip is left alone.
func (w *rewriter) exitStores(live liveness.RegSet, skip mips.Reg) error {
	for _, r := range live.Slice() {
		if r == skip {
			continue
		}
		p, ok := w.m.Phys(r)
		if !ok {
			continue
		}
		if err := w.store(p, r); err != nil {
			return err
		}
	}
	return nil
}

// block emits the rewritten code of b under unit u.
func (w *rewriter) block(b *cfg.Block, u *regalloc.Unit, perBlock bool) error {
	w.leader = b.Leader
	w.m = u.Map
	w.forget()

	instrs := b.Instrs
	if instrs[0].Op == mips.OpLabel {
		if err := w.rewrite(instrs[0]); err != nil {
			return err
		}
		instrs = instrs[1:]
	}
	if perBlock {
		if err := w.entryLoads(u.EntryLive); err != nil {
			return err
		}
	}

	term, hasTerm := b.Terminator()
	if hasTerm && len(instrs) > 0 {
		instrs = instrs[:len(instrs)-1]
	} else {
		hasTerm = false
	}
	for _, in := range instrs {
		if err := w.rewrite(in); err != nil {
			return err
		}
	}

	if !perBlock {
		if hasTerm {
			return w.rewrite(term)
		}
		return nil
	}

	if !hasTerm {
		return w.exitStores(u.ExitLive, "")
	}
	if !term.Op.IsReturn() {
		var skip mips.Reg
		if term.Op == mips.OpCallr {
			skip = term.Regs[0]
		}
		if err := w.exitStores(u.ExitLive, skip); err != nil {
			return err
		}
	}
	if err := w.rewrite(term); err != nil {
		return err
	}
	if term.Op == mips.OpCallr && u.ExitLive.Contains(term.Regs[0]) {
		if p, ok := w.m.Phys(term.Regs[0]); ok {
			return w.store(p, term.Regs[0])
		}
	}
	return nil
}
