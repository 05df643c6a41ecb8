package stacking

import (
	"github.com/raymyers/ralph-mips/pkg/mips"
	"github.com/raymyers/ralph-mips/pkg/regalloc"
)

// call expands a call or callr pseudo instruction:
//  1. Save this function's register-resident arguments to their slots
//  2. Pad the stack so the pushed arguments keep it aligned
//  3. Push arguments 4 and up, last first
//  4. Load $a0-$a3
//  5. jal
//  6. Pop the arguments and padding
//  7. Reload them
//  8. Copy $v0 to the callr destination
func (w *rewriter) call(in mips.Instr) error {
	if x, ok := mips.LookupIntrinsic(in.Target); ok {
		return w.intrinsic(in, x)
	}
	args := in.CallArgs()

	for i := 0; i < w.layout.ArgSlots; i++ {
		if w.argInReg(i) {
			w.emit(mips.Sw(mips.ArgRegs[i], w.layout.Slot(argSlot(i)), mips.FP))
		}
	}

	stackArgs := max(len(args)-mips.NumArgRegs, 0) * mips.WordSize
	pad := alignUp(stackArgs, w.align) - stackArgs
	if pad > 0 {
		w.emit(mips.Addiu(mips.SP, mips.SP, -pad))
	}
	for i := len(args) - 1; i >= mips.NumArgRegs; i-- {
		src, err := w.value(args[i])
		if err != nil {
			return err
		}
		w.emit(
			mips.Addiu(mips.SP, mips.SP, -mips.WordSize),
			mips.Sw(src, 0, mips.SP),
		)
	}

	for i := 0; i < len(args) && i < mips.NumArgRegs; i++ {
		if err := w.loadArg(i, args[i]); err != nil {
			return err
		}
	}

	w.emit(mips.Jal(in.Target))

	if n := stackArgs + pad; n > 0 {
		w.emit(mips.Addiu(mips.SP, mips.SP, n))
	}
	for i := 0; i < w.layout.ArgSlots; i++ {
		if w.argInReg(i) {
			w.emit(mips.Lw(mips.ArgRegs[i], w.layout.Slot(argSlot(i)), mips.FP))
		}
	}
	w.forget()

	if in.Op != mips.OpCallr {
		return nil
	}
	return w.result(in.Regs[0])
}

// result copies $v0 to the destination of a callr.
func (w *rewriter) result(dst mips.Reg) error {
	if !dst.IsVirtual() {
		if dst != mips.V0 {
			w.emit(mips.Move(dst, mips.V0))
		}
		return nil
	}
	loc, err := w.loc(dst)
	if err != nil {
		return err
	}
	if p, ok := loc.(regalloc.R); ok {
		w.emit(mips.Move(p.Reg, mips.V0))
		return nil
	}
	return w.store(mips.V0, dst)
}

// loadArg moves the value of src into $a<i>. Argument registers below i
// have already been overwritten, so their values come from the slots
// saved in step 1. A register the function does not keep an argument in
// has no saved copy.
func (w *rewriter) loadArg(i int, src mips.Reg) error {
	dst := mips.ArgRegs[i]

	reg := src
	if src.IsVirtual() {
		loc, err := w.loc(src)
		if err != nil {
			return err
		}
		p, ok := loc.(regalloc.R)
		if !ok {
			off, err := w.home(src)
			if err != nil {
				return err
			}
			w.emit(mips.Lw(dst, off, mips.FP))
			return nil
		}
		reg = p.Reg
	}

	j := argIndex(reg)
	switch {
	case reg == dst:
	case j < 0 || j > i:
		w.emit(mips.Move(dst, reg))
	case j < w.layout.ArgSlots && w.argInReg(j):
		w.emit(mips.Lw(dst, w.layout.Slot(argSlot(j)), mips.FP))
	default:
		return w.fail("argument %d reads %v after it was overwritten", i, reg)
	}
	return nil
}

// argInReg reports whether argument i of the function is kept in $a<i>.
func (w *rewriter) argInReg(i int) bool {
	if i >= len(w.fn.Args) {
		return false
	}
	p, ok := w.m.Phys(w.fn.Args[i])
	return ok && p == mips.ArgRegs[i]
}

func argIndex(r mips.Reg) int {
	for i, a := range mips.ArgRegs {
		if a == r {
			return i
		}
	}
	return -1
}
