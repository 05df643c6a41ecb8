package stacking

import (
	"github.com/raymyers/ralph-mips/pkg/mips"
	"github.com/raymyers/ralph-mips/pkg/regalloc"
)

// intrinsic lowers a call to a built-in routine to its system call.
// $a0 and $v0 keep their values across it, except a register that
// receives the result.
//
//	addiu $sp, $sp, -8
//	sw    $a0, 0($sp)
//	sw    $v0, 4($sp)
//	move  $a0, x
//	li    $v0, 1
//	syscall
//	lw    $v0, 4($sp)
//	lw    $a0, 0($sp)
//	addiu $sp, $sp, 8
func (w *rewriter) intrinsic(in mips.Instr, x mips.Intrinsic) error {
	var dst, dstReg mips.Reg
	if in.Op == mips.OpCallr {
		dst = in.Regs[0]
		dstReg = dst
		if dst.IsVirtual() {
			dstReg, _ = w.m.Phys(dst)
		}
	}

	var save []mips.Reg
	if x.Args > 0 && dstReg != mips.A0 {
		save = append(save, mips.A0)
	}
	if dstReg != mips.V0 {
		save = append(save, mips.V0)
	}
	size := alignUp(len(save)*mips.WordSize, w.align)
	if size > 0 {
		w.emit(mips.Addiu(mips.SP, mips.SP, -size))
	}
	for i, r := range save {
		w.emit(mips.Sw(r, i*mips.WordSize, mips.SP))
	}

	if x.Args > 0 {
		if err := w.intrinsicArg(in.CallArgs()[0]); err != nil {
			return err
		}
	}
	w.emit(mips.Li(mips.V0, x.Syscall), mips.Syscall())
	if dst != "" {
		if err := w.result(dst); err != nil {
			return err
		}
	}

	for i := len(save) - 1; i >= 0; i-- {
		w.emit(mips.Lw(save[i], i*mips.WordSize, mips.SP))
	}
	if size > 0 {
		w.emit(mips.Addiu(mips.SP, mips.SP, size))
	}
	return nil
}

// intrinsicArg puts the value of src in $a0. Spilled values load straight
// from their homes.
func (w *rewriter) intrinsicArg(src mips.Reg) error {
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
			w.emit(mips.Lw(mips.A0, off, mips.FP))
			return nil
		}
		reg = p.Reg
	}
	if reg != mips.A0 {
		w.emit(mips.Move(mips.A0, reg))
	}
	return nil
}
