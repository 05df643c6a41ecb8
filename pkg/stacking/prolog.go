package stacking

import (
	"github.com/raymyers/ralph-mips/pkg/mips"
)

// EpilogueLabel is the label every return in fn jumps to.
func EpilogueLabel(fn string) string {
	return fn + "__epilogue"
}

// LocalLabel renames a label of fn so labels stay unique across the
// program.
func LocalLabel(fn, label string) string {
	return fn + "." + label
}

// GeneratePrologue builds the function entry sequence:
//  1. Push the caller's $fp and point $fp at it
//  2. Allocate the rest of the frame
//  3. Save working temporaries, $ra and callee-saved registers
//  4. Store the incoming $a registers to their slots
//  5. Store each array's base address to the array's home
//
// arrayRegs names the register that carries each array's base address
// while it is computed.
func GeneratePrologue(l *FrameLayout, fn *mips.Function, arrayRegs map[mips.Reg]mips.Reg) ([]mips.Instr, error) {
	prologue := []mips.Instr{
		mips.Addiu(mips.SP, mips.SP, -mips.WordSize),
		mips.Sw(mips.FP, 0, mips.SP),
		mips.Move(mips.FP, mips.SP),
	}
	if rest := l.TotalSize - mips.WordSize; rest > 0 {
		prologue = append(prologue, mips.Addiu(mips.SP, mips.SP, -rest))
	}

	for _, r := range l.saveOrder() {
		prologue = append(prologue, mips.Sw(r, l.Slot(string(r)), mips.FP))
	}

	for i := 0; i < l.ArgSlots; i++ {
		prologue = append(prologue, mips.Sw(mips.ArgRegs[i], l.Slot(argSlot(i)), mips.FP))
	}

	for _, a := range l.Arrays {
		r := arrayRegs[a.Name]
		home, err := l.Home(fn, a.Name)
		if err != nil {
			return nil, err
		}
		prologue = append(prologue,
			mips.Addiu(r, mips.FP, l.Slot(ArraySlot(a.Name))),
			mips.Sw(r, home, mips.FP),
		)
	}

	return prologue, nil
}

// GenerateEpilogue builds the shared exit sequence: restore saved
// registers in reverse order, then pop the frame and the caller's $fp.
func GenerateEpilogue(l *FrameLayout, fn string) []mips.Instr {
	epilogue := []mips.Instr{mips.Label(EpilogueLabel(fn))}

	order := l.saveOrder()
	for i := len(order) - 1; i >= 0; i-- {
		r := order[i]
		epilogue = append(epilogue, mips.Lw(r, l.Slot(string(r)), mips.FP))
	}

	return append(epilogue,
		mips.Move(mips.SP, mips.FP),
		mips.Lw(mips.FP, 0, mips.SP),
		mips.Addiu(mips.SP, mips.SP, mips.WordSize),
	)
}

// GenerateReturn builds the final transfer: jr $ra, or the exit syscall
// for the program entry.
func GenerateReturn(entry bool) []mips.Instr {
	if entry {
		return []mips.Instr{
			mips.Li(mips.V0, 10),
			mips.Syscall(),
		}
	}
	return []mips.Instr{mips.Jr(mips.RA)}
}

// saveOrder lists the saved registers in frame order.
func (l *FrameLayout) saveOrder() []mips.Reg {
	regs := append([]mips.Reg(nil), l.Working...)
	if l.SaveRA {
		regs = append(regs, mips.RA)
	}
	return append(regs, l.Saved...)
}
