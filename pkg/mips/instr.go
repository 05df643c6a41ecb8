package mips

import (
	"fmt"
	"strings"
)

// Instr is a single machine or pseudo instruction. Instructions are treated
// as values: passes that rewrite operands build a new Instr with WithRegs
// instead of mutating one that other blocks may still reference.
type Instr struct {
	Op     Opcode
	Regs   []Reg  // slot 0 is the destination for FormDef opcodes
	Imm    int    // used when Op.HasImm()
	Offset int    // used when Op.HasOffset()
	Target string // branch/jump label, label name, or callee
}

// StructuralError reports an instruction that violates its opcode's shape.
type StructuralError struct {
	Instr  Instr
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed instruction %q: %s", e.Instr.String(), e.Reason)
}

// New builds a register-only instruction.
func New(op Opcode, regs ...Reg) Instr {
	return Instr{Op: op, Regs: regs}
}

// NewImm builds an instruction with an immediate operand.
func NewImm(op Opcode, imm int, regs ...Reg) Instr {
	return Instr{Op: op, Regs: regs, Imm: imm}
}

// NewMem builds a load or store: op rt, offset(base).
func NewMem(op Opcode, rt Reg, offset int, base Reg) Instr {
	return Instr{Op: op, Regs: []Reg{rt, base}, Offset: offset}
}

// NewBranch builds a branch or jump to target.
func NewBranch(op Opcode, target string, regs ...Reg) Instr {
	return Instr{Op: op, Regs: regs, Target: target}
}

func Label(name string) Instr { return Instr{Op: OpLabel, Target: name} }
func J(target string) Instr { return Instr{Op: OpJ, Target: target} }
func Jal(target string) Instr { return Instr{Op: OpJal, Target: target} }
func Jr(r Reg) Instr { return New(OpJr, r) }
func Move(dst, src Reg) Instr { return New(OpMove, dst, src) }
func Li(dst Reg, imm int) Instr { return NewImm(OpLi, imm, dst) }
func Addiu(dst, src Reg, imm int) Instr { return NewImm(OpAddiu, imm, dst, src) }
func Lw(rt Reg, offset int, base Reg) Instr { return NewMem(OpLw, rt, offset, base) }
func Sw(rt Reg, offset int, base Reg) Instr { return NewMem(OpSw, rt, offset, base) }
func Syscall() Instr { return Instr{Op: OpSyscall} }
func Nop() Instr { return Instr{Op: OpNop} }

// Call is the selection pseudo instruction for a call whose result is
// discarded.
func Call(callee string, args ...Reg) Instr {
	return Instr{Op: OpCall, Regs: args, Target: callee}
}

// CallR is a call whose result is written to dst.
func CallR(dst Reg, callee string, args ...Reg) Instr {
	return Instr{Op: OpCallr, Regs: append([]Reg{dst}, args...), Target: callee}
}

// Return leaves the function, optionally returning a value.
func Return(val ...Reg) Instr {
	return Instr{Op: OpReturn, Regs: val}
}

// WithRegs returns a copy of in with its register slots replaced.
func (in Instr) WithRegs(regs []Reg) Instr {
	out := in
	out.Regs = append([]Reg(nil), regs...)
	return out
}

// Defs returns the registers written by the instruction.
func (in Instr) Defs() []Reg {
	if in.Op.Form() == FormDef && len(in.Regs) > 0 {
		return in.Regs[:1]
	}
	return nil
}

// Uses returns the registers read by the instruction.
func (in Instr) Uses() []Reg {
	switch in.Op.Form() {
	case FormDef:
		if len(in.Regs) > 1 {
			return in.Regs[1:]
		}
	case FormUseAll:
		return in.Regs
	}
	return nil
}

// CallArgs returns the argument registers of a call pseudo instruction.
func (in Instr) CallArgs() []Reg {
	switch in.Op {
	case OpCall:
		return in.Regs
	case OpCallr:
		if len(in.Regs) == 0 {
			return nil
		}
		return in.Regs[1:]
	}
	return nil
}

// References reports whether r appears in any register slot.
func (in Instr) References(r Reg) bool {
	return indexOf(in.Regs, r) >= 0
}

// Validate checks the instruction against its opcode's static shape.
func (in Instr) Validate() error {
	if !in.Op.Valid() {
		return &StructuralError{Instr: in, Reason: "unknown opcode"}
	}
	info := in.Op.info()
	switch {
	case info.varargs && len(in.Regs) < info.regs:
		return &StructuralError{Instr: in, Reason: fmt.Sprintf("want at least %d register operands, got %d", info.regs, len(in.Regs))}
	case !info.varargs && len(in.Regs) != info.regs:
		return &StructuralError{Instr: in, Reason: fmt.Sprintf("want %d register operands, got %d", info.regs, len(in.Regs))}
	case info.target && in.Target == "":
		return &StructuralError{Instr: in, Reason: "missing target"}
	case in.Op == OpReturn && len(in.Regs) > 1:
		return &StructuralError{Instr: in, Reason: "return takes at most one value"}
	}
	if in.Op == OpCall || in.Op == OpCallr {
		if x, ok := LookupIntrinsic(in.Target); ok {
			if n := len(in.CallArgs()); n != x.Args {
				return &StructuralError{Instr: in, Reason: fmt.Sprintf("%s takes %d arguments, got %d", x.Name, x.Args, n)}
			}
			if in.Op == OpCallr && !x.Returns {
				return &StructuralError{Instr: in, Reason: x.Name + " returns no value"}
			}
		}
	}
	for _, r := range in.Regs {
		if r == "" {
			return &StructuralError{Instr: in, Reason: "empty register operand"}
		}
	}
	return nil
}

// String renders the instruction in MARS assembly syntax. Pseudo
// instructions render in the input syntax.
func (in Instr) String() string {
	if in.Op == OpLabel {
		return in.Target + ":"
	}
	if ops := in.Operands(); ops != "" {
		return in.Op.String() + " " + ops
	}
	return in.Op.String()
}

// Operands renders the operand list without the mnemonic.
func (in Instr) Operands() string {
	op := in.Op
	switch {
	case op == OpLabel:
		return in.Target
	case op.HasOffset() && len(in.Regs) == 2:
		return fmt.Sprintf("%s, %d(%s)", in.Regs[0], in.Offset, in.Regs[1])
	}

	parts := make([]string, 0, len(in.Regs)+2)
	if op == OpCall || op == OpCallr {
		if op == OpCallr && len(in.Regs) > 0 {
			parts = append(parts, string(in.Regs[0]))
		}
		parts = append(parts, in.Target)
		for _, r := range in.CallArgs() {
			parts = append(parts, string(r))
		}
		return strings.Join(parts, ", ")
	}
	for _, r := range in.Regs {
		parts = append(parts, string(r))
	}
	if op.HasImm() {
		parts = append(parts, fmt.Sprint(in.Imm))
	}
	if op.HasTarget() {
		parts = append(parts, in.Target)
	}
	return strings.Join(parts, ", ")
}
