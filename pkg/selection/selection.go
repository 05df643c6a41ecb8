// Package selection lowers Tiger IR functions to MIPS instructions over
// virtual registers. IR variables become virtual registers of the same
// name; constants are folded into immediates where the machine has an
// immediate form and loaded into fresh temporaries otherwise.
package selection

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/mips"
	"github.com/raymyers/ralph-mips/pkg/tigerir"
)

var branchOps = map[tigerir.Op]mips.Opcode{
	tigerir.OpBreq:  mips.OpBeq,
	tigerir.OpBrneq: mips.OpBne,
	tigerir.OpBrlt:  mips.OpBlt,
	tigerir.OpBrgt:  mips.OpBgt,
	tigerir.OpBrgeq: mips.OpBge,
	tigerir.OpBrleq: mips.OpBle,
}

// SelectProgram lowers every function of p, keeping source order.
func SelectProgram(p *tigerir.Program) (*mips.Program, error) {
	out := &mips.Program{}
	for i := range p.Functions {
		f, err := SelectFunction(&p.Functions[i])
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, *f)
	}
	return out, nil
}

// SelectFunction lowers one function.
func SelectFunction(f *tigerir.Function) (*mips.Function, error) {
	s := newSelector(f)
	for _, in := range f.Body {
		if err := s.selectInstr(in); err != nil {
			return nil, errors.Wrap(err, "func %v line %d", f.Name, in.Line)
		}
	}

	out := &mips.Function{Name: f.Name, Body: s.out}
	for _, p := range f.Params {
		out.Args = append(out.Args, mips.Reg(p))
	}
	for _, v := range f.Ints {
		out.Locals = append(out.Locals, mips.Reg(v))
	}
	for _, a := range f.Arrays {
		out.Arrays = append(out.Arrays, mips.Array{Name: mips.Reg(a.Name), Len: a.Len})
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// selector holds state during the lowering of one function
type selector struct {
	used map[string]bool // every name the function uses, generated ones included
	out  []mips.Instr
}

func newSelector(f *tigerir.Function) *selector {
	s := &selector{used: make(map[string]bool)}
	for _, p := range f.Params {
		s.used[p] = true
	}
	for _, v := range f.Ints {
		s.used[v] = true
	}
	for _, a := range f.Arrays {
		s.used[a.Name] = true
	}
	for _, in := range f.Body {
		for _, a := range in.Args {
			if !a.Const {
				s.used[a.Name] = true
			}
		}
	}
	return s
}

func (s *selector) emit(ins ...mips.Instr) {
	s.out = append(s.out, ins...)
}

// fresh returns a name no variable or label of the function uses.
func (s *selector) fresh(prefix string) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if !s.used[name] {
			s.used[name] = true
			return name
		}
	}
}

// reg returns a register holding o, loading constants into a fresh
// temporary. Zero reads $zero.
func (s *selector) reg(o tigerir.Operand) mips.Reg {
	if !o.Const {
		return mips.Reg(o.Name)
	}
	if o.Value == 0 {
		return mips.Zero
	}
	t := mips.Reg(s.fresh("_k"))
	s.emit(mips.Li(t, o.Value))
	return t
}

func fitsSigned16(v int) bool   { return v >= -1<<15 && v < 1<<15 }
func fitsUnsigned16(v int) bool { return v >= 0 && v < 1<<16 }

func (s *selector) selectInstr(in tigerir.Instr) error {
	a := in.Args
	switch {
	case in.Op == tigerir.OpLabel:
		s.emit(mips.Label(a[0].Name))
	case in.Op.IsBinary():
		s.binary(in.Op, mips.Reg(a[0].Name), a[1], a[2])
	case in.Op == tigerir.OpAssign && len(a) == 3:
		s.fill(mips.Reg(a[0].Name), a[1], a[2])
	case in.Op == tigerir.OpAssign:
		s.assign(mips.Reg(a[0].Name), a[1])
	case in.Op == tigerir.OpGoto:
		s.emit(mips.J(a[0].Name))
	case in.Op.IsBranch():
		x, y := s.reg(a[1]), s.reg(a[2])
		s.emit(mips.NewBranch(branchOps[in.Op], a[0].Name, x, y))
	case in.Op == tigerir.OpReturn:
		if len(a) == 0 {
			s.emit(mips.Return())
		} else {
			s.emit(mips.Return(s.reg(a[0])))
		}
	case in.Op == tigerir.OpCall:
		s.emit(mips.Call(a[0].Name, s.regs(a[1:])...))
	case in.Op == tigerir.OpCallr:
		args := s.regs(a[2:])
		s.emit(mips.CallR(mips.Reg(a[0].Name), a[1].Name, args...))
	case in.Op == tigerir.OpArrayLoad:
		s.element(mips.OpLw, mips.Reg(a[0].Name), mips.Reg(a[1].Name), a[2])
	case in.Op == tigerir.OpArrayStore:
		v := s.reg(a[0])
		s.element(mips.OpSw, v, mips.Reg(a[1].Name), a[2])
	default:
		return errors.New("cannot select %v", in.Op)
	}
	return nil
}

func (s *selector) regs(ops []tigerir.Operand) []mips.Reg {
	out := make([]mips.Reg, len(ops))
	for i, o := range ops {
		out[i] = s.reg(o)
	}
	return out
}

func (s *selector) assign(dst mips.Reg, src tigerir.Operand) {
	if src.Const {
		s.emit(mips.Li(dst, src.Value))
		return
	}
	s.emit(mips.Move(dst, mips.Reg(src.Name)))
}

// binary selects add, sub, and, or, mult and div. mult and div leave
// the low word of the result in lo.
func (s *selector) binary(op tigerir.Op, dst mips.Reg, x, y tigerir.Operand) {
	switch op {
	case tigerir.OpAdd:
		if x.Const && !y.Const {
			x, y = y, x
		}
		if !x.Const && y.Const && fitsSigned16(y.Value) {
			s.emit(mips.NewImm(mips.OpAddi, y.Value, dst, mips.Reg(x.Name)))
			return
		}
		s.three(mips.OpAdd, dst, x, y)
	case tigerir.OpSub:
		if !x.Const && y.Const && fitsSigned16(-y.Value) {
			s.emit(mips.NewImm(mips.OpAddi, -y.Value, dst, mips.Reg(x.Name)))
			return
		}
		s.three(mips.OpSub, dst, x, y)
	case tigerir.OpAnd, tigerir.OpOr:
		rop, iop := mips.OpAnd, mips.OpAndi
		if op == tigerir.OpOr {
			rop, iop = mips.OpOr, mips.OpOri
		}
		if x.Const && !y.Const {
			x, y = y, x
		}
		if !x.Const && y.Const && fitsUnsigned16(y.Value) {
			s.emit(mips.NewImm(iop, y.Value, dst, mips.Reg(x.Name)))
			return
		}
		s.three(rop, dst, x, y)
	case tigerir.OpMult, tigerir.OpDiv:
		mop := mips.OpMult
		if op == tigerir.OpDiv {
			mop = mips.OpDiv
		}
		rx, ry := s.reg(x), s.reg(y)
		s.emit(mips.New(mop, rx, ry), mips.New(mips.OpMflo, dst))
	}
}

func (s *selector) three(op mips.Opcode, dst mips.Reg, x, y tigerir.Operand) {
	rx, ry := s.reg(x), s.reg(y)
	s.emit(mips.New(op, dst, rx, ry))
}

// element emits a load or store of word idx of arr. Constant indexes
// become offsets; others are scaled into a fresh address register.
func (s *selector) element(op mips.Opcode, rt, arr mips.Reg, idx tigerir.Operand) {
	if idx.Const && fitsSigned16(idx.Value*mips.WordSize) {
		s.emit(mips.NewMem(op, rt, idx.Value*mips.WordSize, arr))
		return
	}
	i := s.reg(idx)
	addr := mips.Reg(s.fresh("_p"))
	s.emit(
		mips.NewImm(mips.OpSll, 2, addr, i),
		mips.New(mips.OpAdd, addr, arr, addr),
		mips.NewMem(op, rt, 0, addr),
	)
}

// fill stores val into the first n words of arr:
//
//	    move  p, arr
//	    addi  end, arr, 4*n
//	loop:
//	    bge   p, end, done
//	    sw    val, 0(p)
//	    addi  p, p, 4
//	    j     loop
//	done:
func (s *selector) fill(arr mips.Reg, n, val tigerir.Operand) {
	p := mips.Reg(s.fresh("_p"))
	end := mips.Reg(s.fresh("_end"))
	loop := s.fresh("_fill")
	done := s.fresh(loop + "_done")

	v := s.reg(val)
	s.emit(mips.Move(p, arr))
	if n.Const && fitsSigned16(n.Value*mips.WordSize) {
		s.emit(mips.NewImm(mips.OpAddi, n.Value*mips.WordSize, end, arr))
	} else {
		s.emit(
			mips.NewImm(mips.OpSll, 2, end, s.reg(n)),
			mips.New(mips.OpAdd, end, arr, end),
		)
	}
	s.emit(
		mips.Label(loop),
		mips.NewBranch(mips.OpBge, done, p, end),
		mips.NewMem(mips.OpSw, v, 0, p),
		mips.NewImm(mips.OpAddi, mips.WordSize, p, p),
		mips.J(loop),
		mips.Label(done),
	)
}
