// Package tigerir reads the Tiger intermediate representation, a
// line-per-instruction three-address code over named integer variables:
//
//	#start_function
//	int fact(int n):
//	int-list: r, t
//	float-list:
//	    assign, r, 1
//	    brleq, done, n, 0
//	    sub, t, n, 1
//	    callr, r, fact, t
//	    mult, r, r, n
//	done:
//	    return, r
//	#end_function
package tigerir

import (
	"strconv"
	"strings"
)

// Op is an IR operation name.
type Op string

const (
	OpAdd        Op = "add"
	OpSub        Op = "sub"
	OpMult       Op = "mult"
	OpDiv        Op = "div"
	OpAnd        Op = "and"
	OpOr         Op = "or"
	OpAssign     Op = "assign"
	OpGoto       Op = "goto"
	OpBreq       Op = "breq"
	OpBrneq      Op = "brneq"
	OpBrlt       Op = "brlt"
	OpBrgt       Op = "brgt"
	OpBrgeq      Op = "brgeq"
	OpBrleq      Op = "brleq"
	OpReturn     Op = "return"
	OpCall       Op = "call"
	OpCallr      Op = "callr"
	OpArrayStore Op = "array_store"
	OpArrayLoad  Op = "array_load"
	OpLabel      Op = "label"
)

// IsBinary reports whether op is a three-operand arithmetic operation.
func (op Op) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMult, OpDiv, OpAnd, OpOr:
		return true
	}
	return false
}

// IsBranch reports whether op is a conditional branch.
func (op Op) IsBranch() bool {
	switch op {
	case OpBreq, OpBrneq, OpBrlt, OpBrgt, OpBrgeq, OpBrleq:
		return true
	}
	return false
}

// Operand is a variable, a label or function name, or an integer
// constant.
type Operand struct {
	Name  string
	Value int
	Const bool
}

// Var returns a named operand.
func Var(name string) Operand { return Operand{Name: name} }

// Int returns a constant operand.
func Int(v int) Operand { return Operand{Value: v, Const: true} }

func (o Operand) String() string {
	if o.Const {
		return strconv.Itoa(o.Value)
	}
	return o.Name
}

// Instr is one IR instruction. Args follow the IR's operand order:
// destination first for arithmetic and assign, the label first for
// branches, the callee first for call and after the destination for
// callr.
type Instr struct {
	Op   Op
	Args []Operand
	Line int
}

func (in Instr) String() string {
	if in.Op == OpLabel {
		return in.Args[0].Name + ":"
	}
	parts := []string{string(in.Op)}
	for _, a := range in.Args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// Array is an integer array declared in an int-list.
type Array struct {
	Name string
	Len  int
}

// Function is one #start_function ... #end_function block.
type Function struct {
	Name       string
	ReturnType string // "int" or "void"
	Params     []string
	Ints       []string
	Arrays     []Array
	Body       []Instr
	Line       int
}

// IsArray reports whether name is one of f's arrays.
func (f *Function) IsArray(name string) bool {
	for _, a := range f.Arrays {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Program is a list of functions in source order.
type Program struct {
	Functions []Function
}
