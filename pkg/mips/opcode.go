package mips

// Opcode identifies a machine instruction or an instruction-selection
// pseudo instruction. The set is closed: every opcode carries its operand
// shape and control-flow classification in opTable.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Three-register ALU
	OpAdd
	OpAddu
	OpSub
	OpSubu
	OpAnd
	OpOr
	OpXor
	OpNor
	OpSlt
	OpSltu
	OpSllv
	OpSrlv

	// Two registers and an immediate
	OpAddi
	OpAddiu
	OpAndi
	OpOri
	OpXori
	OpSlti
	OpSll
	OpSrl
	OpSra

	// Moves
	OpLi
	OpMove
	OpMflo
	OpMfhi

	// HI/LO producers
	OpMult
	OpMultu
	OpDiv
	OpDivu

	// Memory
	OpLw
	OpLb
	OpSw
	OpSb

	// Conditional branches
	OpBeq
	OpBne
	OpBlt
	OpBgt
	OpBle
	OpBge
	OpBeqz
	OpBnez
	OpBgez
	OpBgtz
	OpBlez
	OpBltz

	// Linking branches
	OpBgezal
	OpBltzal

	// Jumps
	OpJ
	OpJal
	OpJr

	OpSyscall
	OpNop
	OpLabel

	// Pseudo instructions produced by instruction selection
	OpCall
	OpCallr
	OpReturn

	numOpcodes
)

// Form says which register slots an opcode defines and which it uses.
type Form uint8

const (
	FormNone   Form = iota // no register operands
	FormDef                // slot 0 is defined, the remaining slots are used
	FormUseAll             // every slot is used, nothing is defined
)

// Kind classifies an opcode's effect on control flow.
type Kind uint8

const (
	KindBranch Kind = 1 << iota // conditional, target resolved in the function
	KindJump                    // unconditional, target resolved in the function
	KindLink                    // transfers to another function and returns
	KindReturn                  // leaves the function
	KindLabel
	KindPseudo
)

type opInfo struct {
	name    string
	form    Form
	regs    int  // exact register count, or minimum when variadic
	varargs bool // accepts more than regs registers
	imm     bool
	offset  bool
	target  bool
	kind    Kind
}

var opTable = [numOpcodes]opInfo{
	OpAdd:  {name: "add", form: FormDef, regs: 3},
	OpAddu: {name: "addu", form: FormDef, regs: 3},
	OpSub:  {name: "sub", form: FormDef, regs: 3},
	OpSubu: {name: "subu", form: FormDef, regs: 3},
	OpAnd:  {name: "and", form: FormDef, regs: 3},
	OpOr:   {name: "or", form: FormDef, regs: 3},
	OpXor:  {name: "xor", form: FormDef, regs: 3},
	OpNor:  {name: "nor", form: FormDef, regs: 3},
	OpSlt:  {name: "slt", form: FormDef, regs: 3},
	OpSltu: {name: "sltu", form: FormDef, regs: 3},
	OpSllv: {name: "sllv", form: FormDef, regs: 3},
	OpSrlv: {name: "srlv", form: FormDef, regs: 3},

	OpAddi:  {name: "addi", form: FormDef, regs: 2, imm: true},
	OpAddiu: {name: "addiu", form: FormDef, regs: 2, imm: true},
	OpAndi:  {name: "andi", form: FormDef, regs: 2, imm: true},
	OpOri:   {name: "ori", form: FormDef, regs: 2, imm: true},
	OpXori:  {name: "xori", form: FormDef, regs: 2, imm: true},
	OpSlti:  {name: "slti", form: FormDef, regs: 2, imm: true},
	OpSll:   {name: "sll", form: FormDef, regs: 2, imm: true},
	OpSrl:   {name: "srl", form: FormDef, regs: 2, imm: true},
	OpSra:   {name: "sra", form: FormDef, regs: 2, imm: true},

	OpLi:   {name: "li", form: FormDef, regs: 1, imm: true},
	OpMove: {name: "move", form: FormDef, regs: 2},
	OpMflo: {name: "mflo", form: FormDef, regs: 1},
	OpMfhi: {name: "mfhi", form: FormDef, regs: 1},

	OpMult:  {name: "mult", form: FormUseAll, regs: 2},
	OpMultu: {name: "multu", form: FormUseAll, regs: 2},
	OpDiv:   {name: "div", form: FormUseAll, regs: 2},
	OpDivu:  {name: "divu", form: FormUseAll, regs: 2},

	OpLw: {name: "lw", form: FormDef, regs: 2, offset: true},
	OpLb: {name: "lb", form: FormDef, regs: 2, offset: true},
	OpSw: {name: "sw", form: FormUseAll, regs: 2, offset: true},
	OpSb: {name: "sb", form: FormUseAll, regs: 2, offset: true},

	OpBeq:  {name: "beq", form: FormUseAll, regs: 2, target: true, kind: KindBranch},
	OpBne:  {name: "bne", form: FormUseAll, regs: 2, target: true, kind: KindBranch},
	OpBlt:  {name: "blt", form: FormUseAll, regs: 2, target: true, kind: KindBranch},
	OpBgt:  {name: "bgt", form: FormUseAll, regs: 2, target: true, kind: KindBranch},
	OpBle:  {name: "ble", form: FormUseAll, regs: 2, target: true, kind: KindBranch},
	OpBge:  {name: "bge", form: FormUseAll, regs: 2, target: true, kind: KindBranch},
	OpBeqz: {name: "beqz", form: FormUseAll, regs: 1, target: true, kind: KindBranch},
	OpBnez: {name: "bnez", form: FormUseAll, regs: 1, target: true, kind: KindBranch},
	OpBgez: {name: "bgez", form: FormUseAll, regs: 1, target: true, kind: KindBranch},
	OpBgtz: {name: "bgtz", form: FormUseAll, regs: 1, target: true, kind: KindBranch},
	OpBlez: {name: "blez", form: FormUseAll, regs: 1, target: true, kind: KindBranch},
	OpBltz: {name: "bltz", form: FormUseAll, regs: 1, target: true, kind: KindBranch},

	OpBgezal: {name: "bgezal", form: FormUseAll, regs: 1, target: true, kind: KindLink},
	OpBltzal: {name: "bltzal", form: FormUseAll, regs: 1, target: true, kind: KindLink},

	OpJ:   {name: "j", form: FormNone, target: true, kind: KindJump},
	OpJal: {name: "jal", form: FormNone, target: true, kind: KindLink},
	OpJr:  {name: "jr", form: FormUseAll, regs: 1, kind: KindReturn},

	OpSyscall: {name: "syscall", form: FormNone},
	OpNop:     {name: "nop", form: FormNone},
	OpLabel:   {name: "label", form: FormNone, target: true, kind: KindLabel},

	OpCall:   {name: "call", form: FormUseAll, varargs: true, target: true, kind: KindLink | KindPseudo},
	OpCallr:  {name: "callr", form: FormDef, regs: 1, varargs: true, target: true, kind: KindLink | KindPseudo},
	OpReturn: {name: "return", form: FormUseAll, varargs: true, kind: KindReturn | KindPseudo},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := OpInvalid + 1; op < numOpcodes; op++ {
		m[opTable[op].name] = op
	}
	return m
}()

// LookupOpcode returns the opcode spelled name.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

func (op Opcode) info() opInfo {
	if op >= numOpcodes {
		return opInfo{}
	}
	return opTable[op]
}

// Valid reports whether op is a member of the opcode set.
func (op Opcode) Valid() bool { return op > OpInvalid && op < numOpcodes }

func (op Opcode) String() string {
	if !op.Valid() {
		return "invalid"
	}
	return opTable[op].name
}

func (op Opcode) Form() Form { return op.info().form }
func (op Opcode) HasImm() bool { return op.info().imm }
func (op Opcode) HasOffset() bool { return op.info().offset }
func (op Opcode) HasTarget() bool { return op.info().target }
func (op Opcode) Kind() Kind { return op.info().kind }

func (op Opcode) IsBranch() bool { return op.Kind()&KindBranch != 0 }
func (op Opcode) IsJump() bool { return op.Kind()&KindJump != 0 }
func (op Opcode) IsLink() bool { return op.Kind()&KindLink != 0 }
func (op Opcode) IsReturn() bool { return op.Kind()&KindReturn != 0 }
func (op Opcode) IsLabel() bool { return op == OpLabel }
func (op Opcode) IsPseudo() bool { return op.Kind()&KindPseudo != 0 }

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op.Kind()&(KindBranch|KindJump|KindLink|KindReturn) != 0
}

// ResolvesTarget reports whether op's target must name a label in the
// same function.
func (op Opcode) ResolvesTarget() bool {
	return op.Kind()&(KindBranch|KindJump) != 0
}

// Arity returns the number of register slots op takes. When variadic is
// true n is a minimum.
func (op Opcode) Arity() (n int, variadic bool) {
	info := op.info()
	return info.regs, info.varargs
}
