// Package sim executes emitted MIPS code with the MARS system-call
// conventions. It backs the semantic tests: a program compiled with every
// allocator must print the same output.
package sim

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

const (
	// StackTop is the initial $sp, as in MARS.
	StackTop = 0x7fffeffc
	// DefaultMaxSteps bounds a run.
	DefaultMaxSteps = 1 << 22

	exitAddr = -1
)

var regNames = [32]mips.Reg{
	mips.Zero, mips.AT, mips.V0, mips.V1, mips.A0, mips.A1, mips.A2, mips.A3,
	mips.T0, mips.T1, mips.T2, mips.T3, mips.T4, mips.T5, mips.T6, mips.T7,
	mips.S0, mips.S1, mips.S2, mips.S3, mips.S4, mips.S5, mips.S6, mips.S7,
	mips.T8, mips.T9, "$k0", "$k1", mips.GP, mips.SP, mips.FP, mips.RA,
}

var regIndex = func() map[mips.Reg]int {
	m := make(map[mips.Reg]int, 64)
	for i, r := range regNames {
		m[r] = i
		m[mips.Reg("$"+strconv.Itoa(i))] = i
	}
	return m
}()

// Fault is a runtime error at one instruction.
type Fault struct {
	PC     int
	Instr  mips.Instr
	Reason string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("pc %d (%v): %s", f.PC, f.Instr.String(), f.Reason)
}

// Machine is a word-addressed MIPS core with byte-addressable memory.
// Instruction addresses are indexes into the loaded code.
type Machine struct {
	MaxSteps int

	code   []mips.Instr
	labels map[string]int
	out    io.Writer
	in     *bufio.Reader

	regs   [32]int32
	hi, lo int32
	mem    map[uint32]byte
	pc     int
	steps  int

	exitCode int
}

// New loads code and resolves its labels.
func New(code []mips.Instr, out io.Writer) (*Machine, error) {
	m := &Machine{
		MaxSteps: DefaultMaxSteps,
		code:     code,
		labels:   make(map[string]int),
		out:      out,
		mem:      make(map[uint32]byte),
	}
	for i, in := range code {
		if in.Op != mips.OpLabel {
			continue
		}
		if _, ok := m.labels[in.Target]; ok {
			return nil, errors.New("duplicate label %q", in.Target)
		}
		m.labels[in.Target] = i
	}
	return m, nil
}

// SetInput makes r the source of the read syscalls.
func (m *Machine) SetInput(r io.Reader) {
	m.in = bufio.NewReader(r)
}

// Steps returns the number of instructions executed.
func (m *Machine) Steps() int { return m.steps }

// ExitCode returns the code passed to syscall 17, or 0.
func (m *Machine) ExitCode() int { return m.exitCode }

// Reg returns the value of a physical register.
func (m *Machine) Reg(r mips.Reg) int32 {
	return m.regs[regIndex[r]]
}

// Run executes from label entry until the program exits.
func (m *Machine) Run(ctx context.Context, entry string) error {
	pc, ok := m.labels[entry]
	if !ok {
		return errors.New("no entry label %q", entry)
	}
	m.pc = pc
	m.set(mips.SP, StackTop)
	m.set(mips.RA, exitAddr)

	for {
		if m.pc == exitAddr || m.pc == len(m.code) {
			return nil
		}
		if m.pc < 0 || m.pc > len(m.code) {
			return &Fault{PC: m.pc, Reason: "jump outside the program"}
		}
		if m.steps >= m.MaxSteps {
			return &Fault{PC: m.pc, Instr: m.code[m.pc], Reason: fmt.Sprintf("step limit %d reached", m.MaxSteps)}
		}
		if m.steps&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		m.steps++

		halt, err := m.step(m.code[m.pc])
		if err != nil {
			return err
		}
		if halt {
			return nil
		}
	}
}

func (m *Machine) fault(in mips.Instr, format string, args ...any) error {
	return &Fault{PC: m.pc, Instr: in, Reason: fmt.Sprintf(format, args...)}
}

func (m *Machine) get(r mips.Reg) int32 {
	return m.regs[regIndex[r]]
}

func (m *Machine) set(r mips.Reg, v int32) {
	if i := regIndex[r]; i != 0 {
		m.regs[i] = v
	}
}

func (m *Machine) jump(in mips.Instr, label string) error {
	pc, ok := m.labels[label]
	if !ok {
		return m.fault(in, "unknown label %q", label)
	}
	m.pc = pc
	return nil
}

// step executes one instruction and advances pc.
func (m *Machine) step(in mips.Instr) (halt bool, err error) {
	for _, r := range in.Regs {
		if _, ok := regIndex[r]; !ok {
			return false, m.fault(in, "%v is not a machine register", r)
		}
	}
	r := func(i int) int32 { return m.get(in.Regs[i]) }
	next := m.pc + 1

	switch in.Op {
	case mips.OpLabel, mips.OpNop:

	case mips.OpAdd, mips.OpAddu:
		m.set(in.Regs[0], r(1)+r(2))
	case mips.OpSub, mips.OpSubu:
		m.set(in.Regs[0], r(1)-r(2))
	case mips.OpAnd:
		m.set(in.Regs[0], r(1)&r(2))
	case mips.OpOr:
		m.set(in.Regs[0], r(1)|r(2))
	case mips.OpXor:
		m.set(in.Regs[0], r(1)^r(2))
	case mips.OpNor:
		m.set(in.Regs[0], ^(r(1) | r(2)))
	case mips.OpSlt:
		m.set(in.Regs[0], b2i(r(1) < r(2)))
	case mips.OpSltu:
		m.set(in.Regs[0], b2i(uint32(r(1)) < uint32(r(2))))
	case mips.OpSllv:
		m.set(in.Regs[0], r(1)<<(uint32(r(2))&31))
	case mips.OpSrlv:
		m.set(in.Regs[0], int32(uint32(r(1))>>(uint32(r(2))&31)))

	case mips.OpAddi, mips.OpAddiu:
		m.set(in.Regs[0], r(1)+int32(in.Imm))
	case mips.OpAndi:
		m.set(in.Regs[0], r(1)&int32(in.Imm))
	case mips.OpOri:
		m.set(in.Regs[0], r(1)|int32(in.Imm))
	case mips.OpXori:
		m.set(in.Regs[0], r(1)^int32(in.Imm))
	case mips.OpSlti:
		m.set(in.Regs[0], b2i(r(1) < int32(in.Imm)))
	case mips.OpSll:
		m.set(in.Regs[0], r(1)<<(uint(in.Imm)&31))
	case mips.OpSrl:
		m.set(in.Regs[0], int32(uint32(r(1))>>(uint(in.Imm)&31)))
	case mips.OpSra:
		m.set(in.Regs[0], r(1)>>(uint(in.Imm)&31))

	case mips.OpLi:
		m.set(in.Regs[0], int32(in.Imm))
	case mips.OpMove:
		m.set(in.Regs[0], r(1))
	case mips.OpMflo:
		m.set(in.Regs[0], m.lo)
	case mips.OpMfhi:
		m.set(in.Regs[0], m.hi)

	case mips.OpMult:
		p := int64(r(0)) * int64(r(1))
		m.lo, m.hi = int32(p), int32(p>>32)
	case mips.OpMultu:
		p := uint64(uint32(r(0))) * uint64(uint32(r(1)))
		m.lo, m.hi = int32(p), int32(p>>32)
	case mips.OpDiv:
		if r(1) != 0 {
			m.lo, m.hi = r(0)/r(1), r(0)%r(1)
		}
	case mips.OpDivu:
		if r(1) != 0 {
			m.lo, m.hi = int32(uint32(r(0))/uint32(r(1))), int32(uint32(r(0))%uint32(r(1)))
		}

	case mips.OpLw:
		v, err := m.loadWord(in, r(1)+int32(in.Offset))
		if err != nil {
			return false, err
		}
		m.set(in.Regs[0], v)
	case mips.OpLb:
		m.set(in.Regs[0], int32(int8(m.mem[uint32(r(1)+int32(in.Offset))])))
	case mips.OpSw:
		if err := m.storeWord(in, r(1)+int32(in.Offset), r(0)); err != nil {
			return false, err
		}
	case mips.OpSb:
		m.mem[uint32(r(1)+int32(in.Offset))] = byte(r(0))

	case mips.OpBeq, mips.OpBne, mips.OpBlt, mips.OpBgt, mips.OpBle, mips.OpBge:
		if compare(in.Op, r(0), r(1)) {
			return false, m.jump(in, in.Target)
		}
	case mips.OpBeqz, mips.OpBnez, mips.OpBgez, mips.OpBgtz, mips.OpBlez, mips.OpBltz:
		if compare(in.Op, r(0), 0) {
			return false, m.jump(in, in.Target)
		}
	case mips.OpBgezal, mips.OpBltzal:
		if compare(in.Op, r(0), 0) {
			m.set(mips.RA, int32(next))
			return false, m.jump(in, in.Target)
		}

	case mips.OpJ:
		return false, m.jump(in, in.Target)
	case mips.OpJal:
		m.set(mips.RA, int32(next))
		return false, m.jump(in, in.Target)
	case mips.OpJr:
		m.pc = int(r(0))
		return false, nil

	case mips.OpSyscall:
		return m.syscall(in)

	default:
		return false, m.fault(in, "cannot execute %v", in.Op)
	}

	m.pc = next
	return false, nil
}

func (m *Machine) syscall(in mips.Instr) (halt bool, err error) {
	a0 := m.get(mips.A0)
	switch code := m.get(mips.V0); code {
	case 1:
		_, err = fmt.Fprint(m.out, a0)
	case 4:
		var s []byte
		for addr := uint32(a0); m.mem[addr] != 0; addr++ {
			s = append(s, m.mem[addr])
		}
		_, err = m.out.Write(s)
	case 5:
		line, rerr := m.readLine()
		if rerr != nil {
			return false, m.fault(in, "read integer: %v", rerr)
		}
		v, perr := strconv.ParseInt(strings.TrimSpace(line), 10, 32)
		if perr != nil {
			return false, m.fault(in, "read integer: invalid input %q", strings.TrimSpace(line))
		}
		m.set(mips.V0, int32(v))
	case 10:
		return true, nil
	case 11:
		_, err = m.out.Write([]byte{byte(a0)})
	case 12:
		if m.in == nil {
			return false, m.fault(in, "read character: no input")
		}
		c, rerr := m.in.ReadByte()
		if rerr != nil {
			return false, m.fault(in, "read character: %v", rerr)
		}
		m.set(mips.V0, int32(c))
	case 17:
		m.exitCode = int(a0)
		return true, nil
	default:
		return false, m.fault(in, "unsupported syscall %d", code)
	}
	if err != nil {
		return false, errors.Wrap(err, "write output")
	}
	m.pc++
	return false, nil
}

// readLine returns the next input line without its newline. A last line
// without a newline is accepted.
func (m *Machine) readLine() (string, error) {
	if m.in == nil {
		return "", errors.New("no input")
	}
	line, err := m.in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (m *Machine) loadWord(in mips.Instr, addr int32) (int32, error) {
	if addr%4 != 0 {
		return 0, m.fault(in, "unaligned load at %#x", uint32(addr))
	}
	a := uint32(addr)
	return int32(uint32(m.mem[a]) | uint32(m.mem[a+1])<<8 | uint32(m.mem[a+2])<<16 | uint32(m.mem[a+3])<<24), nil
}

func (m *Machine) storeWord(in mips.Instr, addr, v int32) error {
	if addr%4 != 0 {
		return m.fault(in, "unaligned store at %#x", uint32(addr))
	}
	a := uint32(addr)
	m.mem[a] = byte(v)
	m.mem[a+1] = byte(v >> 8)
	m.mem[a+2] = byte(v >> 16)
	m.mem[a+3] = byte(v >> 24)
	return nil
}

func compare(op mips.Opcode, a, b int32) bool {
	switch op {
	case mips.OpBeq, mips.OpBeqz:
		return a == b
	case mips.OpBne, mips.OpBnez:
		return a != b
	case mips.OpBlt, mips.OpBltz, mips.OpBltzal:
		return a < b
	case mips.OpBgt, mips.OpBgtz:
		return a > b
	case mips.OpBle, mips.OpBlez:
		return a <= b
	case mips.OpBge, mips.OpBgez, mips.OpBgezal:
		return a >= b
	}
	return false
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
