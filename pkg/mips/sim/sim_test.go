package sim

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

func run(t *testing.T, code []mips.Instr) (string, *Machine) {
	t.Helper()
	var out bytes.Buffer
	m, err := New(code, &out)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(context.Background(), "main"); err != nil {
		t.Fatalf("Run: %v\noutput: %q", err, out.String())
	}
	return out.String(), m
}

func printInt(r mips.Reg) []mips.Instr {
	return []mips.Instr{
		mips.Move(mips.A0, r),
		mips.Li(mips.V0, 1),
		mips.Syscall(),
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		code []mips.Instr
		want string
	}{
		{"add", []mips.Instr{mips.Li(mips.T0, 2), mips.Li(mips.T1, 40), mips.New(mips.OpAdd, mips.T2, mips.T0, mips.T1)}, "42"},
		{"sub", []mips.Instr{mips.Li(mips.T0, 2), mips.Li(mips.T1, 40), mips.New(mips.OpSub, mips.T2, mips.T0, mips.T1)}, "-38"},
		{"slt", []mips.Instr{mips.Li(mips.T0, -1), mips.Li(mips.T1, 0), mips.New(mips.OpSlt, mips.T2, mips.T0, mips.T1)}, "1"},
		{"sltu", []mips.Instr{mips.Li(mips.T0, -1), mips.Li(mips.T1, 0), mips.New(mips.OpSltu, mips.T2, mips.T0, mips.T1)}, "0"},
		{"sll", []mips.Instr{mips.Li(mips.T0, 3), mips.NewImm(mips.OpSll, 4, mips.T2, mips.T0)}, "48"},
		{"sra", []mips.Instr{mips.Li(mips.T0, -16), mips.NewImm(mips.OpSra, 2, mips.T2, mips.T0)}, "-4"},
		{"mult", []mips.Instr{mips.Li(mips.T0, 6), mips.Li(mips.T1, 7), mips.New(mips.OpMult, mips.T0, mips.T1), mips.New(mips.OpMflo, mips.T2)}, "42"},
		{"div", []mips.Instr{mips.Li(mips.T0, 43), mips.Li(mips.T1, 5), mips.New(mips.OpDiv, mips.T0, mips.T1), mips.New(mips.OpMfhi, mips.T2)}, "3"},
		{"zero", []mips.Instr{mips.Li(mips.Zero, 5), mips.Move(mips.T2, mips.Zero)}, "0"},
	}

	for _, tt := range tests {
		code := append([]mips.Instr{mips.Label("main")}, tt.code...)
		code = append(code, printInt(mips.T2)...)
		got, _ := run(t, code)
		if got != tt.want {
			t.Errorf("%s: printed %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCallAndStack(t *testing.T) {
	code := []mips.Instr{
		mips.Label("main"),
		mips.Li(mips.A0, 5),
		mips.Jal("double"),
		mips.Move(mips.T0, mips.V0),
		mips.Addiu(mips.SP, mips.SP, -4),
		mips.Sw(mips.T0, 0, mips.SP),
		mips.Li(mips.T0, 0),
		mips.Lw(mips.T1, 0, mips.SP),
	}
	code = append(code, printInt(mips.T1)...)
	code = append(code,
		mips.Li(mips.V0, 10),
		mips.Syscall(),
		mips.Label("double"),
		mips.New(mips.OpAdd, mips.V0, mips.A0, mips.A0),
		mips.Jr(mips.RA),
	)

	got, m := run(t, code)
	if got != "10" {
		t.Errorf("printed %q, want %q", got, "10")
	}
	if sp := m.Reg(mips.SP); sp != StackTop-4 {
		t.Errorf("$sp = %#x, want %#x", sp, StackTop-4)
	}
}

func TestLoopAndBranches(t *testing.T) {
	code := []mips.Instr{
		mips.Label("main"),
		mips.Li(mips.T0, 0),
		mips.Li(mips.T1, 0),
		mips.Li(mips.T2, 5),
		mips.Label("loop"),
		mips.NewBranch(mips.OpBge, "done", mips.T1, "$10"), // $10 is $t2
		mips.New(mips.OpAdd, mips.T0, mips.T0, mips.T1),
		mips.Addiu(mips.T1, mips.T1, 1),
		mips.J("loop"),
		mips.Label("done"),
	}
	code = append(code, printInt(mips.T0)...)

	got, _ := run(t, code)
	if got != "10" {
		t.Errorf("printed %q, want %q", got, "10")
	}
}

func TestPrintChar(t *testing.T) {
	code := []mips.Instr{
		mips.Label("main"),
		mips.Li(mips.A0, '\n'),
		mips.Li(mips.V0, 11),
		mips.Syscall(),
	}
	got, _ := run(t, code)
	if got != "\n" {
		t.Errorf("printed %q, want newline", got)
	}
}

func TestReadSyscalls(t *testing.T) {
	code := []mips.Instr{
		mips.Label("main"),
		mips.Li(mips.V0, 5),
		mips.Syscall(),
		mips.Move(mips.T0, mips.V0),
		mips.Li(mips.V0, 12),
		mips.Syscall(),
		mips.Move(mips.T1, mips.V0),
	}
	code = append(code, printInt(mips.T0)...)
	code = append(code, mips.Move(mips.A0, mips.T1), mips.Li(mips.V0, 11), mips.Syscall())

	var out bytes.Buffer
	m, err := New(code, &out)
	if err != nil {
		t.Fatal(err)
	}
	m.SetInput(strings.NewReader(" -42\nz"))
	if err := m.Run(context.Background(), "main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "-42z" {
		t.Errorf("printed %q, want %q", got, "-42z")
	}
}

func TestReadSyscallFaults(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		input string
	}{
		{"no input", 5, ""},
		{"not a number", 5, "seven\n"},
		{"char at end", 12, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New([]mips.Instr{mips.Label("main"), mips.Li(mips.V0, tt.code), mips.Syscall()}, &bytes.Buffer{})
			if err != nil {
				t.Fatal(err)
			}
			if tt.input != "" {
				m.SetInput(strings.NewReader(tt.input))
			}
			err = m.Run(context.Background(), "main")
			var f *Fault
			if !errors.As(err, &f) {
				t.Fatalf("expected Fault, got %v", err)
			}
		})
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name string
		code []mips.Instr
	}{
		{"unaligned", []mips.Instr{mips.Li(mips.T0, 2), mips.Lw(mips.T1, 0, mips.T0)}},
		{"virtual register", []mips.Instr{mips.Li("x", 1)}},
		{"pseudo", []mips.Instr{mips.Call("f")}},
		{"syscall", []mips.Instr{mips.Li(mips.V0, 99), mips.Syscall()}},
		{"unknown label", []mips.Instr{mips.J("nowhere")}},
	}

	for _, tt := range tests {
		m, err := New(append([]mips.Instr{mips.Label("main")}, tt.code...), &bytes.Buffer{})
		if err != nil {
			t.Fatal(err)
		}
		err = m.Run(context.Background(), "main")
		var f *Fault
		if !errors.As(err, &f) {
			t.Errorf("%s: error = %v, want *Fault", tt.name, err)
		}
	}
}

func TestStepLimit(t *testing.T) {
	code := []mips.Instr{mips.Label("main"), mips.J("main")}
	m, err := New(code, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	m.MaxSteps = 100
	if err := m.Run(context.Background(), "main"); err == nil {
		t.Error("infinite loop should hit the step limit")
	}
}

func TestDuplicateLabel(t *testing.T) {
	_, err := New([]mips.Instr{mips.Label("a"), mips.Label("a")}, &bytes.Buffer{})
	if err == nil {
		t.Error("duplicate labels should fail to load")
	}
}
