package mips

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintInstr(t *testing.T) {
	tests := []struct {
		name string
		in   Instr
		want string
	}{
		{"add", New(OpAdd, T0, T1, T2), "\tadd\t$t0, $t1, $t2\n"},
		{"addiu", Addiu(SP, SP, -4), "\taddiu\t$sp, $sp, -4\n"},
		{"sw", Sw(FP, 0, SP), "\tsw\t$fp, 0($sp)\n"},
		{"lw", Lw(RA, -8, FP), "\tlw\t$ra, -8($fp)\n"},
		{"li", Li(V0, 10), "\tli\t$v0, 10\n"},
		{"beq", NewBranch(OpBeq, "L2", T0, Zero), "\tbeq\t$t0, $zero, L2\n"},
		{"jr", Jr(RA), "\tjr\t$ra\n"},
		{"syscall", Syscall(), "\tsyscall\n"},
		{"label", Label("main__epilogue"), "main__epilogue:\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf)
			p.PrintInstr(tt.in)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintFunction(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintHeader("main")
	p.PrintFunction("main",
		[]Instr{Addiu(SP, SP, -4)},
		[]Instr{Li(V0, 10), Syscall()},
	)

	want := "\t.text\n\t.globl\tmain\n\nmain:\n\taddiu\t$sp, $sp, -4\n\tli\t$v0, 10\n\tsyscall\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrintSource(t *testing.T) {
	f := &Function{
		Name:   "sum",
		Args:   []Reg{"a", "b"},
		Locals: []Reg{"s"},
		Arrays: []Array{{Name: "buf", Len: 3}},
		Body: []Instr{
			New(OpAdd, "s", "a", "b"),
			Return("s"),
		},
	}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintSource(f)
	out := buf.String()

	for _, want := range []string{
		".function sum\n",
		".args a b\n",
		".locals s\n",
		".arrays buf[3]\n",
		"\tadd\ts, a, b\n",
		"\treturn\ts\n",
		".end\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
