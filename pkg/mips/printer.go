package mips

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs MIPS assembly in MARS syntax
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new assembly printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintHeader outputs the text section directive and exports entry.
func (p *Printer) PrintHeader(entry string) {
	fmt.Fprintf(p.w, "\t.text\n")
	fmt.Fprintf(p.w, "\t.globl\t%s\n", entry)
}

// PrintFunction outputs the function label followed by each section in
// order. Sections are typically prologue, body, epilogue and return.
func (p *Printer) PrintFunction(name string, sections ...[]Instr) {
	fmt.Fprintf(p.w, "\n%s:\n", name)
	for _, code := range sections {
		p.PrintCode(code)
	}
}

// PrintCode outputs a run of instructions.
func (p *Printer) PrintCode(code []Instr) {
	for _, in := range code {
		p.PrintInstr(in)
	}
}

// PrintInstr outputs a single instruction. Labels are not indented.
func (p *Printer) PrintInstr(in Instr) {
	if in.Op == OpLabel {
		fmt.Fprintf(p.w, "%s:\n", in.Target)
		return
	}
	if ops := in.Operands(); ops != "" {
		fmt.Fprintf(p.w, "\t%s\t%s\n", in.Op, ops)
		return
	}
	fmt.Fprintf(p.w, "\t%s\n", in.Op)
}

// PrintSource outputs a function in the virtual assembly input syntax, so
// that parsing the output yields the same function.
func (p *Printer) PrintSource(f *Function) {
	fmt.Fprintf(p.w, ".function %s\n", f.Name)
	if len(f.Args) > 0 {
		fmt.Fprintf(p.w, ".args %s\n", joinRegs(f.Args))
	}
	if len(f.Locals) > 0 {
		fmt.Fprintf(p.w, ".locals %s\n", joinRegs(f.Locals))
	}
	if len(f.Arrays) > 0 {
		parts := make([]string, len(f.Arrays))
		for i, a := range f.Arrays {
			parts[i] = fmt.Sprintf("%s[%d]", a.Name, a.Len)
		}
		fmt.Fprintf(p.w, ".arrays %s\n", strings.Join(parts, " "))
	}
	p.PrintCode(f.Body)
	fmt.Fprintf(p.w, ".end\n")
}

func joinRegs(regs []Reg) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
