package mips

import "tlog.app/go/errors"

// Array is a function-local word array. Its name is a virtual register
// that holds the array's base address.
type Array struct {
	Name Reg
	Len  int // in words
}

// Function is an instruction-selected function over virtual registers.
type Function struct {
	Name   string
	Args   []Reg
	Locals []Reg
	Arrays []Array
	Body   []Instr
}

// Program is a list of functions in source order.
type Program struct {
	Functions []Function
}

// Function returns the function called name.
func (p *Program) Function(name string) (*Function, bool) {
	for i := range p.Functions {
		if p.Functions[i].Name == name {
			return &p.Functions[i], true
		}
	}
	return nil, false
}

// VirtualRegs returns every virtual register of the function in order of
// first appearance: arguments, declared locals, array names, then the body.
func (f *Function) VirtualRegs() []Reg {
	seen := make(map[Reg]bool)
	var out []Reg
	add := func(r Reg) {
		if r.IsVirtual() && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range f.Args {
		add(r)
	}
	for _, r := range f.Locals {
		add(r)
	}
	for _, a := range f.Arrays {
		add(a.Name)
	}
	for _, in := range f.Body {
		for _, r := range in.Regs {
			add(r)
		}
	}
	return out
}

// ArgIndex returns the position of r in the argument list, or -1.
func (f *Function) ArgIndex(r Reg) int {
	return indexOf(f.Args, r)
}

// Validate checks every body instruction and the declarations.
func (f *Function) Validate() error {
	if f.Name == "" {
		return errors.New("function without a name")
	}
	if _, ok := LookupIntrinsic(f.Name); ok {
		return errors.New("func %v: name is reserved for an intrinsic", f.Name)
	}
	seen := make(map[Reg]string)
	declare := func(r Reg, what string) error {
		if !r.IsVirtual() {
			return errors.New("func %v: %s %q is not a virtual register", f.Name, what, r)
		}
		if prev, ok := seen[r]; ok {
			return errors.New("func %v: %s %q already declared as %s", f.Name, what, r, prev)
		}
		seen[r] = what
		return nil
	}
	for _, r := range f.Args {
		if err := declare(r, "argument"); err != nil {
			return err
		}
	}
	for _, r := range f.Locals {
		if err := declare(r, "local"); err != nil {
			return err
		}
	}
	for _, a := range f.Arrays {
		if err := declare(a.Name, "array"); err != nil {
			return err
		}
		if a.Len <= 0 {
			return errors.New("func %v: array %q has non-positive length %d", f.Name, a.Name, a.Len)
		}
	}
	for _, in := range f.Body {
		if err := in.Validate(); err != nil {
			return err
		}
	}
	return nil
}
