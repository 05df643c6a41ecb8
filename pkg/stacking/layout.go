package stacking

import (
	"fmt"

	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

// DefaultStackAlign is the byte alignment of every frame.
const DefaultStackAlign = 8

// FrameLayout describes the activation record of one function. Locals are
// reserved before the body is rewritten; the register save area is
// reserved afterwards, once the rewritten body shows which registers it
// writes.
type FrameLayout struct {
	Frame *FrameTable

	ArgSlots int          // $a registers with a slot, min(len(Args), 4)
	Arrays   []mips.Array // arrays with storage in the frame
	Working  []mips.Reg   // $t registers saved and restored
	Saved    []mips.Reg   // $s registers saved and restored
	SaveRA   bool
	Padding  int // bytes

	TotalSize int
}

// alignUp rounds n up to a multiple of align
func alignUp(n, align int) int {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// argSlot returns the slot name of argument register i.
func argSlot(i int) string {
	return string(mips.ArgRegs[i])
}

// incomingOffset returns the $fp-relative offset of stack argument i (i >= 4).
func incomingOffset(i int) int {
	return mips.WordSize + mips.WordSize*(i-mips.NumArgRegs)
}

// ComputeLayout reserves the saved $fp, the argument register slots, array
// storage and a home slot for every virtual register of fn.
//
// Arguments passed in registers use their $a slot as home; stack arguments
// use their incoming slot in the caller's frame.
func ComputeLayout(fn *mips.Function) (*FrameLayout, error) {
	l := &FrameLayout{
		Frame:  NewFrameTable(),
		Arrays: fn.Arrays,
	}
	t := l.Frame

	if _, err := t.Reserve(SlotFP, mips.WordSize); err != nil {
		return nil, err
	}

	l.ArgSlots = min(len(fn.Args), mips.NumArgRegs)
	for i := 0; i < l.ArgSlots; i++ {
		if _, err := t.Reserve(argSlot(i), mips.WordSize); err != nil {
			return nil, err
		}
	}
	for i := mips.NumArgRegs; i < len(fn.Args); i++ {
		if err := t.Place(string(fn.Args[i]), incomingOffset(i)); err != nil {
			return nil, err
		}
	}

	for _, a := range fn.Arrays {
		if _, err := t.Reserve(ArraySlot(a.Name), a.Len*mips.WordSize); err != nil {
			return nil, err
		}
	}

	for _, r := range fn.VirtualRegs() {
		if fn.ArgIndex(r) >= 0 {
			continue
		}
		if _, err := t.Reserve(string(r), mips.WordSize); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Home returns the $fp-relative offset of virtual register r's home slot.
func (l *FrameLayout) Home(fn *mips.Function, r mips.Reg) (int, error) {
	name := string(r)
	if i := fn.ArgIndex(r); i >= 0 && i < mips.NumArgRegs {
		name = argSlot(i)
	}
	off, ok := l.Frame.Offset(name)
	if !ok {
		return 0, errors.New("no home slot for %v", r)
	}
	return off, nil
}

// Slot returns the offset of a named slot, panicking if it was never
// reserved. Only used for slots ComputeLayout or Finish always reserve.
func (l *FrameLayout) Slot(name string) int {
	off, ok := l.Frame.Offset(name)
	if !ok {
		panic(fmt.Sprintf("stacking: slot %q not reserved", name))
	}
	return off
}

// Finish reserves the register save area below the homes: working
// temporaries, padding up to align, then $ra and the callee-saved
// registers.
func (l *FrameLayout) Finish(working, saved []mips.Reg, saveRA bool, align int) error {
	t := l.Frame
	l.Working = working
	l.Saved = saved
	l.SaveRA = saveRA

	for _, r := range working {
		if _, err := t.Reserve(string(r), mips.WordSize); err != nil {
			return err
		}
	}

	tail := len(saved) * mips.WordSize
	if saveRA {
		tail += mips.WordSize
	}
	if pad := alignUp(t.Size()+tail, align) - (t.Size() + tail); pad > 0 {
		if _, err := t.Reserve(SlotPad, pad); err != nil {
			return err
		}
		l.Padding = pad
	}

	if saveRA {
		if _, err := t.Reserve(SlotRA, mips.WordSize); err != nil {
			return err
		}
	}
	for _, r := range saved {
		if _, err := t.Reserve(string(r), mips.WordSize); err != nil {
			return err
		}
	}

	l.TotalSize = t.Size()
	return nil
}
