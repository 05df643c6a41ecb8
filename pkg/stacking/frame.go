// Package stacking lays out activation records and rewrites allocated code
// into frame-pointer-relative MIPS: spill shuttling, block glue, calling
// convention, prologue, epilogue and return sequence.
package stacking

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

// Frame layout (called function's view), addresses descending:
//
//	+---------------------------+
//	| stack argument 5, 6, ...  |  $fp + 8, ...
//	| stack argument 4          |  $fp + 4
//	+---------------------------+  <- $sp on entry
//	| saved $fp                 |  $fp + 0
//	| $a0 .. $a3 slots          |
//	| arrays                    |
//	| scalar homes              |
//	| working temporaries       |
//	| padding                   |
//	| $ra                       |  non-entry functions only
//	| callee-saved $s registers |
//	+---------------------------+  <- $sp after the prologue

// Slot names that are not virtual registers
const (
	SlotFP  = "$fp"
	SlotRA  = "$ra"
	SlotPad = "<pad>"
)

// ArraySlot names the storage of an array. The array's own name holds its
// base address.
func ArraySlot(name mips.Reg) string { return string(name) + "[]" }

// FrameError reports an invalid frame reservation.
type FrameError struct {
	Name   string
	Bytes  int
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame slot %q (%d bytes): %s", e.Name, e.Bytes, e.Reason)
}

// FrameTable maps slot names to $fp-relative byte offsets. Reservations
// grow downward from the saved $fp at offset 0; each reservation's offset
// is the lowest address of its block.
type FrameTable struct {
	offsets map[string]int
	order   []string
	size    int
}

// NewFrameTable creates an empty table
func NewFrameTable() *FrameTable {
	return &FrameTable{offsets: make(map[string]int)}
}

// Reserve allocates bytes below everything reserved so far.
func (t *FrameTable) Reserve(name string, bytes int) (int, error) {
	switch {
	case bytes <= 0:
		return 0, &FrameError{Name: name, Bytes: bytes, Reason: "size must be positive"}
	case bytes%mips.WordSize != 0:
		return 0, &FrameError{Name: name, Bytes: bytes, Reason: "size must be a multiple of 4"}
	}
	if _, ok := t.offsets[name]; ok {
		return 0, &FrameError{Name: name, Bytes: bytes, Reason: "already reserved"}
	}

	off := -(t.size + bytes - mips.WordSize)
	t.size += bytes
	t.offsets[name] = off
	t.order = append(t.order, name)
	return off, nil
}

// Place records a slot that lives in the caller's frame, such as an
// incoming stack argument. It does not grow the frame.
func (t *FrameTable) Place(name string, offset int) error {
	if offset%mips.WordSize != 0 {
		return &FrameError{Name: name, Bytes: mips.WordSize, Reason: fmt.Sprintf("offset %d is not word aligned", offset)}
	}
	if _, ok := t.offsets[name]; ok {
		return &FrameError{Name: name, Bytes: mips.WordSize, Reason: "already reserved"}
	}
	t.offsets[name] = offset
	t.order = append(t.order, name)
	return nil
}

// Offset returns the offset of a slot.
func (t *FrameTable) Offset(name string) (int, bool) {
	off, ok := t.offsets[name]
	return off, ok
}

// Has reports whether name has a slot.
func (t *FrameTable) Has(name string) bool {
	_, ok := t.offsets[name]
	return ok
}

// Size returns the number of bytes reserved in this frame, including the
// saved $fp.
func (t *FrameTable) Size() int { return t.size }

// Names returns slot names in reservation order.
func (t *FrameTable) Names() []string {
	return append([]string(nil), t.order...)
}

func (t *FrameTable) String() string {
	var b strings.Builder
	for _, name := range t.order {
		fmt.Fprintf(&b, "%6d  %s\n", t.offsets[name], name)
	}
	return b.String()
}
