package mips

// Intrinsic is a built-in routine that a call lowers to a system call
// instead of a jal.
type Intrinsic struct {
	Name    string
	Syscall int
	Args    int  // value arguments, passed in $a0
	Returns bool // result comes back in $v0
}

// MARS system call codes used by the intrinsics.
const (
	SyscallPrintInt  = 1
	SyscallReadInt   = 5
	SyscallExit      = 10
	SyscallPrintChar = 11
	SyscallReadChar  = 12
)

var intrinsics = map[string]Intrinsic{
	"puti": {Name: "puti", Syscall: SyscallPrintInt, Args: 1},
	"putc": {Name: "putc", Syscall: SyscallPrintChar, Args: 1},
	"geti": {Name: "geti", Syscall: SyscallReadInt, Returns: true},
	"getc": {Name: "getc", Syscall: SyscallReadChar, Returns: true},
}

// LookupIntrinsic returns the intrinsic called name.
func LookupIntrinsic(name string) (Intrinsic, bool) {
	in, ok := intrinsics[name]
	return in, ok
}
