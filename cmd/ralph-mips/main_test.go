package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const factorial = `
.function fact
.args n
.locals r
    li r, 1
    blez n, done
    addi t, n, -1
    callr r, fact, t
    mult r, n
    mflo r
done:
    return r
.end

.function main
    li x, 5
    callr v, fact, x
    move $a0, v
    li $v0, 1
    syscall
    return
.end
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := []string{"allocator", "use-saved", "optimize", "entry", "parallel", "config", "output", "dsel", "dcfg", "dregalloc", "run", "verbose"}
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	out, _, err := execute(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ralph-mips") {
		t.Errorf("expected help text, got %q", out)
	}
}

func TestMissingFile(t *testing.T) {
	_, errOut, err := execute(t, filepath.Join(t.TempDir(), "missing.vasm"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.HasPrefix(errOut, "ralph-mips: ") {
		t.Errorf("expected error prefixed with ralph-mips:, got %q", errOut)
	}
}

func TestParseErrorReported(t *testing.T) {
	path := writeFile(t, "bad.vasm", ".function main\n    frobnicate x\n.end\n")
	_, errOut, err := execute(t, path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(errOut, "bad.vasm") {
		t.Errorf("expected file name in error, got %q", errOut)
	}
}

func TestCompileErrorReported(t *testing.T) {
	path := writeFile(t, "label.vasm", ".function main\n    beq $t0, $t1, nowhere\n    return\n.end\n")
	_, errOut, err := execute(t, path)
	if err == nil {
		t.Fatal("expected unresolved label error")
	}
	if !strings.Contains(errOut, "nowhere") {
		t.Errorf("expected label name in error, got %q", errOut)
	}
}

func TestCompileToStdout(t *testing.T) {
	path := writeFile(t, "fact.vasm", factorial)
	out, _, err := execute(t, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"\t.globl\tmain\n", "\nmain:\n", "\nfact:\n", "\tjal\tfact\n", "fact.done:\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\nGot:\n%s", want, out)
		}
	}
	if strings.Index(out, "\nmain:") > strings.Index(out, "\nfact:") {
		t.Errorf("expected entry function first\nGot:\n%s", out)
	}
}

func TestOutputFile(t *testing.T) {
	path := writeFile(t, "fact.vasm", factorial)
	dest := filepath.Join(t.TempDir(), "fact.s")

	out, _, err := execute(t, "-o", dest, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if !strings.Contains(string(data), "\nfact:\n") {
		t.Errorf("unexpected output file content:\n%s", data)
	}
}

func TestOutputFileError(t *testing.T) {
	path := writeFile(t, "fact.vasm", factorial)
	dest := filepath.Join(t.TempDir(), "missing", "fact.s")

	_, errOut, err := execute(t, "-o", dest, path)
	if err == nil {
		t.Fatal("expected error for unwritable output path")
	}
	if !strings.Contains(errOut, "fact.s") {
		t.Errorf("expected output path in error, got %q", errOut)
	}
}

func TestRun(t *testing.T) {
	path := writeFile(t, "fact.vasm", factorial)
	for _, alloc := range []string{"naive", "local", "greedy", "global"} {
		t.Run(alloc, func(t *testing.T) {
			out, errOut, err := execute(t, "--run", "-a", alloc, path)
			if err != nil {
				t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut)
			}
			if out != "120" {
				t.Errorf("printed %q, want %q", out, "120")
			}
		})
	}
}

func TestDumpCFG(t *testing.T) {
	path := writeFile(t, "fact.vasm", factorial)
	out, _, err := execute(t, "--dcfg", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"func fact\n", "func main\n", "block 0 "} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\nGot:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\t.text") {
		t.Errorf("--dcfg should not print assembly\nGot:\n%s", out)
	}
}

const factorialIR = `
#start_function
int fact(int n):
int-list: r, t
float-list:
    assign, r, 1
    brleq, done, n, 0
    sub, t, n, 1
    callr, r, fact, t
    mult, r, r, n
done:
    return, r
#end_function

#start_function
void main():
int-list: x, v
float-list:
    callr, x, geti
    callr, v, fact, x
    call, puti, v
    return,
#end_function
`

func TestRunTigerIR(t *testing.T) {
	path := writeFile(t, "fact.ir", factorialIR)
	for _, alloc := range []string{"naive", "local", "greedy", "global"} {
		t.Run(alloc, func(t *testing.T) {
			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out, &errOut)
			cmd.SetIn(strings.NewReader("5\n"))
			cmd.SetArgs([]string{"--run", "-a", alloc, path})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut.String())
			}
			if out.String() != "120" {
				t.Errorf("printed %q, want %q", out.String(), "120")
			}
		})
	}
}

func TestDumpSelection(t *testing.T) {
	path := writeFile(t, "fact.ir", factorialIR)
	out, _, err := execute(t, "--dsel", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{".function fact\n", ".args n\n", "\tmflo\tr\n", "\tcallr\tx, geti\n", "\tcall\tputi, v\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\nGot:\n%s", want, out)
		}
	}
}

func TestTigerIRErrorReported(t *testing.T) {
	path := writeFile(t, "bad.ir", "#start_function\nint f():\nint-list:\nfloat-list:\n  assign, x, 1\n#end_function\n")
	_, errOut, err := execute(t, path)
	if err == nil {
		t.Fatal("expected error for undeclared variable")
	}
	if !strings.Contains(errOut, "bad.ir") || !strings.Contains(errOut, "line 5") {
		t.Errorf("expected file and line in error, got %q", errOut)
	}
}

func TestConfigPrecedence(t *testing.T) {
	path := writeFile(t, "fact.vasm", factorial)
	conf := writeFile(t, "ralph-mips.yaml", "allocator: naive\n")

	tests := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{"file", "", []string{"--config", conf}, "(naive)"},
		{"env over file", "greedy", []string{"--config", conf}, "(greedy)"},
		{"flag over env", "greedy", []string{"--config", conf, "-a", "global"}, "(global)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("RALPH_MIPS_ALLOCATOR", tt.env)
			}
			args := append(append([]string{"--dregalloc"}, tt.args...), path)
			out, errOut, err := execute(t, args...)
			if err != nil {
				t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut)
			}
			if !strings.Contains(out, "func fact "+tt.want) {
				t.Errorf("expected %q in dump\nGot:\n%s", tt.want, out)
			}
		})
	}
}

func TestInvalidAllocator(t *testing.T) {
	path := writeFile(t, "fact.vasm", factorial)
	_, errOut, err := execute(t, "-a", "linear-scan", path)
	if err == nil {
		t.Fatal("expected error for unknown allocator")
	}
	if !strings.Contains(errOut, "linear-scan") {
		t.Errorf("expected allocator name in error, got %q", errOut)
	}
}
