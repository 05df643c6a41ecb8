package main

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// E2ETestCase represents a single end-to-end test case
type E2ETestCase struct {
	Name         string   `yaml:"name"`
	Input        string   `yaml:"input"`
	Args         []string `yaml:"args,omitempty"`   // Extra flags, e.g. the allocator
	Expect       []string `yaml:"expect"`           // Strings that must appear in output
	ExpectOrder  []string `yaml:"expect_order"`     // Strings that must appear in this order
	ExpectUnique []string `yaml:"expect_unique"`    // Strings that must appear exactly once
	ExpectNot    []string `yaml:"expect_not"`       // Strings that must NOT appear in output
	Output       *string  `yaml:"output,omitempty"` // Program output when run on the simulator
	Skip         string   `yaml:"skip,omitempty"`   // Reason to skip this test
}

// E2ETestFile represents the e2e.yaml file structure
type E2ETestFile struct {
	Tests []E2ETestCase `yaml:"tests"`
}

func loadE2E(t *testing.T) []E2ETestCase {
	t.Helper()
	data, err := os.ReadFile("../../testdata/e2e.yaml")
	if err != nil {
		t.Fatalf("e2e.yaml not found: %v", err)
	}

	var testFile E2ETestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse e2e.yaml: %v", err)
	}
	return testFile.Tests
}

// TestE2EAsmYAML checks the emitted assembly against the patterns in e2e.yaml
func TestE2EAsmYAML(t *testing.T) {
	for _, tc := range loadE2E(t) {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			path := writeFile(t, "test.vasm", tc.Input)
			args := append(append([]string{}, tc.Args...), path)
			output, errOut, err := execute(t, args...)
			if err != nil {
				t.Fatalf("ralph-mips failed: %v\nStderr: %s", err, errOut)
			}

			// Check that all expected strings appear in output
			for _, exp := range tc.Expect {
				if !strings.Contains(output, exp) {
					t.Errorf("expected output to contain %q\nGot:\n%s", exp, output)
				}
			}

			// Check that strings appear in specified order
			if len(tc.ExpectOrder) > 0 {
				lastIdx := -1
				for _, exp := range tc.ExpectOrder {
					idx := strings.Index(output, exp)
					if idx == -1 {
						t.Errorf("expected output to contain %q for order check\nGot:\n%s", exp, output)
					} else if idx <= lastIdx {
						t.Errorf("expected %q to appear after previous pattern (position %d vs %d)\nGot:\n%s", exp, idx, lastIdx, output)
					}
					lastIdx = idx
				}
			}

			// Check that strings appear exactly once
			for _, exp := range tc.ExpectUnique {
				count := strings.Count(output, exp)
				if count != 1 {
					t.Errorf("expected %q to appear exactly once, found %d times\nGot:\n%s", exp, count, output)
				}
			}

			// Check that strings do NOT appear
			for _, exp := range tc.ExpectNot {
				if strings.Contains(output, exp) {
					t.Errorf("expected output NOT to contain %q\nGot:\n%s", exp, output)
				}
			}
		})
	}
}

// TestE2ERunYAML runs every program with an expected output under each
// allocator and compares what it prints
func TestE2ERunYAML(t *testing.T) {
	allocators := []string{"naive", "local", "greedy", "global"}

	for _, tc := range loadE2E(t) {
		if tc.Output == nil {
			continue
		}
		for _, alloc := range allocators {
			t.Run(tc.Name+"/"+alloc, func(t *testing.T) {
				if tc.Skip != "" {
					t.Skip(tc.Skip)
				}

				path := writeFile(t, "test.vasm", tc.Input)
				for _, extra := range [][]string{nil, {"-O"}, {"--use-saved"}} {
					args := append([]string{"--run", "-a", alloc}, extra...)
					output, errOut, err := execute(t, append(args, path)...)
					if err != nil {
						t.Fatalf("ralph-mips %v failed: %v\nStderr: %s", extra, err, errOut)
					}
					if output != *tc.Output {
						t.Errorf("ralph-mips %v printed %q, want %q", extra, output, *tc.Output)
					}
				}
			})
		}
	}
}
