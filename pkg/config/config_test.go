package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-mips/pkg/regalloc"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	opts, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, regalloc.Local, opts.Strategy)
	assert.Equal(t, "main", opts.Entry)
	assert.Equal(t, 8, opts.StackAlign)
	assert.False(t, opts.Parallel)
}

func TestParse(t *testing.T) {
	c := Default()
	require.NoError(t, c.Parse([]byte("allocator: global\nuse_saved: true\nstack_align: 16\n")))

	assert.Equal(t, "global", c.Allocator)
	assert.True(t, c.UseSaved)
	assert.Equal(t, 16, c.StackAlign)
	assert.Equal(t, "main", c.Entry, "unset keys keep their value")
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	c := Default()
	assert.Error(t, c.Parse([]byte("allocater: global\n")))
}

func TestParseEmpty(t *testing.T) {
	c := Default()
	require.NoError(t, c.Parse(nil))
	assert.Equal(t, Default(), c)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph-mips.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimize: true\nentry: start\n"), 0o644))

	c := Default()
	require.NoError(t, c.Load(path))
	assert.True(t, c.Optimize)
	assert.Equal(t, "start", c.Entry)

	err := c.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RALPH_MIPS_ALLOCATOR", "naive")
	t.Setenv("RALPH_MIPS_OPTIMIZE", "true")
	t.Setenv("RALPH_MIPS_STACK_ALIGN", "16")

	c := Default()
	c.Entry = "start"
	c.ApplyEnv()

	assert.Equal(t, "naive", c.Allocator)
	assert.True(t, c.Optimize)
	assert.Equal(t, 16, c.StackAlign)
	assert.Equal(t, "start", c.Entry, "unset variables leave settings alone")
}

func TestApplyEnvSeesLaterChanges(t *testing.T) {
	t.Setenv("RALPH_MIPS_ALLOCATOR", "")
	c := Default()
	c.ApplyEnv()
	assert.Equal(t, Default().Allocator, c.Allocator)

	t.Setenv("RALPH_MIPS_ALLOCATOR", "greedy")
	c.ApplyEnv()
	assert.Equal(t, "greedy", c.Allocator)

	t.Setenv("RALPH_MIPS_ALLOCATOR", "global")
	c.ApplyEnv()
	assert.Equal(t, "global", c.Allocator)
}

func TestFlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-a", "global", "-O"}))

	c := Default()
	c.Allocator = "naive"
	c.Parallel = true
	require.NoError(t, c.ApplyFlags(fs))

	assert.Equal(t, "global", c.Allocator)
	assert.True(t, c.Optimize)
	assert.True(t, c.Parallel, "flags not given keep earlier settings")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"allocator", func(c *Config) { c.Allocator = "linear-scan" }},
		{"entry", func(c *Config) { c.Entry = "" }},
		{"zero alignment", func(c *Config) { c.StackAlign = 0 }},
		{"odd alignment", func(c *Config) { c.StackAlign = 6 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.Error(t, c.Validate())
			_, err := c.Options()
			assert.Error(t, err)
		})
	}
}
