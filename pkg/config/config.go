// Package config resolves compiler settings from defaults, an optional
// YAML file, RALPH_MIPS_* environment variables and command-line flags,
// in that order.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/backend"
	"github.com/raymyers/ralph-mips/pkg/regalloc"
	"github.com/raymyers/ralph-mips/pkg/stacking"
)

// EnvPrefix starts every environment variable the compiler reads.
const EnvPrefix = "RALPH_MIPS_"

// Config is the resolved compiler configuration.
type Config struct {
	Allocator  string `yaml:"allocator"`
	UseSaved   bool   `yaml:"use_saved"`
	Optimize   bool   `yaml:"optimize"`
	Entry      string `yaml:"entry"`
	StackAlign int    `yaml:"stack_align"`
	Parallel   bool   `yaml:"parallel"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Allocator:  string(regalloc.Local),
		Entry:      stacking.DefaultEntry,
		StackAlign: stacking.DefaultStackAlign,
	}
}

// Parse overlays YAML data on c. Unknown keys are an error.
func (c *Config) Parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(c)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "parse config")
	}
	return nil
}

// Load overlays the YAML file at path on c.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	if err := c.Parse(data); err != nil {
		return errors.Wrap(err, "%v", path)
	}
	return nil
}

// ApplyEnv overrides settings from RALPH_MIPS_* variables that are set.
// The environment is reread on every call.
func (c *Config) ApplyEnv() {
	env.Load()
	if env.Has(EnvPrefix + "ALLOCATOR") {
		c.Allocator = env.Str(EnvPrefix + "ALLOCATOR")
	}
	if env.Has(EnvPrefix + "USE_SAVED") {
		c.UseSaved = env.Bool(EnvPrefix + "USE_SAVED")
	}
	if env.Has(EnvPrefix + "OPTIMIZE") {
		c.Optimize = env.Bool(EnvPrefix + "OPTIMIZE")
	}
	if env.Has(EnvPrefix + "ENTRY") {
		c.Entry = env.Str(EnvPrefix + "ENTRY")
	}
	if env.Has(EnvPrefix + "STACK_ALIGN") {
		c.StackAlign = env.Int(EnvPrefix+"STACK_ALIGN", c.StackAlign)
	}
	if env.Has(EnvPrefix + "PARALLEL") {
		c.Parallel = env.Bool(EnvPrefix + "PARALLEL")
	}
}

// Flag names
const (
	FlagAllocator = "allocator"
	FlagUseSaved  = "use-saved"
	FlagOptimize  = "optimize"
	FlagEntry     = "entry"
	FlagParallel  = "parallel"
)

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP(FlagAllocator, "a", d.Allocator, "register allocator: naive, local, greedy or global")
	fs.Bool(FlagUseSaved, d.UseSaved, "allocate $s0-$s7 as well")
	fs.BoolP(FlagOptimize, "O", d.Optimize, "skip reloads of spilled values already in a scratch register")
	fs.String(FlagEntry, d.Entry, "function that starts and ends the program")
	fs.Bool(FlagParallel, d.Parallel, "compile functions concurrently")
}

// ApplyFlags overrides settings from flags set on the command line.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	if fs.Changed(FlagAllocator) {
		if c.Allocator, err = fs.GetString(FlagAllocator); err != nil {
			return err
		}
	}
	if fs.Changed(FlagUseSaved) {
		if c.UseSaved, err = fs.GetBool(FlagUseSaved); err != nil {
			return err
		}
	}
	if fs.Changed(FlagOptimize) {
		if c.Optimize, err = fs.GetBool(FlagOptimize); err != nil {
			return err
		}
	}
	if fs.Changed(FlagEntry) {
		if c.Entry, err = fs.GetString(FlagEntry); err != nil {
			return err
		}
	}
	if fs.Changed(FlagParallel) {
		if c.Parallel, err = fs.GetBool(FlagParallel); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := regalloc.ParseStrategy(c.Allocator); err != nil {
		return err
	}
	if c.Entry == "" {
		return errors.New("entry function name is empty")
	}
	if c.StackAlign <= 0 || c.StackAlign%4 != 0 {
		return errors.New("stack_align %d is not a positive multiple of 4", c.StackAlign)
	}
	return nil
}

// Options converts a valid configuration to backend options.
func (c Config) Options() (backend.Options, error) {
	if err := c.Validate(); err != nil {
		return backend.Options{}, err
	}
	s, _ := regalloc.ParseStrategy(c.Allocator)
	return backend.Options{
		Strategy:   s,
		UseSaved:   c.UseSaved,
		Optimize:   c.Optimize,
		Entry:      c.Entry,
		StackAlign: c.StackAlign,
		Parallel:   c.Parallel,
	}, nil
}
