// Package config handles the stackvm.toml host configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"

	"vmbytecode/pkg/vm"
)

// DefaultFile is looked up in the working directory when no path is given
const DefaultFile = "stackvm.toml"

// Config represents a stackvm.toml file
type Config struct {
	Machine Machine `toml:"machine"`
	Output  Output  `toml:"output"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// Machine sizes the machine and bounds its execution
type Machine struct {
	StackCapacity int `toml:"stack_capacity"`
	Locals        int `toml:"locals"` // overrides the image's locals size when > 0
	MaxSteps      int `toml:"max_steps"`
}

// Output controls what the host prints around a run
type Output struct {
	Color     bool `toml:"color"`
	Trace     bool `toml:"trace"`
	DumpStack bool `toml:"dump_stack"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Machine: Machine{
			StackCapacity: vm.DefaultStackCapacity,
			Locals:        0,
			MaxSteps:      0,
		},
		Output: Output{
			Color: true,
		},
	}
}

// Load parses the file at path on top of the defaults. An empty path tries
// DefaultFile and falls back to the defaults if it does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values a machine cannot use
func (c *Config) Validate() error {
	if c.Machine.StackCapacity <= 0 {
		return fmt.Errorf("machine.stack_capacity must be positive, got %d", c.Machine.StackCapacity)
	}
	if c.Machine.StackCapacity > vm.MaxStackCapacity {
		return fmt.Errorf("machine.stack_capacity must be at most %d, got %d", vm.MaxStackCapacity, c.Machine.StackCapacity)
	}
	if c.Machine.Locals < 0 {
		return fmt.Errorf("machine.locals must not be negative, got %d", c.Machine.Locals)
	}
	if c.Machine.Locals > vm.MaxLocals {
		return fmt.Errorf("machine.locals must be at most %d, got %d", vm.MaxLocals, c.Machine.Locals)
	}
	if c.Machine.MaxSteps < 0 {
		return fmt.Errorf("machine.max_steps must not be negative, got %d", c.Machine.MaxSteps)
	}

	return nil
}

// MachineOptions turns the machine section into vm options
func (c *Config) MachineOptions() []vm.Option {
	return []vm.Option{
		vm.WithStackCapacity(c.Machine.StackCapacity),
		vm.WithMaxSteps(c.Machine.MaxSteps),
	}
}
