package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vmbytecode/internal/config"
	"vmbytecode/pkg/vm"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Machine.StackCapacity != vm.DefaultStackCapacity {
		t.Errorf("expected capacity %d, got %d", vm.DefaultStackCapacity, cfg.Machine.StackCapacity)
	}
	if !cfg.Output.Color {
		t.Error("expected color on by default")
	}
	if cfg.Path != "" {
		t.Errorf("expected empty path for defaults, got %q", cfg.Path)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "vm.toml", `
[machine]
stack_capacity = 256
locals = 8
max_steps = 1000

[output]
color = false
trace = true
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Machine.StackCapacity != 256 || cfg.Machine.Locals != 8 || cfg.Machine.MaxSteps != 1000 {
		t.Errorf("unexpected machine section: %+v", cfg.Machine)
	}
	if cfg.Output.Color || !cfg.Output.Trace || cfg.Output.DumpStack {
		t.Errorf("unexpected output section: %+v", cfg.Output)
	}
	if cfg.Path != path {
		t.Errorf("expected path %q, got %q", path, cfg.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[machine]\nstack_size = 3\n", "unknown key"},
		{"bad capacity", "[machine]\nstack_capacity = 0\n", "stack_capacity"},
		{"huge capacity", "[machine]\nstack_capacity = 4611686018427387904\n", "stack_capacity"},
		{"huge locals", "[machine]\nlocals = 4611686018427387904\n", "machine.locals"},
		{"negative steps", "[machine]\nmax_steps = -1\n", "max_steps"},
		{"syntax", "[machine\n", "parse error"},
	}

	for _, test := range tests {
		path := writeFile(t, dir, strings.ReplaceAll(test.name, " ", "_")+".toml", test.body)
		_, err := config.Load(path)
		if err == nil {
			t.Errorf("%s: expected error", test.name)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: error %q should contain %q", test.name, err, test.want)
		}
	}

	if _, err := config.Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for explicit missing file")
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
