package runner_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vmbytecode/internal/runner"
	"vmbytecode/pkg/color"
	"vmbytecode/pkg/image"
	"vmbytecode/pkg/programs"
	"vmbytecode/pkg/vm"
)

func saveImage(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := image.Save(path, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunBuiltinFibonacci(t *testing.T) {
	var out bytes.Buffer
	r := runner.Runner{Program: "fib", ProgramArg: 6, NoColor: true, Out: &out}

	res, err := r.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.String() != "8\n" {
		t.Errorf("expected 8, got %q", out.String())
	}
	if res.State != vm.Halted || res.Fault != nil || len(res.Stack) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Steps == 0 {
		t.Error("expected steps to be counted")
	}
}

func TestRunImageFile(t *testing.T) {
	path := saveImage(t, "add.yaml", programs.Add(20, 22))

	var out bytes.Buffer
	r := runner.Runner{SourceFile: path, NoColor: true, Out: &out}

	res, err := r.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "42\n" {
		t.Errorf("expected 42, got %q", out.String())
	}
	if res.Image.Name != "add" {
		t.Errorf("expected image name add, got %q", res.Image.Name)
	}
}

func TestRunFault(t *testing.T) {
	path := saveImage(t, "bad.cbor", image.Image{Code: []int64{int64(vm.OpPop)}})

	r := runner.Runner{SourceFile: path, NoColor: true, Out: &bytes.Buffer{}}

	res, err := r.Run()
	if !errors.Is(err, vm.ErrStackUnderflow) {
		t.Fatalf("expected stack underflow, got %v", err)
	}
	if res == nil || res.State != vm.Faulted || res.Fault.Kind != vm.StackUnderflow {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunInputErrors(t *testing.T) {
	tests := []struct {
		name string
		r    runner.Runner
		want string
	}{
		{"nothing", runner.Runner{}, "no program"},
		{"both", runner.Runner{Program: "fib", SourceFile: "x.yaml"}, "not both"},
		{"unknown builtin", runner.Runner{Program: "nope"}, "unknown program"},
		{"missing file", runner.Runner{SourceFile: "missing.yaml"}, "loading image failed"},
		{"missing config", runner.Runner{Program: "fib", ConfigFile: "missing.toml"}, "configuration failed"},
	}

	for _, test := range tests {
		test.r.NoColor = true
		test.r.Out = &bytes.Buffer{}

		_, err := test.r.Run()
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: expected error containing %q, got %v", test.name, test.want, err)
		}
	}
}

func TestDisassembleWithoutRunning(t *testing.T) {
	var out bytes.Buffer
	r := runner.Runner{Program: "add", ProgramArg: 1, Disassemble: true, NoRun: true, NoColor: true, Out: &out}

	res, err := r.Run()
	if err != nil {
		t.Fatal(err)
	}

	want := "== add ==\n0000 CONST  1\n0002 CONST  1\n0004 ADD\n0005 PRINT\n0006 HALT\n"
	if out.String() != want {
		t.Errorf("expected listing:\n%s\ngot:\n%s", want, out.String())
	}
	if res.Steps != 0 {
		t.Errorf("expected no execution, got %d steps", res.Steps)
	}
}

func TestWriteImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fib.cbor")
	r := runner.Runner{Program: "fib", ProgramArg: 5, OutputFile: path, NoRun: true, NoColor: true, Out: &bytes.Buffer{}}

	if _, err := r.Run(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	again := runner.Runner{SourceFile: path, NoColor: true, Out: &out}
	if _, err := again.Run(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "5\n" {
		t.Errorf("expected fib(5) = 5, got %q", out.String())
	}
}

func TestConfigLimits(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "vm.toml")
	if err := os.WriteFile(cfgPath, []byte("[machine]\nmax_steps = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := runner.Runner{Program: "countdown", ProgramArg: 100, ConfigFile: cfgPath, NoColor: true, Out: &bytes.Buffer{}}
	res, err := r.Run()
	if !errors.Is(err, vm.ErrMaxStepsExceeded) {
		t.Fatalf("expected step limit, got %v", err)
	}
	if res.Steps != 5 {
		t.Errorf("expected 5 steps, got %d", res.Steps)
	}

	r = runner.Runner{Program: "fib", ProgramArg: 10, StackCapacity: 8, NoColor: true, Out: &bytes.Buffer{}}
	if _, err := r.Run(); !errors.Is(err, vm.ErrStackOverflow) {
		t.Errorf("expected overflow with capacity 8, got %v", err)
	}
}

func TestDumpStack(t *testing.T) {
	code := []int64{int64(vm.OpConst), 1, int64(vm.OpConst), 2, int64(vm.OpHalt)}
	path := saveImage(t, "rest.yaml", image.Image{Code: code})

	var out bytes.Buffer
	r := runner.Runner{SourceFile: path, DumpStack: true, NoColor: true, Out: &out}

	res, err := r.Run()
	if err != nil {
		t.Fatal(err)
	}

	want := "=== Residual Stack ===\n1: 2\n0: 1\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
	if len(res.Stack) != 2 {
		t.Errorf("expected two residual values, got %v", res.Stack)
	}
}

func TestOversizedRequestsAreRejected(t *testing.T) {
	big := saveImage(t, "big.cbor", image.Image{Locals: 1 << 62, Code: []int64{int64(vm.OpHalt)}})

	tests := []struct {
		name string
		r    runner.Runner
		want string
	}{
		{"image locals", runner.Runner{SourceFile: big}, "exceeds"},
		{"stack capacity flag", runner.Runner{Program: "fib", StackCapacity: 1 << 62}, "stack_capacity"},
	}

	for _, test := range tests {
		test.r.NoColor = true
		test.r.Out = &bytes.Buffer{}

		res, err := test.r.Run()
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: expected error containing %q, got %v", test.name, test.want, err)
		}
		if res != nil {
			t.Errorf("%s: expected no result, got %+v", test.name, res)
		}
	}

	cfgPath := filepath.Join(t.TempDir(), "vm.toml")
	if err := os.WriteFile(cfgPath, []byte("[machine]\nlocals = 4611686018427387904\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := runner.Runner{Program: "fib", ConfigFile: cfgPath, NoColor: true, Out: &bytes.Buffer{}}
	if _, err := r.Run(); err == nil || !strings.Contains(err.Error(), "machine.locals") {
		t.Errorf("expected config locals to be rejected, got %v", err)
	}
}

func TestColorSettingIsPerRun(t *testing.T) {
	prev := color.IsColorEnabled()
	defer color.EnableColor(prev)

	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	chdir(t, t.TempDir())

	plain := runner.Runner{Program: "add", ProgramArg: 1, NoColor: true, Out: &bytes.Buffer{}}
	if _, err := plain.Run(); err != nil {
		t.Fatal(err)
	}
	if color.IsColorEnabled() {
		t.Fatal("expected colors off for a -n run")
	}

	var out bytes.Buffer
	colored := runner.Runner{Program: "add", ProgramArg: 1, DumpStack: true, Out: &out}
	if _, err := colored.Run(); err != nil {
		t.Fatal(err)
	}
	if !color.IsColorEnabled() {
		t.Error("expected colors back on for the next run")
	}
	if !strings.Contains(out.String(), color.Green) {
		t.Errorf("expected colored stack header, got %q", out.String())
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
