package programs_test

import (
	"bytes"
	"strings"
	"testing"

	"vmbytecode/pkg/programs"
	"vmbytecode/pkg/vm"
)

func runImage(t *testing.T, build func() (string, *vm.Machine, error)) (string, *vm.Machine) {
	t.Helper()
	out, m, err := build()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if m.State() != vm.Halted {
		t.Fatalf("expected Halted, got %s", m.State())
	}
	return out, m
}

func TestFibonacci(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0\n"},
		{1, "1\n"},
		{2, "1\n"},
		{3, "2\n"},
		{6, "8\n"},
		{10, "55\n"},
	}

	for _, test := range tests {
		img := programs.Fibonacci(test.n)
		if err := img.Validate(); err != nil {
			t.Fatalf("fib(%d) image invalid: %v", test.n, err)
		}

		out, m := runImage(t, func() (string, *vm.Machine, error) {
			var buf bytes.Buffer
			m := img.NewMachine(vm.WithWriter(&buf))
			err := m.Run()
			return buf.String(), m, err
		})

		if out != test.want {
			t.Errorf("fib(%d): expected %q, got %q", test.n, test.want, out)
		}
		if len(m.Stack()) != 0 || m.Depth() != 0 {
			t.Errorf("fib(%d): left stack %v at depth %d", test.n, m.Stack(), m.Depth())
		}
	}
}

func TestFibonacciEntry(t *testing.T) {
	img := programs.Fibonacci(6)
	if img.Entry != programs.FibonacciEntry || len(img.Code) != 45 {
		t.Errorf("unexpected layout: entry %d, %d slots", img.Entry, len(img.Code))
	}
	if !strings.Contains(img.Disassemble(), "0025 CALL   0 1") {
		t.Errorf("recursive call missing from listing:\n%s", img.Disassemble())
	}
}

func TestFibonacciDeepRecursionOverflows(t *testing.T) {
	img := programs.Fibonacci(40)
	m := img.NewMachine(vm.WithWriter(&bytes.Buffer{}), vm.WithStackCapacity(16))

	err := m.Run()
	if vm.KindOf(err) != vm.StackOverflow {
		t.Errorf("expected StackOverflow, got %v", err)
	}
}

func TestAddAndCountdown(t *testing.T) {
	var buf bytes.Buffer
	if err := programs.Add(2, 3).NewMachine(vm.WithWriter(&buf)).Run(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "5\n" {
		t.Errorf("add: expected 5, got %q", buf.String())
	}

	buf.Reset()
	m := programs.Countdown(3).NewMachine(vm.WithWriter(&buf))
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "3\n2\n1\n" {
		t.Errorf("countdown: expected 3 2 1, got %q", buf.String())
	}
	if m.Locals()[0] != 0 {
		t.Errorf("countdown: expected counter 0, got %d", m.Locals()[0])
	}
}

func TestByName(t *testing.T) {
	img, err := programs.ByName("fib", 7)
	if err != nil {
		t.Fatal(err)
	}
	if img.Name != "fibonacci" || img.Code[39] != 7 {
		t.Errorf("fib lookup produced %+v", img)
	}

	add, err := programs.ByName("add", 3)
	if err != nil {
		t.Fatal(err)
	}
	if add.Code[1] != 3 || add.Code[3] != 3 {
		t.Errorf("add lookup should use the argument for both operands, got %v", add.Code)
	}

	if _, err := programs.ByName("nope", 0); err == nil || !strings.Contains(err.Error(), "fib") {
		t.Errorf("expected error listing available programs, got %v", err)
	}

	names := programs.Names()
	if strings.Join(names, ",") != "add,countdown,fib" {
		t.Errorf("unexpected names %v", names)
	}
}
