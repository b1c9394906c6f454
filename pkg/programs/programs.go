// Package programs holds ready-made instruction streams used for demos and tests.
package programs

import (
	"fmt"
	"sort"

	"vmbytecode/pkg/image"
	"vmbytecode/pkg/vm"
)

// FibonacciEntry is the offset of the main routine in the Fibonacci program
const FibonacciEntry = 38

// Fibonacci returns a program that prints fib(n), computed by a recursive
// procedure with fib(0)=0 and fib(1)=fib(2)=1.
func Fibonacci(n int64) image.Image {
	const fib = 0

	code := []int64{
		// fib(n): if n == 0 return 0
		op(vm.OpLoad), -3, // 0
		op(vm.OpConst), 0, // 2
		op(vm.OpEq),       // 4
		op(vm.OpJmpf), 10, // 5
		op(vm.OpConst), 0, // 7
		op(vm.OpRet),      // 9
		// if n < 3 return 1
		op(vm.OpLoad), -3, // 10
		op(vm.OpConst), 3, // 12
		op(vm.OpLt),       // 14
		op(vm.OpJmpf), 20, // 15
		op(vm.OpConst), 1, // 17
		op(vm.OpRet),      // 19
		// return fib(n-1) + fib(n-2)
		op(vm.OpLoad), -3,     // 20
		op(vm.OpConst), 1,     // 22
		op(vm.OpSub),          // 24
		op(vm.OpCall), fib, 1, // 25
		op(vm.OpLoad), -3,     // 28
		op(vm.OpConst), 2,     // 30
		op(vm.OpSub),          // 32
		op(vm.OpCall), fib, 1, // 33
		op(vm.OpAdd),          // 36
		op(vm.OpRet),          // 37
		// main
		op(vm.OpConst), n,     // 38
		op(vm.OpCall), fib, 1, // 40
		op(vm.OpPrint),        // 43
		op(vm.OpHalt),         // 44
	}

	return image.Image{
		Name:   "fibonacci",
		Entry:  FibonacciEntry,
		Locals: 0,
		Code:   code,
	}
}

// Add returns a program that prints a+b
func Add(a, b int64) image.Image {
	return image.Image{
		Name:  "add",
		Entry: 0,
		Code: []int64{
			op(vm.OpConst), a,
			op(vm.OpConst), b,
			op(vm.OpAdd),
			op(vm.OpPrint),
			op(vm.OpHalt),
		},
	}
}

// Countdown returns a program that prints n, n-1, ..., 1 using a global counter
// in locals slot 0 and a conditional back-edge.
func Countdown(n int64) image.Image {
	return image.Image{
		Name:   "countdown",
		Entry:  0,
		Locals: 1,
		Code: []int64{
			op(vm.OpConst), n,  // 0
			op(vm.OpGstore), 0, // 2
			// loop: while locals[0] > 0
			op(vm.OpConst), 0,  // 4
			op(vm.OpGload),     // 6
			op(vm.OpConst), 0,  // 7
			op(vm.OpGt),        // 9
			op(vm.OpJmpf), 26,  // 10
			op(vm.OpConst), 0,  // 12
			op(vm.OpGload),     // 14
			op(vm.OpPrint),     // 15
			op(vm.OpConst), 0,  // 16
			op(vm.OpGload),     // 18
			op(vm.OpConst), 1,  // 19
			op(vm.OpSub),       // 21
			op(vm.OpGstore), 0, // 22
			op(vm.OpJmp), 4,    // 24
			op(vm.OpHalt),      // 26
		},
	}
}

// builtins take a single argument; add doubles it
var builtins = map[string]func(arg int64) image.Image{
	"fib":       Fibonacci,
	"add":       func(arg int64) image.Image { return Add(arg, arg) },
	"countdown": Countdown,
}

// ByName returns the built-in program called name, parameterised by arg
func ByName(name string, arg int64) (image.Image, error) {
	build, ok := builtins[name]
	if !ok {
		return image.Image{}, fmt.Errorf("unknown program %q (available: %v)", name, Names())
	}

	return build(arg), nil
}

// Names lists the built-in program names in sorted order
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func op(o vm.Opcode) int64 {
	return int64(o)
}
