// Package vm implements a stack-based bytecode machine for integer programs.
//
// A program is a flat []int64 in which every opcode is followed by a fixed
// number of operands. Procedure frames live on the operand stack itself: CALL
// pushes the argument count, the caller's frame pointer and the return
// address, and RET unwinds exactly those three slots plus the arguments.
package vm

import "fmt"

// Opcode selects the operation performed by one dispatch cycle
type Opcode int64

// Opcode values start at 1; zero is never a valid instruction.
const (
	OpAdd Opcode = iota + 1
	OpSub
	OpMul
	OpDiv

	OpLt
	OpGt
	OpEq

	OpJmp
	OpJmpt
	OpJmpf

	OpConst

	OpLoad
	OpGload
	OpStore
	OpGstore

	OpPrint
	OpPop
	OpHalt

	OpCall
	OpRet
)

var opcodeNames = map[Opcode]string{
	OpAdd:    "ADD",
	OpSub:    "SUB",
	OpMul:    "MUL",
	OpDiv:    "DIV",
	OpLt:     "LT",
	OpGt:     "GT",
	OpEq:     "EQ",
	OpJmp:    "JMP",
	OpJmpt:   "JMPT",
	OpJmpf:   "JMPF",
	OpConst:  "CONST",
	OpLoad:   "LOAD",
	OpGload:  "GLOAD",
	OpStore:  "STORE",
	OpGstore: "GSTORE",
	OpPrint:  "PRINT",
	OpPop:    "POP",
	OpHalt:   "HALT",
	OpCall:   "CALL",
	OpRet:    "RET",
}

// String returns the mnemonic of the opcode
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}

	return fmt.Sprintf("OP(%d)", int64(op))
}

// Valid reports whether op is a known instruction
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Operands returns how many stream slots follow the opcode
func (op Opcode) Operands() int {
	switch op {
	case OpJmp, OpJmpt, OpJmpf, OpConst, OpLoad, OpStore, OpGstore:
		return 1
	case OpCall:
		return 2
	default:
		return 0
	}
}

// LookupOpcode maps a mnemonic such as "ADD" back to its opcode
func LookupOpcode(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}

	return 0, false
}
