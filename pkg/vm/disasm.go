package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of an instruction stream
func Disassemble(code []int64, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	offset := 0
	for offset < len(code) {
		var line string
		line, offset = DisassembleInstruction(code, offset)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// DisassembleInstruction renders the instruction at offset and returns the offset of the next one
func DisassembleInstruction(code []int64, offset int) (string, int) {
	if offset < 0 || offset >= len(code) {
		return fmt.Sprintf("%04d <out of range>", offset), offset + 1
	}

	op := Opcode(code[offset])
	if !op.Valid() {
		return fmt.Sprintf("%04d %s", offset, op), offset + 1
	}

	n := op.Operands()
	if n == 0 {
		return fmt.Sprintf("%04d %s", offset, op), offset + 1
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%04d %-6s", offset, op))

	for i := 1; i <= n; i++ {
		if offset+i >= len(code) {
			sb.WriteString(" <truncated>")
			return sb.String(), len(code)
		}
		sb.WriteString(fmt.Sprintf(" %d", code[offset+i]))
	}

	return sb.String(), offset + n + 1
}
