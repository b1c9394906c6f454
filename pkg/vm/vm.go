package vm

import "io"

// TraceEvent describes the instruction about to execute
type TraceEvent struct {
	Step     int     // number of instructions already dispatched
	PC       int     // offset of the opcode
	Op       Opcode  // decoded opcode
	Operands []int64 // operand slots following the opcode (may be short at end of program)
	SP       int     // stack pointer before execution
	FP       int     // frame pointer before execution
	Depth    int     // active frames before execution
}

// Step executes a single instruction, returning (halted, error).
// Once the machine is Halted or Faulted, Step reports that outcome again and does nothing.
func (m *Machine) Step() (bool, error) {
	switch m.state {
	case Halted:
		return true, nil
	case Faulted:
		return false, m.fault
	}

	if m.maxSteps > 0 && m.steps >= m.maxSteps {
		m.opPC, m.op = m.pc, 0
		return false, m.fail(m.faultf(StepLimitExceeded, nil, "budget of %d steps spent", m.maxSteps))
	}

	halted, err := coreStep(m)
	m.steps++

	if err != nil {
		return false, m.fail(err)
	}

	if halted {
		m.state = Halted
	}

	return halted, nil
}

// Run executes until halt or fault
func (m *Machine) Run() error {
	for {
		halted, err := m.Step()
		if err != nil {
			return err
		}

		if halted {
			return nil
		}
	}
}

// Exec runs code from entry with a fresh machine writing to w and returns the machine for inspection
func Exec(code []int64, entry int, locals int, w io.Writer) (*Machine, error) {
	m := New(code, entry, locals, WithWriter(w))
	return m, m.Run()
}

// operandsAt returns up to n slots starting at pc without faulting
func (m *Machine) operandsAt(pc, n int) []int64 {
	if pc < 0 || pc >= len(m.code) || n == 0 {
		return nil
	}

	end := min(pc+n, len(m.code))
	return append([]int64(nil), m.code[pc:end]...)
}
