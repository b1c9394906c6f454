package vm

import (
	"fmt"
	"math"
)

// coreStep is the main single-step execution function
// it returns (halted, error).
func coreStep(m *Machine) (bool, error) {
	m.opPC, m.op = m.pc, 0

	raw, err := m.FetchNext()
	if err != nil {
		return false, err
	}

	op := Opcode(raw)
	m.op = op

	if m.tracer != nil {
		m.tracer(TraceEvent{
			Step:     m.steps,
			PC:       m.opPC,
			Op:       op,
			Operands: m.operandsAt(m.pc, op.Operands()),
			SP:       m.SP(),
			FP:       m.fp,
			Depth:    m.depth,
		})
	}

	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpLt, OpGt, OpEq:
		// operands come off in reverse push order
		b, err := m.Pop()
		if err != nil {
			return false, err
		}
		a, err := m.Pop()
		if err != nil {
			return false, err
		}
		res, err := m.evalBinary(op, a, b)
		if err != nil {
			return false, err
		}
		return false, m.Push(res)

	case OpJmp:
		target, err := m.FetchNext()
		if err != nil {
			return false, err
		}
		return false, m.jump(target)

	case OpJmpt, OpJmpf:
		target, err := m.FetchNext()
		if err != nil {
			return false, err
		}
		cond, err := m.Pop()
		if err != nil {
			return false, err
		}
		if (cond != 0) == (op == OpJmpt) {
			return false, m.jump(target)
		}
		return false, nil

	case OpConst:
		v, err := m.FetchNext()
		if err != nil {
			return false, err
		}
		return false, m.Push(v)

	case OpLoad:
		offset, err := m.FetchNext()
		if err != nil {
			return false, err
		}
		v, err := m.ReadStackRelative(offset)
		if err != nil {
			return false, err
		}
		return false, m.Push(v)

	case OpStore:
		offset, err := m.FetchNext()
		if err != nil {
			return false, err
		}
		v, err := m.Pop()
		if err != nil {
			return false, err
		}
		return false, m.WriteStackRelative(offset, v)

	case OpGload:
		addr, err := m.Pop()
		if err != nil {
			return false, err
		}
		v, err := m.ReadLocal(addr)
		if err != nil {
			return false, err
		}
		return false, m.Push(v)

	case OpGstore:
		v, err := m.Pop()
		if err != nil {
			return false, err
		}
		addr, err := m.FetchNext()
		if err != nil {
			return false, err
		}
		return false, m.WriteLocal(addr, v)

	case OpPrint:
		v, err := m.Pop()
		if err != nil {
			return false, err
		}
		if _, err := fmt.Fprintf(m.out, "%d\n", v); err != nil {
			return false, m.faultf(OutputFailure, err, "print %d", v)
		}
		return false, nil

	case OpPop:
		_, err := m.Pop()
		return false, err

	case OpHalt:
		return true, nil

	case OpCall:
		return false, m.call()

	case OpRet:
		return false, m.ret()

	default:
		return false, m.faultf(UnknownOpcode, nil, "opcode %d", raw)
	}
}

// evalBinary applies an arithmetic or comparison opcode to a (pushed first) and b
func (m *Machine) evalBinary(op Opcode, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, m.faultf(DivisionByZero, nil, "%d / 0", a)
		}
		// truncates toward zero; MinInt64 / -1 wraps to MinInt64
		return a / b, nil
	case OpLt:
		return boolToInt(a < b), nil
	case OpGt:
		return boolToInt(a > b), nil
	case OpEq:
		return boolToInt(a == b), nil
	}

	return 0, m.faultf(UnknownOpcode, nil, "not a binary opcode")
}

// call links a new frame: argc, caller FP and return PC are pushed and FP
// points at the saved return PC. The argc arguments below stay in place.
func (m *Machine) call() error {
	target, err := m.FetchNext()
	if err != nil {
		return err
	}
	argc, err := m.FetchNext()
	if err != nil {
		return err
	}

	if argc < 0 || argc > int64(m.stack.Size()) {
		return m.faultf(StackUnderflow, nil, "call needs %d arguments, stack holds %d", argc, m.stack.Size())
	}

	if err := m.Push(argc); err != nil {
		return err
	}
	if err := m.Push(int64(m.fp)); err != nil {
		return err
	}
	if err := m.Push(int64(m.pc)); err != nil {
		return err
	}

	m.fp = m.SP()
	m.depth++

	return m.jump(target)
}

// ret unwinds the current frame and its arguments, leaving only the return value
func (m *Machine) ret() error {
	if m.depth == 0 {
		return m.faultf(ReturnOutsideCall, nil, "no active frame")
	}

	rv, err := m.Pop()
	if err != nil {
		return err
	}

	if m.fp > m.SP() {
		return m.faultf(InvalidStackAddress, nil, "frame pointer %d above stack top %d", m.fp, m.SP())
	}

	// SP = FP
	if err := m.stack.Truncate(m.fp + 1); err != nil {
		return m.faultf(InvalidStackAddress, err, "rewind to frame pointer %d", m.fp)
	}

	retPC, err := m.Pop()
	if err != nil {
		return err
	}
	savedFP, err := m.Pop()
	if err != nil {
		return err
	}
	argc, err := m.Pop()
	if err != nil {
		return err
	}

	if argc < 0 || argc > int64(m.stack.Size()) {
		return m.faultf(StackUnderflow, nil, "frame records %d arguments, stack holds %d", argc, m.stack.Size())
	}
	if err := m.stack.Truncate(m.stack.Size() - int(argc)); err != nil {
		return m.faultf(StackUnderflow, err, "discard %d arguments", argc)
	}

	if savedFP < 0 || savedFP > math.MaxInt32 {
		return m.faultf(InvalidStackAddress, nil, "saved frame pointer %d", savedFP)
	}
	m.fp = int(savedFP)
	m.depth--

	if err := m.jump(retPC); err != nil {
		return err
	}

	return m.Push(rv)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
