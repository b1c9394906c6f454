package vm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"vmbytecode/pkg/stack"
)

// DefaultStackCapacity is the operand stack size used unless WithStackCapacity is given
const DefaultStackCapacity = 100

// Upper bounds on the sizes a machine will allocate. New clamps larger requests.
const (
	MaxStackCapacity = 1 << 20
	MaxLocals        = 1 << 20
)

// State is the run state of a machine
type State int

const (
	Running State = iota
	Halted
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	case Faulted:
		return "Faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Machine executes an instruction stream it borrows from the caller
type Machine struct {
	code  []int64 // instruction stream (never written)
	entry int     // entry offset, restored by Reset
	pc    int     // next slot to fetch
	fp    int     // frame pointer: stack index of the current frame's saved PC

	stack  *stack.Stack // operand stack
	locals []int64      // locals region addressed by absolute index

	depth int // active CALL frames

	state State
	fault *Fault

	opPC int    // offset of the instruction being executed
	op   Opcode // opcode being executed

	out      io.Writer        // output writer for PRINT
	tracer   func(TraceEvent) // called before each instruction
	capacity int              // operand stack capacity

	maxSteps int // maximum steps (0 = unlimited)
	steps    int // steps executed
}

type Option func(*Machine)

// WithWriter sets the output writer for PRINT
func WithWriter(w io.Writer) Option {
	return func(m *Machine) { m.out = w }
}

// WithMaxSteps sets a maximum number of dispatched instructions before the machine faults
func WithMaxSteps(n int) Option {
	return func(m *Machine) { m.maxSteps = n }
}

// WithStackCapacity sets the operand stack capacity
func WithStackCapacity(n int) Option {
	return func(m *Machine) { m.capacity = n }
}

// WithTracer installs a callback invoked before every instruction
func WithTracer(fn func(TraceEvent)) Option {
	return func(m *Machine) { m.tracer = fn }
}

// New creates a machine that will start executing code at entry with a
// locals region of the given size.
func New(code []int64, entry int, locals int, opts ...Option) *Machine {
	locals = min(max(locals, 0), MaxLocals)

	m := &Machine{
		code:     code,
		entry:    entry,
		pc:       entry,
		fp:       0,
		locals:   make([]int64, locals),
		state:    Running,
		out:      nil, // caller may set with WithWriter
		capacity: DefaultStackCapacity,
		maxSteps: 0, // 0 => unlimited
	}

	for _, o := range opts {
		o(m)
	}

	if m.out == nil {
		m.out = os.Stdout
	}
	m.capacity = min(max(m.capacity, 0), MaxStackCapacity)

	m.stack = stack.NewStack(m.capacity)

	return m
}

// Reset clears runtime state (stack, locals, frames, counters) and rewinds to the entry offset
func (m *Machine) Reset() {
	m.pc = m.entry
	m.fp = 0
	m.stack = stack.NewStack(m.capacity)
	clear(m.locals)
	m.depth = 0
	m.state = Running
	m.fault = nil
	m.opPC = 0
	m.op = 0
	m.steps = 0
}

// PC returns the program counter
func (m *Machine) PC() int { return m.pc }

// FP returns the frame pointer
func (m *Machine) FP() int { return m.fp }

// SP returns the index of the topmost occupied stack slot, or -1 when the stack is empty
func (m *Machine) SP() int { return m.stack.Size() - 1 }

// Depth returns the number of procedure frames currently active
func (m *Machine) Depth() int { return m.depth }

// Steps returns the number of instructions dispatched so far
func (m *Machine) Steps() int { return m.steps }

// State returns the run state
func (m *Machine) State() State { return m.state }

// Fault returns the recorded fault, or nil unless the state is Faulted
func (m *Machine) Fault() *Fault { return m.fault }

// Stack returns a copy of the occupied stack slots, bottom first
func (m *Machine) Stack() []int64 {
	return m.stack.Array()
}

// Locals returns a copy of the locals region
func (m *Machine) Locals() []int64 {
	return append([]int64(nil), m.locals...)
}

// Push places v on top of the operand stack
func (m *Machine) Push(v int64) error {
	if err := m.stack.Push(v); err != nil {
		return m.faultf(StackOverflow, err, "capacity %d reached", m.stack.Cap())
	}

	return nil
}

// Pop removes and returns the top of the operand stack
func (m *Machine) Pop() (int64, error) {
	v, err := m.stack.Pop()
	if err != nil {
		return 0, m.faultf(StackUnderflow, err, "pop from empty stack")
	}

	return v, nil
}

// FetchNext returns the slot at the program counter and advances past it
func (m *Machine) FetchNext() (int64, error) {
	if m.pc < 0 || m.pc >= len(m.code) {
		return 0, m.faultf(InvalidProgramCounter, nil, "fetch at %d, program has %d slots", m.pc, len(m.code))
	}

	v := m.code[m.pc]
	m.pc++

	return v, nil
}

// ReadLocal reads the locals region at an absolute index
func (m *Machine) ReadLocal(index int64) (int64, error) {
	if index < 0 || index >= int64(len(m.locals)) {
		return 0, m.faultf(InvalidLocalAddress, nil, "read of local %d, region has %d slots", index, len(m.locals))
	}

	return m.locals[index], nil
}

// WriteLocal writes the locals region at an absolute index
func (m *Machine) WriteLocal(index int64, v int64) error {
	if index < 0 || index >= int64(len(m.locals)) {
		return m.faultf(InvalidLocalAddress, nil, "write of local %d, region has %d slots", index, len(m.locals))
	}

	m.locals[index] = v
	return nil
}

// ReadStackRelative reads the stack slot at FP+offset. Negative offsets reach
// the caller's arguments, positive ones the callee's temporaries.
func (m *Machine) ReadStackRelative(offset int64) (int64, error) {
	idx, err := m.resolveRelative(offset)
	if err != nil {
		return 0, err
	}

	v, err := m.stack.Get(idx)
	if err != nil {
		return 0, m.faultf(InvalidStackAddress, err, "read of slot %d", idx)
	}

	return v, nil
}

// WriteStackRelative writes the stack slot at FP+offset
func (m *Machine) WriteStackRelative(offset int64, v int64) error {
	idx, err := m.resolveRelative(offset)
	if err != nil {
		return err
	}

	if err := m.stack.Set(idx, v); err != nil {
		return m.faultf(InvalidStackAddress, err, "write of slot %d", idx)
	}

	return nil
}

// resolveRelative turns a frame-relative offset into a slot index within [0, SP]
func (m *Machine) resolveRelative(offset int64) (int, error) {
	idx := int64(m.fp) + offset
	if offset > math.MaxInt32 || offset < math.MinInt32 || idx < 0 || idx > int64(m.SP()) {
		return 0, m.faultf(InvalidStackAddress, nil, "fp %d%+d outside stack [0, %d]", m.fp, offset, m.SP())
	}

	return int(idx), nil
}

// jump moves the program counter to target, rejecting offsets outside the program
func (m *Machine) jump(target int64) error {
	if target < 0 || target >= int64(len(m.code)) {
		return m.faultf(InvalidProgramCounter, nil, "jump to %d, program has %d slots", target, len(m.code))
	}

	m.pc = int(target)
	return nil
}

// faultf builds a Fault for the instruction currently executing
func (m *Machine) faultf(kind FaultKind, cause error, format string, args ...any) *Fault {
	return &Fault{
		Kind:   kind,
		PC:     m.opPC,
		Op:     m.op,
		Detail: fmt.Sprintf(format, args...),
		Err:    cause,
	}
}

// fail moves the machine into the Faulted state and records err
func (m *Machine) fail(err error) *Fault {
	var f *Fault
	if !errors.As(err, &f) {
		f = m.faultf(OutputFailure, err, "%v", err)
	}

	m.state = Faulted
	m.fault = f

	return f
}
