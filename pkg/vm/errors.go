package vm

import (
	"errors"
	"fmt"
)

// FaultKind classifies why a machine stopped abnormally
type FaultKind int

const (
	FaultNone FaultKind = iota
	StackOverflow
	StackUnderflow
	DivisionByZero
	InvalidProgramCounter
	InvalidLocalAddress
	InvalidStackAddress
	UnknownOpcode
	ReturnOutsideCall
	StepLimitExceeded
	OutputFailure
)

var (
	ErrStackOverflow         = errors.New("stack overflow")
	ErrStackUnderflow        = errors.New("stack underflow")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrInvalidProgramCounter = errors.New("invalid program counter")
	ErrInvalidLocalAddress   = errors.New("invalid local address")
	ErrInvalidStackAddress   = errors.New("invalid stack address")
	ErrUnknownOpcode         = errors.New("unknown opcode")
	ErrReturnOutsideCall     = errors.New("return outside of a call")
	ErrMaxStepsExceeded      = errors.New("maximum steps exceeded")
	ErrOutput                = errors.New("output failed")
)

var faultErrors = map[FaultKind]error{
	StackOverflow:         ErrStackOverflow,
	StackUnderflow:        ErrStackUnderflow,
	DivisionByZero:        ErrDivisionByZero,
	InvalidProgramCounter: ErrInvalidProgramCounter,
	InvalidLocalAddress:   ErrInvalidLocalAddress,
	InvalidStackAddress:   ErrInvalidStackAddress,
	UnknownOpcode:         ErrUnknownOpcode,
	ReturnOutsideCall:     ErrReturnOutsideCall,
	StepLimitExceeded:     ErrMaxStepsExceeded,
	OutputFailure:         ErrOutput,
}

// String returns the fault kind name
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "None"
	case StackOverflow:
		return "StackOverflow"
	case StackUnderflow:
		return "StackUnderflow"
	case DivisionByZero:
		return "DivisionByZero"
	case InvalidProgramCounter:
		return "InvalidProgramCounter"
	case InvalidLocalAddress:
		return "InvalidLocalAddress"
	case InvalidStackAddress:
		return "InvalidStackAddress"
	case UnknownOpcode:
		return "UnknownOpcode"
	case ReturnOutsideCall:
		return "ReturnOutsideCall"
	case StepLimitExceeded:
		return "StepLimitExceeded"
	case OutputFailure:
		return "OutputFailure"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// Fault is the error a machine records when it enters the Faulted state.
// It unwraps to one of the Err* sentinels so callers can use errors.Is.
type Fault struct {
	Kind   FaultKind
	PC     int    // offset of the instruction that faulted
	Op     Opcode // zero when the opcode itself could not be fetched
	Detail string
	Err    error // underlying cause, if any
}

func (f *Fault) Error() string {
	where := fmt.Sprintf("pc %d", f.PC)
	if f.Op != 0 {
		where = fmt.Sprintf("pc %d (%s)", f.PC, f.Op)
	}

	msg := faultErrors[f.Kind]
	if msg == nil {
		msg = errors.New(f.Kind.String())
	}

	if f.Detail == "" {
		return fmt.Sprintf("%s at %s", msg, where)
	}

	return fmt.Sprintf("%s at %s: %s", msg, where, f.Detail)
}

// Unwrap exposes the sentinel for the fault kind and the underlying cause
func (f *Fault) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := faultErrors[f.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}

	return errs
}

// KindOf extracts the fault kind from err, or FaultNone if err is not a Fault
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}

	return FaultNone
}
