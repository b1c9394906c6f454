package stack

import "errors"

var (
	ErrOverflow   = errors.New("stack overflow")
	ErrUnderflow  = errors.New("stack underflow")
	ErrOutOfRange = errors.New("stack index out of range")
)

// Stack is a bounded LIFO of int64 values that can also be addressed by index.
// Index 0 is the bottom slot, Size()-1 the top.
type Stack struct {
	a []int64
	l int
}

// NewStack creates a new stack holding at most capacity values, seeded with elm
func NewStack(capacity int, elm ...int64) *Stack {
	if capacity < len(elm) {
		capacity = len(elm)
	}

	stack := Stack{
		a: make([]int64, capacity),
		l: 0,
	}

	for _, e := range elm {
		stack.a[stack.l] = e
		stack.l++
	}

	return &stack
}

// Push adds an element to the top of the stack
func (s *Stack) Push(elm int64) error {
	if s.l >= len(s.a) {
		return ErrOverflow
	}

	s.a[s.l] = elm
	s.l++

	return nil
}

// Pop removes and returns the top element of the stack
func (s *Stack) Pop() (int64, error) {
	if s.l < 1 {
		return 0, ErrUnderflow
	}

	s.l--
	elm := s.a[s.l]
	s.a[s.l] = 0

	return elm, nil
}

// Peek returns the top element of the stack without removing it
func (s *Stack) Peek() (int64, error) {
	if s.l < 1 {
		return 0, ErrUnderflow
	}

	return s.a[s.l-1], nil
}

// Get returns the element at index i, counted from the bottom
func (s *Stack) Get(i int) (int64, error) {
	if i < 0 || i >= s.l {
		return 0, ErrOutOfRange
	}

	return s.a[i], nil
}

// Set overwrites the element at index i, counted from the bottom
func (s *Stack) Set(i int, v int64) error {
	if i < 0 || i >= s.l {
		return ErrOutOfRange
	}

	s.a[i] = v
	return nil
}

// Truncate drops every element above the first n. It never grows the stack.
func (s *Stack) Truncate(n int) error {
	if n < 0 {
		return ErrUnderflow
	}
	if n > s.l {
		return ErrOutOfRange
	}

	clear(s.a[n:s.l])
	s.l = n

	return nil
}

// Get the size of the stack
func (s *Stack) Size() int {
	return s.l
}

// Cap returns the maximum number of elements the stack can hold
func (s *Stack) Cap() int {
	return len(s.a)
}

// Array returns a copy of the occupied part of the stack, bottom first
func (s *Stack) Array() []int64 {
	return append([]int64(nil), s.a[:s.l]...)
}
