package vm

import "github.com/cwbudde/langvm/internal/bytecode"

// refCounter is the subset of *memory.Heap the RC-aware containers need.
// Declared here (rather than importing internal/memory's concrete type)
// keeps this package's move/copy discipline independently testable with a
// fake.
type refCounter interface {
	Retain(id uint64) error
	Release(id uint64) error
}

// OperandStack is the VM's evaluation stack. Every push/pop is explicit about
// whether it transfers ownership of an ArrayRef (Move) or shares it (Copy):
// a Move never touches the heap's refcount, a Copy always does.
type OperandStack struct {
	values []bytecode.Value
	heap   refCounter
}

// NewOperandStack creates an empty operand stack backed by heap for the
// refcount traffic that Copy/Drop operations generate.
func NewOperandStack(heap refCounter) *OperandStack {
	return &OperandStack{heap: heap}
}

// Len reports the number of values currently on the stack.
func (s *OperandStack) Len() int { return len(s.values) }

// PushMove pushes v, taking ownership of any ArrayRef it holds without
// touching the heap. Used when v was just produced (e.g. popped from
// elsewhere, or a fresh NEW_ARRAY_* result) and the stack becomes its sole
// owner.
func (s *OperandStack) PushMove(v bytecode.Value) {
	s.values = append(s.values, v)
}

// PushCopy pushes a copy of v, retaining its ArrayRef on the heap so the
// stack and the value's original owner are both live owners afterward.
func (s *OperandStack) PushCopy(v bytecode.Value) error {
	if v.IsArrayRef() {
		if err := s.heap.Retain(v.HeapID); err != nil {
			return err
		}
	}
	s.values = append(s.values, v)
	return nil
}

// PopMove removes and returns the top value, transferring its ownership to
// the caller without touching the heap.
func (s *OperandStack) PopMove() (bytecode.Value, bool) {
	if len(s.values) == 0 {
		return bytecode.Value{}, false
	}
	n := len(s.values) - 1
	v := s.values[n]
	s.values = s.values[:n]
	return v, true
}

// PopDrop removes the top value and, if it is an ArrayRef, releases it:
// used when a value is discarded outright (e.g. a bare-expression-statement
// POP) rather than handed to another owner.
func (s *OperandStack) PopDrop() error {
	v, ok := s.PopMove()
	if !ok {
		return fault(STACK_UNDERFLOW, "", 0)
	}
	if v.IsArrayRef() {
		return s.heap.Release(v.HeapID)
	}
	return nil
}

// Peek returns the top value without removing it.
func (s *OperandStack) Peek() (bytecode.Value, bool) {
	if len(s.values) == 0 {
		return bytecode.Value{}, false
	}
	return s.values[len(s.values)-1], true
}

// ClearAndReleaseAll empties the stack, releasing every ArrayRef still on
// it. Used on an abnormal function exit (a Fault) so no operand-stack
// reference survives the frame that owned it.
func (s *OperandStack) ClearAndReleaseAll() error {
	for _, v := range s.values {
		if v.IsArrayRef() {
			if err := s.heap.Release(v.HeapID); err != nil {
				return err
			}
		}
	}
	s.values = s.values[:0]
	return nil
}
