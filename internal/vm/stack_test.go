package vm

import (
	"testing"

	"github.com/cwbudde/langvm/internal/bytecode"
)

// fakeHeap is a minimal refCounter double: it tracks refcounts by id without
// any of memory.Heap's allocation or bounds logic, so OperandStack/LocalSlots
// move/copy discipline can be tested in isolation.
type fakeHeap struct {
	refs map[uint64]int
}

func newFakeHeap() *fakeHeap {
	return &fakeHeap{refs: map[uint64]int{}}
}

func (h *fakeHeap) Retain(id uint64) error {
	h.refs[id]++
	return nil
}

func (h *fakeHeap) Release(id uint64) error {
	h.refs[id]--
	if h.refs[id] <= 0 {
		delete(h.refs, id)
	}
	return nil
}

func TestOperandStack_PushMoveDoesNotTouchHeap(t *testing.T) {
	h := newFakeHeap()
	s := NewOperandStack(h)
	s.PushMove(bytecode.ArrayRefValue(7))
	if len(h.refs) != 0 {
		t.Fatalf("refs = %v, want empty (Move does not retain)", h.refs)
	}
	v, ok := s.PopMove()
	if !ok || v.HeapID != 7 {
		t.Fatalf("PopMove = (%v, %v), want (arrayRef 7, true)", v, ok)
	}
}

func TestOperandStack_PushCopyRetains(t *testing.T) {
	h := newFakeHeap()
	s := NewOperandStack(h)
	orig := bytecode.ArrayRefValue(3)
	s.PushMove(orig)
	if err := s.PushCopy(orig); err != nil {
		t.Fatalf("PushCopy: %v", err)
	}
	if h.refs[3] != 1 {
		t.Fatalf("refs[3] = %d, want 1 (one Retain for the copy)", h.refs[3])
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestOperandStack_PopDropReleasesArrayRef(t *testing.T) {
	h := newFakeHeap()
	s := NewOperandStack(h)
	h.refs[5] = 1
	s.PushMove(bytecode.ArrayRefValue(5))
	if err := s.PopDrop(); err != nil {
		t.Fatalf("PopDrop: %v", err)
	}
	if _, ok := h.refs[5]; ok {
		t.Fatalf("refs[5] still present after PopDrop, want released")
	}
}

func TestOperandStack_PopDropIgnoresNonArrayValues(t *testing.T) {
	h := newFakeHeap()
	s := NewOperandStack(h)
	s.PushMove(bytecode.IntValue(42))
	if err := s.PopDrop(); err != nil {
		t.Fatalf("PopDrop: %v", err)
	}
	if len(h.refs) != 0 {
		t.Fatalf("refs = %v, want untouched for a non-array value", h.refs)
	}
}

func TestOperandStack_PopMoveEmptyReturnsFalse(t *testing.T) {
	s := NewOperandStack(newFakeHeap())
	if _, ok := s.PopMove(); ok {
		t.Fatalf("PopMove on empty stack returned ok=true")
	}
}

func TestOperandStack_ClearAndReleaseAllReleasesEveryArrayRef(t *testing.T) {
	h := newFakeHeap()
	s := NewOperandStack(h)
	h.refs[1] = 1
	h.refs[2] = 1
	s.PushMove(bytecode.ArrayRefValue(1))
	s.PushMove(bytecode.IntValue(9))
	s.PushMove(bytecode.ArrayRefValue(2))
	if err := s.ClearAndReleaseAll(); err != nil {
		t.Fatalf("ClearAndReleaseAll: %v", err)
	}
	if len(h.refs) != 0 {
		t.Fatalf("refs = %v, want empty", h.refs)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}
