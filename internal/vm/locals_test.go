package vm

import (
	"testing"

	"github.com/cwbudde/langvm/internal/bytecode"
)

func TestLocalSlots_SetMoveReleasesPreviousArrayRef(t *testing.T) {
	h := newFakeHeap()
	l := NewLocalSlots(1, h)
	h.refs[1] = 1
	if err := l.SetMove(0, bytecode.ArrayRefValue(1)); err != nil {
		t.Fatalf("SetMove: %v", err)
	}
	h.refs[2] = 1
	if err := l.SetMove(0, bytecode.ArrayRefValue(2)); err != nil {
		t.Fatalf("SetMove overwrite: %v", err)
	}
	if _, ok := h.refs[1]; ok {
		t.Fatalf("old slot value (id 1) not released on overwrite")
	}
	if h.refs[2] != 1 {
		t.Fatalf("refs[2] = %d, want 1", h.refs[2])
	}
}

func TestLocalSlots_GetCopyRetains(t *testing.T) {
	h := newFakeHeap()
	l := NewLocalSlots(1, h)
	h.refs[4] = 1
	if err := l.SetMove(0, bytecode.ArrayRefValue(4)); err != nil {
		t.Fatalf("SetMove: %v", err)
	}
	v, err := l.GetCopy(0)
	if err != nil {
		t.Fatalf("GetCopy: %v", err)
	}
	if v.HeapID != 4 {
		t.Fatalf("GetCopy HeapID = %d, want 4", v.HeapID)
	}
	if h.refs[4] != 2 {
		t.Fatalf("refs[4] = %d, want 2 (original owner plus the copy)", h.refs[4])
	}
}

func TestLocalSlots_InvalidSlotIndex(t *testing.T) {
	h := newFakeHeap()
	l := NewLocalSlots(1, h)
	if err := l.SetMove(5, bytecode.IntValue(1)); err == nil {
		t.Fatalf("SetMove(5, ...) on a 1-slot frame returned nil error")
	}
	if _, err := l.GetCopy(5); err == nil {
		t.Fatalf("GetCopy(5) on a 1-slot frame returned nil error")
	}
}

func TestLocalSlots_ClearAndReleaseAllReleasesEveryArrayRef(t *testing.T) {
	h := newFakeHeap()
	l := NewLocalSlots(2, h)
	h.refs[1] = 1
	h.refs[2] = 1
	_ = l.SetMove(0, bytecode.ArrayRefValue(1))
	_ = l.SetMove(1, bytecode.ArrayRefValue(2))
	if err := l.ClearAndReleaseAll(); err != nil {
		t.Fatalf("ClearAndReleaseAll: %v", err)
	}
	if len(h.refs) != 0 {
		t.Fatalf("refs = %v, want empty", h.refs)
	}
}

func TestLocalSlots_NewLocalSlotsInitializesVoid(t *testing.T) {
	l := NewLocalSlots(3, newFakeHeap())
	for i := uint32(0); i < 3; i++ {
		v, err := l.GetCopy(i)
		if err != nil {
			t.Fatalf("GetCopy(%d): %v", i, err)
		}
		if v.Kind != bytecode.KindVoid {
			t.Fatalf("slot %d kind = %v, want KindVoid", i, v.Kind)
		}
	}
}
