package vm

import "github.com/cwbudde/langvm/internal/bytecode"

// LocalSlots is one call frame's local-variable storage (parameters plus
// declared locals, pre-sized to CompiledFunction.LocalsCount). Like
// OperandStack it is explicit about move vs. copy: storing into a slot
// that already held an ArrayRef must release the old value first, or
// that array leaks for the lifetime of the frame.
type LocalSlots struct {
	values []bytecode.Value
	heap   refCounter
}

// NewLocalSlots allocates n void-initialized slots.
func NewLocalSlots(n uint16, heap refCounter) *LocalSlots {
	vals := make([]bytecode.Value, n)
	for i := range vals {
		vals[i] = bytecode.VoidValue()
	}
	return &LocalSlots{values: vals, heap: heap}
}

func (l *LocalSlots) valid(slot uint32) bool {
	return int(slot) < len(l.values)
}

// SetMove stores v into slot, taking ownership of any ArrayRef it holds and
// releasing whatever the slot previously held.
func (l *LocalSlots) SetMove(slot uint32, v bytecode.Value) error {
	if !l.valid(slot) {
		return fault(INVALID_LOCAL_INDEX, "", 0)
	}
	old := l.values[slot]
	if old.IsArrayRef() {
		if err := l.heap.Release(old.HeapID); err != nil {
			return err
		}
	}
	l.values[slot] = v
	return nil
}

// GetCopy returns a copy of slot's value, retaining its ArrayRef on the heap
// so the caller becomes an additional owner (used by LOAD_LOCAL, which
// leaves the local's own ownership untouched).
func (l *LocalSlots) GetCopy(slot uint32) (bytecode.Value, error) {
	if !l.valid(slot) {
		return bytecode.Value{}, fault(INVALID_LOCAL_INDEX, "", 0)
	}
	v := l.values[slot]
	if v.IsArrayRef() {
		if err := l.heap.Retain(v.HeapID); err != nil {
			return bytecode.Value{}, err
		}
	}
	return v, nil
}

// ClearAndReleaseAll releases every ArrayRef still held by a local slot.
// Called when a frame returns (normally or via a Fault) so parameters and
// locals that were never explicitly overwritten don't leak their arrays.
func (l *LocalSlots) ClearAndReleaseAll() error {
	for i, v := range l.values {
		if v.IsArrayRef() {
			if err := l.heap.Release(v.HeapID); err != nil {
				return err
			}
		}
		l.values[i] = bytecode.VoidValue()
	}
	return nil
}
