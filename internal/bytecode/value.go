package bytecode

import "fmt"

// ValueKind tags a Value's active variant.
type ValueKind byte

const (
	KindInt ValueKind = iota
	KindFloat
	KindBool
	KindVoid
	KindArrayRef
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindVoid:
		return "void"
	case KindArrayRef:
		return "array"
	default:
		return "?"
	}
}

// Value is the tagged variant stored on the operand stack and in local
// slots. It is a plain value type — copying a Value never by
// itself has lifetime effects; only ArrayRef participates in reference
// counting, and only through the RC-aware containers in internal/vm.
type Value struct {
	Kind    ValueKind
	Int     int64
	Float   float64
	Bool    bool
	HeapID  uint64 // valid when Kind == KindArrayRef
}

func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func VoidValue() Value            { return Value{Kind: KindVoid} }
func ArrayRefValue(id uint64) Value { return Value{Kind: KindArrayRef, HeapID: id} }

// IsArrayRef reports whether v participates in reference counting.
func (v Value) IsArrayRef() bool { return v.Kind == KindArrayRef }

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return formatFloat(v.Float)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindVoid:
		return "void"
	case KindArrayRef:
		return fmt.Sprintf("<array #%d>", v.HeapID)
	default:
		return "?"
	}
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

// ParamInfo describes one formal parameter slot of a CompiledFunction.
type ParamInfo struct {
	Name string
	Type ValueKind
}

// TypeTag mirrors ast.TypeTag at the bytecode layer so this package does not
// need to import the front-end's ast package; codegen translates between the
// two. Elem additionally carries the element kind of an array type.
type TypeTag struct {
	Kind ValueKind
	Elem ValueKind // meaningful only when Kind == KindArrayRef
}

// CompiledFunction is one compiled function.
type CompiledFunction struct {
	Name         string
	Parameters   []ParamInfo
	ReturnType   TypeTag
	LocalsCount  uint16
	Instructions []byte // length ≡ 0 mod InstructionSize
}

// BytecodeModule is the generator's output and the interpreter's input.
type BytecodeModule struct {
	IntConstants   []int64
	FloatConstants []float64
	Functions      []*CompiledFunction
	EntryPoint     string // always "main"
}

// FunctionByName returns the function named name and its index, or false.
func (m *BytecodeModule) FunctionByName(name string) (int, *CompiledFunction, bool) {
	for i, fn := range m.Functions {
		if fn.Name == name {
			return i, fn, true
		}
	}
	return 0, nil, false
}
