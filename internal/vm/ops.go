package vm

import (
	"github.com/cwbudde/langvm/internal/bytecode"
	"github.com/cwbudde/langvm/internal/memory"
)

func (vm *VM) pop1Int(stack *OperandStack, fnName string, pc uint32) (int64, error) {
	v, ok := stack.PopMove()
	if !ok {
		return 0, fault(STACK_UNDERFLOW, fnName, pc)
	}
	if v.Kind != bytecode.KindInt {
		return 0, fault(INVALID_VALUE_TYPE, fnName, pc)
	}
	return v.Int, nil
}

func (vm *VM) pop1Float(stack *OperandStack, fnName string, pc uint32) (float64, error) {
	v, ok := stack.PopMove()
	if !ok {
		return 0, fault(STACK_UNDERFLOW, fnName, pc)
	}
	if v.Kind != bytecode.KindFloat {
		return 0, fault(INVALID_VALUE_TYPE, fnName, pc)
	}
	return v.Float, nil
}

func (vm *VM) pop1Bool(stack *OperandStack, fnName string, pc uint32) (bool, error) {
	v, ok := stack.PopMove()
	if !ok {
		return false, fault(STACK_UNDERFLOW, fnName, pc)
	}
	if v.Kind != bytecode.KindBool {
		return false, fault(INVALID_VALUE_TYPE, fnName, pc)
	}
	return v.Bool, nil
}

// intArith pops two ints (right first, then left, per the generator's
// left-then-right push order) and pushes the result of the int-family
// binary op.
func (vm *VM) intArith(stack *OperandStack, op bytecode.OpCode, fnName string, pc uint32) error {
	b, err := vm.pop1Int(stack, fnName, pc)
	if err != nil {
		return err
	}
	a, err := vm.pop1Int(stack, fnName, pc)
	if err != nil {
		return err
	}
	switch op {
	case bytecode.ADD_INT:
		stack.PushMove(bytecode.IntValue(a + b))
	case bytecode.SUB_INT:
		stack.PushMove(bytecode.IntValue(a - b))
	case bytecode.MUL_INT:
		stack.PushMove(bytecode.IntValue(a * b))
	case bytecode.DIV_INT:
		if b == 0 {
			return fault(DIVISION_BY_ZERO, fnName, pc)
		}
		stack.PushMove(bytecode.IntValue(a / b))
	case bytecode.MOD_INT:
		if b == 0 {
			return fault(DIVISION_BY_ZERO, fnName, pc)
		}
		stack.PushMove(bytecode.IntValue(a % b))
	}
	return nil
}

func (vm *VM) floatArith(stack *OperandStack, op bytecode.OpCode, fnName string, pc uint32) error {
	b, err := vm.pop1Float(stack, fnName, pc)
	if err != nil {
		return err
	}
	a, err := vm.pop1Float(stack, fnName, pc)
	if err != nil {
		return err
	}
	switch op {
	case bytecode.ADD_FLOAT:
		stack.PushMove(bytecode.FloatValue(a + b))
	case bytecode.SUB_FLOAT:
		stack.PushMove(bytecode.FloatValue(a - b))
	case bytecode.MUL_FLOAT:
		stack.PushMove(bytecode.FloatValue(a * b))
	case bytecode.DIV_FLOAT:
		// Float division by zero follows IEEE 754 (±Inf/NaN), not the
		// integer DIVISION_BY_ZERO fault, which is reserved for
		// DIV_INT/MOD_INT only.
		stack.PushMove(bytecode.FloatValue(a / b))
	}
	return nil
}

func (vm *VM) intCompare(stack *OperandStack, op bytecode.OpCode, fnName string, pc uint32) error {
	b, err := vm.pop1Int(stack, fnName, pc)
	if err != nil {
		return err
	}
	a, err := vm.pop1Int(stack, fnName, pc)
	if err != nil {
		return err
	}
	var r bool
	switch op {
	case bytecode.EQ_INT:
		r = a == b
	case bytecode.NE_INT:
		r = a != b
	case bytecode.LT_INT:
		r = a < b
	case bytecode.LE_INT:
		r = a <= b
	case bytecode.GT_INT:
		r = a > b
	case bytecode.GE_INT:
		r = a >= b
	}
	stack.PushMove(bytecode.BoolValue(r))
	return nil
}

func (vm *VM) floatCompare(stack *OperandStack, op bytecode.OpCode, fnName string, pc uint32) error {
	b, err := vm.pop1Float(stack, fnName, pc)
	if err != nil {
		return err
	}
	a, err := vm.pop1Float(stack, fnName, pc)
	if err != nil {
		return err
	}
	var r bool
	switch op {
	case bytecode.EQ_FLOAT:
		r = a == b
	case bytecode.NE_FLOAT:
		r = a != b
	case bytecode.LT_FLOAT:
		r = a < b
	case bytecode.LE_FLOAT:
		r = a <= b
	case bytecode.GT_FLOAT:
		r = a > b
	case bytecode.GE_FLOAT:
		r = a >= b
	}
	stack.PushMove(bytecode.BoolValue(r))
	return nil
}

func (vm *VM) newArray(op bytecode.OpCode, size int) (uint64, error) {
	switch op {
	case bytecode.NEW_ARRAY_FLOAT:
		return vm.Heap.NewFloatArray(size)
	case bytecode.NEW_ARRAY_BOOL:
		return vm.Heap.NewBoolArray(size)
	default:
		return vm.Heap.NewIntArray(size)
	}
}

func (vm *VM) loadElement(id uint64, idx int) (bytecode.Value, error) {
	kind, err := vm.Heap.ArrayType(id)
	if err != nil {
		return bytecode.Value{}, err
	}
	switch kind {
	case memory.FloatArray:
		f, err := vm.Heap.LoadFloat(id, idx)
		return bytecode.FloatValue(f), err
	case memory.BoolArray:
		b, err := vm.Heap.LoadBool(id, idx)
		return bytecode.BoolValue(b), err
	default:
		i, err := vm.Heap.LoadInt(id, idx)
		return bytecode.IntValue(i), err
	}
}

func (vm *VM) storeElement(id uint64, idx int, v bytecode.Value, fnName string, pc uint32) error {
	kind, err := vm.Heap.ArrayType(id)
	if err != nil {
		return err
	}
	switch kind {
	case memory.FloatArray:
		if v.Kind != bytecode.KindFloat {
			return fault(INVALID_VALUE_TYPE, fnName, pc)
		}
		return vm.Heap.StoreFloat(id, idx, v.Float)
	case memory.BoolArray:
		if v.Kind != bytecode.KindBool {
			return fault(INVALID_VALUE_TYPE, fnName, pc)
		}
		return vm.Heap.StoreBool(id, idx, v.Bool)
	default:
		if v.Kind != bytecode.KindInt {
			return fault(INVALID_VALUE_TYPE, fnName, pc)
		}
		return vm.Heap.StoreInt(id, idx, v.Int)
	}
}

func (vm *VM) formatArray(id uint64) (string, error) {
	kind, err := vm.Heap.ArrayType(id)
	if err != nil {
		return "", err
	}
	n, err := vm.Heap.ArraySize(id)
	if err != nil {
		return "", err
	}
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		switch kind {
		case memory.FloatArray:
			f, err := vm.Heap.LoadFloat(id, i)
			if err != nil {
				return "", err
			}
			out += bytecode.FloatValue(f).String()
		case memory.BoolArray:
			b, err := vm.Heap.LoadBool(id, i)
			if err != nil {
				return "", err
			}
			out += bytecode.BoolValue(b).String()
		default:
			v, err := vm.Heap.LoadInt(id, i)
			if err != nil {
				return "", err
			}
			out += bytecode.IntValue(v).String()
		}
	}
	out += "]"
	return out, nil
}
