// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// ConstantFold evaluates pure integer and floating arithmetic whose
// operands are all constants, replacing every use of the
// instruction's result with a fresh constant of the same type.
// Division and remainder by a zero constant are left untouched: the
// original instruction survives so the program's trap-on-divide-by-
// zero behaviour is preserved. The now-unused instruction is left for
// DeadCodeElim to remove, not deleted here.
type ConstantFold struct{}

func (*ConstantFold) Name() string          { return "constant-fold" }
func (*ConstantFold) MinLevel() ir.OptLevel { return ir.OptBasic }

func (p *ConstantFold) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false
	for _, b := range fn.Blocks {
		for _, ins := range b.Instructions {
			if ins.Result == nil {
				continue
			}
			folded, ok := foldInstruction(ins)
			if !ok {
				continue
			}
			replaceUses(fn, ins.Result, folded)
			changed = true
		}
	}
	return changed, nil
}

func foldInstruction(ins *ir.Instruction) (*ir.Value, bool) {
	switch ins.Opcode {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr, ir.OpAShr:
		return foldIntBinary(ins)
	case ir.OpNeg, ir.OpNot:
		return foldIntUnary(ins)
	case ir.OpICmpEQ, ir.OpICmpNE, ir.OpICmpSLT, ir.OpICmpSLE, ir.OpICmpSGT, ir.OpICmpSGE,
		ir.OpICmpULT, ir.OpICmpULE, ir.OpICmpUGT, ir.OpICmpUGE:
		return foldICmp(ins)
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		return foldFloatBinary(ins)
	case ir.OpFNeg, ir.OpFAbs:
		return foldFloatUnary(ins)
	default:
		return nil, false
	}
}

func foldIntBinary(ins *ir.Instruction) (*ir.Value, bool) {
	lhs, lok := isConstInt(ins.Operands[0])
	rhs, rok := isConstInt(ins.Operands[1])
	if !lok || !rok {
		return nil, false
	}

	var result int64
	switch ins.Opcode {
	case ir.OpAdd:
		result = lhs + rhs
	case ir.OpSub:
		result = lhs - rhs
	case ir.OpMul:
		result = lhs * rhs
	case ir.OpSDiv:
		if rhs == 0 {
			return nil, false
		}
		result = lhs / rhs
	case ir.OpUDiv:
		if rhs == 0 {
			return nil, false
		}
		result = int64(uint64(lhs) / uint64(rhs))
	case ir.OpSRem:
		if rhs == 0 {
			return nil, false
		}
		result = lhs % rhs
	case ir.OpURem:
		if rhs == 0 {
			return nil, false
		}
		result = int64(uint64(lhs) % uint64(rhs))
	case ir.OpAnd:
		result = lhs & rhs
	case ir.OpOr:
		result = lhs | rhs
	case ir.OpXor:
		result = lhs ^ rhs
	case ir.OpShl:
		result = lhs << uint64(rhs)
	case ir.OpLShr:
		result = int64(uint64(lhs) >> uint64(rhs))
	case ir.OpAShr:
		result = lhs >> uint64(rhs)
	default:
		return nil, false
	}

	return constIntResult(ins, result), true
}

func foldIntUnary(ins *ir.Instruction) (*ir.Value, bool) {
	val, ok := isConstInt(ins.Operands[0])
	if !ok {
		return nil, false
	}

	var result int64
	switch ins.Opcode {
	case ir.OpNeg:
		result = -val
	case ir.OpNot:
		result = ^val
	default:
		return nil, false
	}

	return constIntResult(ins, result), true
}

func foldICmp(ins *ir.Instruction) (*ir.Value, bool) {
	lhs, lok := isConstInt(ins.Operands[0])
	rhs, rok := isConstInt(ins.Operands[1])
	if !lok || !rok {
		return nil, false
	}

	ulhs, urhs := uint64(lhs), uint64(rhs)
	var result bool
	switch ins.Opcode {
	case ir.OpICmpEQ:
		result = lhs == rhs
	case ir.OpICmpNE:
		result = lhs != rhs
	case ir.OpICmpSLT:
		result = lhs < rhs
	case ir.OpICmpSLE:
		result = lhs <= rhs
	case ir.OpICmpSGT:
		result = lhs > rhs
	case ir.OpICmpSGE:
		result = lhs >= rhs
	case ir.OpICmpULT:
		result = ulhs < urhs
	case ir.OpICmpULE:
		result = ulhs <= urhs
	case ir.OpICmpUGT:
		result = ulhs > urhs
	case ir.OpICmpUGE:
		result = ulhs >= urhs
	default:
		return nil, false
	}

	var bit int64
	if result {
		bit = 1
	}
	v := constIntResult(ins, bit)
	v.IsBoolean = true
	return v, true
}

func foldFloatBinary(ins *ir.Instruction) (*ir.Value, bool) {
	lhs, lok := isConstFloat(ins.Operands[0])
	rhs, rok := isConstFloat(ins.Operands[1])
	if !lok || !rok {
		return nil, false
	}

	var result float64
	switch ins.Opcode {
	case ir.OpFAdd:
		result = lhs + rhs
	case ir.OpFSub:
		result = lhs - rhs
	case ir.OpFMul:
		result = lhs * rhs
	case ir.OpFDiv:
		if rhs == 0 {
			return nil, false
		}
		result = lhs / rhs
	default:
		return nil, false
	}

	return &ir.Value{Kind: ir.ConstFloat, Type: ins.Result.Type, FloatVal: result}, true
}

func foldFloatUnary(ins *ir.Instruction) (*ir.Value, bool) {
	val, ok := isConstFloat(ins.Operands[0])
	if !ok {
		return nil, false
	}

	var result float64
	switch ins.Opcode {
	case ir.OpFNeg:
		result = -val
	case ir.OpFAbs:
		if val < 0 {
			result = -val
		} else {
			result = val
		}
	default:
		return nil, false
	}

	return &ir.Value{Kind: ir.ConstFloat, Type: ins.Result.Type, FloatVal: result}, true
}

func constIntResult(ins *ir.Instruction, result int64) *ir.Value {
	width := uint(64)
	if it, ok := ins.Result.Type.(*ir.IntType); ok {
		width = uint(it.Width)
	}
	bits := uint64(result)
	if width < 64 {
		bits &= (uint64(1) << width) - 1
	}
	return &ir.Value{Kind: ir.ConstInt, Type: ins.Result.Type, IntVal: bits}
}
