// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import (
	"math/bits"

	"github.com/bencz/anvil/ir"
)

// StrengthReduce rewrites a small set of peephole identities:
// x+0 -> x, x*0 -> 0, x*1 -> x, and x * 2^n -> x shl n. It never
// removes the original instruction; a value made dead by the rewrite
// is left for DeadCodeElim.
type StrengthReduce struct{}

func (*StrengthReduce) Name() string          { return "strength-reduce" }
func (*StrengthReduce) MinLevel() ir.OptLevel { return ir.OptBasic }

func (p *StrengthReduce) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false

	for _, b := range fn.Blocks {
		for _, ins := range b.Instructions {
			if ins.Result == nil || len(ins.Operands) != 2 {
				continue
			}

			switch ins.Opcode {
			case ir.OpAdd:
				if reduceAddZero(fn, ins) {
					changed = true
				}
			case ir.OpMul:
				if reduceMul(fn, ins) {
					changed = true
				}
			}
		}
	}

	return changed, nil
}

// reduceAddZero handles x+0 and 0+x by propagating the non-zero
// operand directly to every use of the add's result.
func reduceAddZero(fn *ir.Function, ins *ir.Instruction) bool {
	lhs, rhs := ins.Operands[0], ins.Operands[1]

	if k, ok := isConstInt(rhs); ok && k == 0 {
		replaceUses(fn, ins.Result, lhs)
		return true
	}
	if k, ok := isConstInt(lhs); ok && k == 0 {
		replaceUses(fn, ins.Result, rhs)
		return true
	}
	return false
}

// reduceMul handles x*0 -> 0, x*1 -> x, and x*2^n -> x shl n, trying
// both operand orders since multiplication is commutative.
func reduceMul(fn *ir.Function, ins *ir.Instruction) bool {
	lhs, rhs := ins.Operands[0], ins.Operands[1]

	if k, ok := isConstInt(rhs); ok {
		return applyMulConst(fn, ins, lhs, rhs, k)
	}
	if k, ok := isConstInt(lhs); ok {
		return applyMulConst(fn, ins, rhs, lhs, k)
	}
	return false
}

func applyMulConst(fn *ir.Function, ins *ir.Instruction, variable, constOperand *ir.Value, k int64) bool {
	switch {
	case k == 0:
		replaceUses(fn, ins.Result, constOperand)
		return true
	case k == 1:
		replaceUses(fn, ins.Result, variable)
		return true
	case k > 0 && bits.OnesCount64(uint64(k)) == 1:
		shift := bits.TrailingZeros64(uint64(k))
		amount := &ir.Value{Kind: ir.ConstInt, Type: variable.Type, IntVal: uint64(shift)}
		ins.Opcode = ir.OpShl
		ins.Operands = []*ir.Value{variable, amount}
		return true
	default:
		return false
	}
}
