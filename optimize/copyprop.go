// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// CopyPropagate forwards identity-producing operations so later uses
// reference the original value directly instead of a pass-through
// result: bitwise or/xor against zero, bitwise and against an
// all-ones mask, a select between two identical operands, and a phi
// whose every incoming edge (after earlier edges are deduplicated)
// names the same value.
type CopyPropagate struct{}

func (*CopyPropagate) Name() string          { return "copy-propagate" }
func (*CopyPropagate) MinLevel() ir.OptLevel { return ir.OptBasic }

func (p *CopyPropagate) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false

	for _, b := range fn.Blocks {
		for _, ins := range b.Instructions {
			if ins.Result == nil {
				continue
			}

			switch ins.Opcode {
			case ir.OpOr, ir.OpXor:
				if forwardIdentity(fn, ins, 0) {
					changed = true
				}
			case ir.OpAnd:
				if forwardAllOnes(fn, ins) {
					changed = true
				}
			case ir.OpSelect:
				if ins.Operands[1] == ins.Operands[2] {
					replaceUses(fn, ins.Result, ins.Operands[1])
					changed = true
				}
			case ir.OpPhi:
				if forwardTrivialPhi(fn, ins) {
					changed = true
				}
			}
		}
	}

	return changed, nil
}

func forwardIdentity(fn *ir.Function, ins *ir.Instruction, identity int64) bool {
	lhs, rhs := ins.Operands[0], ins.Operands[1]
	if k, ok := isConstInt(rhs); ok && k == identity {
		replaceUses(fn, ins.Result, lhs)
		return true
	}
	if k, ok := isConstInt(lhs); ok && k == identity {
		replaceUses(fn, ins.Result, rhs)
		return true
	}
	return false
}

func forwardAllOnes(fn *ir.Function, ins *ir.Instruction) bool {
	lhs, rhs := ins.Operands[0], ins.Operands[1]
	width := 64
	if it, ok := ins.Result.Type.(*ir.IntType); ok {
		width = it.Width
	}
	allOnes := int64(-1)
	if width < 64 {
		allOnes = int64((uint64(1) << uint(width)) - 1)
	}

	if k, ok := isConstInt(rhs); ok && k == allOnes {
		replaceUses(fn, ins.Result, lhs)
		return true
	}
	if k, ok := isConstInt(lhs); ok && k == allOnes {
		replaceUses(fn, ins.Result, rhs)
		return true
	}
	return false
}

func forwardTrivialPhi(fn *ir.Function, ins *ir.Instruction) bool {
	if len(ins.Operands) == 0 {
		return false
	}

	first := ins.Operands[0]
	for _, op := range ins.Operands[1:] {
		if op != first && op != ins.Result {
			return false
		}
	}
	if first == ins.Result {
		return false
	}

	replaceUses(fn, ins.Result, first)
	return true
}
