// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// replaceUses rewrites every operand in fn equal to old (by pointer
// identity) to new, including phi incoming values. It never touches
// old's producing instruction itself.
func replaceUses(fn *ir.Function, old, new *ir.Value) {
	for _, b := range fn.Blocks {
		for _, ins := range b.Instructions {
			for i, op := range ins.Operands {
				if op == old {
					ins.Operands[i] = new
				}
			}
		}
	}
}

// countUses returns how many operand slots across fn reference v.
func countUses(fn *ir.Function, v *ir.Value) int {
	n := 0
	for _, b := range fn.Blocks {
		for _, ins := range b.Instructions {
			for _, op := range ins.Operands {
				if op == v {
					n++
				}
			}
		}
	}
	return n
}

// removeInstruction deletes ins from its block. The caller is
// responsible for ensuring ins is not a terminator still reachable
// from the CFG's edge bookkeeping (br/br_cond targets) unless it is
// also cleaning those up.
func removeInstruction(b *ir.Block, ins *ir.Instruction) {
	out := b.Instructions[:0]
	for _, cur := range b.Instructions {
		if cur != ins {
			out = append(out, cur)
		}
	}
	b.Instructions = out
}

// isConstInt reports whether v is a ConstInt and returns its value
// reinterpreted per the type's signedness.
func isConstInt(v *ir.Value) (int64, bool) {
	if v.Kind != ir.ConstInt {
		return 0, false
	}
	it, ok := v.Type.(*ir.IntType)
	if !ok {
		return int64(v.IntVal), true
	}
	if it.Signed {
		return signExtend(v.IntVal, it.Width), true
	}
	return int64(v.IntVal), true
}

func signExtend(bits uint64, width int) int64 {
	if width >= 64 {
		return int64(bits)
	}
	shift := uint(64 - width)
	return int64(bits<<shift) >> shift
}

func isConstFloat(v *ir.Value) (float64, bool) {
	if v.Kind != ir.ConstFloat {
		return 0, false
	}
	return v.FloatVal, true
}

// sideEffectFree reports whether an instruction with this opcode can
// be dropped purely because its result is unused.
func sideEffectFree(op ir.Opcode) bool { return !op.HasSideEffect() }
