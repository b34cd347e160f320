// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package backend

import (
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

// Layout is the result of the stack layout pass every family
// backend runs before emitting a function: a frame slot for every
// alloca, a frame slot for every instruction result and parameter
// (this backend keeps no cross-block register allocation state; a
// value is always spilled to its own slot and reloaded into a
// scratch register by whichever instruction consumes it, matching
// the "copy if the next consumer needs a different register"
// operand-materialization rule verbatim, just applied unconditionally
// rather than only on register conflicts), and the deepest outgoing
// call argument footprint seen in the function.
type Layout struct {
	FrameSize int

	allocaOffset map[*ir.Value]int
	valueOffset  map[*ir.Value]int

	MaxOutgoingSlots int
}

// AllocaOffset returns the frame-relative byte offset reserved for
// the object an alloca instruction's result points to.
func (l *Layout) AllocaOffset(result *ir.Value) (int, bool) {
	off, ok := l.allocaOffset[result]
	return off, ok
}

// ValueOffset returns the frame-relative byte offset of v's spill
// slot: the location every producer stores to and every consumer
// loads from.
func (l *Layout) ValueOffset(v *ir.Value) (int, bool) {
	off, ok := l.valueOffset[v]
	return off, ok
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

// ComputeLayout scans fn once, assigning a frame slot to every alloca
// and to every instruction result and parameter, and records the
// widest outgoing call argument list the function issues.
func ComputeLayout(arch *target.Arch, abi *target.ABI, fn *ir.Function) *Layout {
	l := &Layout{
		allocaOffset: map[*ir.Value]int{},
		valueOffset:  map[*ir.Value]int{},
	}

	offset := 0
	for _, p := range fn.Params {
		offset = alignUp(offset, arch.LocationSize)
		l.valueOffset[p] = offset
		offset += arch.LocationSize
	}

	for _, b := range fn.Blocks {
		for _, ins := range b.Instructions {
			if ins.Opcode == ir.OpAlloca {
				size := ins.AllocType.Size()
				if size < 1 {
					size = 1
				}
				align := ins.AllocType.Align()
				if align < 1 {
					align = 1
				}
				offset = alignUp(offset, align)
				l.allocaOffset[ins.Result] = offset
				offset += size
			}

			if ins.Result != nil {
				offset = alignUp(offset, arch.LocationSize)
				l.valueOffset[ins.Result] = offset
				offset += arch.LocationSize
			}

			if ins.Opcode == ir.OpCall {
				args := len(ins.Operands) - 1
				if abi.Style == target.StyleParameterList {
					if args > l.MaxOutgoingSlots {
						l.MaxOutgoingSlots = args
					}
				} else if extra := args - len(abi.ParamRegisters); extra > l.MaxOutgoingSlots {
					l.MaxOutgoingSlots = extra
				}
			}
		}
	}

	frame := arch.SaveAreaSize + offset + l.MaxOutgoingSlots*arch.LocationSize
	l.FrameSize = alignUp(frame, arch.StackAlignment)
	return l
}

// PhiMove is one value that must be copied into a phi's slot when
// control transfers from a specific predecessor.
type PhiMove struct {
	Phi   *ir.Value
	Value *ir.Value
}

// PhiMoves returns the moves that must be emitted at the end of pred,
// immediately before its branch to succ, to satisfy every phi in succ
// whose incoming edge is pred.
func PhiMoves(pred, succ *ir.Block) []PhiMove {
	var moves []PhiMove
	for _, ins := range succ.Instructions {
		if ins.Opcode != ir.OpPhi {
			continue
		}
		for i, from := range ins.Incoming {
			if from == pred {
				moves = append(moves, PhiMove{Phi: ins.Result, Value: ins.Operands[i]})
			}
		}
	}
	return moves
}
