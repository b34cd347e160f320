// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import "github.com/bencz/anvil/diag"

func errBlockTerminated(b *Block) error {
	return diag.New(diag.InvalidArgument, "block %q is already terminated", b.Label)
}

// Block is a basic block: a straight-line sequence of Instructions
// ending, once complete, in exactly one terminator (br, br_cond, or
// ret). Blocks are owned by a Function and referenced by label from
// br/br_cond targets and phi incoming edges.
type Block struct {
	ID    int64
	Label string

	Func *Function

	Instructions []*Instruction

	preds []*Block
}

// Terminator returns the Block's terminating Instruction, or nil if
// the Block has not yet been terminated.
func (b *Block) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if last.Opcode.IsTerminator() {
		return last
	}
	return nil
}

// IsTerminated reports whether the Block already ends in a
// terminator instruction.
func (b *Block) IsTerminated() bool { return b.Terminator() != nil }

// Predecessors returns the Blocks known to branch to b. The set is
// maintained incrementally as br/br_cond instructions are built
// and by the CFG-simplification pass; it is not recomputed lazily.
func (b *Block) Predecessors() []*Block { return b.preds }

// Successors returns the Blocks this Block's terminator can transfer
// control to, or nil if b is unterminated or ends in ret.
func (b *Block) Successors() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	return term.Targets
}

func (b *Block) addPredecessor(p *Block) {
	for _, existing := range b.preds {
		if existing == p {
			return
		}
	}
	b.preds = append(b.preds, p)
}

func (b *Block) removePredecessor(p *Block) {
	out := b.preds[:0]
	for _, existing := range b.preds {
		if existing != p {
			out = append(out, existing)
		}
	}
	b.preds = out
}

// LinkSuccessor records b as a predecessor of target. Called by the
// build package after it sets a terminator instruction's Targets, so
// the CFG's predecessor lists stay consistent with the edges its
// instructions encode.
func (b *Block) LinkSuccessor(target *Block) { target.addPredecessor(b) }

// UnlinkSuccessor removes b from target's predecessor list, used by
// the optimizer when it rewrites or deletes a terminator.
func (b *Block) UnlinkSuccessor(target *Block) { target.removePredecessor(b) }

// append adds ins as the next instruction in the block. The builder
// is responsible for refusing to append after a terminator.
func (b *Block) append(ins *Instruction) {
	ins.Block = b
	b.Instructions = append(b.Instructions, ins)
}

// NewInstruction appends a new instruction of the given opcode and
// operands to b. If resultType is non-nil, the instruction is given a
// fresh result Value of that type, returned as ins.Result. Callers
// (the build package) are responsible for validating that operands
// and resultType satisfy the opcode's contract before calling this;
// NewInstruction itself only refuses to append past an existing
// terminator.
func (b *Block) NewInstruction(op Opcode, resultType Type, operands ...*Value) (*Instruction, error) {
	if b.IsTerminated() {
		return nil, errBlockTerminated(b)
	}

	ins := &Instruction{
		ID:       b.Func.module.nextValueID(),
		Opcode:   op,
		Operands: append([]*Value(nil), operands...),
	}
	b.append(ins)

	if resultType != nil {
		ins.newResult(b.Func, resultType)
	}

	return ins, nil
}

func (b *Block) release() {
	b.Instructions = nil
	b.preds = nil
}
