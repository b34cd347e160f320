// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// CFGSimplify merges a block that ends in an unconditional branch
// into its unique successor when that successor has no other
// predecessor, elides a block that contains nothing but an
// unconditional branch by redirecting its predecessors' branch
// targets straight to its successor (the diamond case: a conditional
// branching to two empty blocks that both jump to a common merge
// block collapses to a direct branch to the merge block), and
// deletes blocks no longer reachable from the function's entry. It
// never merges across a call: calls are ordinary instructions within
// a block and are carried along with the rest of the merged block's
// body, so their relative order with respect to other side-effecting
// instructions is preserved exactly.
type CFGSimplify struct{}

func (*CFGSimplify) Name() string          { return "cfg-simplify" }
func (*CFGSimplify) MinLevel() ir.OptLevel { return ir.OptStandard }

func (p *CFGSimplify) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false
	for mergeStraightLine(fn) || elideEmptyBlock(fn) {
		changed = true
	}
	if removeUnreachable(fn) {
		changed = true
	}
	return changed, nil
}

// mergeStraightLine performs at most one merge per call, since
// merging mutates fn.Blocks; the caller loops until it reports no
// further merge is available.
func mergeStraightLine(fn *ir.Function) bool {
	for _, a := range fn.Blocks {
		term := a.Terminator()
		if term == nil || term.Opcode != ir.OpBr {
			continue
		}

		b := term.Targets[0]
		if b == a {
			continue
		}
		preds := b.Predecessors()
		if len(preds) != 1 || preds[0] != a {
			continue
		}

		mergeInto(fn, a, b)
		return true
	}
	return false
}

func mergeInto(fn *ir.Function, a, b *ir.Block) {
	// Drop a's trailing unconditional branch.
	a.Instructions = a.Instructions[:len(a.Instructions)-1]
	a.UnlinkSuccessor(b)

	for _, ins := range b.Instructions {
		if ins.Opcode == ir.OpPhi {
			// b had exactly one predecessor, so any phi here has
			// exactly one incoming value; forward it directly.
			if len(ins.Operands) > 0 {
				replaceUses(fn, ins.Result, ins.Operands[0])
			}
			continue
		}
		ins.Block = a
		a.Instructions = append(a.Instructions, ins)
	}

	if bterm := a.Terminator(); bterm != nil {
		for _, t := range bterm.Targets {
			b.UnlinkSuccessor(t)
			a.LinkSuccessor(t)
		}
	}

	removeBlock(fn, b)
}

// elideEmptyBlock finds a non-entry block whose only instruction is
// an unconditional branch and removes it, redirecting every
// predecessor's branch target straight to the elided block's
// successor. This is what collapses a diamond — "br_cond c, A, B; A:
// br merge; B: br merge" — since neither A nor B is a unique
// predecessor of merge, so mergeStraightLine never touches them, but
// each is individually empty and eligible here. At most one block is
// elided per call; the caller loops until neither helper reports
// progress.
func elideEmptyBlock(fn *ir.Function) bool {
	for _, e := range fn.Blocks {
		if e == fn.Entry || len(e.Instructions) != 1 {
			continue
		}
		term := e.Instructions[0]
		if term.Opcode != ir.OpBr {
			continue
		}

		succ := term.Targets[0]
		if succ == e {
			continue
		}

		preds := append([]*ir.Block(nil), e.Predecessors()...)
		if len(preds) == 0 {
			continue
		}

		redirectPhiIncoming(succ, e, preds)

		for _, p := range preds {
			pterm := p.Terminator()
			for i, t := range pterm.Targets {
				if t == e {
					pterm.Targets[i] = succ
				}
			}
			p.UnlinkSuccessor(e)
			p.LinkSuccessor(succ)
		}
		e.UnlinkSuccessor(succ)

		removeBlock(fn, e)
		return true
	}
	return false
}

// redirectPhiIncoming rewrites every phi in succ whose incoming edge
// is the elided block e into one incoming edge per entry in preds,
// all carrying the value that used to arrive via e. This is sound
// because e contains no instructions of its own (elideEmptyBlock only
// considers blocks with nothing but their terminating br), so the
// value reaching succ through e is the same no matter which of e's
// predecessors was taken.
func redirectPhiIncoming(succ, e *ir.Block, preds []*ir.Block) {
	for _, ins := range succ.Instructions {
		if ins.Opcode != ir.OpPhi {
			continue
		}
		for i, inc := range ins.Incoming {
			if inc != e {
				continue
			}
			val := ins.Operands[i]
			ins.Incoming = append(ins.Incoming[:i:i], ins.Incoming[i+1:]...)
			ins.Operands = append(ins.Operands[:i:i], ins.Operands[i+1:]...)
			for _, p := range preds {
				ins.Incoming = append(ins.Incoming, p)
				ins.Operands = append(ins.Operands, val)
			}
			break
		}
	}
}

func removeBlock(fn *ir.Function, dead *ir.Block) {
	out := fn.Blocks[:0]
	for _, b := range fn.Blocks {
		if b != dead {
			out = append(out, b)
		}
	}
	fn.Blocks = out
}

func removeUnreachable(fn *ir.Function) bool {
	if fn.Entry == nil {
		return false
	}

	reachable := map[*ir.Block]bool{fn.Entry: true}
	queue := []*ir.Block{fn.Entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range cur.Successors() {
			if !reachable[succ] {
				reachable[succ] = true
				queue = append(queue, succ)
			}
		}
	}

	changed := false
	var kept []*ir.Block
	for _, b := range fn.Blocks {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}
		for _, succ := range b.Successors() {
			b.UnlinkSuccessor(succ)
		}
		changed = true
	}
	fn.Blocks = kept
	return changed
}
