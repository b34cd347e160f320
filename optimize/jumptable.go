// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// jumpTableMinChain is the minimum number of chained equality
// comparisons against the same value required before the detection
// pass marks the chain.
const jumpTableMinChain = 4

// JumpTableUpgrade detects a chain of br_cond-on-icmp.eq blocks that
// all compare the same left-hand value against integer constants,
// threaded through each other's false edge — the shape a
// compare-chain lowering of a switch statement produces. It is
// detection-only: it never rewrites the IR, since collapsing the
// chain into an actual jump table is a backend lowering concern, not
// an IR-level rewrite. Run therefore always reports no change; the
// JumpTableCandidate flag it sets on the chain's first br_cond is the
// pass's entire effect, and is safe for a backend to ignore. Only the
// chain's length is checked: whether its constants are distinct or
// form a dense range is not.
type JumpTableUpgrade struct{}

func (*JumpTableUpgrade) Name() string          { return "jump-table-upgrade" }
func (*JumpTableUpgrade) MinLevel() ir.OptLevel { return ir.OptAggressive }

func (p *JumpTableUpgrade) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term == nil || term.Opcode != ir.OpBrCond || term.JumpTableCandidate {
			continue
		}

		cond := term.Operands[0]
		cmp := cond.Producer
		if cmp == nil || cmp.Opcode != ir.OpICmpEQ {
			continue
		}
		lhs := cmp.Operands[0]
		if _, ok := isConstInt(cmp.Operands[1]); !ok {
			continue
		}

		length := chainLength(b, lhs)
		if length >= jumpTableMinChain {
			term.JumpTableCandidate = true
		}
	}

	return false, nil
}

// chainLength counts how many consecutive blocks, starting at start,
// each end in br_cond(icmp.eq(lhs, const), _, nextFalseBlock).
func chainLength(start *ir.Block, lhs *ir.Value) int {
	count := 0
	b := start
	for b != nil {
		term := b.Terminator()
		if term == nil || term.Opcode != ir.OpBrCond {
			break
		}
		cmp := term.Operands[0].Producer
		if cmp == nil || cmp.Opcode != ir.OpICmpEQ || cmp.Operands[0] != lhs {
			break
		}
		if _, ok := isConstInt(cmp.Operands[1]); !ok {
			break
		}

		count++
		b = term.Targets[1]
	}
	return count
}
