// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// DeadCodeElim removes instructions whose result is never used and
// whose opcode has no side effect. Stores, calls, and terminators are
// never removed, even when their result (if any) goes unused.
type DeadCodeElim struct{}

func (*DeadCodeElim) Name() string          { return "dead-code-elim" }
func (*DeadCodeElim) MinLevel() ir.OptLevel { return ir.OptBasic }

func (p *DeadCodeElim) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false

	for _, b := range fn.Blocks {
		var kept []*ir.Instruction
		for _, ins := range b.Instructions {
			if ins.Opcode.HasSideEffect() || ins.Opcode.IsTerminator() {
				kept = append(kept, ins)
				continue
			}
			if ins.Result == nil {
				kept = append(kept, ins)
				continue
			}
			if countUses(fn, ins.Result) > 0 {
				kept = append(kept, ins)
				continue
			}
			changed = true
		}
		b.Instructions = kept
	}

	return changed, nil
}
