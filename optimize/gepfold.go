// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// GEPFold removes a gep or struct_gep immediately followed by a
// load/store of its result when that result has exactly one use,
// recording the address computation on the memory instruction's
// AddrMode field instead. The folded instruction no longer occupies a
// slot in its block, so it never receives a frame slot from
// ComputeLayout either: every registered backend's load/store path
// consults AddrMode when present and replays the address computation
// from its original operands rather than reloading Operands[0] from a
// slot that no longer exists.
type GEPFold struct{}

func (*GEPFold) Name() string          { return "gep-fold" }
func (*GEPFold) MinLevel() ir.OptLevel { return ir.OptAggressive }

func (p *GEPFold) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false

	for _, b := range fn.Blocks {
		var fold []*ir.Instruction

		for i := 1; i < len(b.Instructions); i++ {
			ins := b.Instructions[i]
			if ins.Opcode != ir.OpLoad && ins.Opcode != ir.OpStore {
				continue
			}

			addr := ins.Operands[0]
			gep := addr.Producer
			if gep == nil || gep.Block != b {
				continue
			}
			if gep.Opcode != ir.OpGEP && gep.Opcode != ir.OpStructGEP {
				continue
			}
			if b.Instructions[i-1] != gep {
				continue
			}
			if countUses(fn, addr) != 1 {
				continue
			}

			ins.AddrMode = gep
			fold = append(fold, gep)
		}

		for _, gep := range fold {
			removeInstruction(b, gep)
			changed = true
		}
	}

	return changed, nil
}
