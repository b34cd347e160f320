// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package optimize

import "github.com/bencz/anvil/ir"

// DeadStoreElim drops a store that is provably overwritten by a
// later store to the same address within a straight-line sequence,
// provided no load or other observable effect occurs between them.
// Aliasing is assumed conservatively: any store to a different
// address, any call, and any branch invalidates every tracked fact.
type DeadStoreElim struct{}

func (*DeadStoreElim) Name() string          { return "dead-store-elim" }
func (*DeadStoreElim) MinLevel() ir.OptLevel { return ir.OptStandard }

func (p *DeadStoreElim) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false

	for _, b := range fn.Blocks {
		lastStore := map[*ir.Value]*ir.Instruction{}
		var dead []*ir.Instruction

		for _, ins := range b.Instructions {
			switch ins.Opcode {
			case ir.OpLoad:
				lastStore = map[*ir.Value]*ir.Instruction{}
			case ir.OpStore:
				addr := ins.Operands[0]
				if prev, ok := lastStore[addr]; ok {
					dead = append(dead, prev)
				}
				lastStore = map[*ir.Value]*ir.Instruction{addr: ins}
			case ir.OpCall:
				lastStore = map[*ir.Value]*ir.Instruction{}
			default:
				if ins.Opcode.IsTerminator() {
					lastStore = map[*ir.Value]*ir.Instruction{}
				}
			}
		}

		for _, ins := range dead {
			removeInstruction(b, ins)
			changed = true
		}
	}

	return changed, nil
}

// RedundantLoadElim reuses the value of a prior load from the same
// address within a straight-line sequence when no intervening store,
// call, or branch could have changed it. Aliasing is assumed
// conservatively, matching DeadStoreElim.
type RedundantLoadElim struct{}

func (*RedundantLoadElim) Name() string          { return "redundant-load-elim" }
func (*RedundantLoadElim) MinLevel() ir.OptLevel { return ir.OptStandard }

func (p *RedundantLoadElim) Run(ctx *ir.Context, fn *ir.Function) (bool, error) {
	changed := false

	for _, b := range fn.Blocks {
		lastLoad := map[*ir.Value]*ir.Value{}
		var redundant []*ir.Instruction

		for _, ins := range b.Instructions {
			switch ins.Opcode {
			case ir.OpLoad:
				addr := ins.Operands[0]
				if val, ok := lastLoad[addr]; ok {
					replaceUses(fn, ins.Result, val)
					redundant = append(redundant, ins)
					continue
				}
				lastLoad[addr] = ins.Result
			case ir.OpStore:
				lastLoad = map[*ir.Value]*ir.Value{}
			case ir.OpCall:
				lastLoad = map[*ir.Value]*ir.Value{}
			default:
				if ins.Opcode.IsTerminator() {
					lastLoad = map[*ir.Value]*ir.Value{}
				}
			}
		}

		for _, ins := range redundant {
			removeInstruction(b, ins)
			changed = true
		}
	}

	return changed, nil
}
