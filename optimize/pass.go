// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package optimize implements the pass manager and the built-in IR
// rewrite passes: constant folding, dead code elimination, CFG
// simplification, strength reduction, copy propagation, dead-store
// elimination, redundant-load elimination, and common-subexpression
// elimination, plus two opt-in expansion passes.
package optimize

import (
	"fmt"

	"github.com/bencz/anvil/ir"
)

// Pass is a single IR rewrite, scoped to one function at a time. Run
// reports whether it changed the function, so the Manager knows
// whether another iteration might find more work.
//
// A pass that cannot express a rewrite safely at this level of the
// IR may report false unconditionally and simply detect
// opportunities for a later stage to consume (see jumptable.go); this
// is allowed by the pass manager's contract and must be noted in the
// pass's own doc comment.
type Pass interface {
	Name() string
	MinLevel() ir.OptLevel
	Run(ctx *ir.Context, fn *ir.Function) (bool, error)
}

// Manager owns the registered passes and the fixed-point iteration
// cap. The zero Manager has no passes; use NewManager for the
// built-in set.
type Manager struct {
	passes        []Pass
	maxIterations int
}

// defaultMaxIterations bounds the fixed-point loop so a pair of
// passes that keep undoing each other's work cannot hang a build.
const defaultMaxIterations = 32

// NewManager returns a Manager with all built-in passes registered in
// the order required passes are expected to run: folding and DCE
// first (each tends to expose work for the other), then strength
// reduction and copy propagation, then the structural and memory
// passes, then CSE, and finally the two opt-in expansion passes.
func NewManager() *Manager {
	m := &Manager{maxIterations: defaultMaxIterations}
	m.Register(&ConstantFold{})
	m.Register(&DeadCodeElim{})
	m.Register(&StrengthReduce{})
	m.Register(&CopyPropagate{})
	m.Register(&CFGSimplify{})
	m.Register(&DeadStoreElim{})
	m.Register(&RedundantLoadElim{})
	m.Register(&CSE{})
	m.Register(&JumpTableUpgrade{})
	m.Register(&GEPFold{})
	return m
}

// Register adds a pass to the end of the manager's pass list. Custom
// passes (and the built-ins, which use this same path from
// NewManager) are registered identically.
func (m *Manager) Register(p Pass) { m.passes = append(m.passes, p) }

// SetMaxIterations overrides the fixed-point iteration cap.
func (m *Manager) SetMaxIterations(n int) { m.maxIterations = n }

// Run optimizes every function in mod at ctx's active optimization
// level, function by function.
func (m *Manager) Run(ctx *ir.Context, mod *ir.Module) error {
	for _, fn := range mod.Functions {
		if fn.IsDeclaration() {
			continue
		}
		if err := m.RunFunction(ctx, fn); err != nil {
			return fmt.Errorf("optimizing %s: %w", fn.Name, err)
		}
	}
	return nil
}

// RunFunction repeatedly runs every pass enabled at ctx.OptLevel(), in
// registered order, until a full sweep makes no change or the
// iteration cap is reached.
func (m *Manager) RunFunction(ctx *ir.Context, fn *ir.Function) error {
	level := ctx.OptLevel()

	for i := 0; i < m.maxIterations; i++ {
		changed := false
		for _, p := range m.passes {
			if p.MinLevel() > level {
				continue
			}
			did, err := p.Run(ctx, fn)
			if err != nil {
				return fmt.Errorf("pass %s: %w", p.Name(), err)
			}
			changed = changed || did
		}
		if !changed {
			return nil
		}
	}
	return nil
}
