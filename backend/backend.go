// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package backend implements the architecture registry: a map from
// target.ID to backend factories, plus the init/cleanup/reset
// lifecycle a Context's bound backend goes through. Per-architecture
// lowering lives in the family packages (backend/x86,
// backend/mainframe, backend/power, backend/arm64); each registers
// itself here from an init function, the same way ruse's compiler
// package dispatches on sys.Arch, generalized into a table instead of
// a switch statement.
package backend

import (
	"os"

	"github.com/bencz/anvil/diag"
	"github.com/bencz/anvil/ir"
	"github.com/bencz/anvil/target"
)

// Lowerer is the operation table a backend exposes: init/cleanup
// bracket a single Context binding, Reset clears per-module scratch
// state (satisfying ir.BackendHandle so the Context can ask for it
// without importing this package), and LowerModule/LowerFunction
// perform the actual text emission described by the common lowering
// algorithm.
type Lowerer interface {
	Init(ctx *ir.Context) error
	Cleanup()
	Reset()

	// Info returns the architecture record this Lowerer was built
	// for, for callers that want it without a separate target
	// lookup.
	Info() *target.Arch

	// LowerModule renders every function and global in mod as
	// target assembly text.
	LowerModule(ctx *ir.Context, mod *ir.Module) (string, error)

	// LowerFunction renders a single function, reusing the same
	// machinery LowerModule uses per-function.
	LowerFunction(ctx *ir.Context, fn *ir.Function) (string, error)
}

// Factory constructs a fresh, unbound Lowerer for one target.ID.
type Factory func(arch *target.Arch) Lowerer

var registry = map[target.ID]Factory{}

// Register associates id with factory. Called from each family
// package's init function; never called directly by ordinary users.
func Register(id target.ID, factory Factory) {
	registry[id] = factory
}

// Registered reports whether a backend factory is registered for id.
func Registered(id target.ID) bool {
	_, ok := registry[id]
	return ok
}

// Bind constructs, initializes, and binds a Lowerer for id on ctx,
// replacing any backend already bound. The architecture must already
// be registered; ctx need not have id as its currently selected
// architecture, though callers almost always match the two.
func Bind(ctx *ir.Context, id target.ID) (Lowerer, error) {
	factory, ok := registry[id]
	if !ok {
		return nil, diag.New(diag.NoBackend, "no backend registered for architecture %s", id)
	}

	arch := target.Lookup(id)
	if arch == nil {
		return nil, diag.New(diag.InvalidArgument, "unrecognised architecture %s", id)
	}

	l := factory(arch)
	if err := l.Init(ctx); err != nil {
		return nil, diag.Wrap(diag.Internal, err, "initializing backend for %s", id)
	}

	ctx.BindBackend(id, l)
	return l, nil
}

// resolve returns ctx's already-bound backend if it matches id, or
// binds a fresh one otherwise.
func resolve(ctx *ir.Context, id target.ID) (Lowerer, error) {
	if bound, boundArch := ctx.Backend(); bound != nil && boundArch == id {
		if l, ok := bound.(Lowerer); ok {
			return l, nil
		}
	}
	return Bind(ctx, id)
}

// RenderText lowers mod to assembly text for arch, binding (or
// reusing) ctx's backend for that architecture. This is the
// programmatic entry point external callers use instead of reaching
// into a specific family package directly.
func RenderText(ctx *ir.Context, mod *ir.Module, arch target.ID) (string, error) {
	l, err := resolve(ctx, arch)
	if err != nil {
		return "", err
	}
	return l.LowerModule(ctx, mod)
}

// WriteFile renders mod for arch and writes the result to path.
func WriteFile(path string, ctx *ir.Context, mod *ir.Module, arch target.ID) error {
	text, err := RenderText(ctx, mod, arch)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return diag.Wrap(diag.IO, err, "writing %s", path)
	}
	return nil
}
