// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"

	"github.com/bencz/anvil/diag"
	"github.com/bencz/anvil/target"
)

// OptLevel selects how aggressively the optimizer rewrites a
// Module's IR. Each built-in pass declares a minimum level that
// enables it; raising the level deterministically enables the
// corresponding subset of passes.
type OptLevel int

const (
	OptNone OptLevel = iota
	OptBasic
	OptStandard
	OptAggressive
)

func (l OptLevel) String() string {
	switch l {
	case OptNone:
		return "none"
	case OptBasic:
		return "basic"
	case OptStandard:
		return "standard"
	case OptAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("OptLevel(%d)", int(l))
	}
}

// arrayKey and pointer/struct/func keys are used to intern composite
// types: two structurally identical constructions must return the
// same *Type value.
type arrayKey struct {
	elem   Type
	length int
}

// BackendHandle is the opaque interface a bound backend instance
// exposes back to the Context; it lets the Context ask a backend to
// reset its per-module scratch state without the ir package needing
// to import the backend package (which would create an import
// cycle, since backends depend on ir).
type BackendHandle interface {
	Reset()
}

// Context is process-wide state for a single compilation session: an
// interned type table, id generators, the selected target
// configuration, the current insertion point, and the last error.
// A Context is not safe for concurrent use; independent Contexts may
// be used freely by independent callers.
type Context struct {
	arch     *target.Arch
	abi      *target.ABI
	fpFormat target.FPFormat
	cpu      target.Model
	optLevel OptLevel

	insertPoint *Block

	backend     BackendHandle
	backendArch target.ID

	lastErr error
	history []error

	modules []*Module

	voidType    *VoidType
	intTypes    map[[2]int]*IntType
	floatTypes  map[int]*FloatType
	pointerType map[Type]*PointerType
	arrayType   map[arrayKey]*ArrayType
	structType  map[string]*StructType
	funcType    map[string]*FuncType
}

// NewContext creates a fresh compilation session with no target
// architecture bound. The caller must call SetArchitecture before
// constructing any type whose size depends on the target (pointers,
// arrays, structs) or before requesting code generation.
func NewContext() *Context {
	return &Context{
		fpFormat:    target.FPIEEE754,
		cpu:         target.Generic,
		voidType:    &VoidType{},
		intTypes:    make(map[[2]int]*IntType),
		floatTypes:  make(map[int]*FloatType),
		pointerType: make(map[Type]*PointerType),
		arrayType:   make(map[arrayKey]*ArrayType),
		structType:  make(map[string]*StructType),
		funcType:    make(map[string]*FuncType),
	}
}

// Close releases every Module the Context produced, in a safe order
// (each Module releases its Functions and Globals, which release
// their Blocks, Instructions, and owned constant Values).
func (c *Context) Close() error {
	for _, m := range c.modules {
		m.release()
	}
	c.modules = nil
	return nil
}

// fail records err as the Context's last error (and appends it to
// the diagnostic history) and returns it, so call sites can write
// `return c.fail(diag.New(...))`.
func (c *Context) fail(err error) error {
	c.lastErr = err
	c.history = append(c.history, err)
	return err
}

// Err returns the most recently recorded error, or nil if none has
// occurred since the Context was created (or since the caller last
// chose to ignore it — Err does not clear the slot).
func (c *Context) Err() error { return c.lastErr }

// History returns every error recorded on this Context, oldest
// first.
func (c *Context) History() []error { return c.history }

// SetArchitecture binds arch as the Context's target architecture.
// All derived sizes (pointer size, struct layout) computed by types
// constructed afterwards are fixed to this architecture for the
// lifetime of any Module the Context produces.
func (c *Context) SetArchitecture(id target.ID) error {
	arch := target.Lookup(id)
	if arch == nil {
		return c.fail(diag.New(diag.InvalidArgument, "unrecognised architecture %s", id))
	}

	c.arch = arch
	c.abi = &arch.DefaultABI
	c.backend = nil
	c.backendArch = target.Invalid

	if !arch.Supports(c.fpFormat) {
		c.fpFormat = target.FPIEEE754
	}

	return nil
}

// Architecture returns the Context's bound architecture, or nil if
// none has been selected.
func (c *Context) Architecture() *target.Arch { return c.arch }

// SetABI overrides the calling convention used for functions created
// afterwards. Passing nil resets to the architecture's default ABI.
func (c *Context) SetABI(abi *target.ABI) error {
	if c.arch == nil {
		return c.fail(diag.New(diag.NoBackend, "cannot set ABI before an architecture is selected"))
	}

	if abi == nil {
		c.abi = &c.arch.DefaultABI
		return nil
	}

	if err := c.arch.Validate(abi); err != nil {
		return c.fail(diag.Wrap(diag.InvalidArgument, err, "invalid ABI for %s", c.arch.Name))
	}

	c.abi = abi
	return nil
}

// ABI returns the Context's active calling convention.
func (c *Context) ABI() *target.ABI { return c.abi }

// SetFPFormat selects which floating-point instruction family later
// code generation should prefer. Returns Unsupported if the bound
// architecture cannot emit the requested format.
func (c *Context) SetFPFormat(f target.FPFormat) error {
	if c.arch != nil && !c.arch.Supports(f) {
		return c.fail(diag.New(diag.Unsupported, "architecture %s does not support floating-point format %s", c.arch.Name, f))
	}

	c.fpFormat = f
	return nil
}

// FPFormat returns the Context's active floating-point format
// selector.
func (c *Context) FPFormat() target.FPFormat { return c.fpFormat }

// SetCPUModel records the CPU model used to gate feature-dependent
// lowering choices (population count, byte-reversal, and so on).
func (c *Context) SetCPUModel(m target.Model) { c.cpu = m }

// CPUModel returns the Context's active CPU model.
func (c *Context) CPUModel() target.Model { return c.cpu }

// HasFeature reports whether the Context's CPU model implements f.
func (c *Context) HasFeature(f target.Feature) bool { return c.cpu.Has(f) }

// SetOptLevel sets the optimization level consulted by the Pass
// Manager when it is run over a Module produced by this Context.
func (c *Context) SetOptLevel(l OptLevel) { c.optLevel = l }

// OptLevel returns the Context's active optimization level.
func (c *Context) OptLevel() OptLevel { return c.optLevel }

// SetInsertPoint sets the Block at which subsequent Builder calls
// append instructions.
func (c *Context) SetInsertPoint(b *Block) { c.insertPoint = b }

// InsertPoint returns the Context's current insertion Block, or nil
// if none is set.
func (c *Context) InsertPoint() *Block { return c.insertPoint }

// WithBlock temporarily sets the insertion point to b, runs fn, and
// restores the previous insertion point afterwards. This is the
// scoped helper the design notes call for, so test code (and
// optimizer passes that synthesize replacement instructions) can
// assert and restore the ambient insertion-point invariant.
func (c *Context) WithBlock(b *Block, fn func()) {
	prev := c.insertPoint
	c.insertPoint = b
	defer func() { c.insertPoint = prev }()
	fn()
}

// BindBackend records the backend instance bound for architecture id
// so it can be reset between Modules. Called by the backend package's
// registry, not by ordinary callers.
func (c *Context) BindBackend(id target.ID, h BackendHandle) {
	c.backendArch = id
	c.backend = h
}

// Backend returns the Context's currently bound backend handle, and
// the architecture it was bound for.
func (c *Context) Backend() (BackendHandle, target.ID) { return c.backend, c.backendArch }

// ResetBackend asks the bound backend to discard its per-module
// scratch state, if one is bound.
func (c *Context) ResetBackend() {
	if c.backend != nil {
		c.backend.Reset()
	}
}
