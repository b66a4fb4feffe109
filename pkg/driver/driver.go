// Package driver implements the embedding surface: the Runtime an
// embedder constructs once, then uses to register globals, compile
// externally-produced ast.Block trees, and execute the resulting
// bytecode.Chunk. It owns the one *value.Heap and globals *value.Table
// a session's compiled chunks all execute against.
package driver

import (
	"github.com/google/uuid"

	"github.com/nooga/lucore/pkg/ast"
	"github.com/nooga/lucore/pkg/bytecode"
	"github.com/nooga/lucore/pkg/compiler"
	"github.com/nooga/lucore/pkg/config"
	errs "github.com/nooga/lucore/pkg/errors"
	"github.com/nooga/lucore/pkg/source"
	"github.com/nooga/lucore/pkg/value"
	"github.com/nooga/lucore/pkg/vm"
)

// Runtime is one embedding session: a globals table, a heap, and the
// config that sized them. ID is a diagnostics-only session identifier
// — no execution semantics depend on it.
type Runtime struct {
	ID      uuid.UUID
	cfg     *config.RuntimeConfig
	globals *value.Table
	heap    *value.Heap
	source  *source.SourceFile
}

// SetSource attaches sf to this runtime so any compile or runtime
// error from here on reports it (see errors.Position.Source); the
// embedder sets this once it knows what block of text the next
// Compile call's ast.Block was built from.
func (r *Runtime) SetSource(sf *source.SourceFile) {
	r.source = sf
}

// New creates a Runtime. A nil cfg falls back to config.Default().
func New(cfg *config.RuntimeConfig) *Runtime {
	if cfg == nil {
		cfg = config.Default()
	}
	heap := value.NewHeap()
	return &Runtime{
		ID:      uuid.New(),
		cfg:     cfg,
		globals: heap.AllocTable(cfg.GlobalsTableSizeHint),
		heap:    heap,
	}
}

// RegisterGlobal binds name to v in the runtime's global table, for
// use before the first Execute (e.g. installing a host function).
func (r *Runtime) RegisterGlobal(name string, v value.Value) {
	r.globals.Set(value.Str(name), v)
	r.heap.Retain(v)
}

// LoadGlobal reads name out of the runtime's global table. A missing
// key and an explicit Nil value are indistinguishable here, since
// missing keys read as Nil — ok reports whether the read produced a
// non-Nil value, not whether the key was ever set.
func (r *Runtime) LoadGlobal(name string) (value.Value, bool) {
	v := r.globals.Get(value.Str(name))
	return v, !v.IsNil()
}

// Compile lowers block into a bytecode.Chunk via pkg/compiler.
func (r *Runtime) Compile(block *ast.Block) (*bytecode.Chunk, *errs.CompileError) {
	chunk, cerr := compiler.Compile(block)
	if cerr != nil && r.source != nil {
		cerr.Source = r.source
	}
	return chunk, cerr
}

// Execute runs chunk's main function against this runtime's globals
// and heap. At least one Collect() pass per top-level execute is
// required; pkg/vm.Execute performs that pass unconditionally, with an
// additional pass here when the runtime's config asks for one (see
// config.RuntimeConfig.GCAutoCollect).
func (r *Runtime) Execute(chunk *bytecode.Chunk) ([]value.Value, errs.LuaError) {
	m := vm.New(chunk, r.globals, r.heap)
	results, err := m.Execute()
	if opErr, ok := err.(*errs.OpError); ok && r.source != nil {
		opErr.Source = r.source
	}
	if r.cfg.GCAutoCollect {
		r.heap.Collect()
	}
	return results, err
}

// CompileAndExecute is a convenience wrapper over Compile then Execute,
// surfacing a compile error as the same errs.LuaError the embedder
// already handles for runtime errors.
func (r *Runtime) CompileAndExecute(block *ast.Block) ([]value.Value, errs.LuaError) {
	chunk, cerr := r.Compile(block)
	if cerr != nil {
		return nil, cerr
	}
	return r.Execute(chunk)
}

// Stats surfaces the runtime's cumulative heap counters for embedder
// diagnostics; their exact shape is implementation-defined.
func (r *Runtime) Stats() value.Stats {
	return r.heap.StatsSnapshot()
}
