package value

// Scope is a reference-counted vector of value cells — one per lexical
// block or function activation. Multiple closures and enclosing blocks
// may hold the same *Scope; writes through any holder are visible to
// all, which is how closures share mutable captures. Scopes
// participate in GC tracing (a Function traces every captured scope's
// cells) but use plain reference counts without cycle detection: a
// Scope is owned exclusively by the Functions that capture it and the
// frames that push it, and any cycle a Scope could be part of
// necessarily runs through a Function, which the traced heap already
// handles.
type Scope struct {
	rc    int32
	Cells []Value
}

// NewScope allocates a scope with size value cells, all initialized to
// Nil. size is the compiler's local_registers/ScopeDescriptor.size.
func NewScope(size int) *Scope {
	return &Scope{rc: 1, Cells: make([]Value, size)}
}

// Retain records another strong holder of s and returns s, so callers
// can write `captured = append(captured, s.Retain())`.
func (s *Scope) Retain() *Scope {
	s.rc++
	return s
}

// Release drops a strong holder. Scopes are otherwise reclaimed by
// Go's own GC once unreachable; rc here exists purely as bookkeeping
// so diagnostics (and tests) can observe the ownership contract a
// Scope is meant to follow, not as the actual memory-safety mechanism.
func (s *Scope) Release() {
	if s.rc > 0 {
		s.rc--
	}
}

// RefCount reports the current strong count, for tests and diagnostics.
func (s *Scope) RefCount() int32 { return s.rc }
