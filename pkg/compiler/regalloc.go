package compiler

import "github.com/nooga/lucore/pkg/bytecode"

// regalloc tracks two independent cursors per scope: declared locals
// occupy offsets that persist until the enclosing lexical block ends,
// while anonymous temporaries (expression intermediates) recycle
// through a free list as soon as the compiler is done with them. This
// is a stack-with-free-list allocator, split into two independent
// cursors instead of one so locals and anonymous temporaries can have
// different lifetimes within the same frame.
type regalloc struct {
	localNext uint16
	localMax  uint16

	anonNext uint16
	anonMax  uint16
	anonFree []uint16
}

func newRegalloc() *regalloc {
	return &regalloc{}
}

// allocLocal reserves the next local slot; it is never freed early —
// it lives until the block that owns it closes.
func (r *regalloc) allocLocal() uint16 {
	reg := r.localNext
	r.localNext++
	if r.localNext > r.localMax {
		r.localMax = r.localNext
	}
	return reg
}

// localMark/localRestore save and restore the local cursor; restoring to a saved mark when a nested
// block (if/while/for body) ends, releasing its locals back for reuse
// by siblings: locals go out of scope with the block.
func (r *regalloc) localMark() uint16 { return r.localNext }
func (r *regalloc) localRestore(mark uint16) { r.localNext = mark }

// allocAnon reserves one anonymous temp, reusing a freed slot (LIFO)
// when available.
func (r *regalloc) allocAnon() uint16 {
	if n := len(r.anonFree); n > 0 {
		reg := r.anonFree[n-1]
		r.anonFree = r.anonFree[:n-1]
		return reg
	}
	reg := r.anonNext
	r.anonNext++
	if r.anonNext > r.anonMax {
		r.anonMax = r.anonNext
	}
	return reg
}

// freeAnon returns a temp to the free list once the expression that
// needed it has been fully lowered.
func (r *regalloc) freeAnon(reg uint16) {
	r.anonFree = append(r.anonFree, reg)
}

// allocAnonBlock reserves n contiguous anon slots, bypassing the free
// list — used only where the VM later reads a whole range by count
// (call argument windows, OpConsumeRetRange targets), since free-list
// reuse cannot guarantee contiguity.
func (r *regalloc) allocAnonBlock(n int) uint16 {
	base := r.anonNext
	r.anonNext += uint16(n)
	if r.anonNext > r.anonMax {
		r.anonMax = r.anonNext
	}
	return base
}

// anonMarkPoint/anonRestore bulk-free every temp allocated since mark, used
// when an entire statement's expression evaluation is done and none of
// its intermediates need to survive.
func (r *regalloc) anonMarkPoint() uint16 { return r.anonNext }
func (r *regalloc) anonRestore(mark uint16) {
	if mark < r.anonNext {
		r.anonNext = mark
	}
	kept := r.anonFree[:0]
	for _, reg := range r.anonFree {
		if reg < mark {
			kept = append(kept, reg)
		}
	}
	r.anonFree = kept
}

// localReg produces a bytecode.Register value for the scope
// depth this function's frame occupies; anon registers are encoded in
// the same local scope but at offsets above LocalRegisters, so the VM
// needs only one slice per frame (see pkg/vm).
func localReg(scope uint8, offset uint16) bytecode.Register {
	return bytecode.Register{Scope: scope, Offset: offset}
}
