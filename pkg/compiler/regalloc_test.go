package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegallocLocalsNeverReused(t *testing.T) {
	r := newRegalloc()
	a := r.allocLocal()
	b := r.allocLocal()
	assert.Equal(t, uint16(0), a)
	assert.Equal(t, uint16(1), b)
	assert.Equal(t, uint16(2), r.localMax)

	mark := r.localMark()
	r.allocLocal()
	r.localRestore(mark)
	assert.Equal(t, uint16(2), r.localNext)
	assert.Equal(t, uint16(3), r.localMax, "localMax records the high-water mark even after restore")
}

func TestRegallocAnonFreeListLIFOReuse(t *testing.T) {
	r := newRegalloc()
	a := r.allocAnon()
	b := r.allocAnon()
	r.freeAnon(a)
	r.freeAnon(b)

	// LIFO: b was freed last, so it comes back first.
	got := r.allocAnon()
	assert.Equal(t, b, got)
	got2 := r.allocAnon()
	assert.Equal(t, a, got2)
}

func TestRegallocAnonBlockIsContiguousAndBypassesFreeList(t *testing.T) {
	r := newRegalloc()
	solo := r.allocAnon()
	r.freeAnon(solo)

	base := r.allocAnonBlock(3)
	// A block allocation must not satisfy itself from the free list,
	// since the VM reads the whole range by count and needs contiguity.
	assert.NotEqual(t, solo, base)
	assert.Equal(t, uint16(3), r.anonNext-base)
}

func TestRegallocAnonMarkRestoreDropsNewerFreedSlots(t *testing.T) {
	r := newRegalloc()
	r.allocAnon()
	mark := r.anonMarkPoint()
	c := r.allocAnon()
	r.freeAnon(c)

	r.anonRestore(mark)
	assert.Equal(t, mark, r.anonNext)
	assert.Empty(t, r.anonFree, "the freed slot allocated after mark must not survive the restore")
}
