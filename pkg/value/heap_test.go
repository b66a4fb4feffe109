package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeapAllocStartsAtRefCountOne(t *testing.T) {
	h := NewHeap()
	tbl := h.AllocTable(0)
	assert.Equal(t, int32(1), tbl.rc)
	assert.Equal(t, int64(1), h.StatsSnapshot().Allocated)
}

func TestHeapRetainRelease(t *testing.T) {
	h := NewHeap()
	tbl := h.AllocTable(0)
	v := TableV(tbl)

	h.Retain(v)
	assert.Equal(t, int32(2), tbl.rc)

	h.Release(v)
	assert.Equal(t, int32(1), tbl.rc)
	assert.Equal(t, int64(0), h.StatsSnapshot().Freed)

	h.Release(v)
	assert.Equal(t, int64(1), h.StatsSnapshot().Freed)
}

func TestHeapReleaseOnNonHeapValueIsNoop(t *testing.T) {
	h := NewHeap()
	assert.NotPanics(t, func() {
		h.Release(Nil)
		h.Release(IntV(3))
		h.Release(Str("x"))
	})
}

func TestHeapAcyclicChainFreesImmediately(t *testing.T) {
	h := NewHeap()
	inner := h.AllocTable(0)
	outer := h.AllocTable(0)
	assert.Nil(t, outer.Set(IntV(1), TableV(inner)))
	h.Retain(TableV(inner))
	h.Release(TableV(inner)) // drop the temp-register hold; outer's slot is now sole owner

	h.Release(TableV(outer))
	assert.Equal(t, int64(2), h.StatsSnapshot().Freed)
	assert.Equal(t, int64(0), h.StatsSnapshot().CyclesFreed)
}

func TestHeapCollectFreesSelfCycle(t *testing.T) {
	h := NewHeap()
	t1 := h.AllocTable(0)
	assert.Nil(t, t1.Set(IntV(1), TableV(t1)))
	h.Retain(TableV(t1))

	h.Release(TableV(t1))
	assert.Equal(t, int64(0), h.StatsSnapshot().Freed)

	h.Collect()
	assert.Equal(t, int64(1), h.StatsSnapshot().Collections)
	assert.Equal(t, int64(1), h.StatsSnapshot().CyclesFreed)
}

func TestHeapCollectFreesTwoTableCycle(t *testing.T) {
	h := NewHeap()
	t1 := h.AllocTable(0)
	t2 := h.AllocTable(0)
	assert.Nil(t, t1.Set(IntV(1), TableV(t2)))
	h.Retain(TableV(t2))
	assert.Nil(t, t2.Set(IntV(1), TableV(t1)))
	h.Retain(TableV(t1))

	h.Release(TableV(t1))
	h.Release(TableV(t2))
	assert.Equal(t, int64(0), h.StatsSnapshot().Freed)

	h.Collect()
	assert.Equal(t, int64(2), h.StatsSnapshot().CyclesFreed)
}

func TestHeapCollectLeavesReachableCycleAlone(t *testing.T) {
	h := NewHeap()
	t1 := h.AllocTable(0)
	t2 := h.AllocTable(0)
	assert.Nil(t, t1.Set(IntV(1), TableV(t2)))
	h.Retain(TableV(t2))
	assert.Nil(t, t2.Set(IntV(1), TableV(t1)))
	h.Retain(TableV(t1))

	// Neither table's original alloc-time hold was ever dropped, so both
	// remain externally rooted and the cycle must survive Collect.
	h.Collect()
	assert.Equal(t, int64(0), h.StatsSnapshot().CyclesFreed)
	assert.Equal(t, colorBlack, t1.color)
	assert.Equal(t, colorBlack, t2.color)
}
