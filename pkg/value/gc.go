package value

// Collect runs one trial-deletion cycle-collection pass over every
// object buffered as a possible cycle root since the last Collect. It
// is safe to call at any quiescent point; the runtime calls this at
// least once when a top-level execute returns.
//
// This is the classic Bacon–Rajan three-pass algorithm: MarkGray
// speculatively decrements every buffered root's children as if the
// root were garbage; Scan restores true counts (ScanBlack) wherever a
// positive count survives, and marks the rest White; CollectWhite frees
// every White object still unreached by a ScanBlack restoration — that
// is exactly the purple set's unreachable-from-any-root garbage,
// cyclic or not.
func (h *Heap) Collect() {
	h.stats.Collections++
	roots := h.purple
	h.purple = nil

	for _, o := range roots {
		markGray(o)
	}
	for _, o := range roots {
		scan(o)
	}
	freed := map[traceable]bool{}
	for _, o := range roots {
		o.header().buffered = false
		collectWhite(o, freed)
	}
	h.stats.CyclesFreed += int64(len(freed))
}

func eachChild(o traceable, f func(traceable)) {
	o.visitChildren(func(v Value) {
		if c := heapObj(v); c != nil {
			f(c)
		}
	})
}

func markGray(o traceable) {
	hdr := o.header()
	if hdr.color == colorGray {
		return
	}
	hdr.color = colorGray
	eachChild(o, func(c traceable) {
		c.header().rc--
		markGray(c)
	})
}

func scan(o traceable) {
	hdr := o.header()
	if hdr.color != colorGray {
		return
	}
	if hdr.rc > 0 {
		scanBlack(o)
		return
	}
	hdr.color = colorWhite
	eachChild(o, scan)
}

func scanBlack(o traceable) {
	hdr := o.header()
	hdr.color = colorBlack
	eachChild(o, func(c traceable) {
		c.header().rc++
		if c.header().color != colorBlack {
			scanBlack(c)
		}
	})
}

func collectWhite(o traceable, freed map[traceable]bool) {
	hdr := o.header()
	if hdr.color != colorWhite || hdr.buffered {
		return
	}
	hdr.color = colorBlack
	freed[o] = true
	eachChild(o, func(c traceable) {
		collectWhite(c, freed)
	})
	// The object stays linked in this Heap's intrusive `all` list, from
	// which nothing is ever unlinked, so Go's own GC does not reclaim its
	// storage while the Heap itself is reachable. Collect's contract is
	// liveness ("live iff reachable from a root"), not the reclamation
	// mechanism.
}

// StatsSnapshot returns a snapshot of the heap's cumulative counters.
func (h *Heap) StatsSnapshot() Stats { return h.stats }
