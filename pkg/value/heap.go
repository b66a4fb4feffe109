package value

// gcColor is the tri-color state trial deletion needs, in place of the
// single mark bit a stop-the-world tracing collector would use. The
// header shape (strong count + color + an intrusive "all objects"
// link) is grounded on sentra-language/sentra's
// internal/vmregister.Object{Type,Marked,Next} header, adapted from
// mark-sweep's single Marked bit to the tri-color scheme Bacon–Rajan
// trial deletion requires — see DESIGN.md.
type gcColor uint8

const (
	colorBlack  gcColor = iota // in use, reachable, not a suspected cycle root
	colorGray                  // being traced during a trial-deletion scan
	colorWhite                 // candidate for collection this pass
	colorPurple                // buffered as a possible cycle root
)

// object is the header every heap-traced value (Table, Function)
// embeds. rc is the strong reference count; next threads every
// allocation the Heap has ever handed out into one list. Nothing walks
// that list: Collect works only from the buffered possible-cycle
// roots, and acyclic garbage is freed by Release when its count
// reaches zero.
type object struct {
	rc       int32
	color    gcColor
	buffered bool
	next     traceable
}

// traceable is implemented by every heap-allocated, GC-traced value
// (Table, Function). header gives the collector the embedded object;
// visitChildren reports every outgoing strong Value edge.
type traceable interface {
	header() *object
	visitChildren(visit func(Value))
}

func (t *Table) header() *object    { return &t.object }
func (f *Function) header() *object { return &f.object }

// Heap is a cycle-collecting reference-counted allocator for Table and
// Function. Strings use Go's native string type (already
// reference-counted and immutable by the runtime) and Scope uses its
// own plain refcount (scope.go) — neither needs tracing, since only
// Table/Function can close a reference cycle.
type Heap struct {
	all    traceable // intrusive list of every object ever allocated
	purple []traceable
	stats  Stats
}

// Stats are cumulative counters surfaced to the embedder/CLI for
// diagnostics only; they do not affect execution semantics.
type Stats struct {
	Allocated    int64
	Freed        int64
	Collections  int64
	CyclesFreed  int64
}

func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) link(o traceable) {
	hdr := o.header()
	hdr.next = h.all
	h.all = o
	h.stats.Allocated++
}

// AllocTable returns a new, empty Table with a strong count of 1, held
// by whichever register/cell the Alloc opcode writes it into.
func (h *Heap) AllocTable(sizeHint int) *Table {
	t := newTable(sizeHint)
	t.rc = 1
	t.color = colorBlack
	h.link(t)
	return t
}

// AllocFunction returns a new Function closing over captured, with a
// strong count of 1.
func (h *Heap) AllocFunction(id int, captured []*Scope) *Function {
	f := newFunction(id, captured)
	f.rc = 1
	f.color = colorBlack
	h.link(f)
	return f
}

// heapObj extracts the traceable behind a heap-typed Value, or nil for
// a non-heap value.
func heapObj(v Value) traceable {
	switch v.typ {
	case TypeTable:
		return v.t
	case TypeFunction:
		return v.fn
	default:
		return nil
	}
}

// Retain increments v's strong count when v is heap-allocated; it is a
// no-op for every other Value variant. The VM calls this whenever a
// heap value is stored into a persistent slot (a scope cell, a global,
// a table entry) that it did not already own a reference for.
func (h *Heap) Retain(v Value) {
	if o := heapObj(v); o != nil {
		o.header().rc++
		o.header().color = colorBlack
	}
}

// Release decrements v's strong count. A count reaching zero frees the
// object immediately (releasing its children first); a positive count
// is left as a suspected cycle root and buffered for the next
// Collect() pass (Bacon–Rajan's "possible root" step).
func (h *Heap) Release(v Value) {
	o := heapObj(v)
	if o == nil {
		return
	}
	hdr := o.header()
	hdr.rc--
	if hdr.rc == 0 {
		h.freeImmediate(o)
		return
	}
	if !hdr.buffered {
		hdr.buffered = true
		hdr.color = colorPurple
		h.purple = append(h.purple, o)
	}
}

func (h *Heap) freeImmediate(o traceable) {
	hdr := o.header()
	hdr.color = colorBlack
	hdr.buffered = false
	h.stats.Freed++
	o.visitChildren(func(child Value) {
		h.Release(child)
	})
}
