package layout

import "fmt"

// FamilyOps is the vtable slot shared by every concrete layout with the
// same FamilyTag: the per-layout array operations (heap size, scan,
// escalate, release, element lookup/mutation, iteration, sort pre/post,
// legacy-flag toggle) plus the JIT type helpers. This package treats the
// operation bodies as opaque callbacks supplied by the caller; only the
// dispatch mechanism lives here, not the array runtime the callbacks
// drive.
type FamilyOps struct {
	// HeapSize estimates the bytes a value of this layout with elemCount
	// elements would occupy.
	HeapSize func(elemCount int) int
	// Scan visits every element's raw bytes, for GC-style tracing.
	Scan func(data []byte, visit func(elem []byte))
	// Escalate returns the Index this layout should widen to when an
	// operation can no longer preserve its invariants (e.g. appending a
	// mismatched element type).
	Escalate func() Index
	// Release is called when a value of this layout is freed.
	Release func(data []byte)
	// ElemAt / SetElemAt implement indexed element access and mutation.
	ElemAt    func(data []byte, i int) []byte
	SetElemAt func(data []byte, i int, v []byte) []byte
	// Iterate visits (index, element) pairs in layout-native order.
	Iterate func(data []byte, fn func(i int, elem []byte) bool)
	// SortPre / SortPost bracket an in-place sort, for layouts that need
	// to toggle an auxiliary structure (e.g. a dict's key index) around it.
	SortPre  func(data []byte)
	SortPost func(data []byte)
	// ToggleLegacyFlag flips whatever single compatibility bit this
	// family reserves for legacy readers.
	ToggleLegacyFlag func(data []byte, on bool)

	// JIT type helpers. Default implementations (widest layout,
	// known_present=false) are supplied by Layout methods when these are
	// left nil; concrete families override them for precision.
	AppendType    func(valType string) Index
	RemoveType    func(keyType string) Index
	SetType       func(keyType, valType string) Index
	ElemType      func(keyType string) (typ string, knownPresent bool)
	FirstLastType func(isFirst, isKey bool) (typ string, knownPresent bool)
	IterPosType   func(posType string, isKey bool) (typ string)
}

// Layout is one immutable lattice node.
type Layout struct {
	index       Index
	description string
	parents     []Index
	children    []Index
	ops         *FamilyOps // nil for abstract layouts

	ancestors   map[Index]bool // populated by Seal
	descendants map[Index]bool
	test        LayoutTest
}

// LayoutTest is the (mask, equal) pair such that, for sealed layout L,
// `index & Mask == Equal` iff the queried index is a descendant of L
// (including equality).
type LayoutTest struct {
	Mask  uint8
	Equal uint8
}

// Matches reports whether idx's family byte satisfies t.
func (t LayoutTest) Matches(idx Index) bool {
	return uint8(idx.Family())&t.Mask == t.Equal
}

// Index returns l's identity.
func (l *Layout) Index() Index { return l.index }

// Description returns l's human-readable label.
func (l *Layout) Description() string { return l.description }

// Parents returns l's immediate parents (construction-time, not the
// transitive closure).
func (l *Layout) Parents() []Index { return append([]Index(nil), l.parents...) }

// Children returns l's immediate children.
func (l *Layout) Children() []Index { return append([]Index(nil), l.children...) }

// Test returns l's precomputed LayoutTest. Only valid after Seal.
func (l *Layout) Test() LayoutTest { return l.test }

// Lattice holds the full set of layouts, mutable until Seal is called.
type Lattice struct {
	sealed    bool
	byIndex   map[Index]*Layout
	topoOrder []Index
	localSeq  map[FamilyTag]uint8
	vtable    [256]*FamilyOps
}

// New constructs an empty Lattice with only Top defined.
func New() *Lattice {
	top := &Layout{index: Top, description: "Top"}
	l := &Lattice{
		byIndex:  map[Index]*Layout{Top: top},
		localSeq: make(map[FamilyTag]uint8),
	}
	return l
}

// NewAbstract constructs an abstract layout (no vtable) used purely for
// type-level join/meet, with the given parents (which must already exist).
func (l *Lattice) NewAbstract(description string, parents []Index) (Index, error) {
	return l.construct(familyAbstract, 0, description, parents, nil, true)
}

// NewConcrete constructs a concrete layout under family, auto-assigning the
// next unused local serial within that family. ops may be nil only if a
// FamilyOps was already registered for family by an earlier sibling layout
// (they share the vtable slot); the first concrete layout in a family must
// supply ops.
func (l *Lattice) NewConcrete(family FamilyTag, description string, parents []Index, ops *FamilyOps) (Index, error) {
	local := l.localSeq[family]
	idx := makeIndex(family, local)
	if _, exists := l.byIndex[idx]; exists {
		return 0, ErrDuplicateIndex
	}
	effectiveOps := ops
	if effectiveOps == nil {
		effectiveOps = l.vtable[family]
	}
	if effectiveOps == nil {
		return 0, fmt.Errorf("layout: family %#x has no FamilyOps yet; first concrete layout must supply one", uint8(family))
	}
	resultIdx, err := l.construct(family, local, description, parents, effectiveOps, false)
	if err != nil {
		return 0, err
	}
	l.localSeq[family] = local + 1
	if l.vtable[family] == nil {
		l.vtable[family] = effectiveOps
	}
	return resultIdx, nil
}

func (l *Lattice) construct(family FamilyTag, local uint8, description string, parents []Index, ops *FamilyOps, abstract bool) (Index, error) {
	if l.sealed {
		return 0, ErrConstructionAfterSeal
	}
	var idx Index
	if abstract {
		// Abstract layouts live outside the family-tag numbering; index
		// by a synthetic, collision-free key instead. We reuse the byte
		// layout but park abstract layouts at family tag 0 with an
		// auto-incrementing local serial, distinct from Top (index 0).
		n := l.localSeq[familyAbstract]
		idx = makeIndex(familyAbstract, n+1) // +1 so we never collide with Top (0,0)
		l.localSeq[familyAbstract] = n + 1
	} else {
		idx = makeIndex(family, local)
	}
	if _, exists := l.byIndex[idx]; exists {
		return 0, ErrDuplicateIndex
	}
	for _, p := range parents {
		parent, ok := l.byIndex[p]
		if !ok {
			return 0, ErrMissingParent
		}
		parent.children = append(parent.children, idx)
	}
	l.byIndex[idx] = &Layout{
		index:       idx,
		description: description,
		parents:     append([]Index(nil), parents...),
		ops:         ops,
	}
	return idx, nil
}

// Get returns the Layout for idx.
func (l *Lattice) Get(idx Index) (*Layout, error) {
	ly, ok := l.byIndex[idx]
	if !ok {
		return nil, ErrUnknownIndex
	}
	return ly, nil
}

// EachLayout visits every constructed layout. After sealing it visits the
// topological order computed by Seal (every layout after its parents, from
// a depth-first walk started at each index in ascending order), which is
// not necessarily creation order;
// before sealing it visits map order, with no ordering guarantee.
func (l *Lattice) EachLayout(fn func(*Layout)) {
	if l.sealed {
		for _, idx := range l.topoOrder {
			fn(l.byIndex[idx])
		}
		return
	}
	for _, ly := range l.byIndex {
		fn(ly)
	}
}

// Sealed reports whether Seal has been called.
func (l *Lattice) Sealed() bool { return l.sealed }
