package layout

import "sort"

func (l *Lattice) requireSealedOrTop(idx Index) error {
	if l.sealed {
		return nil
	}
	if idx == Top {
		return nil
	}
	return ErrOperationOnUnsealedNonTop
}

// Subtype reports whether a ≤ b, i.e. a is in descendants(b) (including
// a == b).
func (l *Lattice) Subtype(a, b Index) (bool, error) {
	if err := l.requireSealedOrTop(a); err != nil {
		return false, err
	}
	if err := l.requireSealedOrTop(b); err != nil {
		return false, err
	}
	lb, err := l.Get(b)
	if err != nil {
		return false, err
	}
	if a == b {
		return true, nil
	}
	return lb.descendants[a], nil
}

// Join returns the least common ancestor of a and b: the unique minimum of
// ancestors(a) ∩ ancestors(b) under topological order. Top is always a
// common ancestor, so Join never fails once sealed.
func (l *Lattice) Join(a, b Index) (Index, error) {
	if err := l.requireSealedOrTop(a); err != nil {
		return 0, err
	}
	if err := l.requireSealedOrTop(b); err != nil {
		return 0, err
	}
	la, err := l.Get(a)
	if err != nil {
		return 0, err
	}
	lb, err := l.Get(b)
	if err != nil {
		return 0, err
	}
	var common []Index
	for idx := range la.ancestors {
		if lb.ancestors[idx] {
			common = append(common, idx)
		}
	}
	return l.minimalUnder(common), nil
}

// Meet returns the greatest common descendant of a and b: the unique
// maximum of descendants(a) ∩ descendants(b). If the intersection is
// empty, Meet returns Bottom.
func (l *Lattice) Meet(a, b Index) (Index, error) {
	if err := l.requireSealedOrTop(a); err != nil {
		return 0, err
	}
	if err := l.requireSealedOrTop(b); err != nil {
		return 0, err
	}
	la, err := l.Get(a)
	if err != nil {
		return 0, err
	}
	lb, err := l.Get(b)
	if err != nil {
		return 0, err
	}
	var common []Index
	for idx := range la.descendants {
		if lb.descendants[idx] {
			common = append(common, idx)
		}
	}
	if len(common) == 0 {
		return Bottom, nil
	}
	return l.maximalUnder(common), nil
}

// minimalUnder returns the unique element of candidates that is a
// descendant of (or equal to) every other candidate — the most specific
// element under the subtype partial order restricted to this set.
func (l *Lattice) minimalUnder(candidates []Index) Index {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	for _, c := range candidates {
		lc := l.byIndex[c]
		isMinimal := true
		for _, other := range candidates {
			if other == c {
				continue
			}
			if !lc.ancestors[other] {
				isMinimal = false
				break
			}
		}
		if isMinimal {
			return c
		}
	}
	return Top
}

// maximalUnder returns the unique element of candidates that is an
// ancestor of (or equal to) every other candidate — the most general
// element of the set.
func (l *Lattice) maximalUnder(candidates []Index) Index {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	for _, c := range candidates {
		lc := l.byIndex[c]
		isMaximal := true
		for _, other := range candidates {
			if other == c {
				continue
			}
			if !lc.descendants[other] {
				isMaximal = false
				break
			}
		}
		if isMaximal {
			return c
		}
	}
	return candidates[0]
}

// Dispatch returns the FamilyOps vtable entry for idx's family, indexing
// the flat 256-slot table by the tag byte so layouts sharing a family share
// a slot. Abstract layouts (including Top) deterministically return
// ErrAbstractLayout.
func (l *Lattice) Dispatch(idx Index) (*FamilyOps, error) {
	if err := l.requireSealedOrTop(idx); err != nil {
		return nil, err
	}
	ly, err := l.Get(idx)
	if err != nil {
		return nil, err
	}
	if ly.ops == nil {
		return nil, ErrAbstractLayout
	}
	return l.vtable[idx.Family()], nil
}
