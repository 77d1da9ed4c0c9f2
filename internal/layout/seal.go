package layout

import "sort"

// Seal performs the one-way mutable→immutable transition: (1) compute
// topological order, (2) precompute each layout's ancestor/descendant
// sets, (3) compute each layout's LayoutTest by reducing over the family-
// tag byte. After Seal, New*/NewConcrete return ErrConstructionAfterSeal.
func (l *Lattice) Seal() error {
	if l.sealed {
		return nil
	}
	order, err := l.topologicalOrder()
	if err != nil {
		return err
	}
	l.topoOrder = order

	// Ancestors: walk parents transitively. Process in topological order
	// (parents before children) so each layout's parents' ancestor sets
	// are already complete.
	for _, idx := range order {
		ly := l.byIndex[idx]
		anc := map[Index]bool{idx: true}
		for _, p := range ly.parents {
			anc[p] = true
			for a := range l.byIndex[p].ancestors {
				anc[a] = true
			}
		}
		ly.ancestors = anc
	}

	// Descendants: the transpose of ancestors.
	for _, idx := range order {
		l.byIndex[idx].descendants = map[Index]bool{}
	}
	for _, idx := range order {
		for a := range l.byIndex[idx].ancestors {
			l.byIndex[a].descendants[idx] = true
		}
	}

	// Universe of concrete family tags actually present, for LayoutTest
	// separation.
	var allFamilies []uint8
	seen := map[uint8]bool{}
	for _, idx := range order {
		if l.byIndex[idx].ops == nil {
			continue // abstract layouts don't occupy a real family slot
		}
		f := uint8(idx.Family())
		if !seen[f] {
			seen[f] = true
			allFamilies = append(allFamilies, f)
		}
	}
	sort.Slice(allFamilies, func(i, j int) bool { return allFamilies[i] < allFamilies[j] })

	for _, idx := range order {
		ly := l.byIndex[idx]
		descFamilies := map[uint8]bool{}
		hasConcreteDescendant := false
		for d := range ly.descendants {
			if l.byIndex[d].ops != nil {
				descFamilies[uint8(d.Family())] = true
				hasConcreteDescendant = true
			}
		}
		if !hasConcreteDescendant {
			// No concrete descendant (a dead-end abstract leaf): test
			// matches nothing.
			ly.test = computeEmptyTest()
			continue
		}
		ly.test = computeTest(descFamilies, allFamilies)
	}

	l.sealed = true
	return nil
}

func computeEmptyTest() LayoutTest {
	// mask=0xFF, equal=a value outside the family-tag universe's valid
	// range is unreachable in practice since family tags are bytes, so we
	// instead rely on the fact that this layout simply has no concrete
	// descendants for Matches to be called against meaningfully; mask=0
	// with equal=1 never matches (x&0 == 0 always != 1).
	return LayoutTest{Mask: 0, Equal: 1}
}

// computeTest brute-forces the minimal-popcount (mask, equal) pair such
// that for every family tag f in `all`: (f&mask==equal) iff f is in
// `desc`. Small search space (256 masks) is cheap at the scale layout
// families exist at.
func computeTest(desc map[uint8]bool, all []uint8) LayoutTest {
	bestMask, bestEqual := uint8(0xFF), uint8(0)
	bestBits := 9
	first := true
	for _, f := range all {
		if desc[f] {
			bestEqual = f
			first = false
			break
		}
	}
	if first {
		return computeEmptyTest()
	}
	for mask := 0; mask <= 0xFF; mask++ {
		m := uint8(mask)
		bits := popcount(m)
		if bits >= bestBits {
			continue
		}
		var equal uint8
		consistent := true
		haveEqual := false
		for f := range desc {
			fe := f & m
			if !haveEqual {
				equal = fe
				haveEqual = true
			} else if fe != equal {
				consistent = false
				break
			}
		}
		if !consistent {
			continue
		}
		if separates(m, equal, desc, all) {
			bestMask, bestEqual, bestBits = m, equal, bits
		}
	}
	return LayoutTest{Mask: bestMask, Equal: bestEqual & bestMask}
}

func separates(mask, equal uint8, desc map[uint8]bool, all []uint8) bool {
	for _, f := range all {
		match := (f & mask) == equal
		if match != desc[f] {
			return false
		}
	}
	return true
}

func popcount(b uint8) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}

func (l *Lattice) topologicalOrder() ([]Index, error) {
	visited := map[Index]int{} // 0=unvisited,1=in-progress,2=done
	var order []Index
	var visit func(idx Index) error
	visit = func(idx Index) error {
		switch visited[idx] {
		case 2:
			return nil
		case 1:
			return errCycle
		}
		visited[idx] = 1
		ly := l.byIndex[idx]
		for _, p := range ly.parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		visited[idx] = 2
		order = append(order, idx)
		return nil
	}
	// Deterministic iteration: sort keys for stable output across runs.
	keys := make([]Index, 0, len(l.byIndex))
	for idx := range l.byIndex {
		keys = append(keys, idx)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, idx := range keys {
		if err := visit(idx); err != nil {
			return nil, err
		}
	}
	return order, nil
}

var errCycle = errInternal("layout: cycle detected in parent graph")

type errInternal string

func (e errInternal) Error() string { return string(e) }
