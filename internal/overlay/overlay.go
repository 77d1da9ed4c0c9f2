// Package overlay implements a nestable transactional change stack:
// speculative writes against an underlying store that itself cannot be
// rolled back, resolved via a per-key 3-action state machine
// (Add/Replace/Remove) and a LIFO frame stack.
//
// The stack is modeled as a flat slice of frames indexed by depth rather
// than pointer-linked nodes, since frames only ever nest and unnest LIFO.
//
// © 2025 shmstore authors. MIT License.
package overlay

import "fmt"

// action is the per-key state within a single frame.
type action int

const (
	actionAdd action = iota
	actionReplace
	actionRemove
)

type entry[V any] struct {
	act   action
	value V
}

// Below is whatever sits underneath the overlay stack: the immediate store
// (or, transitively, another overlay frame when nested). It need not know
// anything about overlays.
type Below[K comparable, V any] interface {
	Mem(k K) (bool, error)
	Get(k K) (V, error)
	Add(k K, v V) (bool, error)
	Remove(k K) error
}

// Frame is a single level of the change stack: a sparse map from key to
// pending action.
type Frame[K comparable, V any] struct {
	entries map[K]entry[V]
}

func newFrame[K comparable, V any]() Frame[K, V] {
	return Frame[K, V]{entries: make(map[K]entry[V])}
}

// Stack is the overlay machinery, layered in front of a Below. The zero
// Stack has no frames; all operations at depth 0 pass
// straight through to Below.
type Stack[K comparable, V any] struct {
	frames []Frame[K, V]
	below  Below[K, V]
}

// New constructs an empty overlay stack over below.
func New[K comparable, V any](below Below[K, V]) *Stack[K, V] {
	return &Stack[K, V]{below: below}
}

// Depth reports the number of pushed frames.
func (s *Stack[K, V]) Depth() int { return len(s.frames) }

// PushStack opens a new speculative frame above the current top.
func (s *Stack[K, V]) PushStack() {
	s.frames = append(s.frames, newFrame[K, V]())
}

// PopStack discards the top frame's pending actions entirely, leaving the
// same state as RevertAll followed by a pop; only actions already
// committed to the frame beneath survive. Popping an empty stack is a
// fatal programming error.
func (s *Stack[K, V]) PopStack() {
	if len(s.frames) == 0 {
		panic("overlay: pop_stack on empty stack")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *Stack[K, V]) top() (Frame[K, V], bool) {
	if len(s.frames) == 0 {
		var zero Frame[K, V]
		return zero, false
	}
	return s.frames[len(s.frames)-1], true
}

// Mem reports whether k is visible (Add/Replace at some frame, or present
// in Below and not shadowed by a Remove).
func (s *Stack[K, V]) Mem(k K) (bool, error) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if e, ok := s.frames[i].entries[k]; ok {
			switch e.act {
			case actionAdd, actionReplace:
				return true, nil
			case actionRemove:
				return false, nil
			}
		}
	}
	return s.below.Mem(k)
}

// Get walks frames top-to-bottom until an entry is found; Remove shadows
// lower frames, absence continues the descent, and reaching bare Below
// performs a raw lookup.
func (s *Stack[K, V]) Get(k K) (V, error) {
	var zero V
	for i := len(s.frames) - 1; i >= 0; i-- {
		if e, ok := s.frames[i].entries[k]; ok {
			switch e.act {
			case actionAdd, actionReplace:
				return e.value, nil
			case actionRemove:
				return zero, fmt.Errorf("overlay: get of absent key")
			}
		}
	}
	return s.below.Get(k)
}

// Add applies the state machine's "add v" transition at the current top
// frame (or writes through to Below at depth 0). Empty->Add(v);
// Filled->Replace(v); Add(w)->Add(v) (replace pending value, same action);
// Replace->Replace(v) (replace pending value); Remove->Replace(v).
func (s *Stack[K, V]) Add(k K, v V) error {
	if len(s.frames) == 0 {
		_, err := s.below.Add(k, v)
		return err
	}
	top := &s.frames[len(s.frames)-1]
	if e, ok := top.entries[k]; ok {
		switch e.act {
		case actionAdd:
			top.entries[k] = entry[V]{act: actionAdd, value: v}
		case actionReplace, actionRemove:
			top.entries[k] = entry[V]{act: actionReplace, value: v}
		}
		return nil
	}
	visible, err := s.visibleBelow(len(s.frames)-1, k)
	if err != nil {
		return err
	}
	if visible {
		top.entries[k] = entry[V]{act: actionReplace, value: v}
	} else {
		top.entries[k] = entry[V]{act: actionAdd, value: v}
	}
	return nil
}

// visibleBelow reports whether k is visible strictly below frame index idx
// (i.e. in frames[0:idx] or Below).
func (s *Stack[K, V]) visibleBelow(idx int, k K) (bool, error) {
	for i := idx - 1; i >= 0; i-- {
		if e, ok := s.frames[i].entries[k]; ok {
			switch e.act {
			case actionAdd, actionReplace:
				return true, nil
			case actionRemove:
				return false, nil
			}
		}
	}
	return s.below.Mem(k)
}

// Remove applies the "remove" transition. Add(v)->Empty (erase the entry
// entirely); Replace->Remove; Filled(visible-below)->Remove; Remove->ERROR
// (removing an already-removed key is illegal, matching Below's
// non-idempotent remove).
func (s *Stack[K, V]) Remove(k K) error {
	if len(s.frames) == 0 {
		return s.below.Remove(k)
	}
	top := &s.frames[len(s.frames)-1]
	if e, ok := top.entries[k]; ok {
		switch e.act {
		case actionAdd:
			delete(top.entries, k)
			return nil
		case actionReplace:
			top.entries[k] = entry[V]{act: actionRemove}
			return nil
		case actionRemove:
			return fmt.Errorf("overlay: remove of absent key")
		}
	}
	visible, err := s.visibleBelow(len(s.frames)-1, k)
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("overlay: remove of absent key")
	}
	top.entries[k] = entry[V]{act: actionRemove}
	return nil
}

// Move requires mem(src) && !mem(dst) at the current view; fetches src,
// removes it, and re-adds it under dst.
func (s *Stack[K, V]) Move(src, dst K) error {
	srcMem, err := s.Mem(src)
	if err != nil {
		return err
	}
	if !srcMem {
		return fmt.Errorf("overlay: move with source missing")
	}
	dstMem, err := s.Mem(dst)
	if err != nil {
		return err
	}
	if dstMem {
		return fmt.Errorf("overlay: move with destination present")
	}
	v, err := s.Get(src)
	if err != nil {
		return err
	}
	if err := s.Remove(src); err != nil {
		return err
	}
	return s.Add(dst, v)
}

// Revert drops the top frame's pending action on a single key, as if it had
// never been touched at this depth.
func (s *Stack[K, V]) Revert(k K) error {
	top, ok := s.top()
	if !ok {
		return fmt.Errorf("overlay: revert with empty stack")
	}
	delete(top.entries, k)
	return nil
}

// RevertAll drops every pending action in the top frame.
func (s *Stack[K, V]) RevertAll() error {
	if len(s.frames) == 0 {
		return fmt.Errorf("overlay: revert_all with empty stack")
	}
	s.frames[len(s.frames)-1] = newFrame[K, V]()
	return nil
}

// commitEntry applies a single (key, entry) pair one level down: to the
// frame beneath the top if one exists, otherwise straight through to Below.
// commit(Add v) == add v; commit(Replace v) == remove; add v (never
// observed in the intermediate state by any reader, since no other
// goroutine touches this process-local stack); commit(Remove) == remove.
func (s *Stack[K, V]) commitEntry(k K, e entry[V], parentIdx int) error {
	applyAdd := func(v V) error {
		if parentIdx >= 0 {
			if pe, ok := s.frames[parentIdx].entries[k]; ok {
				switch pe.act {
				case actionAdd:
					s.frames[parentIdx].entries[k] = entry[V]{act: actionAdd, value: v}
				default:
					s.frames[parentIdx].entries[k] = entry[V]{act: actionReplace, value: v}
				}
				return nil
			}
			visible, err := s.visibleBelow(parentIdx, k)
			if err != nil {
				return err
			}
			act := actionAdd
			if visible {
				act = actionReplace
			}
			s.frames[parentIdx].entries[k] = entry[V]{act: act, value: v}
			return nil
		}
		_, err := s.below.Add(k, v)
		return err
	}
	applyRemove := func() error {
		if parentIdx >= 0 {
			if pe, ok := s.frames[parentIdx].entries[k]; ok {
				switch pe.act {
				case actionAdd:
					delete(s.frames[parentIdx].entries, k)
				default:
					s.frames[parentIdx].entries[k] = entry[V]{act: actionRemove}
				}
				return nil
			}
			s.frames[parentIdx].entries[k] = entry[V]{act: actionRemove}
			return nil
		}
		return s.below.Remove(k)
	}

	switch e.act {
	case actionAdd:
		return applyAdd(e.value)
	case actionReplace:
		if err := applyRemove(); err != nil {
			return err
		}
		return applyAdd(e.value)
	case actionRemove:
		return applyRemove()
	}
	return nil
}

// Commit applies the top frame's pending action on k to the frame beneath
// (or to Below, if the top frame is the only one), then drops it from the
// top frame.
func (s *Stack[K, V]) Commit(k K) error {
	if len(s.frames) == 0 {
		return fmt.Errorf("overlay: commit with empty stack")
	}
	topIdx := len(s.frames) - 1
	e, ok := s.frames[topIdx].entries[k]
	if !ok {
		return nil
	}
	if err := s.commitEntry(k, e, topIdx-1); err != nil {
		return err
	}
	delete(s.frames[topIdx].entries, k)
	return nil
}

// CommitAll applies every pending action in the top frame to the frame
// beneath (or Below), then clears the top frame.
func (s *Stack[K, V]) CommitAll() error {
	if len(s.frames) == 0 {
		return fmt.Errorf("overlay: commit_all with empty stack")
	}
	topIdx := len(s.frames) - 1
	for k, e := range s.frames[topIdx].entries {
		if err := s.commitEntry(k, e, topIdx-1); err != nil {
			return err
		}
	}
	s.frames[topIdx] = newFrame[K, V]()
	return nil
}
