// Package layout implements the sealed array-layout lattice: 15-bit layout
// indices whose upper byte is an 8-bit family tag, parent/child sets,
// precomputed ancestor/descendant closures and layout tests, and a flat
// family-tag-indexed vtable for dispatch. The family-tag encoding is
// load-bearing (JIT-generated code tests the tag byte directly), which is
// why dispatch goes through a flat tag-indexed array rather than a tagged
// enum.
//
// © 2025 shmstore authors. MIT License.
package layout

import "errors"

// ErrConstructionAfterSeal is returned by New*/NewConcrete once Seal has
// been called.
var ErrConstructionAfterSeal = errors.New("layout: construction after seal")

// ErrOperationOnUnsealedNonTop is returned by Subtype/Join/Meet/Dispatch
// when called before Seal, for any layout other than Top.
var ErrOperationOnUnsealedNonTop = errors.New("layout: operation on unsealed lattice (only Top is defined before sealing)")

// ErrDuplicateIndex is returned when a concrete layout's (family, local)
// pair collides with an existing layout.
var ErrDuplicateIndex = errors.New("layout: duplicate index")

// ErrMissingParent is returned when New*/NewConcrete names a parent index
// that does not yet exist.
var ErrMissingParent = errors.New("layout: missing parent")

// ErrAbstractLayout is returned by Dispatch when called on a layout with no
// vtable (including Top).
var ErrAbstractLayout = errors.New("layout: dispatch on abstract layout")

// ErrUnknownIndex is returned when an operation names an index the lattice
// never constructed.
var ErrUnknownIndex = errors.New("layout: unknown index")
