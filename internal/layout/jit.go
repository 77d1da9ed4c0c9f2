package layout

// The JIT helpers below dispatch to l.ops's corresponding field when
// present; otherwise they fall back to the widest possible layout (Top)
// and an unknown-presence flag. Abstract layouts always take the default
// path since they carry no ops.

// AppendType returns the layout produced by appending a valType element.
func (l *Layout) AppendType(valType string) Index {
	if l.ops != nil && l.ops.AppendType != nil {
		return l.ops.AppendType(valType)
	}
	return Top
}

// RemoveType returns the layout produced by removing keyType.
func (l *Layout) RemoveType(keyType string) Index {
	if l.ops != nil && l.ops.RemoveType != nil {
		return l.ops.RemoveType(keyType)
	}
	return Top
}

// SetType returns the layout produced by setting keyType to valType.
func (l *Layout) SetType(keyType, valType string) Index {
	if l.ops != nil && l.ops.SetType != nil {
		return l.ops.SetType(keyType, valType)
	}
	return Top
}

// ElemType returns the element type at keyType, and whether its presence
// is statically known.
func (l *Layout) ElemType(keyType string) (string, bool) {
	if l.ops != nil && l.ops.ElemType != nil {
		return l.ops.ElemType(keyType)
	}
	return "", false
}

// FirstLastType returns the type of the first/last key-or-value.
func (l *Layout) FirstLastType(isFirst, isKey bool) (string, bool) {
	if l.ops != nil && l.ops.FirstLastType != nil {
		return l.ops.FirstLastType(isFirst, isKey)
	}
	return "", false
}

// IterPosType returns the type observed at a given iterator position.
func (l *Layout) IterPosType(posType string, isKey bool) string {
	if l.ops != nil && l.ops.IterPosType != nil {
		return l.ops.IterPosType(posType, isKey)
	}
	return ""
}
