package shmstore

import (
	"bytes"
	"encoding/gob"
)

// GobCodec is the default store.Codec: encoding/gob round-tripping. It
// handles arbitrary struct/scalar value types without callers hand-writing
// a codec; callers with performance-sensitive or non-gob-friendly types
// should supply their own via WithCodec.
type GobCodec[V any] struct{}

func (GobCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&v)
	return v, err
}
