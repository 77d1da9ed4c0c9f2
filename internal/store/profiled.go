package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/Voskan/shmstore/internal/arena"
	"github.com/Voskan/shmstore/internal/telemetry"
)

// Envelope discriminator tags. A profiled write is tagged tagProfiled and
// carries a write timestamp ahead of the payload; an unprofiled write is
// tagged tagPlain and carries the payload verbatim. Both tags are readable
// by any ProfiledCodec regardless of whether the writer sampled this
// particular write in.
const (
	tagPlain    byte = 0
	tagProfiled byte = 1
)

// ProfiledCodec wraps an inner Codec with an optional one-byte discriminator
// envelope. SampleRate in [0,1] controls what fraction of Add calls attach a
// WrittenAt timestamp; Get transparently unwraps either form. When Telem is
// non-nil, decoding a profiled envelope emits an access-sample event
// carrying the recovered write time, labeled Name.
type ProfiledCodec[V any] struct {
	Inner      Codec[V]
	SampleRate float64
	Telem      *telemetry.Registry
	Name       string
}

func (c ProfiledCodec[V]) sample() bool {
	if c.SampleRate <= 0 {
		return false
	}
	if c.SampleRate >= 1 {
		return true
	}
	return rand.Float64() < c.SampleRate
}

// Encode implements Codec by prefixing the inner encoding with a
// discriminator byte and, when sampled, an 8-byte UnixNano timestamp.
func (c ProfiledCodec[V]) Encode(v V) ([]byte, error) {
	payload, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if c.sample() {
		buf.WriteByte(tagProfiled)
		var ts [8]byte
		binary.LittleEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))
		buf.Write(ts[:])
	} else {
		buf.WriteByte(tagPlain)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode reads the discriminator byte and strips the timestamp if present,
// then defers to the inner codec for the payload. A profiled envelope
// additionally emits an access-sample event with the write time.
func (c ProfiledCodec[V]) Decode(b []byte) (V, error) {
	var zero V
	if len(b) < 1 {
		return zero, fmt.Errorf("store: profiled envelope truncated")
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagPlain:
		return c.Inner.Decode(rest)
	case tagProfiled:
		if len(rest) < 8 {
			return zero, fmt.Errorf("store: profiled envelope missing timestamp")
		}
		if c.Telem != nil {
			if t, ok := WrittenAt(b); ok {
				c.Telem.RecordAccess(telemetry.AccessSample{Name: c.Name, WrittenAt: t})
			}
		}
		return c.Inner.Decode(rest[8:])
	default:
		return zero, fmt.Errorf("store: unknown envelope tag %d", tag)
	}
}

// WrittenAt extracts the write timestamp from a raw profiled envelope, for
// callers that fetched bytes directly from the arena instead of through
// Store.Get. ok is false for plain (unsampled) envelopes.
func WrittenAt(raw []byte) (t time.Time, ok bool) {
	if len(raw) < 9 || raw[0] != tagProfiled {
		return time.Time{}, false
	}
	ns := binary.LittleEndian.Uint64(raw[1:9])
	return time.Unix(0, int64(ns)), true
}

// NewProfiled is a convenience constructor combining New with a
// ProfiledCodec wrapper, sharing the store's telemetry registry and type
// tag so access-sample events land under the same label as the store's
// aggregate samples.
func NewProfiled[K any, V any](prefix uint32, a *arena.Arena, inner Codec[V], sampleRate float64, telem *telemetry.Registry, typeTag string) *Store[K, V] {
	codec := ProfiledCodec[V]{Inner: inner, SampleRate: sampleRate, Telem: telem, Name: typeTag}
	return New[K, V](prefix, a, codec, telem, typeTag)
}
