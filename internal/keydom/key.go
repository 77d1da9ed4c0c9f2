// Package keydom implements the namespaced key domain: a storage key is
// the MD5 digest of prefix||stringify(user_key), with a reserved "old_"
// token distinguishing the old namespace from the new one so both can live
// in the same arena's digest space without collision.
//
// © 2025 shmstore authors. MIT License.
package keydom

import (
	"crypto/md5"
	"errors"
	"fmt"
)

// oldToken is the reserved prefix inserted before MD5 for the old namespace.
// User-supplied keys may never stringify to a value beginning with it at the
// relevant position; construction enforces this.
const oldToken = "old_"

// ErrReservedToken is returned when a user key would collide with the
// reserved old-namespace token.
var ErrReservedToken = errors.New("keydom: user key collides with reserved \"old_\" token")

// Stringer is implemented by any key type this package can namespace. Callers
// typically satisfy it trivially (fmt.Stringer, or a thin wrapper).
type Stringer interface {
	String() string
}

// Digest is the arena's internal 16-byte key.
type Digest [16]byte

// Key is the opaque key value returned by Make/MakeOld. It carries enough to
// compute either its MD5 or MD5Old digest, and to move between the two
// namespaces via ToOld/NewFromOld, without ever re-exposing the underlying
// user value.
type Key struct {
	prefix uint32
	raw    string
	old    bool
}

func stringify[K any](k K) string {
	if s, ok := any(k).(Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", k)
}

func checkReserved(s string) error {
	if len(s) >= len(oldToken) && s[:len(oldToken)] == oldToken {
		return ErrReservedToken
	}
	return nil
}

// Make builds a new-namespace Key for (prefix, k).
func Make[K any](prefix uint32, k K) (Key, error) {
	s := stringify(k)
	if err := checkReserved(s); err != nil {
		return Key{}, err
	}
	return Key{prefix: prefix, raw: s, old: false}, nil
}

// MakeOld builds an old-namespace Key directly for (prefix, k).
func MakeOld[K any](prefix uint32, k K) (Key, error) {
	s := stringify(k)
	if err := checkReserved(s); err != nil {
		return Key{}, err
	}
	return Key{prefix: prefix, raw: s, old: true}, nil
}

// ToOld returns the old-namespace counterpart of k.
func (k Key) ToOld() Key { return Key{prefix: k.prefix, raw: k.raw, old: true} }

// NewFromOld returns the new-namespace counterpart of k. Invariant:
// NewFromOld(ToOld(x)) == x for any Key x.
func (k Key) NewFromOld() Key { return Key{prefix: k.prefix, raw: k.raw, old: false} }

// IsOld reports which namespace k belongs to.
func (k Key) IsOld() bool { return k.old }

// MD5 returns k's digest under the new namespace, regardless of k's own
// flavor.
func (k Key) MD5() Digest { return md5Of(k.prefix, k.raw) }

// MD5Old returns k's digest under the old namespace (mirrors `md5_old`).
func (k Key) MD5Old() Digest { return md5Of(k.prefix, oldToken+k.raw) }

// Digest returns the digest appropriate to k's current flavor: MD5Old if k
// was produced by MakeOld/ToOld, MD5 otherwise. This is what store code
// should call when it doesn't need to reason about the other namespace.
func (k Key) Digest() Digest {
	if k.old {
		return k.MD5Old()
	}
	return k.MD5()
}

func md5Of(prefix uint32, s string) Digest {
	h := md5.New()
	var pb [4]byte
	pb[0] = byte(prefix)
	pb[1] = byte(prefix >> 8)
	pb[2] = byte(prefix >> 16)
	pb[3] = byte(prefix >> 24)
	h.Write(pb[:])
	h.Write([]byte(s))
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
