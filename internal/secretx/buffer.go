// Package secretx holds raw secret material (cleartext passwords, digests,
// key blocks) in a buffer that is zeroed explicitly with Wipe and, as a
// backstop, when the buffer is garbage collected.
package secretx

import (
	"crypto/subtle"
	"runtime"

	"github.com/dmitrijs2005/credengine/internal/common"
)

// noCopy makes `go vet` flag accidental copies of a Buffer.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Buffer owns a byte slice holding secret material.
//
// A Buffer must be passed by pointer. Use Clone to get an independent copy;
// both copies must be wiped.
type Buffer struct {
	_ noCopy
	b []byte
}

// New takes ownership of b. The caller must not keep or reuse b.
func New(b []byte) *Buffer {
	s := &Buffer{b: b}
	runtime.SetFinalizer(s, func(s *Buffer) { s.Wipe() })
	return s
}

// FromString copies s into a new Buffer. The string itself cannot be wiped,
// so prefer New with a byte slice where the caller controls the memory.
func FromString(s string) *Buffer {
	return New([]byte(s))
}

// Alloc returns a zero-filled Buffer of size n.
func Alloc(n int) *Buffer {
	return New(make([]byte, n))
}

// Bytes exposes the underlying slice. The slice is only valid until Wipe.
func (s *Buffer) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len reports the number of bytes held.
func (s *Buffer) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Clone returns an independent copy. The copy carries its own finalizer and
// must be wiped separately.
func (s *Buffer) Clone() *Buffer {
	if s == nil {
		return nil
	}
	c := make([]byte, len(s.b))
	copy(c, s.b)
	return New(c)
}

// Equal compares in constant time.
func (s *Buffer) Equal(other []byte) bool {
	return subtle.ConstantTimeCompare(s.Bytes(), other) == 1
}

// Wipe zeroes the bytes and releases the slice. Wipe is idempotent and safe
// on a nil Buffer.
func (s *Buffer) Wipe() {
	if s == nil {
		return
	}
	common.WipeByteArray(s.b)
	s.b = nil
}

// IsZero reports whether every byte is zero. An empty buffer is zero.
func IsZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
