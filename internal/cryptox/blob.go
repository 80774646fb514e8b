package cryptox

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/secretx"
)

// Slot sizes in bytes.
const (
	NTHashSize      = 16
	LMHashSize      = 16
	SaltSize        = 4
	SaltedSHA1Size  = SaltSize + 20
	CramKeySize     = 2 * md5StateSize
	MaxRecoverable  = 512
	RecoverableSize = gcmNonceSize + 2 + MaxRecoverable + gcmTagSize

	md5StateSize = 92
	gcmNonceSize = 12
	gcmTagSize   = 16
)

const (
	offNT          = 0
	offLM          = offNT + NTHashSize
	offSaltedSHA1  = offLM + LMHashSize
	offCramKey     = offSaltedSHA1 + SaltedSHA1Size
	offRecoverable = offCramKey + CramKeySize

	// FullBlobSize is the length of a current-format blob.
	FullBlobSize = offRecoverable + RecoverableSize
	// LegacyNTLMSize holds only the NT and LM slots.
	LegacyNTLMSize = offSaltedSHA1
	// LegacySHA1Size adds the salted SHA1 slot.
	LegacySHA1Size = offCramKey
)

// Format identifies the on-disk layout a blob was decoded from.
type Format int

const (
	FormatFull Format = iota
	FormatLegacyNTLM
	FormatLegacySHA1
)

// Blob is the fixed-layout concatenation of every digest slot for one
// account. Missing slots are zero. A Blob must be wiped when done.
type Blob struct {
	buf    *secretx.Buffer
	format Format
}

// NewBlob returns an empty full-format blob.
func NewBlob() *Blob {
	return &Blob{buf: secretx.Alloc(FullBlobSize), format: FormatFull}
}

// DecodeBlob parses the hex text of a secret file. Legacy blobs are
// accepted and zero-extended to the full layout.
func DecodeBlob(text []byte) (*Blob, error) {
	trimmed := bytes.TrimSpace(text)
	raw := make([]byte, hex.DecodedLen(len(trimmed)))
	n, err := hex.Decode(raw, trimmed)
	if err != nil {
		secretx.New(raw).Wipe()
		return nil, fmt.Errorf("decode secret blob: %w", err)
	}
	raw = raw[:n]
	defer secretx.New(raw).Wipe()

	b := NewBlob()
	switch n {
	case FullBlobSize:
		b.format = FormatFull
	case LegacySHA1Size:
		b.format = FormatLegacySHA1
	case LegacyNTLMSize:
		b.format = FormatLegacyNTLM
	default:
		b.Wipe()
		return nil, fmt.Errorf("decode secret blob: unexpected length %d", n)
	}
	copy(b.buf.Bytes(), raw)
	return b, nil
}

// Encode returns the upper-case hex text written to the secret file. The
// full layout is always written, so encoding a legacy blob upgrades it.
// The caller owns the returned slice and should wipe it.
func (b *Blob) Encode() []byte {
	src := b.buf.Bytes()
	out := make([]byte, hex.EncodedLen(len(src)))
	hex.Encode(out, src)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return out
}

// Format reports the layout the blob was decoded from.
func (b *Blob) Format() Format { return b.format }

// IsLegacy reports whether the blob was read in a shorter legacy layout.
func (b *Blob) IsLegacy() bool { return b.format != FormatFull }

// Bytes exposes the full-layout bytes. Valid until Wipe.
func (b *Blob) Bytes() []byte { return b.buf.Bytes() }

// Slot returns the sub-slice of the given single algorithm.
func (b *Blob) Slot(alg AlgorithmSet) []byte {
	raw := b.buf.Bytes()
	switch alg {
	case AlgNT:
		return raw[offNT:offLM]
	case AlgLM:
		return raw[offLM:offSaltedSHA1]
	case AlgSaltedSHA1:
		return raw[offSaltedSHA1:offCramKey]
	case AlgCRAMMD5:
		return raw[offCramKey:offRecoverable]
	case AlgRecoverable:
		return raw[offRecoverable:FullBlobSize]
	}
	return nil
}

// Has reports whether the slot of alg holds a value.
func (b *Blob) Has(alg AlgorithmSet) bool {
	s := b.Slot(alg)
	return s != nil && !secretx.IsZero(s)
}

// Algorithms returns the set of populated slots.
func (b *Blob) Algorithms() AlgorithmSet {
	var set AlgorithmSet
	for _, a := range AllAlgorithms {
		if b.Has(a) {
			set |= a
		}
	}
	return set
}

func (b *Blob) setSlot(alg AlgorithmSet, v []byte) {
	copy(b.Slot(alg), v)
}

// Clone returns an independent copy.
func (b *Blob) Clone() *Blob {
	return &Blob{buf: b.buf.Clone(), format: b.format}
}

// Wipe zeroes every slot.
func (b *Blob) Wipe() {
	if b == nil {
		return
	}
	b.buf.Wipe()
}
