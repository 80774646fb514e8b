package cryptox

import (
	"crypto/sha1"
	"crypto/subtle"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/secretx"
)

// Suite computes and verifies secret blobs. Only the recoverable slot needs
// key material; everything else is a pure function of its inputs.
type Suite struct {
	key *secretx.Buffer
}

// NewSuite builds a Suite whose recoverable slot is keyed from material.
func NewSuite(material []byte) *Suite {
	return &Suite{key: secretx.New(DeriveObfuscationKey(material))}
}

// Close wipes the derived key.
func (s *Suite) Close() {
	s.key.Wipe()
}

// Hash computes every slot enabled in algs. The salted SHA1 slot is always
// computed unless algs carries AlgNoBaseline. Disabled slots stay zero.
func (s *Suite) Hash(password []byte, algs AlgorithmSet) (*Blob, error) {
	b := NewBlob()
	if err := s.fill(b, password, algs.withBaseline(), false); err != nil {
		b.Wipe()
		return nil, err
	}
	return b, nil
}

// Upgrade fills the enabled slots that b does not hold yet, keeping every
// populated slot byte-identical. It reports whether anything changed; the
// blob is then in full format and must be rewritten.
func (s *Suite) Upgrade(b *Blob, password []byte, algs AlgorithmSet) (bool, error) {
	before := b.Algorithms()
	if err := s.fill(b, password, algs.withBaseline(), true); err != nil {
		return false, err
	}
	changed := b.Algorithms() != before || b.IsLegacy()
	b.format = FormatFull
	return changed, nil
}

func (s *Suite) fill(b *Blob, password []byte, algs AlgorithmSet, onlyMissing bool) error {
	for _, alg := range AllAlgorithms {
		if !algs.Has(alg) || (onlyMissing && b.Has(alg)) {
			continue
		}
		v, err := s.compute(alg, password)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		b.setSlot(alg, v)
		common.WipeByteArray(v)
	}
	return nil
}

// compute returns nil, nil when the family cannot represent password.
func (s *Suite) compute(alg AlgorithmSet, password []byte) ([]byte, error) {
	switch alg {
	case AlgNT:
		return NTHash(password), nil
	case AlgLM:
		h, ok := LMHash(password)
		if !ok {
			return nil, nil
		}
		return h, nil
	case AlgSaltedSHA1:
		return SaltedSHA1(password, common.GenerateRandByteArray(SaltSize)), nil
	case AlgCRAMMD5:
		return CramKey(password)
	case AlgRecoverable:
		if len(password) > MaxRecoverable {
			return nil, nil
		}
		return s.Obfuscate(password)
	}
	return nil, nil
}

// SaltedSHA1 returns salt followed by SHA1(salt || password).
func SaltedSHA1(password, salt []byte) []byte {
	h := sha1.New()
	h.Write(salt[:SaltSize])
	h.Write(password)
	out := make([]byte, 0, SaltedSHA1Size)
	out = append(out, salt[:SaltSize]...)
	return h.Sum(out)
}

// MatchSaltedSHA1 checks password against a salted SHA1 entry.
func MatchSaltedSHA1(entry, password []byte) bool {
	if len(entry) != SaltedSHA1Size {
		return false
	}
	want := SaltedSHA1(password, entry[:SaltSize])
	defer common.WipeByteArray(want)
	return subtle.ConstantTimeCompare(want, entry) == 1
}

// VerifyCleartext checks a cleartext password against the strongest slot
// the blob holds: salted SHA1, then NT, LM, CRAM key, recoverable.
func (s *Suite) VerifyCleartext(b *Blob, password []byte) error {
	for _, alg := range []AlgorithmSet{AlgSaltedSHA1, AlgNT, AlgLM, AlgCRAMMD5, AlgRecoverable} {
		if b.Has(alg) {
			return s.VerifyWith(b, password, alg)
		}
	}
	return common.ErrNotSupported
}

// VerifyWith checks a cleartext password against one specific slot.
// An empty slot yields ErrNotSupported.
func (s *Suite) VerifyWith(b *Blob, password []byte, alg AlgorithmSet) error {
	if !b.Has(alg) {
		return common.ErrNotSupported
	}
	stored := b.Slot(alg)

	var ok bool
	switch alg {
	case AlgSaltedSHA1:
		ok = MatchSaltedSHA1(stored, password)
	case AlgRecoverable:
		pw, err := s.Deobfuscate(stored)
		if err != nil {
			return err
		}
		ok = pw.Equal(password)
		pw.Wipe()
	default:
		v, err := s.compute(alg, password)
		if err != nil {
			return err
		}
		if v == nil {
			return common.ErrVerificationFailed
		}
		ok = subtle.ConstantTimeCompare(v, stored) == 1
		common.WipeByteArray(v)
	}
	if !ok {
		return common.ErrVerificationFailed
	}
	return nil
}
