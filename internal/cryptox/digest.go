package cryptox

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/secretx"
)

// CramKey precomputes the HMAC-MD5 key schedule: the MD5 states after
// absorbing the ipad and opad key blocks. It lets CRAM-MD5 be verified
// without storing the cleartext.
func CramKey(password []byte) ([]byte, error) {
	key := password
	if len(key) > md5.BlockSize {
		sum := md5.Sum(password)
		defer common.WipeByteArray(sum[:])
		key = sum[:]
	}

	var ipad, opad [md5.BlockSize]byte
	defer common.WipeByteArray(ipad[:])
	defer common.WipeByteArray(opad[:])
	copy(ipad[:], key)
	copy(opad[:], key)
	for i := range ipad {
		ipad[i] ^= 0x36
		opad[i] ^= 0x5c
	}

	inner, err := marshalState(ipad[:])
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(inner)
	outer, err := marshalState(opad[:])
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(outer)

	out := make([]byte, 0, CramKeySize)
	out = append(out, inner...)
	return append(out, outer...), nil
}

func marshalState(block []byte) ([]byte, error) {
	h := md5.New()
	h.Write(block)
	state, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(state) != md5StateSize {
		return nil, fmt.Errorf("unexpected md5 state size %d", len(state))
	}
	return state, nil
}

func restoreState(state []byte) (hash.Hash, error) {
	h := md5.New()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		return nil, err
	}
	return h, nil
}

// cramDigest computes HMAC-MD5(password, challenge) from a CramKey.
func cramDigest(cramKey, challenge []byte) ([]byte, error) {
	inner, err := restoreState(cramKey[:md5StateSize])
	if err != nil {
		return nil, err
	}
	outer, err := restoreState(cramKey[md5StateSize:])
	if err != nil {
		return nil, err
	}
	inner.Write(challenge)
	outer.Write(inner.Sum(nil))
	return outer.Sum(nil), nil
}

// CRAMResponse returns the lower-case hex digest a client sends for
// challenge.
func CRAMResponse(password, challenge []byte) string {
	return hex.EncodeToString(hmacMD5(password, challenge))
}

// VerifyCRAMMD5 checks the hex digest of a CRAM-MD5 response. It uses the
// CramKey slot and falls back to the recoverable cleartext.
func (s *Suite) VerifyCRAMMD5(b *Blob, challenge []byte, response string) error {
	var want []byte
	switch {
	case b.Has(AlgCRAMMD5):
		d, err := cramDigest(b.Slot(AlgCRAMMD5), challenge)
		if err != nil {
			return err
		}
		want = d
	case b.Has(AlgRecoverable):
		pw, err := s.Recover(b)
		if err != nil {
			return err
		}
		want = hmacMD5(pw.Bytes(), challenge)
		pw.Wipe()
	default:
		return common.ErrNotSupported
	}
	defer common.WipeByteArray(want)

	got, err := hex.DecodeString(strings.TrimSpace(response))
	if err != nil || subtle.ConstantTimeCompare(want, got) != 1 {
		return common.ErrVerificationFailed
	}
	return nil
}

// APOPDigest returns the lower-case hex MD5 of timestamp followed by the
// password.
func APOPDigest(timestamp string, password []byte) string {
	h := md5.New()
	h.Write([]byte(timestamp))
	h.Write(password)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyAPOP checks a POP3 APOP digest. Needs the recoverable slot.
func (s *Suite) VerifyAPOP(b *Blob, timestamp, digest string) error {
	if !b.Has(AlgRecoverable) {
		return common.ErrNotSupported
	}
	pw, err := s.Recover(b)
	if err != nil {
		return err
	}
	defer pw.Wipe()

	want := APOPDigest(timestamp, pw.Bytes())
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(strings.TrimSpace(digest)))) != 1 {
		return common.ErrVerificationFailed
	}
	return nil
}

// DigestParams carries the fields of a SASL DIGEST-MD5 response
// (RFC 2831).
type DigestParams struct {
	Username  string
	Realm     string
	Nonce     string
	CNonce    string
	NC        string
	QOP       string
	DigestURI string
	Authzid   string
	Response  string
	// Method is "AUTHENTICATE" for SASL. Empty means "AUTHENTICATE".
	Method string
}

func (p DigestParams) method() string {
	if p.Method == "" {
		return "AUTHENTICATE"
	}
	return p.Method
}

func (p DigestParams) qop() string {
	if p.QOP == "" {
		return "auth"
	}
	return p.QOP
}

func md5Hex(parts ...string) string {
	h := md5.New()
	h.Write([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(h.Sum(nil))
}

// digestHA1 computes H(H(user:realm:pass):nonce:cnonce[:authzid]).
func digestHA1(p DigestParams, password []byte) []byte {
	inner := md5.New()
	inner.Write([]byte(p.Username + ":" + p.Realm + ":"))
	inner.Write(password)
	urp := inner.Sum(nil)
	defer common.WipeByteArray(urp)

	h := md5.New()
	h.Write(urp)
	h.Write([]byte(":" + p.Nonce + ":" + p.CNonce))
	if p.Authzid != "" {
		h.Write([]byte(":" + p.Authzid))
	}
	return h.Sum(nil)
}

func digestResponse(p DigestParams, ha1 []byte, a2Prefix string) string {
	a2 := a2Prefix + ":" + p.DigestURI
	if p.qop() == "auth-int" || p.qop() == "auth-conf" {
		a2 += ":00000000000000000000000000000000"
	}
	return md5Hex(hex.EncodeToString(ha1), p.Nonce, p.NC, p.CNonce, p.qop(), md5Hex(a2))
}

// DigestMD5Response computes the client "response" value for p.
func DigestMD5Response(p DigestParams, password []byte) string {
	ha1 := digestHA1(p, password)
	defer common.WipeByteArray(ha1)
	return digestResponse(p, ha1, p.method())
}

// VerifyDigestMD5 checks a DIGEST-MD5 response and, on success, returns the
// "rspauth" value for the server's final challenge. Needs the recoverable
// slot.
func (s *Suite) VerifyDigestMD5(b *Blob, p DigestParams) ([]byte, error) {
	if !b.Has(AlgRecoverable) {
		return nil, common.ErrNotSupported
	}
	pw, err := s.Recover(b)
	if err != nil {
		return nil, err
	}
	defer pw.Wipe()

	ha1 := secretx.New(digestHA1(p, pw.Bytes()))
	defer ha1.Wipe()

	want := digestResponse(p, ha1.Bytes(), p.method())
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(p.Response))) != 1 {
		return nil, common.ErrVerificationFailed
	}
	return []byte("rspauth=" + digestResponse(p, ha1.Bytes(), "")), nil
}
