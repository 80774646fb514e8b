package cryptox

import (
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dmitrijs2005/credengine/internal/common"
	"golang.org/x/crypto/md4" //nolint:staticcheck // NT hash is MD4 by definition
)

const (
	ChallengeSize       = 8
	ChallengeRespSize   = 24
	MSCHAPChallengeSize = 16
	ntProofSize         = 16
	lmMaxPassword       = 14
)

var lmMagic = []byte("KGS!@#$%")

// RFC 2759 section 8.7 constants.
var (
	mschapMagic1 = []byte("Magic server to client signing constant")
	mschapMagic2 = []byte("Pad to make it do more than one iteration")
)

// NTHash computes MD4 over the UTF-16LE encoding of password.
func NTHash(password []byte) []byte {
	u := toUTF16LE(password)
	defer common.WipeByteArray(u)
	h := md4.New()
	h.Write(u)
	return h.Sum(nil)
}

// LMHash computes the LAN Manager hash. ok is false when the password is
// longer than 14 bytes or contains non-ASCII bytes; such accounts keep a
// zero LM slot.
func LMHash(password []byte) (hash []byte, ok bool) {
	if len(password) > lmMaxPassword {
		return nil, false
	}
	var key [lmMaxPassword]byte
	defer common.WipeByteArray(key[:])
	for i, c := range password {
		if c >= 0x80 {
			return nil, false
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		key[i] = c
	}
	out := make([]byte, LMHashSize)
	if err := desEncrypt(key[0:7], lmMagic, out[0:8]); err != nil {
		return nil, false
	}
	if err := desEncrypt(key[7:14], lmMagic, out[8:16]); err != nil {
		return nil, false
	}
	return out, true
}

// ChallengeResponse derives the 24-byte NTLMv1 response of a 16-byte hash to
// an 8-byte challenge: the hash is zero padded to 21 bytes and split into
// three DES keys.
func ChallengeResponse(hash16, challenge []byte) ([]byte, error) {
	if len(hash16) != NTHashSize || len(challenge) != ChallengeSize {
		return nil, fmt.Errorf("%w: bad hash or challenge length", common.ErrInvalidInput)
	}
	var key [21]byte
	defer common.WipeByteArray(key[:])
	copy(key[:], hash16)

	out := make([]byte, ChallengeRespSize)
	for i := 0; i < 3; i++ {
		if err := desEncrypt(key[i*7:i*7+7], challenge, out[i*8:i*8+8]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// VerifyNT checks an NTLMv1 NT response against the stored NT slot.
func VerifyNT(b *Blob, challenge, response []byte) error {
	return verifyChallengeResponse(b, AlgNT, challenge, response)
}

// VerifyLM checks an NTLMv1 LM response against the stored LM slot.
func VerifyLM(b *Blob, challenge, response []byte) error {
	return verifyChallengeResponse(b, AlgLM, challenge, response)
}

func verifyChallengeResponse(b *Blob, alg AlgorithmSet, challenge, response []byte) error {
	if !b.Has(alg) {
		return common.ErrNotSupported
	}
	if len(response) != ChallengeRespSize {
		return common.ErrVerificationFailed
	}
	want, err := ChallengeResponse(b.Slot(alg), challenge)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(want)
	if subtle.ConstantTimeCompare(want, response) != 1 {
		return common.ErrVerificationFailed
	}
	return nil
}

// NTLMv2Response computes the NTProofStr followed by blob, as a client
// would send it.
func NTLMv2Response(ntHash []byte, user, domain string, serverChallenge, clientBlob []byte) []byte {
	key := ntowfv2(ntHash, user, domain)
	defer common.WipeByteArray(key)
	msg := make([]byte, 0, len(serverChallenge)+len(clientBlob))
	msg = append(msg, serverChallenge...)
	msg = append(msg, clientBlob...)
	proof := hmacMD5(key, msg)
	return append(proof, clientBlob...)
}

// VerifyNTLMv2 checks the leading proof of an NTLMv2 response. The domain is
// tried as given and then upper-cased, since clients disagree on its case.
func VerifyNTLMv2(b *Blob, user, domain string, serverChallenge, clientResponse []byte) error {
	if !b.Has(AlgNT) {
		return common.ErrNotSupported
	}
	if len(serverChallenge) != ChallengeSize || len(clientResponse) <= ntProofSize {
		return common.ErrVerificationFailed
	}
	clientBlob := clientResponse[ntProofSize:]
	domains := []string{domain}
	if up := strings.ToUpper(domain); up != domain {
		domains = append(domains, up)
	}
	for _, d := range domains {
		want := NTLMv2Response(b.Slot(AlgNT), user, d, serverChallenge, clientBlob)
		ok := subtle.ConstantTimeCompare(want[:ntProofSize], clientResponse[:ntProofSize]) == 1
		common.WipeByteArray(want)
		if ok {
			return nil
		}
	}
	return common.ErrVerificationFailed
}

// MSCHAPv2ChallengeHash implements RFC 2759 ChallengeHash.
func MSCHAPv2ChallengeHash(peerChallenge, authChallenge []byte, user string) []byte {
	h := sha1.New()
	h.Write(peerChallenge)
	h.Write(authChallenge)
	h.Write([]byte(mschapUserName(user)))
	return h.Sum(nil)[:ChallengeSize]
}

// MSCHAPv2Response computes the 24-byte NT-Response a client would send.
func MSCHAPv2Response(ntHash, peerChallenge, authChallenge []byte, user string) ([]byte, error) {
	return ChallengeResponse(ntHash, MSCHAPv2ChallengeHash(peerChallenge, authChallenge, user))
}

// VerifyMSCHAPv2 checks an MS-CHAPv2 NT-Response and, on success, returns
// the authenticator response ("S=" + 40 hex digits) proving the server also
// knows the password.
func VerifyMSCHAPv2(b *Blob, user string, peerChallenge, authChallenge, ntResponse []byte) ([]byte, error) {
	if !b.Has(AlgNT) {
		return nil, common.ErrNotSupported
	}
	if len(peerChallenge) != MSCHAPChallengeSize || len(authChallenge) != MSCHAPChallengeSize {
		return nil, fmt.Errorf("%w: MS-CHAPv2 challenges must be 16 bytes", common.ErrInvalidInput)
	}
	if len(ntResponse) != ChallengeRespSize {
		return nil, common.ErrVerificationFailed
	}

	challengeHash := MSCHAPv2ChallengeHash(peerChallenge, authChallenge, user)
	want, err := ChallengeResponse(b.Slot(AlgNT), challengeHash)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(want)
	if subtle.ConstantTimeCompare(want, ntResponse) != 1 {
		return nil, common.ErrVerificationFailed
	}

	hashHash := md4.New()
	hashHash.Write(b.Slot(AlgNT))
	phh := hashHash.Sum(nil)
	defer common.WipeByteArray(phh)

	d := sha1.New()
	d.Write(phh)
	d.Write(ntResponse)
	d.Write(mschapMagic1)
	digest := d.Sum(nil)

	d = sha1.New()
	d.Write(digest)
	d.Write(challengeHash)
	d.Write(mschapMagic2)
	digest = d.Sum(nil)

	return []byte("S=" + strings.ToUpper(hex.EncodeToString(digest))), nil
}

// mschapUserName strips a "DOMAIN\" prefix.
func mschapUserName(user string) string {
	if i := strings.LastIndexByte(user, '\\'); i >= 0 {
		return user[i+1:]
	}
	return user
}

func ntowfv2(ntHash []byte, user, domain string) []byte {
	identity := toUTF16LE([]byte(strings.ToUpper(user)))
	identity = append(identity, toUTF16LE([]byte(domain))...)
	return hmacMD5(ntHash, identity)
}

func hmacMD5(key, data []byte) []byte {
	mac := hmac.New(md5.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// toUTF16LE encodes UTF-8 bytes as UTF-16LE without going through a string,
// so the caller can wipe both buffers. Invalid sequences become U+FFFD.
func toUTF16LE(b []byte) []byte {
	out := make([]byte, 0, len(b)*2)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			out = binary.LittleEndian.AppendUint16(out, uint16(r1))
			out = binary.LittleEndian.AppendUint16(out, uint16(r2))
			continue
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(r))
	}
	return out
}

// desEncrypt encrypts one 8-byte block under a 7-byte key.
func desEncrypt(key7, data, dst []byte) error {
	key8 := des7to8(key7)
	defer common.WipeByteArray(key8)
	c, err := des.NewCipher(key8)
	if err != nil {
		return err
	}
	c.Encrypt(dst, data)
	return nil
}

func des7to8(key7 []byte) []byte {
	return []byte{
		key7[0],
		(key7[0] << 7) | (key7[1] >> 1),
		(key7[1] << 6) | (key7[2] >> 2),
		(key7[2] << 5) | (key7[3] >> 3),
		(key7[3] << 4) | (key7[4] >> 4),
		(key7[4] << 3) | (key7[5] >> 5),
		(key7[5] << 2) | (key7[6] >> 6),
		key7[6] << 1,
	}
}
