package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/secretx"
)

// Method names a verification protocol.
type Method int

const (
	MethodCleartext Method = iota
	MethodNT
	MethodLM
	MethodNTLMv2
	MethodMSCHAPv2
	MethodCRAMMD5
	MethodAPOP
	MethodDigestMD5
)

var methodNames = map[Method]string{
	MethodCleartext: "cleartext",
	MethodNT:        "nt",
	MethodLM:        "lm",
	MethodNTLMv2:    "ntlmv2",
	MethodMSCHAPv2:  "mschapv2",
	MethodCRAMMD5:   "cram-md5",
	MethodAPOP:      "apop",
	MethodDigestMD5: "digest-md5",
}

func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod is the inverse of Method.String.
func ParseMethod(s string) (Method, error) {
	for m, n := range methodNames {
		if n == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown method %q", common.ErrInvalidInput, s)
}

// Credential is what a client presented. Which fields are used depends on
// Method.
type Credential struct {
	Method Method

	// Password is the cleartext for MethodCleartext.
	Password *secretx.Buffer

	// Challenge is the server challenge: 8 bytes for NT, LM and NTLMv2,
	// 16 bytes (authenticator challenge) for MS-CHAPv2, the challenge
	// string for CRAM-MD5.
	Challenge []byte
	// PeerChallenge is the MS-CHAPv2 peer challenge.
	PeerChallenge []byte
	// Response is the client's answer: raw bytes for the NTLM family and
	// MS-CHAPv2, hex text for CRAM-MD5 and APOP.
	Response []byte

	// User and Domain feed NTLMv2 and MS-CHAPv2.
	User   string
	Domain string

	// Timestamp is the APOP banner timestamp.
	Timestamp string

	Digest DigestParams
}

// Wipe clears the cleartext, if any.
func (c *Credential) Wipe() {
	c.Password.Wipe()
}

// Verify checks c against b. For MS-CHAPv2 and DIGEST-MD5 it returns the
// mutual-authentication payload.
func (s *Suite) Verify(b *Blob, c Credential) ([]byte, error) {
	switch c.Method {
	case MethodCleartext:
		return nil, s.VerifyCleartext(b, c.Password.Bytes())
	case MethodNT:
		return nil, VerifyNT(b, c.Challenge, c.Response)
	case MethodLM:
		return nil, VerifyLM(b, c.Challenge, c.Response)
	case MethodNTLMv2:
		return nil, VerifyNTLMv2(b, c.User, c.Domain, c.Challenge, c.Response)
	case MethodMSCHAPv2:
		return VerifyMSCHAPv2(b, c.User, c.PeerChallenge, c.Challenge, c.Response)
	case MethodCRAMMD5:
		return nil, s.VerifyCRAMMD5(b, c.Challenge, string(c.Response))
	case MethodAPOP:
		return nil, s.VerifyAPOP(b, c.Timestamp, string(c.Response))
	case MethodDigestMD5:
		return s.VerifyDigestMD5(b, c.Digest)
	}
	return nil, fmt.Errorf("%w: %s", common.ErrNotSupported, c.Method)
}
