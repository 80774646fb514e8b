package cryptox

import (
	"testing"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rfc2195Challenge = "<1896.697170952@postoffice.reston.mci.net>"

func TestCRAMResponse_RFC2195(t *testing.T) {
	got := CRAMResponse([]byte("tanstaaftanstaaf"), []byte(rfc2195Challenge))
	assert.Equal(t, "b913a602c7eda7a495b4e6e7334d3890", got)
}

func TestCramKey_MatchesHMAC(t *testing.T) {
	for _, pw := range []string{"", "tanstaaftanstaaf", string(make([]byte, 100))} {
		key, err := CramKey([]byte(pw))
		require.NoError(t, err)
		require.Len(t, key, CramKeySize)

		d, err := cramDigest(key, []byte(rfc2195Challenge))
		require.NoError(t, err)
		assert.Equal(t, hmacMD5([]byte(pw), []byte(rfc2195Challenge)), d)
	}
}

func TestVerifyCRAMMD5(t *testing.T) {
	s := testSuite(t)

	b, err := s.Hash([]byte("tanstaaftanstaaf"), AlgCRAMMD5)
	require.NoError(t, err)
	defer b.Wipe()

	assert.NoError(t, s.VerifyCRAMMD5(b, []byte(rfc2195Challenge), "b913a602c7eda7a495b4e6e7334d3890"))
	assert.NoError(t, s.VerifyCRAMMD5(b, []byte(rfc2195Challenge), "B913A602C7EDA7A495B4E6E7334D3890"))
	assert.ErrorIs(t, s.VerifyCRAMMD5(b, []byte(rfc2195Challenge), "00"), common.ErrVerificationFailed)
	assert.ErrorIs(t, s.VerifyCRAMMD5(b, []byte(rfc2195Challenge), "not-hex"), common.ErrVerificationFailed)
}

func TestVerifyCRAMMD5_RecoverableFallback(t *testing.T) {
	s := testSuite(t)

	b, err := s.Hash([]byte("tanstaaftanstaaf"), AlgRecoverable)
	require.NoError(t, err)
	defer b.Wipe()
	require.False(t, b.Has(AlgCRAMMD5))

	assert.NoError(t, s.VerifyCRAMMD5(b, []byte(rfc2195Challenge), "b913a602c7eda7a495b4e6e7334d3890"))
}

func TestVerifyCRAMMD5_NoUsableSlot(t *testing.T) {
	s := testSuite(t)
	b, err := s.Hash([]byte("pw"), AlgNT)
	require.NoError(t, err)
	assert.ErrorIs(t, s.VerifyCRAMMD5(b, []byte("c"), "00"), common.ErrNotSupported)
}

func TestAPOP_RFC1939(t *testing.T) {
	const ts = "<1896.697170952@dbc.mtview.ca.us>"
	assert.Equal(t, "c4c9334bac560ecc979e58001b3e22fb", APOPDigest(ts, []byte("tanstaaf")))

	s := testSuite(t)
	b, err := s.Hash([]byte("tanstaaf"), AlgRecoverable)
	require.NoError(t, err)
	defer b.Wipe()

	assert.NoError(t, s.VerifyAPOP(b, ts, "c4c9334bac560ecc979e58001b3e22fb"))
	assert.ErrorIs(t, s.VerifyAPOP(b, ts, "c4c9334bac560ecc979e58001b3e22fc"), common.ErrVerificationFailed)

	noRecover, err := s.Hash([]byte("tanstaaf"), AlgNT)
	require.NoError(t, err)
	assert.ErrorIs(t, s.VerifyAPOP(noRecover, ts, "x"), common.ErrNotSupported)
}

func rfc2831Params() DigestParams {
	return DigestParams{
		Username:  "chris",
		Realm:     "elwood.innosoft.com",
		Nonce:     "OA6MG9tEQGm2hh",
		CNonce:    "OA6MHXh6VqTrRk",
		NC:        "00000001",
		QOP:       "auth",
		DigestURI: "imap/elwood.innosoft.com",
	}
}

func TestDigestMD5_RFC2831(t *testing.T) {
	p := rfc2831Params()
	assert.Equal(t, "d388dad90d4bbd760a152321f2143af7", DigestMD5Response(p, []byte("secret")))

	s := testSuite(t)
	b, err := s.Hash([]byte("secret"), AlgRecoverable)
	require.NoError(t, err)
	defer b.Wipe()

	p.Response = "d388dad90d4bbd760a152321f2143af7"
	rsp, err := s.VerifyDigestMD5(b, p)
	require.NoError(t, err)
	assert.Equal(t, "rspauth=ea40f60335c427b5527b84dbabcdfffd", string(rsp))

	p.Response = "d388dad90d4bbd760a152321f2143af8"
	_, err = s.VerifyDigestMD5(b, p)
	assert.ErrorIs(t, err, common.ErrVerificationFailed)
}
