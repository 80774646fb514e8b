package policy

import (
	"testing"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	d, err := Decode("<policy>maxFailedLoginAttempts=3 minChars=8 custom=x</policy>")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{
		{Key: "maxFailedLoginAttempts", Value: "3"},
		{Key: "minChars", Value: "8"},
		{Key: "custom", Value: "x"},
	}, d)

	v, ok := d.Get("minChars")
	assert.True(t, ok)
	assert.Equal(t, "8", v)
	_, ok = d.Get("maxChars")
	assert.False(t, ok)
}

func TestDecode_Empty(t *testing.T) {
	for _, s := range []string{"", "  ", "<policy></policy>", "<policy/>"} {
		d, err := Decode(s)
		require.NoError(t, err, s)
		assert.Empty(t, d, s)
	}
}

func TestDecode_Errors(t *testing.T) {
	for _, s := range []string{"<policy>minChars</policy>", "<other>a=b</other>", "<policy>a=b", "<policy>=b</policy>"} {
		_, err := Decode(s)
		assert.ErrorIs(t, err, common.ErrInvalidInput, s)
	}
}

func TestEncodeDecode_Reversible(t *testing.T) {
	orig := "<policy>usingHistory=5 requiresAlpha=1 expirationDateGMT=2027-01-01T00:00:00Z</policy>"
	d, err := Decode(orig)
	require.NoError(t, err)
	assert.Equal(t, orig, d.Encode())
}

func TestEncode_Empty(t *testing.T) {
	assert.Equal(t, "<policy></policy>", Descriptor{}.Encode())
}

func TestMerge_AccountWins(t *testing.T) {
	global, _ := ParseTokens("minChars=6 maxFailedLoginAttempts=5 requiresAlpha=1")
	account, _ := ParseTokens("maxFailedLoginAttempts=3 newPasswordRequired=1")

	merged := global.Merge(account)
	assert.Equal(t, "minChars=6 maxFailedLoginAttempts=3 requiresAlpha=1 newPasswordRequired=1", merged.Tokens())
	assert.Equal(t, "minChars=6 maxFailedLoginAttempts=5 requiresAlpha=1", global.Tokens(), "merge must not mutate")
}

func TestSetDelete(t *testing.T) {
	d := Descriptor{}.Set("a", "1").Set("b", "2").Set("a", "3")
	assert.Equal(t, "a=3 b=2", d.Tokens())
	assert.Equal(t, "b=2", d.Delete("a").Tokens())
	assert.Equal(t, "a=3 b=2", d.Tokens())
}

func TestParse(t *testing.T) {
	d, err := ParseTokens("isDisabled=0 usingHistory=20 maxMinutesOfNonUse=60 " +
		"usingHardExpirationDate=true hardExpireDateGMT=2027-06-01T10:00:00Z canModifyPasswordforSelf=0 unknown=zz")
	require.NoError(t, err)

	p, err := Parse(d)
	require.NoError(t, err)
	assert.False(t, p.IsDisabled)
	assert.Equal(t, MaxHistoryDepth, p.UsingHistory)
	assert.Equal(t, 60, p.MaxMinutesOfNonUse)
	assert.True(t, p.UsingHardExpirationDate)
	assert.Equal(t, 2027, p.HardExpireDateGMT.Year())
	assert.False(t, p.CanModifyPasswordForSelf)
}

func TestParse_Defaults(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, p.CanModifyPasswordForSelf)
	assert.Zero(t, p.MaxFailedLoginAttempts)
}

func TestParse_BadValues(t *testing.T) {
	for _, tok := range []string{"minChars=x", "minChars=-1", "isDisabled=maybe", "expirationDateGMT=tomorrow"} {
		d, err := ParseTokens(tok)
		require.NoError(t, err)
		_, err = Parse(d)
		assert.ErrorIs(t, err, common.ErrInvalidInput, tok)
	}
}
