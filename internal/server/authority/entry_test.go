package authority

import (
	"testing"

	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		in      string
		tag     Tag
		name    string
		version int
		data    string
	}{
		{"ShadowHash;1;", TagShadowHash, NameShadowHash, 1, ""},
		{"ShadowHash;1;HASHLIST:<SALTED-SHA1,SMB-NT>", TagShadowHash, NameShadowHash, 1, "HASHLIST:<SALTED-SHA1,SMB-NT>"},
		{"ApplePasswordServer;1;0x1234;host;key", TagPasswordServer, NamePasswordServer, 1, "0x1234;host;key"},
		{"Kerberosv5;2;user@REALM", TagKerberos, NameKerberos, 2, "user@REALM"},
		{"LocalCachedUser;1;/Search", TagUnknown, "LocalCachedUser", 1, "/Search"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e := ParseEntry(tt.in)
			assert.Equal(t, tt.tag, e.Tag)
			assert.Equal(t, tt.name, e.Name)
			assert.Equal(t, tt.version, e.Version)
			assert.Equal(t, tt.data, e.Data)
			assert.Equal(t, tt.in, e.String())
		})
	}
}

func TestParseEntry_Malformed(t *testing.T) {
	for _, in := range []string{"garbage", "ShadowHash;x;", ""} {
		e := ParseEntry(in)
		assert.Equal(t, TagUnknown, e.Tag, in)
		assert.Equal(t, in, e.String(), "malformed values are written back unchanged")
	}
}

func TestDisableEnable(t *testing.T) {
	e := ShadowHashEntry(cryptox.AlgSaltedSHA1 | cryptox.AlgNT)
	d := Disable(e)

	assert.Equal(t, TagDisabled, d.Tag)
	assert.Equal(t, "DisabledUser;1;ShadowHash;1;HASHLIST:<SMB-NT,SALTED-SHA1>", d.String())
	assert.Equal(t, d, Disable(d))

	parsed := ParseEntry(d.String())
	require.NotNil(t, parsed.Wrapped)
	assert.Equal(t, TagShadowHash, parsed.Wrapped.Tag)
	assert.Equal(t, e.String(), Enable(parsed).String())
	assert.Equal(t, e, Enable(e))
}

func TestParseFormatList(t *testing.T) {
	values := []string{"Kerberosv5;1;alice@EXAMPLE", "ShadowHash;1;", "Other;3;x"}
	entries := ParseList(values)
	require.Len(t, entries, 3)
	assert.Equal(t, []Tag{TagKerberos, TagShadowHash, TagUnknown},
		[]Tag{entries[0].Tag, entries[1].Tag, entries[2].Tag})
	assert.Equal(t, values, FormatList(entries))
}

func TestEntry_HashList(t *testing.T) {
	fallback := cryptox.AlgSaltedSHA1

	got, err := ParseEntry("ShadowHash;1;").HashList(fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	got, err = ParseEntry("ShadowHash;1;HASHLIST:<SMB-NT,CRAM-MD5>").HashList(fallback)
	require.NoError(t, err)
	assert.Equal(t, cryptox.AlgNT|cryptox.AlgCRAMMD5, got)

	_, err = ParseEntry("ShadowHash;1;HASHLIST:<BOGUS>").HashList(fallback)
	assert.Error(t, err)
}

func TestTagAndOperation(t *testing.T) {
	assert.Equal(t, "ShadowHash", TagShadowHash.String())
	assert.Equal(t, "Unknown", TagUnknown.String())

	for _, op := range []Operation{OpVerify, OpGetPolicy, OpReadSecret} {
		assert.False(t, op.Broadcast(), op.String())
	}
	for _, op := range []Operation{OpChangePassword, OpSetPassword, OpSetPolicy, OpWriteSecret} {
		assert.True(t, op.Broadcast(), op.String())
	}
}
