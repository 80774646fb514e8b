package secrets

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceGUID = "2b6d2a4e-4c5c-4b0c-9f6b-3e2f8c1a0d11"

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "secrets"))
	require.NoError(t, err)
	return s
}

func alice() *models.Account {
	return &models.Account{Handle: "h1", Name: "alice", GUID: aliceGUID}
}

func ntOnlyBlob(t *testing.T, password string) *cryptox.Blob {
	t.Helper()
	nt := cryptox.NTHash([]byte(password))
	lm, _ := cryptox.LMHash([]byte(password))
	text := strings.ToUpper(hexOf(append(nt, lm...)))
	b, err := cryptox.DecodeBlob([]byte(text))
	require.NoError(t, err)
	return b
}

func hexOf(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0xf])
	}
	return string(out)
}

func TestNewStore_CreatesPrivateDir(t *testing.T) {
	s := newStore(t)
	fi, err := os.Stat(s.Dir())
	require.NoError(t, err)
	require.True(t, fi.IsDir())
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o700), fi.Mode().Perm())
	}
}

func TestWriteRead_GUIDKeyed(t *testing.T) {
	s := newStore(t)
	suite := cryptox.NewSuite([]byte("k"))
	defer suite.Close()

	blob, err := suite.Hash([]byte("Secr3t!"), cryptox.AlgNT)
	require.NoError(t, err)
	require.NoError(t, s.Write(alice(), blob))

	path := filepath.Join(s.Dir(), strings.ToUpper(aliceGUID))
	fi, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 2*cryptox.FullBlobSize)

	got, legacy, err := s.Read(alice())
	require.NoError(t, err)
	assert.False(t, legacy)
	assert.Equal(t, blob.Bytes(), got.Bytes())
}

func TestRead_Missing(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Read(alice())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRead_Corrupt(t *testing.T) {
	s := newStore(t)
	path := filepath.Join(s.Dir(), strings.ToUpper(aliceGUID))
	require.NoError(t, os.WriteFile(path, []byte("XYZ"), 0o600))

	_, _, err := s.Read(alice())
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestResolve_FallsBackToName(t *testing.T) {
	s := newStore(t)
	legacyPath := filepath.Join(s.Dir(), "alice")
	require.NoError(t, os.WriteFile(legacyPath, []byte(strings.ToUpper(hexOf(make([]byte, 32)))), 0o600))

	loc, err := s.Resolve(alice())
	require.NoError(t, err)
	assert.Equal(t, legacyPath, loc.Path)
	assert.True(t, loc.Legacy)

	noGUID := &models.Account{Name: "alice"}
	loc, err = s.Resolve(noGUID)
	require.NoError(t, err)
	assert.Equal(t, legacyPath, loc.Path)
	assert.False(t, loc.Legacy, "accounts without an identifier stay name-keyed")
}

func TestResolve_BadGUIDUsesName(t *testing.T) {
	s := newStore(t)
	loc, err := s.Resolve(&models.Account{Name: "bob", GUID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "bob"), loc.Path)
}

func TestResolve_RejectsPathNames(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		_, err := s.Resolve(&models.Account{Name: name})
		assert.ErrorIs(t, err, common.ErrInvalidInput, name)
	}
}

func TestLegacyBlob_MigratesToGUID(t *testing.T) {
	s := newStore(t)
	suite := cryptox.NewSuite([]byte("k"))
	defer suite.Close()

	legacy := ntOnlyBlob(t, "Password")
	origNT := append([]byte{}, legacy.Slot(cryptox.AlgNT)...)
	legacyPath := filepath.Join(s.Dir(), "alice")
	require.NoError(t, os.WriteFile(legacyPath, legacy.Encode()[:64], 0o600))
	require.NoError(t, os.WriteFile(legacyPath+".state", MarshalState(models.AccountState{FailedLoginAttempts: 2}), 0o600))

	blob, isLegacy, err := s.Read(alice())
	require.NoError(t, err)
	require.True(t, isLegacy)
	require.Equal(t, cryptox.FormatLegacyNTLM, blob.Format())

	changed, err := suite.Upgrade(blob, []byte("Password"), cryptox.AlgNT)
	require.NoError(t, err)
	written, err := s.MigrateIfNeeded(alice(), blob, changed)
	require.NoError(t, err)
	assert.True(t, written)

	_, err = os.Stat(legacyPath)
	assert.True(t, os.IsNotExist(err), "name-keyed file must be shredded")
	_, err = os.Stat(legacyPath + ".state")
	assert.True(t, os.IsNotExist(err))

	got, isLegacy, err := s.Read(alice())
	require.NoError(t, err)
	assert.False(t, isLegacy)
	assert.Equal(t, origNT, got.Slot(cryptox.AlgNT))
	assert.True(t, got.Has(cryptox.AlgSaltedSHA1))

	st, err := s.ReadState(alice())
	require.NoError(t, err)
	assert.Equal(t, 2, st.FailedLoginAttempts, "state follows the secret")

	written, err = s.MigrateIfNeeded(alice(), got, false)
	require.NoError(t, err)
	assert.False(t, written)
}

func TestDelete_ShredsEverything(t *testing.T) {
	s := newStore(t)
	suite := cryptox.NewSuite([]byte("k"))
	defer suite.Close()

	blob, err := suite.Hash([]byte("pw"), 0)
	require.NoError(t, err)
	require.NoError(t, s.Write(alice(), blob))
	require.NoError(t, s.WriteState(alice(), models.AccountState{FailedLoginAttempts: 1}))
	require.NoError(t, s.PushHistory(alice(), cryptox.SaltedSHA1([]byte("pw"), []byte{1, 2, 3, 4}), 3))

	require.NoError(t, s.Delete(alice()))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestState_RoundTrip(t *testing.T) {
	s := newStore(t)

	st, err := s.ReadState(alice())
	require.NoError(t, err)
	assert.Equal(t, models.AccountState{}, st)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := models.AccountState{
		FailedLoginAttempts: 3,
		LastLoginDate:       now,
		ModDateOfPassword:   now.Add(-time.Hour),
		LastFailedLoginDate: now.Add(time.Minute),
		NewPasswordRequired: true,
		Disabled:            true,
	}
	require.NoError(t, s.WriteState(alice(), want))

	got, err := s.ReadState(alice())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmarshalState_Malformed(t *testing.T) {
	_, err := UnmarshalState([]byte("short"))
	assert.ErrorIs(t, err, common.ErrStorage)

	buf := MarshalState(models.AccountState{})
	buf[4] = 9
	_, err = UnmarshalState(buf)
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestMarshalState_Layout(t *testing.T) {
	buf := MarshalState(models.AccountState{FailedLoginAttempts: 258, Disabled: true})
	require.Len(t, buf, 36)
	assert.Equal(t, "CSTA", string(buf[:4]))
	assert.Equal(t, byte(1), buf[4])
	assert.Equal(t, byte(2), buf[5])
	assert.Equal(t, []byte{0, 0, 1, 2}, buf[8:12])
}

func TestHistory_PushAndTrim(t *testing.T) {
	s := newStore(t)

	for i := 0; i < 5; i++ {
		entry := cryptox.SaltedSHA1([]byte{byte('a' + i)}, []byte{byte(i), 0, 0, 0})
		require.NoError(t, s.PushHistory(alice(), entry, 3))
	}

	hist, err := s.ReadHistory(alice())
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.True(t, cryptox.MatchSaltedSHA1(hist[0], []byte("e")), "newest first")
	assert.True(t, cryptox.MatchSaltedSHA1(hist[2], []byte("c")))

	require.NoError(t, s.PushHistory(alice(), hist[0], 0))
	hist, err = s.ReadHistory(alice())
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestHistory_FileIsUpperHex(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.PushHistory(alice(), cryptox.SaltedSHA1([]byte("x"), []byte{0xab, 0xcd, 0xef, 0x01}), 2))

	loc, err := s.Resolve(alice())
	require.NoError(t, err)
	data, err := os.ReadFile(loc.HistoryPath())
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Len(t, line, 2*cryptox.SaltedSHA1Size)
	assert.Equal(t, strings.ToUpper(line), line)
	assert.True(t, strings.HasPrefix(line, "ABCDEF01"))
}
