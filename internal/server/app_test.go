package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/logging"
	"github.com/dmitrijs2005/credengine/internal/secretx"
	"github.com/dmitrijs2005/credengine/internal/server/config"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/dmitrijs2005/credengine/internal/server/policy"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.MetricsAddr = "127.0.0.1:0"
	c.SecretsDir = filepath.Join(dir, "secrets")
	c.GlobalPolicyPath = filepath.Join(dir, "global_policy")
	c.AuditLogPath = filepath.Join(dir, "audit.log")
	c.ThrottleBaseDelay = time.Millisecond
	return c
}

func TestNewApp_WiresCredentialService(t *testing.T) {
	c := testConfig(t)
	mem := directory.NewMemoryRepository()
	mem.AddAccount("alice", "ShadowHash;1;")

	app, err := newApp(c, logging.Nop{}, directory.NewSerialized(mem))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.shutdown(context.Background()) })

	ctx := context.Background()
	admin := models.Caller{Subject: "root", Privileged: true}

	require.NoError(t, app.service.SetPassword(ctx, admin, "alice", secretx.FromString("s3cret")))

	_, err = app.service.Verify(ctx, "alice", cryptox.Credential{
		Method:   cryptox.MethodCleartext,
		Password: secretx.FromString("s3cret"),
	})
	require.NoError(t, err)

	_, err = app.service.Verify(ctx, "alice", cryptox.Credential{
		Method:   cryptox.MethodCleartext,
		Password: secretx.FromString("wrong"),
	})
	assert.ErrorIs(t, err, common.ErrVerificationFailed)

	entries, err := os.ReadDir(c.SecretsDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestNewApp_BadHashList(t *testing.T) {
	c := testConfig(t)
	c.DefaultHashList = "SALTED-SHA1,NOPE"

	_, err := newApp(c, logging.Nop{}, directory.NewMemoryRepository())
	require.Error(t, err)
}

func TestNewApp_BadAuditPath(t *testing.T) {
	c := testConfig(t)
	c.AuditLogPath = filepath.Join(t.TempDir(), "missing", "audit.log")

	_, err := newApp(c, logging.Nop{}, directory.NewMemoryRepository())
	require.Error(t, err)
}

func TestOpenDirectory_MemoryWithoutDSN(t *testing.T) {
	rm, db, err := openDirectory(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, db)
	require.NotNil(t, rm.Directory())

	_, err = rm.Directory().LookupAccount(context.Background(), "nobody")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestRun_StopsOnCancelAndFlushesGlobals(t *testing.T) {
	c := testConfig(t)
	app, err := newApp(c, logging.Nop{}, directory.NewMemoryRepository())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)

	d, err := policy.ParseTokens("maxChars=20")
	require.NoError(t, err)
	require.NoError(t, app.service.SetGlobalPolicy(ctx, models.Caller{Privileged: true}, d))

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	data, err := os.ReadFile(c.GlobalPolicyPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "maxChars=20")
}
