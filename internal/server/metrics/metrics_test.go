package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveVerify("cleartext", ResultSuccess)
	m.ObserveVerify("cleartext", ResultSuccess)
	m.ObserveVerify("nt", ResultFailure)
	m.AccountDisabled("ShadowHash")
	m.BroadcastFailed()
	m.ObserveThrottle(2 * time.Second)

	body := scrape(t, m)
	assert.Contains(t, body, `credengine_verify_total{method="cleartext",result="success"} 2`)
	assert.Contains(t, body, `credengine_verify_total{method="nt",result="failure"} 1`)
	assert.Contains(t, body, `credengine_accounts_disabled_total{authority="ShadowHash"} 1`)
	assert.Contains(t, body, `credengine_broadcast_failures_total 1`)
	assert.Contains(t, body, `credengine_throttle_delay_seconds_count 1`)
}

func TestMetrics_TrackThrottle(t *testing.T) {
	m := New()
	tracked := 3
	m.TrackThrottle(func() int { return tracked })

	assert.Contains(t, scrape(t, m), "credengine_throttle_tracked_accounts 3")
	tracked = 1
	assert.Contains(t, scrape(t, m), "credengine_throttle_tracked_accounts 1")
}

func TestMetrics_Registry(t *testing.T) {
	m := New()
	m.ObserveVerify("apop", ResultError)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["credengine_verify_total"])
	assert.True(t, names["go_goroutines"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveVerify("cleartext", ResultSuccess)
		m.ObserveThrottle(time.Second)
		m.AccountDisabled("ShadowHash")
		m.BroadcastFailed()
		m.TrackThrottle(func() int { return 0 })
	})
}
