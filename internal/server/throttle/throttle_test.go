package throttle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func TestRecordFailure_FourFreeThenLinear(t *testing.T) {
	th := New(DefaultConfig())

	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, th.RecordFailureAt("alice", t0.Add(time.Duration(i)*time.Second)))
	}
	assert.Equal(t, []time.Duration{0, 0, 0, 0, time.Second, 2 * time.Second, 3 * time.Second}, got)
	assert.Equal(t, 7, th.Failures("alice"))
}

func TestRecordFailure_MonotonicInBase(t *testing.T) {
	var prev time.Duration
	for _, base := range []time.Duration{time.Millisecond, 10 * time.Millisecond, time.Second} {
		cfg := DefaultConfig()
		cfg.BaseDelay = base
		th := New(cfg)
		var d time.Duration
		for i := 0; i < 6; i++ {
			d = th.RecordFailureAt("a", t0)
		}
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestRecordFailure_QuietPeriodRestarts(t *testing.T) {
	th := New(DefaultConfig())
	for i := 0; i < 6; i++ {
		th.RecordFailureAt("alice", t0)
	}
	d := th.RecordFailureAt("alice", t0.Add(11*time.Minute))
	assert.Zero(t, d)
	assert.Equal(t, 1, th.Failures("alice"))
}

func TestRecordFailure_MaxDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDelay = 2 * time.Second
	th := New(cfg)
	var d time.Duration
	for i := 0; i < 20; i++ {
		d = th.RecordFailureAt("a", t0)
	}
	assert.Equal(t, 2*time.Second, d)
}

func TestReset(t *testing.T) {
	th := New(DefaultConfig())
	th.RecordFailureAt("alice", t0)
	th.RecordFailureAt("bob", t0)
	th.Reset("alice")
	assert.Zero(t, th.Failures("alice"))
	assert.Equal(t, 1, th.Failures("bob"))
}

func TestSweep(t *testing.T) {
	th := New(DefaultConfig())
	th.RecordFailureAt("old", t0)
	th.RecordFailureAt("new", t0.Add(9*time.Minute))

	n := th.Sweep(t0.Add(15 * time.Minute))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, th.Len())
	assert.Zero(t, th.Failures("old"))
}

func TestRecordFailure_Concurrent(t *testing.T) {
	th := New(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				th.RecordFailure(fmt.Sprintf("acct-%d", i%2))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 400, th.Failures("acct-0"))
	assert.Equal(t, 400, th.Failures("acct-1"))
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	th := New(DefaultConfig())
	th.now = func() time.Time { return t0.Add(time.Hour) }
	th.RecordFailureAt("old", t0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- th.RunSweeper(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Zero(t, th.Len(), "final sweep on shutdown")
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	Sleep(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
	Sleep(context.Background(), 0)
}
