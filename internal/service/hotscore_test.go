package service

import (
	"context"
	"testing"
	"time"

	"forum_go/internal/core/config"
	"forum_go/internal/core/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotScore(t *testing.T) {
	fresh := HotScore(10, 2, 1, 0)
	assert.InDelta(t, 18/2.2973967, fresh, 1e-4)

	older := HotScore(10, 2, 1, 24*time.Hour)
	assert.Less(t, older, fresh)

	assert.Equal(t, HotScore(1, 1, 1, 0), HotScore(1, 1, 1, -time.Hour))
	assert.Zero(t, HotScore(0, 0, 0, time.Hour))
}

func TestHotScoreJob_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seed(4, 4, 7)
	addThread(env, 99, 4, 7, baseTime.Add(-30*24*time.Hour))

	job := NewHotScoreJob(env.db, &config.HotScoreConfig{Interval: 60, WindowHours: 24})
	job.now = func() time.Time { return baseTime.Add(time.Hour) }

	before := testutil.ToFloat64(metrics.HotScoreRecalculated)
	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, before+4, testutil.ToFloat64(metrics.HotScoreRecalculated))

	stale, _ := env.db.GetByID(context.Background(), 99)
	assert.Zero(t, stale.HotScore)
}

func TestHotScoreJob_DisabledReturns(t *testing.T) {
	env := newTestEnv(t)
	job := NewHotScoreJob(env.db, &config.HotScoreConfig{Interval: 0})

	done := make(chan struct{})
	go func() {
		job.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled job should return immediately")
	}
}

func TestHotScoreJob_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	job := NewHotScoreJob(env.db, &config.HotScoreConfig{Interval: 3600, WindowHours: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
}
