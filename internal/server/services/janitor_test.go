package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgerFunc func(context.Context, time.Time) (int64, error)

func (f purgerFunc) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return f(ctx, before)
}

func TestSessionJanitor_SweepRemovesExpired(t *testing.T) {
	clock := &testClock{t: time.Now().Truncate(time.Second)}
	store := sessions.NewMemoryRepository(sessions.WithClock(clock.Now))
	ctx := context.Background()

	_, err := store.Create(ctx, "u1", "short", clock.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = store.Create(ctx, "u1", "long", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	j := NewSessionJanitor(store, time.Hour, logging.Nop())
	j.now = clock.Now

	n, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.FindValid(ctx, "long")
	assert.NoError(t, err)
}

func TestSessionJanitor_SweepError(t *testing.T) {
	j := NewSessionJanitor(purgerFunc(func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("db down")
	}), time.Hour, logging.Nop())

	_, err := j.Sweep(context.Background())
	assert.Error(t, err)
}

func TestSessionJanitor_RunTicksUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	j := NewSessionJanitor(purgerFunc(func(context.Context, time.Time) (int64, error) {
		calls.Add(1)
		return 0, nil
	}), 10*time.Millisecond, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
