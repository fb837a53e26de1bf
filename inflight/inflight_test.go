package inflight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallResolveOnce(t *testing.T) {
	call := NewCall()
	assert.False(t, call.Settled())

	assert.True(t, call.Resolve("pong", nil))
	assert.False(t, call.Resolve("other", errors.New("ignored")), "second resolve must be ignored")

	assert.True(t, call.Settled())
	value, err := call.Result()
	require.NoError(t, err)
	assert.Equal(t, "pong", value)
}

func TestCallWaitReturnsFailure(t *testing.T) {
	call := NewCall()
	boom := errors.New("boom")

	go func() {
		time.Sleep(10 * time.Millisecond)
		call.Resolve(nil, boom)
	}()

	_, err := call.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCallWaitHonoursContext(t *testing.T) {
	call := NewCall()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := call.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, call.Settled(), "cancelling a waiter must not settle the call")
}

func TestRegistrySetGetDelete(t *testing.T) {
	reg := NewRegistry()
	call := NewCall()

	assert.False(t, reg.Has("/api/ping"))

	reg.Set("/api/ping", call)
	assert.True(t, reg.Has("/api/ping"))

	got, ok := reg.Get("/api/ping")
	require.True(t, ok)
	assert.Same(t, call, got)

	reg.Delete("/api/ping")
	assert.False(t, reg.Has("/api/ping"))
	_, ok = reg.Get("/api/ping")
	assert.False(t, ok)
}

func TestRegistryGetReturnsSameCallUntilDeleted(t *testing.T) {
	reg := NewRegistry()
	call := NewCall()
	reg.Set("/api/ping", call)

	for i := 0; i < 5; i++ {
		got, ok := reg.Get("/api/ping")
		require.True(t, ok)
		assert.Same(t, call, got)
	}
}

func TestRegistryLoadOrStoreConverges(t *testing.T) {
	reg := NewRegistry()

	const callers = 50
	var wg sync.WaitGroup
	results := make([]*Call, callers)
	owners := make([]bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actual, loaded := reg.LoadOrStore("/api/ping", NewCall())
			results[i] = actual
			owners[i] = !loaded
		}(i)
	}
	wg.Wait()

	ownerCount := 0
	for i := range results {
		assert.Same(t, results[0], results[i])
		if owners[i] {
			ownerCount++
		}
	}
	assert.Equal(t, 1, ownerCount, "exactly one caller should own the call")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryReleaseOnlyRemovesOwnCall(t *testing.T) {
	reg := NewRegistry()
	first := NewCall()
	second := NewCall()

	reg.Set("/api/ping", first)
	reg.Set("/api/ping", second)

	assert.False(t, reg.Release("/api/ping", first), "stale owner must not remove the newer call")
	assert.True(t, reg.Has("/api/ping"))

	assert.True(t, reg.Release("/api/ping", second))
	assert.False(t, reg.Has("/api/ping"))
}

func TestRegistryKeys(t *testing.T) {
	reg := NewRegistry()
	reg.Set("/api/a", NewCall())
	reg.Set("/api/b", NewCall())

	assert.ElementsMatch(t, []string{"/api/a", "/api/b"}, reg.Keys())
}
