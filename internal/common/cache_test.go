package common

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setupTestEnvironment(t *testing.T, opts Options) (*Cache, func()) {
	t.Helper()

	cache := NewCache(opts)

	cleanup := func() {
		cache.Flush()
	}

	return cache, cleanup
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()

	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch result")
		return Result{}
	}
}

// countingProducer returns a producer that blocks until gate is closed (when
// non-nil) and counts its calls.
func countingProducer(calls *atomic.Int32, gate <-chan struct{}, value any) Producer {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		if gate != nil {
			<-gate
		}
		return value, nil
	}
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) listen(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Status)
	}
	return out
}

func TestCache_GetCreatesIdleEntry(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	snap := cache.Get(CacheKeyBlogs())
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Value)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Fetch(t *testing.T) {
	testCases := []struct {
		name       string
		producer   Producer
		wantStatus Status
		wantValue  any
		wantErr    bool
	}{
		{
			name: "success",
			producer: func(ctx context.Context) (any, error) {
				return []string{"a", "b"}, nil
			},
			wantStatus: StatusSuccess,
			wantValue:  []string{"a", "b"},
		},
		{
			name: "error",
			producer: func(ctx context.Context) (any, error) {
				return nil, errors.New("boom")
			},
			wantStatus: StatusError,
			wantErr:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache, cleanup := setupTestEnvironment(t, Options{})
			defer cleanup()

			res := waitResult(t, cache.Fetch(context.Background(), CacheKeyBlogs(), tc.producer))
			snap := cache.Get(CacheKeyBlogs())

			assert.Equal(t, tc.wantStatus, snap.Status)
			if tc.wantErr {
				assert.Error(t, res.Err)
				assert.Equal(t, res.Err, snap.Err)
				return
			}
			assert.NoError(t, res.Err)
			assert.Equal(t, tc.wantValue, res.Value)
			assert.Equal(t, tc.wantValue, snap.Value)
			assert.False(t, snap.UpdatedAt.IsZero())
		})
	}
}

func TestCache_FetchErrorKeepsPreviousValue(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	key := CacheKeyBlogs()
	waitResult(t, cache.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
		return "first", nil
	}))
	waitResult(t, cache.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	}))

	snap := cache.Get(key)
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "first", snap.Value)
	assert.EqualError(t, snap.Err, "down")
}

func TestCache_FetchCoalescesInFlightRequests(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	var calls atomic.Int32
	gate := make(chan struct{})
	producer := countingProducer(&calls, gate, "value")

	first := cache.Fetch(context.Background(), CacheKeyBlogs(), producer)
	second := cache.Fetch(context.Background(), CacheKeyBlogs(), producer)

	assert.Equal(t, StatusLoading, cache.Get(CacheKeyBlogs()).Status)

	close(gate)

	assert.Equal(t, "value", waitResult(t, first).Value)
	assert.Equal(t, "value", waitResult(t, second).Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_FetchRetriesOnce(t *testing.T) {
	testCases := []struct {
		name      string
		retry     int
		failures  int32
		wantCalls int32
		wantErr   bool
	}{
		{name: "recovers on retry", retry: 1, failures: 1, wantCalls: 2},
		{name: "gives up after retry", retry: 1, failures: 5, wantCalls: 2, wantErr: true},
		{name: "no retry", retry: 0, failures: 1, wantCalls: 1, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache, cleanup := setupTestEnvironment(t, Options{Retry: tc.retry, RetryDelay: time.Millisecond})
			defer cleanup()

			var calls atomic.Int32
			producer := func(ctx context.Context) (any, error) {
				if calls.Add(1) <= tc.failures {
					return nil, errors.New("flaky")
				}
				return "ok", nil
			}

			res := waitResult(t, cache.Fetch(context.Background(), CacheKeyBlogs(), producer))
			assert.Equal(t, tc.wantCalls, calls.Load())
			if tc.wantErr {
				assert.Error(t, res.Err)
			} else {
				assert.NoError(t, res.Err)
			}
		})
	}
}

func TestCache_FetchWithoutProducer(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	res := waitResult(t, cache.Fetch(context.Background(), CacheKeyBlog("7"), nil))
	assert.ErrorIs(t, res.Err, ErrNoProducer)
}

func TestCache_FetchSurvivesCancelledCaller(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	ch := cache.Fetch(ctx, CacheKeyBlogs(), func(ctx context.Context) (any, error) {
		<-gate
		return "late", ctx.Err()
	})

	cancel()
	close(gate)

	res := waitResult(t, ch)
	assert.NoError(t, res.Err)
	assert.Equal(t, "late", res.Value)
}

func TestCache_SubscribeNotifies(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	rec := &recorder{}
	unsubscribe := cache.Subscribe(CacheKeyBlogs(), rec.listen)
	defer unsubscribe()

	waitResult(t, cache.Fetch(context.Background(), CacheKeyBlogs(), func(ctx context.Context) (any, error) {
		return 3, nil
	}))

	assert.Eventually(t, func() bool {
		return len(rec.statuses()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Status{StatusLoading, StatusSuccess}, rec.statuses())
	assert.Equal(t, 1, cache.Subscribers(CacheKeyBlogs()))
}

func TestCache_UnsubscribeStopsDelivery(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	rec := &recorder{}
	unsubscribe := cache.Subscribe(CacheKeyBlogs(), rec.listen)

	gate := make(chan struct{})
	ch := cache.Fetch(context.Background(), CacheKeyBlogs(), func(ctx context.Context) (any, error) {
		<-gate
		return "done", nil
	})

	unsubscribe()
	unsubscribe()
	close(gate)
	waitResult(t, ch)

	assert.Equal(t, []Status{StatusLoading}, rec.statuses())
	assert.Equal(t, 0, cache.Subscribers(CacheKeyBlogs()))
	assert.Equal(t, "done", cache.Get(CacheKeyBlogs()).Value)
}

func TestCache_InvalidateRefetchesSubscribedKey(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	var calls atomic.Int32
	producer := countingProducer(&calls, nil, "v")

	unsubscribe := cache.Subscribe(CacheKeyBlogs(), func(Snapshot) {})
	defer unsubscribe()

	waitResult(t, cache.Fetch(context.Background(), CacheKeyBlogs(), producer))
	cache.Invalidate(context.Background(), CacheKeyBlogs())

	assert.Eventually(t, func() bool {
		return calls.Load() == 2 && cache.Get(CacheKeyBlogs()).Status == StatusSuccess
	}, time.Second, 5*time.Millisecond)
}

func TestCache_InvalidateMatchesExactKey(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	var listCalls, blogCalls atomic.Int32

	unsubList := cache.Subscribe(CacheKeyBlogs(), func(Snapshot) {})
	defer unsubList()
	unsubBlog := cache.Subscribe(CacheKeyBlog("1"), func(Snapshot) {})
	defer unsubBlog()

	waitResult(t, cache.Fetch(context.Background(), CacheKeyBlogs(), countingProducer(&listCalls, nil, "list")))
	waitResult(t, cache.Fetch(context.Background(), CacheKeyBlog("1"), countingProducer(&blogCalls, nil, "blog")))

	cache.Invalidate(context.Background(), CacheKeyBlogs())

	assert.Eventually(t, func() bool {
		return listCalls.Load() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), blogCalls.Load())
	assert.False(t, cache.Get(CacheKeyBlog("1")).Status == StatusLoading)
}

func TestCache_InvalidateWithoutSubscribersMarksStale(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{StaleTime: time.Hour})
	defer cleanup()

	var calls atomic.Int32
	waitResult(t, cache.Fetch(context.Background(), CacheKeyBlogs(), countingProducer(&calls, nil, "v")))
	assert.False(t, cache.Get(CacheKeyBlogs()).Stale)

	cache.Invalidate(context.Background(), CacheKeyBlogs())

	assert.True(t, cache.Get(CacheKeyBlogs()).Stale)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_InvalidateDuringFetchRefetchesAfterward(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{StaleTime: time.Hour})
	defer cleanup()

	unsubscribe := cache.Subscribe(CacheKeyBlogs(), func(Snapshot) {})
	defer unsubscribe()

	var calls atomic.Int32
	gate := make(chan struct{})
	producer := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			<-gate
		}
		return n, nil
	}

	ch := cache.Fetch(context.Background(), CacheKeyBlogs(), producer)
	cache.Invalidate(context.Background(), CacheKeyBlogs())
	close(gate)
	waitResult(t, ch)

	assert.Eventually(t, func() bool {
		snap := cache.Get(CacheKeyBlogs())
		return snap.Status == StatusSuccess && snap.Value == int32(2) && !snap.Stale
	}, time.Second, 5*time.Millisecond)
}

func TestCache_FetchAfterInvalidateSkipsOlderFlight(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{StaleTime: time.Hour})
	defer cleanup()

	var calls atomic.Int32
	gate := make(chan struct{})
	producer := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			<-gate
		}
		return n, nil
	}

	before := cache.Fetch(context.Background(), CacheKeyBlogs(), producer)
	joined := cache.Fetch(context.Background(), CacheKeyBlogs(), nil)
	cache.Invalidate(context.Background(), CacheKeyBlogs())
	after := cache.Fetch(context.Background(), CacheKeyBlogs(), nil)
	again := cache.Fetch(context.Background(), CacheKeyBlogs(), nil)
	close(gate)

	assert.Equal(t, int32(1), waitResult(t, before).Value)
	assert.Equal(t, int32(1), waitResult(t, joined).Value)
	assert.Equal(t, int32(2), waitResult(t, after).Value)
	assert.Equal(t, int32(2), waitResult(t, again).Value)
	assert.Equal(t, int32(2), calls.Load())

	snap := cache.Get(CacheKeyBlogs())
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, int32(2), snap.Value)
	assert.False(t, snap.Stale)
}

func TestBackoff(t *testing.T) {
	testCases := []struct {
		name    string
		base    time.Duration
		attempt int
		ceil    time.Duration
	}{
		{name: "no delay", base: 0, attempt: 3, ceil: 0},
		{name: "first attempt", base: time.Second, attempt: 0, ceil: time.Second},
		{name: "doubles", base: time.Second, attempt: 2, ceil: 4 * time.Second},
		{name: "capped", base: time.Second, attempt: 10, ceil: MaxRetryDelay},
		{name: "large attempt", base: time.Second, attempt: 34, ceil: MaxRetryDelay},
		{name: "huge attempt", base: time.Hour, attempt: 200, ceil: MaxRetryDelay},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				d := backoff(tc.base, tc.attempt)
				assert.GreaterOrEqual(t, d, time.Duration(0))
				if tc.ceil == 0 {
					assert.Equal(t, time.Duration(0), d)
				} else {
					assert.Less(t, d, tc.ceil)
				}
			}
		})
	}
}

func TestCache_SetData(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{StaleTime: time.Minute})
	defer cleanup()

	rec := &recorder{}
	unsubscribe := cache.Subscribe(CacheKeyBlog("9"), rec.listen)
	defer unsubscribe()

	cache.SetData(CacheKeyBlog("9"), "seeded")

	snap := cache.Get(CacheKeyBlog("9"))
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, "seeded", snap.Value)
	assert.False(t, snap.Stale)
	assert.Equal(t, []Status{StatusSuccess}, rec.statuses())
}

func TestCache_CollectsUnusedEntries(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{GCTime: 20 * time.Millisecond})
	defer cleanup()

	unsubscribe := cache.Subscribe(CacheKeyBlogs(), func(Snapshot) {})
	cache.Get(CacheKeyBlog("1"))

	assert.Eventually(t, func() bool {
		return cache.Len() == 1
	}, time.Second, 10*time.Millisecond)

	unsubscribe()

	assert.Eventually(t, func() bool {
		return cache.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCache_Flush(t *testing.T) {
	cache, cleanup := setupTestEnvironment(t, Options{})
	defer cleanup()

	cache.SetData(CacheKeyBlogs(), "value")
	cache.Flush()

	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, StatusIdle, cache.Get(CacheKeyBlogs()).Status)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
}
