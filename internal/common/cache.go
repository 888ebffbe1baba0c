package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/rand"
)

const (
	DefaultGCTime     = 5 * time.Minute
	DefaultRetry      = 1
	DefaultRetryDelay = time.Second
	MaxRetryDelay     = 30 * time.Second
)

var ErrNoProducer = errors.New("no producer registered for key")

// Key addresses one cache entry. Invalidation matches keys exactly.
type Key string

func CacheKeyBlogs() Key {
	return "blogs"
}

func CacheKeyBlog(id string) Key {
	return Key("blogs:" + id)
}

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Producer loads the value stored under a key.
type Producer func(ctx context.Context) (any, error)

// Result is the settled outcome of a fetch: either Value or Err is meaningful.
type Result struct {
	Value any
	Err   error
}

// Snapshot is a read-only copy of an entry handed to callers and listeners.
type Snapshot struct {
	Status    Status
	Value     any
	Err       error
	Stale     bool
	UpdatedAt time.Time
}

type Listener func(Snapshot)

type Options struct {
	// StaleTime is how long a successful value counts as fresh. Zero means
	// every new reader refetches.
	StaleTime time.Duration
	// GCTime is how long an entry without subscribers is retained.
	GCTime time.Duration
	// Retry is the number of extra attempts a failing read gets.
	Retry      int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		GCTime:     DefaultGCTime,
		Retry:      DefaultRetry,
		RetryDelay: DefaultRetryDelay,
	}
}

type subscription struct {
	mu     sync.Mutex
	active bool
	fn     Listener
}

func (s *subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.fn(snap)
	}
}

type flight struct {
	done        chan struct{}
	res         Result
	invalidated bool
	// next is the fetch queued behind an invalidated flight. Callers arriving
	// after the invalidation wait on it instead of the older result.
	next *flight
}

type entry struct {
	status    Status
	value     any
	err       error
	stale     bool
	updatedAt time.Time
	producer  Producer
	flight    *flight
	subs      map[uint64]*subscription
}

// Cache is the query cache: one entry per key holding the last known state of
// a remote read, with at most one fetch in flight per key. Entries live in a
// go-cache store; subscribed entries never expire, the rest are collected
// GCTime after their last subscriber left.
type Cache struct {
	mu     sync.Mutex
	store  *cache.Cache
	nextID uint64
	opts   Options
	logger *slog.Logger
}

func NewCache(opts Options) *Cache {
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		store:  cache.New(opts.GCTime, opts.GCTime),
		opts:   opts,
		logger: logger,
	}

	c.store.OnEvicted(func(key string, _ interface{}) {
		logger.Debug("cache entry collected", slog.String("key", key))
	})

	return c
}

// entryLocked returns the entry for key, creating an idle one. c.mu must be held.
func (c *Cache) entryLocked(key Key) *entry {
	if v, ok := c.store.Get(string(key)); ok {
		return v.(*entry)
	}

	e := &entry{subs: make(map[uint64]*subscription)}
	c.store.Set(string(key), e, c.opts.GCTime)

	return e
}

func (c *Cache) snapshotLocked(e *entry) Snapshot {
	stale := e.stale
	if e.status == StatusSuccess && time.Since(e.updatedAt) >= c.opts.StaleTime {
		stale = true
	}

	return Snapshot{
		Status:    e.status,
		Value:     e.value,
		Err:       e.err,
		Stale:     stale,
		UpdatedAt: e.updatedAt,
	}
}

func (c *Cache) subscribersLocked(e *entry) []*subscription {
	subs := make([]*subscription, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	return subs
}

func notify(subs []*subscription, snap Snapshot) {
	for _, s := range subs {
		s.deliver(snap)
	}
}

// Get returns the current state of key, creating an idle entry if absent.
func (c *Cache) Get(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked(c.entryLocked(key))
}

// Subscribe registers fn for state changes of key. Once the returned function
// has returned, fn is never called again. It must not be called from inside fn.
func (c *Cache) Subscribe(key Key, fn Listener) func() {
	sub := &subscription{active: true, fn: fn}

	c.mu.Lock()
	e := c.entryLocked(key)
	c.nextID++
	id := c.nextID
	e.subs[id] = sub
	c.store.Set(string(key), e, cache.NoExpiration)
	c.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			sub.mu.Lock()
			sub.active = false
			sub.mu.Unlock()

			c.mu.Lock()
			defer c.mu.Unlock()

			delete(e.subs, id)
			if len(e.subs) > 0 {
				return
			}
			if v, ok := c.store.Get(string(key)); ok && v.(*entry) == e {
				c.store.Set(string(key), e, c.opts.GCTime)
			}
		})
	}
}

// Subscribers reports how many listeners are registered for key.
func (c *Cache) Subscribers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.store.Get(string(key))
	if !ok {
		return 0
	}
	return len(v.(*entry).subs)
}

// Fetch loads key with fn unless a fetch for key is already in flight, in
// which case the call joins it. A flight that was invalidated is never joined:
// the call waits on the fetch queued to start once that flight settles. fn
// replaces the producer remembered for key; a nil fn reuses the remembered
// one. The returned channel yields the outcome of the fetch that was joined
// or started.
//
// The producer runs with a context that is not cancelled with ctx, so a
// reader going away does not abort a fetch other readers may be waiting on.
func (c *Cache) Fetch(ctx context.Context, key Key, fn Producer) <-chan Result {
	c.mu.Lock()
	e := c.entryLocked(key)
	if fn != nil {
		e.producer = fn
	}
	fn = e.producer

	if fn == nil {
		c.mu.Unlock()
		return settled(Result{Err: fmt.Errorf("%w: %s", ErrNoProducer, key)})
	}

	if f := e.flight; f != nil {
		if f.invalidated {
			if f.next == nil {
				f.next = &flight{done: make(chan struct{})}
			}
			f = f.next
		}
		c.mu.Unlock()
		return wait(f)
	}

	f := &flight{done: make(chan struct{})}
	e.flight = f
	e.status = StatusLoading
	snap := c.snapshotLocked(e)
	subs := c.subscribersLocked(e)
	c.mu.Unlock()

	notify(subs, snap)

	go c.run(context.WithoutCancel(ctx), key, e, f, fn)

	return wait(f)
}

func (c *Cache) run(ctx context.Context, key Key, e *entry, f *flight, fn Producer) {
	v, err := c.produce(ctx, key, fn)

	c.mu.Lock()
	e.flight = nil
	if err != nil {
		e.status = StatusError
		e.err = err
		c.logger.Debug("fetch failed", slog.String("key", string(key)), slog.String("error", err.Error()))
	} else {
		e.status = StatusSuccess
		e.value = v
		e.err = nil
		e.updatedAt = time.Now()
		e.stale = f.invalidated
	}
	f.res = Result{Value: v, Err: err}
	snap := c.snapshotLocked(e)
	subs := c.subscribersLocked(e)

	// The value was requested before an invalidation landed, so it may
	// predate the write that caused it. Reload when anyone is waiting on
	// the queued fetch or watching the key.
	next := f.next
	if f.invalidated && next == nil && len(subs) > 0 {
		next = &flight{done: make(chan struct{})}
	}
	var (
		nextFn   Producer
		loading  Snapshot
		chaining = next != nil && e.producer != nil
	)
	if chaining {
		nextFn = e.producer
		e.flight = next
		e.status = StatusLoading
		loading = c.snapshotLocked(e)
	}
	c.mu.Unlock()

	close(f.done)
	notify(subs, snap)

	switch {
	case chaining:
		notify(subs, loading)
		go c.run(ctx, key, e, next, nextFn)
	case next != nil:
		next.res = Result{Err: fmt.Errorf("%w: %s", ErrNoProducer, key)}
		close(next.done)
	}
}

// produce calls fn, retrying up to Options.Retry times with exponential
// backoff and jitter.
func (c *Cache) produce(ctx context.Context, key Key, fn Producer) (any, error) {
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil || attempt >= c.opts.Retry || errors.Is(err, context.Canceled) {
			return v, err
		}

		delay := backoff(c.opts.RetryDelay, attempt)
		c.logger.Debug("retrying fetch", slog.String("key", string(key)), slog.Int("attempt", attempt+1), slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff returns a random delay below base doubled attempt times, capped at
// MaxRetryDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	ceil := MaxRetryDelay
	if attempt < 63 && base <= MaxRetryDelay>>uint(attempt) {
		ceil = base << uint(attempt)
	}

	return time.Duration(rand.Int63n(int64(ceil)))
}

// Invalidate marks key stale and refetches it when someone is subscribed.
// Only the exact key is affected.
func (c *Cache) Invalidate(ctx context.Context, key Key) {
	c.mu.Lock()
	v, ok := c.store.Get(string(key))
	if !ok {
		c.mu.Unlock()
		return
	}

	e := v.(*entry)
	e.stale = true
	if e.flight != nil {
		e.flight.invalidated = true
		c.mu.Unlock()
		return
	}
	refetch := len(e.subs) > 0 && e.producer != nil
	c.mu.Unlock()

	if refetch {
		c.Fetch(ctx, key, nil)
	}
}

// SetProducer remembers fn as the way to reload key without fetching now.
func (c *Cache) SetProducer(key Key, fn Producer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entryLocked(key).producer = fn
}

// SetData stores value under key as a fresh successful result.
func (c *Cache) SetData(key Key, value any) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.status = StatusSuccess
	e.value = value
	e.err = nil
	e.stale = false
	e.updatedAt = time.Now()
	snap := c.snapshotLocked(e)
	subs := c.subscribersLocked(e)
	c.mu.Unlock()

	notify(subs, snap)
}

// Len returns the number of entries currently held.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Flush()
}

func wait(f *flight) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		<-f.done
		out <- f.res
		close(out)
	}()
	return out
}

func settled(res Result) <-chan Result {
	out := make(chan Result, 1)
	out <- res
	close(out)
	return out
}
