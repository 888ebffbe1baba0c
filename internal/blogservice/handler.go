package blogservice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sushihentaime/blogdesk/internal/common"
)

var ErrQueryDisabled = errors.New("query is disabled: no blog selected")

// NewBlogService wires the remote model to the query cache. mb may be nil, in
// which case no events are published.
func NewBlogService(m *BlogModel, c *common.Cache, mb common.MessageProducer, logger *slog.Logger) *BlogService {
	if logger == nil {
		logger = slog.Default()
	}

	return &BlogService{m: m, c: c, mb: mb, logger: logger}
}

// QueryState is what a reader of one query key sees.
type QueryState[T any] struct {
	Data      T
	Status    common.Status
	IsLoading bool
	Err       error
}

func stateOf[T any](snap common.Snapshot) QueryState[T] {
	var data T
	if v, ok := snap.Value.(T); ok {
		data = v
	}

	return QueryState[T]{
		Data:      data,
		Status:    snap.Status,
		IsLoading: snap.Status == common.StatusLoading,
		Err:       snap.Err,
	}
}

// Query binds one cache key to the producer that loads it.
type Query[T any] struct {
	c   *common.Cache
	key common.Key
	fn  common.Producer
}

func (q *Query[T]) Key() common.Key {
	return q.key
}

func (q *Query[T]) State() QueryState[T] {
	return stateOf[T](q.c.Get(q.key))
}

// Subscribe registers fn for state changes and starts a fetch unless the
// entry already holds a fresh value. A fetch already in flight is joined.
func (q *Query[T]) Subscribe(ctx context.Context, fn func(QueryState[T])) func() {
	unsubscribe := q.c.Subscribe(q.key, func(s common.Snapshot) {
		fn(stateOf[T](s))
	})
	q.ensure(ctx)

	return unsubscribe
}

// Get returns the cached value when fresh, otherwise waits for a fetch.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	var zero T

	ch, snap := q.ensure(ctx)
	if ch == nil {
		return stateOf[T](snap).Data, nil
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Value.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Refetch loads the key regardless of freshness.
func (q *Query[T]) Refetch(ctx context.Context) <-chan common.Result {
	return q.c.Fetch(ctx, q.key, q.fn)
}

func (q *Query[T]) ensure(ctx context.Context) (<-chan common.Result, common.Snapshot) {
	snap := q.c.Get(q.key)
	if snap.Status == common.StatusSuccess && !snap.Stale {
		q.c.SetProducer(q.key, q.fn)
		return nil, snap
	}

	return q.c.Fetch(ctx, q.key, q.fn), snap
}

// Blogs is the list query bound to the "blogs" key.
func (s *BlogService) Blogs() *Query[[]Blog] {
	return &Query[[]Blog]{
		c:   s.c,
		key: common.CacheKeyBlogs(),
		fn: func(ctx context.Context) (any, error) {
			return s.m.ListBlogs(ctx)
		},
	}
}

func (s *BlogService) blog(id ID) *Query[*Blog] {
	return &Query[*Blog]{
		c:   s.c,
		key: common.CacheKeyBlog(id.String()),
		fn: func(ctx context.Context) (any, error) {
			return s.m.GetBlog(ctx, id)
		},
	}
}

// BlogQuery follows one selected blog. It only fetches while the selected id
// is valid, and moving to another id moves the subscription with it.
type BlogQuery struct {
	s *BlogService

	mu          sync.Mutex
	id          ID
	fn          func(QueryState[*Blog])
	unsubscribe func()
}

func (s *BlogService) BlogByID(id ID) *BlogQuery {
	return &BlogQuery{s: s, id: id}
}

func (q *BlogQuery) ID() ID {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.id
}

func (q *BlogQuery) Enabled() bool {
	return q.ID().Valid()
}

func (q *BlogQuery) State() QueryState[*Blog] {
	id := q.ID()
	if !id.Valid() {
		return QueryState[*Blog]{Status: common.StatusIdle}
	}

	return q.s.blog(id).State()
}

// Subscribe registers fn, replacing any previous listener of this query.
func (q *BlogQuery) Subscribe(ctx context.Context, fn func(QueryState[*Blog])) func() {
	q.mu.Lock()
	old := q.unsubscribe
	q.unsubscribe = nil
	q.fn = fn
	id := q.id
	q.mu.Unlock()

	if old != nil {
		old()
	}
	q.attach(ctx, id, fn)

	return func() {
		q.mu.Lock()
		unsub := q.unsubscribe
		q.unsubscribe = nil
		q.fn = nil
		q.mu.Unlock()

		if unsub != nil {
			unsub()
		}
	}
}

// SetID switches the selection, leaving the old key and joining the new one.
func (q *BlogQuery) SetID(ctx context.Context, id ID) {
	q.mu.Lock()
	if id == q.id {
		q.mu.Unlock()
		return
	}
	q.id = id
	old := q.unsubscribe
	q.unsubscribe = nil
	fn := q.fn
	q.mu.Unlock()

	if old != nil {
		old()
	}
	if fn != nil {
		q.attach(ctx, id, fn)
	}
}

func (q *BlogQuery) attach(ctx context.Context, id ID, fn func(QueryState[*Blog])) {
	if !id.Valid() {
		return
	}

	unsub := q.s.blog(id).Subscribe(ctx, fn)

	q.mu.Lock()
	if q.id != id || q.fn == nil || q.unsubscribe != nil {
		q.mu.Unlock()
		unsub()
		return
	}
	q.unsubscribe = unsub
	q.mu.Unlock()
}

// Get returns the selected blog, fetching it if needed.
func (q *BlogQuery) Get(ctx context.Context) (*Blog, error) {
	id := q.ID()
	if !id.Valid() {
		return nil, ErrQueryDisabled
	}

	return q.s.blog(id).Get(ctx)
}

// Mutation tracks one create operation at a time.
type Mutation struct {
	s *BlogService

	mu      sync.Mutex
	pending bool
	err     error
	data    *Blog
}

func (s *BlogService) CreateBlog() *Mutation {
	return &Mutation{s: s}
}

// Mutate creates draft on the remote resource. On success the list key is
// invalidated after the response arrived and the new record seeds its own
// key. On failure the cache is left alone and the error is returned as is.
func (m *Mutation) Mutate(ctx context.Context, draft *Draft) (*Blog, error) {
	m.mu.Lock()
	m.pending = true
	m.err = nil
	m.mu.Unlock()

	blog, err := m.s.m.CreateBlog(ctx, draft)

	m.mu.Lock()
	m.pending = false
	m.err = err
	m.data = blog
	m.mu.Unlock()

	if err != nil {
		m.s.logger.Error("could not create blog", slog.String("error", err.Error()))
		return nil, err
	}

	m.s.c.SetData(common.CacheKeyBlog(blog.ID.String()), blog)
	m.s.c.SetProducer(common.CacheKeyBlog(blog.ID.String()), m.s.blog(blog.ID).fn)
	m.s.c.Invalidate(ctx, common.CacheKeyBlogs())
	m.s.publishCreated(ctx, blog)

	return blog, nil
}

func (m *Mutation) IsPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pending
}

func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.err
}

func (m *Mutation) Data() *Blog {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.data
}

func (m *Mutation) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = false
	m.err = nil
	m.data = nil
}

func (s *BlogService) publishCreated(ctx context.Context, blog *Blog) {
	if s.mb == nil {
		return
	}

	msg, err := json.Marshal(blog)
	if err != nil {
		s.logger.Error("could not encode blog created event", slog.String("error", err.Error()))
		return
	}

	if err := s.mb.Publish(ctx, msg, common.BlogCreatedKey, common.BlogExchange); err != nil {
		s.logger.Error("could not publish blog created event", slog.String("id", blog.ID.String()), slog.String("error", err.Error()))
	}
}

// GetBlogs returns the blogs matching query, reading through the cache.
func (s *BlogService) GetBlogs(ctx context.Context, query string) ([]Blog, error) {
	blogs, err := s.Blogs().Get(ctx)
	if err != nil {
		return nil, err
	}

	return FilterBlogs(blogs, query), nil
}

// GetBlogByID returns one blog, reading through the cache.
func (s *BlogService) GetBlogByID(ctx context.Context, id ID) (*Blog, error) {
	return s.BlogByID(id).Get(ctx)
}

// CreateBlogFromForm validates the raw form and creates the resulting draft.
// Invalid input is reported as common.ValidationError and never sent.
func (s *BlogService) CreateBlogFromForm(ctx context.Context, in FormInput, now time.Time) (*Blog, error) {
	draft, err := in.Draft(now)
	if err != nil {
		return nil, err
	}

	return s.CreateBlog().Mutate(ctx, draft)
}
