package blogservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/julienschmidt/httprouter"
)

// TestBackend is an in-memory stand-in for the remote blog resource,
// serving GET /blogs, GET /blogs/:id and POST /blogs.
type TestBackend struct {
	*httptest.Server

	mu         sync.Mutex
	blogs      []Blog
	nextID     int
	listGate   chan struct{}
	failList   int
	failCreate bool

	listCalls   atomic.Int32
	getCalls    atomic.Int32
	createCalls atomic.Int32
}

func NewTestBackend(t *testing.T, seed ...Blog) *TestBackend {
	t.Helper()

	b := &TestBackend{nextID: 1}
	for _, blog := range seed {
		b.add(blog)
	}

	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/blogs", b.list)
	router.HandlerFunc(http.MethodGet, "/blogs/:id", b.get)
	router.HandlerFunc(http.MethodPost, "/blogs", b.create)

	b.Server = httptest.NewServer(router)
	t.Cleanup(func() {
		b.Release()
		b.Server.Close()
	})

	return b
}

func (b *TestBackend) add(blog Blog) Blog {
	if !blog.ID.Valid() {
		blog.ID = ID(strconv.Itoa(b.nextID))
	}
	b.nextID++
	b.blogs = append(b.blogs, blog)
	return blog
}

// Hold makes list requests wait until Release is called.
func (b *TestBackend) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listGate == nil {
		b.listGate = make(chan struct{})
	}
}

func (b *TestBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listGate != nil {
		close(b.listGate)
		b.listGate = nil
	}
}

// FailList makes the next n list requests answer 500.
func (b *TestBackend) FailList(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failList = n
}

func (b *TestBackend) FailCreate(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failCreate = fail
}

func (b *TestBackend) ListCalls() int   { return int(b.listCalls.Load()) }
func (b *TestBackend) GetCalls() int    { return int(b.getCalls.Load()) }
func (b *TestBackend) CreateCalls() int { return int(b.createCalls.Load()) }

func (b *TestBackend) Blogs() []Blog {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Blog(nil), b.blogs...)
}

func (b *TestBackend) list(w http.ResponseWriter, r *http.Request) {
	b.listCalls.Add(1)

	b.mu.Lock()
	gate := b.listGate
	fail := b.failList > 0
	if fail {
		b.failList--
	}
	// A held request answers with the records present when it arrived.
	blogs := append([]Blog(nil), b.blogs...)
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if fail {
		http.Error(w, "backend unavailable", http.StatusInternalServerError)
		return
	}

	writeTestJSON(w, http.StatusOK, blogs)
}

func (b *TestBackend) get(w http.ResponseWriter, r *http.Request) {
	b.getCalls.Add(1)

	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	for _, blog := range b.Blogs() {
		if blog.ID.String() == id {
			writeTestJSON(w, http.StatusOK, blog)
			return
		}
	}

	writeTestJSON(w, http.StatusNotFound, map[string]string{})
}

func (b *TestBackend) create(w http.ResponseWriter, r *http.Request) {
	b.createCalls.Add(1)

	var draft Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	if b.failCreate {
		b.mu.Unlock()
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	blog := b.add(Blog{
		Title:       draft.Title,
		Category:    draft.Category,
		Description: draft.Description,
		Content:     draft.Content,
		CoverImage:  draft.CoverImage,
		Date:        draft.Date,
	})
	b.mu.Unlock()

	writeTestJSON(w, http.StatusCreated, blog)
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
