package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sushihentaime/blogdesk/internal/aiservice"
	"github.com/sushihentaime/blogdesk/internal/blogservice"
	"github.com/sushihentaime/blogdesk/internal/common"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	var envelope envelope
	err = json.Unmarshal(responseBody, &envelope)
	if err != nil {
		t.Fatal(err)
	}

	return res.StatusCode, res.Header, envelope
}

// newTestApplication wires an application against an in-memory blog backend
// seeded with seed. AI generation is left unconfigured.
func newTestApplication(t *testing.T, seed ...blogservice.Blog) (*application, *blogservice.TestBackend) {
	t.Helper()

	backend := blogservice.NewTestBackend(t, seed...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &Config{
		Environment:    "testing",
		Version:        "1.0.0",
		BlogAPIURL:     backend.URL,
		BlogAPITimeout: time.Second,
		QueryGCTime:    time.Minute,
	}

	cache := common.NewCache(common.Options{
		StaleTime: cfg.QueryStaleTime,
		GCTime:    cfg.QueryGCTime,
		Retry:     cfg.QueryRetry,
		Logger:    logger,
	})
	t.Cleanup(cache.Flush)

	app := &application{
		config:      cfg,
		logger:      logger,
		cache:       cache,
		blogService: blogservice.NewBlogService(blogservice.NewBlogModel(cfg.BlogAPIURL, cfg.BlogAPITimeout), cache, nil, logger),
		generator:   aiservice.NewGenerator(aiservice.Config{}, logger),
	}

	return app, backend
}

func (ts *testServer) post(t *testing.T, path string, data any) (int, http.Header, envelope) {
	jsonPayload, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}

	body := bytes.NewReader(jsonPayload)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Content-Type", "application/json")
	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}

func (ts *testServer) get(t *testing.T, path string) (int, http.Header, envelope) {
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}
