package blogservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 4096

var ErrRecordNotFound = errors.New("record not found")

// NetworkError reports that a request never produced an HTTP response.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError reports a non-2xx response from the remote resource.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Is lets a 404 match ErrRecordNotFound.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRecordNotFound && e.Status == http.StatusNotFound
}

func NewBlogModel(baseURL string, timeout time.Duration) *BlogModel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BlogModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ListBlogs returns every blog the remote resource holds.
func (m *BlogModel) ListBlogs(ctx context.Context) ([]Blog, error) {
	var blogs []Blog
	if err := m.do(ctx, http.MethodGet, "/blogs", nil, &blogs); err != nil {
		return nil, err
	}

	if blogs == nil {
		blogs = []Blog{}
	}

	return blogs, nil
}

// GetBlog returns one blog. A missing record yields an error matching ErrRecordNotFound.
func (m *BlogModel) GetBlog(ctx context.Context, id ID) (*Blog, error) {
	var blog Blog
	if err := m.do(ctx, http.MethodGet, "/blogs/"+url.PathEscape(id.String()), nil, &blog); err != nil {
		return nil, err
	}

	return &blog, nil
}

// CreateBlog submits draft and returns the stored record with its assigned id.
// It is never retried.
func (m *BlogModel) CreateBlog(ctx context.Context, draft *Draft) (*Blog, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}

	var blog Blog
	if err := m.do(ctx, http.MethodPost, "/blogs", body, &blog); err != nil {
		return nil, err
	}

	if !blog.ID.Valid() {
		return nil, errors.New("create blog: response carries no id")
	}

	return &blog, nil
}

func (m *BlogModel) do(ctx context.Context, method, path string, body []byte, dst any) error {
	target := m.baseURL + path

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := m.client.Do(req)
	if err != nil {
		return &NetworkError{Op: method, URL: target, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &HTTPError{Status: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}

	return nil
}
