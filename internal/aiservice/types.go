package aiservice

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-pro"
	defaultTimeout = 60 * time.Second
)

var ErrNotConfigured = errors.New("ai generation is not configured")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// RequestsPerMinute caps outgoing calls. Zero or less means unlimited.
	RequestsPerMinute int
}

// Generated is a drafted description and body. Empty fields mean nothing was
// generated for them.
type Generated struct {
	Description string `json:"description"`
	Content     string `json:"content"`
}

func (g Generated) Empty() bool {
	return g.Description == "" && g.Content == ""
}

// Generator drafts blog text with the Gemini generateContent API.
type Generator struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}
