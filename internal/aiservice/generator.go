package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	descriptionRX = regexp.MustCompile(`(?s)DESCRIPTION:\s*(.*?)\nCONTENT:`)
	contentRX     = regexp.MustCompile(`(?s)CONTENT:\s*(.*)`)
)

func NewGenerator(cfg Config, logger *slog.Logger) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = cfg.RequestsPerMinute
	}

	return &Generator{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Enabled reports whether an API key was configured.
func (g *Generator) Enabled() bool {
	return g != nil && g.cfg.APIKey != ""
}

// Generate drafts a description and content for a post with the given title
// and category. A response without the expected sections is not an error; the
// missing parts come back empty.
func (g *Generator) Generate(ctx context.Context, title, category string) (*Generated, error) {
	if !g.Enabled() {
		return nil, ErrNotConfigured
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gemini rate limit: %w", err)
	}

	text, err := g.generateContent(ctx, BuildPrompt(title, category))
	if err != nil {
		return nil, err
	}

	gen := ParseGenerated(text)
	if gen.Empty() {
		g.logger.Warn("gemini response carried no usable sections", slog.String("title", title))
	}

	return &gen, nil
}

// BuildPrompt asks for plain text split into DESCRIPTION and CONTENT sections.
func BuildPrompt(title, category string) string {
	return fmt.Sprintf(`Write a blog titled %q in the category %q.
Return output in this exact format:

DESCRIPTION:
<short description>

CONTENT:
<full blog content>

Use plain text only.`, title, category)
}

// ParseGenerated pulls the DESCRIPTION and CONTENT sections out of text.
func ParseGenerated(text string) Generated {
	var gen Generated

	if m := descriptionRX.FindStringSubmatch(text); m != nil {
		gen.Description = strings.TrimSpace(m[1])
	}
	if m := contentRX.FindStringSubmatch(text); m != nil {
		gen.Content = strings.TrimSpace(m[1])
	}

	return gen
}

// generateContent returns the text of the first candidate, or "" when the API
// returned none.
func (g *Generator) generateContent(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("gemini marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, url.PathEscape(g.cfg.Model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("gemini unmarshal: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", nil
	}

	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			return part.Text, nil
		}
	}

	return "", nil
}
