package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

type WebpageAdapter struct {
	UserAgent string
	Client    *http.Client
}

func NewWebpageAdapter() *WebpageAdapter {
	return &WebpageAdapter{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WebpageAdapter) Name() string {
	return "webpage"
}

func (w *WebpageAdapter) Catalog() *catalog.Catalog {
	return &catalog.Catalog{
		Service:     "webpage",
		Description: "Fetch a webpage and extract the main content as clean, sanitized text.",
		Actions: []catalog.ActionSpec{
			{
				Name:        "fetchContent",
				Description: "Download a page and return its readable title, excerpt, and text",
				Parameters: map[string]catalog.ParamSpec{
					"url": {Type: "string", Description: "The full URL of the webpage (e.g., https://example.com/article)", Required: true},
				},
				Output: map[string]any{
					"title":   "string",
					"excerpt": "string",
					"content": "string",
				},
			},
		},
	}
}

func (w *WebpageAdapter) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	if action != "fetchContent" {
		return nil, &UnknownActionError{Service: w.Name(), Action: action}
	}
	rawURL := stringParam(params, "url")
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", w.UserAgent)

	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %v", err)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse article: %v", err)
	}

	// Strip any markup readability left behind.
	p := bluemonday.StrictPolicy()
	content := p.Sanitize(article.TextContent)

	// Limit content length to keep downstream prompts affordable.
	if len(content) > 50000 {
		content = content[:50000] + "\n... (content truncated) ..."
	}

	return map[string]any{
		"title":   article.Title,
		"excerpt": article.Excerpt,
		"content": content,
	}, nil
}
