package adapters

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/tools/duckduckgo"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

type SearchAdapter struct {
	client *duckduckgo.Tool
}

func NewSearchAdapter() (*SearchAdapter, error) {
	ddg, err := duckduckgo.New(10, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchAdapter{client: ddg}, nil
}

func (s *SearchAdapter) Name() string {
	return "search"
}

func (s *SearchAdapter) Catalog() *catalog.Catalog {
	return &catalog.Catalog{
		Service:     "search",
		Description: "Search the web using DuckDuckGo for real-time information.",
		Actions: []catalog.ActionSpec{
			{
				Name:        "findResults",
				Description: "Run a web search and return the top results as text",
				Parameters: map[string]catalog.ParamSpec{
					"query": {Type: "string", Description: "The search query to look up", Required: true},
				},
			},
		},
	}
}

func (s *SearchAdapter) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "findResults":
		query := stringParam(params, "query")
		if query == "" {
			return nil, fmt.Errorf("query is required")
		}
		res, err := s.client.Call(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		return map[string]any{"query": query, "results": res}, nil
	default:
		return nil, &UnknownActionError{Service: s.Name(), Action: action}
	}
}
