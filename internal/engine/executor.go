package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

// AdapterInvoker dispatches an action to an in-process adapter.
type AdapterInvoker interface {
	Invoke(ctx context.Context, service, action string, params map[string]any) (any, error)
}

// Executor runs one resolved action against the backend matching the
// tier its catalog was resolved through: the service's own /aiwe
// endpoint, the secondary registry, or a local adapter.
type Executor struct {
	Client       *http.Client
	RegistryBase string
	// Credentials maps service name to header name to value.
	Credentials map[string]map[string]string
	Adapters    AdapterInvoker

	executeURL func(service string) string
}

func NewExecutor(client *http.Client, registryBase string, credentials map[string]map[string]string, adapters AdapterInvoker) *Executor {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Executor{
		Client:       client,
		RegistryBase: registryBase,
		Credentials:  credentials,
		Adapters:     adapters,
		executeURL:   catalog.ExecuteURL,
	}
}

// Execute dispatches one action. The action id is looked up by name in
// the catalog regardless of tier, so an undeclared action fails the same
// way everywhere.
func (e *Executor) Execute(ctx context.Context, actionID, service string, params map[string]any, entry catalog.Entry) (any, error) {
	spec := entry.Catalog.FindAction(actionID)
	if spec == nil {
		return nil, &Error{
			Kind:        KindActionNotFound,
			ActionID:    actionID,
			ServiceName: service,
			Message:     fmt.Sprintf("service %s declares no action %q", service, actionID),
		}
	}

	switch entry.Tier {
	case catalog.TierAdapter:
		if e.Adapters == nil {
			return nil, execErrf(actionID, service, nil, "no adapter registry configured")
		}
		result, err := e.Adapters.Invoke(ctx, service, actionID, params)
		if err != nil {
			return nil, execErrf(actionID, service, err, "adapter %s failed", service)
		}
		return result, nil

	case catalog.TierRegistry:
		headers, err := e.authHeaders(service, entry.Catalog)
		if err != nil {
			return nil, err
		}
		return e.post(ctx, actionID, service, catalog.RegistryActionURL(e.RegistryBase, service, actionID), params, headers)

	default:
		headers, err := e.authHeaders(service, entry.Catalog)
		if err != nil {
			return nil, err
		}
		payload := map[string]any{"action": actionID, "parameters": params}
		return e.post(ctx, actionID, service, e.executeURL(service), payload, headers)
	}
}

// authHeaders builds the auth headers the catalog's first declared
// option requires. Missing values fail with the exact header names so
// the user knows what to configure, and are never retried.
func (e *Executor) authHeaders(service string, cat *catalog.Catalog) (map[string]string, error) {
	if !cat.RequiresHeaders() {
		return nil, nil
	}
	opt, _ := cat.Authentication.Options.First()
	creds := e.Credentials[service]
	headers := make(map[string]string, len(opt.Headers))
	var missing []string
	for _, name := range opt.HeaderNames() {
		value := creds[name]
		if value == "" {
			missing = append(missing, name)
			continue
		}
		headers[name] = value
	}
	if len(missing) > 0 {
		return nil, &Error{
			Kind:           KindCredential,
			ServiceName:    service,
			MissingHeaders: missing,
			Message:        fmt.Sprintf("service %s requires credentials that are not configured: %s", service, strings.Join(missing, ", ")),
		}
	}
	return headers, nil
}

func (e *Executor) post(ctx context.Context, actionID, service, url string, payload any, headers map[string]string) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, execErrf(actionID, service, err, "encode request for %s", service)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, execErrf(actionID, service, err, "build request for %s", service)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "aiwe-client/1.0")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, execErrf(actionID, service, err, "call %s", service)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, execErrf(actionID, service, err, "read response from %s", service)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, execErrf(actionID, service, nil, "%s returned status %d: %s", service, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 300))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		// Non-JSON success bodies pass through as plain text.
		return string(body), nil
	}
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
