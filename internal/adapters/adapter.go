package adapters

import (
	"context"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

// Adapter is a locally implemented service integration, the third
// catalog tier. It declares the same catalog shape remote manifests use
// and executes its actions in process.
type Adapter interface {
	Name() string
	Catalog() *catalog.Catalog
	Execute(ctx context.Context, action string, params map[string]any) (any, error)
}

// Registry manages the set of available adapters.
type Registry struct {
	Adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		Adapters: make(map[string]Adapter),
	}
}

func (r *Registry) Register(a Adapter) {
	r.Adapters[a.Name()] = a
}

func (r *Registry) Get(name string) Adapter {
	return r.Adapters[name]
}

// CatalogFor serves the adapter tier of capability lookup.
func (r *Registry) CatalogFor(service string) (*catalog.Catalog, bool) {
	a := r.Get(service)
	if a == nil {
		return nil, false
	}
	return a.Catalog(), true
}

// Invoke dispatches one action to the adapter registered for service.
func (r *Registry) Invoke(ctx context.Context, service, action string, params map[string]any) (any, error) {
	a := r.Get(service)
	if a == nil {
		return nil, &UnknownActionError{Service: service, Action: action}
	}
	return a.Execute(ctx, action, params)
}

// UnknownActionError reports an action an adapter declares no callable
// implementation for.
type UnknownActionError struct {
	Service string
	Action  string
}

func (e *UnknownActionError) Error() string {
	return "adapter " + e.Service + " has no implementation for action " + e.Action
}

type ctxKey int

const sessionKey ctxKey = 0

// WithSession tags ctx with the session a plan is running for, so
// session-scoped adapters like the scheduler know who they act for.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

func SessionFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey).(string)
	return id, ok
}

func stringParam(params map[string]any, name string) string {
	v, _ := params[name].(string)
	return v
}

func intParam(params map[string]any, name string) int {
	switch v := params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
