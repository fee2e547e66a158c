package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Tier identifies which lookup layer supplied a service's catalog. The
// executor later dispatches on it, so a service resolved through the
// registry is also executed through the registry.
type Tier string

const (
	TierManifest Tier = "native-manifest"
	TierRegistry Tier = "secondary-registry"
	TierAdapter  Tier = "local-adapter"
)

// Entry pairs a resolved catalog with the tier that produced it.
type Entry struct {
	Catalog *Catalog
	Tier    Tier
}

// Set holds the catalogs resolved for one plan, keyed by service name,
// in resolution order.
type Set struct {
	entries map[string]Entry
	order   []string
}

func NewSet() *Set {
	return &Set{entries: make(map[string]Entry)}
}

func (s *Set) Add(service string, c *Catalog, tier Tier) {
	if _, ok := s.entries[service]; !ok {
		s.order = append(s.order, service)
	}
	s.entries[service] = Entry{Catalog: c, Tier: tier}
}

func (s *Set) Lookup(service string) (Entry, bool) {
	e, ok := s.entries[service]
	return e, ok
}

// Services returns the resolved service names in resolution order.
func (s *Set) Services() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set) Len() int { return len(s.order) }

// NoIntegrationError reports that none of the three tiers could supply a
// catalog for a service. It aborts the step that needed the service.
type NoIntegrationError struct {
	Service string
}

func (e *NoIntegrationError) Error() string {
	return fmt.Sprintf("no integration available for service %q", e.Service)
}

// AdapterCatalogs exposes the catalogs of locally registered adapters,
// the third lookup tier.
type AdapterCatalogs interface {
	CatalogFor(service string) (*Catalog, bool)
}

// Source resolves service names to catalogs. Lookup is tiered: the
// service's own .aiwe manifest first, then the secondary registry, then
// locally registered adapters. Any failure in a tier, network or
// validation alike, falls through to the next.
type Source struct {
	Client       *http.Client
	RegistryBase string
	Adapters     AdapterCatalogs

	manifestURL func(service string) string
}

func NewSource(client *http.Client, registryBase string, adapters AdapterCatalogs) *Source {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Source{
		Client:       client,
		RegistryBase: registryBase,
		Adapters:     adapters,
		manifestURL:  ManifestURL,
	}
}

// Resolve returns the catalog for one service together with the tier
// that supplied it.
func (s *Source) Resolve(ctx context.Context, service string) (*Catalog, Tier, error) {
	cat, err := s.fetch(ctx, s.manifestURL(service))
	if err == nil {
		return cat, TierManifest, nil
	}
	log.Printf("Catalog: native manifest for %s unavailable: %v", service, err)

	if s.RegistryBase != "" {
		cat, err = s.fetch(ctx, RegistryServiceURL(s.RegistryBase, service))
		if err == nil {
			return cat, TierRegistry, nil
		}
		log.Printf("Catalog: registry lookup for %s failed: %v", service, err)
	}

	if s.Adapters != nil {
		if cat, ok := s.Adapters.CatalogFor(service); ok {
			return cat, TierAdapter, nil
		}
	}
	return nil, "", &NoIntegrationError{Service: service}
}

// ResolveAll resolves every named service, deduplicating, and records
// each service's tier in the returned set.
func (s *Source) ResolveAll(ctx context.Context, services []string) (*Set, error) {
	set := NewSet()
	for _, service := range services {
		if _, ok := set.Lookup(service); ok {
			continue
		}
		cat, tier, err := s.Resolve(ctx, service)
		if err != nil {
			return nil, err
		}
		log.Printf("Catalog: resolved %s via %s (%d actions)", service, tier, len(cat.Actions))
		set.Add(service, cat, tier)
	}
	return set, nil
}

func (s *Source) fetch(ctx context.Context, rawURL string) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "aiwe-client/1.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

// ServiceDomain maps a service name to the host that should be serving
// its manifest. A name that already looks like a host is used as is,
// anything else is assumed to live under .com.
func ServiceDomain(service string) string {
	if strings.Contains(service, ".") {
		return service
	}
	return service + ".com"
}

// ManifestURL is the well-known location of a service's native manifest.
func ManifestURL(service string) string {
	return fmt.Sprintf("https://%s/.aiwe", ServiceDomain(service))
}

// ExecuteURL is the endpoint a native-manifest service executes actions on.
func ExecuteURL(service string) string {
	return fmt.Sprintf("https://%s/aiwe", ServiceDomain(service))
}

// RegistryServiceURL is the registry's catalog endpoint for a service.
func RegistryServiceURL(base, service string) string {
	return fmt.Sprintf("%s/services/%s", strings.TrimRight(base, "/"), url.PathEscape(service))
}

// RegistryActionURL is the registry's execution endpoint for one action.
func RegistryActionURL(base, service, action string) string {
	return fmt.Sprintf("%s/services/%s/actions/%s", strings.TrimRight(base, "/"), url.PathEscape(service), url.PathEscape(action))
}
