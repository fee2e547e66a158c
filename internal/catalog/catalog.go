package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Catalog describes a service's executable actions, as declared by its
// .aiwe manifest, by the secondary registry, or by a local adapter.
// A catalog is resolved once per plan execution and immutable afterwards.
type Catalog struct {
	Service        string       `json:"service"`
	Description    string       `json:"description"`
	Actions        []ActionSpec `json:"actions"`
	Authentication *Auth        `json:"authentication,omitempty"`
}

// ActionSpec declares one executable action and its parameter schema.
type ActionSpec struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters,omitempty"`
	Output      map[string]any       `json:"output,omitempty"`
}

// ParamSpec is the declared schema for a single action parameter.
type ParamSpec struct {
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Enum        []any      `json:"enum,omitempty"`
	Items       *ParamSpec `json:"items,omitempty"`
}

// Auth declares a service's authentication requirements. Only the
// "headers" type is acted upon; other types are carried but ignored.
type Auth struct {
	Type    string      `json:"type"`
	Options AuthOptions `json:"options,omitempty"`
}

// AuthOption is one named credential set. Headers maps each required
// header name to its human-readable description.
type AuthOption struct {
	Name    string
	Headers map[string]string
}

// AuthOptions preserves the manifest's declared option order so that
// "the first declared option" is well defined.
type AuthOptions []AuthOption

func (o *AuthOptions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("authentication options must be an object")
	}
	var opts AuthOptions
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)
		var headers map[string]string
		if err := dec.Decode(&headers); err != nil {
			return fmt.Errorf("authentication option %q: %w", name, err)
		}
		opts = append(opts, AuthOption{Name: name, Headers: headers})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = opts
	return nil
}

func (o AuthOptions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(opt.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(opt.Headers)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// First returns the first declared authentication option.
func (o AuthOptions) First() (AuthOption, bool) {
	if len(o) == 0 {
		return AuthOption{}, false
	}
	return o[0], true
}

// HeaderNames returns the option's required header names, sorted for
// deterministic iteration and error messages.
func (o AuthOption) HeaderNames() []string {
	names := make([]string, 0, len(o.Headers))
	for n := range o.Headers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RequiresHeaders reports whether the catalog declares header-type
// authentication with at least one option.
func (c *Catalog) RequiresHeaders() bool {
	return c.Authentication != nil && c.Authentication.Type == "headers" && len(c.Authentication.Options) > 0
}

// FindAction returns the declared action with the given name, or nil.
func (c *Catalog) FindAction(name string) *ActionSpec {
	for i := range c.Actions {
		if c.Actions[i].Name == name {
			return &c.Actions[i]
		}
	}
	return nil
}

// Validate checks the structural rules a manifest must satisfy before it
// is accepted: service and description strings, an actions array, and a
// well-formed schema for every declared parameter. A failure here is
// treated exactly like a fetch failure by the tiered source.
func (c *Catalog) Validate() error {
	if strings.TrimSpace(c.Service) == "" {
		return fmt.Errorf("catalog: service name is required")
	}
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("catalog %s: description is required", c.Service)
	}
	if c.Actions == nil {
		return fmt.Errorf("catalog %s: actions array is required", c.Service)
	}
	for i := range c.Actions {
		if err := c.Actions[i].Validate(); err != nil {
			return fmt.Errorf("catalog %s: %w", c.Service, err)
		}
	}
	return nil
}

// Validate checks one declared action: name and description strings plus
// a valid schema for each parameter.
func (a *ActionSpec) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("action: name is required")
	}
	if strings.TrimSpace(a.Description) == "" {
		return fmt.Errorf("action %s: description is required", a.Name)
	}
	for name, p := range a.Parameters {
		if err := p.validate(fmt.Sprintf("action %s parameter %s", a.Name, name)); err != nil {
			return err
		}
	}
	return nil
}

func (p ParamSpec) validate(path string) error {
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("%s: type is required", path)
	}
	if p.Type == "array" {
		if p.Items == nil {
			return fmt.Errorf("%s: array type requires an items schema", path)
		}
		return p.Items.validate(path + " items")
	}
	return nil
}

// Parse decodes and validates a manifest payload.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode manifest: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
