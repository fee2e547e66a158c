package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// outputRefPrefix marks a string parameter value as a reference into the
// output store rather than a literal.
const outputRefPrefix = "$outputs."

// ResolveParams returns a copy of params with every output reference
// replaced by the referenced value. Only string values carrying the
// reference prefix are touched, everything else passes through
// unchanged. A resolved value keeps its original type: a reference to a
// number stays a number, a reference to an object stays an object.
func ResolveParams(params map[string]any, outputs *OutputStore) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	resolved := make(map[string]any, len(params))
	for name, value := range params {
		str, ok := value.(string)
		if !ok || !strings.HasPrefix(str, outputRefPrefix) {
			resolved[name] = value
			continue
		}
		v, err := resolveReference(name, str, outputs)
		if err != nil {
			return nil, err
		}
		resolved[name] = v
	}
	return resolved, nil
}

func resolveReference(param, ref string, outputs *OutputStore) (any, error) {
	path := splitRefPath(strings.TrimPrefix(ref, outputRefPrefix))
	if len(path) == 0 {
		return nil, unresolvedErr(param, ref, "reference names no output key")
	}
	current, ok := outputs.Get(path[0])
	if !ok {
		return nil, unresolvedErr(param, ref, fmt.Sprintf("no output stored under %q", path[0]))
	}
	for _, segment := range path[1:] {
		next, ok := access(current, segment)
		if !ok {
			return nil, unresolvedErr(param, ref, fmt.Sprintf("path segment %q does not resolve", segment))
		}
		current = next
	}
	return current, nil
}

// splitRefPath splits "items[0].name" into ["items", "0", "name"]. Dots
// and brackets are interchangeable separators, empty segments drop out.
func splitRefPath(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
}

func access(value any, segment string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		out, ok := v[segment]
		return out, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

func unresolvedErr(param, ref, detail string) *Error {
	return &Error{
		Kind:    KindUnresolvedReference,
		Message: fmt.Sprintf("parameter %q: cannot resolve %q: %s", param, ref, detail),
	}
}
