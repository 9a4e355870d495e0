package carrier

import (
	"sort"
	"strings"
)

// Registry holds the known carrier adapters keyed by carrier code.
// Adapters are registered once at startup; lookups are read-only after.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(code string, adapter Adapter) {
	r.adapters[strings.ToLower(code)] = adapter
}

// Get returns the adapter for the given carrier code. An unknown code is an
// unsupported-operation error, not a config one, so callers surface it to
// operators instead of retrying.
func (r *Registry) Get(code string) (Adapter, error) {
	adapter, ok := r.adapters[strings.ToLower(code)]
	if !ok {
		return nil, NewError(ErrKindUnsupported, "no adapter for carrier "+code, nil)
	}
	return adapter, nil
}

// Codes lists the registered carrier codes, sorted.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
