package gateway

import (
	"fmt"
	"sort"

	"iran-payment/internal/domain"
	"iran-payment/internal/domain/ports/adapter"
)

// Factory builds a fresh adapter instance. Adapters hold per-session state
// (token, authority), so the registry never hands out a shared instance.
type Factory func() adapter.Gateway

// Registry is the static gateway-name -> factory table built at startup and
// used to route confirm calls back to the adapter named on the transaction
// record.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

func (r *Registry) Resolve(name string) (adapter.Gateway, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: gateway %q not registered", domain.ErrInvalidConfiguration, name)
	}
	return f(), nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
