package research

import (
	"context"
	"fmt"
)

// ModelInvoker generates content from a prompt. Implementations may be slow
// or fail; callers own retry and rate-limit policy.
type ModelInvoker interface {
	Name() string
	// Invoke returns free-form text for a prompt.
	Invoke(ctx context.Context, prompt string) (string, error)
	// InvokeJSON asks the model for a JSON object matching the prompt's
	// described shape and unmarshals it into out.
	InvokeJSON(ctx context.Context, prompt string, out any) error
}

// SearchProvider answers one query with a single text result. It must honor
// ctx cancellation so a timed-out attempt can be abandoned.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string) (string, error)
}

// Registry holds named model and search providers.
type Registry struct {
	models   map[string]ModelInvoker
	searches map[string]SearchProvider
}

func NewRegistry() *Registry {
	return &Registry{
		models:   map[string]ModelInvoker{},
		searches: map[string]SearchProvider{},
	}
}

func (r *Registry) RegisterModel(m ModelInvoker)    { r.models[m.Name()] = m }
func (r *Registry) RegisterSearch(s SearchProvider) { r.searches[s.Name()] = s }

func (r *Registry) Model(name string) (ModelInvoker, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("model provider not registered: %s", name)
	}
	return m, nil
}

func (r *Registry) Search(name string) (SearchProvider, error) {
	s, ok := r.searches[name]
	if !ok {
		return nil, fmt.Errorf("search provider not registered: %s", name)
	}
	return s, nil
}
