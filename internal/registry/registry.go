// Package registry holds the templates and add-ons available to a
// generation run.
//
// A Registry is filled once at startup (built-in templates plus any
// configured directories) and only read afterwards. It is safe for
// concurrent use, and every accessor returns a deep copy so callers can
// never alter what another run sees.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mohae/deepcopy"
)

// ErrUnknownTemplate is matched by every *UnknownTemplateError.
var ErrUnknownTemplate = errors.New("unknown template")

// UnknownTemplateError reports a template id, or template/addon pair, that
// is not registered.
type UnknownTemplateError struct {
	ID string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %q", e.ID)
}

func (e *UnknownTemplateError) Is(target error) bool {
	return target == ErrUnknownTemplate
}

type entry struct {
	template Template
	addons   map[string]Addon
}

// Registry maps template ids to templates. It is append-only.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{templates: make(map[string]*entry)}
}

// Register adds a template together with its add-ons. Registering an id
// twice is an error; existing entries are never replaced.
func (r *Registry) Register(t Template, addons ...Addon) error {
	if t.ID == "" {
		return fmt.Errorf("registering template: empty id")
	}

	e := &entry{addons: make(map[string]Addon, len(addons))}
	ids := make([]string, 0, len(addons))
	for _, a := range addons {
		if a.ID == "" {
			return fmt.Errorf("registering template %s: add-on with empty id", t.ID)
		}
		if a.Template != "" && a.Template != t.ID {
			return fmt.Errorf("registering template %s: add-on %s belongs to %s", t.ID, a.ID, a.Template)
		}
		if _, dup := e.addons[a.ID]; dup {
			return fmt.Errorf("registering template %s: duplicate add-on %s", t.ID, a.ID)
		}
		a = deepcopy.Copy(a).(Addon)
		a.Template = t.ID
		e.addons[a.ID] = a
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)

	e.template = deepcopy.Copy(t).(Template)
	e.template.Addons = ids

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[t.ID]; exists {
		return fmt.Errorf("template %q already registered", t.ID)
	}
	r.templates[t.ID] = e
	return nil
}

// Lookup returns the template registered under id.
func (r *Registry) Lookup(id string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.templates[id]
	if !ok {
		return Template{}, &UnknownTemplateError{ID: id}
	}
	return deepcopy.Copy(e.template).(Template), nil
}

// ListAddons returns the sorted add-on ids a template supports.
func (r *Registry) ListAddons(templateID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.templates[templateID]
	if !ok {
		return nil, &UnknownTemplateError{ID: templateID}
	}
	return append([]string(nil), e.template.Addons...), nil
}

// Addon returns one add-on of a template. An unknown add-on is reported as
// an unknown template named "template/addon".
func (r *Registry) Addon(templateID, addonID string) (Addon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.templates[templateID]
	if !ok {
		return Addon{}, &UnknownTemplateError{ID: templateID}
	}
	a, ok := e.addons[addonID]
	if !ok {
		return Addon{}, &UnknownTemplateError{ID: templateID + "/" + addonID}
	}
	return deepcopy.Copy(a).(Addon), nil
}

// List returns every registered template sorted by id.
func (r *Registry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Template, 0, len(r.templates))
	for _, e := range r.templates {
		out = append(out, deepcopy.Copy(e.template).(Template))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
