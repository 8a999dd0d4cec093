package command

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"
)

// maxSuggestions bounds the names returned by Suggest.
const maxSuggestions = 3

// Registry resolves shell names to command descriptors. Requests and
// notifications live in separate namespaces; within each, a descriptor is
// reachable by its name, its aliases and its method.
type Registry struct {
	mu            sync.RWMutex
	requests      map[string]Request
	notifications map[string]Notification
	ordered       []Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		requests:      make(map[string]Request),
		notifications: make(map[string]Notification),
	}
}

// Register adds a descriptor. It fails if any of its names is taken
// within its kind.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := keys(d)
	switch d := d.(type) {
	case Request:
		for _, n := range names {
			if _, ok := r.requests[n]; ok {
				return fmt.Errorf("%w: request %q", ErrDuplicateName, n)
			}
		}
		for _, n := range names {
			r.requests[n] = d
		}
	case Notification:
		for _, n := range names {
			if _, ok := r.notifications[n]; ok {
				return fmt.Errorf("%w: notification %q", ErrDuplicateName, n)
			}
		}
		for _, n := range names {
			r.notifications[n] = d
		}
	default:
		return fmt.Errorf("command: %q is neither a request nor a notification", d.Name())
	}

	r.ordered = append(r.ordered, d)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(descs ...Descriptor) *Registry {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup finds a descriptor of either kind, requests first.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	if d, ok := r.LookupRequest(name); ok {
		return d, true
	}
	if d, ok := r.LookupNotification(name); ok {
		return d, true
	}
	return nil, false
}

// LookupRequest finds a request descriptor.
func (r *Registry) LookupRequest(name string) (Request, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.requests[name]
	return d, ok
}

// LookupNotification finds a notification descriptor.
func (r *Registry) LookupNotification(name string) (Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.notifications[name]
	return d, ok
}

// Requests returns the request descriptors sorted by name.
func (r *Registry) Requests() []Descriptor {
	return r.list(KindRequest)
}

// Notifications returns the notification descriptors sorted by name.
func (r *Registry) Notifications() []Descriptor {
	return r.list(KindNotification)
}

func (r *Registry) list(kind Kind) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, d := range r.ordered {
		if d.Kind() == kind {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}

// Suggest returns up to three registered names of the given kind that
// fuzzily match name, best first.
func (r *Registry) Suggest(kind Kind, name string) []string {
	if name == "" {
		return nil
	}

	var candidates []string
	for _, d := range r.list(kind) {
		candidates = append(candidates, d.Name())
		candidates = append(candidates, d.Aliases()...)
	}

	var out []string
	for _, m := range fuzzy.Find(name, candidates) {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// keys returns every name d is reachable by.
func keys(d Descriptor) []string {
	names := append([]string{d.Name()}, d.Aliases()...)
	if d.Method() != d.Name() {
		names = append(names, d.Method())
	}
	return names
}
