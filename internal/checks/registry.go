package checks

// Entry is a named check factory as stored in the registry.
type Entry struct {
	Name    string
	Factory Factory
}

// Registry is an ordered, in-memory mapping from check name to factory.
// Resolution without a filter follows registration order.
//
// A Registry is populated at startup and read-only afterwards; Register is
// not safe to call concurrently with Resolve.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// NewRegistry returns an empty registry ready for check registration.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register binds name to f. Registering an existing name replaces its
// factory and keeps its original position.
func (r *Registry) Register(name string, f Factory) {
	if i, ok := r.index[name]; ok {
		r.entries[i].Factory = f
		return
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Factory: f})
}

// Resolve returns the entries to run. An empty names list selects every
// registered check in registration order. Otherwise the entries follow the
// order of names; unknown names are dropped.
func (r *Registry) Resolve(names []string) []Entry {
	if len(names) == 0 {
		out := make([]Entry, len(r.entries))
		copy(out, r.entries)
		return out
	}
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		if i, ok := r.index[name]; ok {
			out = append(out, r.entries[i])
		}
	}
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Names returns the registered check names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}
