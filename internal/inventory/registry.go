package inventory

import "strings"

// Registry resolves a Strategy by name. Lookup is case-insensitive and an
// unknown name silently resolves to FEFO, same as an empty name with no
// configured default.
type Registry struct {
	byName      map[string]Strategy
	defaultName string
}

func NewRegistry(defaultName string, extra ...Strategy) *Registry {
	r := &Registry{
		byName: map[string]Strategy{
			StrategyFEFO: FEFO{},
			StrategyFIFO: FIFO{},
		},
		defaultName: strings.ToUpper(strings.TrimSpace(defaultName)),
	}
	for _, s := range extra {
		r.byName[strings.ToUpper(s.Name())] = s
	}
	if _, ok := r.byName[r.defaultName]; !ok {
		r.defaultName = StrategyFEFO
	}
	return r
}

// Get returns the named strategy; empty name means the configured default.
func (r *Registry) Get(name string) Strategy {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		name = r.defaultName
	}
	if s, ok := r.byName[name]; ok {
		return s
	}
	return r.byName[StrategyFEFO]
}

func (r *Registry) Default() Strategy { return r.byName[r.defaultName] }
