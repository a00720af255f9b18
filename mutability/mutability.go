package mutability

import (
	"sort"

	"github.com/rs/xid"
)

// zero value for mutability is immutable.
var immutable = Mutability{}

type (
	// Mutability can be embedded to make stage handles mutable.
	Mutability xid.ID

	// Mutation is a parameter change bound to a certain mutability.
	Mutation struct {
		Mutability
		Parameter string
		mutator   MutatorFunc
	}

	// Mutations is a set of pending mutations mapped to the mutability
	// of the stage they change. Order of mutations for one stage is kept.
	Mutations map[Mutability][]Mutation

	// MutatorFunc mutates the stage.
	MutatorFunc func() error
)

// Mutable returns new mutable Mutability.
func Mutable() Mutability {
	return Mutability(xid.New())
}

// Immutable returns immutable Mutability.
func Immutable() Mutability {
	return immutable
}

// Mutate associates provided mutator with mutable and returns mutation
// of the named parameter.
func (m Mutability) Mutate(parameter string, mutator MutatorFunc) Mutation {
	if m == immutable {
		panic("mutate immutable")
	}
	return Mutation{
		Mutability: m,
		Parameter:  parameter,
		mutator:    mutator,
	}
}

// Immutable returns true if object is immutable.
func (m Mutability) Immutable() bool {
	return m == immutable
}

// String returns the id of the mutability.
func (m Mutability) String() string {
	if m == immutable {
		return "immutable"
	}
	return xid.ID(m).String()
}

// Apply mutator function.
func (m Mutation) Apply() error {
	return m.mutator()
}

// Put mutation to the set. Mutations of immutable are dropped.
func (ms Mutations) Put(mutations ...Mutation) Mutations {
	for _, m := range mutations {
		if m.Mutability == immutable {
			continue
		}
		if ms == nil {
			ms = make(map[Mutability][]Mutation)
		}
		ms[m.Mutability] = append(ms[m.Mutability], m)
	}
	return ms
}

// ApplyTo consumes mutations defined for the stage with provided id. The
// first failed mutation stops the stage update and its error is returned.
func (ms Mutations) ApplyTo(id Mutability) error {
	if ms == nil || id == immutable {
		return nil
	}
	pending, ok := ms[id]
	if !ok {
		return nil
	}
	delete(ms, id)
	for _, m := range pending {
		if err := m.Apply(); err != nil {
			return err
		}
	}
	return nil
}

// Parameters returns sorted unique names of parameters in the set.
func (ms Mutations) Parameters() []string {
	seen := make(map[string]struct{})
	for _, pending := range ms {
		for _, m := range pending {
			seen[m.Parameter] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns number of pending mutations.
func (ms Mutations) Len() int {
	n := 0
	for _, pending := range ms {
		n += len(pending)
	}
	return n
}
