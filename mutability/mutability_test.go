package mutability_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dudk/pskrx/mutability"
)

// stageMock used to set up test cases for mutators
type stageMock struct {
	mutability.Mutability
	gain       float64
	operations int
	expected   float64
}

// addGain closure to stageMock.gain
func (m *stageMock) addGain(delta float64) mutability.Mutation {
	return m.Mutate("gain", func() error {
		m.gain += delta
		return nil
	})
}

func TestPutMutations(t *testing.T) {
	var tests = []struct {
		mocks []*stageMock
	}{
		{
			mocks: []*stageMock{
				{
					Mutability: mutability.Mutable(),
					operations: 1,
					expected:   0.5,
				},
			},
		},
		{
			mocks: []*stageMock{
				{
					Mutability: mutability.Mutable(),
					operations: 2,
					expected:   1,
				},
			},
		},
		{
			mocks: []*stageMock{
				{
					Mutability: mutability.Mutable(),
					operations: 3,
					expected:   1.5,
				},
				{
					Mutability: mutability.Mutable(),
					operations: 4,
					expected:   2,
				},
			},
		},
	}

	for _, c := range tests {
		var mutations mutability.Mutations
		total := 0
		for _, m := range c.mocks {
			for j := 0; j < m.operations; j++ {
				mutations = mutations.Put(m.addGain(0.5))
				total++
			}
		}
		assertEqual(t, "len", mutations.Len(), total)
		for _, m := range c.mocks {
			if err := mutations.ApplyTo(m.Mutability); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertEqual(t, "gain", m.gain, m.expected)
			assertEqual(t, "mutability", m.Immutable(), false)
		}
		assertEqual(t, "consumed", mutations.Len(), 0)
	}
}

func TestApplyToUnknown(t *testing.T) {
	stale := &stageMock{Mutability: mutability.Mutable()}
	fresh := &stageMock{Mutability: mutability.Mutable()}
	mutations := mutability.Mutations{}.Put(stale.addGain(1))

	// mutations of a replaced stage never reach the new one.
	if err := mutations.ApplyTo(fresh.Mutability); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "fresh gain", fresh.gain, 0.0)
	assertEqual(t, "pending", mutations.Len(), 1)
}

func TestApplyToError(t *testing.T) {
	errMutation := errors.New("mutation failed")
	m := &stageMock{Mutability: mutability.Mutable()}
	mutations := mutability.Mutations{}.Put(
		m.addGain(1),
		m.Mutate("broken", func() error { return errMutation }),
		m.addGain(1),
	)
	err := mutations.ApplyTo(m.Mutability)
	assertEqual(t, "error", errors.Is(err, errMutation), true)
	assertEqual(t, "gain", m.gain, 1.0)
}

func TestParameters(t *testing.T) {
	filter := &stageMock{Mutability: mutability.Mutable()}
	timing := &stageMock{Mutability: mutability.Mutable()}
	mutations := mutability.Mutations(nil).Put(
		timing.Mutate("omega", func() error { return nil }),
		filter.Mutate("taps", func() error { return nil }),
		timing.Mutate("omega", func() error { return nil }),
		mutability.Mutation{Parameter: "ignored"},
	)
	assertEqual(t, "parameters", mutations.Parameters(), []string{"omega", "taps"})
}

func TestMutability(t *testing.T) {
	mut := mutability.Immutable()
	assertEqual(t, "immutable", mut.Immutable(), true)
	assertEqual(t, "immutable string", mut.String(), "immutable")
	mut = mutability.Mutable()
	assertEqual(t, "mutable", mut.Immutable(), false)
	assertPanic(t, func() {
		mutability.Immutable().Mutate("gain", func() error { return nil })
	})
	mock := &stageMock{
		Mutability: mutability.Mutable(),
	}
	mock.addGain(0.25).Apply()
	assertEqual(t, "apply", mock.gain, 0.25)
}

func assertEqual(t *testing.T, name string, result, expected interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, result) {
		t.Fatalf("%v\nresult: \t%T\t%+v \nexpected: \t%T\t%+v", name, result, result, expected, expected)
	}
}

func assertPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
}
