package pskrx

import (
	"errors"
	"fmt"

	"github.com/dudk/pskrx/metric"
	"github.com/dudk/pskrx/mutability"
)

// StageName identifies a stage in the graph.
type StageName string

// Stages of the receiver.
const (
	Filter  StageName = "filter"
	AGC     StageName = "agc"
	Carrier StageName = "carrier"
	Timing  StageName = "timing"
	Meter   StageName = "meter"
	Capture StageName = "capture"
	Record  StageName = "record"
	Network StageName = "network"
)

// Stage processes one batch of samples. It must not modify the input.
// Terminal stages return no output.
type Stage interface {
	Process(in []complex64) ([]complex64, error)
}

// Edge is a directed connection between two stages.
type Edge struct {
	From StageName
	To   StageName
}

func (e Edge) String() string {
	return fmt.Sprintf("%v -> %v", e.From, e.To)
}

// Topology is a snapshot of the stage graph.
type Topology struct {
	Stages []StageName
	Edges  []Edge
}

// Connected returns true if topology has the edge.
func (t Topology) Connected(from, to StageName) bool {
	for _, e := range t.Edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

var (
	// ErrCycle is returned when an edge would make the graph cyclic.
	ErrCycle = errors.New("edge closes a cycle")
	// ErrUnknownStage is returned when a stage is not in the graph.
	ErrUnknownStage = errors.New("unknown stage")
)

// stage is an arena slot.
type stage struct {
	Stage
	mutability.Mutability
	name     StageName
	measure  metric.MeasureFunc
	optional bool // errors of optional stages are reported, not returned.
}

// graph is an arena of stages with edges between them. It's not safe for
// concurrent use.
type graph struct {
	stages []stage
	index  map[StageName]int
	edges  []Edge
	// next holds downstream arena indices, rebuilt on every edge change.
	next [][]int
	// failed is called with errors of optional stages.
	failed func(StageName, error)
}

func newGraph() *graph {
	return &graph{
		index:  make(map[StageName]int),
		failed: func(StageName, error) {},
	}
}

// put adds the stage or replaces the handle of existing one. Edges are kept.
func (g *graph) put(s stage) {
	if s.measure == nil {
		s.measure = func(int) {}
	}
	if i, ok := g.index[s.name]; ok {
		g.stages[i] = s
		return
	}
	g.index[s.name] = len(g.stages)
	g.stages = append(g.stages, s)
	g.next = append(g.next, nil)
}

// remove deletes the stage and all its edges.
func (g *graph) remove(name StageName) bool {
	i, ok := g.index[name]
	if !ok {
		return false
	}
	g.stages = append(g.stages[:i], g.stages[i+1:]...)
	g.index = make(map[StageName]int, len(g.stages))
	for j, s := range g.stages {
		g.index[s.name] = j
	}
	edges := g.edges[:0]
	for _, e := range g.edges {
		if e.From != name && e.To != name {
			edges = append(edges, e)
		}
	}
	g.edges = edges
	g.relink()
	return true
}

// get returns the stage slot.
func (g *graph) get(name StageName) (*stage, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return &g.stages[i], true
}

// connect adds an edge. Existing edge is not duplicated.
func (g *graph) connect(from, to StageName) error {
	if _, ok := g.index[from]; !ok {
		return fmt.Errorf("connect %v: %w", from, ErrUnknownStage)
	}
	if _, ok := g.index[to]; !ok {
		return fmt.Errorf("connect %v: %w", to, ErrUnknownStage)
	}
	e := Edge{From: from, To: to}
	for _, existing := range g.edges {
		if existing == e {
			return nil
		}
	}
	if from == to || g.reachable(to, from) {
		return fmt.Errorf("connect %v: %w", e, ErrCycle)
	}
	g.edges = append(g.edges, e)
	g.relink()
	return nil
}

// disconnectAll drops every edge. Stages stay in the arena.
func (g *graph) disconnectAll() {
	g.edges = g.edges[:0]
	g.relink()
}

// reachable returns true if there is a path between stages.
func (g *graph) reachable(from, to StageName) bool {
	target := g.index[to]
	visited := make([]bool, len(g.stages))
	stack := []int{g.index[from]}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i == target {
			return true
		}
		if visited[i] {
			continue
		}
		visited[i] = true
		stack = append(stack, g.next[i]...)
	}
	return false
}

func (g *graph) relink() {
	g.next = make([][]int, len(g.stages))
	for _, e := range g.edges {
		from := g.index[e.From]
		g.next[from] = append(g.next[from], g.index[e.To])
	}
}

// push processes the batch with the named stage and pushes its output
// downstream, depth first in edge order.
func (g *graph) push(name StageName, in []complex64) error {
	i, ok := g.index[name]
	if !ok {
		return fmt.Errorf("push %v: %w", name, ErrUnknownStage)
	}
	return g.pushAt(i, in)
}

func (g *graph) pushAt(i int, in []complex64) error {
	s := &g.stages[i]
	s.measure(len(in))
	out, err := s.Process(in)
	if err != nil {
		if s.optional {
			g.failed(s.name, err)
			return nil
		}
		return fmt.Errorf("stage %v: %w", s.name, err)
	}
	if len(out) == 0 {
		return nil
	}
	for _, j := range g.next[i] {
		if err := g.pushAt(j, out); err != nil {
			return err
		}
	}
	return nil
}

// topology returns a copy of stage names and edges.
func (g *graph) topology() Topology {
	t := Topology{
		Stages: make([]StageName, 0, len(g.stages)),
		Edges:  append([]Edge(nil), g.edges...),
	}
	for _, s := range g.stages {
		t.Stages = append(t.Stages, s.name)
	}
	return t
}
