package pskrx

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/xid"

	"github.com/dudk/pskrx/capture"
	"github.com/dudk/pskrx/dsp"
	"github.com/dudk/pskrx/log"
	"github.com/dudk/pskrx/metric"
	"github.com/dudk/pskrx/mutability"
	"github.com/dudk/pskrx/sink"
)

// DefaultCapacity is the size of the default capture buffer.
const DefaultCapacity = 1024

var (
	// ErrConfigured is returned when controller is configured twice.
	ErrConfigured = errors.New("controller is already configured")
	// ErrNotConfigured is returned when controller is used before Configure.
	ErrNotConfigured = errors.New("controller is not configured")
	// ErrInvalidParameter is returned when controller can't be configured
	// with provided parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrFailed is returned by every operation after a failed rebuild.
	ErrFailed = errors.New("controller failed")
	// ErrRunning is returned when Run is called on a running controller.
	ErrRunning = errors.New("controller is already running")
)

// State of the controller.
type State int

// Controller states.
const (
	Unconfigured State = iota
	Idle
	Mutating
	Failed
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Idle:
		return "idle"
	case Mutating:
		return "mutating"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Sink is an optional terminal stage that owns a resource.
type Sink interface {
	Stage
	io.Closer
}

// Controller owns the stage graph of the receiver.
type Controller struct {
	uid    string
	name   string
	lib    dsp.Library
	log    log.Logger
	metric *metric.Metric
	// capture is never replaced, so copies don't need the lock.
	capture capture.Buffer
	// level holds float64 bits of the last measured level.
	level atomic.Uint64

	mu       sync.Mutex
	state    State
	fault    error
	params   Params
	graph    *graph
	rebuilds int

	filter  dsp.Filter
	carrier dsp.CarrierRecovery
	timing  dsp.TimingRecovery
	sinks   map[StageName]Sink
	// extra options of attached sinks
	sinkOpts []sink.Option

	// streaming
	cancel chan struct{}
	done   chan struct{}
}

// Option provides a way to set functional parameters to controller.
type Option func(*Controller)

// WithLogger sets logger to controller.
func WithLogger(logger log.Logger) Option {
	return func(c *Controller) {
		c.log = logger
	}
}

// WithName sets name to controller.
func WithName(n string) Option {
	return func(c *Controller) {
		c.name = n
	}
}

// WithMetric adds metrics for controller, its stages and sinks.
func WithMetric(m *metric.Metric) Option {
	return func(c *Controller) {
		c.metric = m
	}
}

// WithCapture replaces default capture buffer.
func WithCapture(b capture.Buffer) Option {
	return func(c *Controller) {
		c.capture = b
	}
}

// WithParams sets parameters the controller is configured with. Input
// rate is taken from Configure.
func WithParams(p Params) Option {
	return func(c *Controller) {
		c.params = p
	}
}

// WithSinkOptions appends options to every attached sink.
func WithSinkOptions(opts ...sink.Option) Option {
	return func(c *Controller) {
		c.sinkOpts = append(c.sinkOpts, opts...)
	}
}

// New creates unconfigured controller which uses provided block library.
func New(lib dsp.Library, options ...Option) *Controller {
	c := &Controller{
		uid:    xid.New().String(),
		lib:    lib,
		log:    log.GetLogger(),
		params: DefaultParams(),
		graph:  newGraph(),
		sinks:  make(map[StageName]Sink),
	}
	for _, option := range options {
		option(c)
	}
	if c.capture == nil {
		c.capture = capture.NewRing(DefaultCapacity, capture.WithMetric(c.metric))
	}
	c.graph.failed = c.sinkFailed
	return c
}

// Configure builds the graph for provided input rate. It can be called only
// once.
func (c *Controller) Configure(inputRate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unconfigured {
		return ErrConfigured
	}
	p := c.params
	p.InputRate = inputRate
	if err := p.Validate(); err != nil {
		return err
	}
	c.params = p
	c.graph.put(stage{
		name:       Capture,
		Stage:      captureStage{c.capture},
		Mutability: mutability.Immutable(),
		measure:    c.metric.Meter(string(Capture), p.SymbolRate),
	})
	c.log.Info(fmt.Sprintf("%v: configured with input rate %v", c, inputRate))
	return c.rebuild()
}

// SetSymbolRate changes symbol rate in place. Matched filter taps and
// nominal samples per symbol of the clock recovery are updated.
func (c *Controller) SetSymbolRate(rate float64) error {
	return c.mutate("symbol rate", rate, func(p *Params) { p.SymbolRate = rate }, func(p Params, ms mutability.Mutations) (mutability.Mutations, error) {
		taps, err := p.Taps()
		if err != nil {
			return nil, err
		}
		return ms.Put(
			c.mutation(Filter, "taps", func() error {
				c.filter.SetTaps(taps)
				return nil
			}),
			c.mutation(Timing, "omega", func() error {
				c.timing.SetOmega(p.SamplesPerSymbol())
				return nil
			}),
		), nil
	})
}

// SetCarrierGain changes carrier loop gain in place.
func (c *Controller) SetCarrierGain(alpha float64) error {
	return c.mutate("carrier gain", alpha, func(p *Params) { p.CarrierGain = alpha }, func(p Params, ms mutability.Mutations) (mutability.Mutations, error) {
		return ms.Put(
			c.mutation(Carrier, "alpha", func() error {
				c.carrier.SetAlpha(p.CarrierGain)
				return nil
			}),
		), nil
	})
}

// SetTimingGain changes clock recovery gains in place: gain-omega is
// alpha²/4 and gain-mu is alpha.
func (c *Controller) SetTimingGain(alpha float64) error {
	return c.mutate("timing gain", alpha, func(p *Params) { p.TimingGain = alpha }, func(p Params, ms mutability.Mutations) (mutability.Mutations, error) {
		gainOmega, gainMu := p.TimingGains()
		return ms.Put(
			c.mutation(Timing, "gain_omega", func() error {
				c.timing.SetGainOmega(gainOmega)
				return nil
			}),
			c.mutation(Timing, "gain_mu", func() error {
				c.timing.SetGainMu(gainMu)
				return nil
			}),
		), nil
	})
}

// SetRollOff changes roll-off of the matched filter in place.
func (c *Controller) SetRollOff(alpha float64) error {
	return c.mutate("roll-off", alpha, func(p *Params) { p.RollOff = alpha }, func(p Params, ms mutability.Mutations) (mutability.Mutations, error) {
		taps, err := p.Taps()
		if err != nil {
			return nil, err
		}
		return ms.Put(
			c.mutation(Filter, "taps", func() error {
				c.filter.SetTaps(taps)
				return nil
			}),
		), nil
	})
}

// SetModulationOrder rebuilds the graph for a new order. Orders other than
// 2, 4 and 8 are ignored, as well as the current one.
func (c *Controller) SetModulationOrder(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	if !ValidOrder(n) || n == c.params.ModulationOrder {
		c.log.Debug(fmt.Sprintf("%v: modulation order %d ignored", c, n))
		return nil
	}
	c.params.ModulationOrder = n
	return c.rebuild()
}

// SetInputRate rebuilds the graph for a new input rate. Invalid and
// unchanged rates are ignored.
func (c *Controller) SetInputRate(rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	p := c.params
	p.InputRate = rate
	if rate == c.params.InputRate || p.Validate() != nil {
		c.log.Debug(fmt.Sprintf("%v: input rate %v ignored", c, rate))
		return nil
	}
	c.params = p
	return c.rebuild()
}

// AttachRecordingSink starts recording symbols to the file. Existing
// recording is closed first.
func (c *Controller) AttachRecordingSink(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	c.detach(Record)
	r, err := sink.NewRecorder(path, c.sinkOptions(
		sink.WithSampleRate(int(c.params.SymbolRate)),
	)...)
	if err != nil {
		return err
	}
	return c.attach(Record, r)
}

// DetachRecordingSink stops recording. It's a no-op without a recording.
func (c *Controller) DetachRecordingSink() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detach(Record)
}

// AttachNetworkSink starts streaming symbols to the UDP destination.
// Existing stream is closed first.
func (c *Controller) AttachNetworkSink(host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	c.detach(Network)
	u, err := sink.NewNetwork(host, port, c.sinkOptions()...)
	if err != nil {
		return err
	}
	return c.attach(Network, u)
}

// DetachNetworkSink stops streaming. It's a no-op without a stream.
func (c *Controller) DetachNetworkSink() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detach(Network)
}

// SignalLevel returns level of the last batch measured on the filter
// output, in decibels if requested. It doesn't wait for the controller lock.
func (c *Controller) SignalLevel(decibel bool) float64 {
	level := math.Float64frombits(c.level.Load())
	if decibel {
		db := dsp.ToDB(level)
		c.metric.SignalLevel(db)
		return db
	}
	return level
}

// CopyRecentSymbols copies captured symbols into dst and returns their
// number. It doesn't wait for the controller lock.
func (c *Controller) CopyRecentSymbols(dst []complex64) int {
	return c.capture.Copy(dst)
}

// Process pushes a batch of input samples through the graph.
func (c *Controller) Process(batch []complex64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return c.graph.push(Filter, batch)
}

// Params returns current parameters.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Topology returns snapshot of the stage graph.
func (c *Controller) Topology() Topology {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.topology()
}

// Rebuilds returns number of completed rebuilds, the initial one included.
func (c *Controller) Rebuilds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuilds
}

// State returns current state and the fault of the failed controller.
func (c *Controller) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.fault
}

// Close stops streaming and closes attached sinks.
func (c *Controller) Close() error {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, name := range []StageName{Record, Network} {
		if err := c.detach(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// String returns name and id of the controller.
func (c *Controller) String() string {
	if c.name == "" {
		return c.uid
	}
	return fmt.Sprintf("%v %v", c.name, c.uid)
}

// ready returns error if controller can't be used.
func (c *Controller) ready() error {
	switch c.state {
	case Unconfigured:
		return ErrNotConfigured
	case Failed:
		return fmt.Errorf("%w: %w", ErrFailed, c.fault)
	}
	return nil
}

// mutationsFunc builds mutations for updated parameters.
type mutationsFunc func(Params, mutability.Mutations) (mutability.Mutations, error)

// mutate applies an in-place parameter change. Values rejected by
// parameters validation are ignored.
func (c *Controller) mutate(param string, value float64, update func(*Params), mutations mutationsFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	p := c.params
	update(&p)
	if err := p.Validate(); err != nil {
		c.log.Debug(fmt.Sprintf("%v: %v %v ignored: %v", c, param, value, err))
		return nil
	}
	ms, err := mutations(p, mutability.Mutations{})
	if err != nil {
		c.log.Debug(fmt.Sprintf("%v: %v %v ignored: %v", c, param, value, err))
		return nil
	}
	rate := c.params.SymbolRate
	c.params = p
	c.state = Mutating
	names := ms.Parameters()
	for i := range c.graph.stages {
		if err := ms.ApplyTo(c.graph.stages[i].Mutability); err != nil {
			return c.fail(err)
		}
	}
	c.state = Idle
	if p.SymbolRate != rate {
		c.remeter(Capture, Record, Network)
	}
	for _, name := range names {
		c.metric.Mutation(name)
	}
	c.log.Debug(fmt.Sprintf("%v: %v set to %v", c, param, value))
	return nil
}

// mutation binds a mutator to the named stage.
func (c *Controller) mutation(name StageName, param string, fn mutability.MutatorFunc) mutability.Mutation {
	s, ok := c.graph.get(name)
	if !ok || s.Mutability.Immutable() {
		return mutability.Mutation{}
	}
	return s.Mutability.Mutate(param, fn)
}

// rebuild drops every edge, recreates library blocks with current
// parameters and wires the graph again.
func (c *Controller) rebuild() error {
	c.state = Mutating
	c.graph.disconnectAll()
	if err := c.createBlocks(); err != nil {
		return c.fail(err)
	}
	if err := c.connect(); err != nil {
		return c.fail(err)
	}
	c.state = Idle
	c.rebuilds++
	c.metric.Rebuild()
	c.log.Debug(fmt.Sprintf("%v: rebuilt with %+v\n%s", c, c.params, spew.Sdump(c.graph.topology())))
	return nil
}

func (c *Controller) createBlocks() error {
	p := c.params
	taps, err := p.Taps()
	if err != nil {
		return err
	}
	filter, err := c.lib.NewFilter(taps)
	if err != nil {
		return fmt.Errorf("create %v: %w", Filter, err)
	}
	agc, err := c.lib.NewGainControl(agcRate, agcReference, agcGain, agcMaxGain)
	if err != nil {
		return fmt.Errorf("create %v: %w", AGC, err)
	}
	carrier, err := c.lib.NewCarrierRecovery(p.CarrierGain, p.ModulationOrder)
	if err != nil {
		return fmt.Errorf("create %v: %w", Carrier, err)
	}
	gainOmega, gainMu := p.TimingGains()
	timing, err := c.lib.NewTimingRecovery(p.SamplesPerSymbol(), gainOmega, timingMu, gainMu, timingOmegaLimit)
	if err != nil {
		return fmt.Errorf("create %v: %w", Timing, err)
	}
	meter, err := c.lib.NewLevelMeter()
	if err != nil {
		return fmt.Errorf("create %v: %w", Meter, err)
	}

	c.filter, c.carrier, c.timing = filter, carrier, timing
	for _, s := range []struct {
		name StageName
		Stage
		mutable bool
	}{
		{name: Filter, Stage: filter, mutable: true},
		{name: AGC, Stage: agc},
		{name: Carrier, Stage: carrier, mutable: true},
		{name: Timing, Stage: timing, mutable: true},
		{name: Meter, Stage: levelStage{LevelMeter: meter, level: &c.level}},
	} {
		m := mutability.Immutable()
		if s.mutable {
			m = mutability.Mutable()
		}
		c.graph.put(stage{
			name:       s.name,
			Stage:      s.Stage,
			Mutability: m,
			measure:    c.metric.Meter(string(s.name), p.InputRate),
		})
	}
	return nil
}

// connect wires mandatory chain and attached sinks.
func (c *Controller) connect() error {
	edges := []Edge{
		{From: Filter, To: AGC},
		{From: AGC, To: Carrier},
		{From: Carrier, To: Timing},
		{From: Timing, To: Capture},
		{From: Filter, To: Meter},
	}
	for _, name := range []StageName{Record, Network} {
		if _, ok := c.sinks[name]; ok {
			edges = append(edges, Edge{From: Timing, To: name})
		}
	}
	for _, e := range edges {
		if err := c.graph.connect(e.From, e.To); err != nil {
			return err
		}
	}
	return nil
}

// fail moves controller into terminal state.
func (c *Controller) fail(err error) error {
	c.state = Failed
	c.fault = err
	c.metric.Fault()
	c.log.Error(fmt.Sprintf("%v: failed: %v", c, err))
	return fmt.Errorf("%w: %w", ErrFailed, err)
}

func (c *Controller) attach(name StageName, s Sink) error {
	c.sinks[name] = s
	c.graph.put(stage{
		name:       name,
		Stage:      s,
		Mutability: mutability.Immutable(),
		measure:    c.metric.Meter(string(name), c.params.SymbolRate),
		optional:   true,
	})
	if err := c.graph.connect(Timing, name); err != nil {
		c.graph.remove(name)
		delete(c.sinks, name)
		return errors.Join(err, s.Close())
	}
	c.log.Info(fmt.Sprintf("%v: %v sink attached", c, name))
	return nil
}

// detach closes the sink and removes it from the graph.
func (c *Controller) detach(name StageName) error {
	s, ok := c.sinks[name]
	if !ok {
		return nil
	}
	delete(c.sinks, name)
	c.graph.remove(name)
	if err := s.Close(); err != nil {
		c.log.Warn(fmt.Sprintf("%v: failed to close %v sink: %v", c, name, err))
		return err
	}
	c.log.Info(fmt.Sprintf("%v: %v sink detached", c, name))
	return nil
}

// sinkOptions returns options of a new sink. Options provided with
// WithSinkOptions override the defaults.
func (c *Controller) sinkOptions(opts ...sink.Option) []sink.Option {
	opts = append([]sink.Option{
		sink.WithMetric(c.metric),
		sink.WithLogger(c.log),
	}, opts...)
	return append(opts, c.sinkOpts...)
}

// sinkFailed reports failed sink write. The batch is dropped, sinks count
// their own errors.
func (c *Controller) sinkFailed(name StageName, err error) {
	c.log.Warn(fmt.Sprintf("%v: %v sink dropped batch: %v", c, name, err))
}

// remeter replaces meters of stages that run at symbol rate.
func (c *Controller) remeter(names ...StageName) {
	for _, name := range names {
		if s, ok := c.graph.get(name); ok {
			s.measure = c.metric.Meter(string(name), c.params.SymbolRate)
		}
	}
}

// levelStage publishes the level of every measured batch.
type levelStage struct {
	dsp.LevelMeter
	level *atomic.Uint64
}

func (s levelStage) Process(in []complex64) ([]complex64, error) {
	out, err := s.LevelMeter.Process(in)
	if err != nil {
		return nil, err
	}
	s.level.Store(math.Float64bits(s.LevelMeter.Level()))
	return out, nil
}

// captureStage terminates the chain in the capture buffer.
type captureStage struct {
	capture.Buffer
}

func (s captureStage) Process(in []complex64) ([]complex64, error) {
	s.Push(in)
	return nil, nil
}
