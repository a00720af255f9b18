// Package panel connects the receiver controls and the constellation view.
// Edits are forwarded to the controller, symbol snapshots are copied from
// the controller and handed to the renderer at the panel's own pace.
package panel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dudk/pskrx"
	"github.com/dudk/pskrx/log"
	"github.com/dudk/pskrx/render"
)

// DefaultSymbols is the number of symbols copied on every refresh.
const DefaultSymbols = 1024

// Controller is the part of the receiver controller the panel drives.
type Controller interface {
	SetModulationOrder(n int) error
	SetSymbolRate(rate float64) error
	SetCarrierGain(alpha float64) error
	SetTimingGain(alpha float64) error
	SetRollOff(alpha float64) error
	SetInputRate(rate float64) error
	AttachRecordingSink(path string) error
	DetachRecordingSink() error
	AttachNetworkSink(host string, port int) error
	DetachNetworkSink() error
	SignalLevel(decibel bool) float64
	CopyRecentSymbols(dst []complex64) int
	Params() pskrx.Params
}

// Control parameters accepted by Apply.
const (
	ParamMode            = "mode"
	ParamModulationOrder = "modulation_order"
	ParamSymbolRate      = "symbol_rate"
	ParamCarrierGain     = "carrier_gain"
	ParamTimingGain      = "timing_gain"
	ParamRollOff         = "roll_off"
	ParamInputRate       = "input_rate"
	ParamRecord          = "record"
	ParamNetwork         = "network"
)

// ErrInvalidControl is returned when control message can't be applied.
var ErrInvalidControl = errors.New("invalid control")

// Control is an edit of one parameter. Numeric parameters take numbers.
// Mode takes a label, record takes a path and network takes host:port.
// Empty record or network value detaches the sink.
type Control struct {
	Param string      `json:"param"`
	Value interface{} `json:"value"`
}

// Snapshot is what the panel shows after a refresh.
type Snapshot struct {
	Type    string       `json:"type"`
	Level   float64      `json:"level"`
	Order   int          `json:"order"`
	Symbols [][2]float32 `json:"symbols"`
}

// Option configures panel.
type Option func(*Panel)

// WithSymbols sets number of symbols copied on every refresh.
func WithSymbols(n int) Option {
	return func(p *Panel) {
		if n > 0 {
			p.scratch = make([]complex64, n)
		}
	}
}

// WithLogger sets logger to panel.
func WithLogger(l log.Logger) Option {
	return func(p *Panel) {
		p.log = l
	}
}

// Panel is a display panel.
type Panel struct {
	ctrl     Controller
	renderer *render.Renderer
	log      log.Logger

	mu          sync.Mutex
	scratch     []complex64
	subscribers map[chan Snapshot]struct{}
}

// New returns panel which drives the controller and the renderer.
func New(ctrl Controller, r *render.Renderer, options ...Option) *Panel {
	p := &Panel{
		ctrl:        ctrl,
		renderer:    r,
		log:         log.GetLogger(),
		scratch:     make([]complex64, DefaultSymbols),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, option := range options {
		option(p)
	}
	r.SetMode(ctrl.Params().ModulationOrder)
	return p
}

// SetModulationOrder forwards the order to the controller and the overlay.
func (p *Panel) SetModulationOrder(n int) error {
	if err := p.ctrl.SetModulationOrder(n); err != nil {
		return err
	}
	p.renderer.SetMode(n)
	return nil
}

// SetMode selects modulation by its label.
func (p *Panel) SetMode(label string) error {
	m, ok := ModeByLabel(label)
	if !ok {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidControl, label)
	}
	return p.SetModulationOrder(m.Order)
}

// SetSymbolRate forwards symbol rate.
func (p *Panel) SetSymbolRate(rate float64) error {
	return p.ctrl.SetSymbolRate(rate)
}

// SetCarrierGain forwards carrier loop gain.
func (p *Panel) SetCarrierGain(alpha float64) error {
	return p.ctrl.SetCarrierGain(alpha)
}

// SetTimingGain forwards timing loop gain.
func (p *Panel) SetTimingGain(alpha float64) error {
	return p.ctrl.SetTimingGain(alpha)
}

// SetRollOff forwards roll-off.
func (p *Panel) SetRollOff(alpha float64) error {
	return p.ctrl.SetRollOff(alpha)
}

// SetInputRate forwards input rate.
func (p *Panel) SetInputRate(rate float64) error {
	return p.ctrl.SetInputRate(rate)
}

// Record attaches recording sink, empty path detaches it.
func (p *Panel) Record(path string) error {
	if path == "" {
		return p.ctrl.DetachRecordingSink()
	}
	return p.ctrl.AttachRecordingSink(path)
}

// Stream attaches network sink to host:port, empty address detaches it.
func (p *Panel) Stream(addr string) error {
	if addr == "" {
		return p.ctrl.DetachNetworkSink()
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidControl, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: invalid port %q", ErrInvalidControl, port)
	}
	return p.ctrl.AttachNetworkSink(host, n)
}

// Apply applies control message.
func (p *Panel) Apply(c Control) error {
	switch c.Param {
	case ParamMode, ParamRecord, ParamNetwork:
		s, ok := c.Value.(string)
		if !ok {
			return fmt.Errorf("%w: %v expects string, got %T", ErrInvalidControl, c.Param, c.Value)
		}
		switch c.Param {
		case ParamMode:
			return p.SetMode(s)
		case ParamRecord:
			return p.Record(s)
		}
		return p.Stream(s)
	}

	v, ok := c.Value.(float64)
	if !ok {
		return fmt.Errorf("%w: %v expects number, got %T", ErrInvalidControl, c.Param, c.Value)
	}
	switch c.Param {
	case ParamModulationOrder:
		if v != math.Trunc(v) {
			return fmt.Errorf("%w: %v expects integer, got %v", ErrInvalidControl, c.Param, v)
		}
		return p.SetModulationOrder(int(v))
	case ParamSymbolRate:
		return p.SetSymbolRate(v)
	case ParamCarrierGain:
		return p.SetCarrierGain(v)
	case ParamTimingGain:
		return p.SetTimingGain(v)
	case ParamRollOff:
		return p.SetRollOff(v)
	case ParamInputRate:
		return p.SetInputRate(v)
	}
	return fmt.Errorf("%w: unknown parameter %q", ErrInvalidControl, c.Param)
}

// Refresh copies recent symbols into the renderer and publishes snapshot
// to subscribers. Slow subscribers miss snapshots.
func (p *Panel) Refresh() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.ctrl.CopyRecentSymbols(p.scratch)
	symbols := p.scratch[:n]
	p.renderer.SetSymbols(symbols)

	s := Snapshot{
		Type:    "snapshot",
		Level:   p.ctrl.SignalLevel(true),
		Order:   p.renderer.Mode(),
		Symbols: make([][2]float32, n),
	}
	for i, v := range symbols {
		s.Symbols[i] = [2]float32{real(v), imag(v)}
	}
	for ch := range p.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
	return s
}

// Subscribe returns channel of snapshots and function to cancel the
// subscription. The channel is closed on cancel.
func (p *Panel) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Run refreshes the panel at provided interval until context is done.
func (p *Panel) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.Refresh()
		}
	}
}
