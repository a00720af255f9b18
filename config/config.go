// Package config provides configuration of the pskrx receiver.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dudk/pskrx"
	"github.com/dudk/pskrx/capture"
)

// Source kinds.
const (
	Generator = "generator"
	File      = "file"
	Wav       = "wav"
)

// Capture modes.
const (
	Ring  = "ring"
	Gated = "gated"
)

// ErrInvalid is returned when configuration doesn't validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete receiver configuration.
type Config struct {
	Source      SourceConfig      `yaml:"source" mapstructure:"source"`
	Demodulator DemodulatorConfig `yaml:"demodulator" mapstructure:"demodulator"`
	Capture     CaptureConfig     `yaml:"capture" mapstructure:"capture"`
	Display     DisplayConfig     `yaml:"display" mapstructure:"display"`
	Sinks       SinksConfig       `yaml:"sinks" mapstructure:"sinks"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// SourceConfig describes where input samples come from.
type SourceConfig struct {
	Kind       string  `yaml:"kind" mapstructure:"kind"`               // generator, file or wav
	Path       string  `yaml:"path" mapstructure:"path"`               // file and wav only
	Loop       bool    `yaml:"loop" mapstructure:"loop"`               // restart file at the end
	InputRate  float64 `yaml:"input_rate" mapstructure:"input_rate"`   // Hz, wav files carry their own
	BufferSize int     `yaml:"buffer_size" mapstructure:"buffer_size"` // samples per batch
	Noise      float64 `yaml:"noise" mapstructure:"noise"`             // generator noise deviation
	Realtime   bool    `yaml:"realtime" mapstructure:"realtime"`       // limit generator to input rate
}

// DemodulatorConfig holds initial pipeline parameters.
type DemodulatorConfig struct {
	ModulationOrder int     `yaml:"modulation_order" mapstructure:"modulation_order"`
	SymbolRate      float64 `yaml:"symbol_rate" mapstructure:"symbol_rate"`
	CarrierGain     float64 `yaml:"carrier_gain" mapstructure:"carrier_gain"`
	TimingGain      float64 `yaml:"timing_gain" mapstructure:"timing_gain"`
	RollOff         float64 `yaml:"roll_off" mapstructure:"roll_off"`
}

// CaptureConfig selects capture buffer.
type CaptureConfig struct {
	Mode   string        `yaml:"mode" mapstructure:"mode"` // ring or gated
	Size   int           `yaml:"size" mapstructure:"size"`
	Period time.Duration `yaml:"period" mapstructure:"period"` // gated only
}

// DisplayConfig configures the constellation view.
type DisplayConfig struct {
	Width     int           `yaml:"width" mapstructure:"width"`
	Height    int           `yaml:"height" mapstructure:"height"`
	Scale     float64       `yaml:"scale" mapstructure:"scale"`
	DotRadius float64       `yaml:"dot_radius" mapstructure:"dot_radius"`
	Label     bool          `yaml:"label" mapstructure:"label"`
	Refresh   time.Duration `yaml:"refresh" mapstructure:"refresh"`
}

// SinksConfig configures optional sinks attached on start.
type SinksConfig struct {
	Record      string `yaml:"record" mapstructure:"record"`   // file path
	Network     string `yaml:"network" mapstructure:"network"` // host:port
	RTP         bool   `yaml:"rtp" mapstructure:"rtp"`
	PayloadType uint8  `yaml:"payload_type" mapstructure:"payload_type"`
	TTL         int    `yaml:"ttl" mapstructure:"ttl"`
}

// ServerConfig configures http server of the panel.
type ServerConfig struct {
	Listen  string `yaml:"listen" mapstructure:"listen"`
	Metrics bool   `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig configures logger.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns configuration of a demo receiver which decodes
// generated BPSK symbols.
func DefaultConfig() *Config {
	params := pskrx.DefaultParams()
	return &Config{
		Source: SourceConfig{
			Kind:       Generator,
			InputRate:  250000,
			BufferSize: 4096,
			Noise:      0.05,
			Realtime:   true,
		},
		Demodulator: DemodulatorConfig{
			ModulationOrder: params.ModulationOrder,
			SymbolRate:      62500,
			CarrierGain:     params.CarrierGain,
			TimingGain:      params.TimingGain,
			RollOff:         params.RollOff,
		},
		Capture: CaptureConfig{
			Mode:   Ring,
			Size:   pskrx.DefaultCapacity,
			Period: capture.DefaultPeriod,
		},
		Display: DisplayConfig{
			Width:     480,
			Height:    480,
			Scale:     0.8,
			DotRadius: 1,
			Label:     true,
			Refresh:   50 * time.Millisecond,
		},
		Sinks: SinksConfig{
			PayloadType: 96,
			TTL:         1,
		},
		Server: ServerConfig{
			Listen:  ":8080",
			Metrics: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads YAML configuration file on top of defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// Params returns pipeline parameters for the configured input rate.
func (c *Config) Params() pskrx.Params {
	return pskrx.Params{
		ModulationOrder: c.Demodulator.ModulationOrder,
		SymbolRate:      c.Demodulator.SymbolRate,
		CarrierGain:     c.Demodulator.CarrierGain,
		TimingGain:      c.Demodulator.TimingGain,
		RollOff:         c.Demodulator.RollOff,
		InputRate:       c.Source.InputRate,
	}
}

// NetworkAddr returns host and port of the network sink.
func (c *Config) NetworkAddr() (string, int, error) {
	host, port, err := net.SplitHostPort(c.Sinks.Network)
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", port)
	}
	return host, n, nil
}

// Validate returns error if configuration can't be used to start receiver.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Kind {
	case Generator:
	case File, Wav:
		if c.Source.Path == "" {
			errs = append(errs, fmt.Errorf("source path is required for %v source", c.Source.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}
	if c.Source.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("buffer size %d", c.Source.BufferSize))
	}
	if c.Source.Noise < 0 {
		errs = append(errs, fmt.Errorf("noise %v", c.Source.Noise))
	}
	params := c.Params()
	if c.Source.Kind == Wav {
		// wav files carry their own sample rate, it's checked on open.
		params.InputRate = params.SymbolRate
	}
	if err := params.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Capture.Mode {
	case Ring:
	case Gated:
		if c.Capture.Period <= 0 {
			errs = append(errs, fmt.Errorf("capture period %v", c.Capture.Period))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown capture mode %q", c.Capture.Mode))
	}
	if c.Capture.Size < 1 {
		errs = append(errs, fmt.Errorf("capture size %d", c.Capture.Size))
	}

	if c.Display.Width < 1 || c.Display.Height < 1 {
		errs = append(errs, fmt.Errorf("display size %dx%d", c.Display.Width, c.Display.Height))
	}
	if c.Display.Scale <= 0 {
		errs = append(errs, fmt.Errorf("display scale %v", c.Display.Scale))
	}
	if c.Display.Refresh <= 0 {
		errs = append(errs, fmt.Errorf("display refresh %v", c.Display.Refresh))
	}

	if c.Sinks.Network != "" {
		if _, _, err := c.NetworkAddr(); err != nil {
			errs = append(errs, fmt.Errorf("network sink: %w", err))
		}
	}
	if c.Sinks.PayloadType > 127 {
		errs = append(errs, fmt.Errorf("rtp payload type %d", c.Sinks.PayloadType))
	}
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server listen address is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
