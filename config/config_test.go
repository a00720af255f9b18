package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/pskrx/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, cfg.Validate())
	params := cfg.Params()
	assert.Equal(t, 4.0, params.SamplesPerSymbol())
	assert.Equal(t, 2, params.ModulationOrder)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		edit   func(*config.Config)
		failed bool
	}{
		{name: "default", edit: func(*config.Config) {}},
		{name: "file without path", edit: func(c *config.Config) { c.Source.Kind = config.File }, failed: true},
		{name: "file", edit: func(c *config.Config) {
			c.Source.Kind = config.File
			c.Source.Path = "in.cf32"
		}},
		{name: "wav ignores input rate", edit: func(c *config.Config) {
			c.Source.Kind = config.Wav
			c.Source.Path = "in.wav"
			c.Source.InputRate = 0
		}},
		{name: "unknown source", edit: func(c *config.Config) { c.Source.Kind = "sdr" }, failed: true},
		{name: "buffer size", edit: func(c *config.Config) { c.Source.BufferSize = 0 }, failed: true},
		{name: "order", edit: func(c *config.Config) { c.Demodulator.ModulationOrder = 16 }, failed: true},
		{name: "symbol rate above input rate", edit: func(c *config.Config) { c.Demodulator.SymbolRate = 293883 }, failed: true},
		{name: "roll-off", edit: func(c *config.Config) { c.Demodulator.RollOff = 1.5 }, failed: true},
		{name: "gated", edit: func(c *config.Config) { c.Capture.Mode = config.Gated }},
		{name: "gated period", edit: func(c *config.Config) {
			c.Capture.Mode = config.Gated
			c.Capture.Period = 0
		}, failed: true},
		{name: "capture mode", edit: func(c *config.Config) { c.Capture.Mode = "fifo" }, failed: true},
		{name: "display", edit: func(c *config.Config) { c.Display.Width = 0 }, failed: true},
		{name: "refresh", edit: func(c *config.Config) { c.Display.Refresh = 0 }, failed: true},
		{name: "network", edit: func(c *config.Config) { c.Sinks.Network = "239.1.2.3:5004" }},
		{name: "network port", edit: func(c *config.Config) { c.Sinks.Network = "239.1.2.3:port" }, failed: true},
		{name: "payload type", edit: func(c *config.Config) { c.Sinks.PayloadType = 200 }, failed: true},
		{name: "listen", edit: func(c *config.Config) { c.Server.Listen = "" }, failed: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			test.edit(cfg)
			err := cfg.Validate()
			if test.failed {
				assert.True(t, errors.Is(err, config.ErrInvalid), "%v", err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pskrx.yaml")
	data := []byte(`
demodulator:
  modulation_order: 8
capture:
  mode: gated
  period: 40ms
sinks:
  network: 127.0.0.1:5004
  rtp: true
`)
	require.Nil(t, os.WriteFile(path, data, 0o644))

	cfg, err := config.Load(path)
	require.Nil(t, err)
	assert.Equal(t, 8, cfg.Demodulator.ModulationOrder)
	assert.Equal(t, config.Gated, cfg.Capture.Mode)
	assert.Equal(t, 40*time.Millisecond, cfg.Capture.Period)
	assert.True(t, cfg.Sinks.RTP)
	host, port, err := cfg.NetworkAddr()
	require.Nil(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 5004, port)
	// untouched values keep defaults
	assert.Equal(t, config.DefaultConfig().Display, cfg.Display)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)

	require.Nil(t, os.WriteFile(path, []byte("capture: [1"), 0o644))
	_, err = config.Load(path)
	assert.NotNil(t, err)

	require.Nil(t, os.WriteFile(path, []byte("capture:\n  mode: fifo\n"), 0o644))
	_, err = config.Load(path)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestWrite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sinks.Record = "symbols.zst"
	var buf bytes.Buffer
	require.Nil(t, cfg.Write(&buf))
	assert.Contains(t, buf.String(), "modulation_order: 2")
	assert.Contains(t, buf.String(), "record: symbols.zst")

	path := filepath.Join(t.TempDir(), "pskrx.yaml")
	require.Nil(t, os.WriteFile(path, buf.Bytes(), 0o644))
	loaded, err := config.Load(path)
	require.Nil(t, err)
	assert.Equal(t, cfg, loaded)
}
