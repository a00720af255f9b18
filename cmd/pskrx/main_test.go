package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "config", "version"})
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.Nil(t, err)
	assert.Equal(t, "pskrx dev\n", out)
}

func TestConfig(t *testing.T) {
	out, err := execute(t, "config")
	require.Nil(t, err)
	assert.Contains(t, out, "modulation_order: 2")
	assert.Contains(t, out, "kind: generator")

	t.Setenv("PSKRX_DEMODULATOR_MODULATION_ORDER", "8")
	out, err = execute(t, "config")
	require.Nil(t, err)
	assert.Contains(t, out, "modulation_order: 8")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pskrx.yaml")
	require.Nil(t, os.WriteFile(path, []byte("capture:\n  mode: gated\n  size: 256\n"), 0o644))

	out, err := execute(t, "config", "--config", path)
	require.Nil(t, err)
	assert.Contains(t, out, "mode: gated")
	assert.Contains(t, out, "size: 256")
	// defaults survive partial config file
	assert.Contains(t, out, "metrics: true")

	_, err = execute(t, "config", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)

	require.Nil(t, os.WriteFile(path, []byte("capture:\n  mode: fifo\n"), 0o644))
	_, err = execute(t, "config", "--config", path)
	assert.NotNil(t, err)
}

func TestRun(t *testing.T) {
	record := filepath.Join(t.TempDir(), "symbols.cf32")
	out, err := execute(t, "run",
		"--listen", "127.0.0.1:0",
		"--duration", "300ms",
		"--order", "4",
		"--record", record,
		"--log-level", "error",
	)
	require.Nil(t, err)
	assert.Contains(t, out, "listening on 127.0.0.1:")

	info, err := os.Stat(record)
	require.Nil(t, err)
	assert.True(t, info.Size() > 0)
}

func TestRunFile(t *testing.T) {
	// input file ends before duration, panel keeps serving.
	input := filepath.Join(t.TempDir(), "input.cf32")
	require.Nil(t, os.WriteFile(input, make([]byte, 8*1024), 0o644))
	_, err := execute(t, "run",
		"--listen", "127.0.0.1:0",
		"--duration", "100ms",
		"--source", "file",
		"--input", input,
		"--log-level", "error",
	)
	assert.Nil(t, err)

	_, err = execute(t, "run",
		"--listen", "127.0.0.1:0",
		"--source", "file",
		"--input", filepath.Join(t.TempDir(), "missing.cf32"),
	)
	assert.NotNil(t, err)

	_, err = execute(t, "run", "--source", "file")
	assert.NotNil(t, err)
}
