package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
capture:
  sample_rate: 44100
  chunk_size: 1024
light_types:
  par:
    channels: 3
    functions:
      red: {channel: 1}
      green: {channel: 2}
      blue: {channel: 3}
dmx_devices:
  - name: universe1
    kind: sink
lights:
  - name: par1
    type: par
    device: universe1
    start_channel: 1
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Capture.FPS)
	assert.Equal(t, 24, cfg.Processors.Smoothing.FFTBins)
	assert.Equal(t, "partylights", cfg.Network.Broker.ServiceName)
}

func TestLoadRejectsUnknownLightType(t *testing.T) {
	body := minimalConfig + "  - name: par2\n    type: bogus\n    device: universe1\n    start_channel: 4\n"
	if _, err := Load(writeTestConfig(t, body)); err == nil {
		t.Error("expected an error for a light referencing an unknown type")
	}
}

func TestLoadRejectsDuplicateLightNames(t *testing.T) {
	body := minimalConfig + "  - name: par1\n    type: par\n    device: universe1\n    start_channel: 4\n"
	if _, err := Load(writeTestConfig(t, body)); err == nil {
		t.Error("expected an error for a duplicate light name")
	}
}

func TestLoadRejectsUDPDeviceWithoutAddress(t *testing.T) {
	body := `
capture:
  sample_rate: 44100
  chunk_size: 1024
light_types:
  par:
    channels: 1
    functions:
      dimmer: {channel: 1}
dmx_devices:
  - name: universe1
    kind: udp
lights:
  - name: par1
    type: par
    device: universe1
    start_channel: 1
`
	if _, err := Load(writeTestConfig(t, body)); err == nil {
		t.Error("expected an error for a udp device missing an address")
	}
}

func TestLoadRejectsMappingForUnknownLight(t *testing.T) {
	body := minimalConfig + "\nmapping:\n  ghost:\n    program: []\n"
	if _, err := Load(writeTestConfig(t, body)); err == nil {
		t.Error("expected an error for a mapping entry referencing an unknown light")
	}
}

func TestApplyEnvOverridesCaptureDevice(t *testing.T) {
	t.Setenv("PARTYLIGHTS_CAPTURE_DEVICE", "hw:1,0")
	cfg, err := Load(writeTestConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "hw:1,0", cfg.Capture.Device)
}
