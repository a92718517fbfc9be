package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
definitions: definitions/common.xml
endpoints:
  - name: autopilot
    kind:
      udp:
        address: "0.0.0.0:14550"
  - name: gcs
    kind:
      tcp:
        address: "0.0.0.0:5760"
    target_ttl: 5m
`

func TestLoad(t *testing.T) {
	settings, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if settings.Definitions != "definitions/common.xml" {
		t.Errorf("definitions = %q", settings.Definitions)
	}
	if settings.Log.Level != "info" || settings.Log.Format != "text" {
		t.Errorf("log defaults not applied: %+v", settings.Log)
	}
	if settings.Router.ChannelSize != defaultChannelSize {
		t.Errorf("channel size = %d, want %d", settings.Router.ChannelSize, defaultChannelSize)
	}
	if len(settings.Endpoints) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(settings.Endpoints))
	}
	first := settings.Endpoints[0]
	if first.Name != "autopilot" || first.Kind.UDP == nil || first.Kind.UDP.Address != "0.0.0.0:14550" {
		t.Errorf("first endpoint = %+v", first)
	}
	second := settings.Endpoints[1]
	if second.Kind.TCP == nil || time.Duration(second.TargetTTL) != 5*time.Minute {
		t.Errorf("second endpoint = %+v", second)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"DEFINITIONS", "other.xml")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")
	t.Setenv(EnvPrefix+"ROUTER_CHANNEL_SIZE", "128")

	settings, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if settings.Definitions != "other.xml" {
		t.Errorf("definitions = %q, want env override", settings.Definitions)
	}
	if settings.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", settings.Log.Level)
	}
	if settings.Router.ChannelSize != 128 {
		t.Errorf("channel size = %d, want 128", settings.Router.ChannelSize)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing definitions",
			content: `
endpoints:
  - name: a
    kind:
      udp: {address: "0.0.0.0:1"}
`,
		},
		{
			name:    "no endpoints",
			content: "definitions: d.xml\nendpoints: []\n",
		},
		{
			name: "endpoint without a name",
			content: `
definitions: d.xml
endpoints:
  - kind:
      udp: {address: "0.0.0.0:1"}
`,
		},
		{
			name: "duplicate endpoint names",
			content: `
definitions: d.xml
endpoints:
  - name: a
    kind:
      udp: {address: "0.0.0.0:1"}
  - name: a
    kind:
      udp: {address: "0.0.0.0:2"}
`,
		},
		{
			name: "endpoint with no kind",
			content: `
definitions: d.xml
endpoints:
  - name: a
    kind: {}
`,
		},
		{
			name: "endpoint with two kinds",
			content: `
definitions: d.xml
endpoints:
  - name: a
    kind:
      udp: {address: "0.0.0.0:1"}
      tcp: {address: "0.0.0.0:2"}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() should have failed")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}
