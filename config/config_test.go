package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-harp/errs"
	"go-harp/instrument"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SensorCount() != 36 || cfg.Music.Root != 48 || cfg.Output.Program != 24 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if p, _ := cfg.Policy(); p != instrument.OnRelease {
		t.Fatalf("default policy = %v", p)
	}
	if cfg.Trigger.StaleAfter.Std() != 4*time.Second || !cfg.VirtualOutput() {
		t.Fatal("unexpected trigger or output defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"trigger": {"policy": "on_press", "tick": "5ms"},
		"output": {"port": "FluidSynth", "channel": 3},
		"calibration": {"max_range": 30}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := cfg.Policy(); p != instrument.OnPress {
		t.Fatalf("policy = %v", p)
	}
	if cfg.Trigger.Tick.Std() != 5*time.Millisecond {
		t.Fatalf("tick = %s", cfg.Trigger.Tick.Std())
	}
	if cfg.Trigger.StaleAfter.Std() != 4*time.Second {
		t.Fatal("stale_after lost its default")
	}
	if cfg.Output.Port != "FluidSynth" || cfg.Output.Channel != 3 || cfg.Output.Velocity != 127 {
		t.Fatalf("output = %+v", cfg.Output)
	}
	c := cfg.Calibrator()
	if c.Samples != 50 || c.MaxRange != 30 || c.Interval != 5*time.Millisecond {
		t.Fatalf("calibrator = %+v", c)
	}
}

func TestCustomChordTable(t *testing.T) {
	path := writeConfig(t, `{"music": {"chords": [{"key": "z", "root": 40, "chord": "minor"}]}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Music.Chords) != 1 || cfg.Music.Chords[0].Label() != "Em" {
		t.Fatalf("chords = %+v", cfg.Music.Chords)
	}
}

func TestInvalidConfigIsTagged(t *testing.T) {
	tests := map[string]string{
		"policy":   `{"trigger": {"policy": "on_hold"}}`,
		"scale":    `{"music": {"scale": "lydian"}}`,
		"voicing":  `{"music": {"voicing": "spread"}}`,
		"chord":    `{"music": {"chords": [{"key": "a", "root": 30, "chord": "dim"}]}}`,
		"channel":  `{"output": {"channel": 16}}`,
		"tick":     `{"trigger": {"tick": "0s"}}`,
		"address":  `{"sensors": {"addresses": [200]}}`,
		"empty":    `{"sensors": {"addresses": []}}`,
		"duration": `{"trigger": {"tick": 10}}`,
		"json":     `{"trigger": `,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errs.Is(err, errs.Config) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}
