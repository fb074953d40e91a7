// Package config loads the optional JSON settings file. The file is only
// ever read; flags override whatever it holds.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-harp/errs"
	"go-harp/instrument"
	"go-harp/latency"
	"go-harp/midi"
	"go-harp/sensor"
)

// VirtualPortName is used when no output port is configured
const VirtualPortName = "go-harp"

// Duration reads Go duration strings like "10ms" from JSON
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10ms\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SensorConfig describes the chip bank
type SensorConfig struct {
	Port        string `json:"port,omitempty"` // serial bridge; empty runs the simulator
	Baud        int    `json:"baud"`
	Addresses   []int  `json:"addresses"`
	PinsPerChip int    `json:"pins_per_chip"`
}

// OutputConfig describes the synth MIDI output
type OutputConfig struct {
	Port     string `json:"port,omitempty"`
	Channel  int    `json:"channel"`
	Program  int    `json:"program"`
	Velocity int    `json:"velocity"`
	Buffer   int    `json:"buffer"`
}

type TriggerConfig struct {
	Policy     string   `json:"policy"`
	Tick       Duration `json:"tick"`
	StaleAfter Duration `json:"stale_after"`
	// ChipTouch also reads the chips' own touch flags for the display
	ChipTouch bool `json:"chip_touch"`
}

type CalibrationConfig struct {
	Samples  int `json:"samples"`
	Margin   int `json:"margin"`
	MaxRange int `json:"max_range"`
}

type MusicConfig struct {
	Root    int                  `json:"root"`
	Scale   string               `json:"scale"`
	Voicing string               `json:"voicing"`
	Chords  []instrument.Binding `json:"chords"`
}

type LatencyConfig struct {
	Note   int `json:"note"`
	Window int `json:"window"`
}

// SurfaceConfig controls the optional Launchpad pad surface
type SurfaceConfig struct {
	Enabled bool `json:"enabled"`
}

// Config is the main configuration structure
type Config struct {
	Sensors     SensorConfig      `json:"sensors"`
	Output      OutputConfig      `json:"output"`
	Trigger     TriggerConfig     `json:"trigger"`
	Calibration CalibrationConfig `json:"calibration"`
	Music       MusicConfig       `json:"music"`
	Latency     LatencyConfig     `json:"latency"`
	Surface     SurfaceConfig     `json:"surface"`
	Debug       bool              `json:"debug,omitempty"`
}

// DefaultConfig returns the reference instrument: three chips, chromatic
// layout from C3, release-triggered notes on a virtual port.
func DefaultConfig() *Config {
	cal := instrument.DefaultCalibrator()
	return &Config{
		Sensors: SensorConfig{
			Baud:        sensor.DefaultBaud,
			Addresses:   []int{0x5A, 0x5B, 0x5C},
			PinsPerChip: sensor.PinsPerChip,
		},
		Output: OutputConfig{
			Program:  24,
			Velocity: instrument.DefaultVelocity,
			Buffer:   midi.DefaultBuffer,
		},
		Trigger: TriggerConfig{
			Policy:     instrument.OnRelease.String(),
			Tick:       Duration(instrument.DefaultTick),
			StaleAfter: Duration(instrument.DefaultStaleAfter),
		},
		Calibration: CalibrationConfig{
			Samples: cal.Samples,
			Margin:  cal.Margin,
		},
		Music: MusicConfig{
			Root:    48,
			Scale:   "chromatic",
			Voicing: instrument.VoicingMajor.String(),
			Chords:  append([]instrument.Binding(nil), instrument.DefaultBindings...),
		},
		Latency: LatencyConfig{
			Note:   latency.DefaultNote,
			Window: latency.DefaultWindow,
		},
		Surface: SurfaceConfig{Enabled: true},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-harp"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config at path over the defaults. An empty path means the
// default location; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fault.Wrap(err, fmsg.With("read config"))
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("parse config", fmt.Sprintf("%s is not valid config JSON", path)),
			ftag.With(errs.Config))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the instrument cannot run with
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return invalid(err)
	}
	if _, err := c.Scale(); err != nil {
		return invalid(err)
	}
	if _, err := c.Voicing(); err != nil {
		return invalid(err)
	}
	for _, b := range c.Music.Chords {
		if b.Key == "" {
			return invalid(fmt.Errorf("chord %q has no key", b.Chord))
		}
		if _, err := instrument.LookupChord(b.Chord); err != nil {
			return invalid(fmt.Errorf("key %q: %w", b.Key, err))
		}
	}
	switch {
	case len(c.Sensors.Addresses) == 0:
		return invalid(fmt.Errorf("sensors.addresses is empty"))
	case c.Sensors.PinsPerChip <= 0:
		return invalid(fmt.Errorf("sensors.pins_per_chip must be positive"))
	case c.Output.Channel < 0 || c.Output.Channel > 15:
		return invalid(fmt.Errorf("output.channel %d out of range 0-15", c.Output.Channel))
	case !isData(c.Output.Program):
		return invalid(fmt.Errorf("output.program %d out of range 0-127", c.Output.Program))
	case !isData(c.Output.Velocity):
		return invalid(fmt.Errorf("output.velocity %d out of range 0-127", c.Output.Velocity))
	case c.Trigger.Tick <= 0:
		return invalid(fmt.Errorf("trigger.tick must be positive"))
	case c.Trigger.StaleAfter <= 0:
		return invalid(fmt.Errorf("trigger.stale_after must be positive"))
	case c.Calibration.Samples <= 0:
		return invalid(fmt.Errorf("calibration.samples must be positive"))
	case !isData(c.Latency.Note):
		return invalid(fmt.Errorf("latency.note %d out of range 0-127", c.Latency.Note))
	}
	for _, a := range c.Sensors.Addresses {
		if a < 0 || a > 0x7F {
			return invalid(fmt.Errorf("sensor address %#x is not a 7-bit I2C address", a))
		}
	}
	return nil
}

func (c *Config) Policy() (instrument.Policy, error) {
	return instrument.ParsePolicy(c.Trigger.Policy)
}

func (c *Config) Scale() (instrument.Scale, error) {
	return instrument.LookupScale(c.Music.Scale)
}

func (c *Config) Voicing() (instrument.Voicing, error) {
	return instrument.ParseVoicing(c.Music.Voicing)
}

// Calibrator builds the calibrator for this config, sampling once per tick
func (c *Config) Calibrator() instrument.Calibrator {
	return instrument.Calibrator{
		Samples:  c.Calibration.Samples,
		Interval: c.Trigger.Tick.Std(),
		Margin:   c.Calibration.Margin,
		MaxRange: c.Calibration.MaxRange,
	}
}

// SensorCount is the total number of electrodes
func (c *Config) SensorCount() int {
	return len(c.Sensors.Addresses) * c.Sensors.PinsPerChip
}

// VirtualOutput reports whether the output is a virtual port
func (c *Config) VirtualOutput() bool {
	return c.Output.Port == ""
}

func isData(v int) bool {
	return v >= 0 && v <= 127
}

func invalid(err error) error {
	return fault.Wrap(err, fmsg.With("invalid config"), ftag.With(errs.Config))
}
