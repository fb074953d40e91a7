package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"go-harp/config"
	"go-harp/debug"
	"go-harp/instrument"
	"go-harp/theme"
)

var version = "dev"

type flags struct {
	config  string
	output  string
	palette string
	debug   bool

	port   string
	sim    bool
	policy string

	note int
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "harp",
		Short: "Capacitive touch MIDI instrument",
		Long: `harp reads a bank of MPR121 touch electrodes through a serial bridge,
calibrates them, and plays the notes of the selected chord over MIDI.

Without a sensor port it runs a simulated bank (digit keys touch sensors).`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, &f)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.config, "config", "", "config file (default ~/.config/go-harp/config.json)")
	root.PersistentFlags().StringVarP(&f.output, "output", "o", "", "MIDI output port name (default: virtual port \"go-harp\")")
	root.PersistentFlags().StringVar(&f.palette, "palette", "", "GIMP .gpl palette for the UI and Launchpad")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "write "+debug.DefaultPath())
	root.Flags().StringVarP(&f.port, "port", "p", "", "serial port of the sensor bridge")
	root.Flags().BoolVar(&f.sim, "sim", false, "use simulated sensors even if a port is configured")
	root.Flags().StringVar(&f.policy, "policy", "", "trigger policy: on_press or on_release")

	latency := &cobra.Command{
		Use:   "latency",
		Short: "Measure how long the output takes to become audible",
		Long: `latency plays a probe note over and over. Press enter as soon as you hear
it; the time from note-on to your key press is averaged over recent tries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLatency(cmd, &f)
		},
	}
	latency.Flags().IntVar(&f.note, "note", 0, "probe note number (default from config)")
	root.AddCommand(latency)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies any flags that were set
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.Output.Port = f.output
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("port") {
		cfg.Sensors.Port = f.port
	}
	if f.sim {
		cfg.Sensors.Port = ""
	}
	if changed("policy") {
		cfg.Trigger.Policy = f.policy
	}
	if changed("note") {
		cfg.Latency.Note = f.note
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Debug {
		if err := debug.Enable(debug.DefaultPath()); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func loadTheme(f *flags) (*theme.Theme, error) {
	if f.palette == "" {
		return theme.New(nil), nil
	}
	p, err := theme.LoadGPL(f.palette)
	if err != nil {
		return nil, err
	}
	return theme.New(p), nil
}

func velocity(cfg *config.Config) uint8 {
	if cfg.Output.Velocity <= 0 {
		return instrument.DefaultVelocity
	}
	return uint8(cfg.Output.Velocity)
}
