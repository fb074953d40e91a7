package main

import (
	"os/signal"
	"syscall"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-harp/config"
	"go-harp/debug"
	"go-harp/instrument"
	"go-harp/midi"
	"go-harp/sensor"
	"go-harp/surface"
	"go-harp/tui"
)

func runPlay(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	defer debug.Disable()

	th, err := loadTheme(f)
	if err != nil {
		return err
	}

	sensors, closeSensors, err := openSensors(cfg)
	if err != nil {
		return err
	}
	defer closeSensors()

	out, err := openOutput(cfg)
	if err != nil {
		return err
	}
	defer midi.CloseDriver()
	defer out.Close()

	policy, _ := cfg.Policy()
	scale, _ := cfg.Scale()
	voicing, _ := cfg.Voicing()

	mapper := instrument.NewMapper(sensors.Len(), scale, cfg.Music.Root, voicing)
	sched := instrument.NewScheduler(out, policy, velocity(cfg), cfg.Trigger.StaleAfter.Std())
	engine := instrument.NewEngine(sensors, mapper, sched, instrument.Options{
		Tick:       cfg.Trigger.Tick.Std(),
		Calibrator: cfg.Calibrator(),
		ChipTouch:  cfg.Trigger.ChipTouch,
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	surf := surface.New(mapper, cfg.Music.Chords, th)
	var devices *midi.DeviceManager
	if cfg.Surface.Enabled {
		devices = midi.NewDeviceManager(out.Name())
		go devices.Run(ctx)
		go surf.Run(ctx)
	}

	var runErr error
	engineDone := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		runErr = engine.Run(ctx)
		engineDone <- runErr
		close(stopped)
	}()

	debug.Log("main", "play: %d sensors, policy=%s, output=%q", sensors.Len(), policy, out.Name())

	m := tui.NewPlayModel(tui.PlayOptions{
		Engine:     engine,
		EngineDone: engineDone,
		Mapper:     mapper,
		Surface:    surf,
		Devices:    devices,
		Sensors:    sensors,
		Bindings:   cfg.Music.Chords,
		Theme:      th,
		PerChip:    cfg.Sensors.PinsPerChip,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, uiErr := p.Run()

	// the engine releases every sounding note before it returns
	cancel()
	<-stopped

	if uiErr != nil {
		return fault.Wrap(uiErr, fmsg.With("terminal ui"))
	}
	return runErr
}

// openSensors opens the serial bridge, or a simulated bank when no port is
// configured.
func openSensors(cfg *config.Config) (*sensor.Array, func() error, error) {
	pins := cfg.Sensors.PinsPerChip
	chips := make([]sensor.Chip, len(cfg.Sensors.Addresses))

	if cfg.Sensors.Port == "" {
		for i := range chips {
			chips[i] = sensor.NewSim(pins, sensor.SimBaseline)
		}
		debug.Log("main", "using %d simulated chips", len(chips))
		return sensor.NewArray(chips...), func() error { return nil }, nil
	}

	bus, err := sensor.OpenSerial(cfg.Sensors.Port, cfg.Sensors.Baud)
	if err != nil {
		return nil, nil, err
	}
	for i, addr := range cfg.Sensors.Addresses {
		chips[i] = bus.Chip(byte(addr), pins)
	}
	return sensor.NewArray(chips...), bus.Close, nil
}

// openOutput opens the synth port, silences it and selects the instrument
func openOutput(cfg *config.Config) (*midi.PortOutput, error) {
	out, err := midi.OpenOutput(cfg.Output.Port, config.VirtualPortName, uint8(cfg.Output.Channel), cfg.Output.Buffer)
	if err != nil {
		return nil, err
	}
	if err := out.Panic(); err != nil {
		out.Close()
		return nil, fault.Wrap(err, fmsg.With("panic output"))
	}
	if err := out.ProgramChange(uint8(cfg.Output.Program)); err != nil {
		out.Close()
		return nil, fault.Wrap(err, fmsg.With("program change"))
	}
	return out, nil
}
