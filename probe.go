package main

import (
	"os/signal"
	"syscall"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-harp/debug"
	"go-harp/latency"
	"go-harp/midi"
	"go-harp/tui"
)

func runLatency(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	defer debug.Disable()

	th, err := loadTheme(f)
	if err != nil {
		return err
	}

	out, err := openOutput(cfg)
	if err != nil {
		return err
	}
	defer midi.CloseDriver()
	defer out.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	probe := latency.NewProbe(out, uint8(cfg.Latency.Note), velocity(cfg), cfg.Latency.Window)
	ack := make(chan struct{})
	samples := make(chan latency.Sample, 1)
	report := func(s latency.Sample) {
		select {
		case samples <- s:
		case <-ctx.Done():
		}
	}

	var runErr error
	probeDone := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		runErr = probe.Run(ctx, ack, report)
		probeDone <- runErr
		close(stopped)
	}()

	m := tui.NewLatencyModel(ack, samples, probeDone, cfg.Latency.Note, cfg.Latency.Window, th)
	_, uiErr := tea.NewProgram(m).Run()

	cancel()
	<-stopped

	if h := probe.History(); h.Len() > 0 {
		cmd.Printf("%d samples, average of last %d: %.3fs\n",
			h.Len(), min(h.Len(), cfg.Latency.Window), h.Average().Seconds())
	}
	if uiErr != nil {
		return fault.Wrap(uiErr, fmsg.With("terminal ui"))
	}
	return runErr
}
