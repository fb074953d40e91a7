// Command harptest checks the hardware around the instrument one piece at a
// time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"go-harp/midi"
	"go-harp/sensor"
)

func main() {
	root := &cobra.Command{
		Use:          "harptest",
		Short:        "Hardware test scripts for go-harp",
		SilenceUsage: true,
	}
	root.AddCommand(listCmd(), sensorsCmd(), noteCmd())

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List MIDI outputs and serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer midi.CloseDriver()

			fmt.Println("=== MIDI Output Ports ===")
			fmt.Println("(waiting up to 3 seconds...)")
			outs, err := midi.ListOutputs()
			if err != nil {
				fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
				fmt.Println("Fix: sudo killall coreaudiod midiserver")
			}
			for i, name := range outs {
				fmt.Printf("  %d: %s\n", i, name)
			}

			fmt.Println("\n=== Serial Ports ===")
			ports, err := sensor.ListSerialPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("  (none)")
			}
			for i, p := range ports {
				fmt.Printf("  %d: %s\n", i, p)
			}
			return nil
		},
	}
}

func sensorsCmd() *cobra.Command {
	var (
		baud     int
		addrs    []int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sensors PORT",
		Short: "Stream filtered electrode data from the serial bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, err := sensor.OpenSerial(args[0], baud)
			if err != nil {
				return err
			}
			defer bus.Close()

			chips := make([]sensor.Chip, len(addrs))
			for i, a := range addrs {
				chips[i] = bus.Chip(byte(a), sensor.PinsPerChip)
			}
			arr := sensor.NewArray(chips...)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("Reading %d chips every %s. Ctrl+C to exit.\n", len(chips), interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}

				values, err := arr.ReadFiltered()
				if err != nil {
					return err
				}
				touched, err := arr.ReadTouched()
				if err != nil {
					return err
				}
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), formatReadings(values, touched))
			}
		},
	}
	cmd.Flags().IntVar(&baud, "baud", sensor.DefaultBaud, "serial baud rate")
	cmd.Flags().IntSliceVar(&addrs, "addr", []int{0x5A, 0x5B, 0x5C}, "chip I2C addresses")
	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "time between reads")
	return cmd
}

// formatReadings prints values per chip; a trailing * marks pins the chip
// itself reports as touched. touched is in reversed per-chip order.
func formatReadings(values []int, touched []bool) string {
	var out strings.Builder
	for i, v := range values {
		chip, pin := i/sensor.PinsPerChip, i%sensor.PinsPerChip
		if i > 0 {
			out.WriteString(" ")
			if pin == 0 {
				out.WriteString("| ")
			}
		}
		fmt.Fprintf(&out, "%4d", v)
		rev := chip*sensor.PinsPerChip + sensor.PinsPerChip - 1 - pin
		if rev < len(touched) && touched[rev] {
			out.WriteString("*")
		}
	}
	return out.String()
}

func noteCmd() *cobra.Command {
	var (
		note     int
		channel  int
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "note [PORT]",
		Short: "Play one note on an output (default: virtual port)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer midi.CloseDriver()

			port := ""
			if len(args) == 1 {
				port = args[0]
			}
			out, err := midi.OpenOutput(port, "go-harp-test", uint8(channel), 0)
			if err != nil {
				return err
			}
			defer out.Close()

			fmt.Printf("Playing %s on %s for %s\n", midi.NoteName(note), out.Name(), duration)
			if err := out.NoteOn(uint8(note), 127); err != nil {
				return err
			}
			time.Sleep(duration)
			if err := out.NoteOff(uint8(note)); err != nil {
				return err
			}
			fmt.Println("Done!")
			return nil
		},
	}
	cmd.Flags().IntVar(&note, "note", 60, "note number")
	cmd.Flags().IntVar(&channel, "channel", 0, "MIDI channel 0-15")
	cmd.Flags().DurationVar(&duration, "duration", time.Second, "how long to hold the note")
	return cmd
}
