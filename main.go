package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rjboer/vsdr/device"
	"github.com/rjboer/vsdr/internal/logging"
	"github.com/rjboer/vsdr/internal/registry"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("vsdr", flag.ContinueOnError)
	fs.SetOutput(out)
	name := fs.String("device", "", "device name (default: VSDR_DEVICE env or HackRF)")
	capture := fs.Duration("capture", 2*time.Second, "capture window before computing the spectrum")
	level := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		*name = getenv("VSDR_DEVICE")
	}
	if *name == "" {
		*name = "HackRF"
	}

	log := logging.New("vsdr", *level, "console")
	d, err := device.New(device.Config{
		Name:       *name,
		Mode:       device.ModeSpectrum,
		Bandwidth:  1e6,
		Frequency:  433.92e6,
		Gain:       20,
		SampleRate: 2e6,
		Registry:   registry.Default(log),
		Log:        log,
	})
	if err != nil {
		return err
	}
	if d.Backend() == device.BackendNone {
		return fmt.Errorf("device %q is not registered", *name)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("start %s: %w", *name, err)
	}
	time.Sleep(*capture)

	x, y, err := d.Spectrum()
	stopErr := d.Stop("demo finished")
	if err != nil {
		return err
	}
	if stopErr != nil {
		return stopErr
	}
	if msg, _ := d.ReadErrors(); msg != "" {
		return fmt.Errorf("device reported errors:\n%s", msg)
	}

	peak := 0
	for i := range y {
		if y[i] > y[peak] {
			peak = i
		}
	}
	fmt.Fprintf(out, "%s (%s backend): %d bins", d.Name(), d.Backend(), len(x))
	if len(x) > 0 {
		fmt.Fprintf(out, ", peak offset %+.0f Hz", x[peak])
	}
	fmt.Fprintln(out)
	return nil
}
