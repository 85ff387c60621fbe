// Command vsdr-spectrum opens a device in spectrum mode and periodically
// prints the strongest bins. Point it at an rtl_tcp daemon with -device
// rtl-tcp -ip <host>.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/rjboer/vsdr/device"
	"github.com/rjboer/vsdr/internal/logging"
	"github.com/rjboer/vsdr/internal/native"
	"github.com/rjboer/vsdr/internal/registry"
)

func main() {
	name := flag.String("device", "HackRF", "device name")
	ip := flag.String("ip", "", "device address (rtl_tcp host)")
	port := flag.Int("port", 0, "device port (rtl_tcp control port)")
	freq := flag.Float64("freq", 433.92e6, "center frequency in Hz")
	rate := flag.Float64("rate", 2e6, "sample rate in Hz")
	gain := flag.Float64("gain", 20, "gain in dB")
	interval := flag.Duration("interval", time.Second, "print interval")
	count := flag.Int("count", 5, "number of spectrum frames to print")
	level := flag.String("log-level", "warn", "log level")
	regPath := flag.String("registry", "", "path to a registry YAML file")
	sshHost := flag.String("ssh-host", "", "launch rtl_tcp on this host over SSH first")
	sshUser := flag.String("ssh-user", "root", "SSH user for -ssh-host")
	sshPassword := flag.String("ssh-password", "", "SSH password for -ssh-host")
	sshKey := flag.String("ssh-key", "", "SSH private key file for -ssh-host")
	flag.Parse()

	lg := logging.New("vsdr-spectrum", *level, "console")

	reg := registry.Default(lg)
	if *regPath != "" {
		cfg, err := registry.Load(*regPath)
		if err != nil {
			log.Fatal(err)
		}
		reg = cfg.Apply(lg)
	}

	if *sshHost != "" {
		launcher, err := native.NewRemoteLauncher(native.RemoteConfig{
			Host:       *sshHost,
			User:       *sshUser,
			Password:   *sshPassword,
			KeyPath:    *sshKey,
			ListenPort: *port,
		})
		if err != nil {
			log.Fatal(err)
		}
		ctx := context.Background()
		if err := launcher.Start(ctx); err != nil {
			log.Fatal(err)
		}
		defer func() {
			launcher.Stop(ctx)
			launcher.Close()
		}()
		if *ip == "" {
			*ip = *sshHost
		}
	}

	d, err := device.New(device.Config{
		Name:       *name,
		Mode:       device.ModeSpectrum,
		Frequency:  *freq,
		Gain:       *gain,
		SampleRate: *rate,
		DeviceIP:   *ip,
		Port:       *port,
		Registry:   reg,
		Log:        lg,
	})
	if err != nil {
		log.Fatal(err)
	}
	if d.Backend() == device.BackendNone {
		log.Fatalf("device %q is not registered", *name)
	}

	if err := d.Start(); err != nil {
		log.Fatal(err)
	}
	defer d.Stop("probe finished")

	for i := 0; i < *count; i++ {
		time.Sleep(*interval)
		x, y, err := d.Spectrum()
		if err != nil {
			log.Fatal(err)
		}
		if msg, _ := d.ReadErrors(); msg != "" {
			log.Fatalf("device errors:\n%s", msg)
		}
		printPeaks(x, y, *freq, 3)
	}
}

// printPeaks lists the n strongest bins. The axis carries baseband offsets;
// the absolute frequency is reconstructed in float64 for display.
func printPeaks(x, y []float32, center float64, n int) {
	if len(x) == 0 {
		fmt.Println("no data yet")
		return
	}
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return y[idx[a]] > y[idx[b]] })
	if n > len(idx) {
		n = len(idx)
	}
	for i := 0; i < n; i++ {
		fmt.Printf("%12.0f Hz  %8.2f\n", center+float64(x[idx[i]]), y[idx[i]])
	}
	fmt.Println("----")
}
