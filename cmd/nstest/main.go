//go:build unix

// Package main is the nstest serial driver process.
//
// nstest hosts one buffered character device per configured device name
// and serves them on a unix socket. Bytes reach a device from a named pipe
// (fifo), from a pattern generator, or from clients writing to it; clients
// read them back through the socket (see cmd/sercat).
//
// Usage:
//
//	go run ./cmd/nstest [options]
//
// Options:
//
//	-config path        YAML configuration file
//	-socket path        Unix socket to serve on (overrides config)
//	-v                  Enable verbose (debug) logging
//	-json               Use JSON log format
//	-cpu-profile path   Write a CPU profile (requires -tags profile)
//	-contention-profile dir
//	                    Write block.prof and mutex.prof on exit (requires -tags profile)
//
// On SIGINT or SIGTERM every device is removed, so blocked readers see
// end-of-device, and the process exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ardnew/softchar/config"
	"github.com/ardnew/softchar/ddf"
	"github.com/ardnew/softchar/driver"
	"github.com/ardnew/softchar/feed"
	"github.com/ardnew/softchar/pkg"
	"github.com/ardnew/softchar/pkg/prof"
)

// component identifies this executable for structured logging.
const component = pkg.ComponentDriver

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	socket := flag.String("socket", "", "unix socket to serve on (overrides config)")
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	cpuProfile := flag.String("cpu-profile", "", "write a CPU profile to this file")
	contentionProfile := flag.String("contention-profile", "", "write block and mutex profiles into this directory")
	flag.Parse()

	fmt.Printf("%s: serial port driver\n", driver.Name)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			pkg.LogError(component, "failed to load configuration", "error", err)
			os.Exit(1)
		}
	}
	if *socket != "" {
		cfg.Socket = *socket
	}

	format := cfg.LogFormat()
	if *jsonLog {
		format = pkg.LogFormatJSON
	}
	pkg.InitLog(driver.Name, format)
	pkg.SetLogLevel(cfg.LogLevel())
	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}

	stopProfiling, err := startProfiling(*cpuProfile, *contentionProfile)
	if err != nil {
		pkg.LogError(component, "failed to start profiling", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, nil)
	stop()
	if perr := stopProfiling(); perr != nil {
		pkg.LogError(component, "failed to write profiles", "error", perr)
	}

	if err != nil {
		pkg.LogError(component, "driver failed", "error", err)
		os.Exit(1)
	}
}

// startProfiling starts the requested profiles. The returned function
// stops the CPU profile and writes the contention profiles into
// contentionDir. Both are no-ops unless built with the "profile" tag.
func startProfiling(cpuPath, contentionDir string) (func() error, error) {
	if contentionDir != "" {
		prof.EnableContention()
	}
	if cpuPath != "" {
		if err := prof.StartCPU(cpuPath); err != nil {
			return nil, err
		}
	}
	return func() error {
		prof.StopCPU()
		if contentionDir == "" {
			return nil
		}
		return prof.WriteContention(contentionDir)
	}, nil
}

// run hosts the configured devices until ctx ends. If ready is not nil it
// is called with the listening address once clients can connect.
func run(ctx context.Context, cfg *config.Config, ready func(net.Addr)) error {
	host := ddf.NewHost(ddf.WithCategories(categories(cfg)...))
	if err := host.Register(driver.New(cfg.Driver())); err != nil {
		return err
	}
	defer host.Close()

	if err := removeStaleSocket(cfg.Socket); err != nil {
		return err
	}
	l, err := net.Listen("unix", cfg.Socket)
	if err != nil {
		return err
	}
	defer l.Close()

	producers, stopProducers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer stopProducers()

	for _, dc := range cfg.Devices {
		dev, err := host.AddDevice(ctx, dc.Name)
		if err != nil {
			return err
		}
		sink, err := driver.Feeder(dev)
		if err != nil {
			return err
		}
		if err := startProducers(producers, &wg, dc, sink); err != nil {
			return fmt.Errorf("device %s: %w", dc.Name, err)
		}
	}

	// Devices leave before connections are torn down, so a client blocked
	// in read gets end-of-device rather than a dropped connection.
	serving, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	shutdown := context.AfterFunc(ctx, func() {
		pkg.LogInfo(component, "shutting down")
		stopProducers()
		host.Close()
		stopServing()
	})
	defer shutdown()

	if ready != nil {
		ready(l.Addr())
	}
	pkg.LogInfo(component, "driver ready",
		"socket", cfg.Socket,
		"devices", len(cfg.Devices))
	return host.Serve(serving, l)
}

// categories lists every category the configuration refers to.
func categories(cfg *config.Config) []string {
	seen := map[string]bool{driver.DefaultCategory: true}
	names := []string{driver.DefaultCategory}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	add(cfg.Category)
	for _, dc := range cfg.Devices {
		add(dc.Category)
	}
	return names
}

// removeStaleSocket deletes a socket file left behind by a previous run.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode().Type() != os.ModeSocket {
		return fmt.Errorf("%s exists and is not a socket: %w", path, pkg.ErrBusy)
	}
	return os.Remove(path)
}

// startProducers starts the FIFO pump and pattern generator configured for
// a device.
func startProducers(ctx context.Context, wg *sync.WaitGroup, dc config.DeviceConfig, sink feed.Sink) error {
	if dc.FIFO != "" {
		fifo, err := feed.OpenFIFO(dc.FIFO)
		if err != nil {
			return err
		}
		pkg.LogInfo(component, "fifo producer", "device", dc.Name, "path", fifo.Path())

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer fifo.Close()
			stats, err := feed.Pump(ctx, fifo, sink, dc.PumpOptions())
			logProducerExit(dc.Name, "fifo", err,
				"read", stats.Read,
				"accepted", stats.Accepted,
				"dropped", stats.Dropped)
		}()
	}

	if gen, ok := dc.Generator(); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := gen.Run(ctx, sink)
			logProducerExit(dc.Name, "pattern", err, "bytes", n)
		}()
	}
	return nil
}

func logProducerExit(device, kind string, err error, args ...any) {
	args = append([]any{"device", device, "producer", kind}, args...)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, pkg.ErrDeviceGone):
		pkg.LogDebug(component, "producer stopped", args...)
	default:
		pkg.LogWarn(component, "producer failed", append(args, "error", err)...)
	}
}
