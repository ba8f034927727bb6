package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	ping "github.com/digineo/pingwatch"
	"github.com/digineo/pingwatch/internal/config"
	"github.com/digineo/pingwatch/internal/logging"
	"github.com/digineo/pingwatch/monitor"
)

const usage = `pingwatch: continuous ICMP reachability monitor

Usage:
  pingwatch [flags] target1 [target2 ...]

Every target (an IPv4 or IPv6 address) is pinged back-to-back by its own
loop. Timeouts are logged to stderr; replies are silent. Runs until
interrupted.

Flags:
`

// newProber builds the prober for the probe loops. Replaced in tests.
var newProber = func(cfg *config.Config) monitor.Prober {
	return cfg.Prober()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	level, targets, err := cfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, shutdown, err := logging.Setup(ctx, stderr, level)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintf(stderr, "flushing logs: %v\n", err)
		}
	}()

	ping.SetLogger(&logging.Logwrap{Logger: logger})

	supervisor := monitor.Supervisor{
		Prober:         newProber(cfg),
		Logger:         logger,
		Timeout:        cfg.Timeout,
		ReportInterval: cfg.ReportInterval,
		HistorySize:    cfg.HistorySize,
	}

	logger.Debug("starting probe loops", "targets", len(targets), "timeout", cfg.Timeout)
	errs := supervisor.Run(ctx, targets)

	if ctx.Err() == nil {
		logger.Error("all probe loops terminated", "loops", len(errs))
		return 2
	}

	logger.Info("shutting down")
	return 0
}

// parseArgs builds the configuration: defaults, then the optional config
// file, then explicitly given flags. Positional targets replace the ones
// from the file. Flags and targets may be interleaved.
func parseArgs(args []string, output io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("pingwatch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, usage)
		fs.PrintDefaults()
	}

	def := config.Default()
	configPath := fs.String("config", "", "path to configuration file (YAML)")
	logLevel := fs.String("log-level", def.LogLevel, "log level: debug, info, warning or error")
	timeout := fs.Duration("timeout", def.Timeout, "timeout for a single echo request")
	bind4 := fs.String("bind4", def.Bind4, "IPv4 bind address, empty to disable IPv4")
	bind6 := fs.String("bind6", def.Bind6, "IPv6 bind address, empty to disable IPv6")
	privileged := fs.Bool("privileged", def.Privileged, "use raw sockets (requires root or CAP_NET_RAW)")
	size := fs.Uint("size", uint(def.PayloadSize), "size of additional payload data")
	mark := fs.Uint("mark", def.Mark, "SO_MARK for outgoing packets, 0 to disable (Linux only)")
	reportInterval := fs.Duration("report-interval", def.ReportInterval, "interval for per-target summaries, 0 disables them")

	var targets []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		targets = append(targets, args[0])
		args = args[1:]
	}

	if *size > math.MaxUint16 {
		return nil, errors.Errorf("payload size %d too large", *size)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = *logLevel
		case "timeout":
			cfg.Timeout = *timeout
		case "bind4":
			cfg.Bind4 = *bind4
		case "bind6":
			cfg.Bind6 = *bind6
		case "privileged":
			cfg.Privileged = *privileged
		case "size":
			cfg.PayloadSize = uint16(*size)
		case "mark":
			cfg.Mark = *mark
		case "report-interval":
			cfg.ReportInterval = *reportInterval
		}
	})

	if len(targets) > 0 {
		cfg.Targets = targets
	}

	return &cfg, nil
}
