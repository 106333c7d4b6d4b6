// kmrelay - UDP to serial HID command relay
// Receives kmNet-style mouse and keyboard datagrams and forwards each one as
// a text line to a serial-attached controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kmrelay/internal/api"
	"kmrelay/internal/autostart"
	"kmrelay/internal/config"
	"kmrelay/internal/metrics"
	"kmrelay/internal/network"
	"kmrelay/internal/osutils"
	"kmrelay/internal/protocol"
	"kmrelay/internal/relay"
	"kmrelay/internal/serial"
	"kmrelay/internal/tray"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	showVer    bool
	initConfig bool
	listen     string
	device     string
	send       string
	target     string
	mac        string
	autostart  string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("kmrelay", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configPath, "config", "", "Config file (.yaml, .yml, .toml or .json)")
	fs.BoolVar(&o.showVer, "version", false, "Show version")
	fs.BoolVar(&o.initConfig, "init-config", false, "Write the default config file and exit")
	fs.StringVar(&o.listen, "listen", "", "UDP listen address host:port (overrides config)")
	fs.StringVar(&o.device, "device", "", "Serial device (overrides config)")
	fs.StringVar(&o.send, "send", "", `Send one command line to -target and exit, e.g. "MOUSE_MOVE 10 -5"`)
	fs.StringVar(&o.target, "target", "127.0.0.1:12345", "Relay address for -send")
	fs.StringVar(&o.mac, "mac", "00000000", "Device id in hex for -send")
	fs.StringVar(&o.autostart, "autostart", "", "Start on login: enable, disable or status")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if opts.showVer {
		fmt.Fprintf(stdout, "kmrelay version %s\n", version)
		return 0
	}

	if opts.send != "" {
		return runSend(opts, stdout, stderr)
	}

	if opts.autostart != "" {
		return runAutostart(opts, stdout, stderr)
	}

	cfgMgr, err := config.NewManager(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize config: %v\n", err)
		return 1
	}

	if opts.initConfig {
		return writeDefaultConfig(cfgMgr, stdout, stderr)
	}

	if err := cfgMgr.Load(); err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg := cfgMgr.Get()
	if err := applyOverrides(cfg, opts); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid config: %v\n", err)
		return 1
	}

	logger, closeLog := initLogger(cfg.Logging, stdout, stderr)
	defer closeLog()
	slog.SetDefault(logger)

	if err := runService(cfg, logger); err != nil {
		logger.Error("Service failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func applyOverrides(cfg *config.Config, opts options) error {
	if opts.listen != "" {
		host, port, err := net.SplitHostPort(opts.listen)
		if err != nil {
			return fmt.Errorf("invalid -listen %q: %w", opts.listen, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid -listen port %q", port)
		}
		cfg.Server.BindAddress = host
		cfg.Server.Port = p
	}
	if opts.device != "" {
		cfg.Serial.Device = opts.device
	}
	return nil
}

func writeDefaultConfig(cfgMgr *config.Manager, stdout, stderr io.Writer) int {
	if _, err := os.Stat(cfgMgr.Path()); err == nil {
		fmt.Fprintf(stderr, "Config file %s already exists\n", cfgMgr.Path())
		return 1
	}
	if err := cfgMgr.Save(); err != nil {
		fmt.Fprintf(stderr, "Failed to write config: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote default config to %s\n", cfgMgr.Path())
	return 0
}

func runSend(opts options, stdout, stderr io.Writer) int {
	cmd, err := protocol.ParseLine(opts.send)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	mac, err := network.ParseMac(opts.mac)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	client, err := network.NewClient(opts.target, mac)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to reach %s: %v\n", opts.target, err)
		return 1
	}
	defer client.Close()

	if err := client.Send(cmd); err != nil {
		fmt.Fprintf(stderr, "Send failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Sent %s to %s", cmd.Render(), opts.target)
	return 0
}

// runAutostart manages the login entry. The entry starts the relay with
// the same -config as this invocation.
func runAutostart(opts options, stdout, stderr io.Writer) int {
	switch opts.autostart {
	case "enable":
		var args []string
		if opts.configPath != "" {
			abs, err := filepath.Abs(opts.configPath)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			args = []string{"-config", abs}
		}
		where, err := autostart.Enable(args)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to enable autostart: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Autostart enabled: %s\n", where)
	case "disable":
		if err := autostart.Disable(); err != nil {
			fmt.Fprintf(stderr, "Failed to disable autostart: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "Autostart disabled")
	case "status":
		fmt.Fprintf(stdout, "Autostart enabled: %v\n", autostart.IsEnabled())
	default:
		fmt.Fprintf(stderr, "invalid -autostart %q: want enable, disable or status\n", opts.autostart)
		return 2
	}
	return 0
}

func runService(cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	sink, err := serial.Open(cfg.Serial.Device, cfg.Serial.Baud)
	if err != nil {
		return err
	}
	defer sink.Close()
	if cfg.Serial.Device != "" {
		logger.Info("Serial port opened", slog.String("device", cfg.Serial.Device), slog.Int("baud", cfg.Serial.Baud))
	} else {
		logger.Info("No serial device configured, printing commands to stdout")
	}

	// Assigned before the receiver starts, so the observer never races it.
	var apiServer *api.Server
	dispatcher := relay.New(sink,
		relay.WithLogger(logger),
		relay.WithMetrics(m),
		relay.WithObserver(func(ev relay.Event) {
			if apiServer != nil {
				apiServer.BroadcastEvent(ev)
			}
		}),
	)

	listen := cfg.Server.Addr()
	if cfg.API.Enabled {
		apiServer = api.NewServer(dispatcher, listen,
			api.WithToken(cfg.API.Token),
			api.WithGatherer(reg),
			api.WithLogger(logger),
		)
		go func() {
			if err := apiServer.Start(cfg.API.Addr()); err != nil {
				logger.Error("API server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if cfg.General.OpenFirewall {
		if err := osutils.EnsureFirewallRule(cfg.Server.Port, logger); err != nil {
			logger.Warn("Firewall rule setup failed", slog.String("error", err.Error()))
		}
	}

	receiver := network.NewUDPReceiver(listen, cfg.Server.BufferSize, dispatcher, logger)
	if err := receiver.Start(); err != nil {
		return fmt.Errorf("start UDP receiver on %s: %w", listen, err)
	}
	for _, addr := range network.ReachableAddrs(receiver.LocalAddr()) {
		logger.Info("Accepting commands", slog.String("address", addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.General.Tray {
		t := tray.New(dispatcher, listen, stop, logger)
		go func() {
			<-ctx.Done()
			t.Stop()
		}()
		t.Run()
	} else {
		<-ctx.Done()
	}

	logger.Info("Shutting down")
	receiver.Stop()

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("API shutdown failed", slog.String("error", err.Error()))
		}
	}

	st := dispatcher.Stats()
	logger.Info("Service stopped",
		slog.Uint64("received", st.Received),
		slog.Uint64("forwarded", st.Forwarded),
		slog.Uint64("rejected", st.Rejected),
	)
	return nil
}

// initLogger creates the structured logger described by cfg. The returned
// func closes the log file, if any.
func initLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (*slog.Logger, func()) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	closeFn := func() {}
	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = stderr
	case "stdout", "":
		output = stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = stdout
		} else {
			output = file
			closeFn = func() { file.Close() }
		}
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler), closeFn
}
