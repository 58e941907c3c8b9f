package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"optimouse/internal/buttons"
	"optimouse/internal/mouse"
	"optimouse/internal/sim"
	"optimouse/internal/store"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("optimouse-sim v%s\n", version)
	fmt.Println("Host simulator for the optimouse button and CPI controller")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  optimouse-sim [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs the mouse controller on the host. Button and tracking levels come")
	fmt.Println("  from a keyboard (evdev or terminal), a Lua scenario or the IPC socket.")
	fmt.Println("  Outputs are published as JSON frames on a websocket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file; reloaded on change (logging.level only)")
	fmt.Println()
	fmt.Println("  -input string")
	fmt.Printf("        Input source: %s|%s|%s|%s (default %q)\n", inputEvdev, inputTTY, inputScript, inputNone, inputTTY)
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Keyboard for the evdev source (default \"/dev/input/event0\")")
	fmt.Println()
	fmt.Println("  -tick-interval-us int")
	fmt.Printf("        Host poll period in microseconds (default %d)\n", defaultTickIntervalUS)
	fmt.Println()
	fmt.Println("  -tick-increment int")
	fmt.Printf("        Ticks advanced per poll (default %d)\n", sim.DefaultIncrement)
	fmt.Println()
	fmt.Println("  -raw")
	fmt.Println("        Feed contact levels through the debouncer")
	fmt.Println()
	fmt.Println("  -policy string")
	fmt.Println("        Debounce policy: schmitt|timed (default \"schmitt\")")
	fmt.Println()
	fmt.Println("  -store string")
	fmt.Println("        Parameter file (.yaml, .yml or .toml); empty keeps params in memory")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -ws-port int")
	fmt.Printf("        State websocket port, 0 disables (default %d)\n", defaultStateWSPort)
	fmt.Println()
	fmt.Println("  -script string")
	fmt.Println("        Lua scenario to run (implies -input script)")
	fmt.Println()
	fmt.Println("  -trace")
	fmt.Println("        Print every scenario frame as a JSON line")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-file string")
	fmt.Println("        Append logs to this file (required to see logs with the tty source)")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("KEYS:")
	fmt.Println("  z / x      left / right button")
	fmt.Println("  a / s      left / right top contact (with -raw; z / x are the bottom contacts)")
	fmt.Println("  l          toggle tracking (sensor on a surface)")
	fmt.Println("  esc        quit")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Interactive session in the terminal")
	fmt.Println("  optimouse-sim -log-file /tmp/optimouse.log")
	fmt.Println()
	fmt.Println("  # Read a real keyboard and persist params")
	fmt.Println("  optimouse-sim -input evdev -device /dev/input/event3 -store ~/.config/optimouse/params.yaml")
	fmt.Println()
	fmt.Println("  # Run a scenario and dump frames")
	fmt.Println("  optimouse-sim -script scenarios/cpi.lua -trace > frames.jsonl")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - One tick is 125us; the default poll advances 8 ticks per millisecond")
	fmt.Println("  - The evdev source needs read access to the device (root or 'input' group)")
	fmt.Println()
}

func main() {
	// Check for version flag early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath     = flag.String("config", "", "YAML config file")
		inputSource    = flag.String("input", inputTTY, "Input source: evdev|tty|script|none")
		inputDevice    = flag.String("device", "/dev/input/event0", "Keyboard for the evdev source")
		tickIntervalUS = flag.Int("tick-interval-us", defaultTickIntervalUS, "Host poll period in microseconds")
		tickIncrement  = flag.Int("tick-increment", sim.DefaultIncrement, "Ticks advanced per poll")
		raw            = flag.Bool("raw", false, "Feed contact levels through the debouncer")
		policy         = flag.String("policy", buttons.PolicySchmitt.String(), "Debounce policy: schmitt|timed")
		storePath      = flag.String("store", "", "Parameter file (.yaml, .yml or .toml)")
		ipcSocketPath  = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		wsPort         = flag.Int("ws-port", defaultStateWSPort, "State websocket port (0 disables)")
		scriptPath     = flag.String("script", "", "Lua scenario to run")
		trace          = flag.Bool("trace", false, "Print every scenario frame as a JSON line")
		logLevelStr    = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFile        = flag.String("log-file", "", "Append logs to this file")
		showVersion    = flag.Bool("version", false, "Print version and exit")
		showHelp       = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Defaults < config file < explicitly set flags.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			overrides.InputSource = inputSource
		case "device":
			overrides.InputDevice = inputDevice
		case "tick-interval-us":
			overrides.TickIntervalUS = tickIntervalUS
		case "tick-increment":
			overrides.TickIncrement = tickIncrement
		case "raw":
			overrides.Raw = raw
		case "policy":
			overrides.DebouncePolicy = policy
		case "store":
			overrides.StorePath = storePath
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "ws-port":
			overrides.StateWSPort = wsPort
		case "script":
			overrides.ScriptPath = scriptPath
		case "trace":
			overrides.ScriptTrace = trace
		case "log-level":
			overrides.LogLevel = logLevelStr
		case "log-file":
			overrides.LogFile = logFile
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Setup logger
	logLevel, _ := parseLogLevel(cfg.Logging.Level) // validated above
	var level slog.LevelVar
	level.Set(logLevel.slogLevel())

	logOut, closeLog, err := openLogOutput(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logOut, &level)

	if err := run(cfg, *configPath, overrides, &level, logger); err != nil {
		logger.Error("optimouse-sim failed", "error", err)
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

// openLogOutput picks the log destination. The tty source owns the terminal,
// so without a log file its logs are discarded.
func openLogOutput(cfg Config) (io.Writer, func(), error) {
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(ExpandPath(cfg.Logging.File), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	}
	if cfg.Input.Source == inputTTY {
		return io.Discard, func() {}, nil
	}
	return os.Stderr, func() {}, nil
}

// harnessConfig builds the harness configuration shared by every input source.
func harnessConfig(cfg Config, logger *slog.Logger) (sim.Config, error) {
	policy, err := buttons.ParsePolicy(cfg.Debounce.Policy)
	if err != nil {
		return sim.Config{}, err
	}

	var params mouse.Store = store.NewMemory()
	if cfg.Store.Path != "" {
		f, err := store.NewFile(ExpandPath(cfg.Store.Path), logger.With("component", "store"))
		if err != nil {
			return sim.Config{}, err
		}
		params = f
	}

	return sim.Config{
		Increment:     uint8(cfg.Tick.Increment),
		Raw:           cfg.Debounce.Raw,
		Policy:        policy,
		DebounceDelay: uint16(cfg.Debounce.DelayTicks),
		Store:         params,
		Logger:        logger,
	}, nil
}

func run(cfg Config, configPath string, overrides FlagOverrides, level *slog.LevelVar, logger *slog.Logger) error {
	simCfg, err := harnessConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug("starting optimouse-sim", "version", version)
	logger.Debug("configuration",
		"input", cfg.Input.Source,
		"devices", cfg.Input.Devices,
		"tick_interval_us", cfg.Tick.IntervalUS,
		"tick_increment", cfg.Tick.Increment,
		"raw", cfg.Debounce.Raw,
		"policy", cfg.Debounce.Policy,
		"store", cfg.Store.Path,
		"ipc_socket", cfg.IPC.SocketPath,
		"state_ws_enabled", cfg.StateWS.Enabled,
		"state_ws_port", cfg.StateWS.Port,
		"script", cfg.Script.Path)

	if cfg.Input.Source == inputScript {
		return runScriptMode(ctx, cfg, simCfg, logger)
	}
	return runDaemonMode(ctx, cfg, simCfg, configPath, overrides, level, logger)
}

func runScriptMode(ctx context.Context, cfg Config, simCfg sim.Config, logger *slog.Logger) error {
	simCfg.Bootloader = mouse.BootloaderFunc(func() {
		logger.Warn("bootloader requested")
	})

	var trace io.Writer
	if cfg.Script.Trace {
		trace = os.Stdout
	}
	return runScript(ctx, ExpandPath(cfg.Script.Path), ScenarioConfig{
		Harness:         simCfg,
		SyntheticMotion: cfg.Sensor.SyntheticMotion,
		Trace:           trace,
		Logger:          logger.With("component", "script"),
	})
}

// ============================================================================
// Daemon mode
// ============================================================================
// Every long-running part shares one errgroup. The daemon loop cancels the
// group when it stops (quit key or bootloader request); any other part
// failing cancels the loop.
// ============================================================================

func runDaemonMode(
	ctx context.Context,
	cfg Config,
	simCfg sim.Config,
	configPath string,
	overrides FlagOverrides,
	level *slog.LevelVar,
	logger *slog.Logger,
) error {
	boot := &BootloaderRequest{}
	simCfg.Bootloader = boot
	state := NewDaemonState(sim.New(simCfg), cfg.Sensor.SyntheticMotion, boot)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Central event bus
	events := make(chan Event, defaultEventQueue)

	var broadcasts chan StateBroadcast
	if cfg.StateWS.Enabled {
		broadcasts = make(chan StateBroadcast, defaultBroadcastQueue)
	}

	g, gctx := errgroup.WithContext(ctx)

	var reason StopReason
	g.Go(func() error {
		defer cancel()
		reason = runDaemon(gctx, events, state, broadcasts, cfg.TickInterval(), logger.With("component", "daemon"))
		return nil
	})

	if cfg.IPC.SocketPath != "" {
		g.Go(func() error {
			return runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), events, logger.With("component", "ipc"))
		})
	}

	if cfg.StateWS.Enabled {
		wsLogger := logger.With("component", "state_ws")
		srv := NewServer(wsLogger, events, ServerConfig{Hub: HubConfig{SendBuf: cfg.StateWS.SendBuf}})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.StateWS.Path)

		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, srv.Hub(), broadcasts, cfg.CoalesceWindow(), wsLogger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.StateWS.Port, mux, wsLogger)
		})
	}

	switch cfg.Input.Source {
	case inputEvdev:
		g.Go(func() error {
			return runEvdevInput(gctx, cfg.Input.Devices, cfg.Debounce.Raw, events, logger.With("component", "input"))
		})
	case inputTTY:
		g.Go(func() error {
			return runTTYInput(gctx, cfg.Debounce.Raw, events, logger.With("component", "input"))
		})
	}

	if configPath != "" {
		g.Go(func() error {
			return watchConfig(gctx, configPath, overrides, level, logger.With("component", "config"))
		})
	}

	logger.Info("running", "input", cfg.Input.Source, "ipc", cfg.IPC.SocketPath, "state_ws_port", cfg.StateWS.Port)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if reason == StopBootloader {
		logger.Info("stopped for bootloader", "params", state.Harness.Params())
	}
	logger.Info("shut down")
	return err
}
