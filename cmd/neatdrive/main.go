package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/neatdrive/simulator/internal/config"
	"github.com/neatdrive/simulator/internal/logging"
	intOtel "github.com/neatdrive/simulator/internal/otel"
	"github.com/neatdrive/simulator/internal/run"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "neatdrive"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()

	// RunContext tracks the run and generation being simulated, for log enrichment
	RunContext *run.Context = run.NewContext()
)

const usage = `usage: neatdrive [--config DIR] [--log-level LEVEL] <command> [args]

commands:
  run                                             train on the configured track
  path <grid.csv> <sx> <sy> <gx> <gy> [tile] [out.png]   find a road route
  export [run-id] [db-file]                       print a stored run as JSON
`

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func execute(args []string) error {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configDir := fs.StringP("config", "c", ".", "directory containing "+config.FileName)
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("version", false, "print the version and exit")
	// subcommand arguments may be negative coordinates
	fs.SetInterspersed(false)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if v, _ := fs.GetBool("version"); v {
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return nil
	}

	configErr := config.Load(*configDir)
	if err := viper.BindPFlag("logLevel", fs.Lookup("log-level")); err != nil {
		return fmt.Errorf("binding log-level flag: %w", err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no command given")
	}
	command, cmdArgs := strings.ToLower(rest[0]), rest[1:]

	// export writes its document to stdout, so it logs to file only
	if err := setupLogging(command != "export"); err != nil {
		return err
	}
	defer shutdown()

	if configErr != nil {
		Logger.Warn("Config file not loaded, using defaults", "dir", *configDir, "error", configErr)
	} else {
		Logger.Info("Config loaded", "file", viper.ConfigFileUsed())
	}

	switch command {
	case "run":
		return runTraining(cmdArgs)
	case "path":
		return findPath(cmdArgs)
	case "export":
		return exportRun(cmdArgs)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// setupLogging opens the session log file and configures SlogManager with
// the optional Graylog and OTel sinks.
func setupLogging(console bool) error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir %s: %w", logsDir, err)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file %s: %w", LogFilePath, err)
	}

	var opts []logging.Option
	if console {
		opts = append(opts, logging.WithConsole())
	}
	opts = append(opts, logging.WithContext(logging.RunAttrs(RunContext)))

	var graylogErr error
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"), AppName)
		if err != nil {
			graylogErr = err
		} else {
			opts = append(opts, logging.WithGraylog(w))
		}
	}

	var otelErr error
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, otelErr = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      LogFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider, opts...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion)

	if graylogErr != nil {
		Logger.Warn("Graylog disabled", "error", graylogErr)
	}
	if otelErr != nil {
		Logger.Error("Failed to initialize OTel provider", "error", otelErr)
	} else if OTelProvider != nil {
		Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	}
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing logs:", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutting down otel:", err)
		}
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}
