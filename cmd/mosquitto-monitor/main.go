// Mosquitto Monitor - broker status telemetry bridge
//
// This is the main entry point for the Mosquitto monitor. It subscribes to
// the broker's $SYS status tree and republishes each counter as a statsd
// gauge, optionally mirroring them to InfluxDB and Prometheus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/mosquitto-monitor/internal/api"
	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/influxdb"
	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/statsd"
	"github.com/nerrad567/mosquitto-monitor/internal/metrics"
	"github.com/nerrad567/mosquitto-monitor/internal/monitor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// cli is the command line.
type cli struct {
	Config  string           `short:"c" help:"Configuration file path." default:"${config_path}" env:"MOSQUITTO_MONITOR_CONFIG"`
	Version kong.VersionFlag `short:"V" help:"Print version information and exit."`
}

func main() {
	var args cli
	kong.Parse(&args,
		kong.Name("mosquitto-monitor"),
		kong.Description("Forward Mosquitto $SYS broker status to statsd gauges."),
		kong.Vars{
			"config_path": defaultConfigPath,
			"version":     fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		},
	)

	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, args.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting mosquitto monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", closeErr)
		}
	}()
	log.Info("configuration loaded",
		"path", configPath,
		"broker", cfg.BrokerAddress(),
		"stats", cfg.StatsAddress(),
	)

	// Self metrics, also served on the status server
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(reg)

	// statsd backend
	stats, err := statsd.New(cfg.Stats)
	if err != nil {
		return fmt.Errorf("creating statsd client: %w", err)
	}
	defer func() {
		if closeErr := stats.Close(); closeErr != nil {
			log.Error("error closing statsd client", "error", closeErr)
		}
	}()
	stats.SetOnError(func(err error) {
		recorder.IncEmitError("statsd")
		log.Debug("statsd gauge dropped", "error", err)
	})

	emitters := []monitor.Emitter{stats, recorder}

	mqttClient := mqtt.NewClient(cfg)
	mqttClient.SetLogger(log.With("component", "mqtt"))

	dependencies := []api.Dependency{
		{Name: "mqtt", Check: mqttClient.HealthCheck},
	}

	// InfluxDB mirror (optional)
	if influxClient := connectInfluxDB(ctx, cfg.InfluxDB, recorder, log); influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		emitters = append(emitters, influxClient)
		dependencies = append(dependencies, api.Dependency{
			Name:  "influxdb",
			Check: influxClient.HealthCheck,
			Stats: func() any { return influxClient.Stats() },
		})
	}

	registry, err := monitor.NewRegistry(cfg.Monitor.ExtraTopics)
	if err != nil {
		return fmt.Errorf("building status registry: %w", err)
	}

	loopMode, err := monitor.LoopModeFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("event loop: %w", err)
	}

	mon, err := monitor.New(monitor.Options{
		Transport:         mqttClient,
		Registry:          registry,
		Emitter:           monitor.NewMultiEmitter(emitters...),
		Recorder:          recorder,
		Logger:            log.With("component", "monitor"),
		QueueSize:         cfg.Monitor.QueueSize,
		HeartbeatInterval: cfg.GetHeartbeatInterval(),
		InitialDelay:      time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		MaxDelay:          time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
		MaxAttempts:       cfg.Reconnect.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}

	// Status server (optional). Started before connecting so /health
	// reports while the broker is unreachable.
	if cfg.StatusServer.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:       cfg.StatusServer,
			Logger:       log.With("component", "api"),
			Monitor:      mon,
			Metrics:      metrics.HTTPHandler(reg),
			Dependencies: dependencies,
			Version:      version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating status server: %w", srvErr)
		}
		if srvErr = srv.Start(ctx); srvErr != nil {
			return fmt.Errorf("starting status server: %w", srvErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	// Registered last so it runs first on shutdown.
	defer mon.Stop()

	log.Info("connecting to broker",
		"broker", cfg.BrokerAddress(),
		"client_id", mqttClient.ClientID(),
		"topics", registry.Len(),
	)
	if err := mon.Start(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown requested before broker connection")
			return nil
		}
		return fmt.Errorf("connecting to broker: %w", err)
	}

	log.Info("mosquitto monitor running", "loop", loopMode.String())

	if err := mon.RunEventLoop(ctx, loopMode); err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("event loop: %w", err)
	}

	// Background mode returns at once; keep serving until shutdown.
	if loopMode == monitor.Background() {
		<-ctx.Done()
	}

	log.Info("shutting down", "status", mon.Status().State)
	return nil
}

// connectInfluxDB opens the optional InfluxDB mirror. The mirror never
// blocks startup: a failed connection is logged and the monitor runs
// without it.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, recorder *metrics.PrometheusRecorder, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB mirror disabled")
		return nil
	}

	client, err := influxdb.Connect(ctx, cfg)
	if err != nil {
		log.Warn("InfluxDB mirror unavailable, continuing without it",
			"url", cfg.URL,
			"error", err,
		)
		return nil
	}

	client.SetOnError(func(err error) {
		recorder.IncEmitError("influxdb")
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB mirror connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}
