// doorwatch - Tuya door contact monitor
//
// doorwatch listens for the power-up broadcast a battery door sensor sends
// each time the contact changes, reads the contact state from the device and
// keeps the latest value in memory. The state is served over HTTP, published
// to MQTT, written to InfluxDB and recorded in a local SQLite history.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/doorwatch/internal/api"
	"github.com/nerrad567/doorwatch/internal/history"
	"github.com/nerrad567/doorwatch/internal/infrastructure/config"
	"github.com/nerrad567/doorwatch/internal/infrastructure/database"
	"github.com/nerrad567/doorwatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/doorwatch/internal/infrastructure/logging"
	"github.com/nerrad567/doorwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/doorwatch/internal/sensor"
	"github.com/nerrad567/doorwatch/internal/tuya"
	"github.com/nerrad567/doorwatch/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errVersionRequested stops startup after --version has been printed.
var errVersionRequested = errors.New("version requested")

// options holds the parsed command line.
type options struct {
	configPath string
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stdout)
	if errors.Is(err, errVersionRequested) || errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line. DOORWATCH_CONFIG supplies the config
// path when --config is not given.
func parseFlags(args []string, out io.Writer) (options, error) {
	fs := pflag.NewFlagSet("doorwatch", pflag.ContinueOnError)
	fs.SetOutput(out)

	configPath := fs.StringP("config", "c", os.Getenv("DOORWATCH_CONFIG"), "path to the YAML config file")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *showVersion {
		fmt.Fprintf(out, "doorwatch %s (commit %s, built %s)\n", version, commit, date)
		return options{}, errVersionRequested
	}

	return options{configPath: *configPath}, nil
}

// run wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse start order.
func run(ctx context.Context, opts options) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting doorwatch", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", opts.configPath,
		"device_ip", cfg.Device.IP,
		"transport", transportName(cfg),
	)

	checks := make(map[string]api.HealthChecker)

	// History
	var (
		historyRepo history.Repository
		recorder    *history.Recorder
	)
	if cfg.Database.Enabled {
		db, dbErr := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		historyRepo = history.NewSQLiteRepository(db.DB)
		recorder = history.NewRecorder(historyRepo, log)
		if cfg.Database.HistoryRetentionDays > 0 {
			recorder.StartRetention(time.Duration(cfg.Database.HistoryRetentionDays) * 24 * time.Hour)
			defer recorder.Stop()
		}
		checks["database"] = db
	} else {
		log.Info("door history disabled")
	}

	// Device transport
	client, err := tuya.NewClient(tuya.Credentials{
		DeviceID:  cfg.Device.ID,
		Address:   cfg.Device.IP,
		Port:      cfg.Device.Port,
		LocalKey:  cfg.Device.LocalKey,
		APIKey:    cfg.Cloud.APIKey,
		APISecret: cfg.Cloud.APISecret,
		Region:    cfg.Cloud.Region,
		BaseURL:   cfg.Cloud.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating device client: %w", err)
	}

	// Sensor; a bind failure aborts startup.
	monitor, err := sensor.New(sensor.Options{
		DeviceID:     cfg.Device.ID,
		DeviceIP:     net.ParseIP(cfg.Device.IP),
		ListenAddr:   cfg.ListenAddr(),
		Client:       client,
		FetchTimeout: cfg.Listener.FetchTimeout,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("creating door monitor: %w", err)
	}
	defer monitor.Close() //nolint:errcheck // idempotent; errors reported on the normal shutdown path

	if recorder != nil {
		monitor.AddObserver(recorder)
	}

	// MQTT
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		monitor.AddObserver(mqtt.NewStatePublisher(mqttClient, cfg.MQTT.TopicPrefix))
		if subErr := mqtt.HandleRefreshCommands(mqttClient, cfg.Device.ID, monitor, cfg.Listener.FetchTimeout); subErr != nil {
			return fmt.Errorf("subscribing to refresh commands: %w", subErr)
		}
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		monitor.AddObserver(influxdb.NewStateWriter(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Monitor:  monitor,
			History:  historyRepo,
			DeviceID: cfg.Device.ID,
			Checks:   checks,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		monitor.AddObserver(server.Hub())

		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	monitor.Start()
	log.Info("initialisation complete, waiting for shutdown signal", "listen", monitor.ListenAddr().String())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Stop readings before the sinks they feed are closed.
	if err := monitor.Close(); err != nil {
		log.Error("error stopping door monitor", "error", err)
	}
	return nil
}

func transportName(cfg *config.Config) string {
	if cfg.UsesCloud() {
		return "cloud"
	}
	return "local"
}
