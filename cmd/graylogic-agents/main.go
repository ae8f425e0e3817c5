// Package main is the entry point for Gray Logic Agents.
//
// Gray Logic Agents simulates a small home run by three cooperating agents
// (temperature, lighting and security) that share a state store and talk
// over a priority message bus. An operator drives the home from the HTTP
// console, MQTT commands or a day/night schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/api"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/console"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-agents/internal/journal"
	"github.com/nerrad567/gray-logic-agents/internal/metrics"
	"github.com/nerrad567/gray-logic-agents/internal/schedule"
	"github.com/nerrad567/gray-logic-agents/internal/state"
	"github.com/nerrad567/gray-logic-agents/internal/telemetry"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Agents",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "site_id", cfg.Site.ID)

	checks := make(map[string]api.HealthCheckFunc)

	var journalRepo *journal.SQLiteRepository
	if cfg.Database.Enabled {
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database connection")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", db.Path())
		journalRepo = journal.NewSQLiteRepository(db.DB)
		checks["database"] = db.HealthCheck
	} else {
		log.Info("operator journal disabled")
	}

	store := state.New()
	msgBus := bus.New(
		bus.WithCapacity(cfg.Bus.Capacity),
		bus.WithMaxAge(cfg.Bus.MaxAge),
		bus.WithLogger(log.Component("bus")),
	)

	runtimes, err := buildAgents(cfg, msgBus, store, log)
	if err != nil {
		return err
	}
	group := agent.NewGroup(msgBus, log.Component("agents"), runtimes...)

	consoleOpts := []console.Option{console.WithLogger(log.Component("console"))}
	if journalRepo != nil {
		consoleOpts = append(consoleOpts, console.WithJournal(journalRepo))
	}
	svc := console.New(store, msgBus, consoleOpts...)

	if err := group.Start(ctx); err != nil {
		return fmt.Errorf("starting agents: %w", err)
	}
	defer func() {
		log.Info("stopping agents")
		if err := group.Shutdown(cfg.Agents.Runtime.ShutdownGrace); err != nil {
			log.Error("error stopping agents", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Schedule.Enabled {
		sched, err := buildScheduler(cfg, svc, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT, log.Component("mqtt"))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		checks["mqtt"] = mqttClient.HealthCheck

		bridge := telemetry.NewMQTTBridge(mqttClient, store, svc, cfg.MQTT.PublishInterval, log.Component("mqtt-bridge"))
		g.Go(func() error { return bridge.Run(gctx) })
		log.Info("MQTT bridge started",
			"host", cfg.MQTT.Broker.Host,
			"port", cfg.MQTT.Broker.Port,
		)
	} else {
		log.Info("MQTT bridge disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		checks["influxdb"] = influxClient.HealthCheck

		recorder := telemetry.NewInfluxRecorder(influxClient, cfg.Site.ID, telemetry.Sources{
			State:  store,
			Bus:    msgBus,
			Agents: group,
		}, cfg.InfluxDB.RecordInterval)
		g.Go(func() error { return recorder.Run(gctx) })
		log.Info("InfluxDB recorder started", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB recorder disabled")
	}

	if cfg.Redis.Enabled {
		rdb, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		mirror := telemetry.NewRedisMirror(rdb, store, cfg.Redis.KeyPrefix, cfg.Redis.MirrorInterval, log.Component("redis-mirror"))
		g.Go(func() error { return mirror.Run(gctx) })
		log.Info("Redis mirror started", "addr", cfg.Redis.Addr, "key", mirror.StateKey())
	} else {
		log.Info("Redis mirror disabled")
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Console:  svc,
			Agents:   group,
			Metrics:  metrics.NewRegistry(metrics.NewCollector(msgBus, group, store)),
			Checks:   checks,
			Version:  version,
		}
		if journalRepo != nil {
			deps.Journal = journalRepo
		}
		apiServer, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("background task failed", "error", err)
	}

	log.Info("Gray Logic Agents stopped")
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path, falling back to the defaults when the file does
// not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.LoadDefaults()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func buildScheduler(cfg *config.Config, svc *console.Service, log *logging.Logger) (*schedule.Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading site timezone %q: %w", cfg.Site.Timezone, err)
	}
	sched, err := schedule.New(schedule.Config{
		Dusk:     cfg.Schedule.Dusk,
		Dawn:     cfg.Schedule.Dawn,
		Location: loc,
	}, svc, log.Component("schedule"))
	if err != nil {
		return nil, fmt.Errorf("creating schedule: %w", err)
	}
	log.Info("day/night schedule enabled", "dusk", cfg.Schedule.Dusk, "dawn", cfg.Schedule.Dawn)
	return sched, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	return rdb, nil
}
