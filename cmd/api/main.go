package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/switch2mqtt/internal/adapter/actor"
	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/actor"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/metrics"
	"github.com/berfenger/switch2mqtt/internal/server"
	"github.com/berfenger/switch2mqtt/internal/util/actorutil"
	"github.com/berfenger/switch2mqtt/pkg/registers"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// reloadOnHangup re-reads the tile file on SIGHUP and hands the new definition to the master.
func reloadOnHangup(ctx context.Context, cfg *config.Config, root *pactor.RootContext, master *pactor.PID, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			def, err := config.LoadTileDefinition(cfg.TileFile)
			if err != nil {
				logger.Error("tile reload failed", zap.String("file", cfg.TileFile), zap.Error(err))
				continue
			}
			res, err := root.RequestFuture(master, domain.SetTileDefinitionRequest{Definition: def}, 5*time.Second).Result()
			if err != nil {
				logger.Error("tile reload failed", zap.Error(err))
				continue
			}
			if resp, ok := res.(domain.SetTileDefinitionResponse); ok && resp.HasResponseError() {
				logger.Error("tile reload rejected", zap.Error(resp.GetResponseError()))
				continue
			}
			logger.Info("tile reloaded", zap.String("file", cfg.TileFile), zap.Int("series", len(def.Dataseries)))
		}
	}
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	m := metrics.NewMetrics()
	events := &eventstream.EventStream{}
	events.Subscribe(func(evt any) {
		if submit, ok := evt.(domain.ActionSubmitEvent); ok {
			logger.Info("action submitted", zap.String("label", submit.Payload.Label), zap.Bool("args", submit.Payload.Args),
				zap.String("topic", submit.Payload.ActionTopic))
		}
	})

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, modbusActorProvider(cfg, logger), mqttActorProvider(cfg, logger), events, m, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("could not start master actor", zap.Error(err))
		return
	}

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// periodic state refresh
	if cfg.Refresh.IntervalMillis > 0 {
		sched, err := actor.StartRefreshScheduler(bgCtx, ctx, pid, time.Duration(cfg.Refresh.IntervalMillis)*time.Millisecond, logger)
		if err != nil {
			logger.Error("could not start refresh scheduler", zap.Error(err))
		} else {
			defer sched.Stop()
		}
	}

	go reloadOnHangup(bgCtx, cfg, ctx, pid, logger)

	server := server.NewServer(*cfg, ctx, pid, m)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SWITCH2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SWITCH2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("switch2mqtt")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if cfg.TileFile != "" {
		tile, err := config.LoadTileDefinition(cfg.TileFile)
		if err != nil {
			return nil, err
		}
		cfg.Tile = tile
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func modbusActorProvider(cfg *config.Config, logger *zap.Logger) actor.ModbusActorProvider {
	timeout := time.Duration(cfg.Modbus.TimeoutMillis) * time.Millisecond
	return func() *adactor.ModbusActor {
		reader, err := registers.CreateModbusRegisterReader(cfg.Modbus.Host, cfg.Modbus.Port, timeout, logger, nil)
		if err != nil {
			// the supervisor restarts the actor with backoff
			panic(err)
		}
		return adactor.NewModbusActor(reader, timeout+time.Second, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(_ *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "switch2mqtt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("modbus.port", 502)
	viper.SetDefault("modbus.timeout_millis", 1000)
	viper.SetDefault("modbus.poll_interval_millis", 5000)
	viper.SetDefault("refresh.interval_millis", 60000)
	viper.SetDefault("tile_file", "")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Tile = nil
	slog.Info("Using", "config", cfg)
}
