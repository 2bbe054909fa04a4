// Interpreter API is responsible for reading the P1 port and forwarding the readings
// to MQTT, websocket clients and Prometheus.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/config"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/interpreter"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/linkcheck"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/logging"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/metrics"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/port_reader"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/publisher"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/scheduler"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Publication batches waiting for websocket clients and the broker.
const forwardQueueSize = 16

var (
	rootCmd = &cobra.Command{
		Use:   "interpreter_api",
		Short: "Read DSMR telegrams from the P1 port and publish the readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to interpreter_api.toml (default /etc/p1_meter_bridge/interpreter_api.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level from the config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadInterpreterAPIConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logging.New(cfg.LogLevel)

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	store := readings.New(registry.Names())
	decoder, err := telegram.NewDecoder(registry, store, log)
	if err != nil {
		return err
	}
	rootTopic := cfg.Mqtt.RootTopic

	p1Reader := port_reader.NewP1Reader(port_reader.Options{
		Port:               cfg.SerialDevice,
		Baudrate:           cfg.Baudrate,
		RootTopic:          rootTopic,
		UpdateInterval:     cfg.UpdateInterval(),
		FullUpdateInterval: cfg.FullUpdateInterval(),
	}, telegram.NewSession(decoder, log), store, log)

	var haveTelegram atomic.Bool
	latest := func() ([]readings.Reading, bool) {
		return p1Reader.GetLatestReadings(), haveTelegram.Load()
	}

	hub := interpreter.NewHub(func() *interpreter.MeterUpdate {
		rs, ok := latest()
		if !ok {
			return nil
		}
		return &interpreter.MeterUpdate{
			Timestamp:  time.Now().Unix(),
			FullUpdate: true,
			Readings:   scheduler.Publications(rs, rootTopic),
		}
	}, log)

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry, p1Reader.GetLatestReadings, p1Reader.DroppedBytes, promRegistry)

	var pub publisher.Publisher
	if cfg.Mqtt.Enabled {
		mqttPublisher := publisher.NewMQTTPublisher(cfg.Mqtt, log)
		if err := mqttPublisher.Connect(ctx); err != nil {
			return err
		}
		defer mqttPublisher.Disconnect()
		publisher.LogTopics(log, rootTopic, registry.Names())
		pub = mqttPublisher
	}

	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	fwd := newForwarder(forwardQueueSize, hub, pub, log)
	go fwd.run(ctx)

	// Start reading P1 port and handle errors
	p1Reader.StartReading(
		func(tick scheduler.Tick) {
			collector.Observe(tick)
			if tick.Result.Valid {
				haveTelegram.Store(true)
			}
			if len(tick.Publications) > 0 {
				fwd.offer(tick)
			}
		},
		fail,
	)
	defer p1Reader.StopReading()

	watchdog := linkcheck.NewWatchdog(cfg.LinkCheckHost, cfg.WlanConnectionId, cfg.LinkCheckInterval(), log)
	go watchdog.Run(ctx, fail)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           newServer(latest, hub, promRegistry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Starting P1 Meter Bridge Interpreter API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail(err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		err = nil
	case err = <-errCh:
		log.WithError(err).Error("Shutting down after failure")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	return err
}
