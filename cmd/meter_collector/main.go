// Responsible for storing the data collected from the smart meter
// Depends on the interpreter API being online.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/aggregator"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/config"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/interpreter"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/logging"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/meterdb"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/pathing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "meter_collector",
		Short: "Store readings streamed by the interpreter API and aggregate them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	configPath string
	apiHost    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to meter_collector.toml (default /etc/p1_meter_bridge/meter_collector.toml)")
	rootCmd.PersistentFlags().StringVar(&apiHost, "host", "", "override the interpreter API host:port")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadMeterCollectorConfig(configPath)
	if err != nil {
		return err
	}
	if apiHost != "" {
		cfg.InterpreterAPIHost = apiHost
	}
	log := logging.New(cfg.LogLevel)

	dbPath := cfg.DbPath()
	if err := pathing.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return err
	}
	db, err := meterdb.InitializeDatabase(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Infof("Using database %s", dbPath)

	go runAggregation(ctx, db, log)

	// Subscribe to websocket with revive
	return interpreter.StartListener(ctx, interpreter.ListenerOptions{
		Host:       cfg.InterpreterAPIHost,
		TLSEnabled: cfg.TLSEnabled,
	}, func(update *interpreter.MeterUpdate) {
		if err := storeUpdate(db, update); err != nil {
			log.WithError(err).Error("failed to store meter update")
		}
	}, log)
}

// Aggregate once at startup to catch up, then at every hour.
func runAggregation(ctx context.Context, db *meterdb.MeterDB, log logrus.FieldLogger) {
	aggregateNow := func() {
		if err := aggregator.AggregateAndCleanup(db, time.Now(), log); err != nil {
			log.WithError(err).Error("aggregation failed")
		}
	}
	aggregateNow()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			aggregateNow()
		}
	}
}
