// Telegram inspect decodes captured P1 output offline, to check field
// definitions against a real meter without running the bridge.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/config"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "telegram_inspect",
		Short: "Decode captured DSMR telegrams",
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect <capture-file>",
		Short: "Validate and decode every telegram in a capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			capture, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read capture: %w", err)
			}
			return inspect(cmd.OutOrStdout(), capture, registry)
		},
	}

	fieldsCmd = &cobra.Command{
		Use:   "fields",
		Short: "List the configured field definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			return printFields(cmd.OutOrStdout(), registry)
		},
	}

	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "read [[fields]] from this interpreter_api.toml instead of the built-in set")
	rootCmd.AddCommand(inspectCmd, fieldsCmd)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.Fatal(err)
	}
}

func loadRegistry() (*telegram.Registry, error) {
	if configPath == "" {
		return telegram.NewRegistry(telegram.DefaultFields())
	}
	cfg, err := config.LoadInterpreterAPIConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cfg.Registry()
}
