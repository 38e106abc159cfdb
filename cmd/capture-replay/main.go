// Command capture-replay runs an SMS backup through the capture pipeline into a local SQLite store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.New()).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "capture-replay",
		Short: "Replay bank SMS backups through the transaction capture pipeline",
		Long: `capture-replay reads an SMS Backup & Restore XML export, runs every received
message through the same filter, parser and deduplicator as the capture service,
and stores the resulting transactions in a local SQLite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, keys as in the service environment)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("rules", "", "YAML rule overlay file")
	_ = v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("CAPTURE_RULES_FILE", root.PersistentFlags().Lookup("rules"))

	root.AddCommand(newReplayCmd(v))
	root.AddCommand(newTokenCmd(v))
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}
	}
	return nil
}

func newLogger(v *viper.Viper) (*slog.Logger, error) {
	level, err := config.ParseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
