// Command deliveryctl resolves and prices deliveries against a directory
// file without running the service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"homefoods-delivery/internal/config"
	"homefoods-delivery/internal/delivery"
	"homefoods-delivery/internal/directory"
)

// cli carries the state shared by the subcommands.
type cli struct {
	configPath    string
	directoryFile string
	verbose       bool
	timeout       time.Duration

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "deliveryctl",
		Short:        "Resolve delivery cities and charges offline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.directoryFile != "" {
				cfg.DirectoryFile = c.directoryFile
			}
			c.cfg = cfg

			zc := zap.NewDevelopmentConfig()
			zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if c.verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			c.logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: $CONFIG_FILE)")
	root.PersistentFlags().StringVarP(&c.directoryFile, "file", "f", "", "Directory YAML file (overrides config)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "Geocoder timeout")

	root.AddCommand(
		c.resolveCmd(),
		c.detectCmd(),
		c.estimateCmd(),
		c.locationsCmd(),
	)
	return root
}

func (c *cli) snapshot(ctx context.Context) (directory.Snapshot, error) {
	fs, err := directory.OpenFile(c.cfg.DirectoryFile, c.logger)
	if err != nil {
		return directory.Snapshot{}, err
	}
	return directory.Load(ctx, fs)
}

func (c *cli) resolver() *delivery.Resolver {
	return delivery.NewResolver(c.cfg.ResolverOptions()...)
}

func (c *cli) locationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List serviceable cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap.Locations)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
