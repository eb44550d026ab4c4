// Command patchwork replays recorded inference batches into a subject store
// and inspects what was stored.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/patchwork"
	"github.com/arloliu/patchwork/internal/logging"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool

	// Writer overrides; empty values keep the config file's settings.
	backend    string
	sqlitePath string
	natsURL    string
	bucket     string

	zl     *zap.Logger
	logger *logging.ZapLogger
	cfg    *patchwork.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "patchwork",
		Short: "Reassemble per-patch predictions into per-subject arrays",
		Long: `patchwork stitches model outputs computed on patches back into whole
subjects and stores each subject as soon as it is complete.

Subcommands:
  replay  - Feed recorded batches (JSON lines) through the assembly pipeline
  inspect - List and summarize stored subject entries`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.zl != nil {
				_ = c.zl.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML configuration file")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&c.backend, "backend", "", "writer backend: memory, sqlite or nats")
	flags.StringVar(&c.sqlitePath, "sqlite-path", "", "database file for the sqlite backend")
	flags.StringVar(&c.natsURL, "nats-url", "", "server URL for the nats backend")
	flags.StringVar(&c.bucket, "bucket", "", "object store bucket for the nats backend")

	root.AddCommand(newReplayCmd(c), newInspectCmd(c))

	return root
}

// setup loads configuration and builds the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	zcfg := zap.NewProductionConfig()
	if c.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zl, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.zl = zl
	c.logger = logging.NewZap(zl)

	cfg := patchwork.DefaultConfig()
	if c.configPath != "" {
		loaded, err := patchwork.LoadConfig(c.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Writer.Backend = c.backend
	}
	if flags.Changed("sqlite-path") {
		cfg.Writer.SQLitePath = c.sqlitePath
	}
	if flags.Changed("nats-url") {
		cfg.Writer.NATSURL = c.natsURL
	}
	if flags.Changed("bucket") {
		cfg.Writer.Bucket = c.bucket
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.ValidateWithWarnings(c.logger)
	c.cfg = &cfg

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
