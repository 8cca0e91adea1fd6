package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/gotsim/internal/adapters/objectstore"
	service "github.com/okian/gotsim/internal/app"
	"github.com/okian/gotsim/internal/config"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/pkg/logger"
	"github.com/okian/gotsim/pkg/metrics"
	"github.com/spf13/cobra"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// cli holds state shared by every subcommand once the root pre-run loaded
// the configuration.
type cli struct {
	stdout, stderr io.Writer

	configPath string
	logFile    string

	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Manager
	logOut  *os.File
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{stdout: stdout, stderr: stderr, metrics: metrics.Default()}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "gotsim",
		Short: "Game of Thrones character survival pipeline",
		Long: `gotsim cleans the character tables, builds features, trains a survival
classifier, scores every attribute combination offline and serves the
resulting predictions.

Steps, in pipeline order:
  download   fetch the raw tables from S3
  clean      consolidate affiliations and impute chapters
  featurize  derive survival features and merge character profiles
  model      train and evaluate the classifier
  score      score every binary attribute combination
  create-db  load the offline scores into the prediction store
  serve      run the lookup web view`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&c.logFile, "lfp", "", "also write logs to this file")

	root.AddCommand(
		c.uploadCommand(),
		c.downloadCommand(),
		c.cleanCommand(),
		c.featurizeCommand(),
		c.modelCommand(),
		c.scoreCommand(),
		c.createDBCommand(),
		c.serveCommand(),
		c.probeCommand(),
		c.configCommand(),
	)
	return root
}

// setup loads the configuration and initializes logging.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	out := c.stderr
	path := c.logFile
	if path == "" {
		path = cfg.LogFile
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("%w: log file: %v", failure.ErrExternal, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("%w: log file: %v", failure.ErrExternal, err)
		}
		c.logOut = f
		out = io.MultiWriter(c.stderr, f)
	}
	if err := logger.Init(logger.WithWriter(out)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	// Validate already rejected unknown levels.
	_ = logger.SetLevelString(cfg.LogLevel)
	c.log = logger.Named(cmd.Name())
	return nil
}

func (c *cli) close() {
	if c.logOut != nil {
		_ = c.logOut.Close()
		c.logOut = nil
	}
}

// service builds a pipeline service with the given extra options.
func (c *cli) service(opts ...service.Option) (*service.Service, error) {
	opts = append([]service.Option{service.WithLogger(c.log), service.WithMetrics(c.metrics)}, opts...)
	return service.New(c.cfg, opts...)
}

// transfer connects to the configured bucket.
func (c *cli) transfer(cmd *cobra.Command) (*objectstore.S3Transfer, error) {
	return objectstore.NewS3Transfer(cmd.Context(), objectstore.Config{
		Bucket:   c.cfg.S3.Bucket,
		Region:   c.cfg.S3.Region,
		Prefix:   c.cfg.S3.Prefix,
		Endpoint: c.cfg.S3.Endpoint,
	}, objectstore.WithLogger(c.log))
}

// orDefault returns flag unless it is empty.
func orDefault(flag, def string) string {
	if flag != "" {
		return flag
	}
	return def
}
