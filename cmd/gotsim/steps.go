package main

import (
	"fmt"

	service "github.com/okian/gotsim/internal/app"
	"github.com/okian/gotsim/internal/adapters/repository"
	"github.com/spf13/cobra"
)

// stepFlags are the file flags shared by the pipeline steps.
type stepFlags struct {
	input   string
	profile string
	output  string
}

func (f *stepFlags) bind(cmd *cobra.Command, input, output string) {
	if input != "" {
		cmd.Flags().StringVar(&f.input, "input", "", input)
	}
	if output != "" {
		cmd.Flags().StringVar(&f.output, "output", "", output)
	}
}

// step wraps a pipeline step so the metrics textfile is written whether or
// not it succeeded.
func (c *cli) step(fn func(cmd *cobra.Command, svc *service.Service) error, opts ...func(*cobra.Command) (service.Option, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		extra := make([]service.Option, 0, len(opts))
		for _, opt := range opts {
			o, err := opt(cmd)
			if err != nil {
				return err
			}
			extra = append(extra, o)
		}
		svc, err := c.service(extra...)
		if err != nil {
			return err
		}
		defer svc.FlushMetrics(cmd.Context())
		return fn(cmd, svc)
	}
}

func (c *cli) withTransfer(cmd *cobra.Command) (service.Option, error) {
	t, err := c.transfer(cmd)
	if err != nil {
		return nil, err
	}
	return service.WithTransfer(t), nil
}

func (c *cli) uploadCommand() *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the raw data directory to S3",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd, "directory to upload (default data_dir)", "")
	cmd.RunE = c.step(func(cmd *cobra.Command, svc *service.Service) error {
		keys, err := svc.Upload(cmd.Context(), orDefault(f.input, c.cfg.DataDir))
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintf(c.stdout, "s3://%s/%s\n", c.cfg.S3.Bucket, k)
		}
		return nil
	}, c.withTransfer)
	return cmd
}

func (c *cli) downloadCommand() *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the raw tables from S3",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd, "", "directory to download into (default data_dir)")
	cmd.RunE = c.step(func(cmd *cobra.Command, svc *service.Service) error {
		return svc.Download(cmd.Context(), orDefault(f.output, c.cfg.DataDir))
	}, c.withTransfer)
	return cmd
}

func (c *cli) cleanCommand() *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the raw character table",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd, "raw character-deaths table", "cleaned base table")
	cmd.RunE = c.step(func(cmd *cobra.Command, svc *service.Service) error {
		_, err := svc.Clean(cmd.Context(),
			orDefault(f.input, c.cfg.Path(c.cfg.Clean.Input)),
			orDefault(f.output, c.cfg.Path(c.cfg.Clean.Output)))
		return err
	})
	return cmd
}

func (c *cli) featurizeCommand() *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "featurize",
		Short: "Build the feature table from the cleaned base and profile tables",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd, "cleaned base table", "feature table")
	cmd.Flags().StringVar(&f.profile, "input-profile", "", "character profile table")
	cmd.RunE = c.step(func(cmd *cobra.Command, svc *service.Service) error {
		_, err := svc.Featurize(cmd.Context(),
			orDefault(f.input, c.cfg.Path(c.cfg.Clean.Output)),
			orDefault(f.profile, c.cfg.Path(c.cfg.Featurize.Profile)),
			orDefault(f.output, c.cfg.Path(c.cfg.Featurize.Output)))
		return err
	})
	return cmd
}

func (c *cli) modelCommand() *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Train and evaluate the survival classifier",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd, "feature table", "model directory for the artifact and report")
	cmd.RunE = c.step(func(cmd *cobra.Command, svc *service.Service) error {
		a, ev, err := svc.Train(cmd.Context(),
			orDefault(f.input, c.cfg.Path(c.cfg.Featurize.Output)),
			orDefault(f.output, c.cfg.ModelPath("")))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "run %s accuracy %.4f\n", a.RunID, ev.Accuracy)
		return nil
	})
	return cmd
}

func (c *cli) scoreCommand() *cobra.Command {
	var f stepFlags
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score every attribute combination with the trained model",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd, "model directory", "offline score table")
	cmd.RunE = c.step(func(cmd *cobra.Command, svc *service.Service) error {
		_, err := svc.Score(cmd.Context(),
			orDefault(f.input, c.cfg.ModelPath("")),
			orDefault(f.output, c.cfg.Path(c.cfg.Score.Output)))
		return err
	})
	return cmd
}

func (c *cli) createDBCommand() *cobra.Command {
	var (
		f        stepFlags
		truncate bool
		store    *repository.SQLStore
	)
	cmd := &cobra.Command{
		Use:   "create-db",
		Short: "Create the prediction table and load the offline scores",
		Args:  cobra.NoArgs,
	}
	f.bind(cmd, "offline score table", "")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "delete existing rows before loading (default database.truncate)")
	cmd.RunE = c.step(func(cmd *cobra.Command, svc *service.Service) error {
		defer func() { _ = store.Close() }()
		if !cmd.Flags().Changed("truncate") {
			truncate = c.cfg.Database.Truncate
		}
		n, err := svc.Publish(cmd.Context(), orDefault(f.input, c.cfg.Path(c.cfg.Score.Output)), truncate)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%d predictions written to %s\n", n, c.cfg.Database.Table)
		return nil
	}, func(cmd *cobra.Command) (service.Option, error) {
		s, err := c.openStore()
		if err != nil {
			return nil, err
		}
		store = s
		return service.WithStore(s), nil
	})
	return cmd
}

// openStore opens the configured SQL prediction store.
func (c *cli) openStore() (*repository.SQLStore, error) {
	return repository.OpenSQL(c.cfg.Database.Driver, c.cfg.Database.DSN, c.cfg.Score.Features,
		repository.WithTable(c.cfg.Database.Table),
		repository.WithLogger(c.log),
		repository.WithMetrics(c.metrics),
	)
}
