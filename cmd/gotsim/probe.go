package main

import (
	"fmt"
	"time"

	"github.com/okian/gotsim/internal/adapters/http/api"
	"github.com/okian/gotsim/internal/probe"
	"github.com/spf13/cobra"
)

func (c *cli) probeCommand() *cobra.Command {
	cfg := probe.Config{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check a running lookup service against the offline score table",
		Long: `Look up every row of the offline score table that the JSON API can
express and compare the returned class, label and remark.

Examples:
  gotsim probe --url http://localhost:5000
  gotsim probe --url http://localhost:5000 --input data/offline_score.csv --workers 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Input = orDefault(cfg.Input, c.cfg.Path(c.cfg.Score.Output))
			cfg.Inputs = api.DefaultInputs()
			p := probe.New(cfg, probe.WithLogger(c.log), probe.WithMetrics(c.metrics))
			report, err := p.Run(cmd.Context())
			if report != nil {
				fmt.Fprintf(c.stdout, "run %s: %d checked, %d matched, %d mismatched, %d missing, %d failed, %d skipped\n",
					report.RunID, report.Checked, report.Matched, report.Mismatched, report.Missing, report.Failed, report.Skipped)
				for _, m := range report.Mismatches {
					fmt.Fprintf(c.stdout, "  id %d %s: %s %s\n", m.ID, m.Query, m.Result, m.Detail)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:5000", "base URL of the lookup service")
	cmd.Flags().StringVar(&cfg.Input, "input", "", "offline score table (default score.output)")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 0, "concurrent lookups (default CPU cores * 2)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	return cmd
}
