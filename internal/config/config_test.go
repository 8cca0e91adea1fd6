package config_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/gotsim/internal/config"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigDefaults(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the five books are configured in order", func() {
			counts, err := cfg.ChapterCounts()
			convey.So(err, convey.ShouldBeNil)
			convey.So(counts.Installments(), convey.ShouldEqual, 5)
			cols := cfg.CleaningColumns()
			convey.So(cols.Flags, convey.ShouldResemble, []string{"GoT", "CoK", "SoS", "FfC", "DwD"})
			fcols := cfg.FeatureColumns()
			convey.So(fcols.Survival[4], convey.ShouldEqual, "DwD_chapters")
			convey.So(fcols.Faction, convey.ShouldEqual, "Allegiance")
		})

		convey.Convey("Then the scorer and the model agree on features", func() {
			convey.So(cfg.Score.Features, convey.ShouldResemble, cfg.Model.Features)
			convey.So(cfg.Score.MaxFeatures, convey.ShouldEqual, 20)
		})

		convey.Convey("Then relative paths resolve under the data dir", func() {
			convey.So(cfg.Path("clean_base.csv"), convey.ShouldEqual, filepath.Join("data", "clean_base.csv"))
			convey.So(cfg.Path("/tmp/x.csv"), convey.ShouldEqual, "/tmp/x.csv")
			convey.So(cfg.ModelPath("rf_model.json"), convey.ShouldEqual, filepath.Join("data", "models", "rf_model.json"))
		})

		convey.Convey("Then no aliases means the cleaner keeps its own", func() {
			convey.So(cfg.Aliases(), convey.ShouldBeNil)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a config", t, func() {
		cfg := config.New(ctx)

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"unknown log level", func(c *config.Config) { c.LogLevel = "loud" }},
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"gap in installments", func(c *config.Config) { c.Installments = c.Installments[1:] }},
			{"repeated installment", func(c *config.Config) { c.Installments[1].Number = 1 }},
			{"missing flag column", func(c *config.Config) { c.Installments[0].Flag = "" }},
			{"duplicate class code", func(c *config.Config) { c.Classes[1].Code = 0 }},
			{"inverted thresholds", func(c *config.Config) { c.Featurize.LowMax = 300 }},
			{"test fraction of one", func(c *config.Config) { c.Model.TestFraction = 1 }},
			{"no model features", func(c *config.Config) { c.Model.Features = nil }},
			{"no trees", func(c *config.Config) { c.Model.Forest.NEstimators = 0 }},
			{"zero feature cap", func(c *config.Config) { c.Score.MaxFeatures = 0 }},
			{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }},
			{"table with a quote", func(c *config.Config) { c.Database.Table = `x"; drop` }},
		}
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it is a config error", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(errors.Is(err, failure.ErrConfig), convey.ShouldBeTrue)
					convey.So(failure.ExitCode(err), convey.ShouldEqual, 2)
				})
			})
		}
	})
}

func TestConfigMarshal(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		out, err := config.New(context.Background()).Marshal()

		convey.Convey("Then it renders as YAML with koanf key names", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldContainSubstring, "test_fraction: 0.4")
			convey.So(string(out), convey.ShouldContainSubstring, "table: got_prediction")
		})
	})
}
