package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/gotsim/internal/app"
	"github.com/okian/gotsim/internal/adapters/repository"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given raw files and a sqlite prediction store", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		cfg := testConfig(t)
		writeRaw(t, cfg.Path(cfg.Clean.Input))
		writeProfile(t, cfg.Path(cfg.Featurize.Profile))

		store, err := repository.OpenSQL(cfg.Database.Driver, cfg.Database.DSN, cfg.Score.Features)
		So(err, ShouldBeNil)
		defer store.Close()

		svc, err := service.New(cfg, service.WithStore(store), service.WithLogger(logger.Named("test")))
		So(err, ShouldBeNil)

		Convey("When every step runs in order", func() {
			clean, err := svc.Clean(ctx, cfg.Path(cfg.Clean.Input), cfg.Path(cfg.Clean.Output))
			So(err, ShouldBeNil)
			feats, err := svc.Featurize(ctx, cfg.Path(cfg.Clean.Output), cfg.Path(cfg.Featurize.Profile), cfg.Path(cfg.Featurize.Output))
			So(err, ShouldBeNil)
			dir := cfg.ModelPath("")
			a, ev, err := svc.Train(ctx, cfg.Path(cfg.Featurize.Output), dir)
			So(err, ShouldBeNil)
			scored, err := svc.Score(ctx, dir, cfg.Path(cfg.Score.Output))
			So(err, ShouldBeNil)
			n, err := svc.Publish(ctx, cfg.Path(cfg.Score.Output), true)
			So(err, ShouldBeNil)

			Convey("Then the Martell rows are dropped", func() {
				So(clean.Len(), ShouldEqual, 60)
				So(feats.Len(), ShouldEqual, 60)
			})

			Convey("Then the model and its report are written", func() {
				So(a.RunID, ShouldNotBeEmpty)
				So(ev.Accuracy, ShouldBeBetweenOrEqual, 0, 1)
				_, err := os.Stat(filepath.Join(dir, cfg.Model.Artifact))
				So(err, ShouldBeNil)
				report, err := os.ReadFile(filepath.Join(dir, cfg.Model.Report))
				So(err, ShouldBeNil)
				So(string(report), ShouldContainSubstring, a.RunID)
			})

			Convey("Then every combination is scored and stored", func() {
				So(scored.Len(), ShouldEqual, 2048)
				So(n, ShouldEqual, 2048)
				count, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 2048)
			})

			Convey("Then a lookup returns the scored row", func() {
				preds, err := service.LoadPredictions(cfg.Path(cfg.Score.Output), cfg.Score.Features)
				So(err, ShouldBeNil)
				want := preds[1234]
				got, err := store.Lookup(ctx, want.Features)
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, want.ID)
				So(got.Prediction, ShouldEqual, want.Prediction)
				So(got.Remarks, ShouldEqual, want.Remarks)
			})

			Convey("When publishing the same ids again without truncation", func() {
				_, err := svc.Publish(ctx, cfg.Path(cfg.Score.Output), false)

				Convey("Then the insert is rejected and the table is unchanged", func() {
					So(errors.Is(err, failure.ErrExternal), ShouldBeTrue)
					count, _ := store.Count(ctx)
					So(count, ShouldEqual, 2048)
				})
			})
		})
	})
}
