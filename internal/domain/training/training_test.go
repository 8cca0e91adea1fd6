package training_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/forest"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/internal/domain/training"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func codebook() model.Codebook {
	cb, err := model.NewCodebook(model.DefaultClasses())
	if err != nil {
		panic(err)
	}
	return cb
}

// featureTable returns n rows where the class is Gender + isPopular.
func featureTable(n int) *dataset.Frame {
	f := dataset.New(n)
	cols := map[string][]float64{}
	for _, name := range training.DefaultFeatures() {
		cols[name] = make([]float64, n)
	}
	target := make([]float64, n)
	factions := []string{"HouseBaratheon", "HouseLannister", "HouseStark", "HouseTargaryen", "NightsWatch", "Wildling"}
	for i := 0; i < n; i++ {
		cols["Gender"][i] = float64(i % 2)
		cols["Nobility"][i] = float64(i / 2 % 2)
		cols["boolDeadRelations"][i] = float64(i / 4 % 2)
		cols["isPopular"][i] = float64(i / 8 % 2)
		cols["isMarried"][i] = float64(i / 16 % 2)
		cols[factions[i%len(factions)]][i] = 1
		target[i] = cols["Gender"][i] + cols["isPopular"][i]
	}
	for _, name := range training.DefaultFeatures() {
		_ = f.SetFloats(name, cols[name])
	}
	_ = f.SetFloats("survive_class_id", target)
	return f
}

func smallForest() forest.Params {
	p := forest.DefaultParams()
	p.NEstimators = 15
	p.MaxFeatures = "all"
	return p
}

func TestValidate(t *testing.T) {
	Convey("Given a feature table", t, func() {
		f := featureTable(16)

		Convey("Then a complete table passes", func() {
			So(training.Validate(f, training.DefaultFeatures(), "survive_class_id"), ShouldBeNil)
		})

		Convey("Then a nil table is a type error", func() {
			So(errors.Is(training.Validate(nil, training.DefaultFeatures(), "survive_class_id"), failure.ErrType), ShouldBeTrue)
		})

		Convey("Then missing features are named", func() {
			f.Drop("isMarried", "Wildling")
			err := training.Validate(f, training.DefaultFeatures(), "survive_class_id")
			So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "isMarried Wildling")
		})

		Convey("Then a missing target is a schema error", func() {
			err := training.Validate(f, training.DefaultFeatures(), "survive_class")
			So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
		})

		Convey("Then a single-class target is degenerate", func() {
			_ = f.SetFloats("survive_class_id", make([]float64, f.Len()))
			err := training.Validate(f, training.DefaultFeatures(), "survive_class_id")
			So(errors.Is(err, failure.ErrDegenerate), ShouldBeTrue)
		})
	})
}

func TestSplit(t *testing.T) {
	Convey("Given ten rows", t, func() {
		X := make([][]float64, 10)
		y := make([]int, 10)
		for i := range X {
			X[i] = []float64{float64(i)}
			y[i] = i
		}

		Convey("When splitting with a 0.4 test fraction", func() {
			p, err := training.Split(X, y, 0.4, 12345)
			So(err, ShouldBeNil)

			Convey("Then four rows are held out and every row lands once", func() {
				So(len(p.TestY), ShouldEqual, 4)
				So(len(p.TrainY), ShouldEqual, 6)
				seen := map[int]bool{}
				for _, v := range append(append([]int(nil), p.TestY...), p.TrainY...) {
					seen[v] = true
				}
				So(len(seen), ShouldEqual, 10)
			})

			Convey("Then the same seed gives the same split", func() {
				again, err := training.Split(X, y, 0.4, 12345)
				So(err, ShouldBeNil)
				So(cmp.Diff(p, again), ShouldBeEmpty)
			})
		})

		Convey("Then fractions outside (0,1) are rejected", func() {
			for _, frac := range []float64{0, 1, -0.2, 1.5} {
				_, err := training.Split(X, y, frac, 1)
				So(errors.Is(err, failure.ErrConfig), ShouldBeTrue)
			}
		})

		Convey("Then a single row cannot be split", func() {
			_, err := training.Split(X[:1], y[:1], 0.5, 1)
			So(errors.Is(err, failure.ErrDegenerate), ShouldBeTrue)
		})
	})
}

func TestFit(t *testing.T) {
	Convey("Given training rows", t, func() {
		X := [][]float64{{0, 1}, {1, 0}, {1, 1}, {0, 0}}
		y := []int{0, 1, 2, 0}

		Convey("Then the feature set is compared without order", func() {
			a, err := training.Fit(X, y, []string{"isPopular", "Gender"}, []string{"Gender", "isPopular"}, smallForest(), codebook())
			So(err, ShouldBeNil)
			So(a.Features, ShouldResemble, []string{"isPopular", "Gender"})
			So(a.RunID, ShouldNotBeEmpty)
		})

		Convey("Then feature drift is degenerate", func() {
			_, err := training.Fit(X, y, []string{"Gender", "isMarried"}, []string{"Gender", "isPopular"}, smallForest(), codebook())
			So(errors.Is(err, failure.ErrDegenerate), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "isPopular")
		})

		Convey("Then labels outside the codebook are lookup errors", func() {
			_, err := training.Fit(X, []int{0, 1, 9, 0}, []string{"a", "b"}, []string{"a", "b"}, smallForest(), codebook())
			So(errors.Is(err, failure.ErrLookup), ShouldBeTrue)
		})
	})
}

func TestTrain(t *testing.T) {
	ctx := context.Background()

	Convey("Given a learnable feature table", t, func() {
		tr := training.New(training.DefaultFeatures(), codebook(), training.WithParams(smallForest()), training.WithRunID("run-1"))
		a, ev, err := tr.Train(ctx, featureTable(96))
		So(err, ShouldBeNil)

		Convey("Then the artifact records the trained feature order and codebook", func() {
			So(a.Features, ShouldResemble, training.DefaultFeatures())
			So(a.RunID, ShouldEqual, "run-1")
			So(a.Target, ShouldEqual, "survive_class_id")
			So(len(a.Classes), ShouldEqual, 3)
		})

		Convey("Then the held-out rows are classified", func() {
			So(ev.Accuracy, ShouldBeGreaterThan, 0.9)
			total := 0
			for _, row := range ev.Confusion {
				for _, n := range row {
					total += n
				}
			}
			So(total, ShouldEqual, 39) // ceil(96*0.4)
		})

		Convey("Then the report is labelled by bucket", func() {
			report := ev.Report(codebook())
			So(report, ShouldStartWith, "Accuracy on test: ")
			So(report, ShouldContainSubstring, "Confusion Matrix:")
			So(report, ShouldContainSubstring, "Predicted gt200")
			So(report, ShouldContainSubstring, "Actual 0-100")
		})

		Convey("Then training again with the same seed gives the same trees", func() {
			again, _, err := tr.Train(ctx, featureTable(96))
			So(err, ShouldBeNil)
			So(cmp.Diff(a.Forest.Trees, again.Forest.Trees), ShouldBeEmpty)
		})

		Convey("When the artifact is saved and loaded", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "model", "rf_model.json")
			So(training.SaveArtifact(path, a), ShouldBeNil)
			So(training.WriteReport(filepath.Join(dir, "model", "performance_metrics.txt"), ev.Report(codebook())), ShouldBeNil)
			back, err := training.LoadArtifact(path)
			So(err, ShouldBeNil)

			Convey("Then it predicts like the trained model", func() {
				X, _ := featureTable(12).Matrix(back.Features)
				want, _ := a.Predict(X)
				got, err := back.Predict(X)
				So(err, ShouldBeNil)
				So(cmp.Diff(want, got), ShouldBeEmpty)
			})

			Convey("Then a tampered version is rejected", func() {
				raw, _ := os.ReadFile(path)
				_ = os.WriteFile(path, []byte(strings.Replace(string(raw), `"version":1`, `"version":9`, 1)), 0o600)
				_, err := training.LoadArtifact(path)
				So(errors.Is(err, failure.ErrExternal), ShouldBeTrue)
			})
		})
	})

	Convey("Given a missing artifact file", t, func() {
		_, err := training.LoadArtifact(filepath.Join(t.TempDir(), "missing.json"))
		So(errors.Is(err, failure.ErrExternal), ShouldBeTrue)
	})

	Convey("Given a table missing a faction column", t, func() {
		f := featureTable(24)
		f.Drop("Wildling")
		_, _, err := training.New(training.DefaultFeatures(), codebook()).Train(ctx, f)
		So(errors.Is(err, failure.ErrSchema), ShouldBeTrue)
	})
}
