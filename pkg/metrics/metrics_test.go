package metrics

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// sample returns the value of the series name{labels} and whether it exists.
func sample(t *testing.T, g prometheus.Gatherer, name string, labels ...string) (float64, bool) {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue(), true
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue(), true
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount()), true
			}
		}
	}
	return 0, false
}

func hasLabels(m *dto.Metric, pairs []string) bool {
	for i := 0; i+1 < len(pairs); i += 2 {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == pairs[i] && lp.GetValue() == pairs[i+1] {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels follow the options", func() {
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
				manager.SetOfflineRows(2048)
				v, ok := sample(t, registry, "test_unit_x_offline_score_rows", "env", "test")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 2048)
			})
		})

		Convey("When two managers use separate registries", func() {
			So(func() {
				NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
				NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
			}, ShouldNotPanic)
		})
	})
}

func TestStageMetrics(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("When a stage finishes", func() {
			m.RecordStage("clean", 10, 6, 250*time.Millisecond)
			m.RecordDropped("clean", "faction", 4)
			m.RecordDropped("clean", "negative", 0)

			Convey("Then rows in, out and dropped are counted", func() {
				in, _ := sample(t, registry, "gotsim_pipeline_stage_rows_total", "stage", "clean", "direction", "in")
				out, _ := sample(t, registry, "gotsim_pipeline_stage_rows_total", "stage", "clean", "direction", "out")
				dropped, _ := sample(t, registry, "gotsim_pipeline_stage_rows_dropped_total", "reason", "faction")
				_, zero := sample(t, registry, "gotsim_pipeline_stage_rows_dropped_total", "reason", "negative")
				last, _ := sample(t, registry, "gotsim_pipeline_stage_last_success_unix", "stage", "clean")
				So(in, ShouldEqual, 10)
				So(out, ShouldEqual, 6)
				So(dropped, ShouldEqual, 4)
				So(zero, ShouldBeFalse)
				So(last, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the store and lookups are used", func() {
			m.RecordStoreWrite(2048, time.Second)
			m.RecordLookup("hit")
			m.RecordLookup("hit")
			m.RecordLookup("miss")

			Convey("Then their counters move", func() {
				writes, _ := sample(t, registry, "gotsim_pipeline_store_writes_total")
				hits, _ := sample(t, registry, "gotsim_pipeline_lookups_total", "result", "hit")
				misses, _ := sample(t, registry, "gotsim_pipeline_lookups_total", "result", "miss")
				So(writes, ShouldEqual, 2048)
				So(hits, ShouldEqual, 2)
				So(misses, ShouldEqual, 1)
			})
		})

		Convey("When metrics are exported", func() {
			m.SetModelAccuracy(0.75)

			Convey("Then the handler serves them", func() {
				rec := httptest.NewRecorder()
				m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
				So(rec.Code, ShouldEqual, 200)
				So(rec.Body.String(), ShouldContainSubstring, "gotsim_pipeline_model_test_accuracy 0.75")
			})

			Convey("Then the textfile holds them", func() {
				path := filepath.Join(t.TempDir(), "gotsim.prom")
				So(m.WriteToTextfile(path), ShouldBeNil)
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.Contains(string(b), "gotsim_pipeline_model_test_accuracy"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry), WithMetricsEnabled(false))
		m.RecordStage("clean", 1, 1, time.Millisecond)
		m.SetModelAccuracy(1)

		Convey("Then nothing is recorded", func() {
			acc, _ := sample(t, registry, "gotsim_pipeline_model_test_accuracy")
			_, ok := sample(t, registry, "gotsim_pipeline_stage_rows_total")
			So(acc, ShouldEqual, 0)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestGlobalRegistry(t *testing.T) {
	Convey("Given the process-wide manager", t, func() {
		So(Default(), ShouldNotBeNil)
		So(GetRegistry(), ShouldNotBeNil)
		Default().RecordProbe("match")
		v, ok := sample(t, GetRegistry(), "gotsim_pipeline_probe_checks_total", "result", "match")
		So(ok, ShouldBeTrue)
		So(v, ShouldBeGreaterThanOrEqualTo, 1)
	})
}
