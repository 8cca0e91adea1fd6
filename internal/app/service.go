// Package service runs the pipeline steps against files on disk. Each step
// reads its input, runs one domain stage, writes its output and records
// stage metrics; the CLI and the integration tests drive it.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/gotsim/internal/config"
	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/cleaning"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/features"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/internal/domain/scoring"
	"github.com/okian/gotsim/internal/domain/training"
	"github.com/okian/gotsim/pkg/logger"
	"github.com/okian/gotsim/pkg/metrics"
)

// Stage names used in logs and metric labels.
const (
	StageClean     = "clean"
	StageFeaturize = "featurize"
	StageTrain     = "train"
	StageScore     = "score"
	StagePublish   = "publish"
	StageUpload    = "upload"
	StageDownload  = "download"
)

// Store is the prediction table Publish writes to.
type Store interface {
	Replace(ctx context.Context, preds []model.Prediction, truncate bool) error
	Count(ctx context.Context) (int, error)
}

// migrator is implemented by stores that own a schema.
type migrator interface {
	Migrate(ctx context.Context) error
}

// Transfer moves raw files between the data directory and object storage.
type Transfer interface {
	UploadDir(ctx context.Context, dir string) ([]string, error)
	Download(ctx context.Context, names []string, dir string) error
}

// Service runs pipeline steps with one configuration.
type Service struct {
	cfg      *config.Config
	counts   model.ChapterCounts
	codebook model.Codebook

	store    Store
	transfer Transfer

	logger  logger.Logger
	metrics *metrics.Manager
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager stage results are recorded on.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithStore sets the prediction store used by Publish.
func WithStore(st Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithTransfer sets the object storage used by Upload and Download.
func WithTransfer(t Transfer) Option {
	return func(s *Service) {
		s.transfer = t
	}
}

// New creates a Service. cfg must already be validated; the chapter counts
// and codebook are derived from it once here.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	counts, err := cfg.ChapterCounts()
	if err != nil {
		return nil, err
	}
	cb, err := cfg.Codebook()
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		counts:   counts,
		codebook: cb,
		logger:   logger.Nop(),
		metrics:  metrics.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration the service runs with.
func (s *Service) Config() *config.Config { return s.cfg }

// Clean reads the raw character table from in and writes the cleaned base
// table to out.
func (s *Service) Clean(ctx context.Context, in, out string) (*dataset.Frame, error) {
	start := time.Now()
	cols := s.cfg.Columns
	raw, err := dataset.LoadCSV(in, dataset.CSVOptions{
		StringColumns: []string{cols.Name, cols.Affiliation},
		Required:      []string{cols.Affiliation},
	})
	if err != nil {
		return nil, s.fail(ctx, StageClean, err)
	}

	c := cleaning.New(s.counts,
		cleaning.WithColumns(s.cfg.CleaningColumns()),
		cleaning.WithAliases(s.cfg.Aliases()),
		cleaning.WithLogger(s.logger),
	)
	clean, err := c.Clean(ctx, raw)
	if err != nil {
		return nil, s.fail(ctx, StageClean, err)
	}
	if err := dataset.SaveCSV(out, clean); err != nil {
		return nil, s.fail(ctx, StageClean, err)
	}

	s.metrics.RecordDropped(StageClean, "faction", raw.Len()-clean.Len())
	s.done(ctx, StageClean, raw.Len(), clean.Len(), start, logger.String("output", out))
	return clean, nil
}

// Featurize joins the cleaned base table in with the profile table and
// writes the feature table to out.
func (s *Service) Featurize(ctx context.Context, in, profile, out string) (*dataset.Frame, error) {
	start := time.Now()
	cols := s.cfg.Columns
	base, err := dataset.LoadCSV(in, dataset.CSVOptions{
		StringColumns: []string{cols.Name, cols.Affiliation, cols.Consolidated},
		Required:      []string{cols.Name, cols.Consolidated},
	})
	if err != nil {
		return nil, s.fail(ctx, StageFeaturize, err)
	}
	aux, err := dataset.LoadCSV(profile, dataset.CSVOptions{
		StringColumns: []string{s.cfg.Featurize.ProfileKey},
		Required:      []string{s.cfg.Featurize.ProfileKey},
	})
	if err != nil {
		return nil, s.fail(ctx, StageFeaturize, err)
	}

	fz := features.New(s.counts, s.codebook,
		features.WithColumns(s.cfg.FeatureColumns()),
		features.WithThresholds(s.cfg.Thresholds()),
		features.WithLogger(s.logger),
	)
	feats, err := fz.Featurize(ctx, base, aux)
	if err != nil {
		return nil, s.fail(ctx, StageFeaturize, err)
	}
	if err := dataset.SaveCSV(out, feats); err != nil {
		return nil, s.fail(ctx, StageFeaturize, err)
	}

	s.metrics.RecordDropped(StageFeaturize, "survival", base.Len()-feats.Len())
	s.done(ctx, StageFeaturize, base.Len(), feats.Len(), start, logger.String("output", out))
	return feats, nil
}

// Train fits the model on the feature table in and writes the artifact and
// the performance report into dir.
func (s *Service) Train(ctx context.Context, in, dir string) (*training.Artifact, training.Evaluation, error) {
	start := time.Now()
	f, err := dataset.LoadCSV(in, dataset.CSVOptions{
		StringColumns: []string{s.cfg.Columns.Name, s.cfg.Columns.Affiliation, s.cfg.Columns.Consolidated, s.cfg.Featurize.Label},
		Required:      []string{s.cfg.Featurize.Target},
	})
	if err != nil {
		return nil, training.Evaluation{}, s.fail(ctx, StageTrain, err)
	}

	t := training.New(s.cfg.Model.Features, s.codebook,
		training.WithParams(s.cfg.Model.Forest),
		training.WithTestFraction(s.cfg.Model.TestFraction),
		training.WithTarget(s.cfg.Featurize.Target),
		training.WithLogger(s.logger),
	)
	a, ev, err := t.Train(ctx, f)
	if err != nil {
		return nil, training.Evaluation{}, s.fail(ctx, StageTrain, err)
	}

	if err := training.SaveArtifact(filepath.Join(dir, s.cfg.Model.Artifact), a); err != nil {
		return nil, training.Evaluation{}, s.fail(ctx, StageTrain, err)
	}
	report := fmt.Sprintf("run %s\n\n%s", a.RunID, ev.Report(s.codebook))
	if err := training.WriteReport(filepath.Join(dir, s.cfg.Model.Report), report); err != nil {
		return nil, training.Evaluation{}, s.fail(ctx, StageTrain, err)
	}

	s.metrics.SetModelAccuracy(ev.Accuracy)
	s.done(ctx, StageTrain, f.Len(), f.Len(), start,
		logger.String("runID", a.RunID),
		logger.Float64("accuracy", ev.Accuracy),
		logger.String("dir", dir),
	)
	return a, ev, nil
}

// Score loads the artifact from dir, scores every feature combination and
// writes the offline score table to out.
func (s *Service) Score(ctx context.Context, dir, out string) (*dataset.Frame, error) {
	start := time.Now()
	a, err := training.LoadArtifact(filepath.Join(dir, s.cfg.Model.Artifact))
	if err != nil {
		return nil, s.fail(ctx, StageScore, err)
	}

	sc := scoring.New(s.cfg.Score.Features,
		scoring.WithMaxFeatures(s.cfg.Score.MaxFeatures),
		scoring.WithLogger(s.logger),
	)
	f, err := sc.Run(ctx, a)
	if err != nil {
		return nil, s.fail(ctx, StageScore, err)
	}
	if err := dataset.SaveCSV(out, f); err != nil {
		return nil, s.fail(ctx, StageScore, err)
	}

	s.metrics.SetOfflineRows(f.Len())
	s.done(ctx, StageScore, 0, f.Len(), start, logger.String("runID", a.RunID), logger.String("output", out))
	return f, nil
}

// Publish loads the offline score table from in and writes it to the store.
// truncate empties the table first; otherwise rows are appended.
func (s *Service) Publish(ctx context.Context, in string, truncate bool) (int, error) {
	start := time.Now()
	if s.store == nil {
		return 0, s.fail(ctx, StagePublish, fmt.Errorf("%w: no prediction store configured", failure.ErrConfig))
	}
	preds, err := LoadPredictions(in, s.cfg.Score.Features)
	if err != nil {
		return 0, s.fail(ctx, StagePublish, err)
	}
	if m, ok := s.store.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			return 0, s.fail(ctx, StagePublish, err)
		}
	}
	if err := s.store.Replace(ctx, preds, truncate); err != nil {
		return 0, s.fail(ctx, StagePublish, err)
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, s.fail(ctx, StagePublish, err)
	}
	s.metrics.SetStoreRecords(n)
	s.done(ctx, StagePublish, len(preds), len(preds), start, logger.Int("records", n), logger.Bool("truncate", truncate))
	return len(preds), nil
}

// LoadPredictions reads an offline score table as store rows keyed by features.
func LoadPredictions(path string, features []string) ([]model.Prediction, error) {
	required := append([]string{scoring.ColumnID, scoring.ColumnScore, scoring.ColumnPrediction, scoring.ColumnRemarks}, features...)
	f, err := dataset.LoadCSV(path, dataset.CSVOptions{
		StringColumns: []string{scoring.ColumnPrediction, scoring.ColumnRemarks},
		Required:      required,
	})
	if err != nil {
		return nil, err
	}
	return scoring.Predictions(f, features)
}

// Upload copies every regular file of dir to object storage.
func (s *Service) Upload(ctx context.Context, dir string) ([]string, error) {
	start := time.Now()
	if s.transfer == nil {
		return nil, s.fail(ctx, StageUpload, fmt.Errorf("%w: no object storage configured", failure.ErrConfig))
	}
	keys, err := s.transfer.UploadDir(ctx, dir)
	if err != nil {
		return nil, s.fail(ctx, StageUpload, err)
	}
	s.done(ctx, StageUpload, len(keys), len(keys), start, logger.Strings("keys", keys))
	return keys, nil
}

// Download fetches the configured raw files into dir.
func (s *Service) Download(ctx context.Context, dir string) error {
	start := time.Now()
	if s.transfer == nil {
		return s.fail(ctx, StageDownload, fmt.Errorf("%w: no object storage configured", failure.ErrConfig))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.fail(ctx, StageDownload, fmt.Errorf("%w: %w", failure.ErrExternal, err))
	}
	names := s.cfg.S3.Files
	if err := s.transfer.Download(ctx, names, dir); err != nil {
		return s.fail(ctx, StageDownload, err)
	}
	s.done(ctx, StageDownload, len(names), len(names), start, logger.String("dir", dir))
	return nil
}

// FlushMetrics writes the metrics textfile when one is configured.
func (s *Service) FlushMetrics(ctx context.Context) {
	path := s.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := s.metrics.WriteToTextfile(path); err != nil {
		s.logger.Warn(ctx, "failed to write metrics textfile", logger.String("path", path), logger.Error(err))
	}
}

func (s *Service) done(ctx context.Context, stage string, in, out int, start time.Time, fields ...logger.Field) {
	d := time.Since(start)
	s.metrics.RecordStage(stage, in, out, d)
	fields = append([]logger.Field{
		logger.String("stage", stage),
		logger.Int("rowsIn", in),
		logger.Int("rowsOut", out),
		logger.Duration("took", d),
	}, fields...)
	s.logger.Info(ctx, "step completed", fields...)
}

func (s *Service) fail(ctx context.Context, stage string, err error) error {
	code := failure.Classify(err)
	s.metrics.RecordStageError(stage, string(code))
	s.logger.Error(ctx, "step failed",
		logger.String("stage", stage),
		logger.String("kind", string(code)),
		logger.Error(err),
	)
	return fmt.Errorf("%s: %w", stage, err)
}
