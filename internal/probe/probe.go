// Package probe checks a running lookup service against the offline score
// table it was loaded from. Every row the JSON API can express is looked up
// concurrently and the returned class, label and remark are compared.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gotsim/internal/dataset"
	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/internal/domain/scoring"
	"github.com/okian/gotsim/pkg/logger"
	"github.com/okian/gotsim/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	allegianceParam = "Allegiance"
	lookupPath      = "/api/v1/predictions"
	healthPath      = "/healthz"
)

// Prober runs probe checks.
type Prober struct {
	cfg     Config
	client  *http.Client
	logger  logger.Logger
	metrics *metrics.Manager
}

// Option configures a Prober.
type Option func(*Prober)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics manager probe results are counted on.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Prober) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) {
		if c != nil {
			p.client = c
		}
	}
}

// New creates a Prober.
func New(cfg Config, opts ...Option) *Prober {
	cfg = cfg.withDefaults()
	p := &Prober{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.Nop(),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// check is one lookup the service is expected to answer with want.
type check struct {
	query url.Values
	want  model.Prediction
}

// Run executes the probe. A non-nil report is returned whenever the score
// table could be read, even when the comparison fails.
func (p *Prober) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartTime: time.Now()}
	log := p.logger.Named("probe")

	log.Info(ctx, "starting probe",
		logger.String("runID", report.RunID),
		logger.String("baseURL", p.cfg.BaseURL),
		logger.String("input", p.cfg.Input),
		logger.Int("workers", p.cfg.Workers),
	)

	checks, rows, err := p.load()
	if err != nil {
		return nil, err
	}
	report.Rows = rows
	report.Skipped = rows - len(checks)
	if len(checks) == 0 {
		return report, fmt.Errorf("%w: %w: %s has no row the lookup API can express", ErrNoRows, failure.ErrDegenerate, p.cfg.Input)
	}

	if err := p.checkHealth(ctx); err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, c := range checks {
		g.Go(func() error {
			res, detail := p.lookup(gctx, c)
			p.metrics.RecordProbe(string(res))

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			switch res {
			case ResultMatch:
				report.Matched++
				return nil
			case ResultMismatch:
				report.Mismatched++
			case ResultMissing:
				report.Missing++
			default:
				report.Failed++
			}
			if len(report.Mismatches) < p.cfg.MaxMismatches {
				report.Mismatches = append(report.Mismatches, Mismatch{
					ID: c.want.ID, Query: c.query.Encode(), Result: res, Detail: detail,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	sort.Slice(report.Mismatches, func(i, j int) bool { return report.Mismatches[i].ID < report.Mismatches[j].ID })
	report.Duration = time.Since(report.StartTime)

	log.Info(ctx, "probe finished",
		logger.String("runID", report.RunID),
		logger.Int("rows", report.Rows),
		logger.Int("skipped", report.Skipped),
		logger.Int("checked", report.Checked),
		logger.Int("matched", report.Matched),
		logger.Int("mismatched", report.Mismatched),
		logger.Int("missing", report.Missing),
		logger.Int("failed", report.Failed),
		logger.Duration("took", report.Duration),
	)
	if !report.OK() {
		return report, fmt.Errorf("%w: %w: %d of %d rows differ",
			ErrMismatch, failure.ErrLookup, report.Checked-report.Matched, report.Checked)
	}
	return report, nil
}

// load reads the score table and turns every expressible row into a check.
// Rows sharing a query keep the lowest id, which is what the service returns.
func (p *Prober) load() ([]check, int, error) {
	features := append([]string(nil), p.cfg.Inputs...)
	for _, f := range model.Factions() {
		features = append(features, string(f))
	}
	f, err := dataset.LoadCSV(p.cfg.Input, dataset.CSVOptions{
		StringColumns: []string{scoring.ColumnPrediction, scoring.ColumnRemarks},
		Required:      append([]string{scoring.ColumnID, scoring.ColumnScore}, features...),
	})
	if err != nil {
		return nil, 0, err
	}
	preds, err := scoring.Predictions(f, features)
	if err != nil {
		return nil, 0, err
	}

	byQuery := make(map[string]check, len(preds))
	for _, pred := range preds {
		q, ok := p.query(pred)
		if !ok {
			continue
		}
		key := q.Encode()
		if prev, seen := byQuery[key]; seen && prev.want.ID <= pred.ID {
			continue
		}
		byQuery[key] = check{query: q, want: pred}
	}
	checks := make([]check, 0, len(byQuery))
	for _, c := range byQuery {
		checks = append(checks, c)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].want.ID < checks[j].want.ID })
	return checks, len(preds), nil
}

// query builds the lookup parameters for pred; ok is false unless exactly
// one faction indicator is set.
func (p *Prober) query(pred model.Prediction) (url.Values, bool) {
	var faction model.Faction
	for _, f := range model.Factions() {
		if pred.Features[string(f)] != 1 {
			continue
		}
		if faction != "" {
			return nil, false
		}
		faction = f
	}
	if faction == "" {
		return nil, false
	}
	q := url.Values{}
	for _, name := range p.cfg.Inputs {
		q.Set(name, strconv.Itoa(pred.Features[name]))
	}
	q.Set(allegianceParam, string(faction))
	return q, true
}

func (p *Prober) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.cfg.BaseURL, "/")+healthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %w: %v", ErrUnhealthy, failure.ErrConfig, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w: %v", ErrUnhealthy, failure.ErrExternal, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %w: status %d", ErrUnhealthy, failure.ErrExternal, resp.StatusCode)
	}
	return nil
}

func (p *Prober) lookup(ctx context.Context, c check) (Result, string) {
	u := strings.TrimRight(p.cfg.BaseURL, "/") + lookupPath + "?" + c.query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ResultFailed, err.Error()
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ResultFailed, "canceled"
		}
		return ResultFailed, err.Error()
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ResultMissing, "no stored prediction"
	default:
		return ResultFailed, "status " + strconv.Itoa(resp.StatusCode)
	}

	var got model.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		return ResultFailed, "decode: " + err.Error()
	}
	switch {
	case got.Score != c.want.Score:
		return ResultMismatch, fmt.Sprintf("score %d, want %d", got.Score, c.want.Score)
	case got.Prediction != c.want.Prediction:
		return ResultMismatch, fmt.Sprintf("prediction %q, want %q", got.Prediction, c.want.Prediction)
	case got.Remarks != c.want.Remarks:
		return ResultMismatch, fmt.Sprintf("remarks %q, want %q", got.Remarks, c.want.Remarks)
	}
	return ResultMatch, ""
}
