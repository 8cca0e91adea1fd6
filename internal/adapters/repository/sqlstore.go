package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/model"
	"github.com/okian/gotsim/pkg/logger"
)

// Supported drivers, named as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect renders the parts of a statement that differ between drivers.
type dialect struct {
	driver string
}

func (d dialect) placeholder(n int) string {
	if d.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func quote(name string) string { return `"` + name + `"` }

// SQLStore keeps predictions in a SQL table with one integer column per
// feature.
type SQLStore struct {
	db       *sql.DB
	dialect  dialect
	features []string
	opts     options

	insertSQL string
	selectSQL string
}

// OpenSQL opens a database handle and wraps it in a SQLStore.
func OpenSQL(driver, dsn string, features []string, opts ...Option) (*SQLStore, error) {
	driver = strings.ToLower(driver)
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: unknown driver %q", failure.ErrConfig, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", failure.ErrExternal, driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(db, driver, features, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open handle. Table and feature names must be plain
// identifiers.
func NewSQLStore(db *sql.DB, driver string, features []string, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no feature columns", failure.ErrConfig)
	}
	if err := checkIdentifiers(append([]string{o.table}, features...)...); err != nil {
		return nil, err
	}
	s := &SQLStore{
		db:       db,
		dialect:  dialect{driver: strings.ToLower(driver)},
		features: append([]string(nil), features...),
		opts:     o,
	}
	s.insertSQL, s.selectSQL = s.statements()
	return s, nil
}

func (s *SQLStore) columns() []string {
	cols := make([]string, 0, len(s.features)+4)
	cols = append(cols, quote("id"))
	for _, f := range s.features {
		cols = append(cols, quote(f))
	}
	return append(cols, quote("score"), quote("prediction"), quote("remarks"))
}

func (s *SQLStore) statements() (insert, sel string) {
	cols := s.columns()
	ph := make([]string, len(cols))
	for i := range ph {
		ph[i] = s.dialect.placeholder(i + 1)
	}
	table := quote(s.opts.table)
	insert = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(ph, ", "))
	sel = fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	return insert, sel
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", failure.ErrExternal, err)
	}
	return nil
}

// Migrate creates the prediction table when it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	defs := []string{quote("id") + " INTEGER PRIMARY KEY"}
	for _, f := range s.features {
		defs = append(defs, quote(f)+" INTEGER NOT NULL")
	}
	defs = append(defs,
		quote("score")+" INTEGER NOT NULL",
		quote("prediction")+" TEXT NOT NULL",
		quote("remarks")+" TEXT NOT NULL",
	)
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(s.opts.table), strings.Join(defs, ",\n\t"))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: create table %s: %v", failure.ErrExternal, s.opts.table, err)
	}
	s.opts.logger.Info(ctx, "prediction table ready", logger.String("table", s.opts.table), logger.Int("features", len(s.features)))
	return nil
}

// Replace writes preds in one transaction.
func (s *SQLStore) Replace(ctx context.Context, preds []model.Prediction, truncate bool) (err error) {
	start := time.Now()
	for _, p := range preds {
		if err := checkPrediction(s.features, p); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", failure.ErrExternal, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if truncate {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+quote(s.opts.table)); err != nil {
			return fmt.Errorf("%w: truncate %s: %v", failure.ErrExternal, s.opts.table, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", failure.ErrExternal, err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, 0, len(s.features)+4)
	for _, p := range preds {
		args = args[:0]
		args = append(args, p.ID)
		for _, f := range s.features {
			args = append(args, p.Features[f])
		}
		args = append(args, p.Score, p.Prediction, p.Remarks)
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: insert row %d: %v", failure.ErrExternal, p.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", failure.ErrExternal, err)
	}

	s.opts.metrics.RecordStoreWrite(len(preds), time.Since(start))
	s.opts.logger.Info(ctx, "predictions written",
		logger.String("table", s.opts.table),
		logger.Int("rows", len(preds)),
		logger.Bool("truncate", truncate),
	)
	return nil
}

// Lookup returns the lowest-id row matching every feature of combination.
func (s *SQLStore) Lookup(ctx context.Context, combination map[string]int) (model.Prediction, error) {
	if err := checkCombination(s.features, combination); err != nil {
		return model.Prediction{}, err
	}
	defer s.observe("lookup", time.Now())

	where := make([]string, len(s.features))
	args := make([]any, len(s.features))
	for i, f := range s.features {
		where[i] = quote(f) + " = " + s.dialect.placeholder(i+1)
		args[i] = combination[f]
	}
	q := s.selectSQL + " WHERE " + strings.Join(where, " AND ") + " ORDER BY " + quote("id") + " LIMIT 1"
	p, err := s.scanOne(s.db.QueryRowContext(ctx, q, args...))
	s.countLookup(err)
	return p, err
}

// First returns the lowest-id row.
func (s *SQLStore) First(ctx context.Context) (model.Prediction, error) {
	defer s.observe("first", time.Now())
	q := s.selectSQL + " ORDER BY " + quote("id") + " LIMIT 1"
	return s.scanOne(s.db.QueryRowContext(ctx, q))
}

// Count returns the number of rows in the table.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	defer s.observe("count", time.Now())
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(s.opts.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", failure.ErrExternal, s.opts.table, err)
	}
	s.opts.metrics.SetStoreRecords(n)
	return n, nil
}

func (s *SQLStore) scanOne(row *sql.Row) (model.Prediction, error) {
	vals := make([]int, len(s.features))
	p := model.Prediction{Features: make(map[string]int, len(s.features))}
	dest := make([]any, 0, len(s.features)+4)
	dest = append(dest, &p.ID)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	dest = append(dest, &p.Score, &p.Prediction, &p.Remarks)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Prediction{}, ErrNotFound
		}
		return model.Prediction{}, fmt.Errorf("%w: query %s: %v", failure.ErrExternal, s.opts.table, err)
	}
	for i, f := range s.features {
		p.Features[f] = vals[i]
	}
	return p, nil
}

func (s *SQLStore) observe(op string, start time.Time) {
	s.opts.metrics.RecordStoreQuery(op, time.Since(start))
}

func (s *SQLStore) countLookup(err error) {
	switch {
	case err == nil:
		s.opts.metrics.RecordLookup("hit")
	case errors.Is(err, ErrNotFound):
		s.opts.metrics.RecordLookup("miss")
	default:
		s.opts.metrics.RecordLookup("error")
	}
}
