// Package config defines the pipeline configuration and its loading hooks.
//
// Conventions:
//   - New(ctx) returns the defaults; Load layers a YAML file and GOTSIM_ env vars on top.
//   - The Config value is threaded explicitly through constructors; nothing reads
//     configuration from globals.
//   - Lists are used instead of integer-keyed maps so every layer replaces them whole.
package config

import (
	"context"
	"path/filepath"

	"github.com/okian/gotsim/internal/domain/forest"
	"github.com/okian/gotsim/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" yaml:"log_level"`
	// LogFile, when set, receives a copy of the log output (the --lfp flag).
	LogFile string `koanf:"log_file" yaml:"log_file"`

	// Addr configures the HTTP listen address of the web view.
	Addr string `koanf:"addr" yaml:"addr"`

	// DataDir is the base directory for relative file names below.
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// Installments lists the books in order with their flag and survival
	// columns and chapter counts.
	Installments []Installment `koanf:"installments" yaml:"installments"`

	Columns   Columns       `koanf:"columns" yaml:"columns"`
	Clean     Clean         `koanf:"clean" yaml:"clean"`
	Featurize Featurize     `koanf:"featurize" yaml:"featurize"`
	Classes   []model.Class `koanf:"classes" yaml:"classes"`
	Model     Model         `koanf:"model" yaml:"model"`
	Score     Score         `koanf:"score" yaml:"score"`
	Database  Database      `koanf:"database" yaml:"database"`
	S3        S3            `koanf:"s3" yaml:"s3"`
	Metrics   Metrics       `koanf:"metrics" yaml:"metrics"`
}

// Installment is one book of the series.
type Installment struct {
	Number   int     `koanf:"number" yaml:"number"`
	Flag     string  `koanf:"flag" yaml:"flag"`         // appearance flag column
	Survival string  `koanf:"survival" yaml:"survival"` // derived chapters-survived column
	Chapters float64 `koanf:"chapters" yaml:"chapters"`
}

// Columns names the raw columns of character-deaths.csv and the derived ones.
type Columns struct {
	Name         string `koanf:"name" yaml:"name"`
	Affiliation  string `koanf:"affiliation" yaml:"affiliation"`
	BookOfDeath  string `koanf:"book_of_death" yaml:"book_of_death"`
	DeathChapter string `koanf:"death_chapter" yaml:"death_chapter"`
	IntroChapter string `koanf:"intro_chapter" yaml:"intro_chapter"`
	Intro        string `koanf:"intro" yaml:"intro"`
	Consolidated string `koanf:"consolidated" yaml:"consolidated"`
}

// Alias rewrites one raw affiliation before whitespace is stripped.
type Alias struct {
	From string `koanf:"from" yaml:"from"`
	To   string `koanf:"to" yaml:"to"`
}

// Clean configures the base cleaner step.
type Clean struct {
	Input   string  `koanf:"input" yaml:"input"`
	Output  string  `koanf:"output" yaml:"output"`
	Aliases []Alias `koanf:"aliases" yaml:"aliases"`
}

// Featurize configures the featurizer step.
type Featurize struct {
	Output         string   `koanf:"output" yaml:"output"`
	Profile        string   `koanf:"profile" yaml:"profile"`
	ProfileKey     string   `koanf:"profile_key" yaml:"profile_key"`
	ProfileColumns []string `koanf:"profile_columns" yaml:"profile_columns"`
	Total          string   `koanf:"total" yaml:"total"`
	Label          string   `koanf:"label" yaml:"label"`
	Target         string   `koanf:"target" yaml:"target"`
	LowMax         float64  `koanf:"low_max" yaml:"low_max"`
	MidMax         float64  `koanf:"mid_max" yaml:"mid_max"`
}

// Model configures the trainer step.
type Model struct {
	Dir          string        `koanf:"dir" yaml:"dir"`
	Artifact     string        `koanf:"artifact" yaml:"artifact"`
	Report       string        `koanf:"report" yaml:"report"`
	Features     []string      `koanf:"features" yaml:"features"`
	TestFraction float64       `koanf:"test_fraction" yaml:"test_fraction"`
	Forest       forest.Params `koanf:"forest" yaml:"forest"`
}

// Score configures the offline scorer step.
type Score struct {
	Features    []string `koanf:"features" yaml:"features"`
	MaxFeatures int      `koanf:"max_features" yaml:"max_features"`
	Output      string   `koanf:"output" yaml:"output"`
}

// Database configures the prediction store.
type Database struct {
	Driver   string `koanf:"driver" yaml:"driver"` // sqlite or postgres
	DSN      string `koanf:"dsn" yaml:"dsn"`
	Table    string `koanf:"table" yaml:"table"`
	Truncate bool   `koanf:"truncate" yaml:"truncate"`
}

// S3 configures raw file transfer.
type S3 struct {
	Bucket   string   `koanf:"bucket" yaml:"bucket"`
	Region   string   `koanf:"region" yaml:"region"`
	Prefix   string   `koanf:"prefix" yaml:"prefix"`
	Endpoint string   `koanf:"endpoint" yaml:"endpoint"`
	Files    []string `koanf:"files" yaml:"files"`
}

// Metrics configures metric export for batch steps.
type Metrics struct {
	// Textfile is a node-exporter textfile path written after each step.
	Textfile string `koanf:"textfile" yaml:"textfile"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	features := []string{
		"Gender", "Nobility", "boolDeadRelations", "isPopular", "isMarried",
		"HouseBaratheon", "HouseLannister", "HouseStark", "HouseTargaryen", "NightsWatch", "Wildling",
	}
	fp := forest.DefaultParams()
	fp.Seed = 12345
	return &Config{
		LogLevel: "info",
		Addr:     ":5000",
		DataDir:  "data",
		Installments: []Installment{
			{Number: 1, Flag: "GoT", Survival: "GoT_chapters", Chapters: 72},
			{Number: 2, Flag: "CoK", Survival: "CoK_chapters", Chapters: 69},
			{Number: 3, Flag: "SoS", Survival: "SoS_chapters", Chapters: 80},
			{Number: 4, Flag: "FfC", Survival: "FfC_chapters", Chapters: 45},
			{Number: 5, Flag: "DwD", Survival: "DwD_chapters", Chapters: 71},
		},
		Columns: Columns{
			Name:         "Name",
			Affiliation:  "Allegiances",
			BookOfDeath:  "Book of Death",
			DeathChapter: "Death Chapter",
			IntroChapter: "Book Intro Chapter",
			Intro:        "book_intro",
			Consolidated: "Allegiance",
		},
		Clean: Clean{
			Input:  "character-deaths.csv",
			Output: "clean_base.csv",
		},
		Featurize: Featurize{
			Output:         "features.csv",
			Profile:        "character-profile.csv",
			ProfileKey:     "name",
			ProfileColumns: []string{"isMarried", "boolDeadRelations", "isPopular"},
			Total:          "chapters_survived",
			Label:          "survive_class",
			Target:         "survive_class_id",
			LowMax:         100,
			MidMax:         200,
		},
		Classes: model.DefaultClasses(),
		Model: Model{
			Dir:          "models",
			Artifact:     "rf_model.json",
			Report:       "performance_metrics.txt",
			Features:     features,
			TestFraction: 0.4,
			Forest:       fp,
		},
		Score: Score{
			Features:    append([]string(nil), features...),
			MaxFeatures: 20,
			Output:      "offline_score.csv",
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "file:data/got_prediction.db",
			Table:  "got_prediction",
		},
		S3: S3{
			Bucket: "msia423-project",
			Region: "us-east-2",
			Files:  []string{"character-deaths.csv", "character-profile.csv"},
		},
	}
}

// Path resolves a file name against DataDir unless it is absolute.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// ModelPath resolves a file name inside the model directory.
func (c *Config) ModelPath(name string) string {
	dir := c.Model.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.DataDir, dir)
	}
	return filepath.Join(dir, name)
}
