package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/internal/domain/forest"
	"github.com/okian/gotsim/internal/domain/model"
)

// ArtifactVersion is bumped whenever the artifact layout changes.
const ArtifactVersion = 1

// Artifact is the persisted model. It carries the feature names in trained
// order and the class codebook so the scorer can check compatibility.
type Artifact struct {
	Version   int            `json:"version"`
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Features  []string       `json:"features"`
	Target    string         `json:"target"`
	Classes   []model.Class  `json:"classes"`
	Forest    *forest.Forest `json:"forest"`
}

// Predict scores rows whose columns follow a.Features.
func (a *Artifact) Predict(X [][]float64) ([]int, error) {
	if a.Forest == nil {
		return nil, forest.ErrNotFitted
	}
	return a.Forest.Predict(X)
}

// FeatureNames returns the feature names in trained column order.
func (a *Artifact) FeatureNames() []string {
	return append([]string(nil), a.Features...)
}

// Codebook rebuilds the codebook stored with the model.
func (a *Artifact) Codebook() (model.Codebook, error) {
	return model.NewCodebook(a.Classes)
}

func (a *Artifact) check() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("%w: artifact version %d, want %d", failure.ErrExternal, a.Version, ArtifactVersion)
	}
	if len(a.Features) == 0 {
		return fmt.Errorf("%w: artifact has no feature names", failure.ErrSchema)
	}
	if a.Forest == nil || len(a.Forest.Trees) == 0 {
		return fmt.Errorf("%w: artifact has no fitted forest", failure.ErrExternal)
	}
	if a.Forest.NFeatures != len(a.Features) {
		return fmt.Errorf("%w: forest expects %d features, artifact names %d",
			failure.ErrSchema, a.Forest.NFeatures, len(a.Features))
	}
	if _, err := a.Codebook(); err != nil {
		return err
	}
	return nil
}

// SaveArtifact writes a as JSON through a temporary file and rename.
func SaveArtifact(path string, a *Artifact) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return writeAtomic(path, raw)
}

// LoadArtifact reads and validates a model artifact.
func LoadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: trained model not found at %s: %v", failure.ErrExternal, path, err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", failure.ErrExternal, path, err)
	}
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &a, nil
}

// WriteReport writes the human-readable performance report.
func WriteReport(path, report string) error {
	return writeAtomic(path, []byte(report))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", failure.ErrExternal, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", failure.ErrExternal, path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", failure.ErrExternal, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", failure.ErrExternal, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", failure.ErrExternal, path, err)
	}
	return nil
}
