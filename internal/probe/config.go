package probe

import (
	"runtime"
	"time"
)

// Defaults used when Config fields are zero.
const (
	defaultTimeout       = 10 * time.Second
	defaultMaxMismatches = 20
	workerMultiplier     = 2
)

// Config holds probe parameters.
type Config struct {
	BaseURL string        // Base URL of the lookup service
	Input   string        // offline score CSV to check against
	Inputs  []string      // binary query parameters besides the allegiance
	Workers int           // concurrent lookups
	Timeout time.Duration // per-request timeout
	// MaxMismatches bounds how many mismatches are kept in the report.
	MaxMismatches int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * workerMultiplier
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if len(c.Inputs) == 0 {
		c.Inputs = []string{"Gender", "Nobility", "boolDeadRelations", "isPopular", "isMarried"}
	}
	if c.MaxMismatches <= 0 {
		c.MaxMismatches = defaultMaxMismatches
	}
	return c
}

// Result classifies one lookup.
type Result string

const (
	ResultMatch    Result = "match"
	ResultMismatch Result = "mismatch"
	ResultMissing  Result = "missing"
	ResultFailed   Result = "failed"
)

// Mismatch describes one row the service answered differently.
type Mismatch struct {
	ID     int    `json:"id"`
	Query  string `json:"query"`
	Result Result `json:"result"`
	Detail string `json:"detail"`
}

// Report holds probe statistics.
type Report struct {
	RunID      string
	Rows       int // rows in the score table
	Skipped    int // rows the lookup API cannot express
	Checked    int
	Matched    int
	Mismatched int
	Missing    int
	Failed     int
	Mismatches []Mismatch
	StartTime  time.Time
	Duration   time.Duration
}

// OK reports whether every checked row matched.
func (r Report) OK() bool {
	return r.Checked > 0 && r.Matched == r.Checked
}
