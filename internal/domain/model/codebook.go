package model

import (
	"fmt"
	"sort"

	"github.com/okian/gotsim/internal/domain/failure"
)

// Survival buckets.
const (
	BucketLow  = "0-100"
	BucketMid  = "100-200"
	BucketHigh = "gt200"
)

// Class is one survival class: its integer code, the bucket label it encodes,
// and the text shown to users when the model predicts it.
type Class struct {
	Code       int    `json:"code" koanf:"code" yaml:"code"`
	Bucket     string `json:"bucket" koanf:"bucket" yaml:"bucket"`
	Prediction string `json:"prediction" koanf:"prediction" yaml:"prediction"`
	Remark     string `json:"remark" koanf:"remark" yaml:"remark"`
}

// Codebook is the fixed bucket <-> class code mapping. It is persisted with
// the model so training and scoring always agree on the codes.
type Codebook struct {
	classes []Class
}

// DefaultClasses returns the default codebook entries.
func DefaultClasses() []Class {
	return []Class{
		{Code: 0, Bucket: BucketLow, Prediction: "Less than 100 chapters", Remark: "Valar morghulis. Keep your head down."},
		{Code: 1, Bucket: BucketMid, Prediction: "100 to 200 chapters", Remark: "You will see a few winters, but not the last one."},
		{Code: 2, Bucket: BucketHigh, Prediction: "More than 200 chapters", Remark: "A survivor. The realm will remember your name."},
	}
}

// NewCodebook validates that codes and buckets are unique and non-empty.
func NewCodebook(classes []Class) (Codebook, error) {
	if len(classes) == 0 {
		return Codebook{}, fmt.Errorf("%w: codebook has no classes", failure.ErrConfig)
	}
	codes := make(map[int]bool, len(classes))
	buckets := make(map[string]bool, len(classes))
	for _, c := range classes {
		if c.Bucket == "" {
			return Codebook{}, fmt.Errorf("%w: class %d has no bucket", failure.ErrConfig, c.Code)
		}
		if codes[c.Code] {
			return Codebook{}, fmt.Errorf("%w: class code %d is used twice", failure.ErrConfig, c.Code)
		}
		if buckets[c.Bucket] {
			return Codebook{}, fmt.Errorf("%w: bucket %q is used twice", failure.ErrConfig, c.Bucket)
		}
		codes[c.Code] = true
		buckets[c.Bucket] = true
	}
	out := make([]Class, len(classes))
	copy(out, classes)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return Codebook{classes: out}, nil
}

// Classes returns the entries ordered by code.
func (c Codebook) Classes() []Class {
	out := make([]Class, len(c.classes))
	copy(out, c.classes)
	return out
}

// Codes returns the class codes in ascending order.
func (c Codebook) Codes() []int {
	out := make([]int, len(c.classes))
	for i, cl := range c.classes {
		out[i] = cl.Code
	}
	return out
}

// Code returns the class code of a bucket label.
func (c Codebook) Code(bucket string) (int, error) {
	for _, cl := range c.classes {
		if cl.Bucket == bucket {
			return cl.Code, nil
		}
	}
	return 0, fmt.Errorf("%w: bucket %q has no class code", failure.ErrLookup, bucket)
}

// Bucket returns the bucket label of a class code.
func (c Codebook) Bucket(code int) (string, error) {
	for _, cl := range c.classes {
		if cl.Code == code {
			return cl.Bucket, nil
		}
	}
	return "", fmt.Errorf("%w: class %d has no bucket", failure.ErrLookup, code)
}

// Labels returns class code -> prediction text.
func (c Codebook) Labels() map[int]string {
	out := make(map[int]string, len(c.classes))
	for _, cl := range c.classes {
		out[cl.Code] = cl.Prediction
	}
	return out
}

// Remarks returns class code -> remark text.
func (c Codebook) Remarks() map[int]string {
	out := make(map[int]string, len(c.classes))
	for _, cl := range c.classes {
		out[cl.Code] = cl.Remark
	}
	return out
}
