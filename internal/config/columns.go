package config

import (
	"sort"

	"github.com/okian/gotsim/internal/domain/cleaning"
	"github.com/okian/gotsim/internal/domain/features"
)

// ordered returns installments sorted by number.
func (c *Config) ordered() []Installment {
	out := append([]Installment(nil), c.Installments...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// CleaningColumns maps the config onto the cleaner's column names.
func (c *Config) CleaningColumns() cleaning.Columns {
	cols := cleaning.Columns{
		BookOfDeath:  c.Columns.BookOfDeath,
		DeathChapter: c.Columns.DeathChapter,
		IntroChapter: c.Columns.IntroChapter,
		Affiliation:  c.Columns.Affiliation,
		Intro:        c.Columns.Intro,
		Consolidated: c.Columns.Consolidated,
	}
	for _, in := range c.ordered() {
		cols.Flags = append(cols.Flags, in.Flag)
	}
	return cols
}

// FeatureColumns maps the config onto the featurizer's column names.
func (c *Config) FeatureColumns() features.Columns {
	cols := features.Columns{
		Intro:        c.Columns.Intro,
		BookOfDeath:  c.Columns.BookOfDeath,
		DeathChapter: c.Columns.DeathChapter,
		IntroChapter: c.Columns.IntroChapter,
		Faction:      c.Columns.Consolidated,
		Total:        c.Featurize.Total,
		Label:        c.Featurize.Label,
		Target:       c.Featurize.Target,
		Name:         c.Columns.Name,
		ProfileKey:   c.Featurize.ProfileKey,
		Profile:      append([]string(nil), c.Featurize.ProfileColumns...),
	}
	for _, in := range c.ordered() {
		cols.Survival = append(cols.Survival, in.Survival)
	}
	return cols
}

// Thresholds returns the survival bucket bounds.
func (c *Config) Thresholds() features.Thresholds {
	return features.Thresholds{Low: c.Featurize.LowMax, Mid: c.Featurize.MidMax}
}

// Aliases returns the affiliation alias table, nil when none is configured.
func (c *Config) Aliases() map[string]string {
	if len(c.Clean.Aliases) == 0 {
		return nil
	}
	m := make(map[string]string, len(c.Clean.Aliases))
	for _, a := range c.Clean.Aliases {
		m[a.From] = a.To
	}
	return m
}
