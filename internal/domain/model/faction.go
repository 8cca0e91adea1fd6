package model

import "fmt"

// Faction is one of the major affiliations kept for modeling.
type Faction string

const (
	HouseBaratheon Faction = "HouseBaratheon"
	HouseLannister Faction = "HouseLannister"
	HouseStark     Faction = "HouseStark"
	HouseTargaryen Faction = "HouseTargaryen"
	NightsWatch    Faction = "NightsWatch"
	Wildling       Faction = "Wildling"
)

var factions = []Faction{HouseBaratheon, HouseLannister, HouseStark, HouseTargaryen, NightsWatch, Wildling}

// Factions returns the closed set in name order.
func Factions() []Faction {
	out := make([]Faction, len(factions))
	copy(out, factions)
	return out
}

// ParseFaction matches s exactly against the closed set.
func ParseFaction(s string) (Faction, bool) {
	for _, f := range factions {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// FactionFeatures returns the one-hot feature values selecting f.
func FactionFeatures(f Faction) (map[string]int, error) {
	if _, ok := ParseFaction(string(f)); !ok {
		return nil, fmt.Errorf("unknown faction %q", f)
	}
	out := make(map[string]int, len(factions))
	for _, x := range factions {
		out[string(x)] = 0
	}
	out[string(f)] = 1
	return out, nil
}
