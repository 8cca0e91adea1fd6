package cleaning

import (
	"strings"

	"github.com/okian/gotsim/internal/domain/model"
)

// DefaultAliases maps bare house names and spelling variants onto the form
// used by the rest of the data before whitespace is stripped.
func DefaultAliases() map[string]string {
	return map[string]string{
		"Lannister":     "House Lannister",
		"Targaryen":     "House Targaryen",
		"Greyjoy":       "House Greyjoy",
		"Baratheon":     "House Baratheon",
		"Arryn":         "House Arryn",
		"Tyrell":        "House Tyrell",
		"Stark":         "House Stark",
		"Martell":       "House Martell",
		"Tully":         "House Tully",
		"Night's Watch": "Nights Watch",
		"None":          "NoneH",
	}
}

// NormalizeAffiliation applies the alias table and removes all whitespace.
func NormalizeAffiliation(raw string, aliases map[string]string) string {
	s := strings.TrimSpace(raw)
	if alias, ok := aliases[s]; ok {
		s = alias
	}
	return strings.Join(strings.Fields(s), "")
}

// ConsolidateAffiliation maps a raw affiliation onto the closed faction set.
// ok is false when the affiliation is outside the set; such rows are dropped.
func ConsolidateAffiliation(raw string) (model.Faction, bool) {
	return model.ParseFaction(NormalizeAffiliation(raw, DefaultAliases()))
}
