package devserver

import (
	"context"
	"strings"
	"unicode"
)

const (
	// DefaultCategory is assigned when no category matches.
	DefaultCategory = "General"
	// DefaultSummary is used when a description yields no summary.
	DefaultSummary = "Maintenance issue reported"

	maxSummaryWords = 10
)

// Categories lists every category a request can be filed under.
var Categories = []string{"Plumbing", "Electrical", "HVAC", "Furniture", DefaultCategory}

// Classification is what a Categorizer derives from a new request.
type Classification struct {
	Category string
	Summary  string
}

// Categorizer fills in the category and summary of a request before it is
// stored. Implementations must always return a usable Classification.
type Categorizer interface {
	Categorize(ctx context.Context, title, description string) Classification
}

// keywords maps each category to lowercase word prefixes that indicate it.
var keywords = map[string][]string{
	"Plumbing": {
		"leak", "faucet", "pipe", "drain", "toilet", "sink", "plumb",
		"clog", "shower", "water heater", "flood",
	},
	"Electrical": {
		"electric", "light", "bulb", "outlet", "socket", "power", "wiring",
		"switch", "breaker", "fuse", "lamp",
	},
	"HVAC": {
		"hvac", "heater", "heating", "air condition", "thermostat",
		"furnace", "ventilation", "cooling", "boiler", "radiator",
	},
	"Furniture": {
		"chair", "desk", "table", "furniture", "cabinet", "shelf", "drawer",
		"sofa", "couch", "mattress", "bed frame", "wardrobe",
	},
}

// KeywordCategorizer classifies by keyword counts. The category with the most
// hits wins, ties go to the earlier entry in Categories, and no hits means
// DefaultCategory. The summary is the first words of the description.
type KeywordCategorizer struct{}

// NewKeywordCategorizer returns the deterministic default categorizer.
func NewKeywordCategorizer() KeywordCategorizer {
	return KeywordCategorizer{}
}

func (KeywordCategorizer) Categorize(_ context.Context, title, description string) Classification {
	return Classification{
		Category: matchCategory(title + " " + description),
		Summary:  summarize(description),
	}
}

func matchCategory(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	text = " " + strings.Join(words, " ")

	best, bestHits := DefaultCategory, 0
	for _, category := range Categories {
		hits := 0
		for _, kw := range keywords[category] {
			if strings.Contains(text, " "+kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = category, hits
		}
	}
	return best
}

func summarize(description string) string {
	words := strings.Fields(description)
	if len(words) > maxSummaryWords {
		words = words[:maxSummaryWords]
	}
	summary := strings.TrimRight(strings.Join(words, " "), ".,;:!? ")
	if summary == "" {
		return DefaultSummary
	}
	return summary
}
