package devserver

import (
	"context"
	"strings"
	"testing"
)

func TestKeywordCategorizer(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		want        string
	}{
		{name: "plumbing", title: "Leaking faucet", description: "Room 301", want: "Plumbing"},
		{name: "electrical", title: "Outlet dead", description: "No power in the kitchen", want: "Electrical"},
		{name: "hvac", title: "Too cold", description: "The thermostat ignores the heating schedule", want: "HVAC"},
		{name: "furniture", title: "Broken chair", description: "Lobby", want: "Furniture"},
		{name: "case and punctuation", title: "TOILET!!", description: "clogged,again", want: "Plumbing"},
		{name: "word prefix only", title: "Unstable floor", description: "Feels uncomfortable", want: "General"},
		{name: "most hits wins", title: "Desk lamp", description: "The desk drawer is stuck", want: "Furniture"},
		{name: "tie goes to earlier category", title: "Water heater", description: "", want: "Plumbing"},
		{name: "nothing matches", title: "Question", description: "Who do I call?", want: DefaultCategory},
	}

	c := NewKeywordCategorizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Categorize(context.Background(), tt.title, tt.description)
			if got.Category != tt.want {
				t.Errorf("Category = %q, want %q", got.Category, tt.want)
			}
		})
	}
}

func TestKeywordCategorizerSummary(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
	}{
		{name: "short", description: "Room 301", want: "Room 301"},
		{name: "trailing punctuation", description: "Water on the floor!", want: "Water on the floor"},
		{name: "whitespace collapsed", description: "  pipe \n\t burst  ", want: "pipe burst"},
		{
			name:        "long description cut to ten words",
			description: "one two three four five six seven eight nine ten eleven twelve",
			want:        "one two three four five six seven eight nine ten",
		},
		{name: "empty", description: "   ", want: DefaultSummary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewKeywordCategorizer().Categorize(context.Background(), "", tt.description)
			if got.Summary != tt.want {
				t.Errorf("Summary = %q, want %q", got.Summary, tt.want)
			}
			if n := len(strings.Fields(got.Summary)); n > maxSummaryWords {
				t.Errorf("Summary has %d words, want at most %d", n, maxSummaryWords)
			}
		})
	}
}

func TestCategoriesIncludeDefault(t *testing.T) {
	for _, category := range Categories {
		if category == DefaultCategory {
			return
		}
	}
	t.Errorf("Categories %v does not include %q", Categories, DefaultCategory)
}
