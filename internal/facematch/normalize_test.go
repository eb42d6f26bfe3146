package facematch

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "jiri"},
		{"Žluťoučký kůň", "zlutoucky kun"},
		{"Novák-Dvořák", "novak dvorak"},
		{"  JOHN   DOE ", "john doe"},
		{"class_4b", "class 4b"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.expected {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		id       string
		query    string
		expected bool
	}{
		{"empty query", "Jan Novák", "JN01", "", true},
		{"blank query", "Jan Novák", "JN01", "   ", true},
		{"name prefix", "Jan Novák", "JN01", "jan", true},
		{"name without diacritics", "Jan Novák", "JN01", "novak", true},
		{"id case insensitive", "Jan Novák", "JN01", "jn0", true},
		{"dash in query", "Mary Ann Lee", "S7", "mary-ann", true},
		{"words in any order", "Jan Novák", "JN01", "novak jan", true},
		{"word from name and id", "Jan Novák", "JN01", "jan jn01", true},
		{"one word missing", "Jan Novák", "JN01", "jan petr", false},
		{"no match", "Jan Novák", "JN01", "petr", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchesQuery(tt.subject, tt.id, tt.query)
			if result != tt.expected {
				t.Errorf("MatchesQuery(%q, %q, %q) = %v, want %v", tt.subject, tt.id, tt.query, result, tt.expected)
			}
		})
	}
}
