// Package gallery holds the registered subjects and matches query signatures against them.
package gallery

import (
	"sort"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// Gallery is an immutable snapshot of registered subjects ordered by ID ascending.
type Gallery struct {
	subjects []database.Subject
	byID     map[string]int
	index    *lookalikeIndex
}

// New builds a snapshot from subjects. The input slice is not retained.
func New(subjects []database.Subject) *Gallery {
	sorted := make([]database.Subject, len(subjects))
	copy(sorted, subjects)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[string]int, len(sorted))
	for i, s := range sorted {
		byID[s.ID] = i
	}

	return &Gallery{
		subjects: sorted,
		byID:     byID,
		index:    newLookalikeIndex(sorted),
	}
}

// Len returns the number of subjects.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.subjects)
}

// Get returns the subject with the given ID.
func (g *Gallery) Get(id string) (database.Subject, bool) {
	if g == nil {
		return database.Subject{}, false
	}
	i, ok := g.byID[id]
	if !ok {
		return database.Subject{}, false
	}
	return g.subjects[i], true
}

// Subjects returns a copy of the subjects in ID order.
func (g *Gallery) Subjects() []database.Subject {
	if g == nil {
		return nil
	}
	out := make([]database.Subject, len(g.subjects))
	copy(out, g.subjects)
	return out
}

// Search returns subjects whose name or ID contains query,
// ignoring case and diacritics. An empty query returns everyone.
func (g *Gallery) Search(query string) []database.Subject {
	if g == nil {
		return nil
	}
	var out []database.Subject
	for _, s := range g.subjects {
		if facematch.MatchesQuery(s.Name, s.ID, query) {
			out = append(out, s)
		}
	}
	return out
}

// Lookalikes returns up to limit subjects within maxDistance bits of sig, closest first.
func (g *Gallery) Lookalikes(sig fingerprint.Signature, maxDistance, limit int) []Lookalike {
	if g == nil {
		return nil
	}
	return g.index.near(sig, maxDistance, limit)
}
