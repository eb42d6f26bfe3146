package gallery

import (
	"sort"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

const (
	// indexMaxNeighbors is the HNSW M parameter
	indexMaxNeighbors = 16

	// indexEfSearch widens the candidate list so small galleries are searched exhaustively
	indexEfSearch = 64
)

// Lookalike is a registered subject whose signature is close to another one.
type Lookalike struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
	Distance  int    `json:"distance"`
}

// lookalikeIndex is an HNSW graph over signature bit vectors. On 0/1 vectors L1
// distance equals Hamming distance. It only feeds registration warnings; attendance
// matching stays a linear scan.
type lookalikeIndex struct {
	graph    *hnsw.Graph[string]
	subjects map[string]database.Subject
}

func newLookalikeIndex(subjects []database.Subject) *lookalikeIndex {
	idx := &lookalikeIndex{subjects: make(map[string]database.Subject, len(subjects))}
	if len(subjects) == 0 {
		return idx
	}

	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.EfSearch = indexEfSearch
	g.Distance = fingerprint.L1Distance

	for _, s := range subjects {
		g.Add(hnsw.MakeNode(s.ID, s.Signature.Vector()))
		idx.subjects[s.ID] = s
	}
	idx.graph = g
	return idx
}

// near returns up to limit subjects within maxDistance bits of sig, closest first, ID breaking ties.
func (idx *lookalikeIndex) near(sig fingerprint.Signature, maxDistance, limit int) []Lookalike {
	if idx.graph == nil || limit <= 0 {
		return nil
	}

	var out []Lookalike
	for _, n := range idx.graph.Search(sig.Vector(), limit) {
		s, ok := idx.subjects[n.Key]
		if !ok {
			continue
		}
		d := fingerprint.HammingDistance(sig, s.Signature)
		if d > maxDistance {
			continue
		}
		out = append(out, Lookalike{SubjectID: s.ID, Name: s.Name, Distance: d})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out
}
