package gallery

import "github.com/kozaktomas/face-attendance/internal/fingerprint"

// MatchKind discriminates a MatchResult.
type MatchKind int

const (
	NoFaceDetected MatchKind = iota
	MultipleFacesDetected
	NoMatch
	Matched
)

func (k MatchKind) String() string {
	switch k {
	case NoFaceDetected:
		return "no_face_detected"
	case MultipleFacesDetected:
		return "multiple_faces_detected"
	case NoMatch:
		return "no_match"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// MatchResult is the outcome of matching one frame against the gallery.
// SubjectID and Distance are set only when Kind is Matched.
type MatchResult struct {
	Kind      MatchKind
	SubjectID string
	Distance  int
}

// Match scans every subject and returns the closest one within threshold.
// Ties go to the smallest subject ID because the gallery is ordered by ID
// and only a strictly smaller distance replaces the current best.
func Match(query fingerprint.Signature, g *Gallery, threshold int) MatchResult {
	if g.Len() == 0 {
		return MatchResult{Kind: NoMatch}
	}

	best := -1
	bestDistance := 0
	for i, s := range g.subjects {
		d := fingerprint.HammingDistance(query, s.Signature)
		if best < 0 || d < bestDistance {
			best, bestDistance = i, d
		}
	}

	if bestDistance > threshold {
		return MatchResult{Kind: NoMatch}
	}
	return MatchResult{
		Kind:      Matched,
		SubjectID: g.subjects[best].ID,
		Distance:  bestDistance,
	}
}
