package attendance

import (
	"time"
)

// OutcomeKind identifies how an attendance attempt ended.
type OutcomeKind string

// Every attempt ends in exactly one of these. Only OutcomeMarked writes to the ledger.
const (
	OutcomeCaptureFailed   OutcomeKind = "capture_failed"
	OutcomeNoFace          OutcomeKind = "no_face_detected"
	OutcomeMultipleFaces   OutcomeKind = "multiple_faces_detected"
	OutcomeNoMatch         OutcomeKind = "no_match"
	OutcomeAlreadyMarked   OutcomeKind = "already_marked"
	OutcomeMarked          OutcomeKind = "marked"
	OutcomeSubjectNotFound OutcomeKind = "subject_not_found"
	OutcomeStoreFailure    OutcomeKind = "store_failure"
	OutcomeCancelled       OutcomeKind = "cancelled"

	// OutcomeDetectorUnavailable means no face detector is loaded; a setup fault, not a capture one.
	OutcomeDetectorUnavailable OutcomeKind = "detector_unavailable"
)

var outcomeMessages = map[OutcomeKind]string{
	OutcomeCaptureFailed:   "capture failed",
	OutcomeNoFace:          "no face detected",
	OutcomeMultipleFaces:   "multiple faces detected, require exactly one",
	OutcomeNoMatch:         "no matching registrant",
	OutcomeAlreadyMarked:   "already marked today",
	OutcomeMarked:          "attendance marked",
	OutcomeSubjectNotFound: "subject not found",
	OutcomeStoreFailure:    "attendance store failure",
	OutcomeCancelled:       "attempt cancelled",

	OutcomeDetectorUnavailable: "face detector not loaded",
}

// Message returns the user-facing text for the kind.
func (k OutcomeKind) Message() string {
	if msg, ok := outcomeMessages[k]; ok {
		return msg
	}
	return string(k)
}

// Stage is a step of the face attendance pipeline.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageFrameCaptured     Stage = "frame_captured"
	StageRegionLocated     Stage = "region_located"
	StageSignatureComputed Stage = "signature_computed"
	StageMatchEvaluated    Stage = "match_evaluated"
	StageLedgerUpdated     Stage = "ledger_updated"
)

// Source tells which entry point produced an outcome.
const (
	SourceFace   = "face"
	SourceManual = "manual"
)

// Outcome is the result of one attendance attempt. It is never an error:
// failures are kinds, with the cause kept in Err for logging.
type Outcome struct {
	AttemptID   string      `json:"attempt_id"`
	Kind        OutcomeKind `json:"kind"`
	Message     string      `json:"message"`
	Source      string      `json:"source"`
	Stage       Stage       `json:"stage"` // last stage reached
	SubjectID   string      `json:"subject_id,omitempty"`
	SubjectName string      `json:"subject_name,omitempty"`
	Distance    int         `json:"distance"`
	Faces       int         `json:"faces"`
	Date        string      `json:"date"`
	TimeIn      string      `json:"time_in,omitempty"`
	At          time.Time   `json:"at"`
	Error       string      `json:"error,omitempty"`

	Err error `json:"-"`
}

// Recorded reports whether the subject has a ledger entry for the day after this attempt.
func (o Outcome) Recorded() bool {
	return o.Kind == OutcomeMarked || o.Kind == OutcomeAlreadyMarked
}
