// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Signature constants
const (
	// CanonicalFaceSize is the side length (px) every face crop is resized to before hashing
	CanonicalFaceSize = 100

	// SignatureGrid is the number of cells per side of the averaging grid (8x8 = 64 bits)
	SignatureGrid = 8

	// SignatureBits is the length of a signature in bits
	SignatureBits = SignatureGrid * SignatureGrid
)

// Face matching constants
const (
	// DefaultMatchThreshold is the maximum Hamming distance accepted as a match
	DefaultMatchThreshold = 10

	// DefaultLookalikeDistance is the Hamming distance under which two registrants are
	// reported as look-alikes during registration
	DefaultLookalikeDistance = 4

	// DefaultLookalikeLimit is the number of look-alike candidates reported per registration
	DefaultLookalikeLimit = 3
)

// Detection constants
const (
	// DefaultMinFaceSize is the minimum face side length (px) for both detection paths
	DefaultMinFaceSize = 30

	// DefaultMinNeighbors is the number of overlapping raw detections a face needs
	DefaultMinNeighbors = 5
)

// Date and time formats
const (
	// DateLayout is the calendar day format used by the ledger and reports
	DateLayout = "2006-01-02"

	// TimeLayout is the wall-clock format used for time_in
	TimeLayout = "15:04:05"
)

// Ledger constants
const (
	// PresenceTTL is how long a presence key stays in the fast-path cache
	PresenceTTL = 36 * time.Hour

	// AttendanceLogSize is the number of recent marks kept in the attendance log
	AttendanceLogSize = 200
)

// Capture constants
const (
	// DefaultPollInterval is the default frame polling interval for continuous capture
	DefaultPollInterval = 500 * time.Millisecond

	// CaptureTimeout bounds a single frame read from a network camera
	CaptureTimeout = 5 * time.Second
)
