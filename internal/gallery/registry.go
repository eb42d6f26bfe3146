package gallery

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"go.uber.org/zap"
)

var (
	// ErrNoFace is returned when a registration image contains no face
	ErrNoFace = errors.New("no face detected in registration image")

	// ErrMultipleFaces is returned when a registration image contains more than one face
	ErrMultipleFaces = errors.New("multiple faces detected, registration requires exactly one")

	// ErrInvalidID is returned for subject IDs that cannot name a face file
	ErrInvalidID = errors.New("invalid subject ID")
)

// Options configure a Registry.
type Options struct {
	FacesDir          string // where registration face crops are written
	LookalikeDistance int    // registrations closer than this to an existing subject are reported
	LookalikeLimit    int    // maximum look-alikes reported per registration
}

// Registration describes a newly registered subject.
type Registration struct {
	Subject    database.Subject  `json:"subject"`
	Region     facedetect.Region `json:"region"`
	Lookalikes []Lookalike       `json:"lookalikes,omitempty"`
}

// Registry owns the current gallery snapshot and forwards mutations to the store.
// Each mutation replaces the snapshot; readers holding an older snapshot are unaffected.
type Registry struct {
	store   database.SubjectWriter
	locator facedetect.Locator
	opts    Options

	mu      sync.RWMutex
	current *Gallery

	writeMu sync.Mutex // serializes register/update/delete
}

// NewRegistry creates a registry and loads the gallery from the store.
// locator may be nil when registration from images is not needed.
func NewRegistry(ctx context.Context, store database.SubjectWriter, locator facedetect.Locator, opts Options) (*Registry, error) {
	r := &Registry{store: store, locator: locator, opts: opts}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Current returns the current gallery snapshot.
func (r *Registry) Current() *Gallery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Reload replaces the snapshot with the subjects currently in the store.
func (r *Registry) Reload(ctx context.Context) error {
	subjects, err := r.store.GetAllSubjects(ctx)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	g := New(subjects)
	r.mu.Lock()
	r.current = g
	r.mu.Unlock()

	logger.Debug("gallery loaded", zap.Int("subjects", g.Len()))
	return nil
}

// Register detects exactly one face in img, stores its crop and signature and adds the subject.
// Returns database.ErrDuplicateSubject when the ID is taken.
func (r *Registry) Register(ctx context.Context, subject database.Subject, img image.Image) (*Registration, error) {
	if err := validateID(subject.ID); err != nil {
		return nil, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	existing, err := r.store.GetSubject(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("check subject %s: %w", subject.ID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", database.ErrDuplicateSubject, subject.ID)
	}

	region, crop, err := r.singleFace(img)
	if err != nil {
		return nil, err
	}
	sig, err := fingerprint.Extract(crop)
	if err != nil {
		return nil, fmt.Errorf("extract signature: %w", err)
	}

	tmpPath, err := r.writeCrop(subject.ID, crop)
	if err != nil {
		return nil, err
	}

	subject.ImagePath = r.facePath(subject.ID)
	subject.Signature = sig
	subject.CreatedAt = time.Now()

	added, err := r.store.AddSubject(ctx, subject)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("add subject %s: %w", subject.ID, err)
	}
	if !added {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: %s", database.ErrDuplicateSubject, subject.ID)
	}
	if err := os.Rename(tmpPath, subject.ImagePath); err != nil {
		return nil, fmt.Errorf("store face image: %w", err)
	}

	lookalikes := r.lookalikes(ctx, subject.ID, sig)
	for _, l := range lookalikes {
		logger.Warn("registered subject looks like an existing one",
			zap.String("subject_id", subject.ID),
			zap.String("lookalike_id", l.SubjectID),
			zap.Int("distance", l.Distance))
	}

	if err := r.Reload(ctx); err != nil {
		return nil, err
	}

	logger.Info("subject registered", zap.String("subject_id", subject.ID), zap.String("signature", sig.String()))
	return &Registration{Subject: subject, Region: region, Lookalikes: lookalikes}, nil
}

// lookalikes reports existing subjects within LookalikeDistance of sig, other than id.
// Stores that rank by distance themselves are asked directly; otherwise the snapshot's index is used.
func (r *Registry) lookalikes(ctx context.Context, id string, sig fingerprint.Signature) []Lookalike {
	limit := r.opts.LookalikeLimit
	if limit <= 0 {
		return nil
	}
	finder, ok := r.store.(database.NearestFinder)
	if !ok {
		return r.Current().Lookalikes(sig, r.opts.LookalikeDistance, limit)
	}

	// One extra candidate because the new subject is already stored.
	nearest, err := finder.NearestSubjects(ctx, sig, limit+1)
	if err != nil {
		logger.Warn("nearest subject lookup failed, using gallery index", zap.Error(err))
		return r.Current().Lookalikes(sig, r.opts.LookalikeDistance, limit)
	}

	var out []Lookalike
	for _, s := range nearest {
		if s.ID == id {
			continue
		}
		d := fingerprint.HammingDistance(sig, s.Signature)
		if d > r.opts.LookalikeDistance {
			continue
		}
		out = append(out, Lookalike{SubjectID: s.ID, Name: s.Name, Distance: d})
		if len(out) == limit {
			break
		}
	}
	return out
}

// Update changes name and class of a subject. When img is not nil the subject is
// re-registered from it and its signature overwritten.
func (r *Registry) Update(ctx context.Context, id, name, class string, img image.Image) (*database.Subject, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	subject, err := r.store.GetSubject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get subject %s: %w", id, err)
	}
	if subject == nil {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}

	if name != "" {
		subject.Name = name
	}
	subject.Class = class

	var tmpPath string
	if img != nil {
		_, crop, err := r.singleFace(img)
		if err != nil {
			return nil, err
		}
		sig, err := fingerprint.Extract(crop)
		if err != nil {
			return nil, fmt.Errorf("extract signature: %w", err)
		}
		if tmpPath, err = r.writeCrop(id, crop); err != nil {
			return nil, err
		}
		subject.Signature = sig
		subject.ImagePath = r.facePath(id)
	}

	if err := r.store.UpdateSubject(ctx, *subject); err != nil {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
		return nil, fmt.Errorf("update subject %s: %w", id, err)
	}
	if tmpPath != "" {
		if err := os.Rename(tmpPath, subject.ImagePath); err != nil {
			return nil, fmt.Errorf("store face image: %w", err)
		}
	}

	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return subject, nil
}

// Delete removes a subject, its attendance and its face image.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	subject, err := r.store.GetSubject(ctx, id)
	if err != nil {
		return fmt.Errorf("get subject %s: %w", id, err)
	}
	if subject == nil {
		return fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}

	if err := r.store.DeleteSubject(ctx, id); err != nil {
		return fmt.Errorf("delete subject %s: %w", id, err)
	}
	if subject.ImagePath != "" {
		if err := os.Remove(subject.ImagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove face image", zap.String("path", subject.ImagePath), zap.Error(err))
		}
	}

	logger.Info("subject deleted", zap.String("subject_id", id))
	return r.Reload(ctx)
}

// singleFace requires exactly one face in img and returns it with its crop.
func (r *Registry) singleFace(img image.Image) (facedetect.Region, image.Image, error) {
	if r.locator == nil {
		return facedetect.Region{}, nil, errors.New("registration requires a face detector")
	}

	regions := r.locator.Locate(img)
	switch len(regions) {
	case 0:
		return facedetect.Region{}, nil, ErrNoFace
	case 1:
		return regions[0], regions[0].Crop(img), nil
	default:
		return facedetect.Region{}, nil, fmt.Errorf("%w: found %d", ErrMultipleFaces, len(regions))
	}
}

func (r *Registry) facePath(id string) string {
	return filepath.Join(r.opts.FacesDir, id+".png")
}

// writeCrop encodes the crop next to its final path and returns the temporary file name.
func (r *Registry) writeCrop(id string, crop image.Image) (string, error) {
	if err := os.MkdirAll(r.opts.FacesDir, 0o755); err != nil {
		return "", fmt.Errorf("create faces directory: %w", err)
	}

	f, err := os.CreateTemp(r.opts.FacesDir, id+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create face image: %w", err)
	}
	if err := png.Encode(f, crop); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("encode face image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write face image: %w", err)
	}
	return f.Name(), nil
}

// validateID rejects IDs that are empty or could escape the faces directory.
func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
