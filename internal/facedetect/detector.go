// Package facedetect locates face rectangles in raster frames with a pigo
// pixel-intensity-comparison cascade.
package facedetect

import (
	"errors"
	"fmt"
	"image"
	"os"
	"slices"

	pigo "github.com/esimov/pigo/core"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrNoCascade is returned when no cascade file is configured.
var ErrNoCascade = errors.New("face cascade path is not configured")

// Locator finds face regions in a frame.
type Locator interface {
	Locate(img image.Image) []Region
}

// Params are the fixed detection parameters of one detection path.
type Params struct {
	ScaleFactor  float64 // multiplicative step between scales
	ShiftFactor  float64 // window shift as a fraction of its size
	MinNeighbors int     // raw detections a face needs to be accepted
	MinSize      int     // smallest face side in px
	MaxSize      int     // largest face side in px, 0 means the shorter frame side
	IoUThreshold float64 // overlap above which detections vote for the same face
}

// ParamsFromConfig converts configured detector parameters.
func ParamsFromConfig(p config.DetectorParams) Params {
	return Params{
		ScaleFactor:  p.ScaleFactor,
		ShiftFactor:  p.ShiftFactor,
		MinNeighbors: p.MinNeighbors,
		MinSize:      p.MinSize,
		MaxSize:      p.MaxSize,
		IoUThreshold: p.IoUThreshold,
	}
}

// Detector runs a cascade with fixed parameters. It is safe for concurrent use.
type Detector struct {
	classifier *pigo.Pigo
	params     Params
}

// NewDetector unpacks a pigo cascade.
func NewDetector(cascade []byte, params Params) (*Detector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack face cascade: %w", err)
	}
	return &Detector{classifier: classifier, params: params}, nil
}

// LoadDetector reads a cascade file and builds a detector for it.
func LoadDetector(path string, params Params) (*Detector, error) {
	if path == "" {
		return nil, ErrNoCascade
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read face cascade %s: %w", path, err)
	}
	return NewDetector(data, params)
}

// Params returns the detection parameters.
func (d *Detector) Params() Params {
	return d.params
}

// Locate returns the face regions found in img, in frame coordinates.
// An empty result means no face; there are no error conditions.
func (d *Detector) Locate(img image.Image) []Region {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil
	}

	pixels, cols, rows := grayscale(img)
	maxSize := d.params.MaxSize
	if maxSize <= 0 || maxSize > min(cols, rows) {
		maxSize = min(cols, rows)
	}
	if d.params.MinSize > maxSize {
		return nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	raw := d.classifier.RunCascade(params, 0)
	clustered := d.classifier.ClusterDetections(raw, d.params.IoUThreshold)

	frame := image.Rect(0, 0, cols, rows)
	regions := acceptByVotes(raw, clustered, d.params, frame)
	for i := range regions {
		regions[i].X += bounds.Min.X
		regions[i].Y += bounds.Min.Y
	}
	return regions
}

// acceptByVotes keeps clustered detections that at least MinNeighbors raw detections
// overlap, drops any that overlap a better-supported one, and converts the rest to
// regions clipped to the frame.
func acceptByVotes(raw, clustered []pigo.Detection, params Params, frame image.Rectangle) []Region {
	type candidate struct {
		rect  image.Rectangle
		votes int
	}

	var candidates []candidate
	for _, c := range clustered {
		rect := detectionRect(c)
		if rect.Dx() < params.MinSize || rect.Dy() < params.MinSize {
			continue
		}

		votes := 0
		for _, r := range raw {
			if facematch.IoU(rect, detectionRect(r)) > params.IoUThreshold {
				votes++
			}
		}
		if votes < params.MinNeighbors {
			continue
		}
		candidates = append(candidates, candidate{rect: rect, votes: votes})
	}

	// Ties keep cascade order.
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return b.votes - a.votes
	})

	var kept []image.Rectangle
	var regions []Region
	for _, c := range candidates {
		if slices.ContainsFunc(kept, func(k image.Rectangle) bool {
			return facematch.IoU(c.rect, k) > params.IoUThreshold
		}) {
			continue
		}
		kept = append(kept, c.rect)

		clipped := facematch.Clip(c.rect, frame)
		if clipped.Empty() {
			continue
		}
		regions = append(regions, RegionFromRect(clipped))
	}
	return regions
}

// detectionRect converts pigo's centre-and-scale form to a rectangle.
func detectionRect(d pigo.Detection) image.Rectangle {
	return facematch.SquareAround(d.Col, d.Row, d.Scale)
}

// grayscale flattens img into a row-major luma buffer anchored at the origin.
func grayscale(img image.Image) ([]uint8, int, int) {
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	pixels := make([]uint8, cols*rows)

	if gray, ok := img.(*image.Gray); ok {
		for y := range rows {
			start := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(pixels[y*cols:(y+1)*cols], gray.Pix[start:start+cols])
		}
		return pixels, cols, rows
	}

	for y := range rows {
		for x := range cols {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pixels[y*cols+x] = uint8((299*(r>>8) + 587*(g>>8) + 114*(b>>8) + 500) / 1000)
		}
	}
	return pixels, cols, rows
}
