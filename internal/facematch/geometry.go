package facematch

import "image"

// IoU calculates Intersection over Union between two rectangles in the same coordinate system.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0 // No intersection
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

// SquareAround returns the square of side size centred on (cx, cy).
// Cascade detectors report detections as centre plus scale.
func SquareAround(cx, cy, size int) image.Rectangle {
	half := size / 2
	return image.Rect(cx-half, cy-half, cx-half+size, cy-half+size)
}

// Clip restricts r to bounds. The result is empty when they do not overlap.
func Clip(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}
