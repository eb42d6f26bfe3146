package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"github.com/kozaktomas/face-attendance/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned when a region has no pixels to hash.
var ErrEmptyImage = errors.New("image has no pixels")

// Extract computes the average-hash signature of a face crop.
//
// The crop is reduced to luma, scaled to a canonical square and partitioned into an
// 8x8 grid. A bit is set when its cell mean is at or above the mean of all cells.
// Bits are laid out row-major starting at the most significant bit.
func Extract(img image.Image) (Signature, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, ErrEmptyImage
	}

	gray := toGrayscale(img)
	canonical := resizeGray(gray, constants.CanonicalFaceSize, constants.CanonicalFaceSize)
	means := cellMeans(canonical, constants.SignatureGrid)

	return averageHash(means), nil
}

// Decode decodes jpeg, png, gif or bmp data.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// HammingDistance computes the number of differing bits between two signatures.
func HammingDistance(a, b Signature) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// toGrayscale converts an image to an 8-bit luma raster anchored at the origin.
func toGrayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.Pix[(y-bounds.Min.Y)*gray.Stride+(x-bounds.Min.X)] = uint8(luma + 0.5)
		}
	}

	return gray
}

// resizeGray scales a luma raster to the specified dimensions.
func resizeGray(src *image.Gray, width, height int) *image.Gray {
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// cellMeans averages the raster over a grid x grid partition, row-major.
// Cell edges fall on integer pixel boundaries, so cells differ by at most one pixel per side.
func cellMeans(gray *image.Gray, grid int) []float64 {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	means := make([]float64, 0, grid*grid)

	for row := range grid {
		y0, y1 := row*height/grid, (row+1)*height/grid
		for col := range grid {
			x0, x1 := col*width/grid, (col+1)*width/grid

			var sum, count float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += float64(gray.Pix[y*gray.Stride+x])
					count++
				}
			}
			if count > 0 {
				means = append(means, sum/count)
			} else {
				means = append(means, 0)
			}
		}
	}

	return means
}

// averageHash sets bit i (from the top) when means[i] is at or above the overall mean.
func averageHash(means []float64) Signature {
	var total float64
	for _, m := range means {
		total += m
	}
	overall := total / float64(len(means))

	var hash uint64
	for i, m := range means {
		if m >= overall {
			hash |= 1 << (len(means) - 1 - i)
		}
	}

	return Signature(hash)
}
