package fingerprint

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    Signature
		hash2    Signature
		expected int
	}{
		{"identical", 0x0, 0x0, 0},
		{"completely different", 0xFFFFFFFFFFFFFFFF, 0x0, 64},
		{"one bit different", 0x1, 0x0, 1},
		{"four bits different", 0xF, 0x0, 4},
		{"half different", 0xFFFFFFFF00000000, 0x0, 32},
		{"alternating", 0xAAAAAAAAAAAAAAAA, 0x5555555555555555, 64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := HammingDistance(tc.hash1, tc.hash2)
			if result != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d",
					tc.hash1, tc.hash2, result, tc.expected)
			}
		})
	}
}

func TestExtract_Deterministic(t *testing.T) {
	img := createPatternImage(160, 120)

	first, err := Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if first != second {
		t.Errorf("signature should be deterministic: %s vs %s", first, second)
	}
	if HammingDistance(first, second) != 0 {
		t.Errorf("self distance should be 0, got %d", HammingDistance(first, second))
	}
}

func TestExtract_UniformImageSetsAllBits(t *testing.T) {
	img := createTestImage(100, 100, color.RGBA{128, 128, 128, 255})

	sig, err := Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	// Every cell equals the overall mean, and equality sets the bit.
	if sig != Signature(0xFFFFFFFFFFFFFFFF) {
		t.Errorf("expected all bits set, got %s", sig)
	}
}

func TestExtract_HalfAndHalf(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := range 200 {
		for x := range 200 {
			if x < 100 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}

	sig, err := Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	// Left four cells of every row are dark, right four are bright.
	if sig != Signature(0x0F0F0F0F0F0F0F0F) {
		t.Errorf("expected 0f0f0f0f0f0f0f0f, got %s", sig)
	}
}

func TestExtract_IgnoresBoundsOffset(t *testing.T) {
	full := createPatternImage(200, 200)
	crop := full.SubImage(image.Rect(50, 40, 150, 140))

	copied := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := range 100 {
		for x := range 100 {
			copied.Set(x, y, crop.At(50+x, 40+y))
		}
	}

	a, err := Extract(crop)
	if err != nil {
		t.Fatalf("Extract(crop) failed: %v", err)
	}
	b, err := Extract(copied)
	if err != nil {
		t.Fatalf("Extract(copied) failed: %v", err)
	}

	if a != b {
		t.Errorf("sub-image and copied crop should hash the same: %s vs %s", a, b)
	}
}

func TestExtract_EmptyImage(t *testing.T) {
	_, err := Extract(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}

	_, err = Extract(nil)
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage for nil image, got %v", err)
	}
}

func TestDecode_PNGRoundTripMatchesSource(t *testing.T) {
	img := createPatternImage(120, 140)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}

	direct, err := Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	roundTrip, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	decoded, err := Extract(roundTrip)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if direct != decoded {
		t.Errorf("lossless round trip should keep the signature: %s vs %s", direct, decoded)
	}
}

func TestDecode_JPEG(t *testing.T) {
	img := createTestImage(64, 64, color.White)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg encode failed: %v", err)
	}

	if _, err := Decode(buf.Bytes()); err != nil {
		t.Errorf("Decode failed for jpeg: %v", err)
	}
}

func TestDecode_InvalidImage(t *testing.T) {
	_, err := Decode([]byte("not an image"))
	if err == nil {
		t.Error("Decode should fail for invalid image data")
	}
}

func TestResizeGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 37, 53))

	resized := resizeGray(src, 100, 100)

	bounds := resized.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("Resized image should be 100x100, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestToGrayscale(t *testing.T) {
	img := createTestImage(10, 10, color.RGBA{255, 0, 0, 255}) // Red

	gray := toGrayscale(img)

	if gray.Bounds().Dx() != 10 || gray.Bounds().Dy() != 10 {
		t.Errorf("Grayscale size should be 10x10, got %v", gray.Bounds())
	}

	// Red should convert to approximately 0.299 * 255 = 76.245
	if got := gray.GrayAt(5, 5).Y; got != 76 {
		t.Errorf("expected luma 76 for red, got %d", got)
	}
}

func TestCellMeans(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range gray.Pix {
		gray.Pix[i] = 200
	}

	means := cellMeans(gray, 8)

	if len(means) != 64 {
		t.Fatalf("expected 64 cells, got %d", len(means))
	}
	for i, m := range means {
		if m != 200 {
			t.Errorf("cell %d mean = %v, want 200", i, m)
		}
	}
}

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage draws a deterministic, non-uniform pattern.
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			v := uint8((x*7 + y*13 + (x*y)%31) % 256)
			img.Set(x, y, color.RGBA{v, 255 - v, uint8((x + y) % 256), 255})
		}
	}
	return img
}
