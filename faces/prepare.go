package faces

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/nfnt/resize"
)

const RegionSize = 150 // side of normalized face crops

// PreparedImage holds the grayscale frame and its JPEG encoding, which is what the detector consumes
type PreparedImage struct {
	Gray *image.Gray
	JPEG []byte
}

// PrepareImage decodes, shrinks to MaxImageSize if necessary and converts to grayscale
func PrepareImage(data []byte) (*PreparedImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	size := img.Bounds().Size()
	if size.X > MaxImageSize || size.Y > MaxImageSize {
		img = resize.Thumbnail(MaxImageSize, MaxImageSize, img, resize.Lanczos3)
	}
	gray := toGray(img)
	buf := bytes.Buffer{}
	if err = jpeg.Encode(&buf, gray, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return &PreparedImage{Gray: gray, JPEG: buf.Bytes()}, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// CropRegion cuts the face out of the frame and scales it to RegionSize x RegionSize
func CropRegion(gray *image.Gray, box BoundingBox) (image.Image, error) {
	r := box.Rect().Intersect(gray.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("face region %v outside of image %v", box, gray.Bounds())
	}
	return resize.Resize(RegionSize, RegionSize, gray.SubImage(r), resize.Bilinear), nil
}

// DetectorEncoder encodes the largest face found by a Detector
type DetectorEncoder struct {
	Detector Detector
}

func (e DetectorEncoder) Encode(img []byte) ([]byte, error) {
	prepared, err := PrepareImage(img)
	if err != nil {
		return nil, err
	}
	detections, err := e.Detector.Detect(prepared.JPEG)
	if err != nil {
		return nil, err
	}
	best, ok := Largest(detections)
	if !ok {
		return nil, ErrNoFaceDetected
	}
	return best.Descriptor.Bytes(), nil
}
