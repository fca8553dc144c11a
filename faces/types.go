package faces

import (
	"fmt"
	"image"

	"faceauth/utils"
)

// DescriptorSize is the dimension of the dlib face embedding
const DescriptorSize = 128

type (
	// BoundingBox is a detected face region, (X, Y) being the top left corner
	BoundingBox struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	Descriptor [DescriptorSize]float32
	Detection  struct {
		Box        BoundingBox `json:"box"`
		Descriptor Descriptor  `json:"-"`
	}

	// Detector locates faces. Zero detections is a normal outcome, not an error.
	Detector interface {
		Detect(img []byte) ([]Detection, error)
	}
	// Encoder turns a face image into stored encoding bytes
	Encoder interface {
		Encode(img []byte) ([]byte, error)
	}
	// Comparator scores two encodings, returning a confidence in [0,100]
	Comparator interface {
		Compare(a, b []byte) (float64, error)
	}

	DetectorOptions struct {
		MinFaceSize int  // detections with a smaller side are dropped
		UseCNN      bool // CNN detector instead of HOG
	}
)

func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

func (d Descriptor) Bytes() []byte {
	return utils.Float32ArrayToByteArray(d[:])
}

func DescriptorFromBytes(b []byte) (d Descriptor, err error) {
	values, err := utils.ByteArrayToFloat32Array(b)
	if err != nil {
		return d, err
	}
	if len(values) != DescriptorSize {
		return d, fmt.Errorf("%w: got %d values, want %d", ErrEncodingMismatch, len(values), DescriptorSize)
	}
	copy(d[:], values)
	return d, nil
}

// FilterDetections drops faces smaller than minSize on either side
func FilterDetections(detections []Detection, minSize int) []Detection {
	result := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Box.Width < minSize || d.Box.Height < minSize {
			continue
		}
		result = append(result, d)
	}
	return result
}

// Largest returns the detection with the biggest area
func Largest(detections []Detection) (best Detection, ok bool) {
	for _, d := range detections {
		if !ok || d.Box.Area() > best.Box.Area() {
			best, ok = d, true
		}
	}
	return
}
