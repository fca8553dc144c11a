package training

import (
	"errors"
	"sync/atomic"

	"faceauth/faces"
)

var ErrModelNotLoaded = errors.New("no trained model loaded")

type Identity struct {
	Label int32
	Name  string
	Box   faces.BoundingBox
}

// Identifier answers "who is this" for every face in an image, using the last loaded model
type Identifier struct {
	Detector      faces.Detector
	Classifier    Classifier
	Labels        *LabelDirectory
	MaxDistanceSq float32
	loaded        atomic.Bool
}

func (i *Identifier) Load(m *Model) error {
	if err := m.Apply(i.Classifier); err != nil {
		return err
	}
	i.loaded.Store(true)
	return nil
}

func (i *Identifier) Loaded() bool {
	return i.loaded.Load()
}

// Identify expects raw image bytes. Faces that match nobody get label -1 and UnknownName.
func (i *Identifier) Identify(img []byte) ([]Identity, error) {
	if !i.Loaded() {
		return nil, ErrModelNotLoaded
	}
	prepared, err := faces.PrepareImage(img)
	if err != nil {
		return nil, err
	}
	detections, err := i.Detector.Detect(prepared.JPEG)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return nil, faces.ErrNoFaceDetected
	}
	result := make([]Identity, 0, len(detections))
	for _, d := range detections {
		label := int32(i.Classifier.Classify(d.Descriptor, i.MaxDistanceSq))
		name := UnknownName
		if label >= 0 {
			name = i.Labels.Name(label)
		}
		result = append(result, Identity{Label: label, Name: name, Box: d.Box})
	}
	return result, nil
}
