// Package dlib wires the go-face (dlib) recognizer into the faces capability interfaces.
// Importing it requires the dlib headers and models; everything else in the module builds without.
package dlib

import (
	"fmt"
	"sync"

	"faceauth/faces"

	"github.com/Kagami/go-face"
)

// Recognizer is a faces.Detector and a training.Classifier.
// go-face recognizers are not safe for concurrent use, calls are serialized.
type Recognizer struct {
	rec   *face.Recognizer
	opts  faces.DetectorOptions
	mutex sync.Mutex
}

// New loads the dlib models from modelsDir. Failure is fatal for the caller: there is no per-request
// recovery from a detector that cannot load.
func New(modelsDir string, opts faces.DetectorOptions) (*Recognizer, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faces.ErrDetectorInit, err)
	}
	return &Recognizer{rec: rec, opts: opts}, nil
}

// Detect expects JPEG data, see faces.PrepareImage
func (r *Recognizer) Detect(img []byte) ([]faces.Detection, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var (
		found []face.Face
		err   error
	)
	if r.opts.UseCNN {
		found, err = r.rec.RecognizeCNN(img)
	} else {
		found, err = r.rec.Recognize(img)
	}
	if err != nil {
		return nil, err
	}
	result := make([]faces.Detection, 0, len(found))
	for _, cur := range found {
		result = append(result, faces.Detection{
			Box:        faces.BoxFromRect(cur.Rectangle),
			Descriptor: faces.Descriptor(cur.Descriptor),
		})
	}
	return faces.FilterDetections(result, r.opts.MinFaceSize), nil
}

func (r *Recognizer) SetSamples(descriptors []faces.Descriptor, labels []int32) {
	samples := make([]face.Descriptor, len(descriptors))
	for i, d := range descriptors {
		samples[i] = face.Descriptor(d)
	}
	r.mutex.Lock()
	r.rec.SetSamples(samples, labels)
	r.mutex.Unlock()
}

// Classify returns the label of the closest sample, or -1 when none is within maxDistanceSq
func (r *Recognizer) Classify(d faces.Descriptor, maxDistanceSq float32) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.rec.ClassifyThreshold(face.Descriptor(d), maxDistanceSq)
}

func (r *Recognizer) Close() {
	r.rec.Close()
}
