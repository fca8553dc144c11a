package training

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"faceauth/faces"
	"faceauth/logger"
	"faceauth/storage"

	"go.uber.org/zap"
)

const ModelVersion = 1

var (
	ErrModelNotFound = errors.New("trained model not found")
	ErrInvalidModel  = errors.New("invalid trained model")
)

// timeNow is swapped in tests
var timeNow = time.Now

// Model is the persisted training artifact
type Model struct {
	Version     int                `json:"version"`
	TrainedAt   time.Time          `json:"trained_at"`
	Labels      []int32            `json:"labels"`
	Descriptors []faces.Descriptor `json:"descriptors"`
}

// Classifier is anything that can be loaded with labeled samples and asked for the closest label.
// Classify returns -1 when no sample is close enough.
type Classifier interface {
	SetSamples(descriptors []faces.Descriptor, labels []int32)
	Classify(d faces.Descriptor, maxDistanceSq float32) int
}

func Train(samples []Sample) (*Model, error) {
	if len(samples) == 0 {
		return nil, ErrNoFacesFound
	}
	m := &Model{
		Version:     ModelVersion,
		TrainedAt:   timeNow().UTC(),
		Labels:      make([]int32, len(samples)),
		Descriptors: make([]faces.Descriptor, len(samples)),
	}
	unique := map[int32]bool{}
	for i, s := range samples {
		m.Labels[i] = s.Label
		m.Descriptors[i] = s.Descriptor
		unique[s.Label] = true
	}
	logger.Info("training completed", zap.Int("faces", len(samples)), zap.Int("labels", len(unique)))
	return m, nil
}

func (m *Model) Validate() error {
	if m.Version != ModelVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidModel, m.Version)
	}
	if len(m.Labels) == 0 || len(m.Labels) != len(m.Descriptors) {
		return fmt.Errorf("%w: %d labels for %d descriptors", ErrInvalidModel, len(m.Labels), len(m.Descriptors))
	}
	return nil
}

// Apply loads the model's samples into c
func (m *Model) Apply(c Classifier) error {
	if err := m.Validate(); err != nil {
		return err
	}
	c.SetSamples(m.Descriptors, m.Labels)
	return nil
}

// ModelStore keeps the serialized model under a single storage key
type ModelStore struct {
	storage storage.StorageAPI
	key     string
}

func NewModelStore(storage storage.StorageAPI, key string) *ModelStore {
	return &ModelStore{storage: storage, key: key}
}

func (s *ModelStore) Save(m *Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if _, err = s.storage.Save(s.key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("saving model to %s: %w", s.key, err)
	}
	logger.Info("model saved", zap.String("key", s.key), zap.Int("samples", len(m.Labels)))
	return nil
}

func (s *ModelStore) Load() (*Model, error) {
	if !s.storage.Exists(s.key) {
		return nil, ErrModelNotFound
	}
	buf := bytes.Buffer{}
	if _, err := s.storage.Load(s.key, &buf); err != nil {
		return nil, fmt.Errorf("loading model from %s: %w", s.key, err)
	}
	m := &Model{}
	if err := json.Unmarshal(buf.Bytes(), m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NearestClassifier is a pure Go Classifier, used when dlib is not available and in tests
type NearestClassifier struct {
	mutex       sync.RWMutex
	descriptors []faces.Descriptor
	labels      []int32
}

func (c *NearestClassifier) SetSamples(descriptors []faces.Descriptor, labels []int32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.descriptors = append([]faces.Descriptor(nil), descriptors...)
	c.labels = append([]int32(nil), labels...)
}

func (c *NearestClassifier) Classify(d faces.Descriptor, maxDistanceSq float32) int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	best, bestDistance := -1, math.Inf(1)
	for i := range c.descriptors {
		distance := faces.SquaredEuclideanDistance(d[:], c.descriptors[i][:])
		if distance < bestDistance {
			best, bestDistance = i, distance
		}
	}
	if best < 0 || bestDistance > float64(maxDistanceSq) {
		return -1
	}
	return int(c.labels[best])
}
