package training

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"faceauth/faces"
	"faceauth/models"
	"faceauth/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDetector tells images apart by their width
type stubDetector struct {
	byWidth map[int][]faces.Detection
}

func (d stubDetector) Detect(img []byte) ([]faces.Detection, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, err
	}
	return d.byWidth[cfg.Width], nil
}

func descriptor(v float32) (d faces.Descriptor) {
	d[0] = v
	return
}

func detection(v float32) []faces.Detection {
	return []faces.Detection{{Box: faces.BoundingBox{X: 10, Y: 10, Width: 60, Height: 60}, Descriptor: descriptor(v)}}
}

func pngImage(t *testing.T, width int) []byte {
	t.Helper()
	buf := bytes.Buffer{}
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, 200))))
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0600))
}

func TestLabelFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    int32
		wantErr bool
	}{
		{"3.jpg", 3, false},
		{"3.1.jpg", 3, false},
		{"12_20240101.png", 12, false},
		{"/data/faces/7.jpeg", 7, false},
		{"user.jpg", 0, true},
		{".jpg", 0, true},
		{"99999999999.jpg", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LabelFromFilename(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadLabeledFaces(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.png", pngImage(t, 200))
	writeFile(t, dir, "2.1.png", pngImage(t, 210))
	writeFile(t, dir, "3_front.PNG", pngImage(t, 220))
	writeFile(t, dir, "4.png", []byte("not an image"))
	writeFile(t, dir, "5.png", pngImage(t, 120))
	writeFile(t, dir, "abc.png", pngImage(t, 200))
	writeFile(t, dir, "notes.txt", []byte("hello"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "6.jpg"), 0700))

	detector := stubDetector{byWidth: map[int][]faces.Detection{
		200: detection(1),
		210: detection(2),
		220: detection(3),
	}}
	samples, err := LoadLabeledFaces(dir, detector)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	for i, s := range samples {
		assert.Equal(t, int32(i+1), s.Label)
		assert.Equal(t, descriptor(float32(i+1)), s.Descriptor)
		assert.Equal(t, image.Pt(faces.RegionSize, faces.RegionSize), s.Region.Bounds().Size())
	}
	assert.Equal(t, "3_front.PNG", samples[2].Source)
}

func TestLoadLabeledFaces_Errors(t *testing.T) {
	detector := stubDetector{byWidth: map[int][]faces.Detection{200: detection(1)}}

	_, err := LoadLabeledFaces(filepath.Join(t.TempDir(), "missing"), detector)
	assert.ErrorIs(t, err, ErrNoImagesFound)

	empty := t.TempDir()
	writeFile(t, empty, "readme.md", []byte("#"))
	_, err = LoadLabeledFaces(empty, detector)
	assert.ErrorIs(t, err, ErrNoImagesFound)

	faceless := t.TempDir()
	writeFile(t, faceless, "1.png", pngImage(t, 300))
	_, err = LoadLabeledFaces(faceless, detector)
	assert.ErrorIs(t, err, ErrNoFacesFound)
}

func TestTrainAndModelStore(t *testing.T) {
	previous := timeNow
	timeNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = previous })

	_, err := Train(nil)
	assert.ErrorIs(t, err, ErrNoFacesFound)

	m, err := Train([]Sample{{Label: 1, Descriptor: descriptor(1)}, {Label: 2, Descriptor: descriptor(2)}})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, m.Labels)

	st := storage.NewDiskStorage(&storage.Bucket{Path: t.TempDir()})
	store := NewModelStore(st, "models/trainer.json")
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrModelNotFound)

	require.NoError(t, store.Save(m))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, m.Labels, loaded.Labels)
	assert.Equal(t, m.Descriptors, loaded.Descriptors)
	assert.True(t, m.TrainedAt.Equal(loaded.TrainedAt))

	_, err = st.Save("models/trainer.json", bytes.NewReader([]byte(`{"version":1,"labels":[1],"descriptors":[]}`)))
	require.NoError(t, err)
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestNearestClassifier(t *testing.T) {
	c := &NearestClassifier{}
	assert.Equal(t, -1, c.Classify(descriptor(0), 1))

	c.SetSamples([]faces.Descriptor{descriptor(0), descriptor(1)}, []int32{5, 6})
	tests := []struct {
		value float32
		want  int
	}{
		{0.1, 5},
		{0.9, 6},
		{1.2, 6},
		{2, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(descriptor(tt.value), 0.11), "value %v", tt.value)
	}
}

func TestLabelDirectory(t *testing.T) {
	d := NewLabelDirectory()
	assert.Equal(t, NoneName, d.Name(0))
	assert.Equal(t, UnknownName, d.Name(1))

	require.NoError(t, d.Reload(func() ([]models.User, error) {
		return []models.User{{ID: 1, Name: "jerry"}, {ID: 2, Name: "inno"}}, nil
	}))
	assert.Equal(t, "jerry", d.Name(1))
	assert.Equal(t, "inno", d.Name(2))
	assert.True(t, d.Has(2))
	assert.False(t, d.Has(0))
	assert.Equal(t, 3, d.Len())

	assert.Error(t, d.Reload(func() ([]models.User, error) { return nil, errors.New("db down") }))
	assert.Equal(t, "inno", d.Name(2), "previous table kept")

	d.Set([]models.User{{ID: 2, Name: "inno"}})
	assert.Equal(t, UnknownName, d.Name(1))
	assert.Equal(t, NoneName, d.Name(0))

	d.Put(models.User{ID: 3, Name: "carol"})
	d.Put(models.User{ID: 0, Name: "nobody"})
	d.Put(models.User{ID: 1 << 40, Name: "overflow"})
	assert.Equal(t, "carol", d.Name(3))
	assert.Equal(t, NoneName, d.Name(0))
	assert.Equal(t, 3, d.Len())
}

func TestIdentifier(t *testing.T) {
	labels := NewLabelDirectory()
	labels.Set([]models.User{{ID: 1, Name: "jerry"}})
	detector := stubDetector{byWidth: map[int][]faces.Detection{
		200: detection(1),
		300: detection(5),
	}}
	identifier := &Identifier{Detector: detector, Classifier: &NearestClassifier{}, Labels: labels, MaxDistanceSq: 0.11}

	_, err := identifier.Identify(pngImage(t, 200))
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	assert.Error(t, identifier.Load(&Model{Version: ModelVersion}))
	require.NoError(t, identifier.Load(&Model{Version: ModelVersion, Labels: []int32{1}, Descriptors: []faces.Descriptor{descriptor(1)}}))

	found, err := identifier.Identify(pngImage(t, 200))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, Identity{Label: 1, Name: "jerry", Box: faces.BoundingBox{X: 10, Y: 10, Width: 60, Height: 60}}, found[0])

	found, err = identifier.Identify(pngImage(t, 300))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), found[0].Label)
	assert.Equal(t, UnknownName, found[0].Name)

	_, err = identifier.Identify(pngImage(t, 400))
	assert.ErrorIs(t, err, faces.ErrNoFaceDetected)
}

type fakeSaver struct {
	saved []uint64
	fail  bool
}

func (s *fakeSaver) Save(_ context.Context, userID uint64, encoding []byte, meta models.Metadata) (uint64, error) {
	if s.fail {
		return 0, errors.New("db down")
	}
	s.saved = append(s.saved, userID)
	return uint64(len(s.saved)), nil
}

func TestEnroll(t *testing.T) {
	samples := []Sample{
		{Label: 1, Descriptor: descriptor(1), Source: "1.png"},
		{Label: 9, Descriptor: descriptor(9), Source: "9.png"},
		{Label: 2, Descriptor: descriptor(2), Source: "2.png"},
	}
	known := func(label int32) bool { return label == 1 || label == 2 }

	saver := &fakeSaver{}
	enrolled, err := Enroll(context.Background(), samples, saver, known)
	require.NoError(t, err)
	assert.Equal(t, 2, enrolled)
	assert.Equal(t, []uint64{1, 2}, saver.saved)

	_, err = Enroll(context.Background(), samples, &fakeSaver{fail: true}, known)
	assert.Error(t, err)
}

func TestBackupDir(t *testing.T) {
	previous := timeNow
	timeNow = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = previous })

	dir := t.TempDir()
	writeFile(t, dir, "1.png", []byte("one"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "extra"), 0700))
	writeFile(t, filepath.Join(dir, "extra"), "2.png", []byte("two"))

	st := storage.NewDiskStorage(&storage.Bucket{Path: t.TempDir()})
	prefix, copied, err := BackupDir(dir, st)
	require.NoError(t, err)
	assert.Equal(t, "backups/backup_20240501_123000", prefix)
	assert.Equal(t, 2, copied)

	buf := bytes.Buffer{}
	_, err = st.Load(prefix+"/extra/2.png", &buf)
	require.NoError(t, err)
	assert.Equal(t, "two", buf.String())
}
