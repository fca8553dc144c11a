// Package training builds the identification model and bulk enrollments from a directory of labeled
// face images. A file's label is the leading number of its name: "3.jpg", "3.1.jpg" and "3_front.png"
// all belong to user 3.
package training

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"faceauth/faces"
	"faceauth/logger"

	"go.uber.org/zap"
)

var (
	ErrNoImagesFound = errors.New("no images found")
	ErrNoFacesFound  = errors.New("no faces found in any image")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Sample struct {
	Label      int32
	Region     image.Image // grayscale face crop, faces.RegionSize square
	Descriptor faces.Descriptor
	Source     string
}

// LabelFromFilename returns the leading number of the file's base name
func LabelFromFilename(name string) (int32, error) {
	base := filepath.Base(name)
	end := 0
	for end < len(base) && base[end] >= '0' && base[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no numeric label in %q", base)
	}
	label, err := strconv.ParseInt(base[:end], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("label of %q: %w", base, err)
	}
	return int32(label), nil
}

func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImagesFound, err)
	}
	result := []string{}
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		result = append(result, filepath.Join(dir, e.Name()))
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImagesFound, dir)
	}
	sort.Strings(result)
	return result, nil
}

// LoadLabeledFaces detects every face in every labeled image of dir. Bad files are logged and skipped.
func LoadLabeledFaces(dir string, detector faces.Detector) ([]Sample, error) {
	paths, err := imageFiles(dir)
	if err != nil {
		logger.Error("no training images", zap.String("dir", dir), zap.Error(err))
		return nil, err
	}
	logger.Info("found images for training", zap.Int("count", len(paths)))

	samples := []Sample{}
	for _, path := range paths {
		found, err := loadFile(path, detector)
		if err != nil {
			logger.Error("error processing image", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(found) == 0 {
			logger.Warn("no faces detected, skipping image", zap.String("path", path))
			continue
		}
		logger.Debug("processed image", zap.String("path", path), zap.Int("faces", len(found)))
		samples = append(samples, found...)
	}
	if len(samples) == 0 {
		logger.Error("no valid faces found in any images", zap.String("dir", dir))
		return nil, ErrNoFacesFound
	}
	return samples, nil
}

func loadFile(path string, detector faces.Detector) ([]Sample, error) {
	label, err := LabelFromFilename(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prepared, err := faces.PrepareImage(data)
	if err != nil {
		return nil, err
	}
	detections, err := detector.Detect(prepared.JPEG)
	if err != nil {
		return nil, err
	}
	result := make([]Sample, 0, len(detections))
	for _, d := range detections {
		region, err := faces.CropRegion(prepared.Gray, d.Box)
		if err != nil {
			logger.Warn("skipping face outside of image", zap.String("path", path), zap.Error(err))
			continue
		}
		result = append(result, Sample{
			Label:      label,
			Region:     region,
			Descriptor: d.Descriptor,
			Source:     filepath.Base(path),
		})
	}
	return result, nil
}
