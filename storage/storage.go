package storage

import (
	"fmt"
	"io"

	"faceauth/config"
	"faceauth/logger"

	"go.uber.org/zap"
)

// StorageAPI keeps opaque blobs: the trained model, training data backups and audit archives
type StorageAPI interface {
	Save(path string, reader io.Reader) (int64, error)
	Load(path string, writer io.Writer) (int64, error)
	Exists(path string) bool
	Delete(path string) error
}

type Storage struct {
	Bucket Bucket
}

// Init builds the configured storage
func Init() (StorageAPI, error) {
	bucket := Bucket{
		Name:     config.S3_BUCKET,
		Path:     config.STORAGE_PATH,
		Region:   config.S3_REGION,
		Endpoint: config.S3_ENDPOINT,
	}
	if config.S3_ACCESS_KEY != "" {
		bucket.AuthDetails = config.S3_ACCESS_KEY + ":" + config.S3_SECRET_KEY
	}
	switch config.STORAGE_TYPE {
	case "", "disk":
		bucket.StorageType = StorageTypeFile
	case "s3":
		bucket.StorageType = StorageTypeS3
	default:
		return nil, fmt.Errorf("unknown storage type %q", config.STORAGE_TYPE)
	}
	return StorageFrom(&bucket)
}

func StorageFrom(bucket *Bucket) (StorageAPI, error) {
	logger.Info("storage configured", zap.String("bucket", bucket.Name), zap.String("path", bucket.Path), zap.Uint8("type", uint8(bucket.StorageType)))
	switch bucket.StorageType {
	case StorageTypeFile:
		return NewDiskStorage(bucket), nil
	case StorageTypeS3:
		if bucket.Name == "" {
			return nil, fmt.Errorf("S3 storage needs a bucket name")
		}
		s3Storage, err := NewS3Storage(bucket)
		if err != nil {
			return nil, err
		}
		return s3Storage, nil
	}
	return nil, fmt.Errorf("storage type unavailable: %d", bucket.StorageType)
}

type countingReader struct {
	io.Reader
	n int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.n += int64(n)
	return n, err
}
