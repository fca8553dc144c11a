package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorage(t *testing.T) {
	base := t.TempDir()
	s, err := StorageFrom(&Bucket{StorageType: StorageTypeFile, Path: base})
	require.NoError(t, err)

	assert.False(t, s.Exists("models/trainer.json"))
	n, err := s.Save("models/trainer.json", strings.NewReader(`{"version":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.True(t, s.Exists("models/trainer.json"))

	info, err := os.Stat(filepath.Join(base, "models", "trainer.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Overwrite
	_, err = s.Save("models/trainer.json", strings.NewReader(`{"version":2}`))
	require.NoError(t, err)
	buf := bytes.Buffer{}
	_, err = s.Load("models/trainer.json", &buf)
	require.NoError(t, err)
	assert.Equal(t, `{"version":2}`, buf.String())

	entries, err := os.ReadDir(filepath.Join(base, "models"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	require.NoError(t, s.Delete("models/trainer.json"))
	assert.False(t, s.Exists("models/trainer.json"))
	_, err = s.Load("models/trainer.json", &buf)
	assert.Error(t, err)
}

func TestBucket_GetRemotePath(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
		want   string
	}{
		{"no prefix", "", "models/a.json", "models/a.json"},
		{"prefix", "faceauth", "models/a.json", "faceauth/models/a.json"},
		{"slashes", "/faceauth/", "/models/a.json", "faceauth/models/a.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bucket{Path: tt.prefix}
			assert.Equal(t, tt.want, b.GetRemotePath(tt.path))
		})
	}
}

func TestBucket_credentials(t *testing.T) {
	key, secret := (&Bucket{AuthDetails: "key:sec:ret"}).credentials()
	assert.Equal(t, "key", key)
	assert.Equal(t, "sec:ret", secret)

	key, _ = (&Bucket{}).credentials()
	assert.Empty(t, key)
}

func TestStorageFrom_S3NeedsBucket(t *testing.T) {
	_, err := StorageFrom(&Bucket{StorageType: StorageTypeS3})
	assert.Error(t, err)
}
