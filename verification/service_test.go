package verification

import (
	"context"
	"testing"
	"time"

	"faceauth/faces"
	"faceauth/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(h *harness) *Service {
	return &Service{
		Engine:  h.engine,
		Saver:   h.store,
		Audits:  h.audits,
		Encoder: h.encoder,
		Timeout: time.Second,
	}
}

func TestService_SaveFaceData(t *testing.T) {
	h := newHarness(t)
	s := newService(h)
	ctx := context.Background()

	_, err := s.SaveFaceData(ctx, 1, testImage(t, 50, 50), nil)
	assert.ErrorIs(t, err, faces.ErrInvalidImage)
	assert.Zero(t, h.encoder.calls.Load())

	h.encoder.probe = []byte("alice-enrolled")
	id, err := s.SaveFaceData(ctx, 1, testImage(t, 400, 300), models.Metadata{"source": "camera"})
	require.NoError(t, err)
	e := h.encoding(t, id)
	assert.Equal(t, []byte("alice-enrolled"), e.EncodingData)
	assert.Equal(t, faces.Hash(e.EncodingData), e.DataHash)
	count, err := s.FaceCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	h.encoder.err = faces.ErrNoFaceDetected
	_, err = s.SaveFaceData(ctx, 1, testImage(t, 400, 300), nil)
	assert.ErrorIs(t, err, faces.ErrNoFaceDetected)
}

func TestService_VerifyFaceAndAuditTrail(t *testing.T) {
	h := newHarness(t)
	s := newService(h)
	ctx := context.Background()
	h.enroll(t, 1, []byte("alice"))
	h.comparator.set([]byte("alice"), 92.5)

	match, confidence := s.VerifyFace(ctx, testImage(t, 200, 200), 1, "10.1.1.1")
	assert.True(t, match)
	assert.Equal(t, 92.5, confidence)

	match, confidence = s.VerifyFace(ctx, testImage(t, 200, 200), 2, "10.1.1.1")
	assert.False(t, match)
	assert.Zero(t, confidence)

	trail, err := s.AuditTrail(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.True(t, trail[0].Success)
	assert.Equal(t, models.EventTypeFaceVerification, trail[0].EventType)
}

func TestActiveUserLookup(t *testing.T) {
	h := newHarness(t)
	active := models.User{Name: "active", Email: "active@example.com", IsActive: true}
	inactive := models.User{Name: "inactive", Email: "inactive@example.com"}
	require.NoError(t, h.db.Create(&active).Error)
	require.NoError(t, h.db.Create(&inactive).Error)

	lookup := ActiveUserLookup(h.db)
	tests := []struct {
		name string
		id   uint64
		want bool
	}{
		{"active", active.ID, true},
		{"inactive", inactive.ID, false},
		{"unknown", 999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookup(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	h.engine.Users = lookup
	h.enroll(t, inactive.ID, []byte("x"))
	h.comparator.set([]byte("x"), 99)
	r := h.engine.Verify(context.Background(), Request{Image: testImage(t, 200, 200), UserID: inactive.ID})
	assert.False(t, r.Match)
	assert.Equal(t, ReasonInactiveUser, r.Reason)
}
