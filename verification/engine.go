// Package verification decides whether a presented face belongs to a claimed user. Every decision
// fails closed and leaves exactly one security audit record behind.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"

	"faceauth/audit"
	"faceauth/encodings"
	"faceauth/faces"
	"faceauth/logger"
	"faceauth/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultThreshold = 80.0

const (
	ReasonInvalidImage = "invalid_image"
	ReasonInactiveUser = "inactive_user"
	ReasonNoEncodings  = "no_encodings"
	ReasonIntegrity    = "integrity_failure"
	ReasonNoFace       = "no_face"
	ReasonStoreError   = "store_error"
	ReasonTimeout      = "timeout"
	ReasonInternal     = "internal_error"
)

var ErrInactiveUser = errors.New("user is not active")

type (
	EncodingStore interface {
		ActiveFor(ctx context.Context, userID uint64) ([]models.FaceEncoding, error)
		RecordMatch(ctx context.Context, id uint64, confidence float64) error
		RecordFailure(ctx context.Context, id uint64) (retired bool, err error)
	}
	AuditLog interface {
		LogVerification(ctx context.Context, v audit.Verification) error
	}
	// UserLookup reports whether the user may authenticate at all
	UserLookup func(ctx context.Context, userID uint64) (active bool, err error)
)

type Request struct {
	Image  []byte
	UserID uint64
	Origin string
}

type Result struct {
	Match      bool
	Confidence float64
	Reason     string   // why the attempt was rejected before a decision, empty otherwise
	Err        error    // underlying cause for Reason
	Retired    []uint64 // encodings retired by this attempt
}

func reject(reason string, err error) Result {
	return Result{Reason: reason, Err: err}
}

type Engine struct {
	Store      EncodingStore
	Audit      AuditLog
	Encoder    faces.Encoder
	Comparator faces.Comparator
	Users      UserLookup // optional
	Threshold  float64
}

func NewEngine(store EncodingStore, auditLog AuditLog, encoder faces.Encoder, comparator faces.Comparator) *Engine {
	return &Engine{
		Store:      store,
		Audit:      auditLog,
		Encoder:    encoder,
		Comparator: comparator,
		Threshold:  DefaultThreshold,
	}
}

// Verify never returns an error: anything that goes wrong is a non-match with zero confidence
func (e *Engine) Verify(ctx context.Context, req Request) (result Result) {
	requestID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("face verification panicked", zap.Uint64("user_id", req.UserID), zap.Any("panic", r))
			result = reject(ReasonInternal, fmt.Errorf("panic: %v", r))
		}
		// The audit row is written even if the caller's deadline already passed
		err := e.Audit.LogVerification(context.WithoutCancel(ctx), audit.Verification{
			UserID:     req.UserID,
			Success:    result.Match,
			Confidence: result.Confidence,
			Origin:     req.Origin,
			Reason:     result.Reason,
			RequestID:  requestID,
		})
		if err != nil {
			logger.Error("error logging verification attempt", zap.Uint64("user_id", req.UserID), zap.String("request_id", requestID), zap.Error(err))
		}
	}()
	return e.verify(ctx, req, logger.Log.With(
		zap.Uint64("user_id", req.UserID),
		zap.String("origin", req.Origin),
		zap.String("request_id", requestID)))
}

func (e *Engine) verify(ctx context.Context, req Request, log *zap.Logger) Result {
	if _, err := faces.ValidateImage(req.Image); err != nil {
		log.Info("face image rejected", zap.Error(err))
		return reject(ReasonInvalidImage, err)
	}
	if e.Users != nil {
		active, err := e.Users(ctx, req.UserID)
		if err != nil {
			return e.storeFailure(ctx, log, "user lookup", err)
		}
		if !active {
			log.Warn("face verification for inactive or unknown user")
			return reject(ReasonInactiveUser, ErrInactiveUser)
		}
	}

	stored, err := e.Store.ActiveFor(ctx, req.UserID)
	if err != nil {
		return e.storeFailure(ctx, log, "loading encodings", err)
	}
	if len(stored) == 0 {
		log.Warn("no stored encodings found")
		return reject(ReasonNoEncodings, encodings.ErrNoEncodings)
	}

	// One tampered row means the store can't be trusted for this user: nothing is compared
	hashed := make([]faces.HashedData, len(stored))
	for i := range stored {
		hashed[i] = faces.HashedData{ID: stored[i].ID, Data: stored[i].EncodingData, Hash: stored[i].DataHash}
	}
	if err := faces.VerifyAll(hashed); err != nil {
		log.Error("face data integrity check failed", zap.Error(err))
		return reject(ReasonIntegrity, err)
	}
	if err := ctx.Err(); err != nil {
		return reject(ReasonTimeout, err)
	}

	probe, err := e.Encoder.Encode(req.Image)
	if err != nil {
		log.Info("no usable face in the presented image", zap.Error(err))
		return reject(ReasonNoFace, err)
	}

	scores := make([]float64, len(stored))
	maxConfidence := 0.0
	for i := range stored {
		confidence, err := e.compare(probe, stored[i].EncodingData)
		if err != nil {
			log.Warn("error comparing faces", zap.Uint64("encoding_id", stored[i].ID), zap.Error(err))
			confidence = 0
		}
		scores[i] = confidence
		maxConfidence = math.Max(maxConfidence, confidence)
	}

	result := Result{}
	for i := range stored {
		if err := ctx.Err(); err != nil {
			return reject(ReasonTimeout, err)
		}
		if scores[i] >= e.Threshold {
			err = e.Store.RecordMatch(ctx, stored[i].ID, scores[i])
		} else {
			var retired bool
			retired, err = e.Store.RecordFailure(ctx, stored[i].ID)
			if retired {
				result.Retired = append(result.Retired, stored[i].ID)
			}
		}
		if err != nil {
			return e.storeFailure(ctx, log, "updating encoding counters", err)
		}
	}

	result.Confidence = maxConfidence
	result.Match = maxConfidence >= e.Threshold
	log.Info("face verification finished", zap.Bool("match", result.Match), zap.Float64("confidence", maxConfidence))
	return result
}

// compare confines a misbehaving comparator to the encoding at hand
func (e *Engine) compare(probe, stored []byte) (confidence float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			confidence, err = 0, fmt.Errorf("comparator panicked: %v", r)
		}
	}()
	confidence, err = e.Comparator.Compare(probe, stored)
	if err != nil || math.IsNaN(confidence) {
		return 0, err
	}
	return math.Max(0, math.Min(100, confidence)), nil
}

func (e *Engine) storeFailure(ctx context.Context, log *zap.Logger, operation string, err error) Result {
	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("face verification timed out", zap.String("operation", operation), zap.Error(err))
		return reject(ReasonTimeout, ctxErr)
	}
	log.Error("face verification store error", zap.String("operation", operation), zap.Error(err))
	return reject(ReasonStoreError, err)
}
