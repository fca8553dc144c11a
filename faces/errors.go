package faces

import "errors"

var (
	ErrInvalidImage     = errors.New("invalid image")
	ErrDataIntegrity    = errors.New("face data integrity check failed")
	ErrNoFaceDetected   = errors.New("no face detected")
	ErrDetectorInit     = errors.New("face detector initialisation failed")
	ErrEncodingMismatch = errors.New("face encodings are not comparable")
)
