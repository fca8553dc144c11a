package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	TLS_DOMAINS  = ""            // e.g. "example.com,example2.com"
	MYSQL_DSN    = ""            // MySQL will be used if this is set
	SQLITE_FILE  = "faceauth.db" // SQLite will be used if MYSQL_DSN is not configured
	BIND_ADDRESS = "0.0.0.0:8080"
	DEBUG_MODE   = true
	SESSION_KEY  = "change me, this is a long key"
	PUSH_SERVER  = "" // Notification relay for verification codes and login alerts, codes are only logged (in debug mode) if empty

	// Face detection / recognition
	FACE_MODELS_DIR           = "models" // dlib model files used by go-face
	FACE_DETECT_CNN           = false    // Use Convolutional Neural Network for face detection (as opposed to HOG). Much slower, supposedly more accurate at different angles
	FACE_MIN_SIZE             = 30       // Detections smaller than this (in pixels, either side) are ignored
	FACE_MAX_DISTANCE_SQ      = 0.11     // Squared distance between faces that maps to FACE_CONFIDENCE_THRESHOLD
	FACE_CONFIDENCE_THRESHOLD = 80.0     // Minimum confidence [0,100] for a match
	FACE_VERIFY_TIMEOUT_MS    = 10000    // Wall-clock limit for a single verification, 0 disables it

	// Enrollment / training
	TRAINING_DATA_DIR = "Data" // Default directory of labeled images for -train
	MODEL_KEY         = "models/trainer.json"

	// Storage for model artifacts, backups and audit archives
	STORAGE_TYPE  = "disk" // "disk" or "s3"
	STORAGE_PATH  = "storage"
	S3_BUCKET     = ""
	S3_REGION     = "us-east-1"
	S3_ENDPOINT   = "" // Optional, for S3 compatible services
	S3_ACCESS_KEY = ""
	S3_SECRET_KEY = ""

	// Retention
	AUDIT_RETENTION_DAYS    = 90
	ENCODING_RETENTION_DAYS = 30
	CLEANUP_INTERVAL_MIN    = 60
)

func init() {
	// Values already present in the environment win over the .env file
	_ = godotenv.Load()

	readEnvString("TLS_DOMAINS", &TLS_DOMAINS)
	readEnvString("MYSQL_DSN", &MYSQL_DSN)
	readEnvString("SQLITE_FILE", &SQLITE_FILE)
	readEnvString("BIND_ADDRESS", &BIND_ADDRESS)
	readEnvBool("DEBUG_MODE", &DEBUG_MODE)
	readEnvString("SESSION_KEY", &SESSION_KEY)
	readEnvString("PUSH_SERVER", &PUSH_SERVER)
	readEnvString("FACE_MODELS_DIR", &FACE_MODELS_DIR)
	readEnvBool("FACE_DETECT_CNN", &FACE_DETECT_CNN)
	readEnvInt("FACE_MIN_SIZE", &FACE_MIN_SIZE)
	readEnvFloat("FACE_MAX_DISTANCE_SQ", &FACE_MAX_DISTANCE_SQ)
	readEnvFloat("FACE_CONFIDENCE_THRESHOLD", &FACE_CONFIDENCE_THRESHOLD)
	readEnvInt("FACE_VERIFY_TIMEOUT_MS", &FACE_VERIFY_TIMEOUT_MS)
	readEnvString("TRAINING_DATA_DIR", &TRAINING_DATA_DIR)
	readEnvString("MODEL_KEY", &MODEL_KEY)
	readEnvString("STORAGE_TYPE", &STORAGE_TYPE)
	readEnvString("STORAGE_PATH", &STORAGE_PATH)
	readEnvString("S3_BUCKET", &S3_BUCKET)
	readEnvString("S3_REGION", &S3_REGION)
	readEnvString("S3_ENDPOINT", &S3_ENDPOINT)
	readEnvString("S3_ACCESS_KEY", &S3_ACCESS_KEY)
	readEnvString("S3_SECRET_KEY", &S3_SECRET_KEY)
	readEnvInt("AUDIT_RETENTION_DAYS", &AUDIT_RETENTION_DAYS)
	readEnvInt("ENCODING_RETENTION_DAYS", &ENCODING_RETENTION_DAYS)
	readEnvInt("CLEANUP_INTERVAL_MIN", &CLEANUP_INTERVAL_MIN)
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvFloat(name string, value *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*value = f
}

func readEnvInt(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*value = f
}
