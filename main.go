package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"faceauth/audit"
	"faceauth/auth"
	"faceauth/config"
	"faceauth/db"
	"faceauth/encodings"
	"faceauth/faces"
	"faceauth/faces/dlib"
	"faceauth/handlers"
	"faceauth/logger"
	"faceauth/models"
	"faceauth/processing"
	"faceauth/push"
	"faceauth/storage"
	"faceauth/training"
	"faceauth/utils"
	"faceauth/verification"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	gormsessions "github.com/gin-contrib/sessions/gorm"
	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionCookieName     = "token"
	sessionExpirationTime = 7 * 86400 // 1 week
)

func main() {
	trainModel := flag.Bool("train", false, "train the identification model from the labeled images in -data, then exit")
	dataDir := flag.String("data", config.TRAINING_DATA_DIR, "directory of labeled training images")
	enroll := flag.Bool("enroll", false, "with -train: also store a face encoding for every image of an existing user")
	flag.Parse()

	if err := logger.Init(config.DEBUG_MODE); err != nil {
		log.Fatalf("Logger init error: %v", err)
	}
	defer logger.Sync()
	db.Init()
	models.Init()
	store, err := storage.Init()
	if err != nil {
		logger.Log.Fatal("storage init", zap.Error(err))
	}
	recognizer, err := dlib.New(config.FACE_MODELS_DIR, faces.DetectorOptions{
		MinFaceSize: config.FACE_MIN_SIZE,
		UseCNN:      config.FACE_DETECT_CNN,
	})
	if err != nil {
		logger.Log.Fatal("face recognizer init", zap.String("models", config.FACE_MODELS_DIR), zap.Error(err))
	}
	defer recognizer.Close()

	encodingStore := encodings.NewStore(db.Instance)
	modelStore := training.NewModelStore(store, config.MODEL_KEY)
	labels := training.NewLabelDirectory()
	_ = labels.Reload(models.UserList)

	if *trainModel {
		if err = train(*dataDir, *enroll, recognizer, store, modelStore, labels, encodingStore); err != nil {
			logger.Log.Fatal("training failed", zap.String("dir", *dataDir), zap.Error(err))
		}
		return
	}

	identifier := &training.Identifier{
		Detector:      recognizer,
		Classifier:    recognizer,
		Labels:        labels,
		MaxDistanceSq: float32(config.FACE_MAX_DISTANCE_SQ),
	}
	if model, err := modelStore.Load(); err != nil {
		logger.Warn("no trained model loaded, identification disabled", zap.Error(err))
	} else if err = identifier.Load(model); err != nil {
		logger.Error("loading trained model", zap.Error(err))
	}

	auditLog := audit.NewLogger(db.Instance)
	encoder := faces.DetectorEncoder{Detector: recognizer}
	engine := verification.NewEngine(encodingStore, auditLog, encoder, faces.DistanceComparator{
		MaxDistanceSq: config.FACE_MAX_DISTANCE_SQ,
		Threshold:     config.FACE_CONFIDENCE_THRESHOLD,
	})
	engine.Threshold = config.FACE_CONFIDENCE_THRESHOLD
	engine.Users = verification.ActiveUserLookup(db.Instance)
	handlers.Faces = &verification.Service{
		Engine:  engine,
		Saver:   encodingStore,
		Audits:  auditLog,
		Encoder: encoder,
		Timeout: time.Duration(config.FACE_VERIFY_TIMEOUT_MS) * time.Millisecond,
	}
	handlers.Identifier = identifier
	if config.PUSH_SERVER != "" {
		handlers.Sender = push.Sender{Server: config.PUSH_SERVER}
	}

	if err = processing.Init(audit.NewArchiver(db.Instance, store), encodingStore); err != nil {
		logger.Log.Fatal("processing init", zap.Error(err))
	}
	go processing.StartCleanup(context.Background())

	if !config.DEBUG_MODE {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{})
	if config.DEBUG_MODE {
		router.Use(utils.ErrorLogMiddleware)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           30 * 24 * time.Hour,
	}))
	cookieStore := gormsessions.NewStore(db.Instance, true, []byte(config.SESSION_KEY))
	cookieStore.Options(sessions.Options{MaxAge: sessionExpirationTime, HttpOnly: true, Path: "/"})
	router.Use(sessions.Sessions(sessionCookieName, cookieStore))
	if !config.DEBUG_MODE {
		router.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	// Custom Auth Router
	authRouter := &auth.Router{Base: router}
	// User handlers
	router.POST("/user/register", handlers.UserCreate)
	router.POST("/user/resend-code", handlers.UserResendCode)
	router.POST("/user/verify-email", handlers.UserVerifyEmail)
	router.POST("/user/login", handlers.UserLogin)
	router.POST("/user/logout", handlers.UserLogout)
	authRouter.GET("/user/info", handlers.UserGetInfo)
	// Face handlers
	router.POST("/face/verify", handlers.FaceVerify)
	authRouter.POST("/face/save", handlers.FaceSave)
	authRouter.POST("/face/identify", handlers.FaceIdentify)
	// Audit
	authRouter.GET("/audit/list", handlers.AuditList)

	if config.TLS_DOMAINS != "" {
		err = autotls.Run(router, strings.Split(config.TLS_DOMAINS, ",")...)
	} else {
		err = router.Run(config.BIND_ADDRESS)
	}
	logger.Log.Fatal("server stopped", zap.Error(err))
}

// train runs the offline enrollment pipeline
func train(dir string, enroll bool, detector faces.Detector, st storage.StorageAPI, modelStore *training.ModelStore, labels *training.LabelDirectory, saver training.EncodingSaver) error {
	samples, err := training.LoadLabeledFaces(dir, detector)
	if err != nil {
		return err
	}
	if _, _, err = training.BackupDir(dir, st); err != nil {
		return err
	}
	model, err := training.Train(samples)
	if err != nil {
		return err
	}
	if err = modelStore.Save(model); err != nil {
		return err
	}
	if enroll {
		if _, err = training.Enroll(context.Background(), samples, saver, labels.Has); err != nil {
			return err
		}
	}
	return nil
}
