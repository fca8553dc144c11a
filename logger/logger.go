package logger

import (
	"go.uber.org/zap"
)

// Log is a no-op until Init is called, which keeps tests quiet
var Log = zap.NewNop()

// Init replaces the global logger. Debug mode uses the human readable development encoder
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	Log = l
	return nil
}

func Sync() {
	_ = Log.Sync()
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

// Error logs an incident. Pass the cause with zap.Error
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}
