package logger

import (
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Lg is the process logger. The package-level helpers log through a copy
// that skips their own frame.
var (
	Lg   = zap.NewNop()
	skip = Lg
)

// Init replaces the package logger. Output goes to stdout and, when File is
// set, to a rotated file as well.
func Init(cfg Config) error {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(cfg.Level)))); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level),
	}
	if cfg.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotate), level))
	}

	Lg = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	skip = Lg.WithOptions(zap.AddCallerSkip(1))
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func Sync() {
	_ = Lg.Sync()
}

func Debug(msg string, fields ...zap.Field) {
	skip.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	skip.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	skip.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	skip.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	skip.Fatal(msg, fields...)
}
