package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Dir is where NewLog writes its rotated files.
var Dir = "log"

func ensureLogDir() string {
	_ = os.MkdirAll(Dir, 0o755)
	return Dir
}

// NewLog returns a JSON logger teed to stdout and log/<n>, rotated by lumberjack.
func NewLog(n string) *zap.Logger {
	dir := ensureLogDir()

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	console := zapcore.Lock(os.Stdout)

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, n),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), console, zap.InfoLevel),
	)
	return zap.New(core)
}

var (
	accessOnce       sync.Once
	accessMu         sync.RWMutex
	httpAccessLogger *zap.Logger
)

// SetAccessLogger overrides the access logger (tests, CLIs).
func SetAccessLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	accessOnce.Do(func() {})
	accessMu.Lock()
	httpAccessLogger = l
	accessMu.Unlock()
}

func accessLogger() *zap.Logger {
	accessOnce.Do(func() {
		accessMu.Lock()
		httpAccessLogger = NewLog("http-access.log")
		accessMu.Unlock()
	})
	accessMu.RLock()
	defer accessMu.RUnlock()
	return httpAccessLogger
}
