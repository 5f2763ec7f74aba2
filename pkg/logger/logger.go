package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once  sync.Once
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
)

// Init initializes the global zap logger. level is a zap level name such as
// "debug" or "info"; an unknown or empty level keeps the mode's default.
func Init(prod bool, level string) {
	once.Do(func() {
		var cfg zap.Config
		if prod {
			cfg = zap.NewProductionConfig()
		} else {
			cfg = zap.NewDevelopmentConfig()
		}
		if lvl, err := zapcore.ParseLevel(level); err == nil && level != "" {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}

		logger, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		Set(logger.Sugar())
	})
}

// Get returns the global logger
func Get() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s == nil {
		Init(false, "") // default to dev
		mu.RLock()
		s = sugar
		mu.RUnlock()
	}
	return s
}

// Set replaces the global logger. Tests use it to silence or observe logs.
func Set(s *zap.SugaredLogger) {
	mu.Lock()
	sugar = s
	mu.Unlock()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Get().Sync()
}
