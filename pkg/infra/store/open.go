package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/changyy/captcha-ocr-devkit/pkg/infra/logger"
)

// Open creates the run store for the given driver. An unknown driver
// or a failed SQLite open falls back to the in-memory store so run
// recording never blocks a pipeline.
func Open(driver, path string) RunStore {
	switch strings.ToLower(driver) {
	case "sqlite":
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Warn("create run store directory failed, using in-memory store",
					"path", path, "error", err)
				return NewMemoryStore()
			}
		}
		s, err := NewSQLiteStore(path)
		if err != nil {
			logger.Warn("open sqlite run store failed, using in-memory store",
				"path", path, "error", err)
			return NewMemoryStore()
		}
		return s
	case "memory":
		return NewMemoryStore()
	default:
		logger.Warn("unknown run store driver, using in-memory store", "driver", driver)
		return NewMemoryStore()
	}
}
