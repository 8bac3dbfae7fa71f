package identity

import (
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// cleanupGuard removes every file a request produced unless it was released.
// One guard is deferred per pipeline run.
type cleanupGuard struct {
	logger *zap.Logger
	paths  []string
	kept   map[string]bool
}

func newCleanupGuard(logger *zap.Logger) *cleanupGuard {
	return &cleanupGuard{logger: logger, kept: make(map[string]bool)}
}

func (g *cleanupGuard) track(path string) {
	if path == "" {
		return
	}
	for _, p := range g.paths {
		if p == path {
			return
		}
	}
	g.paths = append(g.paths, path)
}

// retain keeps path on disk when the guard runs.
func (g *cleanupGuard) retain(path string) {
	g.kept[path] = true
}

func (g *cleanupGuard) run() {
	for _, path := range g.paths {
		if g.kept[path] {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			g.logger.Warn("failed to remove temporary image", zap.String("path", path), zap.Error(err))
		}
	}
}
