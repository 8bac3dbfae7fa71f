package facematch

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// LoadFunc builds a Detector, typically by reading model files.
type LoadFunc func(ctx context.Context) (Detector, error)

// ModelLoader loads the face models once per process.
// A failed load is not remembered: the next call tries again.
type ModelLoader struct {
	load   LoadFunc
	logger *zap.Logger

	mu       sync.Mutex
	detector atomic.Pointer[detectorBox]
}

type detectorBox struct {
	detector Detector
}

// NewModelLoader wraps load with ensure-initialized semantics.
func NewModelLoader(load LoadFunc, logger *zap.Logger) *ModelLoader {
	return &ModelLoader{load: load, logger: logger.Named("face_models")}
}

// Detector returns the loaded detector, loading it on first use.
func (l *ModelLoader) Detector(ctx context.Context) (Detector, error) {
	if box := l.detector.Load(); box != nil {
		return box.detector, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if box := l.detector.Load(); box != nil {
		return box.detector, nil
	}

	detector, err := l.load(ctx)
	if err != nil {
		l.logger.Error("face model loading failed", zap.Error(err))
		return nil, err
	}
	l.detector.Store(&detectorBox{detector: detector})
	l.logger.Info("face models loaded", zap.String("backend", detector.Name()))
	return detector, nil
}

// Loaded reports whether the models are ready.
func (l *ModelLoader) Loaded() bool {
	return l.detector.Load() != nil
}

// Close releases the detector if it was loaded.
func (l *ModelLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	box := l.detector.Swap(nil)
	if box == nil {
		return nil
	}
	if closer, ok := box.detector.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
