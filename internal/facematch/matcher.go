// Package facematch compares the face on a selfie with the face on a document photo.
package facematch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/gigwork/internal/imageprocessor"
	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/metrics"
)

// Messages returned when a photo has no detectable face.
const (
	MsgNoFacePersonal = "No face in personal photo"
	MsgNoFacePassport = "No face in passport photo"
)

// MatchThreshold is the distance under which two faces belong to the same person.
const MatchThreshold = 0.6

// Result is the outcome of a comparison. When Success is false, Message says which
// photo had no face and the scores are empty.
type Result struct {
	Success    bool
	Message    string
	Similarity string
	Distance   string
	Score      float64
	IsMatch    bool
	MatchLevel string
	Backend    string
	Elapsed    time.Duration
}

// Matcher decodes both photos with codec and compares their first face descriptors.
type Matcher struct {
	loader  *ModelLoader
	codec   imageprocessor.Codec
	timeout time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

func NewMatcher(loader *ModelLoader, codec imageprocessor.Codec, timeout time.Duration, collector *metrics.Collector, logger *zap.Logger) *Matcher {
	return &Matcher{
		loader:  loader,
		codec:   codec,
		timeout: timeout,
		metrics: collector,
		logger:  logger.Named("facematch"),
		now:     time.Now,
	}
}

// Compare describes both photos concurrently. The personal photo is an upload and
// is deleted on every path. The passport photo is left in place.
func (m *Matcher) Compare(ctx context.Context, requestID, personalPath, passportPath string) (*Result, error) {
	opLogger := logging.WithOperation(m.logger, "facematch.compare", requestID)
	defer m.removePersonal(opLogger, personalPath)

	start := m.now()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	detector, err := m.loader.Detector(ctx)
	if err != nil {
		m.metrics.ObserveFaceComparison(metrics.OutcomeFailure, "")
		return nil, fmt.Errorf("load face models: %w", err)
	}

	var personal, passport []Descriptor
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		personal, err = m.describeFile(gctx, detector, personalPath)
		if err != nil {
			return fmt.Errorf("personal photo: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		passport, err = m.describeFile(gctx, detector, passportPath)
		if err != nil {
			return fmt.Errorf("passport photo: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		m.metrics.ObserveFaceComparison(metrics.OutcomeFailure, "")
		opLogger.Error("face description failed", zap.Error(err))
		return nil, err
	}

	switch {
	case len(personal) == 0:
		m.metrics.ObserveFaceComparison(metrics.OutcomeNoFace, "")
		return &Result{Message: MsgNoFacePersonal, Backend: detector.Name()}, nil
	case len(passport) == 0:
		m.metrics.ObserveFaceComparison(metrics.OutcomeNoFace, "")
		return &Result{Message: MsgNoFacePassport, Backend: detector.Name()}, nil
	}

	distance, err := Euclidean(personal[0], passport[0])
	if err != nil {
		m.metrics.ObserveFaceComparison(metrics.OutcomeFailure, "")
		return nil, err
	}
	level := MatchLevel(distance)
	elapsed := m.now().Sub(start)
	m.metrics.ObserveFaceComparison(metrics.OutcomeSuccess, level)
	m.metrics.ObservePipeline("face", elapsed)
	opLogger.Info("faces compared",
		zap.Float64("distance", distance),
		zap.String("match_level", level),
		zap.String("backend", detector.Name()),
		zap.Duration("elapsed", elapsed),
	)

	return &Result{
		Success:    true,
		Similarity: strconv.FormatFloat(1-distance, 'f', 4, 64),
		Distance:   strconv.FormatFloat(distance, 'f', 4, 64),
		Score:      1 - distance,
		IsMatch:    distance < MatchThreshold,
		MatchLevel: level,
		Backend:    detector.Name(),
		Elapsed:    elapsed,
	}, nil
}

func (m *Matcher) describeFile(ctx context.Context, detector Detector, path string) ([]Descriptor, error) {
	img, _, err := m.codec.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return detector.Describe(ctx, img)
}

func (m *Matcher) removePersonal(logger *zap.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to delete personal photo", zap.String("path", path), zap.Error(err))
	}
}

// Euclidean returns the L2 distance between two descriptors of equal length.
func Euclidean(a, b Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("descriptor length mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// MatchLevel grades a distance.
func MatchLevel(distance float64) string {
	switch {
	case distance < 0.4:
		return "Excellent Match"
	case distance < 0.5:
		return "Good Match"
	case distance < MatchThreshold:
		return "Moderate Match"
	default:
		return "Poor Match"
	}
}

var _ Detector = (*DlibDetector)(nil)
var _ Detector = (*RemoteDetector)(nil)

