// Package identity runs the MRZ identification pipeline: acquire the document image,
// crop the machine readable zone, recognize it, parse it and file the image under
// the holder's name.
package identity

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/acquisition"
	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/imageprocessor"
	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/metrics"
	"github.com/example/gigwork/internal/mrz"
	"github.com/example/gigwork/internal/ocr"
)

// Messages returned to API callers.
const (
	MsgCropFailed          = "Cannot crop image for MRZ detection"
	MsgRecognitionFailed   = "Cannot read MRZ from image"
	MsgNoMRZ               = "No MRZ data found in image"
	MsgParseFailed         = "Cannot parse MRZ data to object"
	ReasonInsufficientData = "Insufficient data for renaming"
)

const (
	stageAcquire   = "acquire"
	stageLocate    = "locate"
	stageRecognize = "recognize"
	stageParse     = "parse"
	stageAssemble  = "assemble"
)

// Acquirer resolves the request input into a document image.
type Acquirer interface {
	Acquire(ctx context.Context, req acquisition.Request) (*acquisition.DocumentImage, error)
	Dir() string
}

// Locator crops the MRZ out of a document image.
type Locator interface {
	Locate(img image.Image) (image.Image, error)
}

// Request is one identification call.
type Request struct {
	RequestID     string
	Input         acquisition.Request
	IncludeOrigin bool
}

// Service wires the pipeline stages together.
type Service struct {
	acquirer   Acquirer
	locator    Locator
	codec      imageprocessor.Codec
	recognizer ocr.Recognizer
	dates      *mrz.DateResolver
	metrics    *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// NewService builds the pipeline. collector may be nil.
func NewService(acquirer Acquirer, locator Locator, codec imageprocessor.Codec, recognizer ocr.Recognizer, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		acquirer:   acquirer,
		locator:    locator,
		codec:      codec,
		recognizer: recognizer,
		dates:      mrz.NewDateResolver(time.Now),
		metrics:    collector,
		tracer:     otel.Tracer("github.com/example/gigwork/internal/identity"),
		logger:     logger.Named("identity"),
		now:        time.Now,
	}
}

// Identify runs the whole pipeline. Every file created for the request, the
// multipart upload included, is removed on return unless it was renamed.
func (s *Service) Identify(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	opLogger := logging.WithOperation(s.logger, "identity.identify", req.RequestID)
	ctx, span := s.tracer.Start(ctx, "identity.Identify", trace.WithAttributes(attribute.String("request_id", req.RequestID)))
	defer span.End()

	guard := newCleanupGuard(opLogger)
	defer guard.run()
	if req.Input.Upload != nil {
		guard.track(req.Input.Upload.Path)
	}

	var doc *acquisition.DocumentImage
	err := s.stage(ctx, opLogger, stageAcquire, func(ctx context.Context) error {
		var err error
		doc, err = s.acquirer.Acquire(ctx, req.Input)
		return err
	})
	if err != nil {
		return nil, s.fail(span, err)
	}
	guard.track(doc.Path)

	var cropped []byte
	err = s.stage(ctx, opLogger, stageLocate, func(context.Context) error {
		region, err := s.locator.Locate(doc.Image)
		if err != nil {
			return apperror.Crop(MsgCropFailed, err)
		}
		if cropped, err = s.codec.EncodePNG(region); err != nil {
			return apperror.Crop(MsgCropFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	var text string
	err = s.stage(ctx, opLogger, stageRecognize, func(ctx context.Context) error {
		var err error
		if text, err = s.recognizer.Recognize(ctx, cropped); err != nil {
			return apperror.Recognition(MsgRecognitionFailed, err)
		}
		if strings.TrimSpace(text) == "" {
			return apperror.Recognition(MsgNoMRZ, nil)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	var record *mrz.Record
	err = s.stage(ctx, opLogger, stageParse, func(context.Context) error {
		var err error
		if record, err = mrz.ParseText(text); err != nil {
			return apperror.Parse(MsgParseFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	var identification *Identification
	_ = s.stage(ctx, opLogger, stageAssemble, func(context.Context) error {
		identification = s.assemble(record, req.IncludeOrigin)
		identification.ImageInfo = s.file(doc, identification, guard, opLogger)
		return nil
	})

	sum := sha1.Sum(doc.Data)
	elapsed := s.now().Sub(start)
	s.metrics.ObservePipeline("mrz", elapsed)
	span.SetAttributes(
		attribute.String("mrz.format", string(record.Format)),
		attribute.Bool("mrz.valid", record.Valid),
	)
	opLogger.Info("document identified",
		zap.String("format", string(record.Format)),
		zap.Bool("valid", record.Valid),
		zap.String("origin", string(doc.Origin)),
		zap.Bool("renamed", identification.ImageInfo.Renamed),
		zap.Duration("elapsed", elapsed),
	)

	return &Result{
		MRZ:       text,
		Passport:  identification,
		Source:    doc.Origin,
		ImageSHA1: hex.EncodeToString(sum[:]),
		Elapsed:   elapsed,
	}, nil
}

// file renames the document image after its holder, or leaves it to the guard.
func (s *Service) file(doc *acquisition.DocumentImage, id *Identification, guard *cleanupGuard, logger *zap.Logger) ImageInfo {
	info := ImageInfo{OriginalFilename: doc.Filename, ImagePath: doc.Path}
	if info.OriginalFilename == "" {
		info.OriginalFilename = "unknown"
	}

	first, last, number := valueOf(id.FirstName), valueOf(id.LastName), valueOf(id.PassportNumber)
	if first == "" && last == "" && number == "" {
		info.Reason = ReasonInsufficientData
		return info
	}

	newFilename := documentFilename(first, last, number, s.now())
	newPath := filepath.Join(s.acquirer.Dir(), newFilename)
	if err := os.Rename(doc.Path, newPath); err != nil {
		logger.Warn("failed to rename document image", zap.String("path", doc.Path), zap.Error(err))
		info.RenameError = renameErrorMessage(err)
		return info
	}

	guard.retain(newPath)
	info.NewFilename = &newFilename
	info.ImagePath = newPath
	info.Renamed = true
	return info
}

func renameErrorMessage(err error) string {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Err.Error()
	}
	return err.Error()
}

func (s *Service) stage(ctx context.Context, logger *zap.Logger, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "identity."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		s.metrics.ObserveStage(name, metrics.OutcomeFailure)
		logger.Warn("pipeline stage failed", zap.String("stage", name), zap.Error(err))
		return err
	}
	s.metrics.ObserveStage(name, metrics.OutcomeSuccess)
	return nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.SetStatus(codes.Error, string(apperror.KindOf(err)))
	return err
}
