// Package ocr reads machine readable zone text with Tesseract.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MRZWhitelist restricts recognition to the MRZ alphabet.
const MRZWhitelist = "<0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Recognizer turns an encoded image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Engine is the part of a Tesseract client the recognizer drives.
type Engine interface {
	SetTessdataPrefix(prefix string) error
	SetLanguage(langs ...string) error
	SetWhitelist(whitelist string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// EngineFactory creates a fresh engine for a single recognition.
type EngineFactory func() Engine

// NewGosseractEngine is the production EngineFactory.
func NewGosseractEngine() Engine {
	return gosseract.NewClient()
}

// Config configures a TesseractRecognizer.
type Config struct {
	TessdataDir    string
	Language       string
	Timeout        time.Duration
	MaxConcurrency int64
}

// TesseractRecognizer runs one engine per call; the engine never outlives the call.
type TesseractRecognizer struct {
	newEngine EngineFactory
	cfg       Config
	slots     *semaphore.Weighted
	logger    *zap.Logger
}

// NewTesseractRecognizer builds a recognizer. A nil factory uses gosseract.
func NewTesseractRecognizer(cfg Config, factory EngineFactory, logger *zap.Logger) *TesseractRecognizer {
	if factory == nil {
		factory = NewGosseractEngine
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &TesseractRecognizer{
		newEngine: factory,
		cfg:       cfg,
		slots:     semaphore.NewWeighted(cfg.MaxConcurrency),
		logger:    logger.Named("ocr"),
	}
}

type recognition struct {
	text string
	err  error
}

// Recognize returns the trimmed text found in image.
// The call gives up when ctx or the configured timeout expires; the engine is
// still closed by its goroutine once Tesseract returns.
func (r *TesseractRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("ocr: empty image")
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if err := r.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("ocr: waiting for engine: %w", err)
	}

	done := make(chan recognition, 1)
	go func() {
		defer r.slots.Release(1)
		text, err := r.run(image)
		done <- recognition{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.text), nil
	case <-ctx.Done():
		r.logger.Warn("ocr abandoned", zap.Error(ctx.Err()), zap.Duration("timeout", r.cfg.Timeout))
		return "", fmt.Errorf("ocr: %w", ctx.Err())
	}
}

func (r *TesseractRecognizer) run(image []byte) (text string, err error) {
	engine := r.newEngine()
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			r.logger.Warn("failed to close ocr engine", zap.Error(closeErr))
			if err == nil {
				err = fmt.Errorf("ocr: close engine: %w", closeErr)
			}
		}
	}()

	if r.cfg.TessdataDir != "" {
		if err := engine.SetTessdataPrefix(r.cfg.TessdataDir); err != nil {
			return "", fmt.Errorf("ocr: tessdata prefix: %w", err)
		}
	}
	if r.cfg.Language != "" {
		if err := engine.SetLanguage(r.cfg.Language); err != nil {
			return "", fmt.Errorf("ocr: language: %w", err)
		}
	}
	if err := engine.SetWhitelist(MRZWhitelist); err != nil {
		return "", fmt.Errorf("ocr: whitelist: %w", err)
	}
	if err := engine.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("ocr: page segmentation: %w", err)
	}
	if err := engine.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("ocr: load image: %w", err)
	}
	text, err = engine.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize: %w", err)
	}
	return text, nil
}
