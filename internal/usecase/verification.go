package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/facematch"
	"github.com/example/gigwork/internal/identity"
	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/metrics"
	"github.com/example/gigwork/internal/repository"
)

// VerificationRepository defines the persistence operations needed by the use case.
type VerificationRepository interface {
	SaveLog(ctx context.Context, log *repository.VerificationLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.VerificationLog, error)
	FindDuplicatesByHash(ctx context.Context, hash, excludeRequestID string) ([]*repository.VerificationLog, error)
	AggregateMetrics(ctx context.Context, kind string) (*repository.MetricsAggregation, error)
}

// VerificationUseCase keeps the audit trail of identifications and face comparisons.
type VerificationUseCase struct {
	repo           VerificationRepository
	cache          Cache
	metrics        *metrics.Collector
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

const resultTTL = 5 * time.Minute

type cachedVerification struct {
	RequestID    string    `json:"request_id"`
	UserID       string    `json:"user_id"`
	Kind         string    `json:"kind"`
	Format       string    `json:"format"`
	Valid        bool      `json:"valid"`
	Score        float32   `json:"score"`
	Success      bool      `json:"success"`
	Details      string    `json:"details"`
	Hash         string    `json:"sha1_hash"`
	ProcessingMs int64     `json:"processing_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// DuplicateReport represents duplicate verification entries for a request.
type DuplicateReport struct {
	Request    *repository.VerificationLog   `json:"request"`
	Duplicates []*repository.VerificationLog `json:"duplicates"`
}

// NewVerificationUseCase constructs a new use case instance. collector may be nil.
func NewVerificationUseCase(repo VerificationRepository, cache Cache, collector *metrics.Collector, logger *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{
		repo:           repo,
		cache:          cache,
		metrics:        collector,
		logger:         logger.Named("verification_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
		now:            time.Now,
	}
}

// RecordIdentification audits a successful MRZ identification.
func (uc *VerificationUseCase) RecordIdentification(ctx context.Context, requestID, userID string, result *identity.Result) error {
	passport := result.Passport
	score := float32(0)
	if passport.Valid {
		score = 1
	}
	return uc.record(ctx, &repository.VerificationLog{
		RequestID:    requestID,
		UserID:       userID,
		Kind:         repository.KindMRZ,
		Success:      true,
		Format:       string(passport.Format),
		Valid:        passport.Valid,
		Score:        score,
		Details:      fmt.Sprintf("format:%s valid:%t origin:%s renamed:%t", passport.Format, passport.Valid, result.Source, passport.ImageInfo.Renamed),
		SHA1Hash:     result.ImageSHA1,
		ProcessingMs: result.Elapsed.Milliseconds(),
	})
}

// RecordFaceComparison audits a face comparison, including the no-face outcome.
func (uc *VerificationUseCase) RecordFaceComparison(ctx context.Context, requestID, userID, passportHash string, result *facematch.Result) error {
	details := result.Message
	if result.Success {
		details = fmt.Sprintf("distance:%s level:%s match:%t backend:%s", result.Distance, result.MatchLevel, result.IsMatch, result.Backend)
	}
	return uc.record(ctx, &repository.VerificationLog{
		RequestID:    requestID,
		UserID:       userID,
		Kind:         repository.KindFace,
		Success:      result.Success && result.IsMatch,
		Valid:        result.Success,
		Score:        float32(result.Score),
		Details:      details,
		SHA1Hash:     passportHash,
		ProcessingMs: result.Elapsed.Milliseconds(),
	})
}

// RecordFailure audits a request that ended with a pipeline error.
func (uc *VerificationUseCase) RecordFailure(ctx context.Context, requestID, userID, kind string, cause error) error {
	return uc.record(ctx, &repository.VerificationLog{
		RequestID: requestID,
		UserID:    userID,
		Kind:      kind,
		Details:   fmt.Sprintf("%s: %s", apperror.KindOf(cause), cause),
	})
}

func (uc *VerificationUseCase) record(ctx context.Context, log *repository.VerificationLog) error {
	opLogger := logging.WithOperation(uc.logger, "usecase.record_verification", log.RequestID)
	log.CreatedAt = uc.now().UTC()

	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", log.RequestID, err)
		opLogger.Error("failed to persist verification log", zap.Error(wrapped))
		uc.metrics.ObserveAuditWrite(metrics.OutcomeFailure)
		return wrapped
	}

	serialized, err := json.Marshal(cachedVerification{
		RequestID:    log.RequestID,
		UserID:       log.UserID,
		Kind:         log.Kind,
		Format:       log.Format,
		Valid:        log.Valid,
		Score:        log.Score,
		Success:      log.Success,
		Details:      log.Details,
		Hash:         log.SHA1Hash,
		ProcessingMs: log.ProcessingMs,
		CreatedAt:    log.CreatedAt,
	})
	if err != nil {
		opLogger.Error("failed to serialize verification result", zap.Error(err))
		uc.metrics.ObserveAuditWrite(metrics.OutcomeFailure)
		return err
	}

	if err := uc.withRedisRetry(ctx, log.RequestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey(log.RequestID), string(serialized), resultTTL)
	}); err != nil {
		opLogger.Error("failed to cache verification result", zap.Error(err))
		uc.metrics.ObserveAuditWrite(metrics.OutcomeFailure)
		return err
	}

	uc.metrics.ObserveAuditWrite(metrics.OutcomeSuccess)
	return nil
}

// GetResult retrieves a cached verification outcome or loads from persistence.
func (uc *VerificationUseCase) GetResult(ctx context.Context, requestID string) (*repository.VerificationLog, error) {
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey(requestID)); err == nil {
		var payload cachedVerification
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else {
			return &repository.VerificationLog{
				RequestID:    requestID,
				UserID:       payload.UserID,
				Kind:         payload.Kind,
				Format:       payload.Format,
				Valid:        payload.Valid,
				Score:        payload.Score,
				Success:      payload.Success,
				Details:      payload.Details,
				SHA1Hash:     payload.Hash,
				ProcessingMs: payload.ProcessingMs,
				CreatedAt:    payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Verification not found")
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

// GetDuplicateReport lists other requests submitted with the same image.
func (uc *VerificationUseCase) GetDuplicateReport(ctx context.Context, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Verification not found")
	}
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, log.SHA1Hash, log.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{
		Request:    log,
		Duplicates: duplicates,
	}, nil
}

func cacheKey(requestID string) string {
	return "verification:" + requestID
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if errors.Is(err, redis.Nil) {
			return logging.NewOperationError(operation, requestID, err)
		}
		if !repository.IsTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewRetriedOperationError(operation, requestID, attempt+1, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewRetriedOperationError(operation, requestID, uc.retryAttempts, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
