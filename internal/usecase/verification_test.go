package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/acquisition"
	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/facematch"
	"github.com/example/gigwork/internal/identity"
	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/mrz"
	"github.com/example/gigwork/internal/repository"
)

type stubRepository struct {
	savedLogs  []*repository.VerificationLog
	saveErr    error
	findLog    *repository.VerificationLog
	findErr    error
	findCalls  int
	duplicates []*repository.VerificationLog
	dupHash    string
	dupExclude string
	agg        map[string]*repository.MetricsAggregation
	aggErr     error
}

func (s *stubRepository) SaveLog(ctx context.Context, log *repository.VerificationLog) error {
	s.savedLogs = append(s.savedLogs, log)
	return s.saveErr
}

func (s *stubRepository) FindByRequestID(ctx context.Context, requestID string) (*repository.VerificationLog, error) {
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.findLog != nil {
		return s.findLog, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubRepository) FindDuplicatesByHash(ctx context.Context, hash, excludeRequestID string) ([]*repository.VerificationLog, error) {
	s.dupHash = hash
	s.dupExclude = excludeRequestID
	return s.duplicates, nil
}

func (s *stubRepository) AggregateMetrics(ctx context.Context, kind string) (*repository.MetricsAggregation, error) {
	if s.aggErr != nil {
		return nil, s.aggErr
	}
	if agg, ok := s.agg[kind]; ok {
		return agg, nil
	}
	return &repository.MetricsAggregation{}, nil
}

type stubCache struct {
	setErrs   []error
	getErrs   []error
	getValues []string
	setKeys   []string
	setValues []interface{}
	getKeys   []string
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	s.setValues = append(s.setValues, value)
	if len(s.setErrs) == 0 {
		return nil
	}
	err := s.setErrs[0]
	s.setErrs = s.setErrs[1:]
	return err
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	s.getKeys = append(s.getKeys, key)
	var value string
	if len(s.getValues) > 0 {
		value = s.getValues[0]
		s.getValues = s.getValues[1:]
	}
	var err error
	if len(s.getErrs) > 0 {
		err = s.getErrs[0]
		s.getErrs = s.getErrs[1:]
	}
	return value, err
}

type transientRedisError struct{}

func (transientRedisError) Error() string   { return "redis transient" }
func (transientRedisError) Timeout() bool   { return true }
func (transientRedisError) Temporary() bool { return true }

func newTestVerificationUseCase(repo VerificationRepository, cache Cache) *VerificationUseCase {
	uc := NewVerificationUseCase(repo, cache, nil, zap.NewNop())
	uc.initialBackoff = time.Millisecond
	uc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return uc
}

func identificationResult() *identity.Result {
	number := "L898902C3"
	return &identity.Result{
		MRZ: "P<UTOERIKSSON<<ANNA<MARIA",
		Passport: &identity.Identification{
			Format:         mrz.FormatTD3,
			Valid:          true,
			PassportNumber: &number,
			ImageInfo:      identity.ImageInfo{Renamed: true},
		},
		Source:    acquisition.OriginUpload,
		ImageSHA1: "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		Elapsed:   120 * time.Millisecond,
	}
}

func TestRecordIdentificationRetriesRedisSet(t *testing.T) {
	cache := &stubCache{setErrs: []error{transientRedisError{}}}
	repo := &stubRepository{}
	uc := newTestVerificationUseCase(repo, cache)

	if err := uc.RecordIdentification(context.Background(), "req-1", "user-1", identificationResult()); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(cache.setKeys) != 2 {
		t.Fatalf("expected 2 cache set calls, got %d", len(cache.setKeys))
	}
	if cache.setKeys[0] != cache.setKeys[1] || cache.setKeys[0] != "verification:req-1" {
		t.Fatalf("expected retry to target same key, got %v", cache.setKeys)
	}
	if len(repo.savedLogs) != 1 {
		t.Fatalf("expected log to be saved, got %d entries", len(repo.savedLogs))
	}
	saved := repo.savedLogs[0]
	if saved.Kind != repository.KindMRZ || saved.Format != "TD3" || !saved.Valid || saved.Score != 1 {
		t.Fatalf("unexpected saved log: %+v", saved)
	}
	if saved.ProcessingMs != 120 || saved.SHA1Hash == "" {
		t.Fatalf("expected elapsed and hash to be recorded, got %+v", saved)
	}
}

func TestRecordReturnsOperationErrorOnCacheFailure(t *testing.T) {
	cache := &stubCache{setErrs: []error{errors.New("boom")}}
	uc := newTestVerificationUseCase(&stubRepository{}, cache)

	err := uc.RecordIdentification(context.Background(), "req-1", "", identificationResult())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "cache.set.result" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if len(cache.setKeys) != 1 {
		t.Fatalf("non-transient errors must not be retried, got %d calls", len(cache.setKeys))
	}
}

func TestRecordSkipsCacheWhenPersistenceFails(t *testing.T) {
	cache := &stubCache{}
	repo := &stubRepository{saveErr: errors.New("db down")}
	uc := newTestVerificationUseCase(repo, cache)

	err := uc.RecordFaceComparison(context.Background(), "req-2", "user", "hash", &facematch.Result{Success: true})
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "usecase.save_log" {
		t.Fatalf("expected usecase.save_log operation error, got %v", err)
	}
	if len(cache.setKeys) != 0 {
		t.Fatalf("expected no cache writes, got %v", cache.setKeys)
	}
}

func TestRecordFaceComparison(t *testing.T) {
	tests := []struct {
		name        string
		result      *facematch.Result
		wantSuccess bool
		wantValid   bool
		wantDetails string
	}{
		{
			name:        "match",
			result:      &facematch.Result{Success: true, IsMatch: true, Distance: "0.3100", MatchLevel: "high", Score: 0.69, Backend: "dlib"},
			wantSuccess: true,
			wantValid:   true,
			wantDetails: "distance:0.3100 level:high match:true backend:dlib",
		},
		{
			name:        "no match",
			result:      &facematch.Result{Success: true, IsMatch: false, Distance: "0.8000", MatchLevel: "low", Score: 0.2, Backend: "dlib"},
			wantValid:   true,
			wantDetails: "distance:0.8000 level:low match:false backend:dlib",
		},
		{
			name:        "no face",
			result:      &facematch.Result{Success: false, Message: "No face detected in the personal photo"},
			wantDetails: "No face detected in the personal photo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepository{}
			uc := newTestVerificationUseCase(repo, &stubCache{})

			if err := uc.RecordFaceComparison(context.Background(), "req", "user", "hash", tt.result); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			saved := repo.savedLogs[0]
			if saved.Kind != repository.KindFace {
				t.Fatalf("expected face kind, got %s", saved.Kind)
			}
			if saved.Success != tt.wantSuccess || saved.Valid != tt.wantValid {
				t.Fatalf("unexpected flags: success=%v valid=%v", saved.Success, saved.Valid)
			}
			if saved.Details != tt.wantDetails {
				t.Fatalf("expected details %q, got %q", tt.wantDetails, saved.Details)
			}
		})
	}
}

func TestRecordFailureStoresErrorKind(t *testing.T) {
	repo := &stubRepository{}
	uc := newTestVerificationUseCase(repo, &stubCache{})

	cause := apperror.Recognition("Failed to recognize text from image", errors.New("tesseract"))
	if err := uc.RecordFailure(context.Background(), "req", "", repository.KindMRZ, cause); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := repo.savedLogs[0]
	if saved.Success || saved.Valid {
		t.Fatalf("failure must not be recorded as success: %+v", saved)
	}
	if saved.Details == "" {
		t.Fatal("expected failure details")
	}
}

func TestGetResultFallsBackToRepositoryWhenCacheMiss(t *testing.T) {
	cache := &stubCache{getErrs: []error{redis.Nil}}
	expected := &repository.VerificationLog{RequestID: "req", UserID: "user", Details: "from-db"}
	repo := &stubRepository{findLog: expected}
	uc := newTestVerificationUseCase(repo, cache)

	log, err := uc.GetResult(context.Background(), "req")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if log != expected {
		t.Fatalf("expected %+v, got %+v", expected, log)
	}
	if repo.findCalls != 1 {
		t.Fatalf("expected repository to be queried once, got %d", repo.findCalls)
	}
	if len(cache.getKeys) != 1 {
		t.Fatalf("cache miss must not be retried, got %d gets", len(cache.getKeys))
	}
}

func TestGetResultServesFromCache(t *testing.T) {
	payload, _ := json.Marshal(cachedVerification{RequestID: "req", Kind: repository.KindMRZ, Format: "TD1", Valid: true})
	cache := &stubCache{getValues: []string{string(payload)}}
	repo := &stubRepository{}
	uc := newTestVerificationUseCase(repo, cache)

	log, err := uc.GetResult(context.Background(), "req")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Format != "TD1" || !log.Valid || log.RequestID != "req" {
		t.Fatalf("unexpected cached log: %+v", log)
	}
	if repo.findCalls != 0 {
		t.Fatalf("expected no repository lookup, got %d", repo.findCalls)
	}
}

func TestGetResultNotFound(t *testing.T) {
	uc := newTestVerificationUseCase(&stubRepository{}, &stubCache{getErrs: []error{redis.Nil}})

	_, err := uc.GetResult(context.Background(), "missing")
	if apperror.StatusOf(err) != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestGetDuplicateReport(t *testing.T) {
	dup := &repository.VerificationLog{RequestID: "other", SHA1Hash: "abc"}
	repo := &stubRepository{
		findLog:    &repository.VerificationLog{RequestID: "req", SHA1Hash: "abc"},
		duplicates: []*repository.VerificationLog{dup},
	}
	uc := newTestVerificationUseCase(repo, &stubCache{})

	report, err := uc.GetDuplicateReport(context.Background(), "req")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.dupHash != "abc" || repo.dupExclude != "req" {
		t.Fatalf("unexpected duplicate query: hash=%s exclude=%s", repo.dupHash, repo.dupExclude)
	}
	if len(report.Duplicates) != 1 || report.Duplicates[0] != dup {
		t.Fatalf("unexpected duplicates: %+v", report.Duplicates)
	}
}

func TestGetMetricsSummary(t *testing.T) {
	repo := &stubRepository{agg: map[string]*repository.MetricsAggregation{
		"":                  {TotalCount: 4, SuccessCount: 3, AverageScore: 0.8, AverageProcessingLatencyMs: 250},
		repository.KindMRZ:  {TotalCount: 3, SuccessCount: 3, AverageScore: 1, AverageProcessingLatencyMs: 200},
		repository.KindFace: {TotalCount: 1, SuccessCount: 0, AverageScore: 0.2, AverageProcessingLatencyMs: 400},
	}}
	uc := newTestVerificationUseCase(repo, &stubCache{})

	summary, err := uc.GetMetricsSummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.SuccessRate != 0.75 {
		t.Fatalf("expected success rate 0.75, got %v", summary.SuccessRate)
	}
	if summary.TotalRequests != 4 || summary.AverageProcessingLatencyMs != 250 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got := summary.ByKind[repository.KindMRZ].SuccessRate; got != 1 {
		t.Fatalf("expected mrz success rate 1, got %v", got)
	}
	if got := summary.ByKind[repository.KindFace]; got.TotalRequests != 1 || got.SuccessRate != 0 {
		t.Fatalf("unexpected face summary: %+v", got)
	}
}

func TestGetMetricsSummaryEmpty(t *testing.T) {
	uc := newTestVerificationUseCase(&stubRepository{}, &stubCache{})

	summary, err := uc.GetMetricsSummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.SuccessRate != 0 || len(summary.ByKind) != 2 {
		t.Fatalf("unexpected empty summary: %+v", summary)
	}
}

func TestGetMetricsSummaryRepositoryError(t *testing.T) {
	uc := newTestVerificationUseCase(&stubRepository{aggErr: errors.New("db down")}, &stubCache{})

	_, err := uc.GetMetricsSummary(context.Background())
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "usecase.aggregate_metrics" {
		t.Fatalf("expected aggregate operation error, got %v", err)
	}
}
