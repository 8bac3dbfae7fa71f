package usecase

import (
	"context"

	"github.com/example/gigwork/internal/logging"
	"github.com/example/gigwork/internal/repository"
)

// KindSummary is the aggregate for one verification kind, or for all of them.
type KindSummary struct {
	TotalRequests              int64   `json:"total_requests"`
	SuccessfulRequests         int64   `json:"successful_requests"`
	SuccessRate                float64 `json:"success_rate"`
	AverageScore               float64 `json:"average_score"`
	AverageProcessingLatencyMs float64 `json:"average_processing_latency_ms"`
}

// MetricsSummary is the overall audit aggregate with a breakdown per kind.
type MetricsSummary struct {
	KindSummary
	ByKind map[string]KindSummary `json:"by_kind"`
}

var summaryKinds = []string{repository.KindMRZ, repository.KindFace}

// GetMetricsSummary aggregates persisted verification logs.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	overall, err := uc.summarize(ctx, "")
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{KindSummary: overall, ByKind: make(map[string]KindSummary, len(summaryKinds))}
	for _, kind := range summaryKinds {
		s, err := uc.summarize(ctx, kind)
		if err != nil {
			return nil, err
		}
		summary.ByKind[kind] = s
	}
	return summary, nil
}

func (uc *VerificationUseCase) summarize(ctx context.Context, kind string) (KindSummary, error) {
	agg, err := uc.repo.AggregateMetrics(ctx, kind)
	if err != nil {
		return KindSummary{}, logging.NewOperationError("usecase.aggregate_metrics", "", err)
	}
	s := KindSummary{
		TotalRequests:              agg.TotalCount,
		SuccessfulRequests:         agg.SuccessCount,
		AverageScore:               agg.AverageScore,
		AverageProcessingLatencyMs: agg.AverageProcessingLatencyMs,
	}
	if agg.TotalCount > 0 {
		s.SuccessRate = float64(agg.SuccessCount) / float64(agg.TotalCount)
	}
	return s, nil
}
