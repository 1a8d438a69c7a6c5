package fanout

import (
	"context"
	"time"

	"tramita/internal/logging"
)

// FailurePolicy decides what happens to the rest of a batch after one item
// fails.
type FailurePolicy string

const (
	// FailureContinue records the failure and keeps going. The default.
	FailureContinue FailurePolicy = "continue"
	// FailureStop abandons the remaining items after the first failure.
	FailureStop FailurePolicy = "stop"
)

// BatchStatus summarizes a finished batch.
type BatchStatus string

const (
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
)

// BatchOptions tunes CreateBatch. The zero value means no inter-item delay
// and the continue-on-failure policy.
type BatchOptions struct {
	Delay         time.Duration
	FailurePolicy FailurePolicy
}

// BatchItem is the per-payload outcome, in input order. Exactly one of
// Result and Err is set.
type BatchItem struct {
	Index  int
	Result *Result
	Err    error
}

// BatchResult reports a whole batch. Items that were never attempted (stop
// policy, cancellation) appear in no Results entry.
type BatchResult struct {
	TotalCount   int
	SuccessCount int
	FailureCount int
	Status       BatchStatus
	Results      []BatchItem
}

// CreateBatch processes payloads strictly in input order, one at a time. A
// per-item failure is captured in its result slot; whether the rest of the
// batch runs depends on the failure policy. Earlier successes are never
// rolled back. Cancellation between items stops the batch and keeps
// everything already created.
func (s *Service) CreateBatch(ctx context.Context, payloads []Payload, opts BatchOptions) *BatchResult {
	policy := opts.FailurePolicy
	if policy == "" {
		policy = FailureContinue
	}

	batch := &BatchResult{
		TotalCount: len(payloads),
		Results:    make([]BatchItem, 0, len(payloads)),
	}

	for i, payload := range payloads {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("batch cancelled",
				logging.Int("attempted", i),
				logging.Int("total", len(payloads)))
			break
		}
		if i > 0 && opts.Delay > 0 {
			if !sleepCtx(ctx, opts.Delay) {
				break
			}
		}

		result, err := s.Create(ctx, payload)
		item := BatchItem{Index: i, Result: result, Err: err}
		batch.Results = append(batch.Results, item)
		if err != nil {
			batch.FailureCount++
			s.logger.Warn("batch item failed",
				logging.Int("index", i),
				logging.Error(err))
			if policy == FailureStop {
				break
			}
			continue
		}
		batch.SuccessCount++
	}

	if batch.FailureCount == 0 && batch.SuccessCount == batch.TotalCount {
		batch.Status = BatchCompleted
	} else {
		batch.Status = BatchPartial
	}
	return batch
}

// sleepCtx waits for d or until ctx is done. Returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
