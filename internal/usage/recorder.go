// Package usage persists usage records and triggers the optimizer feedback
// loop. Recording is best-effort bookkeeping: a failure here must never fail
// a completion the caller already received.
package usage

import (
	"context"

	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/observability"
	"github.com/promptroute/promptroute/internal/store"
)

// Store is the persistence surface the recorder needs.
type Store interface {
	InsertUsageLog(ctx context.Context, entry *store.UsageLog) error
}

// Optimizer is invoked after each successful usage write.
type Optimizer interface {
	Process(ctx context.Context, rec *domain.UsageRecord) error
}

// Recorder writes usage logs and drives the optimizer.
type Recorder struct {
	store     Store
	optimizer Optimizer
}

// NewRecorder creates a usage recorder (DI constructor).
func NewRecorder(st Store, opt Optimizer) *Recorder {
	return &Recorder{store: st, optimizer: opt}
}

// Record persists one usage record and triggers the optimizer. Failures are
// logged and swallowed.
func (r *Recorder) Record(ctx context.Context, rec *domain.UsageRecord) {
	logger := observability.FromContext(ctx)

	entry := &store.UsageLog{
		UserID:       rec.UserID,
		OrgID:        rec.OrgID,
		ProjectID:    rec.ProjectID,
		PromptID:     rec.PromptID,
		Provider:     rec.Provider,
		Model:        rec.Model,
		Prompt:       rec.Prompt,
		Response:     rec.Response,
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		TotalTokens:  rec.TotalTokens,
		CostUSD:      rec.CostUSD,
	}
	if err := r.store.InsertUsageLog(ctx, entry); err != nil {
		logger.Error("failed to write usage log", zap.Error(err))
		return
	}

	if r.optimizer == nil {
		return
	}
	if err := r.optimizer.Process(ctx, rec); err != nil {
		logger.Error("optimizer update failed", zap.Error(err))
	}
}
