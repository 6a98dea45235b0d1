// Package optimizer recomputes per-prompt model/cost recommendations after
// usage events. It is a best-effort side channel: failures are logged by the
// caller and never fail the triggering usage write.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/observability"
	"github.com/promptroute/promptroute/internal/pricing"
	"github.com/promptroute/promptroute/internal/store"
)

// Store is the persistence surface the optimizer needs.
type Store interface {
	PromptTemplateByID(ctx context.Context, promptID string) (*store.PromptTemplate, error)
	ProjectByID(ctx context.Context, projectID string) (*store.Project, error)
	ProjectSpendSince(ctx context.Context, projectID string, since time.Time) (float64, error)
	UsageForPromptSince(ctx context.Context, projectID, promptID string, since time.Time) ([]store.UsageLog, error)
	LatestRecommendation(ctx context.Context, promptID string) (*store.OptimizerRecommendation, error)
	HasRecommendationSince(ctx context.Context, promptID string, since time.Time) (bool, error)
	InsertRecommendation(ctx context.Context, rec *store.OptimizerRecommendation) error
}

// Engine drives the recommendation feedback loop.
type Engine struct {
	store Store
}

// NewEngine creates an optimizer engine (DI constructor).
func NewEngine(st Store) *Engine {
	return &Engine{store: st}
}

// monthStartUTC returns the first instant of the current calendar month.
func monthStartUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Process decides whether the usage event warrants a new recommendation row
// and inserts one if so. Requires project, org, and prompt identifiers; calls
// without them are skipped.
func (e *Engine) Process(ctx context.Context, rec *domain.UsageRecord) error {
	if rec.ProjectID == "" || rec.OrgID == "" || rec.PromptID == "" {
		return nil
	}

	logger := observability.FromContext(ctx)

	tmpl, err := e.store.PromptTemplateByID(ctx, rec.PromptID)
	if err != nil {
		return err
	}
	if tmpl == nil {
		logger.Debug("optimizer skipped: prompt template missing",
			zap.String("prompt_id", rec.PromptID))
		return nil
	}

	if tmpl.IsDynamic {
		return e.processDynamic(ctx, rec)
	}
	return e.processStatic(ctx, rec)
}

// processStatic recomputes only when the prompt text changed since the last
// recommendation. Recomputation is wasted work when nothing changed.
func (e *Engine) processStatic(ctx context.Context, rec *domain.UsageRecord) error {
	latest, err := e.store.LatestRecommendation(ctx, rec.PromptID)
	if err != nil {
		return err
	}
	if latest != nil && latest.FullPrompt == rec.Prompt {
		observability.FromContext(ctx).Debug("optimizer skipped: prompt text unchanged",
			zap.String("prompt_id", rec.PromptID))
		return nil
	}

	return e.recommend(ctx, rec, rec.Prompt, rec.InputTokens, rec.OutputTokens, rec.CostUSD)
}

// processDynamic recomputes at most once per calendar month, averaging the
// month's usage so one outlier call does not skew the recommendation.
func (e *Engine) processDynamic(ctx context.Context, rec *domain.UsageRecord) error {
	since := monthStartUTC(time.Now())

	computed, err := e.store.HasRecommendationSince(ctx, rec.PromptID, since)
	if err != nil {
		return err
	}
	if computed {
		observability.FromContext(ctx).Debug("optimizer skipped: already computed this month",
			zap.String("prompt_id", rec.PromptID))
		return nil
	}

	rows, err := e.store.UsageForPromptSince(ctx, rec.ProjectID, rec.PromptID, since)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var inputSum, outputSum int
	var costSum float64
	for _, row := range rows {
		inputSum += row.InputTokens
		outputSum += row.OutputTokens
		costSum += row.CostUSD
	}

	n := float64(len(rows))
	avgInput := int(math.Round(float64(inputSum) / n))
	avgOutput := int(math.Round(float64(outputSum) / n))
	avgCost := costSum / n

	// rows are newest-first; the latest prompt is the representative text.
	return e.recommend(ctx, rec, rows[0].Prompt, avgInput, avgOutput, avgCost)
}

// recommend prices the suggested model against the actual figures and appends
// one recommendation row.
func (e *Engine) recommend(
	ctx context.Context,
	rec *domain.UsageRecord,
	promptText string,
	inputTokens, outputTokens int,
	actualCost float64,
) error {
	since := monthStartUTC(time.Now())

	suggestion := pricing.SuggestModel(promptText)
	estimatedCost := pricing.Cost(suggestion.Provider, suggestion.Model, inputTokens, outputTokens)

	budgetUsed, err := e.store.ProjectSpendSince(ctx, rec.ProjectID, since)
	if err != nil {
		return err
	}

	var monthlyBudget float64
	project, err := e.store.ProjectByID(ctx, rec.ProjectID)
	if err != nil {
		return err
	}
	if project != nil {
		monthlyBudget = project.MonthlyBudgetUSD
	}

	reasoning := fmt.Sprintf(
		"Actual cost $%.6f vs estimated $%.6f on %s/%s (delta $%+.6f). Suggested tier: %s",
		actualCost, estimatedCost, suggestion.Provider, suggestion.Model,
		estimatedCost-actualCost, suggestion.Reason)

	row := &store.OptimizerRecommendation{
		PromptID:            rec.PromptID,
		ProjectID:           rec.ProjectID,
		OrgID:               rec.OrgID,
		UserID:              rec.UserID,
		RecommendedProvider: suggestion.Provider,
		RecommendedModel:    suggestion.Model,
		EstimatedCostUSD:    estimatedCost,
		EstimatedTokens:     inputTokens + outputTokens,
		FullPrompt:          promptText,
		BudgetUsedUSD:       budgetUsed,
		MonthlyBudgetUSD:    monthlyBudget,
		Reasoning:           reasoning,
	}
	if err := e.store.InsertRecommendation(ctx, row); err != nil {
		return err
	}

	observability.FromContext(ctx).Info("optimizer recommendation recorded",
		zap.String("prompt_id", rec.PromptID),
		zap.String("recommended_model", suggestion.Model),
		zap.Float64("estimated_cost_usd", estimatedCost),
	)
	return nil
}
