package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PromptTemplateByID fetches a prompt template. Returns (nil, nil) when absent.
func (s *Store) PromptTemplateByID(ctx context.Context, promptID string) (*PromptTemplate, error) {
	var tmpl PromptTemplate
	err := s.db.WithContext(ctx).Where("id = ?", promptID).First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prompt template: %w", err)
	}
	return &tmpl, nil
}

// ProjectByID fetches a project. Returns (nil, nil) when absent.
func (s *Store) ProjectByID(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	err := s.db.WithContext(ctx).Where("id = ?", projectID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}
	return &project, nil
}

// InsertUsageLog appends one usage record. Usage rows are never mutated.
func (s *Store) InsertUsageLog(ctx context.Context, entry *UsageLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// ProjectSpendSince sums the project's usage cost since the given time.
func (s *Store) ProjectSpendSince(ctx context.Context, projectID string, since time.Time) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&UsageLog{}).
		Where("project_id = ? AND created_at >= ?", projectID, since).
		Select("COALESCE(SUM(cost_usd), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum project spend: %w", err)
	}
	return total, nil
}

// UsageForPromptSince lists the usage rows for a (project, prompt) pair since
// the given time, newest first.
func (s *Store) UsageForPromptSince(ctx context.Context, projectID, promptID string, since time.Time) ([]UsageLog, error) {
	var rows []UsageLog
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND prompt_id = ? AND created_at >= ?", projectID, promptID, since).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list usage rows: %w", err)
	}
	return rows, nil
}

// LatestRecommendation returns the newest recommendation row for a prompt.
// Returns (nil, nil) when none exists.
func (s *Store) LatestRecommendation(ctx context.Context, promptID string) (*OptimizerRecommendation, error) {
	var rec OptimizerRecommendation
	err := s.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recommendation: %w", err)
	}
	return &rec, nil
}

// HasRecommendationSince reports whether any recommendation row for the
// prompt was created at or after the given time.
func (s *Store) HasRecommendationSince(ctx context.Context, promptID string, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&OptimizerRecommendation{}).
		Where("prompt_id = ? AND created_at >= ?", promptID, since).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check recommendations: %w", err)
	}
	return count > 0, nil
}

// InsertRecommendation appends one recommendation row. Existing rows are
// superseded, never overwritten.
func (s *Store) InsertRecommendation(ctx context.Context, rec *OptimizerRecommendation) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return nil
}
