package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ServiceKeyByHash looks up a service key by the SHA-256 hash of the
// presented bearer token. Returns (nil, nil) when no row matches.
func (s *Store) ServiceKeyByHash(ctx context.Context, keyHash string) (*ServiceAPIKey, error) {
	var key ServiceAPIKey
	err := s.db.WithContext(ctx).Where("key_hash = ?", keyHash).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service key: %w", err)
	}
	return &key, nil
}

// FirstServiceKeyByUser returns the user's existing service key, if any.
func (s *Store) FirstServiceKeyByUser(ctx context.Context, userID string) (*ServiceAPIKey, error) {
	var key ServiceAPIKey
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service key: %w", err)
	}
	return &key, nil
}

// ServiceKeyByID fetches a service key by its row id. Returns (nil, nil)
// when absent.
func (s *Store) ServiceKeyByID(ctx context.Context, keyID string) (*ServiceAPIKey, error) {
	var key ServiceAPIKey
	err := s.db.WithContext(ctx).Where("id = ?", keyID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service key: %w", err)
	}
	return &key, nil
}

// ServiceKeysByUser lists all service keys issued to a user.
func (s *Store) ServiceKeysByUser(ctx context.Context, userID string) ([]ServiceAPIKey, error) {
	var keys []ServiceAPIKey
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list service keys: %w", err)
	}
	return keys, nil
}

// InsertServiceKey stores a new service key row.
func (s *Store) InsertServiceKey(ctx context.Context, key *ServiceAPIKey) error {
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return fmt.Errorf("failed to insert service key: %w", err)
	}
	return nil
}

// DeleteServiceKey removes a service key by its row id.
func (s *Store) DeleteServiceKey(ctx context.Context, keyID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("id = ?", keyID).Delete(&ServiceAPIKey{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete service key: %w", res.Error)
	}
	return res.RowsAffected, nil
}
