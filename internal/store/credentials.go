package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// CredentialByUser fetches the user-scoped credential for a provider.
// Returns (nil, nil) when no row matches.
func (s *Store) CredentialByUser(ctx context.Context, userID, provider string) (*Credential, error) {
	return s.credentialBy(ctx, "user_id = ? AND provider = ?", userID, provider)
}

// CredentialByOrg fetches the org-scoped credential for a provider.
// Returns (nil, nil) when no row matches.
func (s *Store) CredentialByOrg(ctx context.Context, orgID, provider string) (*Credential, error) {
	return s.credentialBy(ctx, "org_id = ? AND provider = ?", orgID, provider)
}

func (s *Store) credentialBy(ctx context.Context, query string, args ...any) (*Credential, error) {
	var cred Credential
	err := s.db.WithContext(ctx).Where(query, args...).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credential: %w", err)
	}
	return &cred, nil
}

// CredentialsByUser lists every credential row stored for a user.
func (s *Store) CredentialsByUser(ctx context.Context, userID string) ([]Credential, error) {
	var creds []Credential
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// UpsertCredential stores an encrypted credential for the given scope,
// updating the existing row when one exists. The update-then-insert runs in a
// transaction so two concurrent stores for the same (scope, provider) cannot
// create duplicate rows.
func (s *Store) UpsertCredential(ctx context.Context, cred *Credential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := tx.Where("provider = ?", cred.Provider)
		if cred.UserID != "" {
			scope = scope.Where("user_id = ?", cred.UserID)
		} else {
			scope = scope.Where("org_id = ?", cred.OrgID)
		}

		res := scope.Model(&Credential{}).Update("api_key", cred.APIKey)
		if res.Error != nil {
			return fmt.Errorf("failed to update credential: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}

		if err := tx.Create(cred).Error; err != nil {
			return fmt.Errorf("failed to insert credential: %w", err)
		}
		return nil
	})
}

// DeleteCredential removes the user-scoped credential for a provider and
// reports how many rows were deleted.
func (s *Store) DeleteCredential(ctx context.Context, userID, provider string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&Credential{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete credential: %w", res.Error)
	}
	return res.RowsAffected, nil
}
