package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/promptroute/promptroute/internal/domain"
)

// UserByID fetches a user. Returns (nil, nil) when absent.
func (s *Store) UserByID(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

// OrganizationByID fetches an organization. Returns (nil, nil) when absent.
func (s *Store) OrganizationByID(ctx context.Context, orgID string) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).Where("id = ?", orgID).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch organization: %w", err)
	}
	return &org, nil
}

// OrganizationsCreatedBy lists organizations created by a user.
func (s *Store) OrganizationsCreatedBy(ctx context.Context, userID string) ([]Organization, error) {
	var orgs []Organization
	if err := s.db.WithContext(ctx).Where("created_by = ?", userID).Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// CreateOrganizationWithAdmin inserts the organization and its admin
// membership atomically: a membership insert failure rolls the org back so no
// orphan organization exists.
func (s *Store) CreateOrganizationWithAdmin(ctx context.Context, org *Organization) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("failed to insert organization: %w", err)
		}

		member := &OrganizationMember{
			OrgID:  org.ID,
			UserID: org.CreatedBy,
			Role:   domain.RoleAdmin,
			Status: domain.StatusActive,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("failed to insert admin membership: %w", err)
		}
		return nil
	})
}

// CountActiveMembers counts active membership rows for an org.
func (s *Store) CountActiveMembers(ctx context.Context, orgID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&OrganizationMember{}).
		Where("org_id = ? AND status = ?", orgID, domain.StatusActive).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// MembershipForUser fetches any membership row (any status) for the pair.
// Returns (nil, nil) when absent.
func (s *Store) MembershipForUser(ctx context.Context, orgID, userID string) (*OrganizationMember, error) {
	var member OrganizationMember
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch membership: %w", err)
	}
	return &member, nil
}

// HasActiveMembership reports whether the user is an active member of the org.
func (s *Store) HasActiveMembership(ctx context.Context, orgID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&OrganizationMember{}).
		Where("org_id = ? AND user_id = ? AND status = ?", orgID, userID, domain.StatusActive).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// MembershipForEmail fetches any membership or invite row addressed to the
// email for the org. Returns (nil, nil) when absent.
func (s *Store) MembershipForEmail(ctx context.Context, orgID, email string) (*OrganizationMember, error) {
	var member OrganizationMember
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND invited_email = ?", orgID, email).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invite: %w", err)
	}
	return &member, nil
}

// InsertMembership stores a new membership or invite row.
func (s *Store) InsertMembership(ctx context.Context, member *OrganizationMember) error {
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// RemoveMembership deletes every membership, join-request, and invitation row
// for the identity in the org. Removing an absent member deletes zero rows
// and is not an error.
func (s *Store) RemoveMembership(ctx context.Context, orgID, userID, email string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if userID != "" {
			if err := tx.Where("org_id = ? AND user_id = ?", orgID, userID).
				Delete(&OrganizationMember{}).Error; err != nil {
				return fmt.Errorf("failed to remove membership: %w", err)
			}
		}
		if email != "" {
			if err := tx.Where("org_id = ? AND invited_email = ?", orgID, email).
				Delete(&OrganizationMember{}).Error; err != nil {
				return fmt.Errorf("failed to remove invitations: %w", err)
			}
		}
		return nil
	})
}
