// Package access enforces plan-tier limits on organization creation,
// membership, and cross-tenant visibility.
package access

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/promptroute/promptroute/internal/config"
	"github.com/promptroute/promptroute/internal/domain"
	"github.com/promptroute/promptroute/internal/observability"
	"github.com/promptroute/promptroute/internal/store"
)

// PlanLimit is the hard ceiling a tier grants.
type PlanLimit struct {
	MaxOrgs    int
	MaxMembers int
}

const unlimited = 99999

// planLimits is read-only after initialization.
var planLimits = map[string]PlanLimit{
	domain.PlanFree:       {MaxOrgs: 1, MaxMembers: 1},
	domain.PlanStarter:    {MaxOrgs: 1, MaxMembers: 3},
	domain.PlanTeam:       {MaxOrgs: 1, MaxMembers: 20},
	domain.PlanPro:        {MaxOrgs: 1, MaxMembers: unlimited},
	domain.PlanEnterprise: {MaxOrgs: unlimited, MaxMembers: unlimited},
}

// tierRank orders plans ascending. Unknown plans rank as free.
var tierRank = map[string]int{
	domain.PlanFree:       0,
	domain.PlanStarter:    1,
	domain.PlanTeam:       2,
	domain.PlanPro:        3,
	domain.PlanEnterprise: 4,
}

// upgradeHints name the next step for a caller who hit a ceiling.
var upgradeHints = map[string]string{
	domain.PlanFree:    "Upgrade to the starter plan to invite more members.",
	domain.PlanStarter: "Upgrade to the team plan for up to 20 members.",
	domain.PlanTeam:    "Upgrade to the pro plan for unlimited members.",
	domain.PlanPro:     "Contact sales about an enterprise plan for more organizations.",
}

func rankOf(plan string) int {
	return tierRank[plan] // missing plans rank 0 (free)
}

func limitsFor(plan string) PlanLimit {
	if limit, ok := planLimits[plan]; ok {
		return limit
	}
	return planLimits[domain.PlanFree]
}

// maxPlan returns the higher of two plans by tier ordering.
func maxPlan(a, b string) string {
	if rankOf(b) > rankOf(a) {
		return b
	}
	return a
}

// Store is the persistence surface the evaluator needs.
type Store interface {
	UserByID(ctx context.Context, userID string) (*store.User, error)
	OrganizationByID(ctx context.Context, orgID string) (*store.Organization, error)
	OrganizationsCreatedBy(ctx context.Context, userID string) ([]store.Organization, error)
	CreateOrganizationWithAdmin(ctx context.Context, org *store.Organization) error
	CountActiveMembers(ctx context.Context, orgID string) (int64, error)
	MembershipForUser(ctx context.Context, orgID, userID string) (*store.OrganizationMember, error)
	MembershipForEmail(ctx context.Context, orgID, email string) (*store.OrganizationMember, error)
	HasActiveMembership(ctx context.Context, orgID, userID string) (bool, error)
	InsertMembership(ctx context.Context, member *store.OrganizationMember) error
	RemoveMembership(ctx context.Context, orgID, userID, email string) error
}

// Evaluator applies plan policy on top of the store.
type Evaluator struct {
	store            Store
	enforceJoinLimit bool
}

// NewEvaluator creates an access-control evaluator (DI constructor).
func NewEvaluator(st Store, cfg *config.AccessConfig) *Evaluator {
	return &Evaluator{
		store:            st,
		enforceJoinLimit: cfg.EnforceJoinLimit,
	}
}

// CreateOrganization creates an org under the caller's effective plan.
//
// The effective plan is the higher of the requested plan and the user's own
// subscription tier. Only organization-type orgs count against the ceiling;
// personal orgs are always allowed. The org and its admin membership are
// inserted atomically.
func (e *Evaluator) CreateOrganization(
	ctx context.Context,
	userID, name, requestedPlan, orgType string,
) (*store.Organization, error) {
	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFoundError("user not found")
	}

	if orgType == "" {
		orgType = domain.OrgTypeOrganization
	}

	if requestedPlan == "" {
		requestedPlan = domain.PlanFree
	}
	effectivePlan := maxPlan(requestedPlan, user.Plan)

	if orgType == domain.OrgTypeOrganization {
		owned, err := e.store.OrganizationsCreatedBy(ctx, userID)
		if err != nil {
			return nil, err
		}

		var count int
		for _, org := range owned {
			if org.Type == domain.OrgTypeOrganization {
				count++
			}
		}

		limit := limitsFor(effectivePlan).MaxOrgs
		if count >= limit {
			return nil, domain.PlanLimitError(fmt.Sprintf(
				"Your plan (%s) only allows %d organization(s). %s",
				effectivePlan, limit, upgradeHints[effectivePlan]))
		}
	}

	org := &store.Organization{
		Name:      name,
		Plan:      effectivePlan,
		Type:      orgType,
		CreatedBy: userID,
	}
	if err := e.store.CreateOrganizationWithAdmin(ctx, org); err != nil {
		return nil, err
	}

	return org, nil
}

// InviteMember invites an email into the org, gated on the org's own plan
// member ceiling.
func (e *Evaluator) InviteMember(ctx context.Context, orgID, email string) (*store.OrganizationMember, error) {
	org, err := e.store.OrganizationByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.NotFoundError("organization not found")
	}

	members, err := e.store.CountActiveMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	limit := limitsFor(org.Plan).MaxMembers
	if members >= int64(limit) {
		return nil, domain.PlanLimitError(fmt.Sprintf(
			"Member limit reached for your plan (%s). %s", org.Plan, upgradeHints[org.Plan]))
	}

	existing, err := e.store.MembershipForEmail(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ValidationError("this email has already been invited to the organization")
	}

	member := &store.OrganizationMember{
		OrgID:        orgID,
		InvitedEmail: email,
		Role:         domain.RoleMember,
		Status:       domain.StatusPending,
	}
	if err := e.store.InsertMembership(ctx, member); err != nil {
		return nil, err
	}

	return member, nil
}

// JoinOrganization adds the user as an active member. The plan ceiling is
// enforced only when the join-limit flag is on.
func (e *Evaluator) JoinOrganization(ctx context.Context, userID, orgID string) (*store.OrganizationMember, error) {
	org, err := e.store.OrganizationByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.NotFoundError("organization not found")
	}

	existing, err := e.store.MembershipForUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ValidationError("you are already a member of this organization")
	}

	if e.enforceJoinLimit {
		members, err := e.store.CountActiveMembers(ctx, orgID)
		if err != nil {
			return nil, err
		}
		limit := limitsFor(org.Plan).MaxMembers
		if members >= int64(limit) {
			return nil, domain.PlanLimitError(fmt.Sprintf(
				"Member limit reached for this organization's plan (%s). %s", org.Plan, upgradeHints[org.Plan]))
		}
	}

	member := &store.OrganizationMember{
		OrgID:  orgID,
		UserID: userID,
		Role:   domain.RoleMember,
		Status: domain.StatusActive,
	}
	if err := e.store.InsertMembership(ctx, member); err != nil {
		return nil, err
	}

	return member, nil
}

// Decision is the outcome of an access check.
type Decision struct {
	CanAccess bool   `json:"can_access"`
	Reason    string `json:"reason"`
}

// CheckAccess decides whether a user may view an organization: personal orgs
// are always accessible, active members always have access, and otherwise the
// user's plan tier must be at least the org's tier.
func (e *Evaluator) CheckAccess(ctx context.Context, userID, orgID string) (Decision, error) {
	org, err := e.store.OrganizationByID(ctx, orgID)
	if err != nil {
		return Decision{}, err
	}
	if org == nil {
		return Decision{}, domain.NotFoundError("organization not found")
	}

	if org.Type == domain.OrgTypePersonal {
		return Decision{CanAccess: true, Reason: "personal organization"}, nil
	}

	isMember, err := e.store.HasActiveMembership(ctx, orgID, userID)
	if err != nil {
		return Decision{}, err
	}
	if isMember {
		return Decision{CanAccess: true, Reason: "active member"}, nil
	}

	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if user == nil {
		return Decision{CanAccess: false, Reason: "user not found"}, nil
	}

	if rankOf(user.Plan) >= rankOf(org.Plan) {
		return Decision{CanAccess: true, Reason: "plan tier grants access"}, nil
	}

	return Decision{
		CanAccess: false,
		Reason:    fmt.Sprintf("your plan (%s) does not grant access to a %s organization", user.Plan, org.Plan),
	}, nil
}

// RemoveMember deletes the membership and any invite rows addressed to the
// same identity. Removing an absent member is a no-op.
func (e *Evaluator) RemoveMember(ctx context.Context, orgID, userID string) error {
	email := ""
	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user != nil {
		email = user.Email
	}

	if err := e.store.RemoveMembership(ctx, orgID, userID, email); err != nil {
		return err
	}

	observability.FromContext(ctx).Info("member removed",
		zap.String("org_id", orgID),
		zap.String("member_id", userID),
	)
	return nil
}
