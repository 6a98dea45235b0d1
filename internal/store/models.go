package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered account. Plan reflects the user's subscription tier and
// feeds the access-control evaluator.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Plan      string    `json:"plan" gorm:"type:varchar(20);not null;default:'free'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization is a tenant that owns credentials, templates, and usage.
type Organization struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Plan      string    `json:"plan" gorm:"type:varchar(20);not null;default:'free'"`
	Type      string    `json:"type" gorm:"type:varchar(20);not null;default:'organization'"`
	CreatedBy string    `json:"created_by" gorm:"type:uuid;index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrganizationMember links a user (or a pending invite email) to an org.
// At most one active membership exists per (org_id, user_id).
type OrganizationMember struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	OrgID        string    `json:"org_id" gorm:"type:uuid;index:idx_org_user;not null"`
	UserID       string    `json:"user_id" gorm:"type:uuid;index:idx_org_user"`
	InvitedEmail string    `json:"invited_email" gorm:"type:varchar(255);index"`
	Role         string    `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	Status       string    `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Credential is an encrypted provider API secret scoped to a user or an org.
// Exactly one of UserID/OrgID is set; one row exists per (scope, provider).
type Credential struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index"`
	OrgID     string    `json:"org_id" gorm:"type:uuid;index"`
	Provider  string    `json:"provider" gorm:"type:varchar(50);not null"`
	APIKey    string    `json:"api_key" gorm:"type:text;not null"` // encrypted at rest
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServiceAPIKey is a long-lived bearer key for the universal prompt endpoint.
// KeyHash is a SHA-256 of the raw token so authentication is an indexed
// lookup instead of a decrypt-and-compare scan over every row.
type ServiceAPIKey struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index;not null"`
	APIKey    string    `json:"api_key" gorm:"type:text;not null"` // encrypted at rest
	KeyHash   string    `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// PromptTemplate is a stored prompt with a single {input} substitution point.
type PromptTemplate struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index;not null"`
	OrgID     string    `json:"org_id" gorm:"type:uuid;index"`
	ProjectID string    `json:"project_id" gorm:"type:uuid;index"`
	Provider  string    `json:"provider" gorm:"type:varchar(50);not null"`
	Model     string    `json:"model" gorm:"type:varchar(100);not null"`
	Prompt    string    `json:"prompt" gorm:"type:text"`
	IsDynamic bool      `json:"is_dynamic" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageLog is an append-only record of one provider call. Rows are never
// updated or deleted.
type UsageLog struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       string    `json:"user_id" gorm:"type:uuid;index"`
	OrgID        string    `json:"org_id" gorm:"type:uuid;index"`
	ProjectID    string    `json:"project_id" gorm:"type:uuid;index"`
	PromptID     string    `json:"prompt_id" gorm:"type:uuid;index"`
	Provider     string    `json:"provider" gorm:"type:varchar(50)"`
	Model        string    `json:"model" gorm:"type:varchar(100)"`
	Prompt       string    `json:"prompt" gorm:"type:text"`
	Response     string    `json:"response" gorm:"type:text"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// OptimizerRecommendation is an append-only model/cost suggestion for a prompt
// template. The newest row per prompt_id is the active recommendation.
type OptimizerRecommendation struct {
	ID                  string    `json:"id" gorm:"primaryKey;type:uuid"`
	PromptID            string    `json:"prompt_id" gorm:"type:uuid;index;not null"`
	ProjectID           string    `json:"project_id" gorm:"type:uuid;index"`
	OrgID               string    `json:"org_id" gorm:"type:uuid"`
	UserID              string    `json:"user_id" gorm:"type:uuid"`
	RecommendedProvider string    `json:"recommended_provider" gorm:"type:varchar(50)"`
	RecommendedModel    string    `json:"recommended_model" gorm:"type:varchar(100)"`
	EstimatedCostUSD    float64   `json:"estimated_cost_usd"`
	EstimatedTokens     int       `json:"estimated_tokens"`
	FullPrompt          string    `json:"full_prompt" gorm:"type:text"`
	BudgetUsedUSD       float64   `json:"budget_used_usd"`
	MonthlyBudgetUSD    float64   `json:"monthly_budget_usd"`
	Reasoning           string    `json:"reasoning" gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at" gorm:"index"`
}

// Project is a budget envelope usage is compared against.
type Project struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name             string    `json:"name" gorm:"type:varchar(100)"`
	OrgID            string    `json:"org_id" gorm:"type:uuid;index"`
	MonthlyBudgetUSD float64   `json:"monthly_budget_usd"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// newID assigns a UUID primary key when the caller did not set one.
func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// BeforeCreate hooks keep inserts usable without callers minting IDs.
func (u *User) BeforeCreate(*gorm.DB) error                    { u.ID = newID(u.ID); return nil }
func (o *Organization) BeforeCreate(*gorm.DB) error            { o.ID = newID(o.ID); return nil }
func (m *OrganizationMember) BeforeCreate(*gorm.DB) error      { m.ID = newID(m.ID); return nil }
func (c *Credential) BeforeCreate(*gorm.DB) error              { c.ID = newID(c.ID); return nil }
func (k *ServiceAPIKey) BeforeCreate(*gorm.DB) error           { k.ID = newID(k.ID); return nil }
func (p *PromptTemplate) BeforeCreate(*gorm.DB) error          { p.ID = newID(p.ID); return nil }
func (l *UsageLog) BeforeCreate(*gorm.DB) error                { l.ID = newID(l.ID); return nil }
func (r *OptimizerRecommendation) BeforeCreate(*gorm.DB) error { r.ID = newID(r.ID); return nil }
func (p *Project) BeforeCreate(*gorm.DB) error                 { p.ID = newID(p.ID); return nil }
