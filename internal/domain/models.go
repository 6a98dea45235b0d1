package domain

import "time"

// Plan tiers, ascending. Each tier bounds how many organizations a user may
// create and how many members an organization may hold.
const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanTeam       = "team"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Organization types. Personal organizations are always accessible to their
// owner and are excluded from plan ceilings.
const (
	OrgTypeOrganization = "organization"
	OrgTypePersonal     = "personal"
)

// Membership roles and statuses.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	StatusPending = "pending"
	StatusInvited = "invited"
	StatusActive  = "active"
)

// CompletionRequest is the uniform request shape handed to a provider adapter.
type CompletionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// CompletionResult is the normalized provider response. Token counts are zero
// when the upstream response carries no usage metadata.
type CompletionResult struct {
	Reply        string `json:"response"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the combined token count.
func (r *CompletionResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// RouteResult is what the router returns to the caller after a priced call.
type RouteResult struct {
	Reply        string  `json:"response"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// UsageRecord is one immutable usage-log entry.
type UsageRecord struct {
	UserID       string
	OrgID        string
	ProjectID    string
	PromptID     string
	Provider     string
	Model        string
	Prompt       string
	Response     string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
	CreatedAt    time.Time
}
