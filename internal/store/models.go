package store

import (
	"strings"
	"time"
)

// ProjectStatus tracks a project through the wizard.
type ProjectStatus string

const (
	StatusDraft         ProjectStatus = "draft"
	StatusCapsuleReady  ProjectStatus = "capsule_ready"
	StatusTrendsReady   ProjectStatus = "trends_ready"
	StatusCampaignReady ProjectStatus = "campaign_ready"
	StatusCompleted     ProjectStatus = "completed"
	StatusFailed        ProjectStatus = "failed"
)

var allStatuses = []ProjectStatus{
	StatusDraft,
	StatusCapsuleReady,
	StatusTrendsReady,
	StatusCampaignReady,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[ProjectStatus]struct{} {
	set := make(map[ProjectStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedTransitions is the single source of truth for the wizard lifecycle.
// Regenerating a stage keeps the current status; only forward progress,
// failure, and retry-from-failure change it.
var allowedTransitions = map[ProjectStatus][]ProjectStatus{
	StatusDraft:         {StatusCapsuleReady, StatusFailed},
	StatusCapsuleReady:  {StatusTrendsReady, StatusFailed},
	StatusTrendsReady:   {StatusCampaignReady, StatusFailed},
	StatusCampaignReady: {StatusCompleted, StatusFailed},
	StatusFailed:        {StatusDraft},
	StatusCompleted:     nil,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []ProjectStatus {
	cp := make([]ProjectStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known ProjectStatus.
func ParseStatus(value string) (ProjectStatus, bool) {
	normalized := ProjectStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether moving from one status to another is a legal
// lifecycle step.
func CanTransition(from, to ProjectStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status accepts no further transitions.
func (s ProjectStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Project is one wizard run persisted in SQLite.
type Project struct {
	ID           string
	OwnerID      int64 // 0 when auth is disabled
	BrandName    string
	InputsJSON   string
	Status       ProjectStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User is a registered account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// Session records an issued token ID so it can be revoked server-side.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ArtifactKind selects which wizard artifact table an operation targets.
type ArtifactKind string

const (
	ArtifactCapsule   ArtifactKind = "capsule"
	ArtifactDashboard ArtifactKind = "dashboard"
	ArtifactCampaign  ArtifactKind = "campaign"
)

// Artifact is a generated wizard payload (capsule, dashboard, or campaign).
type Artifact struct {
	ID          int64
	ProjectID   string
	PayloadJSON string
	Model       string
	Fallback    bool
	CreatedAt   time.Time
}

// LicenseRecord is the persisted trace of one embed operation.
type LicenseRecord struct {
	ID          string
	FileName    string
	Format      string
	Digest      string
	PayloadJSON string
	Sidecar     bool
	EmbeddedAt  time.Time
}

// Summary aggregates project and license counts for status reporting.
type Summary struct {
	Projects  int
	ByStatus  map[ProjectStatus]int
	Completed int
	Failed    int
	Licenses  int
}
