package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Project describes a wizard project in a transport-friendly format.
type Project struct {
	ID           string          `json:"id"`
	BrandName    string          `json:"brandName"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Inputs       json.RawMessage `json:"inputs,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

// ProjectListResponse wraps a collection of projects.
type ProjectListResponse struct {
	Projects []Project `json:"projects"`
}

// ProjectResponse wraps a single project.
type ProjectResponse struct {
	Project Project `json:"project"`
}

// Artifact carries a generated payload (capsule, dashboard, or campaign).
type Artifact struct {
	Payload   json.RawMessage `json:"payload"`
	Model     string          `json:"model,omitempty"`
	Fallback  bool            `json:"fallback"`
	CreatedAt string          `json:"createdAt,omitempty"`
}

// ArtifactResponse wraps a single generated artifact.
type ArtifactResponse struct {
	Artifact Artifact `json:"artifact"`
}

// User describes an account without credential material.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthResponse is returned by registration and login.
type AuthResponse struct {
	Token string `json:"token,omitempty"`
	User  User   `json:"user"`
}

// License describes a recorded license embed.
type License struct {
	ID         string          `json:"id"`
	FileName   string          `json:"fileName"`
	Format     string          `json:"format"`
	Digest     string          `json:"digest"`
	Sidecar    bool            `json:"sidecar"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EmbeddedAt string          `json:"embeddedAt,omitempty"`
}

// LicenseListResponse wraps recorded license embeds.
type LicenseListResponse struct {
	Licenses []License `json:"licenses"`
}

// EmbedResponse reports the outcome of a license embed request. The file
// bytes themselves come back in a separate multipart part or download.
type EmbedResponse struct {
	License License `json:"license"`
}

// VerifyResponse reports the outcome of a license verification.
type VerifyResponse struct {
	Valid   bool            `json:"valid"`
	Digest  string          `json:"digest,omitempty"`
	License json.RawMessage `json:"license,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

// Summary aggregates project and license counts.
type Summary struct {
	Projects  int            `json:"projects"`
	ByStatus  map[string]int `json:"byStatus"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Licenses  int            `json:"licenses"`
}

// ServerStatus aggregates daemon runtime information for API consumers.
type ServerStatus struct {
	Running      bool    `json:"running"`
	PID          int     `json:"pid"`
	DatabasePath string  `json:"databasePath"`
	LockFilePath string  `json:"lockFilePath"`
	AuthEnabled  bool    `json:"authEnabled"`
	Summary      Summary `json:"summary"`
}

// HealthResponse reports reachability of the configured model backends.
type HealthResponse struct {
	Healthy  bool              `json:"healthy"`
	Services map[string]string `json:"services"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
