package models

import "time"

// SessionPhase records how far a generation session got
type SessionPhase string

const (
	PhaseOpen      SessionPhase = "open"
	PhaseSettled   SessionPhase = "settled"
	PhaseFailed    SessionPhase = "failed"
)

// Checkpoint is the saved state of one generation session
type Checkpoint struct {
	// Session identification
	SessionID   string    `json:"session_id"` // UUID for this session
	CreatedAt   time.Time `json:"created_at"`
	LastSavedAt time.Time `json:"last_saved_at"`

	CurrentPhase SessionPhase      `json:"current_phase"`
	Request      GenerationRequest `json:"request"`

	// Settlement of the most recent request
	RequestID    string     `json:"request_id"`
	Outcome      string     `json:"outcome"`
	Code         string     `json:"code,omitempty"`
	Message      string     `json:"message,omitempty"`
	Featured     bool       `json:"featured,omitempty"`
	FeaturedName string     `json:"featured_name,omitempty"`
	Templates    []Template `json:"templates"` // last successful batch
	Duration     string     `json:"duration"`
	Generations  int        `json:"generations"` // settled requests in this session

	ConfigHash string `json:"config_hash"` // SHA256 of server/model config
}
