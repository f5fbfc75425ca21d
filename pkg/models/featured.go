package models

// FeaturedKeyword is a server-suggested keyword tied to one gender
type FeaturedKeyword struct {
	Keyword string `json:"keyword"`
	Name    string `json:"name"`
	Gender  Gender `json:"gender"`
}

// HealthStatus reports the featured keyword subsystem state on the server
type HealthStatus struct {
	IsAvailable bool   `json:"is_available"`
	LastError   string `json:"last_error,omitempty"`
}

// FeaturedKeywordsResponse is the decoded featured keyword payload
type FeaturedKeywordsResponse struct {
	Success      *bool             `json:"success"`
	Keywords     []FeaturedKeyword `json:"keywords"`
	Fallback     bool              `json:"fallback,omitempty"`
	Message      string            `json:"message,omitempty"`
	HealthStatus *HealthStatus     `json:"health_status,omitempty"`
	Error        *ErrorBody        `json:"error,omitempty"`
}

// Succeeded treats an absent success flag as success
func (r *FeaturedKeywordsResponse) Succeeded() bool {
	return r.Success == nil || *r.Success
}

// FailureMessage returns the error message, the top-level message, or fallback
func (r *FeaturedKeywordsResponse) FailureMessage(fallback string) string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	if r.Message != "" {
		return r.Message
	}
	return fallback
}
