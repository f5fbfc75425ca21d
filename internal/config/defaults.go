package config

const (
	// DefaultBaseURL points at a locally running generation service
	DefaultBaseURL = "http://localhost:5000"
	// DefaultModel is sent with every generate call unless configured otherwise
	DefaultModel = "gemini-2.5-flash"
	// ItemsPerPage is the fixed number of templates shown per page
	ItemsPerPage = 6
)

// DefaultStages returns the stock progress schedule.
// Durations are tuned to the typical length of one generate call.
func DefaultStages() []StageConfig {
	return []StageConfig{
		{Name: "Scraping", TargetPercent: 20, DurationMs: 5000},
		{Name: "Analyzing titles", TargetPercent: 40, DurationMs: 3000},
		{Name: "Generating templates", TargetPercent: 85, DurationMs: 10000},
		{Name: "Complete", TargetPercent: 100, DurationMs: 300},
	}
}
