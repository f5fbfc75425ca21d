package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lamim/salonforge/internal/session"
	"github.com/lamim/salonforge/pkg/models"
)

// ResultRecord is one line of results.jsonl
type ResultRecord struct {
	RequestID    string        `json:"request_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Keyword      string        `json:"keyword"`
	Gender       models.Gender `json:"gender"`
	Season       string        `json:"season,omitempty"`
	Model        string        `json:"model"`
	Outcome      string        `json:"outcome"`
	Code         string        `json:"code,omitempty"`
	Message      string        `json:"message,omitempty"`
	Templates    int           `json:"templates"`
	Featured     bool          `json:"featured,omitempty"`
	FeaturedName string        `json:"featured_name,omitempty"`
	DurationMs   int64         `json:"duration_ms"`
}

// NewResultRecord flattens a settled outcome
func NewResultRecord(o session.Outcome) ResultRecord {
	return ResultRecord{
		RequestID:    o.RequestID,
		Timestamp:    o.StartedAt,
		Keyword:      o.Request.Keyword,
		Gender:       o.Request.Gender,
		Season:       o.Request.Season,
		Model:        o.Request.Model,
		Outcome:      string(o.Kind),
		Code:         string(o.Code),
		Message:      o.Message,
		Templates:    len(o.Templates),
		Featured:     o.Featured,
		FeaturedName: o.FeaturedName,
		DurationMs:   o.Duration.Milliseconds(),
	}
}

// ResultLog appends one JSON line per settled request. Safe for concurrent use.
type ResultLog struct {
	file   *os.File
	mu     sync.Mutex
	logger *slog.Logger
}

// NewResultLog opens the session's results.jsonl for appending
func NewResultLog(sessionMgr *SessionManager, logger *slog.Logger) (*ResultLog, error) {
	path := sessionMgr.GetResultsPath()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}

	logger.Debug("Opened results file", "path", path)

	return &ResultLog{
		file:   file,
		logger: logger,
	}, nil
}

// SaveResult implements session.ResultStore
func (rl *ResultLog) SaveResult(_ context.Context, o session.Outcome) error {
	return rl.WriteRecord(NewResultRecord(o))
}

// WriteRecord writes a single record
func (rl *ResultLog) WriteRecord(record ResultRecord) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := rl.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return nil
}

// Close syncs and closes the file
func (rl *ResultLog) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if err := rl.file.Sync(); err != nil {
		rl.logger.Warn("Failed to sync results file", "error", err)
	}

	if err := rl.file.Close(); err != nil {
		return fmt.Errorf("failed to close results file: %w", err)
	}
	return nil
}

// ReadResults loads every record of a results.jsonl file
func ReadResults(path string) ([]ResultRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var records []ResultRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var r ResultRecord
		if err := dec.Decode(&r); err != nil {
			return records, fmt.Errorf("failed to decode result %d: %w", len(records)+1, err)
		}
		records = append(records, r)
	}
	return records, nil
}
