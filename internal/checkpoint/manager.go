package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/internal/session"
	"github.com/lamim/salonforge/pkg/models"
)

const CheckpointFilename = "checkpoint.json"

// Manager keeps the session snapshot on disk. It implements
// session.ResultStore so every settled request updates it.
type Manager struct {
	sessionDir string
	checkpoint *models.Checkpoint
	mu         sync.RWMutex
	writeMu    sync.Mutex // serialises disk writes
	logger     *slog.Logger
	enabled    bool
}

// NewManager creates a manager for a fresh session
func NewManager(sessionDir string, cfg *config.Config, logger *slog.Logger) *Manager {
	now := time.Now()
	return &Manager{
		sessionDir: sessionDir,
		checkpoint: &models.Checkpoint{
			SessionID:    uuid.New().String(),
			CreatedAt:    now,
			CurrentPhase: models.PhaseOpen,
			ConfigHash:   computeConfigHash(cfg),
		},
		logger:  logger,
		enabled: !cfg.Output.SkipSessionSave,
	}
}

// NewManagerFromCheckpoint continues an existing snapshot
func NewManagerFromCheckpoint(sessionDir string, cp *models.Checkpoint, cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		sessionDir: sessionDir,
		checkpoint: cp,
		logger:     logger,
		enabled:    !cfg.Output.SkipSessionSave,
	}
}

// SaveResult records a settled outcome and writes the snapshot. A failed
// request keeps the templates of the last successful one.
func (m *Manager) SaveResult(_ context.Context, o session.Outcome) error {
	if !o.Settled() {
		return nil
	}

	m.mu.Lock()
	cp := m.checkpoint
	cp.Generations++
	cp.Request = o.Request
	cp.RequestID = o.RequestID
	cp.Outcome = string(o.Kind)
	cp.Code = string(o.Code)
	cp.Message = o.Message
	cp.Duration = o.Duration.Round(time.Millisecond).String()
	if o.Succeeded() {
		cp.CurrentPhase = models.PhaseSettled
		cp.Templates = cloneTemplates(o.Templates)
		cp.Featured = o.Featured
		cp.FeaturedName = o.FeaturedName
	} else {
		cp.CurrentPhase = models.PhaseFailed
	}
	m.mu.Unlock()

	return m.SaveSync()
}

// SaveSync performs a synchronous checkpoint write
func (m *Manager) SaveSync() error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	cpCopy := m.copyCheckpoint()
	m.mu.Unlock()

	return m.writeCheckpointToDisk(cpCopy)
}

func (m *Manager) writeCheckpointToDisk(cp *models.Checkpoint) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Atomic write: write to temp file, then rename
	checkpointPath := filepath.Join(m.sessionDir, CheckpointFilename)
	tempPath := checkpointPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}

	if err := os.Rename(tempPath, checkpointPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint saved",
		"path", checkpointPath,
		"phase", cp.CurrentPhase,
		"templates", len(cp.Templates))
	return nil
}

func (m *Manager) copyCheckpoint() *models.Checkpoint {
	cp := *m.checkpoint
	cp.Templates = cloneTemplates(m.checkpoint.Templates)
	return &cp
}

// cloneTemplates keeps an empty batch distinct from no batch
func cloneTemplates(in []models.Template) []models.Template {
	if in == nil {
		return nil
	}
	out := make([]models.Template, len(in))
	copy(out, in)
	return out
}

// GetCheckpoint returns a copy of the current checkpoint
func (m *Manager) GetCheckpoint() *models.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyCheckpoint()
}

// Load reads checkpoint from disk
func Load(sessionDir string, logger *slog.Logger) (*models.Checkpoint, error) {
	checkpointPath := filepath.Join(sessionDir, CheckpointFilename)

	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	logger.Debug("Checkpoint loaded",
		"session_id", cp.SessionID,
		"phase", cp.CurrentPhase,
		"templates", len(cp.Templates))

	return &cp, nil
}

func computeConfigHash(cfg *config.Config) string {
	// Fields that change what the service returns
	data := fmt.Sprintf("%s:%s:%s",
		cfg.Server.BaseURL,
		cfg.Server.GeneratePath,
		cfg.Generation.Model)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8]) // First 8 bytes
}
