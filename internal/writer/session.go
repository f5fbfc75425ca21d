package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SessionManager manages session directories and files
type SessionManager struct {
	outputDir  string
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a new timestamped session directory under
// outputDir, or reopens an existing one when openSession is set
func NewSessionManager(logger *slog.Logger, outputDir, openSession string) (*SessionManager, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var sessionDir string
	if openSession != "" {
		if err := ValidateSessionPath(outputDir, openSession); err != nil {
			return nil, err
		}
		sessionDir = filepath.Join(outputDir, openSession)
		if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("session directory not found: %s", sessionDir)
		}
		logger.Debug("Opened existing session", "path", sessionDir)
	} else {
		timestamp := time.Now().Format("2006-01-02T15-04-05")
		sessionDir = filepath.Join(outputDir, "session_"+timestamp)

		if err := os.MkdirAll(sessionDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}

		logger.Info("Created new session directory", "path", sessionDir)
	}

	return &SessionManager{
		outputDir:  outputDir,
		sessionDir: sessionDir,
		logger:     logger,
	}, nil
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetSessionName returns the directory name, e.g. session_2026-10-18T09-15-00
func (sm *SessionManager) GetSessionName() string {
	return filepath.Base(sm.sessionDir)
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, "session.log")
}

// GetCheckpointPath returns the full path to the session snapshot
func (sm *SessionManager) GetCheckpointPath() string {
	return filepath.Join(sm.sessionDir, "checkpoint.json")
}

// GetResultsPath returns the full path to the per-request history
func (sm *SessionManager) GetResultsPath() string {
	return filepath.Join(sm.sessionDir, "results.jsonl")
}

// GetExportPath returns where an export in format is written
func (sm *SessionManager) GetExportPath(format Format) string {
	return filepath.Join(sm.sessionDir, "hair_templates."+string(format))
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, "config.toml.bak")
}

// BackupConfig copies the config file to the session directory
func (sm *SessionManager) BackupConfig(configPath string) error {
	source, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	backupPath := sm.GetConfigBackupPath()
	if err := os.WriteFile(backupPath, source, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}

	sm.logger.Info("Backed up config file", "path", backupPath)
	return nil
}

// ListSessions returns the session directory names under outputDir, newest
// first. A missing output directory yields an empty list.
func ListSessions(outputDir string) ([]string, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && IsSessionName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	// The timestamp format sorts lexically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
