package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lamim/salonforge/internal/checkpoint"
	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/internal/pagination"
	"github.com/lamim/salonforge/internal/presenter"
	"github.com/lamim/salonforge/internal/writer"
	"github.com/lamim/salonforge/pkg/models"
)

// listSessions lists all session directories, newest first
func listSessions(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	names, err := writer.ListSessions(cfg.Output.Dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "No session directories found.")
		return nil
	}

	fmt.Fprintf(out, "%-32s %-9s %-6s %-10s %s\n", "SESSION", "PHASE", "RUNS", "TEMPLATES", "LAST KEYWORD")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, name := range names {
		phase, runs, templates, keyword := "-", 0, 0, "-"
		if cp, err := checkpoint.Load(filepath.Join(cfg.Output.Dir, name), slog.Default()); err == nil {
			phase = string(cp.CurrentPhase)
			runs = cp.Generations
			templates = len(cp.Templates)
			if cp.Request.Keyword != "" {
				keyword = fmt.Sprintf("%s (%s)", cp.Request.Keyword, cp.Request.Gender)
			}
		}
		fmt.Fprintf(out, "%-32s %-9s %-6d %-10d %s\n", name, phase, runs, templates, keyword)
	}
	return nil
}

// loadSessionCheckpoint validates the directory name and loads its checkpoint
func loadSessionCheckpoint(cfg *config.Config, name string) (*models.Checkpoint, string, error) {
	// SECURITY: Validate session path to prevent path traversal (CWE-22)
	if err := writer.ValidateSessionPath(cfg.Output.Dir, name); err != nil {
		return nil, "", fmt.Errorf("invalid session directory: %w", err)
	}
	fullPath := filepath.Join(cfg.Output.Dir, name)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("session directory not found: %s", name)
	}

	cp, err := checkpoint.Load(fullPath, slog.Default())
	if err != nil {
		return nil, "", fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.ValidateCheckpoint(cp); err != nil {
		return nil, "", fmt.Errorf("checkpoint validation failed: %w", err)
	}
	return cp, fullPath, nil
}

// showSession prints the session summary and one page of its templates
func showSession(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cp, _, err := loadSessionCheckpoint(cfg, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:        %s\n", args[0])
	fmt.Fprintf(out, "Session ID:     %s\n", cp.SessionID)
	fmt.Fprintf(out, "Last Saved At:  %s\n", cp.LastSavedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Phase:          %s (%d requests)\n", cp.CurrentPhase, cp.Generations)
	if cp.Request.Keyword != "" {
		fmt.Fprintf(out, "Last Request:   %q %s %s\n", cp.Request.Keyword, cp.Request.Gender, cp.Request.Season)
	}
	if cp.CurrentPhase == models.PhaseFailed {
		fmt.Fprintf(out, "Last Outcome:   %s: %s\n", cp.Outcome, cp.Message)
	}
	if !checkpoint.ConfigMatches(cp, cfg) {
		fmt.Fprintln(out, "Note:           the server or model configuration changed since this session")
	}
	fmt.Fprintln(out)

	if !checkpoint.HasResults(cp) {
		fmt.Fprintln(out, "This session has no templates.")
		return nil
	}

	term := presenter.NewTerminal(out)
	ctrl := pagination.NewController(cfg.Pagination.MaxVisiblePages, nil, slog.Default())
	ctrl.Load(cp.Templates)
	if !ctrl.GoTo(pageFlag) {
		return fmt.Errorf("page %d is out of range (1-%d)", pageFlag, ctrl.TotalPages())
	}
	term.OnPageChanged(ctrl.View())
	return nil
}

// exportSession writes the session's last templates as csv or txt
func exportSession(cmd *cobra.Command, args []string) error {
	format, err := writer.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cp, fullPath, err := loadSessionCheckpoint(cfg, args[0])
	if err != nil {
		return err
	}
	if !checkpoint.HasResults(cp) {
		return fmt.Errorf("session %s has no templates to export", args[0])
	}

	path := exportPath
	if path == "" {
		path = filepath.Join(fullPath, "hair_templates."+string(format))
	}
	if err := writer.ExportFile(path, format, cp.Templates); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d templates to %s\n", len(cp.Templates), path)
	return nil
}
