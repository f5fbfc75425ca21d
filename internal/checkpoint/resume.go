package checkpoint

import (
	"fmt"

	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/pkg/models"
)

// ValidateCheckpoint checks that a loaded snapshot is usable
func ValidateCheckpoint(cp *models.Checkpoint) error {
	if cp.SessionID == "" {
		return fmt.Errorf("checkpoint has no session id")
	}

	switch cp.CurrentPhase {
	case models.PhaseOpen, models.PhaseSettled, models.PhaseFailed:
	default:
		return fmt.Errorf("checkpoint has unknown phase %q", cp.CurrentPhase)
	}

	if cp.CurrentPhase == models.PhaseSettled && cp.Templates == nil {
		return fmt.Errorf("settled checkpoint has no templates")
	}

	return nil
}

// ConfigMatches reports whether cp was written against the same service
// and model as cfg
func ConfigMatches(cp *models.Checkpoint, cfg *config.Config) bool {
	return cp.ConfigHash == computeConfigHash(cfg)
}

// HasResults reports whether the snapshot holds exportable templates
func HasResults(cp *models.Checkpoint) bool {
	return len(cp.Templates) > 0
}
