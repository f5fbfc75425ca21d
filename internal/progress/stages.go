package progress

import (
	"fmt"
	"time"

	"github.com/lamim/salonforge/internal/config"
)

// Stage is one named step of the cosmetic progress schedule
type Stage struct {
	Name          string
	TargetPercent int
	Duration      time.Duration
}

// DefaultTick is the interpolation sampling interval
const DefaultTick = 100 * time.Millisecond

// StagesFromConfig converts the configured schedule
func StagesFromConfig(cfg config.ProgressConfig) []Stage {
	stages := make([]Stage, 0, len(cfg.Stages))
	for _, st := range cfg.Stages {
		stages = append(stages, Stage{
			Name:          st.Name,
			TargetPercent: st.TargetPercent,
			Duration:      time.Duration(st.DurationMs) * time.Millisecond,
		})
	}
	return stages
}

// DefaultStages returns the stock schedule
func DefaultStages() []Stage {
	return StagesFromConfig(config.ProgressConfig{Stages: config.DefaultStages()})
}

// ValidateStages checks that targets never decrease, stay within 0..100,
// end at 100, and that every stage has a positive duration.
func ValidateStages(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	prev := 0
	for i, st := range stages {
		if st.Duration <= 0 {
			return fmt.Errorf("stage %d (%s): duration must be positive", i, st.Name)
		}
		if st.TargetPercent < prev || st.TargetPercent > 100 {
			return fmt.Errorf("stage %d (%s): target %d must be between %d and 100", i, st.Name, st.TargetPercent, prev)
		}
		prev = st.TargetPercent
	}
	if prev != 100 {
		return fmt.Errorf("last stage must target 100, got %d", prev)
	}
	return nil
}
