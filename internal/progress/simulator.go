// Package progress drives a fabricated progress indicator across a fixed
// sequence of named stages while a single request is outstanding.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Phase is the simulator lifecycle state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// State is the observable simulator state
type State struct {
	Phase      Phase
	StageIndex int
	Percent    int
}

// Snapshot is emitted on every visible update
type Snapshot struct {
	Percent    int
	StageName  string
	StageIndex int
}

// Sink receives snapshots. It is called with the simulator lock held and
// must not call back into the Simulator.
type Sink interface {
	OnProgress(Snapshot)
}

// JumpRecorder observes how far Complete had to jump
type JumpRecorder interface {
	RecordProgressJump(delta int)
}

// Simulator owns ProgressState. At most one advancement goroutine is live
// at a time, and a cancelled run never emits again.
type Simulator struct {
	stages []Stage
	tick   time.Duration
	sink   Sink
	logger *slog.Logger
	jumps  JumpRecorder

	mu     sync.Mutex
	state  State
	runID  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a simulator. tick <= 0 selects DefaultTick.
func New(stages []Stage, tick time.Duration, sink Sink, logger *slog.Logger) (*Simulator, error) {
	if err := ValidateStages(stages); err != nil {
		return nil, fmt.Errorf("invalid progress stages: %w", err)
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Simulator{
		stages: append([]Stage(nil), stages...),
		tick:   tick,
		sink:   sink,
		logger: logger,
	}, nil
}

// SetJumpRecorder attaches a recorder for forced completions
func (s *Simulator) SetJumpRecorder(r JumpRecorder) {
	s.mu.Lock()
	s.jumps = r
	s.mu.Unlock()
}

// Stages returns a copy of the schedule
func (s *Simulator) Stages() []Stage {
	return append([]Stage(nil), s.stages...)
}

// State returns the current state
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start cancels any active run, resets to stage 0 at 0% and begins advancing
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.runID++
	id := s.runID

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.state = State{Phase: PhaseRunning, StageIndex: 0, Percent: 0}
	s.emitLocked()

	s.logger.Debug("Progress started", "run", id, "stages", len(s.stages))
	go s.run(ctx, id, done)
}

// Complete cancels advancement and forces 100% at the terminal stage.
// It is safe to call in any phase.
func (s *Simulator) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	s.cancelLocked()
	s.runID++

	last := len(s.stages) - 1
	s.state = State{Phase: PhaseCompleted, StageIndex: last, Percent: 100}
	s.emitLocked()

	if prev.Phase == PhaseRunning {
		if s.jumps != nil {
			s.jumps.RecordProgressJump(100 - prev.Percent)
		}
		if prev.StageIndex < last {
			s.logger.Debug("Progress completed early", "from_stage", prev.StageIndex, "from_percent", prev.Percent)
		}
	}
}

// Stop cancels advancement without forcing a value and returns to Idle
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.runID++
	s.state.Phase = PhaseIdle
}

// Wait blocks until the current advancement goroutine has exited.
// Used by tests and shutdown.
func (s *Simulator) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Simulator) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Simulator) emitLocked() {
	if s.sink == nil {
		return
	}
	st := s.stages[s.state.StageIndex]
	s.sink.OnProgress(Snapshot{
		Percent:    s.state.Percent,
		StageName:  st.Name,
		StageIndex: s.state.StageIndex,
	})
}

// advance applies one step of run id. It returns false once the run is stale.
func (s *Simulator) advance(id uint64, stageIndex, percent int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runID != id || s.state.Phase != PhaseRunning {
		return false
	}
	if percent < s.state.Percent {
		percent = s.state.Percent
	}
	if stageIndex == s.state.StageIndex && percent == s.state.Percent {
		return true
	}
	s.state.StageIndex = stageIndex
	s.state.Percent = percent
	s.emitLocked()
	return true
}

func (s *Simulator) run(ctx context.Context, id uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	stageIndex := 0
	from := 0
	elapsed := 0 // ticks since the active stage started
	last := len(s.stages) - 1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := s.stages[stageIndex]
		ticks := stageTicks(st.Duration, s.tick)
		elapsed++

		if elapsed < ticks {
			// Integer division floors the interpolated percent
			percent := from + (st.TargetPercent-from)*elapsed/ticks
			if !s.advance(id, stageIndex, percent) {
				return
			}
			continue
		}

		if stageIndex == last {
			// Terminal stage holds at its target until Complete or Stop
			s.advance(id, stageIndex, st.TargetPercent)
			return
		}

		from = st.TargetPercent
		stageIndex++
		elapsed = 0
		if !s.advance(id, stageIndex, from) {
			return
		}
	}
}

// stageTicks rounds up so a stage never ends before its configured duration
func stageTicks(d, tick time.Duration) int {
	ticks := int((d + tick - 1) / tick)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}
