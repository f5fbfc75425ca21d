// Package session coordinates one submit action with one Transport call,
// the progress simulator and pagination.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/internal/notify"
	"github.com/lamim/salonforge/pkg/models"
)

// Input is what the user submits
type Input struct {
	Keyword string
	Gender  models.Gender
	Season  string
}

// Transport performs the generate call; *api.Client implements it
type Transport interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerateResponse, error)
}

// Progress is the simulator lifecycle the session drives
type Progress interface {
	Start()
	Complete()
}

// Pager receives successful results
type Pager interface {
	Load(items []models.Template)
}

// Presenter receives session events
type Presenter interface {
	OnValidationError(message string)
	OnGenerationSettled(outcome Outcome)
	OnSubmitEnabled(enabled bool)
}

// Selection exposes the featured keyword selection
type Selection interface {
	Selected() *models.FeaturedKeyword
	ClearSelection()
}

// Notifier posts transient notices
type Notifier interface {
	PostNotice(n notify.Notice) notify.Notice
}

// Focuser returns input focus to the keyword field
type Focuser interface {
	Focus()
}

// ResultStore persists settled outcomes
type ResultStore interface {
	SaveResult(ctx context.Context, outcome Outcome) error
}

// Stores fans one outcome out to several stores. Every store is tried.
type Stores []ResultStore

// SaveResult implements ResultStore
func (st Stores) SaveResult(ctx context.Context, outcome Outcome) error {
	var errs []error
	for _, s := range st {
		if err := s.SaveResult(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder observes settled outcomes
type Recorder interface {
	RecordGeneration(kind string, duration time.Duration)
}

// Deps are the collaborators of a Session. Transport, Progress, Pager and
// Presenter are required.
type Deps struct {
	Transport Transport
	Progress  Progress
	Pager     Pager
	Presenter Presenter
	Selection Selection
	Notices   Notifier
	Keyword   Focuser
	Store     ResultStore
	Recorder  Recorder
}

// Options holds per-call settings
type Options struct {
	Model               string
	Timeout             time.Duration
	FallbackNoticeDelay time.Duration
	ErrorNoticeTTL      time.Duration
}

// OptionsFromConfig converts the [generation] section
func OptionsFromConfig(cfg config.GenerationConfig) Options {
	return Options{
		Model:               cfg.Model,
		Timeout:             cfg.GenerateTimeout(),
		FallbackNoticeDelay: cfg.FallbackNoticeDelay(),
		ErrorNoticeTTL:      cfg.ErrorNoticeTTL(),
	}
}

// Notice lifetimes
const (
	successNoticeTTL         = 3 * time.Second
	featuredSuccessNoticeTTL = 4 * time.Second
	featuredFallbackTTL      = 15 * time.Second
)

const featuredFallbackMessage = "Featured keywords are unavailable right now. You can still generate with any keyword."

// Session is the GenerationSession coordinator
type Session struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	busy atomic.Bool

	mu     sync.Mutex
	timers []*time.Timer
	closed bool
	last   *Outcome
}

// New creates a session
func New(deps Deps, opts Options, logger *slog.Logger) (*Session, error) {
	if deps.Transport == nil || deps.Progress == nil || deps.Pager == nil || deps.Presenter == nil {
		return nil, errors.New("generation session requires a transport, progress, pager and presenter")
	}
	def := OptionsFromConfig(config.Default().Generation)
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.FallbackNoticeDelay < 0 {
		opts.FallbackNoticeDelay = 0
	}
	if opts.ErrorNoticeTTL <= 0 {
		opts.ErrorNoticeTTL = def.ErrorNoticeTTL
	}
	return &Session{deps: deps, opts: opts, logger: logger}, nil
}

// Busy reports whether a request is in flight
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Last returns the most recent settled outcome, or nil
func (s *Session) Last() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	o := *s.last
	return &o
}

// Submit validates in, sends one generate call and settles it. An empty
// keyword is rejected before any network call. A submit while another is in
// flight returns OutcomeBusy without side effects.
func (s *Session) Submit(ctx context.Context, in Input) Outcome {
	keyword := strings.TrimSpace(in.Keyword)
	if msg := validate(keyword, in); msg != "" {
		s.logger.Debug("Submit rejected", "reason", msg)
		s.deps.Presenter.OnValidationError(msg)
		if s.deps.Keyword != nil {
			s.deps.Keyword.Focus()
		}
		return Outcome{Kind: OutcomeValidationError, Message: msg}
	}

	if !s.busy.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeBusy, Message: "A generation is already in progress."}
	}
	defer s.busy.Store(false)

	req := models.GenerationRequest{
		Keyword: keyword,
		Gender:  in.Gender,
		Season:  strings.TrimSpace(in.Season),
		Model:   s.opts.Model,
	}
	var selected *models.FeaturedKeyword
	if s.deps.Selection != nil {
		selected = s.deps.Selection.Selected()
	}

	outcome := s.call(ctx, req)
	s.apply(ctx, &outcome, selected)

	s.mu.Lock()
	last := outcome
	s.last = &last
	s.mu.Unlock()

	s.deps.Presenter.OnGenerationSettled(outcome)
	return outcome
}

func validate(keyword string, in Input) string {
	if keyword == "" {
		return "Please enter a keyword."
	}
	if err := config.ValidateKeyword(keyword); err != nil {
		return fmt.Sprintf("Keyword %s.", err)
	}
	if !in.Gender.Valid() {
		return "Please choose ladies or mens."
	}
	if err := config.ValidateSeason(strings.TrimSpace(in.Season)); err != nil {
		return fmt.Sprintf("Season %s.", err)
	}
	return ""
}

// call issues the request. The deferred finish runs exactly once on every
// path, including a panicking transport.
func (s *Session) call(ctx context.Context, req models.GenerationRequest) Outcome {
	s.deps.Presenter.OnSubmitEnabled(false)
	s.deps.Progress.Start()
	defer s.finish()

	id := uuid.NewString()
	start := time.Now()
	s.logger.Info("Generating templates",
		"request_id", id,
		"keyword", req.Keyword,
		"gender", req.Gender,
		"season", req.Season)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	resp, err := s.deps.Transport.Generate(callCtx, req)

	var outcome Outcome
	if err != nil {
		outcome = transportOutcome(err)
	} else {
		outcome = responseOutcome(resp)
	}
	outcome.Request = req
	outcome.RequestID = id
	outcome.StartedAt = start
	outcome.Duration = time.Since(start)
	return outcome
}

func (s *Session) finish() {
	s.deps.Progress.Complete()
	s.deps.Presenter.OnSubmitEnabled(true)
}

func (s *Session) apply(ctx context.Context, o *Outcome, selected *models.FeaturedKeyword) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordGeneration(string(o.Kind), o.Duration)
	}

	switch o.Kind {
	case OutcomeSuccess:
		s.logger.Info("Generation succeeded",
			"request_id", o.RequestID,
			"templates", len(o.Templates),
			"featured", o.Featured,
			"duration", o.Duration)
		s.deps.Pager.Load(o.Templates)
		s.successNotice(o)

	case OutcomeLogicalFailure:
		s.logger.Warn("Generation failed",
			"request_id", o.RequestID,
			"code", o.Code,
			"message", o.Message)
		s.post(notify.CategoryGeneric, notify.LevelError, o.Message, s.opts.ErrorNoticeTTL)
		if o.Code == CodeFeaturedKeywordsError && selected != nil {
			if s.deps.Selection != nil {
				s.deps.Selection.ClearSelection()
			}
			s.post(notify.CategoryFallback, notify.LevelWarning, featuredFallbackMessage, featuredFallbackTTL)
		}

	default:
		s.logger.Warn("Generation request failed",
			"request_id", o.RequestID,
			"kind", o.Kind,
			"status", o.StatusCode,
			"duration", o.Duration,
			"error", o.Err)
		s.post(notify.CategoryGeneric, notify.LevelError, o.Message, s.opts.ErrorNoticeTTL)
		if selected != nil {
			s.scheduleFallbackNotice()
		}
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveResult(ctx, *o); err != nil {
			s.logger.Warn("Failed to save session result", "request_id", o.RequestID, "error", err)
		}
	}
}

func (s *Session) successNotice(o *Outcome) {
	n := len(o.Templates)
	switch {
	case o.Featured && o.FeaturedName != "":
		s.post(notify.CategoryGeneric, notify.LevelSuccess,
			fmt.Sprintf("Generated %d templates for featured keyword %q.", n, o.FeaturedName), featuredSuccessNoticeTTL)
	case o.Featured:
		s.post(notify.CategoryGeneric, notify.LevelSuccess,
			fmt.Sprintf("Generated %d featured templates.", n), featuredSuccessNoticeTTL)
	default:
		s.post(notify.CategoryGeneric, notify.LevelSuccess,
			fmt.Sprintf("Generated %d templates.", n), successNoticeTTL)
	}
}

func (s *Session) scheduleFallbackNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(s.opts.FallbackNoticeDelay, func() {
		s.mu.Lock()
		closed := s.closed
		s.removeTimerLocked(t)
		s.mu.Unlock()
		if !closed {
			s.post(notify.CategoryFallback, notify.LevelWarning, featuredFallbackMessage, featuredFallbackTTL)
		}
	})
	s.timers = append(s.timers, t)
}

func (s *Session) removeTimerLocked(t *time.Timer) {
	for i, x := range s.timers {
		if x == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

// PendingNotices reports how many delayed notices are scheduled
func (s *Session) PendingNotices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels delayed notices
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

func (s *Session) post(cat notify.Category, level notify.Level, msg string, ttl time.Duration) {
	if s.deps.Notices == nil {
		return
	}
	s.deps.Notices.PostNotice(notify.Notice{Category: cat, Level: level, Message: msg, TTL: ttl})
}
