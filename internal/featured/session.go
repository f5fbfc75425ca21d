// Package featured manages the gender-scoped list of server-suggested keywords
// and keeps the user's selection consistent with the keyword field and the
// gender selector, both of which the user may also edit directly.
package featured

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/internal/notify"
	"github.com/lamim/salonforge/internal/port"
	"github.com/lamim/salonforge/pkg/models"
)

// Status is the load state of the keyword list
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "error"
	default:
		return "idle"
	}
}

// State is what the presenter renders for the keyword list
type State struct {
	Status    Status
	Gender    models.Gender
	Keywords  []models.FeaturedKeyword
	Fallback  bool
	FromCache bool
	Err       *LoadError
}

// Fetcher retrieves featured keywords; *api.Client implements it
type Fetcher interface {
	FetchFeaturedKeywords(ctx context.Context, gender models.Gender) (*models.FeaturedKeywordsResponse, error)
}

// Sink receives list and selection updates
type Sink interface {
	OnFeaturedKeywordsState(State)
	OnSelectionChanged(selected *models.FeaturedKeyword)
}

// Confirmer asks the user before a deliberate gender choice is overridden
type Confirmer interface {
	ConfirmGenderChange(from, to models.Gender) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(from, to models.Gender) bool

// ConfirmGenderChange calls f(from, to)
func (f ConfirmFunc) ConfirmGenderChange(from, to models.Gender) bool {
	return f(from, to)
}

// Notifier posts transient notices
type Notifier interface {
	PostNotice(n notify.Notice) notify.Notice
}

// Recorder observes load results
type Recorder interface {
	RecordFeaturedLoad(result string)
}

// Notice lifetimes
const (
	unavailableNoticeTTL    = 10 * time.Second
	degradedNoticeTTL       = 5 * time.Second
	retrySuccessNoticeTTL   = 3 * time.Second
	genderFeedbackNoticeTTL = 1500 * time.Millisecond
	manualGenderNoticeTTL   = 2 * time.Second
	selectionNoticeTTL      = 2 * time.Second
)

// Options holds the timing heuristics
type Options struct {
	Timeout          time.Duration
	RetryDelay       time.Duration
	AutoChangeWindow time.Duration
	ConfirmWindow    time.Duration
	CacheTTL         time.Duration
	Now              func() time.Time
}

// OptionsFromConfig converts the [featured] section
func OptionsFromConfig(cfg config.FeaturedConfig) Options {
	return Options{
		Timeout:          cfg.LoadTimeout(),
		RetryDelay:       cfg.RetryDelay(),
		AutoChangeWindow: cfg.AutoChangeWindow(),
		ConfirmWindow:    cfg.ConfirmWindow(),
		CacheTTL:         cfg.CacheTTL(),
	}
}

// Deps are the collaborators of a Session. Fetcher, Keyword and Gender are required.
type Deps struct {
	Fetcher   Fetcher
	Keyword   *port.Input[string]
	Gender    *port.Input[models.Gender]
	Sink      Sink
	Notices   Notifier
	Confirmer Confirmer
	Cache     Cache
	Recorder  Recorder
}

// Session owns SelectionState and the keyword list
type Session struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	mu               sync.Mutex
	baseCtx          context.Context
	state            State
	lastGender       models.Gender
	loadSeq          uint64
	selected         *models.FeaturedKeyword
	selectedAt       time.Time
	lastAutoGenderAt time.Time
	unsubscribe      []func()
}

// NewSession creates a session; call Init to start observing the ports
func NewSession(deps Deps, opts Options, logger *slog.Logger) (*Session, error) {
	if deps.Fetcher == nil || deps.Keyword == nil || deps.Gender == nil {
		return nil, errors.New("featured session requires a fetcher, a keyword input and a gender input")
	}
	def := OptionsFromConfig(config.Default().Featured)
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.AutoChangeWindow <= 0 {
		opts.AutoChangeWindow = def.AutoChangeWindow
	}
	if opts.ConfirmWindow <= 0 {
		opts.ConfirmWindow = def.ConfirmWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		deps:    deps,
		opts:    opts,
		logger:  logger,
		baseCtx: context.Background(),
	}, nil
}

// Init subscribes to the ports and loads keywords for the current gender.
// A failure is rendered and announced but never blocks generation; the
// returned error is informational.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.unsubscribe = append(s.unsubscribe,
		s.deps.Gender.Subscribe(s.HandleGenderChange),
		s.deps.Keyword.Subscribe(s.HandleKeywordEdit),
	)
	s.mu.Unlock()

	gender := s.deps.Gender.Value()
	if !gender.Valid() {
		gender = models.GenderLadies
	}

	err := s.Load(ctx, gender)
	if err == nil {
		return nil
	}

	var action *notify.Action
	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Retryable() {
		action = &notify.Action{Label: "Retry", Command: "retry"}
	}
	s.post(notify.CategoryFallback, notify.LevelWarning,
		"Featured keywords are unavailable right now. Normal generation remains available.",
		unavailableNoticeTTL, action)
	return err
}

// Close stops observing the ports
func (s *Session) Close() {
	s.mu.Lock()
	unsubs := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
}

// Load fetches the list for gender, consulting the cache first
func (s *Session) Load(ctx context.Context, gender models.Gender) error {
	return s.load(ctx, gender, true)
}

// Retry waits the retry delay and reloads the last requested gender, bypassing the cache
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	gender := s.lastGender
	s.mu.Unlock()
	if gender == "" {
		gender = s.deps.Gender.Value()
	}

	if s.opts.RetryDelay > 0 {
		timer := time.NewTimer(s.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := s.load(ctx, gender, false); err != nil {
		return err
	}
	s.post(notify.CategoryFeatured, notify.LevelSuccess, "Featured keywords loaded.", retrySuccessNoticeTTL, nil)
	return nil
}

type fetchResult struct {
	keywords  []models.FeaturedKeyword
	fallback  bool
	message   string
	fromCache bool
}

func (s *Session) load(ctx context.Context, gender models.Gender, useCache bool) error {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.lastGender = gender
	s.state = State{Status: StatusLoading, Gender: gender}
	loading := s.state
	s.mu.Unlock()
	s.emitState(loading)

	start := time.Now()
	result, loadErr := s.fetch(ctx, gender, useCache)

	s.mu.Lock()
	if seq != s.loadSeq {
		// A newer load for another gender superseded this one
		s.mu.Unlock()
		s.logger.Debug("Discarding stale featured keyword load", "gender", gender)
		if loadErr != nil {
			return loadErr
		}
		return nil
	}
	if loadErr != nil {
		s.state = State{Status: StatusFailed, Gender: gender, Err: loadErr}
	} else {
		s.state = State{
			Status:    StatusLoaded,
			Gender:    gender,
			Keywords:  result.keywords,
			Fallback:  result.fallback,
			FromCache: result.fromCache,
		}
	}
	st := s.stateLocked()
	s.mu.Unlock()
	s.emitState(st)

	if loadErr != nil {
		s.record(string(loadErr.Kind))
		s.logger.Warn("Featured keywords failed to load",
			"gender", gender,
			"kind", loadErr.Kind,
			"retryable", loadErr.Retryable(),
			"error", loadErr)
		return loadErr
	}

	switch {
	case result.fromCache:
		s.record("cache_hit")
	case result.fallback:
		s.record("fallback")
	default:
		s.record("success")
	}
	s.logger.Debug("Featured keywords loaded",
		"gender", gender,
		"count", len(result.keywords),
		"fallback", result.fallback,
		"cached", result.fromCache,
		"duration", time.Since(start))

	if result.fallback {
		msg := result.message
		if msg == "" {
			msg = "Featured keywords are running in a reduced mode."
		}
		s.post(notify.CategoryFeatured, notify.LevelWarning, msg, degradedNoticeTTL, nil)
	}
	return nil
}

func (s *Session) fetch(ctx context.Context, gender models.Gender, useCache bool) (fetchResult, *LoadError) {
	cacheEnabled := s.deps.Cache != nil && s.opts.CacheTTL > 0
	if cacheEnabled && useCache {
		cached, err := s.deps.Cache.Get(ctx, gender)
		if err != nil {
			s.logger.Warn("Featured keyword cache read failed", "gender", gender, "error", err)
		} else if cached != nil {
			return fetchResult{keywords: cached, fromCache: true}, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	resp, err := s.deps.Fetcher.FetchFeaturedKeywords(callCtx, gender)
	if err != nil {
		return fetchResult{}, classifyTransportError(err)
	}
	if resp == nil {
		return fetchResult{}, &LoadError{Kind: ErrInvalidResponseShape, Message: "empty response"}
	}
	if !resp.Succeeded() {
		return fetchResult{}, &LoadError{
			Kind:    ErrLogicalFailure,
			Message: resp.FailureMessage("featured keywords are unavailable"),
		}
	}
	if resp.HealthStatus != nil && !resp.HealthStatus.IsAvailable {
		s.logger.Warn("Featured keyword service reports degraded health",
			"gender", gender,
			"last_error", resp.HealthStatus.LastError)
	}

	keywords := sanitize(resp.Keywords, gender)
	if cacheEnabled && !resp.Fallback {
		if err := s.deps.Cache.Set(ctx, gender, keywords, s.opts.CacheTTL); err != nil {
			s.logger.Warn("Featured keyword cache write failed", "gender", gender, "error", err)
		}
	}
	return fetchResult{keywords: keywords, fallback: resp.Fallback, message: resp.Message}, nil
}

// sanitize drops entries without a keyword and fills a missing gender
func sanitize(in []models.FeaturedKeyword, gender models.Gender) []models.FeaturedKeyword {
	out := make([]models.FeaturedKeyword, 0, len(in))
	for _, kw := range in {
		kw.Keyword = strings.TrimSpace(kw.Keyword)
		if kw.Keyword == "" {
			continue
		}
		if kw.Gender == "" {
			kw.Gender = gender
		}
		if !kw.Gender.Valid() {
			continue
		}
		if kw.Name == "" {
			kw.Name = kw.Keyword
		}
		out = append(out, kw)
	}
	return out
}

// Select applies the toggle law: selecting the already-selected keyword
// deselects it. Otherwise the keyword replaces any prior selection, is written
// to the keyword field, and its gender is requested through applyGender.
func (s *Session) Select(kw models.FeaturedKeyword) {
	s.mu.Lock()
	if s.selected != nil && sameKeyword(*s.selected, kw) {
		s.mu.Unlock()
		s.Deselect()
		return
	}
	selected := kw
	s.selected = &selected
	s.selectedAt = s.opts.Now()
	s.mu.Unlock()

	s.logger.Debug("Featured keyword selected", "keyword", kw.Keyword, "gender", kw.Gender)
	s.emitSelection(&selected)

	s.deps.Keyword.SetValue(kw.Keyword)
	s.deps.Keyword.Focus()
	s.applyGender(kw.Gender)
}

// Deselect clears the selection and the keyword field
func (s *Session) Deselect() {
	s.mu.Lock()
	prev := s.selected
	s.selected = nil
	s.selectedAt = time.Time{}
	s.mu.Unlock()

	if prev == nil {
		return
	}
	s.emitSelection(nil)
	s.post(notify.CategorySelection, notify.LevelInfo,
		fmt.Sprintf("Deselected featured keyword %q.", prev.Name), selectionNoticeTTL, nil)

	s.deps.Keyword.SetValue("")
	s.deps.Keyword.Focus()
}

// ClearSelection drops the selection without touching the keyword field
func (s *Session) ClearSelection() {
	s.mu.Lock()
	prev := s.selected
	s.selected = nil
	s.selectedAt = time.Time{}
	s.mu.Unlock()

	if prev != nil {
		s.emitSelection(nil)
	}
}

// applyGender writes gender to the selector unless it already matches. A
// divergent gender that was not set automatically within the confirm window
// is treated as deliberate, and the user is asked before it is overridden.
// Declining leaves the gender unchanged but keeps the selection.
func (s *Session) applyGender(gender models.Gender) {
	if !gender.Valid() {
		return
	}
	current := s.deps.Gender.Value()
	if current == gender {
		return
	}

	s.mu.Lock()
	lastAuto := s.lastAutoGenderAt
	s.mu.Unlock()

	deliberate := lastAuto.IsZero() || s.opts.Now().Sub(lastAuto) > s.opts.ConfirmWindow
	if deliberate && s.deps.Confirmer != nil && !s.deps.Confirmer.ConfirmGenderChange(current, gender) {
		s.logger.Debug("Gender override declined", "current", current, "requested", gender)
		return
	}

	now := s.opts.Now()
	s.mu.Lock()
	s.lastAutoGenderAt = now
	if s.selected != nil {
		// The selection completes once its gender is applied; a confirmation
		// prompt must not push the resulting change outside the auto window.
		s.selectedAt = now
	}
	s.mu.Unlock()

	s.deps.Gender.SetValue(gender)
	s.post(notify.CategoryGender, notify.LevelInfo,
		fmt.Sprintf("Gender set to %s.", genderLabel(gender)), genderFeedbackNoticeTTL, nil)
}

// HandleGenderChange classifies an observed gender change. Within the auto
// window of a selection it was caused by Select and nothing happens. Otherwise
// it is manual: the selection is cleared and the list reloads for the new gender.
func (s *Session) HandleGenderChange(gender models.Gender) {
	now := s.opts.Now()

	s.mu.Lock()
	if s.selected != nil && now.Sub(s.selectedAt) <= s.opts.AutoChangeWindow {
		s.mu.Unlock()
		s.logger.Debug("Automatic gender change", "gender", gender)
		return
	}
	prev := s.selected
	s.selected = nil
	s.selectedAt = time.Time{}
	// A manual choice is deliberate; the next override must ask again.
	s.lastAutoGenderAt = time.Time{}
	ctx := s.baseCtx
	s.mu.Unlock()

	s.logger.Debug("Manual gender change", "gender", gender, "had_selection", prev != nil)
	if prev != nil {
		s.emitSelection(nil)
		s.post(notify.CategoryGender, notify.LevelInfo,
			fmt.Sprintf("Gender manually changed to %s.", genderLabel(gender)), manualGenderNoticeTTL, nil)
	}

	if gender.Valid() {
		_ = s.Load(ctx, gender)
	}
}

// HandleKeywordEdit clears the selection once the field no longer holds the selected keyword
func (s *Session) HandleKeywordEdit(value string) {
	s.mu.Lock()
	if s.selected == nil || strings.TrimSpace(value) == s.selected.Keyword {
		s.mu.Unlock()
		return
	}
	s.selected = nil
	s.selectedAt = time.Time{}
	s.mu.Unlock()

	s.logger.Debug("Keyword edited away from featured selection")
	s.emitSelection(nil)
}

// Selected returns a copy of the current selection, or nil
func (s *Session) Selected() *models.FeaturedKeyword {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	kw := *s.selected
	return &kw
}

// State returns the current list state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Keywords returns the loaded list, or nil when none is loaded
func (s *Session) Keywords() []models.FeaturedKeyword {
	return s.State().Keywords
}

func (s *Session) stateLocked() State {
	st := s.state
	if st.Keywords != nil {
		st.Keywords = append([]models.FeaturedKeyword(nil), st.Keywords...)
	}
	return st
}

func (s *Session) emitState(st State) {
	if s.deps.Sink != nil {
		s.deps.Sink.OnFeaturedKeywordsState(st)
	}
}

func (s *Session) emitSelection(kw *models.FeaturedKeyword) {
	if s.deps.Sink != nil {
		s.deps.Sink.OnSelectionChanged(kw)
	}
}

func (s *Session) post(cat notify.Category, level notify.Level, msg string, ttl time.Duration, action *notify.Action) {
	if s.deps.Notices == nil {
		return
	}
	s.deps.Notices.PostNotice(notify.Notice{
		Category: cat,
		Level:    level,
		Message:  msg,
		TTL:      ttl,
		Action:   action,
	})
}

func (s *Session) record(result string) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordFeaturedLoad(result)
	}
}

func sameKeyword(a, b models.FeaturedKeyword) bool {
	return a.Keyword == b.Keyword && a.Gender == b.Gender
}

func genderLabel(g models.Gender) string {
	switch g {
	case models.GenderLadies:
		return "Ladies"
	case models.GenderMens:
		return "Mens"
	default:
		return string(g)
	}
}
