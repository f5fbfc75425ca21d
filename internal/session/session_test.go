package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/lamim/salonforge/internal/api"
	"github.com/lamim/salonforge/internal/notify"
	"github.com/lamim/salonforge/internal/pagination"
	"github.com/lamim/salonforge/internal/port"
	"github.com/lamim/salonforge/internal/progress"
	"github.com/lamim/salonforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubTransport struct {
	mu      sync.Mutex
	calls   []models.GenerationRequest
	respond func(ctx context.Context, req models.GenerationRequest) (*models.GenerateResponse, error)
}

func (s *stubTransport) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerateResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	respond := s.respond
	s.mu.Unlock()
	return respond(ctx, req)
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func respondWith(resp *models.GenerateResponse, err error) func(context.Context, models.GenerationRequest) (*models.GenerateResponse, error) {
	return func(context.Context, models.GenerationRequest) (*models.GenerateResponse, error) {
		return resp, err
	}
}

type countingProgress struct {
	mu        sync.Mutex
	starts    int
	completes int
}

func (p *countingProgress) Start() {
	p.mu.Lock()
	p.starts++
	p.mu.Unlock()
}

func (p *countingProgress) Complete() {
	p.mu.Lock()
	p.completes++
	p.mu.Unlock()
}

type recordingPresenter struct {
	mu          sync.Mutex
	validations []string
	settled     []Outcome
	enabled     []bool
	pages       []pagination.View
	progress    []progress.Snapshot
}

func (p *recordingPresenter) OnValidationError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validations = append(p.validations, msg)
}

func (p *recordingPresenter) OnGenerationSettled(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, o)
}

func (p *recordingPresenter) OnSubmitEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = append(p.enabled, enabled)
}

func (p *recordingPresenter) OnPageChanged(v pagination.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = append(p.pages, v)
}

func (p *recordingPresenter) OnProgress(s progress.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, s)
}

type stubSelection struct {
	mu       sync.Mutex
	selected *models.FeaturedKeyword
	cleared  int
}

func (s *stubSelection) Selected() *models.FeaturedKeyword {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *stubSelection) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.cleared++
}

type memoryStore struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (m *memoryStore) SaveResult(_ context.Context, o Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return nil
}

type fixture struct {
	session   *Session
	transport *stubTransport
	progress  *countingProgress
	pager     *pagination.Controller
	presenter *recordingPresenter
	selection *stubSelection
	notices   *notify.Queue
	keyword   *port.Input[string]
	store     *memoryStore
}

func newFixture(t *testing.T, respond func(context.Context, models.GenerationRequest) (*models.GenerateResponse, error), opts func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		transport: &stubTransport{respond: respond},
		progress:  &countingProgress{},
		presenter: &recordingPresenter{},
		selection: &stubSelection{},
		notices:   notify.NewQueue(nil, 5),
		keyword:   port.NewInput(""),
		store:     &memoryStore{},
	}
	f.pager = pagination.NewController(pagination.DefaultMaxVisible, f.presenter, testLogger())

	o := Options{Model: "test-model", Timeout: time.Second, FallbackNoticeDelay: 10 * time.Millisecond, ErrorNoticeTTL: 5 * time.Second}
	if opts != nil {
		opts(&o)
	}
	s, err := New(Deps{
		Transport: f.transport,
		Progress:  f.progress,
		Pager:     f.pager,
		Presenter: f.presenter,
		Selection: f.selection,
		Notices:   f.notices,
		Keyword:   f.keyword,
		Store:     f.store,
	}, o, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	f.session = s
	return f
}

func (f *fixture) notice(cat notify.Category) (notify.Notice, bool) {
	for _, n := range f.notices.Active(time.Now()) {
		if n.Category == cat {
			return n, true
		}
	}
	return notify.Notice{}, false
}

func makeTemplates(n int) []models.Template {
	out := make([]models.Template, n)
	for i := range out {
		out[i] = models.Template{
			Title:   fmt.Sprintf("title %d", i+1),
			Menu:    "cut",
			Comment: "comment",
			Hashtag: models.Hashtags("#bob", "#salon"),
		}
	}
	return out
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}, Options{}, testLogger()); err == nil {
		t.Error("New(Deps{}) expected error")
	}
}

func TestSubmit_RejectsBlankKeyword(t *testing.T) {
	f := newFixture(t, respondWith(&models.GenerateResponse{Templates: makeTemplates(1)}, nil), nil)

	for _, kw := range []string{"", "   ", "\t\n"} {
		o := f.session.Submit(context.Background(), Input{Keyword: kw, Gender: models.GenderLadies})
		if o.Kind != OutcomeValidationError {
			t.Errorf("Submit(%q) kind = %s, want validation error", kw, o.Kind)
		}
	}

	if f.transport.callCount() != 0 {
		t.Errorf("transport called %d times, want 0", f.transport.callCount())
	}
	if f.progress.starts != 0 {
		t.Error("progress started for a rejected submit")
	}
	if len(f.presenter.validations) != 3 {
		t.Errorf("validation events = %d, want 3", len(f.presenter.validations))
	}
	if f.keyword.FocusCount() != 3 {
		t.Errorf("focus requests = %d, want 3", f.keyword.FocusCount())
	}
	if len(f.presenter.settled) != 0 {
		t.Error("rejected submit reported a settle")
	}
}

func TestSubmit_RejectsInvalidGender(t *testing.T) {
	f := newFixture(t, respondWith(&models.GenerateResponse{Templates: makeTemplates(1)}, nil), nil)

	o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: "kids"})
	if o.Kind != OutcomeValidationError || f.transport.callCount() != 0 {
		t.Errorf("outcome = %+v, calls = %d", o, f.transport.callCount())
	}
}

func TestSubmit_EndToEndSixTemplates(t *testing.T) {
	presenter := &recordingPresenter{}
	stages := []progress.Stage{
		{Name: "Scraping", TargetPercent: 20, Duration: 5 * time.Millisecond},
		{Name: "Analyzing titles", TargetPercent: 40, Duration: 3 * time.Millisecond},
		{Name: "Generating templates", TargetPercent: 85, Duration: 10 * time.Millisecond},
		{Name: "Complete", TargetPercent: 100, Duration: time.Millisecond},
	}
	sim, err := progress.New(stages, time.Millisecond, presenter, testLogger())
	if err != nil {
		t.Fatalf("progress.New() error = %v", err)
	}
	pager := pagination.NewController(pagination.DefaultMaxVisible, presenter, testLogger())
	transport := &stubTransport{respond: func(_ context.Context, req models.GenerationRequest) (*models.GenerateResponse, error) {
		if req.Keyword != "ボブ" || req.Model != "test-model" || req.Season != "spring" {
			return nil, fmt.Errorf("unexpected request %+v", req)
		}
		time.Sleep(8 * time.Millisecond)
		return &models.GenerateResponse{Success: models.Bool(true), Templates: makeTemplates(6)}, nil
	}}
	notices := notify.NewQueue(nil, 5)

	s, err := New(Deps{
		Transport: transport,
		Progress:  sim,
		Pager:     pager,
		Presenter: presenter,
		Notices:   notices,
	}, Options{Model: "test-model", Timeout: time.Second}, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	o := s.Submit(context.Background(), Input{Keyword: "  ボブ ", Gender: models.GenderLadies, Season: " spring "})
	sim.Wait()

	if o.Kind != OutcomeSuccess || len(o.Templates) != 6 {
		t.Fatalf("outcome = %+v", o)
	}
	if st := sim.State(); st.Phase != progress.PhaseCompleted || st.Percent != 100 {
		t.Errorf("progress state = %+v, want completed at 100", st)
	}

	presenter.mu.Lock()
	defer presenter.mu.Unlock()

	lastProgress := presenter.progress[len(presenter.progress)-1]
	if lastProgress.Percent != 100 || lastProgress.StageName != "Complete" {
		t.Errorf("last progress = %+v, want {100 Complete}", lastProgress)
	}
	if len(presenter.pages) != 1 {
		t.Fatalf("page events = %d, want 1", len(presenter.pages))
	}
	page := presenter.pages[0]
	if len(page.Items) != 6 || page.TotalPages != 1 || !page.Hidden {
		t.Errorf("page view = %+v, want 6 items on one hidden-pagination page", page)
	}
	if len(presenter.enabled) != 2 || presenter.enabled[0] || !presenter.enabled[1] {
		t.Errorf("submit enabled events = %v, want [false true]", presenter.enabled)
	}
	if len(presenter.settled) != 1 || presenter.settled[0].Kind != OutcomeSuccess {
		t.Errorf("settled = %+v", presenter.settled)
	}

	active := notices.Active(time.Now())
	if len(active) != 1 || active[0].Level != notify.LevelSuccess {
		t.Errorf("notices = %+v, want one success notice", active)
	}
}

func TestSubmit_TimeoutEndToEnd(t *testing.T) {
	f := newFixture(t, func(ctx context.Context, _ models.GenerationRequest) (*models.GenerateResponse, error) {
		<-ctx.Done()
		return nil, &api.Error{Kind: api.KindTimeout, Message: "request failed", Err: ctx.Err()}
	}, func(o *Options) { o.Timeout = 30 * time.Millisecond })

	o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderMens})

	if o.Kind != OutcomeTimedOut {
		t.Errorf("kind = %s, want timed_out", o.Kind)
	}
	if f.progress.starts != 1 || f.progress.completes != 1 {
		t.Errorf("progress starts/completes = %d/%d, want 1/1", f.progress.starts, f.progress.completes)
	}
	if len(f.presenter.enabled) != 2 || !f.presenter.enabled[1] {
		t.Errorf("submit enabled events = %v, want re-enabled", f.presenter.enabled)
	}
	if f.session.Busy() {
		t.Error("session still busy after settle")
	}
	if len(f.presenter.pages) != 0 {
		t.Error("pager loaded on failure")
	}
	if n, ok := f.notice(notify.CategoryGeneric); !ok || n.Level != notify.LevelError || n.TTL != 5*time.Second {
		t.Errorf("error notice = %+v, found %v", n, ok)
	}
}

func TestSubmit_TransportFailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"deadline", context.DeadlineExceeded, OutcomeTimedOut},
		{"network", &api.Error{Kind: api.KindNetwork}, OutcomeNetworkUnavailable},
		{"server", &api.Error{Kind: api.KindServer, StatusCode: 502}, OutcomeServerError},
		{"malformed", &api.Error{Kind: api.KindInvalidResponse}, OutcomeInvalidResponseShape},
		{"other", errors.New("boom"), OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, respondWith(nil, tt.err), nil)
			o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})
			if o.Kind != tt.want {
				t.Errorf("kind = %s, want %s", o.Kind, tt.want)
			}
			if o.Message == "" {
				t.Error("expected a user-facing message")
			}
		})
	}
}

func TestSubmit_LogicalFailures(t *testing.T) {
	tests := []struct {
		code        string
		want        LogicalCode
		wantCleared bool
	}{
		{models.ErrorCodeFeaturedKeywords, CodeFeaturedKeywordsError, true},
		{models.ErrorCodeNoResults, CodeNoResultsFound, false},
		{models.ErrorCodeValidation, CodeValidationError, false},
		{"SOMETHING_NEW", CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			f := newFixture(t, respondWith(&models.GenerateResponse{
				Success: models.Bool(false),
				Error:   &models.ErrorBody{Code: tt.code, Message: "server says no"},
			}, nil), nil)
			f.selection.selected = &models.FeaturedKeyword{Keyword: "bob", Name: "Bob", Gender: models.GenderLadies}

			o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})

			if o.Kind != OutcomeLogicalFailure || o.Code != tt.want {
				t.Errorf("outcome = %s/%s, want logical_failure/%s", o.Kind, o.Code, tt.want)
			}
			if o.Message != "server says no" {
				t.Errorf("message = %q", o.Message)
			}
			if (f.selection.cleared > 0) != tt.wantCleared {
				t.Errorf("selection cleared = %d, want cleared %v", f.selection.cleared, tt.wantCleared)
			}
			_, fallback := f.notice(notify.CategoryFallback)
			if fallback != tt.wantCleared {
				t.Errorf("fallback notice present = %v, want %v", fallback, tt.wantCleared)
			}
			if f.progress.completes != 1 {
				t.Errorf("progress completes = %d, want 1", f.progress.completes)
			}
		})
	}
}

func TestSubmit_FeaturedErrorWithoutSelection(t *testing.T) {
	f := newFixture(t, respondWith(&models.GenerateResponse{
		Success: models.Bool(false),
		Error:   &models.ErrorBody{Code: models.ErrorCodeFeaturedKeywords, Message: "featured lookup failed"},
	}, nil), nil)

	o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})

	if o.Kind != OutcomeLogicalFailure || o.Code != CodeFeaturedKeywordsError {
		t.Errorf("outcome = %s/%s, want logical_failure/%s", o.Kind, o.Code, CodeFeaturedKeywordsError)
	}
	if _, ok := f.notice(notify.CategoryGeneric); !ok {
		t.Error("expected the error notice")
	}
	if _, ok := f.notice(notify.CategoryFallback); ok {
		t.Error("fallback notice posted without a featured selection")
	}
	if f.selection.cleared != 0 {
		t.Errorf("selection cleared = %d, want 0", f.selection.cleared)
	}
}

func TestSubmit_SuccessWithoutTemplatesIsInvalidShape(t *testing.T) {
	f := newFixture(t, respondWith(&models.GenerateResponse{Success: models.Bool(true)}, nil), nil)

	o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})
	if o.Kind != OutcomeInvalidResponseShape {
		t.Errorf("kind = %s, want invalid_response_shape", o.Kind)
	}
}

func TestSubmit_EmptyTemplateListSucceeds(t *testing.T) {
	f := newFixture(t, respondWith(&models.GenerateResponse{Templates: []models.Template{}}, nil), nil)

	o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})
	if o.Kind != OutcomeSuccess {
		t.Fatalf("kind = %s, want success", o.Kind)
	}
	if len(f.presenter.pages) != 1 || !f.presenter.pages[0].Hidden || f.pager.TotalPages() != 1 {
		t.Errorf("pages = %+v", f.presenter.pages)
	}
}

func TestSubmit_FeaturedSuccessTagsTemplates(t *testing.T) {
	f := newFixture(t, respondWith(&models.GenerateResponse{
		Templates:           makeTemplates(8),
		IsFeatured:          true,
		FeaturedKeywordInfo: &models.FeaturedKeywordInfo{Name: "Spring Bob"},
	}, nil), nil)

	o := f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})

	if !o.Featured || o.FeaturedName != "Spring Bob" {
		t.Errorf("outcome featured = %v %q", o.Featured, o.FeaturedName)
	}
	for i, tpl := range f.pager.Items() {
		if !tpl.IsFeatured || tpl.FeaturedKeywordName != "Spring Bob" {
			t.Errorf("template %d not tagged: %+v", i, tpl)
		}
	}
	n, ok := f.notice(notify.CategoryGeneric)
	if !ok || n.TTL != featuredSuccessNoticeTTL {
		t.Errorf("featured notice = %+v, found %v", n, ok)
	}
	if f.pager.TotalPages() != 2 {
		t.Errorf("TotalPages() = %d, want 2", f.pager.TotalPages())
	}
	if len(f.store.outcomes) != 1 || f.store.outcomes[0].RequestID == "" {
		t.Errorf("stored outcomes = %+v", f.store.outcomes)
	}
}

func TestSubmit_DelayedFallbackNoticeWhenFeaturedSelected(t *testing.T) {
	f := newFixture(t, respondWith(nil, &api.Error{Kind: api.KindNetwork}), func(o *Options) {
		o.FallbackNoticeDelay = 50 * time.Millisecond
	})
	f.selection.selected = &models.FeaturedKeyword{Keyword: "bob", Gender: models.GenderLadies}

	f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})

	if _, ok := f.notice(notify.CategoryFallback); ok {
		t.Fatal("fallback notice posted before the delay")
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := f.notice(notify.CategoryFallback); ok {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Error("fallback notice never posted")
}

func TestClose_CancelsDelayedNotice(t *testing.T) {
	f := newFixture(t, respondWith(nil, &api.Error{Kind: api.KindNetwork}), func(o *Options) {
		o.FallbackNoticeDelay = time.Hour
	})
	f.selection.selected = &models.FeaturedKeyword{Keyword: "bob", Gender: models.GenderLadies}

	f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})
	if f.session.PendingNotices() != 1 {
		t.Fatalf("PendingNotices() = %d, want 1", f.session.PendingNotices())
	}
	f.session.Close()
	if f.session.PendingNotices() != 0 {
		t.Errorf("PendingNotices() after Close = %d, want 0", f.session.PendingNotices())
	}
}

func TestSubmit_BusyGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	f := newFixture(t, func(ctx context.Context, _ models.GenerationRequest) (*models.GenerateResponse, error) {
		close(entered)
		<-release
		return &models.GenerateResponse{Templates: makeTemplates(1)}, nil
	}, nil)

	done := make(chan Outcome)
	go func() {
		done <- f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})
	}()
	<-entered

	second := f.session.Submit(context.Background(), Input{Keyword: "layer", Gender: models.GenderLadies})
	if second.Kind != OutcomeBusy {
		t.Errorf("second submit kind = %s, want busy", second.Kind)
	}

	close(release)
	if first := <-done; first.Kind != OutcomeSuccess {
		t.Errorf("first submit kind = %s, want success", first.Kind)
	}
	if f.transport.callCount() != 1 {
		t.Errorf("transport calls = %d, want 1", f.transport.callCount())
	}
	if f.session.Busy() {
		t.Error("session still busy")
	}
}

func TestSubmit_CleanupRunsOnPanic(t *testing.T) {
	f := newFixture(t, func(context.Context, models.GenerationRequest) (*models.GenerateResponse, error) {
		panic("transport exploded")
	}, nil)

	func() {
		defer func() { _ = recover() }()
		f.session.Submit(context.Background(), Input{Keyword: "bob", Gender: models.GenderLadies})
	}()

	if f.progress.completes != 1 {
		t.Errorf("progress completes = %d, want 1", f.progress.completes)
	}
	if f.session.Busy() {
		t.Error("busy guard not released after panic")
	}
	if n := len(f.presenter.enabled); n != 2 || !f.presenter.enabled[1] {
		t.Errorf("submit enabled events = %v", f.presenter.enabled)
	}
}

func TestClassifyCode(t *testing.T) {
	if ClassifyCode("") != CodeUnknown || ClassifyCode(models.ErrorCodeUnknown) != CodeUnknown {
		t.Error("unknown codes must map to CodeUnknown")
	}
}
