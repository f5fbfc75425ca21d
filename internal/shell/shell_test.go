package shell

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lamim/salonforge/internal/featured"
	"github.com/lamim/salonforge/internal/notify"
	"github.com/lamim/salonforge/internal/pagination"
	"github.com/lamim/salonforge/internal/port"
	"github.com/lamim/salonforge/internal/presenter"
	"github.com/lamim/salonforge/internal/progress"
	"github.com/lamim/salonforge/internal/session"
	"github.com/lamim/salonforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// syncBuffer lets the test read output while the progress goroutine writes
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubFetcher struct{}

func (stubFetcher) FetchFeaturedKeywords(_ context.Context, _ models.Gender) (*models.FeaturedKeywordsResponse, error) {
	return &models.FeaturedKeywordsResponse{
		Success: models.Bool(true),
		Keywords: []models.FeaturedKeyword{
			{Keyword: "spring bob", Name: "Spring Bob", Gender: models.GenderLadies},
			{Keyword: "skin fade", Name: "Skin Fade", Gender: models.GenderMens},
		},
	}, nil
}

type stubTransport struct {
	mu    sync.Mutex
	calls []models.GenerationRequest
	count int
}

func (s *stubTransport) Generate(_ context.Context, req models.GenerationRequest) (*models.GenerateResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	templates := make([]models.Template, s.count)
	for i := range templates {
		templates[i] = models.Template{
			Title:   fmt.Sprintf("%s %d", req.Keyword, i+1),
			Menu:    "cut",
			Comment: "soft, \"airy\" finish",
			Hashtag: models.Hashtags("#bob", "#salon"),
		}
	}
	resp := &models.GenerateResponse{Success: models.Bool(true), Templates: templates}
	if req.Keyword == "spring bob" {
		resp.IsFeatured = true
		resp.FeaturedKeywordInfo = &models.FeaturedKeywordInfo{Name: "Spring Bob"}
	}
	return resp, nil
}

func (s *stubTransport) last() models.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return models.GenerationRequest{}
	}
	return s.calls[len(s.calls)-1]
}

type harness struct {
	shell     *Shell
	out       *syncBuffer
	inputs    Inputs
	transport *stubTransport
	featured  *featured.Session
	pager     *pagination.Controller
}

func newHarness(t *testing.T, script string) *harness {
	t.Helper()
	logger := testLogger()
	out := &syncBuffer{}
	term := presenter.NewTerminal(out, presenter.WithoutProgressBar())
	notices := notify.NewQueue(term, notify.DefaultPerCategory)

	inputs := Inputs{
		Keyword: port.NewInput(""),
		Gender:  port.NewInput(models.GenderLadies),
		Season:  port.NewInput(""),
	}

	sim, err := progress.New([]progress.Stage{
		{Name: "Scraping", TargetPercent: 50, Duration: 5 * time.Millisecond},
		{Name: "Complete", TargetPercent: 100, Duration: 5 * time.Millisecond},
	}, time.Millisecond, term, logger)
	if err != nil {
		t.Fatalf("progress.New() error = %v", err)
	}
	t.Cleanup(func() {
		sim.Stop()
		sim.Wait()
	})

	pager := pagination.NewController(pagination.DefaultMaxVisible, term, logger)
	h := &harness{out: out, inputs: inputs, transport: &stubTransport{count: 8}, pager: pager}

	// The shell is both the command loop and the confirmer of the featured session
	var sh *Shell
	confirm := featured.ConfirmFunc(func(from, to models.Gender) bool { return sh.ConfirmGenderChange(from, to) })

	fs, err := featured.NewSession(featured.Deps{
		Fetcher:   stubFetcher{},
		Keyword:   inputs.Keyword,
		Gender:    inputs.Gender,
		Sink:      term,
		Notices:   notices,
		Confirmer: confirm,
	}, featured.Options{Timeout: time.Second}, logger)
	if err != nil {
		t.Fatalf("featured.NewSession() error = %v", err)
	}
	t.Cleanup(fs.Close)
	h.featured = fs

	gen, err := session.New(session.Deps{
		Transport: h.transport,
		Progress:  sim,
		Pager:     pager,
		Presenter: term,
		Selection: fs,
		Notices:   notices,
		Keyword:   inputs.Keyword,
	}, session.Options{Model: "test-model", Timeout: time.Second}, logger)
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	t.Cleanup(gen.Close)

	sh = New(Deps{
		Inputs:    inputs,
		Terminal:  term,
		Featured:  fs,
		Generator: gen,
		Pager:     pager,
		Progress:  sim,
		Notices:   notices,
	}, strings.NewReader(script), logger)
	h.shell = sh

	if err := fs.Init(context.Background()); err != nil {
		t.Fatalf("featured Init() error = %v", err)
	}
	return h
}

func TestShell_GenerateBrowseExport(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out.csv")
	script := strings.Join([]string{
		"keyword short bob",
		"season spring",
		"generate",
		"next",
		"next",
		"page 1",
		"export csv " + csvPath,
		"quit",
		"generate never reached",
	}, "\n")

	h := newHarness(t, script)
	if err := h.shell.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	req := h.transport.last()
	if req.Keyword != "short bob" || req.Gender != models.GenderLadies || req.Season != "spring" || req.Model != "test-model" {
		t.Errorf("request = %+v", req)
	}
	if h.pager.CurrentPage() != 1 || h.pager.TotalPages() != 2 {
		t.Errorf("pager = page %d of %d", h.pager.CurrentPage(), h.pager.TotalPages())
	}

	out := h.out.String()
	for _, want := range []string{"#7 short bob 7", "Already on the last page.", "Exported 8 templates"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 9 {
		t.Fatalf("csv lines = %d, want header + 8", len(lines))
	}
	if !strings.Contains(lines[1], `"soft, ""airy"" finish"`) {
		t.Errorf("csv row = %s", lines[1])
	}
}

func TestShell_PickConfirmsGenderChange(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		wantGender models.Gender
	}{
		{"accepted", "y", models.GenderMens},
		{"declined", "n", models.GenderLadies},
		{"end of input", "", models.GenderLadies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.answer)

			if err := h.shell.Execute(context.Background(), "pick 2"); err != nil {
				t.Fatalf("pick error = %v", err)
			}
			if got := h.inputs.Gender.Value(); got != tt.wantGender {
				t.Errorf("gender = %s, want %s", got, tt.wantGender)
			}
			if got := h.inputs.Keyword.Value(); got != "skin fade" {
				t.Errorf("keyword = %q", got)
			}
			sel := h.featured.Selected()
			if sel == nil || sel.Keyword != "skin fade" {
				t.Errorf("selection = %+v, want skin fade kept", sel)
			}
			if !strings.Contains(h.out.String(), "Switch to mens") {
				t.Error("confirmation prompt not shown")
			}
		})
	}
}

func TestShell_PickSameGenderNeedsNoConfirmation(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	if err := h.shell.Execute(ctx, "pick 1"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(h.out.String(), "Switch to") {
		t.Error("no prompt expected when the gender already matches")
	}

	if err := h.shell.Execute(ctx, "generate"); err != nil {
		t.Fatal(err)
	}
	if req := h.transport.last(); req.Keyword != "spring bob" {
		t.Errorf("request keyword = %q", req.Keyword)
	}
	if items := h.pager.Items(); len(items) == 0 || !items[0].IsFeatured || items[0].FeaturedKeywordName != "Spring Bob" {
		t.Errorf("results not tagged as featured: %+v", items)
	}

	// Picking again deselects and clears the keyword
	if err := h.shell.Execute(ctx, "pick 1"); err != nil {
		t.Fatal(err)
	}
	if h.featured.Selected() != nil || h.inputs.Keyword.Value() != "" {
		t.Error("second pick should deselect")
	}
}

func TestShell_Errors(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	tests := []struct {
		line string
		want string
	}{
		{"dance", "unknown command"},
		{"gender other", "gender"},
		{"page x", "page expects a number"},
		{"page 3", "out of range"},
		{"pick 9", "no featured keyword 9"},
		{"pick one", "pick expects a number"},
		{"export pdf", "pdf"},
		{"export csv", "no templates to export"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := h.shell.Execute(ctx, tt.line)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Execute(%q) error = %v, want %q", tt.line, err, tt.want)
			}
		})
	}
}

func TestShell_BlankGenerateIsRejected(t *testing.T) {
	h := newHarness(t, "generate\nstatus\n")
	if err := h.shell.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if req := h.transport.last(); req.Keyword != "" {
		t.Errorf("blank keyword reached the transport: %+v", req)
	}
	out := h.out.String()
	for _, want := range []string{"Please enter a keyword.", "keyword   (empty)", "gender    ladies"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShell_FeaturedDisabled(t *testing.T) {
	h := newHarness(t, "")
	h.shell.deps.Featured = nil

	for _, line := range []string{"featured", "pick 1", "retry"} {
		if err := h.shell.Execute(context.Background(), line); err == nil || !strings.Contains(err.Error(), "disabled") {
			t.Errorf("Execute(%q) error = %v", line, err)
		}
	}
}
