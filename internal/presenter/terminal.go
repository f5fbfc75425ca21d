// Package presenter renders session events to a terminal.
package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/schollz/progressbar/v3"

	"github.com/lamim/salonforge/internal/featured"
	"github.com/lamim/salonforge/internal/notify"
	"github.com/lamim/salonforge/internal/pagination"
	"github.com/lamim/salonforge/internal/progress"
	"github.com/lamim/salonforge/internal/session"
	"github.com/lamim/salonforge/internal/util"
	"github.com/lamim/salonforge/pkg/models"
)

// DefaultWidth is the card width in columns
const DefaultWidth = 64

// Terminal implements every sink of the client: progress, session, featured
// keywords, pagination and notices. Events may arrive from the progress
// goroutine, so all writes are serialised.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	width    int
	styles   styles
	noBar    bool
	bar      *progressbar.ProgressBar
	stage    string
	enabled  bool
	featured featured.State
	selected *models.FeaturedKeyword
}

// Option configures a Terminal
type Option func(*Terminal)

// WithWidth sets the card width
func WithWidth(width int) Option {
	return func(t *Terminal) {
		if width > 20 {
			t.width = width
		}
	}
}

// WithoutProgressBar prints stage changes as lines instead of an animated bar
func WithoutProgressBar() Option {
	return func(t *Terminal) { t.noBar = true }
}

// NewTerminal creates a presenter writing to out
func NewTerminal(out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{out: out, width: DefaultWidth, enabled: true}
	for _, opt := range opts {
		opt(t)
	}
	t.styles = newStyles(lipgloss.NewRenderer(out), t.width)
	return t
}

func (t *Terminal) println(s string) {
	fmt.Fprintln(t.out, s)
}

// OnProgress implements progress.Sink. A snapshot at 0% of the first stage
// starts a new bar and 100% finishes it.
func (t *Terminal) OnProgress(s progress.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Percent == 0 && s.StageIndex == 0 {
		t.finishBarLocked()
		t.stage = ""
		if !t.noBar {
			t.bar = t.newBar(s.StageName)
		}
	}

	if t.noBar {
		if s.StageName != t.stage {
			t.stage = s.StageName
			t.println(t.styles.helper.Render(fmt.Sprintf("%3d%% %s", s.Percent, s.StageName)))
		}
		return
	}
	if t.bar == nil {
		return
	}
	if s.StageName != t.stage {
		t.stage = s.StageName
		t.bar.Describe(s.StageName)
	}
	_ = t.bar.Set(s.Percent)
	if s.Percent >= 100 {
		t.finishBarLocked()
	}
}

func (t *Terminal) newBar(desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(t.out),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (t *Terminal) finishBarLocked() {
	if t.bar == nil {
		return
	}
	_ = t.bar.Finish()
	fmt.Fprintln(t.out)
	t.bar = nil
}

// OnValidationError implements session.Presenter
func (t *Terminal) OnValidationError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(t.styles.error.Render("✗ " + message))
}

// OnSubmitEnabled implements session.Presenter
func (t *Terminal) OnSubmitEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// SubmitEnabled reports the last enablement event
func (t *Terminal) SubmitEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// OnGenerationSettled implements session.Presenter. Failure details arrive
// as notices, so only a summary line is printed here.
func (t *Terminal) OnGenerationSettled(o session.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if o.Succeeded() {
		line := fmt.Sprintf("%d templates for %q (%s) in %s",
			len(o.Templates), o.Request.Keyword, o.Request.Gender, o.Duration.Round(10*time.Millisecond))
		if o.Featured {
			line += " " + t.styles.featured.Render("★ featured")
		}
		t.println(t.styles.header.Render(line))
		return
	}
	t.println(t.styles.helper.Render(fmt.Sprintf("request %s: %s", o.RequestID, o.Kind)))
}

// OnFeaturedKeywordsState implements featured.Sink
func (t *Terminal) OnFeaturedKeywordsState(st featured.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.featured = st
	t.renderFeaturedLocked()
}

// OnSelectionChanged implements featured.Sink
func (t *Terminal) OnSelectionChanged(selected *models.FeaturedKeyword) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selected = selected
	if t.featured.Status == featured.StatusLoaded {
		t.renderFeaturedLocked()
	}
}

func (t *Terminal) renderFeaturedLocked() {
	st := t.featured
	switch st.Status {
	case featured.StatusLoading:
		t.println(t.styles.helper.Render(fmt.Sprintf("Loading featured keywords (%s)…", st.Gender)))
	case featured.StatusFailed:
		msg := "Featured keywords could not be loaded."
		if st.Err != nil {
			msg = st.Err.Message
		}
		line := t.styles.error.Render(msg)
		if st.Err != nil && st.Err.Retryable() {
			line += " " + t.styles.helper.Render("(type `retry`)")
		}
		t.println(line)
	case featured.StatusLoaded:
		t.println(t.renderChips(st))
	}
}

func (t *Terminal) renderChips(st featured.State) string {
	header := fmt.Sprintf("Featured keywords (%s)", st.Gender)
	if st.Fallback {
		header += " " + t.styles.warning.Render("[fallback]")
	}
	if len(st.Keywords) == 0 {
		return t.styles.header.Render(header) + "\n" + t.styles.helper.Render("  none available")
	}

	chips := make([]string, 0, len(st.Keywords))
	for i, kw := range st.Keywords {
		label := fmt.Sprintf("%d. %s", i+1, kw.Name)
		if t.selected != nil && t.selected.Keyword == kw.Keyword && t.selected.Gender == kw.Gender {
			chips = append(chips, t.styles.chipOn.Render("*"+label))
			continue
		}
		chips = append(chips, t.styles.chip.Render(label))
	}
	return t.styles.header.Render(header) + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

// OnPageChanged implements pagination.Sink
func (t *Terminal) OnPageChanged(v pagination.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(t.RenderPage(v))
}

// RenderPage renders the cards of one page followed by the page strip
func (t *Terminal) RenderPage(v pagination.View) string {
	if v.TotalItems == 0 {
		return t.styles.helper.Render("No templates were returned.")
	}

	parts := make([]string, 0, len(v.Items)+1)
	for i, tpl := range v.Items {
		parts = append(parts, t.renderCard(v.Offset+i+1, tpl))
	}
	if !v.Hidden {
		parts = append(parts, t.renderStrip(v))
	}
	return strings.Join(parts, "\n")
}

func (t *Terminal) renderCard(n int, tpl models.Template) string {
	inner := t.width - 4
	lines := []string{
		t.styles.cardHead.Render(fmt.Sprintf("#%d %s", n, util.SingleLine(tpl.Title))),
		t.styles.label.Render("menu    ") + util.TruncateString(util.SingleLine(tpl.Menu), inner-8),
		wordwrap.String(tpl.Comment, inner),
		t.styles.label.Render("tags    ") + tpl.Hashtag.Join(" "),
	}
	if tpl.IsFeatured {
		tag := "★ featured"
		if tpl.FeaturedKeywordName != "" {
			tag += ": " + tpl.FeaturedKeywordName
		}
		lines = append(lines, t.styles.featured.Render(tag))
	}
	return t.styles.card.Render(strings.Join(lines, "\n"))
}

func (t *Terminal) renderStrip(v pagination.View) string {
	cells := make([]string, 0, len(v.Strip)+2)
	if v.HasPrev {
		cells = append(cells, t.styles.page.Render("‹ prev"))
	}
	for _, e := range v.Strip {
		switch {
		case e.Kind == pagination.EntryEllipsis:
			cells = append(cells, t.styles.page.Render("…"))
		case e.Current:
			cells = append(cells, t.styles.pageOn.Render(fmt.Sprintf("[%d]", e.Page)))
		default:
			cells = append(cells, t.styles.page.Render(fmt.Sprintf("%d", e.Page)))
		}
	}
	if v.HasNext {
		cells = append(cells, t.styles.page.Render("next ›"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...) +
		t.styles.helper.Render(fmt.Sprintf("  page %d of %d · %d templates", v.CurrentPage, v.TotalPages, v.TotalItems))
}

// OnNotice implements notify.Sink
func (t *Terminal) OnNotice(n notify.Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(t.renderNotice(n))
}

func (t *Terminal) renderNotice(n notify.Notice) string {
	var style lipgloss.Style
	var icon string
	switch n.Level {
	case notify.LevelSuccess:
		style, icon = t.styles.success, "✓"
	case notify.LevelWarning:
		style, icon = t.styles.warning, "!"
	case notify.LevelError:
		style, icon = t.styles.error, "✗"
	default:
		style, icon = t.styles.helper, "·"
	}
	line := style.Render(icon + " " + n.Message)
	if n.Action != nil {
		line += " " + t.styles.helper.Render(fmt.Sprintf("(%s: type `%s`)", n.Action.Label, n.Action.Command))
	}
	return line
}

// Status describes the inputs and component states for the status command
type Status struct {
	Keyword   string
	Gender    models.Gender
	Season    string
	Busy      bool
	Progress  progress.State
	Selected  *models.FeaturedKeyword
	Page      int
	Pages     int
	Templates int
	Notices   []notify.Notice
}

// PrintStatus writes a status block
func (t *Terminal) PrintStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kw := s.Keyword
	if kw == "" {
		kw = "(empty)"
	}
	rows := []string{
		t.styles.header.Render("Status"),
		fmt.Sprintf("  keyword   %s", kw),
		fmt.Sprintf("  gender    %s", s.Gender),
		fmt.Sprintf("  season    %s", orDash(s.Season)),
		fmt.Sprintf("  request   %s", busyLabel(s.Busy)),
		fmt.Sprintf("  progress  %s %d%%", s.Progress.Phase, s.Progress.Percent),
	}
	if s.Selected != nil {
		rows = append(rows, fmt.Sprintf("  featured  %s (%s)", s.Selected.Name, s.Selected.Keyword))
	}
	if s.Templates > 0 {
		rows = append(rows, fmt.Sprintf("  results   %d templates, page %d of %d", s.Templates, s.Page, s.Pages))
	}
	for _, n := range s.Notices {
		rows = append(rows, "  "+t.renderNotice(n))
	}
	t.println(strings.Join(rows, "\n"))
}

// Println writes a plain line, serialised with event output
func (t *Terminal) Println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(s)
}

// Prompt writes s without a trailing newline
func (t *Terminal) Prompt(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, s)
}

// Help writes a helper-styled block
func (t *Terminal) Help(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(t.styles.helper.Render(s))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func busyLabel(busy bool) string {
	if busy {
		return "in flight"
	}
	return "idle"
}
