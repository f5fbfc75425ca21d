// Package shell is the interactive command loop of the client. It owns the
// keyword, gender and season inputs and routes commands to the featured
// keyword session, the generation session and the pager.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lamim/salonforge/internal/featured"
	"github.com/lamim/salonforge/internal/notify"
	"github.com/lamim/salonforge/internal/pagination"
	"github.com/lamim/salonforge/internal/port"
	"github.com/lamim/salonforge/internal/presenter"
	"github.com/lamim/salonforge/internal/progress"
	"github.com/lamim/salonforge/internal/session"
	"github.com/lamim/salonforge/internal/writer"
	"github.com/lamim/salonforge/pkg/models"
)

const helpText = `Commands:
  keyword <text>        set the keyword
  gender ladies|mens    set the gender
  season [text]         set or clear the season
  featured              reload featured keywords
  pick <n>              select featured keyword n (again to deselect)
  retry                 retry loading featured keywords
  generate [keyword]    generate templates
  next | prev | page n  move between result pages
  export csv|txt [path] export all results
  status                show inputs and state
  help                  show this help
  quit                  leave`

const exportNoticeTTL = 4 * time.Second

// Inputs are the observable fields the shell edits
type Inputs struct {
	Keyword *port.Input[string]
	Gender  *port.Input[models.Gender]
	Season  *port.Input[string]
}

// Deps wires the shell. Featured may be nil when featured keywords are disabled.
type Deps struct {
	Inputs    Inputs
	Terminal  *presenter.Terminal
	Featured  *featured.Session
	Generator *session.Session
	Pager     *pagination.Controller
	Progress  *progress.Simulator
	Notices   *notify.Queue
	Session   *writer.SessionManager // nil when session files are disabled
}

// Shell reads commands line by line
type Shell struct {
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	scanner *bufio.Scanner
}

// New creates a shell reading from in
func New(deps Deps, in io.Reader, logger *slog.Logger) *Shell {
	return &Shell{
		deps:    deps,
		logger:  logger,
		scanner: bufio.NewScanner(in),
	}
}

// ErrQuit is returned by Execute for the quit command
var ErrQuit = errors.New("quit")

// Run processes commands until quit, end of input or ctx cancellation
func (s *Shell) Run(ctx context.Context) error {
	s.deps.Terminal.Help("Type `help` for commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, ok := s.readLine("> ")
		if !ok {
			return s.scanner.Err()
		}
		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			s.deps.Terminal.OnValidationError(err.Error())
		}
	}
}

func (s *Shell) readLine(prompt string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Terminal.Prompt(prompt)
	if !s.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.scanner.Text()), true
}

// ConfirmGenderChange implements featured.Confirmer by reading y/N from the
// same input as the commands
func (s *Shell) ConfirmGenderChange(from, to models.Gender) bool {
	answer, ok := s.readLine(fmt.Sprintf("Gender is set to %s. Switch to %s for this keyword? [y/N] ", from, to))
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Execute runs one command line
func (s *Shell) Execute(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "quit", "exit":
		return ErrQuit
	case "help", "?":
		s.deps.Terminal.Help(helpText)
	case "keyword", "kw":
		s.deps.Inputs.Keyword.SetValue(arg)
	case "gender":
		g, err := models.ParseGender(arg)
		if err != nil {
			return err
		}
		s.deps.Inputs.Gender.SetValue(g)
	case "season":
		s.deps.Inputs.Season.SetValue(arg)
	case "featured":
		return s.withFeatured(func(f *featured.Session) error {
			_ = f.Load(ctx, s.deps.Inputs.Gender.Value())
			return nil
		})
	case "pick":
		return s.pick(arg)
	case "retry":
		return s.withFeatured(func(f *featured.Session) error {
			_ = f.Retry(ctx)
			return nil
		})
	case "generate", "gen":
		if arg != "" {
			s.deps.Inputs.Keyword.SetValue(arg)
		}
		s.deps.Generator.Submit(ctx, session.Input{
			Keyword: s.deps.Inputs.Keyword.Value(),
			Gender:  s.deps.Inputs.Gender.Value(),
			Season:  s.deps.Inputs.Season.Value(),
		})
	case "next":
		if !s.deps.Pager.Next() {
			s.deps.Terminal.Help("Already on the last page.")
		}
	case "prev":
		if !s.deps.Pager.Prev() {
			s.deps.Terminal.Help("Already on the first page.")
		}
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("page expects a number, got %q", arg)
		}
		if !s.deps.Pager.GoTo(n) {
			return fmt.Errorf("page %d is out of range (1-%d)", n, s.deps.Pager.TotalPages())
		}
	case "export":
		return s.export(arg)
	case "status":
		s.status()
	default:
		return fmt.Errorf("unknown command %q, type `help`", cmd)
	}
	return nil
}

func (s *Shell) withFeatured(fn func(*featured.Session) error) error {
	if s.deps.Featured == nil {
		return errors.New("featured keywords are disabled")
	}
	return fn(s.deps.Featured)
}

func (s *Shell) pick(arg string) error {
	return s.withFeatured(func(f *featured.Session) error {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("pick expects a number, got %q", arg)
		}
		kws := f.Keywords()
		if n < 1 || n > len(kws) {
			return fmt.Errorf("no featured keyword %d (have %d)", n, len(kws))
		}
		f.Select(kws[n-1])
		return nil
	})
}

func (s *Shell) export(arg string) error {
	formatArg, path, _ := strings.Cut(arg, " ")
	format, err := writer.ParseFormat(formatArg)
	if err != nil {
		return err
	}

	items := s.deps.Pager.Items()
	if len(items) == 0 {
		return errors.New("there are no templates to export")
	}

	path = strings.TrimSpace(path)
	if path == "" {
		if s.deps.Session != nil {
			path = s.deps.Session.GetExportPath(format)
		} else {
			path = "hair_templates." + string(format)
		}
	}
	if err := writer.ExportFile(path, format, items); err != nil {
		return err
	}

	s.logger.Info("Exported templates", "path", path, "format", format, "count", len(items))
	s.deps.Notices.Post(notify.CategoryGeneric, notify.LevelSuccess,
		fmt.Sprintf("Exported %d templates to %s.", len(items), filepath.Clean(path)), exportNoticeTTL)
	return nil
}

func (s *Shell) status() {
	st := presenter.Status{
		Keyword:   s.deps.Inputs.Keyword.Value(),
		Gender:    s.deps.Inputs.Gender.Value(),
		Season:    s.deps.Inputs.Season.Value(),
		Busy:      s.deps.Generator.Busy(),
		Page:      s.deps.Pager.CurrentPage(),
		Pages:     s.deps.Pager.TotalPages(),
		Templates: len(s.deps.Pager.Items()),
		Notices:   s.deps.Notices.Active(time.Now()),
	}
	if s.deps.Progress != nil {
		st.Progress = s.deps.Progress.State()
	}
	if s.deps.Featured != nil {
		st.Selected = s.deps.Featured.Selected()
	}
	s.deps.Terminal.PrintStatus(st)
}
