package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lamim/salonforge/internal/api"
	"github.com/lamim/salonforge/internal/checkpoint"
	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/internal/featured"
	"github.com/lamim/salonforge/internal/metrics"
	"github.com/lamim/salonforge/internal/notify"
	"github.com/lamim/salonforge/internal/pagination"
	"github.com/lamim/salonforge/internal/port"
	"github.com/lamim/salonforge/internal/presenter"
	"github.com/lamim/salonforge/internal/progress"
	"github.com/lamim/salonforge/internal/session"
	"github.com/lamim/salonforge/internal/shell"
	"github.com/lamim/salonforge/internal/writer"
	"github.com/lamim/salonforge/pkg/models"
)

// app is one wired client: ports, components and their session storage
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	closers   []func()
	term      *presenter.Terminal
	inputs    shell.Inputs
	notices   *notify.Queue
	pager     *pagination.Controller
	sim       *progress.Simulator
	featured  *featured.Session
	generator *session.Session
	sessions  *writer.SessionManager
	collector *metrics.Collector
	confirm   featured.Confirmer
}

type appOptions struct {
	out         io.Writer
	logLevel    slog.Level
	withFeature bool
	noBar       bool
	confirm     featured.Confirmer
}

// newApp wires every component. The caller must call close.
func newApp(ctx context.Context, cfg *config.Config, secrets *config.Secrets, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, confirm: opts.confirm}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := a.setupLogging(opts.logLevel); err != nil {
		return nil, err
	}
	logger := a.logger

	var termOpts []presenter.Option
	if opts.noBar {
		termOpts = append(termOpts, presenter.WithoutProgressBar())
	}
	a.term = presenter.NewTerminal(opts.out, termOpts...)
	a.notices = notify.NewQueue(a.term, notify.DefaultPerCategory)
	a.collector = metrics.NewCollector(logger)

	gender := models.Gender(cfg.Generation.DefaultGender)
	if !gender.Valid() {
		gender = models.GenderLadies
	}
	a.inputs = shell.Inputs{
		Keyword: port.NewInput(""),
		Gender:  port.NewInput(gender),
		Season:  port.NewInput(cfg.Generation.DefaultSeason),
	}

	client := api.NewClient(cfg.Server, secrets.APIKey, logger)
	client.SetObserver(a.collector)

	a.sim, err = progress.New(progress.StagesFromConfig(cfg.Progress), cfg.Progress.Tick(), a.term, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid progress schedule: %w", err)
	}
	a.sim.SetJumpRecorder(a.collector)
	a.closers = append(a.closers, a.sim.Stop)

	a.pager = pagination.NewController(cfg.Pagination.MaxVisiblePages, a.term, logger)

	if opts.withFeature && !cfg.Featured.Disabled {
		if err := a.setupFeatured(ctx, client); err != nil {
			return nil, err
		}
	}

	deps := session.Deps{
		Transport: client,
		Progress:  a.sim,
		Pager:     a.pager,
		Presenter: a.term,
		Notices:   a.notices,
		Keyword:   a.inputs.Keyword,
		Recorder:  a.collector,
	}
	if a.featured != nil {
		deps.Selection = a.featured
	}
	if store, err := a.setupStore(); err != nil {
		return nil, err
	} else if store != nil {
		deps.Store = store
	}

	a.generator, err = session.New(deps, session.OptionsFromConfig(cfg.Generation), logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.generator.Close)

	if cfg.Metrics.Enabled {
		go func() {
			if err := a.collector.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
	}
	return a, nil
}

// setupLogging opens the session directory and its log file unless session
// saving is disabled, in which case only the console logger is used
func (a *app) setupLogging(level slog.Level) error {
	if a.cfg.Output.SkipSessionSave {
		a.logger = writer.ConsoleLogger(level)
		return nil
	}

	sessionMgr, err := writer.NewSessionManager(writer.ConsoleLogger(level), a.cfg.Output.Dir, "")
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	logger, logFile, err := writer.SetupLogger(sessionMgr, level)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	a.sessions = sessionMgr
	a.logger = logger
	a.closers = append(a.closers, func() {
		_ = logFile.Sync()
		_ = logFile.Close()
	})

	if configPath != "" {
		if err := sessionMgr.BackupConfig(configPath); err != nil {
			logger.Debug("Config not backed up", "error", err)
		}
	}
	logger.Info("SalonForge starting", "version", Version, "session_dir", sessionMgr.GetSessionDir())
	return nil
}

func (a *app) setupFeatured(ctx context.Context, client *api.Client) error {
	deps := featured.Deps{
		Fetcher:  client,
		Keyword:  a.inputs.Keyword,
		Gender:   a.inputs.Gender,
		Sink:     a.term,
		Notices:  a.notices,
		Recorder: a.collector,
	}
	if a.confirm != nil {
		deps.Confirmer = a.confirm
	}
	if cache := a.featuredCache(ctx); cache != nil {
		deps.Cache = cache
	}

	fs, err := featured.NewSession(deps, featured.OptionsFromConfig(a.cfg.Featured), a.logger)
	if err != nil {
		return err
	}
	a.featured = fs
	a.closers = append(a.closers, fs.Close)
	return nil
}

// featuredCache returns nil when caching is off. An unreachable redis falls
// back to the in-process cache.
func (a *app) featuredCache(ctx context.Context) featured.Cache {
	if a.cfg.Featured.CacheTTLSeconds <= 0 {
		return nil
	}
	if strings.EqualFold(a.cfg.Featured.CacheBackend, "redis") {
		rc, err := featured.DialRedisCache(ctx, a.cfg.Featured.RedisURL)
		if err == nil {
			a.closers = append(a.closers, func() { _ = rc.Close() })
			a.logger.Info("Featured keyword cache", "backend", "redis")
			return rc
		}
		a.logger.Warn("Redis cache unavailable, using memory cache", "error", err)
	}
	return featured.NewMemoryCache()
}

func (a *app) setupStore() (session.ResultStore, error) {
	if a.sessions == nil {
		return nil, nil
	}
	results, err := writer.NewResultLog(a.sessions, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := results.Close(); err != nil {
			a.logger.Error("failed to close results file", "error", err)
		}
	})
	cp := checkpoint.NewManager(a.sessions.GetSessionDir(), a.cfg, a.logger)
	return session.Stores{cp, results}, nil
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) newShell(in io.Reader) *shell.Shell {
	return shell.New(shell.Deps{
		Inputs:    a.inputs,
		Terminal:  a.term,
		Featured:  a.featured,
		Generator: a.generator,
		Pager:     a.pager,
		Progress:  a.sim,
		Notices:   a.notices,
		Session:   a.sessions,
	}, in, a.logger)
}
