package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/internal/featured"
	"github.com/lamim/salonforge/internal/session"
	"github.com/lamim/salonforge/internal/shell"
	"github.com/lamim/salonforge/internal/writer"
	"github.com/lamim/salonforge/pkg/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	verbose    bool
	noBar      bool

	genderFlag   string
	seasonFlag   string
	exportFormat string
	exportPath   string
	pageFlag     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "salonforge",
		Short: "SalonForge - hair salon post template generator",
		Long: `SalonForge is a command-line client for a remote hair salon template
generation service. It submits a keyword, shows staged progress while the
service works, and pages through the returned title, menu, comment and
hashtag templates.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile == "" {
				return
			}
			if err := loadEnvFile(envFile); err != nil {
				if verbose && !errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noBar, "no-progress-bar", false, "Print progress stages as lines")

	generateCmd := &cobra.Command{
		Use:   "generate <keyword>",
		Short: "Generate templates for one keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGenerate,
	}
	generateCmd.Flags().StringVarP(&genderFlag, "gender", "g", "", "ladies or mens (default from config)")
	generateCmd.Flags().StringVarP(&seasonFlag, "season", "s", "", "Optional season")
	generateCmd.Flags().StringVar(&exportFormat, "export", "", "Export results as csv or txt")
	generateCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Export path (default: inside the session directory)")

	featuredCmd := &cobra.Command{
		Use:   "featured",
		Short: "List featured keywords for a gender",
		Args:  cobra.NoArgs,
		RunE:  runFeatured,
	}
	featuredCmd.Flags().StringVarP(&genderFlag, "gender", "g", "", "ladies or mens (default from config)")

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive client",
		Args:  cobra.NoArgs,
		RunE:  runShell,
	}

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect saved sessions",
	}
	sessionsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List session directories",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}
	sessionsShowCmd := &cobra.Command{
		Use:   "show <session-dir>",
		Short: "Show the last templates of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  showSession,
	}
	sessionsShowCmd.Flags().IntVarP(&pageFlag, "page", "p", 1, "Page to show")
	sessionsExportCmd := &cobra.Command{
		Use:   "export <session-dir>",
		Short: "Export the last templates of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSession,
	}
	sessionsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "csv or txt")
	sessionsExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Export path (default: inside the session directory)")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsExportCmd)
	rootCmd.AddCommand(generateCmd, featuredCmd, shellCmd, sessionsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func loadConfig() (*config.Config, *config.Secrets, error) {
	cfg, secrets, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, secrets, nil
}

// resolveGender prefers the flag over the configured default
func resolveGender(cfg *config.Config) (models.Gender, error) {
	if genderFlag != "" {
		return models.ParseGender(genderFlag)
	}
	return models.ParseGender(cfg.Generation.DefaultGender)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	gender, err := resolveGender(cfg)
	if err != nil {
		return err
	}
	var format writer.Format
	if exportFormat != "" {
		if format, err = writer.ParseFormat(exportFormat); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, secrets, appOptions{out: cmd.OutOrStdout(), logLevel: logLevel(), noBar: noBar})
	if err != nil {
		return err
	}
	defer a.close()

	season := seasonFlag
	if season == "" {
		season = cfg.Generation.DefaultSeason
	}
	outcome := a.generator.Submit(ctx, session.Input{
		Keyword: strings.Join(args, " "),
		Gender:  gender,
		Season:  season,
	})
	if !outcome.Succeeded() {
		return fmt.Errorf("generation failed: %s", outcome.Message)
	}

	if format != "" && len(outcome.Templates) > 0 {
		path := exportPath
		if path == "" {
			path = defaultExportPath(a.sessions, format)
		}
		if err := writer.ExportFile(path, format, outcome.Templates); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		a.term.Println(fmt.Sprintf("Exported %d templates to %s", len(outcome.Templates), path))
	}
	return nil
}

func defaultExportPath(sm *writer.SessionManager, format writer.Format) string {
	if sm != nil {
		return sm.GetExportPath(format)
	}
	return "hair_templates." + string(format)
}

func runFeatured(cmd *cobra.Command, args []string) error {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Featured.Disabled {
		return errors.New("featured keywords are disabled in the configuration")
	}
	gender, err := resolveGender(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Listing never writes session files
	cfg.Output.SkipSessionSave = true
	a, err := newApp(ctx, cfg, secrets, appOptions{out: cmd.OutOrStdout(), logLevel: logLevel(), withFeature: true, noBar: true})
	if err != nil {
		return err
	}
	defer a.close()

	return a.featured.Load(ctx, gender)
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sh *shell.Shell
	confirm := featured.ConfirmFunc(func(from, to models.Gender) bool {
		return sh.ConfirmGenderChange(from, to)
	})

	a, err := newApp(ctx, cfg, secrets, appOptions{
		out:         cmd.OutOrStdout(),
		logLevel:    logLevel(),
		withFeature: true,
		noBar:       noBar,
		confirm:     confirm,
	})
	if err != nil {
		return err
	}
	defer a.close()

	sh = a.newShell(cmd.InOrStdin())
	if a.featured != nil {
		// A failed load is rendered and announced; generation stays available
		if err := a.featured.Init(ctx); err != nil {
			a.logger.Debug("Featured keywords unavailable at startup", "error", err)
		}
	}

	if err := sh.Run(ctx); err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	if a.sessions != nil {
		a.logger.Info("Session saved", "session_dir", a.sessions.GetSessionDir())
	}
	return nil
}
