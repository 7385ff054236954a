package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/internal/database"
	"github.com/duskline/duskline/internal/detector"
	"github.com/duskline/duskline/internal/fetch"
	"github.com/duskline/duskline/internal/notify"
	"github.com/duskline/duskline/internal/pool"
	"github.com/duskline/duskline/internal/progress"
	"github.com/duskline/duskline/internal/repository"
	"github.com/duskline/duskline/internal/scantask"
	"github.com/duskline/duskline/internal/schedule"
	"github.com/duskline/duskline/internal/target"
	"github.com/duskline/duskline/internal/tui"
	"github.com/duskline/duskline/internal/workspace"
	"github.com/duskline/duskline/models"
)

// notifyDrainGrace bounds how long shutdown waits for pending notification
// dispatches before abandoning them.
const notifyDrainGrace = 10 * time.Second

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rc, err := resolveRunConfig(cmd, cfg, args)
	if err != nil {
		return err
	}
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// RunConfig absorbed the one-time environment read; mirror the frozen
	// credentials back so provider lookups see them too.
	cfg.Git = rc.Git
	cfg.Notify = rc.Notify

	if rc.Restart {
		if err := progress.Delete(rc.StateFile); err != nil {
			return err
		}
	}

	if removed, err := workspace.SweepOrphans(""); err != nil {
		slog.Warn("orphan workspace sweep failed", "error", err)
	} else if removed > 0 {
		slog.Info("removed orphaned workspaces from a prior run", "count", removed)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM: stop dispatching, cancel
	// in-flight tasks, preserve the state file, exit 130.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		fmt.Fprintln(os.Stderr, "\nShutting down; state preserved for --resume.")
		cancel()
	}()

	every := flagEvery
	if every == "" {
		every = cfg.Schedule.Every
	}
	if every != "" {
		runner, err := schedule.New(every, func(ctx context.Context) error {
			_, err := sweep(ctx, cfg, rc, cancel)
			return err
		})
		if err != nil {
			return err
		}
		// Recurring mode sweeps once immediately, then follows the schedule.
		if _, err := sweep(ctx, cfg, rc, cancel); err != nil {
			return err
		}
		if err := runner.Run(ctx); errors.Is(err, context.Canceled) {
			return errInterrupted
		}
		return nil
	}

	summary, err := sweep(ctx, cfg, rc, cancel)
	if err != nil {
		return err
	}
	if summary.Interrupted {
		return errInterrupted
	}
	return nil
}

// sweep performs one complete pass over the target stream: source →
// progress store → pool → summary. Recurring mode calls it per tick; each
// sweep constructs a fresh Target Source and uses the same state file,
// resuming from it only when --resume is set (otherwise the file is
// rewritten as a fresh state).
func sweep(ctx context.Context, cfg *config.Config, rc *config.RunConfig, cancel context.CancelFunc) (pool.Summary, error) {
	db, err := openEventDB(rc)
	if err != nil {
		return pool.Summary{}, err
	}
	if db != nil {
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return pool.Summary{}, fmt.Errorf("running event database migrations: %w", err)
		}
	}

	src, err := target.New(ctx, rc, db)
	if err != nil {
		return pool.Summary{}, err
	}
	slog.Info("target source loaded", "backend", src.BackendName, "targets", src.Total(), "ordering", rc.Ordering)

	store, err := progress.New(rc.StateFile, rc, src.Total(), rc.Resume)
	if err != nil {
		return pool.Summary{}, err
	}
	defer store.Close()

	notifier := notify.NewDispatcher(rc.Notify)
	defer notifier.Close(notifyDrainGrace)

	runner := &scantask.Runner{
		Fetcher:     fetch.NewFetcher(0),
		Detector:    detector.New(resolveDetectorPath(rc)),
		ResultsDir:  rc.ResultsDir,
		BaseTimeout: time.Duration(rc.BaseTimeout) * time.Second,
		MaxTimeout:  time.Duration(rc.MaxTimeout) * time.Second,
		MaxRetries:  rc.MaxRetries,
		Debug:       rc.Debug,
		ResolveAuth: authResolver(cfg),
	}

	p := &pool.Pool{
		Workers:     rc.Workers,
		Runner:      runner,
		Store:       store,
		Notifier:    notifier,
		Cfg:         cfg,
		Ordering:    rc.Ordering,
		DegradeHard: rc.StarsDegradeToHardError,
	}

	var prog *tea.Program
	if flagWatch {
		prog = tea.NewProgram(tui.NewModel(src.Total(), cancel))
		p.OnUpdate = func(u pool.Update) { prog.Send(u) }
		go func() {
			if _, err := prog.Run(); err != nil {
				slog.Warn("dashboard exited", "error", err)
			}
		}()
	}

	summary, err := p.Run(ctx, src)
	if prog != nil {
		prog.Send(tui.FinishedMsg{Summary: summary})
		prog.Wait()
	}
	if err != nil {
		return summary, err
	}

	fmt.Printf("\nScan complete: %d clean, %d with findings, %d failed, %d timed out, %d skipped\n",
		summary.Clean, summary.WithFindings, summary.Failed, summary.TimedOut, summary.Skipped)
	return summary, nil
}

// openEventDB opens the push-events database when the run needs one: as
// the Event-DB backend's store, or as the Organization-List backend's
// cross-check when one is configured and present.
func openEventDB(rc *config.RunConfig) (database.Store, error) {
	if rc.Source.EventDBPath != "" {
		return database.New(config.DatabaseConfig{Driver: "sqlite", Path: rc.Source.EventDBPath})
	}
	if rc.Source.OrgsFilePath != "" {
		if rc.Database.DSN != "" {
			return database.New(rc.Database)
		}
		if rc.Database.Path != "" {
			if _, err := os.Stat(rc.Database.Path); err == nil {
				return database.New(rc.Database)
			}
		}
	}
	return nil, nil
}

// resolveDetectorPath prefers the explicitly configured binary, then the
// managed bin directory, then PATH lookup.
func resolveDetectorPath(rc *config.RunConfig) string {
	if rc.DetectorPath != "" {
		return rc.DetectorPath
	}
	if rc.BinDir != "" {
		candidate := filepath.Join(rc.BinDir, "trufflehog")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "trufflehog"
}

// authResolver maps a target to its clone URL and credential without the
// Scan Task knowing about provider configuration.
func authResolver(cfg *config.Config) func(models.Target) (string, string) {
	return func(t models.Target) (string, string) {
		switch v := t.(type) {
		case models.CommitTarget:
			url := fmt.Sprintf("https://github.com/%s/%s.git", v.Org, v.Repo)
			return url, repository.TokenForProvider(cfg, "github")
		case models.RepositoryTarget:
			url := v.CloneURL
			if url == "" {
				url = fmt.Sprintf("https://github.com/%s/%s.git", v.Owner, v.Repo)
			}
			provider, err := repository.DetectProvider(url)
			if err != nil {
				provider = "github"
			}
			return url, repository.TokenForProvider(cfg, provider)
		default:
			return "", ""
		}
	}
}
