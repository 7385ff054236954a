// Package cmd wires the CLI surface: the root command is the orchestrator
// itself, with config and profile management hanging off subcommands.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// errInterrupted marks a signal-driven shutdown; Execute maps it to exit
// code 130 with the Progress Store preserved for resume.
var errInterrupted = errors.New("interrupted by signal")

var (
	cfgFile string

	flagEventDB     string
	flagEventFile   string
	flagOrgsFile    string
	flagOrdering    string
	flagWorkers     int
	flagBaseTimeout int
	flagMaxRetries  int
	flagResultsDir  string
	flagStateFile   string
	flagResume      bool
	flagRestart     bool
	flagChannels    []string
	flagDebug       bool
	flagProfile     string
	flagEvery       string
	flagWatch       bool
)

// rootCmd is the orchestrator: it enumerates targets from the configured
// source and drives the scan pool. The optional positional argument names
// a single target (org, owner/repo, or org/repo@commit).
var rootCmd = &cobra.Command{
	Use:   "duskline [target]",
	Short: "Hunt for verified secrets in dangling force-pushed commits",
	Long: `duskline reconstructs commits that were force-pushed out of Git history,
runs a secret detector over them, and persists only live-verified
credentials.

Targets come from an event database, a tabular event export, an
organization list file, or a single explicit identifier:

  duskline --event-db ~/.duskline/duskline.db --ordering latest
  duskline --orgs-file orgs.txt --parallel 4 --resume
  duskline acme/app@deadbeef --results-dir ./out

Individual target failures never abort a run; interrupted runs preserve
their state file and resume with --resume.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runRoot,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main. Exit codes: 0 normal
// completion (individual target failures included), 130 interrupted by
// signal, 1 unrecoverable initialization failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.duskline/config.json)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"verbose logging; retain per-target detector output")

	rootCmd.Flags().StringVar(&flagEventDB, "event-db", "", "path to the push-events database")
	rootCmd.Flags().StringVar(&flagEventFile, "event-file", "", "path to a tabular push-events export")
	rootCmd.Flags().StringVar(&flagOrgsFile, "orgs-file", "", "path to a plain-text organization list")
	rootCmd.Flags().StringVar(&flagOrdering, "ordering", "", "target ordering: random|latest|stars|file-order")
	rootCmd.Flags().IntVar(&flagWorkers, "parallel", 0, "worker count (default: auto-detected from CPU and memory)")
	rootCmd.Flags().IntVar(&flagBaseTimeout, "base-timeout", 0, "per-target base detector timeout in seconds")
	rootCmd.Flags().IntVar(&flagMaxRetries, "max-retries", -1, "detector timeout retries per target")
	rootCmd.Flags().StringVar(&flagResultsDir, "results-dir", "", "results root directory")
	rootCmd.Flags().StringVar(&flagStateFile, "state-file", "", "progress state file path")
	rootCmd.Flags().BoolVar(&flagResume, "resume", false, "skip targets already recorded in the state file")
	rootCmd.Flags().BoolVar(&flagRestart, "restart", false, "delete the state file and start fresh")
	rootCmd.Flags().StringSliceVar(&flagChannels, "notify", nil, "notification channels to enable (slack,telegram,email,webhook)")
	rootCmd.Flags().StringVar(&flagProfile, "profile", "", "apply a saved run profile")
	rootCmd.Flags().StringVar(&flagEvery, "every", "", "cron schedule for recurring runs (e.g. '@hourly')")
	rootCmd.Flags().BoolVar(&flagWatch, "watch", false, "show the live dashboard while scanning")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		configCmd,
		profileCmd,
	)
}

func initLogging() {
	if flagDebug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Debug logging enabled")
	}
}
