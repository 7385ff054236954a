package cmd

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/duskline/duskline/internal/config"
)

// resolveRunConfig builds the immutable RunConfig for this run: config
// file defaults, then the named profile, then CLI flags, then a one-time
// environment read. Nothing re-reads the environment after this returns.
func resolveRunConfig(cmd *cobra.Command, cfg *config.Config, args []string) (*config.RunConfig, error) {
	ordering, err := config.ParseOrdering(cfg.Run.Ordering)
	if err != nil {
		return nil, err
	}

	rc := &config.RunConfig{
		Source: config.SourceDescriptor{
			EventDBPath:   cfg.Run.EventDBPath,
			EventFilePath: cfg.Run.EventFilePath,
			OrgsFilePath:  cfg.Run.OrgsFilePath,
		},
		Ordering:                ordering,
		Workers:                 cfg.Run.Workers,
		BaseTimeout:             cfg.Run.BaseTimeout,
		MaxTimeout:              cfg.Run.MaxTimeout,
		MaxRetries:              cfg.Run.MaxRetries,
		ResultsDir:              cfg.Run.ResultsDir,
		StateFile:               cfg.Run.StateFile,
		Channels:                cfg.Notify.Channels,
		DetectorPath:            cfg.Tools.DetectorPath,
		BinDir:                  cfg.Tools.BinDir,
		StarsDegradeToHardError: cfg.Run.StarsDegradeToHardError,
		Database:                cfg.Database,
		Git:                     cfg.Git,
		Notify:                  cfg.Notify,
	}

	if flagProfile != "" {
		p, err := config.LoadProfile(flagProfile)
		if err != nil {
			return nil, err
		}
		if err := p.Apply(rc); err != nil {
			return nil, err
		}
	}

	// Flag overrides. Changed() distinguishes an explicit --parallel 0
	// (rejected by Validate) from an unset flag (auto-detected below).
	if flagEventDB != "" {
		rc.Source.EventDBPath = flagEventDB
	}
	if flagEventFile != "" {
		rc.Source.EventFilePath = flagEventFile
	}
	if flagOrgsFile != "" {
		rc.Source.OrgsFilePath = flagOrgsFile
	}
	if flagOrdering != "" {
		ord, err := config.ParseOrdering(flagOrdering)
		if err != nil {
			return nil, err
		}
		rc.Ordering = ord
	}
	if cmd.Flags().Changed("parallel") {
		rc.Workers = flagWorkers
	}
	if cmd.Flags().Changed("base-timeout") {
		rc.BaseTimeout = flagBaseTimeout
	}
	if cmd.Flags().Changed("max-retries") {
		rc.MaxRetries = flagMaxRetries
	}
	if flagResultsDir != "" {
		rc.ResultsDir = flagResultsDir
	}
	if flagStateFile != "" {
		rc.StateFile = flagStateFile
	}
	if len(flagChannels) > 0 {
		rc.Channels = flagChannels
		rc.Notify.Channels = flagChannels
	}
	rc.Resume = flagResume
	rc.Restart = flagRestart
	rc.Debug = flagDebug

	if len(args) == 1 {
		rc.Source.Single = args[0]
	}

	applyEnvironment(rc)

	if rc.Workers == 0 && !cmd.Flags().Changed("parallel") {
		rc.Workers = config.DefaultWorkerCount(detectMemoryGB())
	}

	return rc, nil
}

// applyEnvironment is the one-time startup environment read:
// credentials and the detector path are frozen into RunConfig here and
// never consulted again.
func applyEnvironment(rc *config.RunConfig) {
	if v := os.Getenv("DUSKLINE_DETECTOR_PATH"); v != "" {
		rc.DetectorPath = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && len(rc.Git.GitHub) == 0 {
		rc.Git.GitHub = append(rc.Git.GitHub, config.GitHubConfig{Token: v})
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" && rc.Notify.Slack.WebhookURL == "" {
		rc.Notify.Slack.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" && rc.Notify.Telegram.BotToken == "" {
		rc.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" && rc.Notify.Telegram.ChatID == "" {
		rc.Notify.Telegram.ChatID = v
	}
}

// detectMemoryGB reads total system memory from /proc/meminfo, returning 0
// (which disables the memory term of the worker formula) on platforms
// without it.
func detectMemoryGB() int {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return int(kb / (1024 * 1024))
	}
	return 0
}
