package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/duskline/duskline/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage duskline configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		// Redact secrets.
		for i := range cfg.Git.GitHub {
			if cfg.Git.GitHub[i].Token != "" {
				cfg.Git.GitHub[i].Token = "ghp-***"
			}
		}
		for i := range cfg.Git.GitLab {
			if cfg.Git.GitLab[i].Token != "" {
				cfg.Git.GitLab[i].Token = "glpat-***"
			}
		}
		if cfg.Notify.Slack.WebhookURL != "" {
			cfg.Notify.Slack.WebhookURL = "https://hooks.slack.com/***"
		}
		if cfg.Notify.Telegram.BotToken != "" {
			cfg.Notify.Telegram.BotToken = "***"
		}
		if cfg.Notify.Email.Password != "" {
			cfg.Notify.Email.Password = "***"
		}
		if cfg.Notify.Webhook.Secret != "" {
			cfg.Notify.Webhook.Secret = "***"
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configEditCmd)
}
