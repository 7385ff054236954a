package config

// Config is the root configuration structure for duskline.
// Serialised to ~/.duskline/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Run      RunSettings    `mapstructure:"run"      json:"run"`
	Tools    ToolsConfig    `mapstructure:"tools"    json:"tools"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	Schedule ScheduleConfig `mapstructure:"schedule" json:"schedule"`
}

// DatabaseConfig controls the storage backend behind the Event-DB Target
// Source backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path" json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// GitConfig holds credentials for each supported git hosting platform, used
// by the Organization-List and OrganizationTarget expansion paths.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host" json:"host"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// RunSettings holds the config-file-resident defaults that RunConfig is
// resolved from at startup, before CLI flags are applied as overrides.
type RunSettings struct {
	EventDBPath   string `mapstructure:"event_db_path"   json:"event_db_path"`
	EventFilePath string `mapstructure:"event_file_path" json:"event_file_path"`
	OrgsFilePath  string `mapstructure:"orgs_file_path"   json:"orgs_file_path"`
	Ordering      string `mapstructure:"ordering"         json:"ordering"`
	Workers       int    `mapstructure:"workers"          json:"workers"`
	BaseTimeout   int    `mapstructure:"base_timeout_sec" json:"base_timeout_sec"`
	MaxTimeout    int    `mapstructure:"max_timeout_sec"  json:"max_timeout_sec"`
	MaxRetries    int    `mapstructure:"max_retries"      json:"max_retries"`
	ResultsDir    string `mapstructure:"results_dir"       json:"results_dir"`
	StateFile     string `mapstructure:"state_file"        json:"state_file"`
	// StarsDegradeToHardError makes a missing star column a hard source
	// error instead of a logged downgrade to Random ordering.
	StarsDegradeToHardError bool `mapstructure:"stars_degrade_hard_error" json:"stars_degrade_hard_error"`
}

// ToolsConfig controls where the detector binary lives.
type ToolsConfig struct {
	// BinDir is the directory searched (before PATH) for the detector binary.
	BinDir string `mapstructure:"bin_dir" json:"bin_dir"`
	// DetectorPath, if set, is used verbatim instead of resolving by name.
	DetectorPath string `mapstructure:"detector_path" json:"detector_path"`
}

// NotifyConfig controls outbound notification channels.
type NotifyConfig struct {
	Slack    SlackNotifyConfig    `mapstructure:"slack"    json:"slack"`
	Telegram TelegramNotifyConfig `mapstructure:"telegram" json:"telegram"`
	Email    EmailNotifyConfig    `mapstructure:"email"    json:"email"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  json:"webhook"`
	// Channels is the explicit list of channel names enabled for this run
	// (subset of slack/telegram/email/webhook); empty means "all configured".
	Channels []string `mapstructure:"channels" json:"channels"`
}

// SlackNotifyConfig holds the Slack incoming webhook URL.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// TelegramNotifyConfig holds Telegram Bot API credentials.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   json:"chat_id"`
}

// EmailNotifyConfig holds SMTP settings for email notifications.
type EmailNotifyConfig struct {
	SMTPHost string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" json:"smtp_port"`
	Username string `mapstructure:"username"  json:"username"`
	Password string `mapstructure:"password"  json:"password"` // #nosec G101 -- config field, not a hardcoded credential
	From     string `mapstructure:"from"      json:"from"`
	To       string `mapstructure:"to"        json:"to"`
	UseTLS   bool   `mapstructure:"use_tls"   json:"use_tls"`
}

// WebhookNotifyConfig holds generic HTTP webhook settings.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"`
	Secret string `mapstructure:"secret" json:"secret"` // HMAC-SHA256 signing key // #nosec G101 -- config field, not a hardcoded credential
}

// ScheduleConfig controls the optional recurring-run mode.
type ScheduleConfig struct {
	// Every is a cron expression (robfig/cron/v3 format). Empty means one-shot.
	Every string `mapstructure:"every" json:"every"`
}
