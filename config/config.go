// Configuration file (YAML) for the trade confirmation bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrUnknownThread    = errors.New("unknown thread alias")
)

// Config models tradeflair.yml.
type Config struct {
	Subreddit   string `yaml:"subreddit"`
	BotUsername string `yaml:"bot_username"`
	RulesPath   string `yaml:"rules_path"`
	WikiPath    string `yaml:"wiki_path"`

	Threads struct {
		Current  string `yaml:"current"`
		Previous string `yaml:"previous"`
	} `yaml:"threads"`

	Trade    TradeConfig    `yaml:"trade"`
	Messages MessagesConfig `yaml:"messages"`
	Storage  StorageConfig  `yaml:"storage"`
	Cooldown CooldownConfig `yaml:"cooldown"`
	Reddit   RedditConfig   `yaml:"reddit"`

	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

type TradeConfig struct {
	// Participants with fewer trades than this must pass the age and karma checks.
	FlairCheck int `yaml:"flair_check"`
	// Minimum account age, in days.
	AgeCheck            int      `yaml:"age_check"`
	KarmaCheck          int      `yaml:"karma_check"`
	ConfirmationKeyword string   `yaml:"confirmation_keyword"`
	BadgePrefix         string   `yaml:"badge_prefix"`
	PermalinkPattern    string   `yaml:"permalink_pattern"`
	Reply               string   `yaml:"reply"`
	AgeWarning          string   `yaml:"age_warning"`
	KarmaWarning        string   `yaml:"karma_warning"`
	Proofs              []string `yaml:"proofs"`
	// Credits per participant per day above which a notification is sent. Zero disables.
	DailyCreditAlert int `yaml:"daily_credit_alert"`
	// Maximum reports filed per day before reporting is suspended. Zero disables the limit.
	DailyReportQuota int `yaml:"daily_report_quota"`
}

type MessagesConfig struct {
	NoMention        string `yaml:"no_mention"`
	MultipleMentions string `yaml:"multiple_mentions"`
	MissingKeyword   string `yaml:"missing_keyword"`
}

type StorageConfig struct {
	// memory, file, redis or sql
	Ledger      string `yaml:"ledger"`
	LedgerDir   string `yaml:"ledger_dir"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

type CooldownConfig struct {
	// Grace window, in minutes, for re-posting after a removed submission.
	LowerMin     int             `yaml:"lower_min"`
	Groups       []CooldownGroup `yaml:"groups"`
	DefaultGroup string          `yaml:"default_group"`
}

type CooldownGroup struct {
	Name string `yaml:"name"`
	// Zero means the group has no cooldown.
	Hours int `yaml:"hours"`
	// Regular expression matched against the (normalized) submission title.
	TitlePattern string `yaml:"title_pattern"`
}

type RedditConfig struct {
	BaseURL           string `yaml:"base_url"`
	AuthURL           string `yaml:"auth_url"`
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	UserAgent         string `yaml:"user_agent"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

const DefaultPermalinkPattern = `^https?://(?:www\.)?reddit\.com/r/.*/comments/.{6}/.*/(.{7})/$`

// Default returns a Config with every optional value filled in.
func Default() *Config {
	var cfg Config
	cfg.RulesPath = "/wiki/rules"
	cfg.WikiPath = "/wiki/index"
	cfg.Trade = TradeConfig{
		FlairCheck:          5,
		AgeCheck:            30,
		KarmaCheck:          100,
		ConfirmationKeyword: "confirmed",
		BadgePrefix:         "i-",
		PermalinkPattern:    DefaultPermalinkPattern,
		Reply:               "Added",
		AgeWarning:          "Your account is too new to have trades confirmed automatically.",
		KarmaWarning:        "Your account does not have enough karma to have trades confirmed automatically.",
		Proofs: []string{
			"Link to screenshots of PM's between users",
			"Link to online tracking (showing delivery) OR timestamp of received item(s)",
		},
		DailyCreditAlert: 10,
		DailyReportQuota: 200,
	}
	cfg.Messages = MessagesConfig{
		NoMention:        "Could not find user mention, please edit your comment and make sure the username starts with /u/ (no explicit linking!)",
		MultipleMentions: "Found multiple usernames, please only include one user per confirmation comment",
		MissingKeyword:   `Could not find "confirmed" in comment, please edit your comment`,
	}
	cfg.Storage = StorageConfig{
		Ledger:    "file",
		LedgerDir: "data/ledger",
	}
	cfg.Cooldown = CooldownConfig{
		LowerMin:     15,
		DefaultGroup: "trade",
	}
	cfg.Reddit = RedditConfig{
		BaseURL:           "https://oauth.reddit.com",
		AuthURL:           "https://www.reddit.com/api/v1/access_token",
		UserAgent:         "tradeflair",
		RequestsPerMinute: 60,
	}
	return &cfg
}

// FromYAML decodes raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config is usable by the engine.
func (c *Config) Validate() error {
	if c.Subreddit == "" {
		return fmt.Errorf("config.subreddit is required")
	}
	if c.Trade.FlairCheck < 0 || c.Trade.AgeCheck < 0 || c.Trade.KarmaCheck < 0 {
		return fmt.Errorf("%w: trade thresholds must not be negative", ErrInvalidThreshold)
	}
	if c.Trade.DailyCreditAlert < 0 || c.Trade.DailyReportQuota < 0 {
		return fmt.Errorf("%w: daily limits must not be negative", ErrInvalidThreshold)
	}
	if c.Trade.ConfirmationKeyword == "" {
		return fmt.Errorf("config.trade.confirmation_keyword is required")
	}
	if c.Trade.BadgePrefix == "" {
		return fmt.Errorf("config.trade.badge_prefix is required")
	}
	if _, err := c.PermalinkRegexp(); err != nil {
		return err
	}
	switch c.Storage.Ledger {
	case "memory":
	case "file":
		if c.Storage.LedgerDir == "" {
			return fmt.Errorf("config.storage.ledger_dir is required for file ledger")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("config.storage.redis_url is required for redis ledger")
		}
	case "sql":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("config.storage.database_url is required for sql ledger")
		}
	default:
		return fmt.Errorf("config.storage.ledger: unknown backend %q", c.Storage.Ledger)
	}
	if c.Cooldown.LowerMin < 0 {
		return fmt.Errorf("%w: cooldown.lower_min must not be negative", ErrInvalidThreshold)
	}
	for _, g := range c.Cooldown.Groups {
		if g.Name == "" {
			return fmt.Errorf("config.cooldown.groups contains a group without name")
		}
		if g.Hours < 0 {
			return fmt.Errorf("%w: cooldown group %s has negative hours", ErrInvalidThreshold, g.Name)
		}
		if _, err := regexp.Compile(g.TitlePattern); err != nil {
			return fmt.Errorf("cooldown group %s title_pattern: %w", g.Name, err)
		}
	}
	return nil
}

// PermalinkRegexp compiles the permalink pattern, which must capture the item id.
func (c *Config) PermalinkRegexp() (*regexp.Regexp, error) {
	re, err := regexp.Compile(c.Trade.PermalinkPattern)
	if err != nil {
		return nil, fmt.Errorf("config.trade.permalink_pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("config.trade.permalink_pattern must capture the item id")
	}
	return re, nil
}

// ResolveThread maps the "curr" and "prev" aliases to configured thread ids. Anything else is returned
// unchanged, as a literal thread id.
func (c *Config) ResolveThread(name string) (string, error) {
	var id string
	switch name {
	case "curr", "current":
		id = c.Threads.Current
	case "prev", "previous":
		id = c.Threads.Previous
	default:
		return name, nil
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s is not configured", ErrUnknownThread, name)
	}
	return id, nil
}

// SubredditPath is the "/r/<name>" form used in links and modmail recipients.
func (c *Config) SubredditPath() string {
	return "/r/" + c.Subreddit
}

// CooldownFor returns the cooldown of a named group, and false if the group has none.
func (c *CooldownConfig) CooldownFor(group string) (time.Duration, bool) {
	for _, g := range c.Groups {
		if g.Name == group && g.Hours > 0 {
			return time.Duration(g.Hours) * time.Hour, true
		}
	}
	return 0, false
}
