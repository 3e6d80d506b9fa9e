package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

const (
	envPrefix      = "REVIEWCHECK_"
	configFileName = "reviewcheckrc.toml"
	seenFileName   = "old_comment_ids"
)

// ErrNotConfigured is returned by LoadConfig when there is no configuration
// file yet.
var ErrNotConfigured = errors.New("reviewcheck is not configured")

// Config represents the application configuration
type Config struct {
	SecretToken string `koanf:"secret_token"`
	User        string `koanf:"user"`
	APIURL      string `koanf:"api_url"`
	JiraURL     string `koanf:"jira_url"`
	ProjectIDs  []int  `koanf:"project_ids"`

	IgnoredMRs             []string `koanf:"ignored_mrs"`
	ShowAllDiscussions     bool     `koanf:"show_all_discussions"`
	HideRepliedDiscussions bool     `koanf:"hide_replied_discussions"`
	OutputWidth            int      `koanf:"output_width"`
	UppercaseUser          bool     `koanf:"uppercase_user"`

	PoolSize          int           `koanf:"pool_size"`
	MaxRetries        int           `koanf:"max_retries"`
	RetryDelay        time.Duration `koanf:"retry_delay"`
	RetryBackoff      float64       `koanf:"retry_backoff"`
	RetryMaxDelay     time.Duration `koanf:"retry_max_delay"`
	RetryJitter       bool          `koanf:"retry_jitter"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	HTTPTimeout       time.Duration `koanf:"http_timeout"`
	FastModeWeeks     int           `koanf:"fast_mode_weeks"`

	SeenPath      string `koanf:"seen_path"`
	Notify        bool   `koanf:"notify"`
	NotifyCommand string `koanf:"notify_command"`

	LogLevel string `koanf:"log_level"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"pool_size":           32,
		"max_retries":         3,
		"retry_delay":         "5s",
		"retry_backoff":       1.0,
		"retry_max_delay":     "1m",
		"retry_jitter":        false,
		"requests_per_second": 10.0,
		"http_timeout":        "30s",
		"seen_path":           DefaultSeenPath(),
		"notify":              true,
		"notify_command":      "notify-send",
		"log_level":           "warn",
	}
}

// DefaultPath is $XDG_CONFIG/reviewcheckrc.toml, falling back to ~/.config.
func DefaultPath() string {
	return filepath.Join(baseDir("XDG_CONFIG", ".config"), configFileName)
}

// DefaultSeenPath is $XDG_CACHE_HOME/reviewcheck/old_comment_ids, falling
// back to ~/.cache.
func DefaultSeenPath() string {
	return filepath.Join(baseDir("XDG_CACHE_HOME", ".cache"), "reviewcheck", seenFileName)
}

func baseDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, fallback)
}

// LoadDotenv loads environment variables from the given files, or .env in
// the working directory. Missing files are ignored and variables already set
// win.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("error loading %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("loaded environment file")
	}
	return nil
}

// LoadConfig loads the configuration from a file, then applies REVIEWCHECK_
// environment variables on top. An empty configPath means DefaultPath.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no configuration file at %s", ErrNotConfigured, configPath)
		}
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
		return nil, fmt.Errorf("error loading config %s: %w", configPath, err)
	}

	// REVIEWCHECK_SECRET_TOKEN -> secret_token
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	config.APIURL = strings.TrimSuffix(config.APIURL, "/")
	config.JiraURL = strings.TrimSuffix(config.JiraURL, "/")

	return &config, nil
}

// EffectiveUser applies a --user override and, when configured, upper-cases
// the result.
func (c *Config) EffectiveUser(override string) string {
	user := c.User
	if override != "" {
		user = override
	}
	if c.UppercaseUser {
		user = strings.ToUpper(user)
	}
	return user
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.SecretToken == "" {
		return fmt.Errorf("secret_token is required")
	}
	if config.User == "" {
		return fmt.Errorf("user is required")
	}
	if config.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if !strings.HasPrefix(config.APIURL, "http://") && !strings.HasPrefix(config.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", config.APIURL)
	}
	if len(config.ProjectIDs) == 0 {
		return fmt.Errorf("at least one project id is required")
	}
	if config.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive, got %d", config.PoolSize)
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", config.MaxRetries)
	}
	if config.OutputWidth < 0 {
		return fmt.Errorf("output_width must not be negative, got %d", config.OutputWidth)
	}
	return nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# reviewcheck configuration

# Personal access token with read_api scope.
secret_token = "your-gitlab-token"
user = "your-username"
api_url = "https://gitlab.example.com/api/v4"
jira_url = "https://jira.example.com/browse"
project_ids = [123]

# ignored_mrs = ["371", "373"]
# show_all_discussions = false
# hide_replied_discussions = false
# output_width = 120
# fast_mode_weeks = 4

# pool_size = 32
# max_retries = 3
# retry_delay = "5s"
# retry_backoff = 1.0
# retry_max_delay = "1m"
# retry_jitter = false
# requests_per_second = 10
# http_timeout = "30s"

# notify = true
# notify_command = "notify-send"
`

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(configPath, []byte(sampleConfig), 0600)
}
