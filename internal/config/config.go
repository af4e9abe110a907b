package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/source"
)

// Supported record source providers.
const (
	ProviderBitbucket = "bitbucket"
	ProviderGitHub    = "github"
)

// Config holds everything a run needs.
type Config struct {
	Provider  string          `yaml:"provider" env:"PR_ANALYSIS_PROVIDER"`
	Bitbucket BitbucketConfig `yaml:"bitbucket"`
	GitHub    GitHubConfig    `yaml:"github"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Output    OutputConfig    `yaml:"output"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BitbucketConfig identifies the Bitbucket Cloud repository and credentials.
type BitbucketConfig struct {
	URL       string `yaml:"url" env:"BITBUCKET_URL"`
	Username  string `yaml:"username" env:"BITBUCKET_USERNAME"`
	APIToken  string `yaml:"-" env:"BITBUCKET_API_TOKEN"`
	Workspace string `yaml:"workspace" env:"BITBUCKET_WORKSPACE"`
	Repo      string `yaml:"repo" env:"BITBUCKET_REPO"`
}

// GitHubConfig identifies the GitHub repository and token.
type GitHubConfig struct {
	Token      string `yaml:"-" env:"GITHUB_TOKEN"`
	Repository string `yaml:"repository" env:"GITHUB_REPOSITORY"`
	BaseURL    string `yaml:"base_url" env:"GITHUB_API_URL"`
}

// AnalysisConfig selects which pull requests are analyzed.
type AnalysisConfig struct {
	State               string   `yaml:"state"`
	Limit               int      `yaml:"limit"`
	Days                int      `yaml:"days"`
	IncludeFilesChanged bool     `yaml:"include_files_changed"`
	IgnoreReviewers     []string `yaml:"ignore_reviewers"`
}

// OutputConfig holds the artifact paths.
type OutputConfig struct {
	CSV      string `yaml:"csv"`
	Markdown string `yaml:"markdown"`
	Metrics  string `yaml:"metrics"`
}

// HTTPConfig tunes the transport used against the remote service.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// MissingError lists required settings that were not provided.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Load reads an optional .env file, the YAML file at path (if any) and the
// environment, in that order of increasing precedence, then fills defaults.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()
	if path != "" {
		if err := readYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env vars: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config yaml: %w", err)
	}
	return nil
}

// defaultConfig is the starting point that YAML and env values override.
func defaultConfig() Config {
	return Config{
		Provider: ProviderBitbucket,
		Analysis: AnalysisConfig{
			State:               "MERGED",
			Limit:               100,
			IncludeFilesChanged: true,
			IgnoreReviewers: []string{
				"dependabot[bot]", "dependabot",
				"github-actions[bot]", "github-actions",
				"renovate[bot]", "renovate",
			},
		},
	}
}

// normalize fills every unset field with its default.
func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderBitbucket
	}
	if c.Bitbucket.URL == "" {
		c.Bitbucket.URL = "https://api.bitbucket.org/2.0"
	}
	c.Bitbucket.URL = strings.TrimRight(c.Bitbucket.URL, "/")

	if c.Analysis.State == "" {
		c.Analysis.State = "MERGED"
	}
	if c.Analysis.Limit < 0 {
		c.Analysis.Limit = 0
	}
	if c.Output.CSV == "" {
		c.Output.CSV = "pr_analysis.csv"
	}
	if c.Output.Markdown == "" {
		c.Output.Markdown = "pr_analysis.md"
	}

	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks that the selected provider has every setting it needs.
func (c Config) Validate() error {
	var missing []string

	switch c.Provider {
	case ProviderBitbucket:
		if c.Bitbucket.APIToken == "" {
			missing = append(missing, "BITBUCKET_API_TOKEN")
		}
		if c.Bitbucket.Workspace == "" {
			missing = append(missing, "BITBUCKET_WORKSPACE")
		}
		if c.Bitbucket.Repo == "" {
			missing = append(missing, "BITBUCKET_REPO")
		}
	case ProviderGitHub:
		if c.GitHub.Token == "" {
			missing = append(missing, "GITHUB_TOKEN")
		}
		if c.GitHub.Repository == "" {
			missing = append(missing, "GITHUB_REPOSITORY")
		} else if parts := strings.Split(c.GitHub.Repository, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("repository name must be in format 'owner/repo', got %q", c.GitHub.Repository)
		}
		if strings.EqualFold(strings.TrimSpace(c.Analysis.State), string(domain.StateSuperseded)) {
			return fmt.Errorf("state %s with provider %s: %w", domain.StateSuperseded, ProviderGitHub, source.ErrUnsupported)
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}

// RepositoryName is the human readable repository identifier used in reports.
func (c Config) RepositoryName() string {
	if c.Provider == ProviderGitHub {
		return c.GitHub.Repository
	}
	return c.Bitbucket.Workspace + "/" + c.Bitbucket.Repo
}
