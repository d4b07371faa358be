package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no file is given
const DefaultFile = ".backport.yaml"

// EnvPrefix starts every configuration environment variable
const EnvPrefix = "BACKPORT"

// Config is the effective configuration of one run
type Config struct {
	PrimaryRepo string          `mapstructure:"primaryRepo" yaml:"primaryRepo"`
	Bot         BotConfig       `mapstructure:"bot" yaml:"bot"`
	GitHub      GitHubConfig    `mapstructure:"github" yaml:"github"`
	Jira        JiraConfig      `mapstructure:"jira" yaml:"jira"`
	Labels      LabelsConfig    `mapstructure:"labels" yaml:"labels"`
	Milestone   MilestoneConfig `mapstructure:"milestone" yaml:"milestone"`
	Chain       ChainConfig     `mapstructure:"chain" yaml:"chain"`
	Parallel    ParallelConfig  `mapstructure:"parallel" yaml:"parallel"`
	History     HistoryConfig   `mapstructure:"history" yaml:"history"`

	// Credentials come from the environment
	Credentials Credentials `mapstructure:"-" yaml:"credentials"`
}

// BotConfig is the account that pushes branches and opens tracking PRs
type BotConfig struct {
	Login string `mapstructure:"login" yaml:"login"`
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

// GitHubConfig locates the source-control host
type GitHubConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
}

// JiraConfig locates the issue tracker
type JiraConfig struct {
	BaseURL           string  `mapstructure:"baseURL" yaml:"baseURL"`
	OrgDomain         string  `mapstructure:"orgDomain" yaml:"orgDomain"`
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond" yaml:"requestsPerSecond"`
}

// LabelsConfig lists labels copied to tracking PRs
type LabelsConfig struct {
	Priority                  []string `mapstructure:"priority" yaml:"priority"`
	ForceOnCloud              string   `mapstructure:"forceOnCloud" yaml:"forceOnCloud"`
	ForceOnCloudExcludedRepos []string `mapstructure:"forceOnCloudExcludedRepos" yaml:"forceOnCloudExcludedRepos"`
}

// MilestoneConfig controls milestone resolution
type MilestoneConfig struct {
	Repos          []string `mapstructure:"repos" yaml:"repos"`
	TagRepo        string   `mapstructure:"tagRepo" yaml:"tagRepo"`
	TagPrefix      string   `mapstructure:"tagPrefix" yaml:"tagPrefix"`
	VersionFile    string   `mapstructure:"versionFile" yaml:"versionFile"`
	MainlineBranch string   `mapstructure:"mainlineBranch" yaml:"mainlineBranch"`
}

// ChainConfig bounds back-reference tracing
type ChainConfig struct {
	MaxDepth int `mapstructure:"maxDepth" yaml:"maxDepth"`
}

// ParallelConfig bounds parallel backports
type ParallelConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// HistoryConfig bounds history scans
type HistoryConfig struct {
	ScanDepth int `mapstructure:"scanDepth" yaml:"scanDepth"`
}

var defaults = map[string]any{
	"primaryRepo":                      "scylladb/scylladb",
	"bot.login":                        "scylladbbot",
	"bot.name":                         "scylladbbot",
	"bot.email":                        "scylladbbot@users.noreply.github.com",
	"github.host":                      "github.com",
	"jira.baseURL":                     "https://scylladb.atlassian.net",
	"jira.orgDomain":                   "scylladb.com",
	"jira.requestsPerSecond":           5.0,
	"labels.priority":                  []string{"P0", "P1"},
	"labels.forceOnCloud":              "force_on_cloud",
	"labels.forceOnCloudExcludedRepos": []string{"scylladb/scylla-pkg"},
	"milestone.repos":                  []string{"scylladb/scylladb", "scylladb/scylla-pkg"},
	"milestone.tagRepo":                "scylladb/scylladb",
	"milestone.tagPrefix":              "scylla-",
	"milestone.versionFile":            "SCYLLA-VERSION-GEN",
	"milestone.mainlineBranch":         "master",
	"chain.maxDepth":                   10,
	"parallel.workers":                 4,
	"history.scanDepth":                100,
}

// Load reads the configuration. An empty path reads DefaultFile when it exists;
// a path that is given must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	switch {
	case path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	default:
		if _, err := os.Stat(DefaultFile); err == nil {
			v.SetConfigFile(DefaultFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", DefaultFile, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Credentials = CredentialsFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make a run misbehave
func (c *Config) Validate() error {
	var errs []error
	if _, _, ok := strings.Cut(c.PrimaryRepo, "/"); !ok {
		errs = append(errs, fmt.Errorf("primaryRepo must be owner/name, got %q", c.PrimaryRepo))
	}
	if c.Bot.Login == "" {
		errs = append(errs, errors.New("bot.login is required"))
	}
	if c.Chain.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("chain.maxDepth must be positive, got %d", c.Chain.MaxDepth))
	}
	if c.Parallel.Workers < 1 {
		errs = append(errs, fmt.Errorf("parallel.workers must be positive, got %d", c.Parallel.Workers))
	}
	if c.History.ScanDepth < 1 {
		errs = append(errs, fmt.Errorf("history.scanDepth must be positive, got %d", c.History.ScanDepth))
	}
	if c.Jira.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("jira.requestsPerSecond must be positive, got %v", c.Jira.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

// YAML renders the configuration with credentials masked
func (c *Config) YAML() (string, error) {
	masked := *c
	masked.Credentials = c.Credentials.Masked()
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(out), nil
}
