package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PIPESTATS_DATA_DIR.
const EnvPrefix = "pipestats"

var DefaultSearchTerms = []string{
	"Pipeline Summary",
	"Tekton",
	"pipeline",
	"Task Status",
	"Pipeline Status",
	"CI/CD Summary",
}

type Config struct {
	GitHub struct {
		BaseURL     string        `yaml:"base_url" toml:"base_url"`
		Token       string        `yaml:"token,omitempty" toml:"token,omitempty"`
		Timeout     time.Duration `yaml:"timeout" toml:"timeout"`
		MaxPRs      int           `yaml:"max_prs" toml:"max_prs"`
		Concurrency int           `yaml:"concurrency" toml:"concurrency"`
	} `yaml:"github" toml:"github"`

	Fetch struct {
		Limit       int      `yaml:"limit" toml:"limit"`
		DaysBack    int      `yaml:"days_back" toml:"days_back"`
		SearchTerms []string `yaml:"search_terms" toml:"search_terms"`
	} `yaml:"fetch" toml:"fetch"`

	Data struct {
		Dir  string `yaml:"dir" toml:"dir"`
		File string `yaml:"file" toml:"file"`
	} `yaml:"data" toml:"data"`

	Poll struct {
		Interval     time.Duration `yaml:"interval" toml:"interval"`
		Repositories []string      `yaml:"repositories" toml:"repositories"`
		PauseFile    string        `yaml:"pause_file" toml:"pause_file"`
		Notify       bool          `yaml:"notify" toml:"notify"`
	} `yaml:"poll" toml:"poll"`

	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`
}

// envOverrides is filled by envconfig. Unset variables leave zero values,
// which are not applied. Token and BaseURL also accept the unprefixed
// GITHUB_TOKEN and GITHUB_API_URL.
type envOverrides struct {
	Token        string        `envconfig:"GITHUB_TOKEN"`
	BaseURL      string        `envconfig:"GITHUB_API_URL"`
	Timeout      time.Duration `split_words:"true"`
	MaxPrs       int           `split_words:"true"`
	Concurrency  int           `split_words:"true"`
	FetchLimit   int           `split_words:"true"`
	DaysBack     int           `split_words:"true"`
	SearchTerms  []string      `split_words:"true"`
	DataDir      string        `split_words:"true"`
	DataFile     string        `split_words:"true"`
	PollInterval time.Duration `split_words:"true"`
	Repositories []string      `split_words:"true"`
	PauseFile    string        `split_words:"true"`
	Notify       *bool         `split_words:"true"`
	LogLevel     string        `split_words:"true"`
	LogFormat    string        `split_words:"true"`
}

func Default() Config {
	var c Config
	c.GitHub.BaseURL = "https://api.github.com"
	c.GitHub.Timeout = 30 * time.Second
	c.GitHub.MaxPRs = 500
	c.GitHub.Concurrency = 4
	c.Fetch.Limit = 50
	c.Fetch.DaysBack = 30
	c.Fetch.SearchTerms = append([]string(nil), DefaultSearchTerms...)
	c.Data.Dir = "data"
	c.Data.File = "pipeline_stats.json"
	c.Poll.Interval = 10 * time.Minute
	c.Poll.PauseFile = "~/.cache/pipeline_stats_paused"
	c.Log.Level = "info"
	c.Log.Format = "console"
	return c
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(path, b, &c); err != nil {
				return c, errors.Wrapf(err, "parse %s", path)
			}
		case !os.IsNotExist(err):
			return c, errors.Wrapf(err, "read %s", path)
		}
	}

	if err := applyEnv(&c); err != nil {
		return c, err
	}

	normalize(&c)
	return c, nil
}

func decode(path string, b []byte, c *Config) error {
	if isTOML(path) {
		_, err := toml.Decode(string(b), c)
		return err
	}
	return yaml.Unmarshal(b, c)
}

func applyEnv(c *Config) error {
	var e envOverrides
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return errors.Wrap(err, "process environment")
	}

	setString(&c.GitHub.Token, e.Token)
	setString(&c.GitHub.BaseURL, e.BaseURL)
	setString(&c.Data.Dir, e.DataDir)
	setString(&c.Data.File, e.DataFile)
	setString(&c.Poll.PauseFile, e.PauseFile)
	setString(&c.Log.Level, e.LogLevel)
	setString(&c.Log.Format, e.LogFormat)

	if e.Timeout > 0 {
		c.GitHub.Timeout = e.Timeout
	}
	if e.PollInterval > 0 {
		c.Poll.Interval = e.PollInterval
	}
	if e.MaxPrs > 0 {
		c.GitHub.MaxPRs = e.MaxPrs
	}
	if e.Concurrency > 0 {
		c.GitHub.Concurrency = e.Concurrency
	}
	if e.FetchLimit > 0 {
		c.Fetch.Limit = e.FetchLimit
	}
	if e.DaysBack > 0 {
		c.Fetch.DaysBack = e.DaysBack
	}
	if len(e.SearchTerms) > 0 {
		c.Fetch.SearchTerms = e.SearchTerms
	}
	if len(e.Repositories) > 0 {
		c.Poll.Repositories = e.Repositories
	}
	if e.Notify != nil {
		c.Poll.Notify = *e.Notify
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func normalize(c *Config) {
	d := Default()

	c.GitHub.BaseURL = strings.TrimRight(c.GitHub.BaseURL, "/")
	if c.GitHub.BaseURL == "" {
		c.GitHub.BaseURL = d.GitHub.BaseURL
	}
	if c.GitHub.Timeout <= 0 {
		c.GitHub.Timeout = d.GitHub.Timeout
	}
	if c.GitHub.MaxPRs <= 0 {
		c.GitHub.MaxPRs = d.GitHub.MaxPRs
	}
	if c.GitHub.Concurrency <= 0 {
		c.GitHub.Concurrency = d.GitHub.Concurrency
	}
	if c.Fetch.Limit <= 0 {
		c.Fetch.Limit = d.Fetch.Limit
	}
	if c.Fetch.DaysBack <= 0 {
		c.Fetch.DaysBack = d.Fetch.DaysBack
	}
	if c.Data.Dir == "" {
		c.Data.Dir = d.Data.Dir
	}
	if c.Data.File == "" {
		c.Data.File = d.Data.File
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = d.Poll.Interval
	}
	if c.Poll.PauseFile == "" {
		c.Poll.PauseFile = d.Poll.PauseFile
	}
	c.Data.Dir = expandHome(c.Data.Dir)
	c.Poll.PauseFile = expandHome(c.Poll.PauseFile)

	repos := c.Poll.Repositories[:0]
	for _, r := range c.Poll.Repositories {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}
	c.Poll.Repositories = repos
}

// RequireToken fails when no GitHub token is configured. Only commands
// that talk to GitHub call it.
func (c Config) RequireToken() error {
	if c.GitHub.Token == "" {
		return errors.New("GitHub token is required (set GITHUB_TOKEN or github.token)")
	}
	return nil
}

// DataPath is the snapshot file. An absolute data.file wins over data.dir.
func (c Config) DataPath() string {
	if filepath.IsAbs(c.Data.File) {
		return c.Data.File
	}
	return filepath.Join(c.Data.Dir, c.Data.File)
}

// HasRepository reports whether repo is in the poll list.
func (c Config) HasRepository(repo string) bool {
	for _, r := range c.Poll.Repositories {
		if strings.EqualFold(r, repo) {
			return true
		}
	}
	return false
}

// Save writes c to path atomically. The token is never written back.
func Save(path string, c Config) error {
	if path == "" {
		return errors.New("empty config path")
	}
	c.GitHub.Token = ""

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	lockFile := path + ".lock"
	lf, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return errors.Wrap(err, "open config lock")
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return errors.Wrap(err, "lock config")
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	b, err := encode(path, c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "create temp config")
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return errors.Wrap(err, "write config")
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "sync config")
	}
	return errors.Wrap(os.Rename(tmp, path), "replace config")
}

func encode(path string, c Config) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(&c)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}
