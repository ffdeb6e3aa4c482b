package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Resolve.
const (
	EnvAPIURL   = "SHIELDSCAN_API_URL"
	EnvStore    = "SHIELDSCAN_STORE"
	EnvLogLevel = "SHIELDSCAN_LOG_LEVEL"
	EnvTimeout  = "SHIELDSCAN_TIMEOUT"
)

// Defaults applied when no source sets a value.
const (
	DefaultAPIURL     = "http://localhost:8000"
	DefaultTimeout    = 60 * time.Second
	DefaultStore      = "file"
	DefaultReturnAddr = "127.0.0.1:3000"
	DefaultLogLevel   = "info"
)

// FileConfig is the on-disk YAML configuration shape for ShieldScan.
type FileConfig struct {
	APIURL     *string `yaml:"api_url,omitempty"`
	Timeout    *string `yaml:"timeout,omitempty"`
	Store      *string `yaml:"store,omitempty"`
	StorePath  *string `yaml:"store_path,omitempty"`
	ReturnAddr *string `yaml:"return_addr,omitempty"`
	// DenyHosts are hostname globs that may never be scanned.
	DenyHosts   []string `yaml:"deny_hosts,omitempty"`
	LogLevel    *string  `yaml:"log_level,omitempty"`
	LogFile     *string  `yaml:"log_file,omitempty"`
	NoColor     *bool    `yaml:"no_color,omitempty"`
	History     *bool    `yaml:"history,omitempty"`
	HistoryPath *string  `yaml:"history_path,omitempty"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LocalNames are searched in order by LoadLocal.
var LocalNames = []string{".shieldscan.yml", ".shieldscan.yaml", "shieldscan.yml", "shieldscan.yaml"}

// LoadLocal searches for a project-local config file in dir.
func LoadLocal(dir string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range LocalNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// GlobalDir is $XDG_CONFIG_HOME/shieldscan or ~/.config/shieldscan.
func GlobalDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return ""
	}
	return filepath.Join(base, "shieldscan")
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	dir := GlobalDir()
	if dir == "" {
		return cfg, errors.New("no config dir")
	}
	p := filepath.Join(dir, "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}

// LoadEnv loads dir/.env into the process environment if present. Variables
// that are already set are left alone.
func LoadEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("load %s: %w", p, err)
	}
	return nil
}

// Overrides are values given on the command line. Zero values are unset.
type Overrides struct {
	APIURL     string
	Timeout    time.Duration
	Store      string
	StorePath  string
	ReturnAddr string
	DenyHosts  []string
	LogLevel   string
	LogFile    string
	NoColor    bool
	NoHistory  bool
}

// Settings is the resolved configuration.
type Settings struct {
	APIURL      string
	Timeout     time.Duration
	Store       string
	StorePath   string
	ReturnAddr  string
	DenyHosts   []string
	LogLevel    string
	LogFile     string
	NoColor     bool
	History     bool
	HistoryPath string
}

// Resolve merges the sources with precedence CLI > environment > local >
// global > defaults and validates the result.
func Resolve(cli Overrides, local, global FileConfig) (Settings, error) {
	s := Settings{
		APIURL:      pickString(cli.APIURL, os.Getenv(EnvAPIURL), local.APIURL, global.APIURL, DefaultAPIURL),
		Store:       strings.ToLower(pickString(cli.Store, os.Getenv(EnvStore), local.Store, global.Store, DefaultStore)),
		StorePath:   pickString(cli.StorePath, "", local.StorePath, global.StorePath, ""),
		ReturnAddr:  pickString(cli.ReturnAddr, "", local.ReturnAddr, global.ReturnAddr, DefaultReturnAddr),
		LogLevel:    strings.ToLower(pickString(cli.LogLevel, os.Getenv(EnvLogLevel), local.LogLevel, global.LogLevel, DefaultLogLevel)),
		LogFile:     pickString(cli.LogFile, "", local.LogFile, global.LogFile, ""),
		NoColor:     pickBool(cli.NoColor, local.NoColor, global.NoColor, false),
		History:     !cli.NoHistory && pickBool(false, local.History, global.History, true),
		HistoryPath: pickString("", "", local.HistoryPath, global.HistoryPath, ""),
		DenyHosts:   pickList(cli.DenyHosts, local.DenyHosts, global.DenyHosts),
	}
	s.APIURL = strings.TrimRight(strings.TrimSpace(s.APIURL), "/")

	s.Timeout = cli.Timeout
	if s.Timeout == 0 {
		raw := pickString("", os.Getenv(EnvTimeout), local.Timeout, global.Timeout, "")
		if raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return s, fmt.Errorf("invalid timeout %q: %w", raw, err)
			}
			s.Timeout = d
		}
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	return s, s.Validate()
}

// Validate checks the resolved values.
func (s Settings) Validate() error {
	u, err := url.Parse(s.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url %q: want http(s)://host[:port]", s.APIURL)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", s.Timeout)
	}
	switch s.Store {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("invalid store %q: want file|sqlite|memory", s.Store)
	}
	return nil
}

func pickString(cli, env string, local, global *string, def string) string {
	if cli != "" {
		return cli
	}
	if env != "" {
		return env
	}
	if local != nil && *local != "" {
		return *local
	}
	if global != nil && *global != "" {
		return *global
	}
	return def
}

func pickBool(cli bool, local, global *bool, def bool) bool {
	if cli {
		return true
	}
	if local != nil {
		return *local
	}
	if global != nil {
		return *global
	}
	return def
}

func pickList(cli, local, global []string) []string {
	switch {
	case len(cli) > 0:
		return cli
	case len(local) > 0:
		return local
	default:
		return global
	}
}
