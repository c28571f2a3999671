// Package config provides configuration management for storectl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/ini.v1"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/pathutil"
)

// EnvServerURL overrides the configured server URL.
const EnvServerURL = "STORECTL_URL"

// Config is the client configuration.
//
// INI format:
//
//	[server]
//	url = http://127.0.0.1:8080
//
//	[session]
//	store = ~/.config/storectl/session.json
//
//	[transfer]
//	download_dir = .
//	retry_max = 0
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	password =
//	no_proxy =
//	warmup = false
//
//	[logging]
//	debug = false
//	log_file =
type Config struct {
	ServerURL string `validate:"required,url"`

	SessionStorePath string `validate:"required"`

	DownloadDir string `validate:"required"`
	// RetryMax is the number of transport-level retries. Zero keeps every
	// failure visible to the workspace immediately.
	RetryMax int `validate:"min=0,max=10"`

	ProxyMode     string `validate:"oneof=no-proxy system basic ntlm"`
	ProxyHost     string
	ProxyPort     int `validate:"min=0,max=65535"`
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	Debug   bool
	LogFile string
}

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ServerURL:        constants.DefaultServerURL,
		SessionStorePath: DefaultSessionStorePath(),
		DownloadDir:      ".",
		ProxyMode:        "no-proxy",
		ProxyPort:        8080,
	}
}

// Load reads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
// The STORECTL_URL environment variable overrides the server URL either way.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		iniFile, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		applyINI(cfg, iniFile)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	if env := os.Getenv(EnvServerURL); env != "" {
		cfg.ServerURL = env
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyINI(cfg *Config, f *ini.File) {
	server := f.Section("server")
	cfg.ServerURL = server.Key("url").MustString(cfg.ServerURL)

	session := f.Section("session")
	cfg.SessionStorePath = session.Key("store").MustString(cfg.SessionStorePath)

	transfer := f.Section("transfer")
	cfg.DownloadDir = transfer.Key("download_dir").MustString(cfg.DownloadDir)
	cfg.RetryMax = transfer.Key("retry_max").MustInt(cfg.RetryMax)

	proxy := f.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	logging := f.Section("logging")
	cfg.Debug = logging.Key("debug").MustBool(false)
	cfg.LogFile = logging.Key("log_file").String()
}

func (cfg *Config) normalize() {
	cfg.ServerURL = strings.TrimSuffix(strings.TrimSpace(cfg.ServerURL), "/")
	cfg.ProxyMode = strings.ToLower(strings.TrimSpace(cfg.ProxyMode))
	if cfg.ProxyMode == "" {
		cfg.ProxyMode = "no-proxy"
	}
	cfg.SessionStorePath = pathutil.ExpandHome(cfg.SessionStorePath)
	cfg.DownloadDir = pathutil.ExpandHome(cfg.DownloadDir)
	cfg.LogFile = pathutil.ExpandHome(cfg.LogFile)
}

// Validate checks field constraints.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q check (value %v)", ErrInvalidConfig, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Save writes the configuration to an INI file.
// Creates parent directories if they don't exist.
// The proxy password is stored in the file - ensure appropriate file permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name string
		keys [][2]string
	}{
		{"server", [][2]string{{"url", cfg.ServerURL}}},
		{"session", [][2]string{{"store", cfg.SessionStorePath}}},
		{"transfer", [][2]string{
			{"download_dir", cfg.DownloadDir},
			{"retry_max", fmt.Sprintf("%d", cfg.RetryMax)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"password", cfg.ProxyPassword},
			{"no_proxy", cfg.NoProxy},
			{"warmup", fmt.Sprintf("%t", cfg.ProxyWarmup)},
		}},
		{"logging", [][2]string{
			{"debug", fmt.Sprintf("%t", cfg.Debug)},
			{"log_file", cfg.LogFile},
		}},
	}
	for _, s := range sections {
		sec, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			sec.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by CLI to determine if interactive prompt is needed.
func (cfg *Config) NeedsProxyPassword() bool {
	if cfg.ProxyMode != "basic" && cfg.ProxyMode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
