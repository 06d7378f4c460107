package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	appNameVar     = "APP_NAME"
	logLevelVar    = "LOG_LEVEL"
	apiURLVar      = "TASKS_API_URL"
	wsURLVar       = "TASKS_WS_URL"
	storePathVar   = "TASKS_STORE_PATH"
	httpTimeoutVar = "TASKS_HTTP_TIMEOUT"
	profileVar     = "TASKS_CONFIG"

	defaultAPIURL      = "http://localhost:8000/api"
	defaultWSURL       = "ws://localhost:8000/ws/tasks/"
	defaultHTTPTimeout = 30 * time.Second
)

type EnvVars struct {
	logLevel string
}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "taskctl")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	if e.logLevel != "" {
		return e.logLevel
	}
	return GetEnv(logLevelVar, "info")
}

type Client struct {
	apiURL  string
	wsURL   string
	timeout time.Duration
}

var _ ClientConfig = Client{}

// GetAPIURL returns the REST base URL without a trailing slash.
func (c Client) GetAPIURL() string {
	url := c.apiURL
	if url == "" {
		url = GetEnv(apiURLVar, defaultAPIURL)
	}
	return strings.TrimRight(url, "/")
}

func (c Client) GetWSURL() string {
	if c.wsURL != "" {
		return c.wsURL
	}
	return GetEnv(wsURLVar, defaultWSURL)
}

func (c Client) GetHTTPTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	if d := parseDuration(os.Getenv(httpTimeoutVar)); d > 0 {
		return d
	}
	return defaultHTTPTimeout
}

type Storage struct {
	path string
}

var _ StorageConfig = Storage{}

// GetStorePath returns the SQLite file holding persisted credentials.
func (s Storage) GetStorePath() string {
	if s.path != "" {
		return s.path
	}
	return GetEnv(storePathVar, filepath.Join(userConfigDir(), "taskctl", "session.db"))
}

// DefaultProfilePath is where the CLI looks for its YAML profile.
func DefaultProfilePath() string {
	return GetEnv(profileVar, filepath.Join(userConfigDir(), "taskctl", "config.yaml"))
}

func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
