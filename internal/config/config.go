package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	ClientConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type ClientConfig interface {
	GetAPIURL() string
	GetWSURL() string
	GetHTTPTimeout() time.Duration
}

type StorageConfig interface {
	GetStorePath() string
}

// Profile is the on-disk YAML form of the client settings. Empty fields fall
// through to environment variables and then to defaults.
type Profile struct {
	APIURL      string        `yaml:"api_url"`
	WSURL       string        `yaml:"ws_url"`
	StorePath   string        `yaml:"store_path"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	LogLevel    string        `yaml:"log_level"`
}

type mainConfig struct {
	EnvVars
	Client
	Storage
}

// New returns a configuration built from environment variables and defaults only.
func New() Config {
	return mainConfig{
		EnvVars: EnvVars{},
		Client:  Client{},
		Storage: Storage{},
	}
}

// Load layers, lowest precedence first: defaults, the YAML profile at path (if
// it exists), a .env file in the working directory, process environment, and
// finally overrides (typically command line flags).
func Load(path string, overrides Profile) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var file Profile
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading profile %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &file); err != nil {
				return nil, fmt.Errorf("parsing profile %s: %w", path, err)
			}
		}
	}

	resolved := merge(file, overrides)
	return mainConfig{
		EnvVars: EnvVars{logLevel: resolved.LogLevel},
		Client:  Client{apiURL: resolved.APIURL, wsURL: resolved.WSURL, timeout: resolved.HTTPTimeout},
		Storage: Storage{path: resolved.StorePath},
	}, nil
}

// merge applies file values only where the environment is unset, then overrides on top.
func merge(file, overrides Profile) Profile {
	p := Profile{
		APIURL:      os.Getenv(apiURLVar),
		WSURL:       os.Getenv(wsURLVar),
		StorePath:   os.Getenv(storePathVar),
		LogLevel:    os.Getenv(logLevelVar),
		HTTPTimeout: parseDuration(os.Getenv(httpTimeoutVar)),
	}
	fill := func(dst *string, values ...string) {
		for _, v := range values {
			if v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&p.APIURL, overrides.APIURL, p.APIURL, file.APIURL)
	fill(&p.WSURL, overrides.WSURL, p.WSURL, file.WSURL)
	fill(&p.StorePath, overrides.StorePath, p.StorePath, file.StorePath)
	fill(&p.LogLevel, overrides.LogLevel, p.LogLevel, file.LogLevel)

	switch {
	case overrides.HTTPTimeout > 0:
		p.HTTPTimeout = overrides.HTTPTimeout
	case p.HTTPTimeout > 0:
	default:
		p.HTTPTimeout = file.HTTPTimeout
	}
	return p
}
