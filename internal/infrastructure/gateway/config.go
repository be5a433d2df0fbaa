package gateway

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultBeaconTimeout = 2 * time.Second
)

// Errors for gateway configuration
var (
	ErrConfigMissingBaseURL = errors.New("gateway: base URL is required")
	ErrConfigInvalidBaseURL = errors.New("gateway: base URL must be an absolute http(s) URL")
	ErrConfigInvalidTimeout = errors.New("gateway: timeouts must not be negative")
)

// Config holds the server cart endpoint settings
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api/v1
	BaseURL string
	// Timeout bounds Fetch and Merge round trips
	Timeout time.Duration
	// BeaconTimeout bounds a single teardown beacon
	BeaconTimeout time.Duration
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidBaseURL
	}
	if c.Timeout < 0 || c.BeaconTimeout < 0 {
		return ErrConfigInvalidTimeout
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	if out.BeaconTimeout == 0 {
		out.BeaconTimeout = DefaultBeaconTimeout
	}
	return out
}

func (c *Config) endpoint(path string) string {
	return c.BaseURL + path
}
