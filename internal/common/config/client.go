package config

import "time"

// ClientConfig configures the resilient API client used by wsctl.
// The VITE_API_* variables are shared with the browser build so one .env
// drives both.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	TimeoutMillis  int           `yaml:"timeout_ms"` // overrides Timeout, matches VITE_API_DEFAULT_TIMEOUT
	MaxRetries     int           `yaml:"max_retries"`
	EnableRetry    bool          `yaml:"enable_retry"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	LoggingEnabled bool          `yaml:"logging_enabled"`
	LogLevel       string        `yaml:"log_level"`
	MaxLogEntries  int           `yaml:"max_log_entries"`
	CredentialsDir string        `yaml:"credentials_dir"`
	// CredentialStore is auto, keyring or file. auto uses the system keyring
	// when it is reachable and the credentials file otherwise.
	CredentialStore string       `yaml:"credential_store"`
	Logger          LoggerConfig `yaml:"logger"`
}

func (c *ClientConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:5235/api"
	}
	if c.TimeoutMillis > 0 {
		c.Timeout = time.Duration(c.TimeoutMillis) * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 300 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = 100
	}
	if c.CredentialStore == "" {
		c.CredentialStore = "auto"
	}
}

// DefaultClientConfig is used when no client.yaml can be found
func DefaultClientConfig() *ClientConfig {
	c := &ClientConfig{
		EnableRetry: true,
		MaxRetries:  3,
		Logger:      LoggerConfig{Level: "warn", Format: "console", Output: "stderr"},
	}
	c.applyDefaults()
	return c
}
