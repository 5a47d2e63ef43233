package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pr-autopilot/pkg/models"
)

// Bounds for the monitor and automation timing knobs. Out-of-range values
// are clamped, with a warning, rather than rejected.
const (
	MinWaitDays         = 1
	MaxWaitDays         = 7
	MinReminderInterval = 1   // hours
	MaxReminderInterval = 168 // hours
	MinCheckInterval    = 5   // minutes
	MaxCheckInterval    = 60  // minutes
)

// Config represents the application configuration
type Config struct {
	GitHub struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Owner   string `yaml:"owner"`
		Repo    string `yaml:"repo"`
	} `yaml:"github"`
	Jira struct {
		BaseURL  string `yaml:"base_url"`
		Email    string `yaml:"email"`
		APIToken string `yaml:"api_token"`
	} `yaml:"jira"`
	Automation models.AutomationSettings `yaml:"automation"`
	Monitor    struct {
		Enabled       bool `yaml:"enabled"`
		CheckInterval int  `yaml:"check_interval"` // minutes
		AutoNotify    bool `yaml:"auto_notify"`
	} `yaml:"monitor"`
	Notifiers struct {
		Webhook struct {
			URL string `yaml:"url"`
		} `yaml:"webhook"`
		SMTP struct {
			Host     string   `yaml:"host"`
			Port     int      `yaml:"port"`
			User     string   `yaml:"user"`
			Password string   `yaml:"password"`
			From     string   `yaml:"from"`
			To       []string `yaml:"to"`
		} `yaml:"smtp"`
		Toast struct {
			Limit int `yaml:"limit"`
		} `yaml:"toast"`
	} `yaml:"notifiers"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	API struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"api"`
	Log struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Stdout     bool   `yaml:"stdout"`
	} `yaml:"log"`
}

// Load reads and parses the configuration file, applies defaults and
// clamps out-of-range values.
func Load(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading configuration file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	config.GitHub.Token = strings.TrimSpace(config.GitHub.Token)
	config.Jira.APIToken = strings.TrimSpace(config.Jira.APIToken)

	config.ApplyDefaults()
	config.Clamp()
	return &config, nil
}

// ApplyDefaults fills zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	def := models.DefaultAutomationSettings()
	if c.Automation.WaitDays == 0 {
		c.Automation.WaitDays = def.WaitDays
	}
	if c.Automation.ReminderInterval == 0 {
		c.Automation.ReminderInterval = def.ReminderInterval
	}
	if c.Monitor.CheckInterval == 0 {
		c.Monitor.CheckInterval = 15
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "tmp/autopilot.db"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Log.File == "" {
		c.Log.File = "logs/autopilot.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Clamp forces the timing knobs into their documented ranges, logging a
// warning for each adjustment.
func (c *Config) Clamp() {
	ClampAutomation(&c.Automation)
	c.Monitor.CheckInterval = clampInt("monitor.check_interval", c.Monitor.CheckInterval, MinCheckInterval, MaxCheckInterval)
}

// ClampAutomation forces the automation timing knobs into range. Also
// used when settings arrive through the admin surface.
func ClampAutomation(s *models.AutomationSettings) {
	s.WaitDays = clampInt("automation.wait_days", s.WaitDays, MinWaitDays, MaxWaitDays)
	s.ReminderInterval = clampInt("automation.reminder_interval", s.ReminderInterval, MinReminderInterval, MaxReminderInterval)
}

func clampInt(name string, v, min, max int) int {
	switch {
	case v < min:
		slog.Warn("Config value below minimum, clamping", "key", name, "value", v, "min", min)
		return min
	case v > max:
		slog.Warn("Config value above maximum, clamping", "key", name, "value", v, "max", max)
		return max
	}
	return v
}
