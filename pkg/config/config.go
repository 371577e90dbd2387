package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers accepted in AppConfig.Store.Driver.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// AppConfig is the process-level configuration read from YAML.
type AppConfig struct {
	// KeyPrefix namespaces persisted settings
	KeyPrefix string `yaml:"key_prefix"`

	Store StoreConfig `yaml:"store"`

	// SitesFile optionally replaces the built-in site descriptors
	SitesFile string `yaml:"sites_file"`

	// StartURL is opened on first run and when showAbout needs a chat tab
	StartURL string `yaml:"start_url"`

	Browser BrowserConfig `yaml:"browser"`
	Timing  TimingConfig  `yaml:"timing"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`

	// DesktopNotifications mirrors background notifications to the OS
	DesktopNotifications bool `yaml:"desktop_notifications"`
}

// StoreConfig selects the settings backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// BrowserConfig configures the driven browser.
type BrowserConfig struct {
	Headless bool `yaml:"headless"`
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`
}

// TimingConfig holds the engine's timing constants.
type TimingConfig struct {
	// SyncWindow is how long self-caused observations are ignored after a sync
	SyncWindow time.Duration `yaml:"sync_window"`

	// ProbeDeadline bounds low-priority element waits (the chat footer) and
	// single browser actions such as clicks
	ProbeDeadline time.Duration `yaml:"probe_deadline"`

	// ReadinessDeadline bounds page-readiness waits
	ReadinessDeadline time.Duration `yaml:"readiness_deadline"`

	// SidebarObserveDelay postpones the native sidebar observer after load
	SidebarObserveDelay time.Duration `yaml:"sidebar_observe_delay"`

	// AboutDelay is waited after a freshly opened tab loads before showAbout
	AboutDelay time.Duration `yaml:"about_delay"`
}

// RelayConfig configures the optional websocket bridge.
type RelayConfig struct {
	// Listen is the address for remote contexts, empty disables the bridge
	Listen string `yaml:"listen"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		KeyPrefix: DefaultKeyPrefix,
		Store:     StoreConfig{Driver: DriverFile},
		StartURL:  "https://chatgpt.com/",
		Browser: BrowserConfig{
			Headless: false,
			Width:    1280,
			Height:   720,
		},
		Timing: TimingConfig{
			SyncWindow:          100 * time.Millisecond,
			ProbeDeadline:       500 * time.Millisecond,
			ReadinessDeadline:   3 * time.Second,
			SidebarObserveDelay: 500 * time.Millisecond,
			AboutDelay:          2500 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadAppConfig reads a YAML file over the defaults.
func LoadAppConfig(path string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *AppConfig) Validate() error {
	if c.KeyPrefix == "" {
		return fmt.Errorf("key_prefix must not be empty")
	}

	switch c.Store.Driver {
	case DriverFile, DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.Width, c.Browser.Height)
	}

	t := c.Timing
	if t.SyncWindow < 10*time.Millisecond || t.SyncWindow > 5*time.Second {
		return fmt.Errorf("timing.sync_window must be between 10ms and 5s, got %v", t.SyncWindow)
	}
	if t.ProbeDeadline <= 0 || t.ReadinessDeadline <= 0 {
		return fmt.Errorf("timing deadlines must be positive")
	}
	if t.SidebarObserveDelay < 0 || t.AboutDelay < 0 {
		return fmt.Errorf("timing delays must not be negative")
	}

	return nil
}

// OpenStore builds the Store selected by the configuration.
func (c *AppConfig) OpenStore() (Store, error) {
	switch c.Store.Driver {
	case DriverMemory:
		return NewMemoryStore(nil), nil
	case DriverSQLite:
		return OpenSQLiteStore(c.Store.Path)
	default:
		return NewFileStore(c.Store.Path)
	}
}
