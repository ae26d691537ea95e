// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Every coupling point
// with the host application's UI (URLs, selectors, labels) lives here so that
// a UI change on the host side is a config edit, not a code change.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts" yaml:"timeouts"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the driven browser instance.
//
// The browser runs non-headless on purpose: the host application behaves
// differently (or blocks automation outright) without a visible window, and
// silent kiosk printing only works against a real window.
type BrowserConfig struct {
	// ExecPath overrides the OS-specific executable lookup when set.
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// UserDataDir overrides the OS-specific default profile location when set.
	// The profile must already be signed in to the host application.
	UserDataDir string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	// ProfileName selects the profile inside the user data dir.
	ProfileName string   `mapstructure:"profile_name" yaml:"profile_name"`
	Headless    bool     `mapstructure:"headless" yaml:"headless"`
	Args        []string `mapstructure:"args" yaml:"args"`
}

// WorkspaceConfig names every host-UI coupling point. These selectors and
// labels are fragile by nature; when the host application ships a redesign,
// this struct is the single place to update.
type WorkspaceConfig struct {
	// DirectoryURL is the page listing all workspaces for the signed-in user.
	DirectoryURL string `mapstructure:"directory_url" yaml:"directory_url"`
	// LinkSelector matches the clickable workspace entries on the directory
	// page; entries are matched against the workspace name by label substring.
	LinkSelector string `mapstructure:"link_selector" yaml:"link_selector"`
	// TreeItemRole is the ARIA role marking one page entry in the navigation tree.
	TreeItemRole string `mapstructure:"tree_item_role" yaml:"tree_item_role"`
	// ExpandSelector matches the clickable affordance that reveals a tree
	// item's collapsed children.
	ExpandSelector string `mapstructure:"expand_selector" yaml:"expand_selector"`
	// LoadedAttrPrefix is the data-attribute prefix the host stamps on a
	// subtree once its children have been fetched and rendered.
	LoadedAttrPrefix string `mapstructure:"loaded_attr_prefix" yaml:"loaded_attr_prefix"`
	// MoreOptionsLabel is the (localized) accessible label of the per-item
	// "more options" affordance.
	MoreOptionsLabel string `mapstructure:"more_options_label" yaml:"more_options_label"`
	// MenuItemRole is the ARIA role of entries in the opened options menu.
	MenuItemRole string `mapstructure:"menu_item_role" yaml:"menu_item_role"`
	// PDFMenuToken is the literal, case-sensitive substring identifying the
	// PDF export entry in the options menu.
	PDFMenuToken string `mapstructure:"pdf_menu_token" yaml:"pdf_menu_token"`
}

// TimeoutConfig bounds every browser interaction. Timeouts are per operation;
// a slow render in one step does not eat into the time allowed for another.
type TimeoutConfig struct {
	Navigation     time.Duration `mapstructure:"navigation" yaml:"navigation"`
	WorkspaceFind  time.Duration `mapstructure:"workspace_find" yaml:"workspace_find"`
	AffordanceWait time.Duration `mapstructure:"affordance_wait" yaml:"affordance_wait"`
	SettleInterval time.Duration `mapstructure:"settle_interval" yaml:"settle_interval"`
	MenuWait       time.Duration `mapstructure:"menu_wait" yaml:"menu_wait"`
	PopupWait      time.Duration `mapstructure:"popup_wait" yaml:"popup_wait"`
	PrintWait      time.Duration `mapstructure:"print_wait" yaml:"print_wait"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// SetDefaults registers the default value for every key on the given viper
// instance. Defaults describe a host UI built on standard ARIA roles; real
// deployments are expected to override the workspace section.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "treexport")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)

	v.SetDefault("browser.profile_name", "Default")
	v.SetDefault("browser.headless", false)

	v.SetDefault("workspace.link_selector", "a")
	v.SetDefault("workspace.tree_item_role", "treeitem")
	v.SetDefault("workspace.expand_selector", `[role="treeitem"] [aria-expanded="false"]`)
	v.SetDefault("workspace.loaded_attr_prefix", "data-loaded")
	v.SetDefault("workspace.more_options_label", "More")
	v.SetDefault("workspace.menu_item_role", "menuitem")
	v.SetDefault("workspace.pdf_menu_token", "PDF")

	v.SetDefault("timeouts.navigation", 30*time.Second)
	v.SetDefault("timeouts.workspace_find", 10*time.Second)
	v.SetDefault("timeouts.affordance_wait", 5*time.Second)
	v.SetDefault("timeouts.settle_interval", 500*time.Millisecond)
	v.SetDefault("timeouts.menu_wait", 5*time.Second)
	v.SetDefault("timeouts.popup_wait", 10*time.Second)
	v.SetDefault("timeouts.print_wait", 10*time.Second)
	v.SetDefault("timeouts.poll_interval", 250*time.Millisecond)
}

// Load unmarshals the viper state into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the run controller cannot work with.
func (c *Config) Validate() error {
	if c.Workspace.DirectoryURL == "" {
		return fmt.Errorf("workspace.directory_url is required (set it in the config file or via TREEXPORT_WORKSPACE_DIRECTORY_URL)")
	}
	if c.Workspace.PDFMenuToken == "" {
		return fmt.Errorf("workspace.pdf_menu_token must not be empty")
	}
	if c.Timeouts.PollInterval <= 0 {
		return fmt.Errorf("timeouts.poll_interval must be positive")
	}
	if c.Timeouts.SettleInterval <= 0 {
		return fmt.Errorf("timeouts.settle_interval must be positive")
	}
	return nil
}
