// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. GHIDRA_AUTO_GHIDRA_OPEN_TOOL.
const EnvPrefix = "GHIDRA_AUTO"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Ghidra() GhidraConfig

	// Ghidra Setters
	SetGhidraOpen(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg LoggerConfig `mapstructure:"logger" yaml:"logger"`
	GhidraCfg GhidraConfig `mapstructure:"ghidra" yaml:"ghidra"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig { return c.LoggerCfg }
func (c *Config) Ghidra() GhidraConfig { return c.GhidraCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetGhidraOpen(b bool) { c.GhidraCfg.Open = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// GhidraConfig names the external tools and the on-disk project layout.
type GhidraConfig struct {
	// ImportTool is resolved through PATH and receives
	// (projectDir, projectName, -import, inputPath).
	ImportTool string `mapstructure:"import_tool" yaml:"import_tool"`
	// OpenTool is resolved through PATH and receives the project file path.
	OpenTool         string `mapstructure:"open_tool" yaml:"open_tool"`
	ProjectExtension string `mapstructure:"project_extension" yaml:"project_extension"`
	ProjectsDirName  string `mapstructure:"projects_dir_name" yaml:"projects_dir_name"`
	// ProjectsRoot overrides the $HOME/<ProjectsDirName> rule when non-empty.
	ProjectsRoot string `mapstructure:"projects_root" yaml:"projects_root"`
	// Open controls whether the open tool runs after a successful import.
	Open bool `mapstructure:"open" yaml:"open"`
}

// NewDefaultConfig builds a Config populated only from SetDefaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ghidra-auto")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Ghidra --
	v.SetDefault("ghidra.import_tool", "analyzeHeadless")
	v.SetDefault("ghidra.open_tool", "ghidra")
	v.SetDefault("ghidra.project_extension", "gpr")
	v.SetDefault("ghidra.projects_dir_name", "GhidraProjects")
	v.SetDefault("ghidra.projects_root", "")
	v.SetDefault("ghidra.open", true)
}

// BindEnvironment makes every key overridable through GHIDRA_AUTO_* variables.
// Nested keys use underscores: ghidra.open_tool -> GHIDRA_AUTO_GHIDRA_OPEN_TOOL.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.GhidraCfg.Validate(); err != nil {
		return fmt.Errorf("ghidra configuration invalid: %w", err)
	}
	switch c.LoggerCfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.LoggerCfg.Format)
	}
	return nil
}

// Validate checks the Ghidra configuration.
func (g *GhidraConfig) Validate() error {
	if strings.TrimSpace(g.ImportTool) == "" {
		return fmt.Errorf("import_tool is required")
	}
	if g.Open && strings.TrimSpace(g.OpenTool) == "" {
		return fmt.Errorf("open_tool is required when open is enabled")
	}
	if strings.TrimSpace(g.ProjectExtension) == "" {
		return fmt.Errorf("project_extension is required")
	}
	if strings.HasPrefix(g.ProjectExtension, ".") {
		return fmt.Errorf("project_extension must not start with a dot, got %q", g.ProjectExtension)
	}
	if strings.TrimSpace(g.ProjectsDirName) == "" && strings.TrimSpace(g.ProjectsRoot) == "" {
		return fmt.Errorf("either projects_dir_name or projects_root must be set")
	}
	return nil
}
