package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string            `yaml:"level" mapstructure:"level"`       // default level for all modules
	Timezone string            `yaml:"timezone" mapstructure:"timezone"` // "Local", "UTC", or an IANA name
	Console  ConsoleOutput     `yaml:"console" mapstructure:"console"`
	File     FileOutput        `yaml:"file" mapstructure:"file"`
	Modules  map[string]string `yaml:"modules" mapstructure:"modules"` // per-module level overrides
}

// ConsoleOutput represents console logging configuration.
// Console output is human-readable text without timestamps; the process
// supervisor adds them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration.
// File output is JSON with RFC3339 timestamps.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	Level   string `yaml:"level" mapstructure:"level"`
}

const (
	DefaultLogLevel = "info"
	DefaultLogPath  = "logs/aerodesk.log"
)

// DefaultConfig returns console-only logging at info level.
func DefaultConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:    DefaultLogLevel,
		Timezone: "Local",
		Console:  ConsoleOutput{Enabled: true, Level: DefaultLogLevel},
		File:     FileOutput{Enabled: false, Path: DefaultLogPath, Level: DefaultLogLevel},
		Modules:  map[string]string{},
	}
}

func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	if cfg.Console.Level == "" {
		cfg.Console.Level = cfg.Level
	}
	if cfg.File.Level == "" {
		cfg.File.Level = cfg.Level
	}
	if cfg.File.Path == "" {
		cfg.File.Path = DefaultLogPath
	}
	if cfg.Modules == nil {
		cfg.Modules = map[string]string{}
	}
}
