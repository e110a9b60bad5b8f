// Package config handles runtime configuration loading and management.
package config

// Config holds all runtime settings.
type Config struct {
	Mission MissionConfig `yaml:"mission"`
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Debug   DebugConfig   `yaml:"debug"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`

	// Experimental toggles named features that are off by default.
	Experimental []string `yaml:"experimental"`
}

// MissionConfig selects the mission to load and where to spawn.
type MissionConfig struct {
	Name  string `yaml:"name"`
	Spawn string `yaml:"spawn"`
}

// ServerConfig holds debug endpoint settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AudioConfig holds audio settings.
type AudioConfig struct {
	MasterVolume float32 `yaml:"master_volume"`
	Muted        bool    `yaml:"muted"`
}

// DebugConfig holds the debug visualization toggles.
type DebugConfig struct {
	Physics bool `yaml:"physics"`
	Portals bool `yaml:"portals"`
	Draw    bool `yaml:"draw"`
	ShowIDs bool `yaml:"show_ids"`
}

// DataConfig holds data file paths.
type DataConfig struct {
	AssetRoot string `yaml:"asset_root"`
	SaveFile  string `yaml:"save_file"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Mission: MissionConfig{
			Name:  "miss2",
			Spawn: "default",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Audio: AudioConfig{
			MasterVolume: 0.8,
			Muted:        false,
		},
		Data: DataConfig{
			AssetRoot: "data",
			SaveFile:  "saves.db",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// HasExperiment reports whether a named experimental feature is on.
func (c *Config) HasExperiment(name string) bool {
	for _, e := range c.Experimental {
		if e == name {
			return true
		}
	}
	return false
}
