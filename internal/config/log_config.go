package config

import "log/slog"

type LogConfig struct {
	Level  string `yaml:"level"  env:"TFS_LOG_LEVEL"  env-default:"info"`
	Pretty bool   `yaml:"pretty" env:"TFS_LOG_PRETTY"`
}

// SlogLevel parses Level, falling back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
