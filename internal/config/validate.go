// internal/config/validate.go
package config

import "fmt"

var validFormats = map[string]bool{"png": true, "pdf": true}
var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks configuration correctness. It performs declarative
// validation only and must not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Device.Host == "" {
		return fmt.Errorf("device.host must not be empty")
	}
	if cfg.Device.Port < 0 || cfg.Device.Port > 65535 {
		return fmt.Errorf("device.port %d out of range", cfg.Device.Port)
	}

	if cfg.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("logging.max_size_mb must not be negative")
	}
	if cfg.Logging.Level != "" && !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.Output.Format != "" && !validFormats[cfg.Output.Format] {
		return fmt.Errorf("output.format %q is not one of png, pdf", cfg.Output.Format)
	}
	if cfg.Output.DPI < 0 {
		return fmt.Errorf("output.dpi must not be negative")
	}

	return nil
}
