// internal/config/normalize.go
package config

import (
	"github.com/zavinator/cr35drv/internal/imaging"
	"github.com/zavinator/cr35drv/internal/transport"
)

const (
	defaultMaxSizeMB = 1
	defaultLevel     = "info"
	defaultFormat    = "png"
	defaultOutputDir = "."
)

// Normalize fills in defaults for fields left zero in the YAML source. It
// is allowed to mutate cfg and must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Device.Host == "" {
		cfg.Device.Host = transport.DefaultHost
	}
	if cfg.Device.Port == 0 {
		cfg.Device.Port = transport.DefaultPort
	}

	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = defaultMaxSizeMB
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLevel
	}

	if cfg.Output.Format == "" {
		cfg.Output.Format = defaultFormat
	}
	if cfg.Output.DPI == 0 {
		cfg.Output.DPI = imaging.DefaultDPI
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultOutputDir
	}
}
