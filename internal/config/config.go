// internal/config/config.go
package config

// Config is the top-level driver configuration: where the device lives, how
// the driver logs, and where captured frames land on disk.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Logging LoggingConfig `yaml:"logging"`
	Output  OutputConfig  `yaml:"output"`
}

// DeviceConfig addresses the CR35 control socket.
type DeviceConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	DefaultMode uint32 `yaml:"default_mode"`
}

// LoggingConfig controls where structured log lines go and when the log
// file rotates.
type LoggingConfig struct {
	Path      string `yaml:"path"`
	Level     string `yaml:"level"` // debug, info, warn, error
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// OutputConfig controls where rasterized frames are written and in what
// form.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"` // png, pdf
	DPI       int    `yaml:"dpi"`
}
