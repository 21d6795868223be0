package config

// LoggingConfig configures structured log output and, when File is set,
// rotation of the on-disk log via lumberjack.
type LoggingConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format selects "json" or "text" output.
	Format string `yaml:"format"`

	// File, when set, directs log output to a rotating file instead of stdout.
	File string `yaml:"file"`

	// RotationMaxSizeMB is the size in megabytes a log file reaches before
	// it is rotated. Default: 100.
	RotationMaxSizeMB int `yaml:"rotation_max_size_mb"`

	// RetentionDays is how many days of rotated log files to keep. Default: 7.
	RetentionDays int `yaml:"retention_days"`

	// RetentionMaxBackups caps the number of rotated files kept regardless
	// of age. Default: 5.
	RetentionMaxBackups int `yaml:"retention_max_backups"`

	// Compression gzips rotated log files once they are cut.
	Compression bool `yaml:"compression"`
}
