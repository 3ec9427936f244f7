package logger

import "os"

// Config controls level, output format and file rotation.
type Config struct {
	Level      Level
	Format     string // json, text, console
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Fields     map[string]string
}

// NewDefaultConfig returns console logging at info level with static fields
// identifying the process.
func NewDefaultConfig() *Config {
	hostname, _ := os.Hostname()

	fields := map[string]string{
		"service":  "event-hub",
		"hostname": hostname,
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		fields["environment"] = env
	}

	return &Config{
		Level:      LevelInfo,
		Format:     "console",
		Output:     "stdout",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Fields:     fields,
	}
}
