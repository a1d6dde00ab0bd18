package log

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level   string          `mapstructure:"level"`
	Pattern string          `mapstructure:"pattern"`
	Time    string          `mapstructure:"time"`
	File    FileAppenderOpt `mapstructure:"file"`
}

const (
	DefaultPattern = "%time [%level] %field %msg%n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)
