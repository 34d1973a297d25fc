package logging

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatText    = "text"
)

// Log outputs.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Environment variables that override the configured level and format.
const (
	EnvLogLevel  = "UPLOADWIZ_LOG_LEVEL"
	EnvLogFormat = "UPLOADWIZ_LOG_FORMAT"
)

// Config describes how a logger is built.
type Config struct {
	// Level is a zerolog level name; unknown values mean info.
	Level string

	// Format is json, console or text (an alias for console).
	Format string

	// Output is stderr, stdout or file.
	Output string

	// File is the log file path used when Output is file.
	File string

	// Caller adds the source location to every event.
	Caller bool
}

// DefaultConfig logs info and above as JSON to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatJSON,
		Output: OutputStderr,
	}
}
