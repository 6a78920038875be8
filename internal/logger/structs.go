package logger

// Console implements a console based logger.
type Console struct {
	Enabled          bool
	UseConsoleWriter bool // human readable output instead of JSON lines
}

// Rotation configures one lumberjack rolling file.
type Rotation struct {
	Name       string // file name inside LogFile.Path
	MaxSize    int    // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
}

// LogFile implements a file based logger with one rolling file per level group.
type LogFile struct {
	Enabled  bool
	Path     string
	Compress bool

	Access Rotation
	Error  Rotation
	Info   Rotation
	Trace  Rotation
	Warn   Rotation
}

// Log implements the logger config.
type Log struct {
	LogLevel string // trace, debug, info, warn, error.

	// EnableAccessLogToConsole writes the access log to stdout as well.
	// Console.Enabled must be set too.
	EnableAccessLogToConsole bool
	ReportCaller             bool
	DisableCheckAlive        bool // do not log health check calls

	AppName     string
	ServiceName string

	Console Console
	File    LogFile
}
