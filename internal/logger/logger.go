package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the global logger instance. Helpers are no-ops while it is nil.
	Logger *log.Logger
)

// Config holds logger configuration.
type Config struct {
	Debug bool
	// Dir receives intent.log; empty means stderr only.
	Dir string
}

// Init initializes the global logger.
func Init(cfg Config) error {
	var writer io.Writer = os.Stderr
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return fmt.Errorf("create log dir %q: %w", cfg.Dir, err)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "intent.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "intent",
	})
	return nil
}

func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Printf lets the logger stand in where a printf-style writer is expected
// (gorm's logger). Messages are logged at warn level.
type Printf struct{}

func (Printf) Printf(format string, args ...interface{}) {
	Warn(fmt.Sprintf(format, args...))
}

// Cron adapts the global logger to robfig/cron's Logger interface.
type Cron struct{}

func (Cron) Info(msg string, keysAndValues ...interface{}) {
	Debug("cron: "+msg, keysAndValues...)
}

func (Cron) Error(err error, msg string, keysAndValues ...interface{}) {
	Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
