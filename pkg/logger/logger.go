// Package logger builds the zap loggers used by every migration command.
//
// Each command logs to three sinks at once: a (optionally colorized) console,
// logs/<script>.log at the configured level, and logs/<script>-error.log for
// errors only.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Dir is the directory the log files are written to. Empty disables file sinks.
	Dir string
	// Level is the minimum level for the console and info file ("debug", "info", ...).
	Level string
	// NoColor disables ANSI level colors on the console.
	NoColor bool
	// Console overrides the console sink (defaults to stderr).
	Console io.Writer
}

// Logger couples a zap logger with the files it writes to.
type Logger struct {
	*zap.Logger
	files []*os.File
}

// New creates the logger for a script such as "import-all".
func New(script string, opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	if opts.NoColor || os.Getenv("NO_COLOR") != "" {
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(console), level),
	}

	l := &Logger{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		infoFile, err := openLogFile(filepath.Join(opts.Dir, script+".log"))
		if err != nil {
			return nil, err
		}
		errorFile, err := openLogFile(filepath.Join(opts.Dir, script+"-error.log"))
		if err != nil {
			_ = infoFile.Close()
			return nil, err
		}
		l.files = append(l.files, infoFile, errorFile)

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileEnc := zapcore.NewJSONEncoder(fileCfg)
		cores = append(cores,
			zapcore.NewCore(fileEnc, zapcore.AddSync(infoFile), level),
			zapcore.NewCore(fileEnc, zapcore.AddSync(errorFile), zapcore.ErrorLevel),
		)
	}

	l.Logger = zap.New(zapcore.NewTee(cores...)).Named(script)
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Close flushes buffered entries and closes the log files.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// ParseLevel maps LOG_LEVEL values to zap levels. "warning" is accepted as an
// alias for "warn"; an empty string means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Scope returns a field naming the component that logged the entry.
func Scope(scope string) zap.Field {
	return zap.String("scope", scope)
}

// Error returns the standard error field. Nil errors are logged as a skipped field.
func Error(err error) zap.Field {
	return zap.Error(err)
}

func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}
