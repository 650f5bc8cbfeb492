package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"liedar/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *logrus.Logger
	warningLog *logrus.Logger
	errorLog   *logrus.Logger
	fields     logrus.Fields
	logDir     string
	files      []*os.File
	mu         *sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Logger{logDir: cfg.LogDirectory, mu: &sync.Mutex{}}
	writers := make(map[string]io.Writer, 3)
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		f, err := l.openLogFile(name)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.files = append(l.files, f)
		writers[name] = f
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	l.infoLog = newLevelLogger(io.MultiWriter(os.Stdout, writers[InfoFile]), level)
	l.warningLog = newLevelLogger(io.MultiWriter(os.Stdout, writers[WarningFile]), level)
	l.errorLog = newLevelLogger(io.MultiWriter(os.Stderr, writers[ErrorFile]), level)
	return l, nil
}

// NewWriterLogger logs every level to w only. Used by tools and tests that
// have no log directory.
func NewWriterLogger(w io.Writer) *Logger {
	lg := newLevelLogger(w, logrus.InfoLevel)
	return &Logger{infoLog: lg, warningLog: lg, errorLog: lg, mu: &sync.Mutex{}}
}

func newLevelLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(w)
	lg.SetLevel(level)
	lg.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	return lg
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	path := filepath.Join(l.logDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// With returns a Logger that attaches fields to every entry. It shares
// outputs with l.
func (l *Logger) With(fields logrus.Fields) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	cp := *l
	cp.fields = merged
	return &cp
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.WithFields(l.fields).Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.WithFields(l.fields).Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.WithFields(l.fields).Errorf(format, v...)
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))

	l.mu.Lock()
	err := os.Truncate(filePath, 0)
	l.mu.Unlock()
	if err != nil {
		l.Error("Error clearing %s: %v", fileName, err)
		return err
	}

	l.Info("File %s has been cleared.", fileName)
	return nil
}

// Close releases the log files.
func (l *Logger) Close() error {
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
