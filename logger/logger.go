package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLogLines is the default number of lines kept in the log file
const MaxLogLines = 5000

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel, defaulting to INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// File is what the logger writes to. *os.File satisfies it.
type File interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Close() error
}

// LimitedLogger is a levelled logger whose file never grows past maxLines.
// It also implements io.Writer so the standard log package can be pointed at it.
type LimitedLogger struct {
	mu        sync.Mutex
	file      File
	level     LogLevel
	lineCount int
	maxLines  int
	now       func() time.Time
}

var (
	globalMu     sync.RWMutex
	globalLogger *LimitedLogger
	// used until Install is called
	defaultLogger = &LimitedLogger{file: stderrFile{}, level: LogLevelInfo, maxLines: -1, now: time.Now}
)

// NewLimitedLogger creates a logger appending to file and installs it as the
// package-level logger
func NewLimitedLogger(file File, level LogLevel) *LimitedLogger {
	ll := newLogger(file, level, MaxLogLines)
	Install(ll)
	return ll
}

func newLogger(file File, level LogLevel, maxLines int) *LimitedLogger {
	ll := &LimitedLogger{file: file, level: level, maxLines: maxLines, now: time.Now}
	ll.lineCount = ll.countLines()
	return ll
}

// Install makes ll the target of the package-level functions
func Install(ll *LimitedLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = ll
}

func current() *LimitedLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return defaultLogger
}

// SetLevel sets the logging level
func (ll *LimitedLogger) SetLevel(level LogLevel) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.level = level
}

// SetGlobalLevel sets the logging level on the package-level logger
func SetGlobalLevel(level LogLevel) {
	current().SetLevel(level)
}

func (ll *LimitedLogger) enabled(level LogLevel) bool {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	return level >= ll.level
}

func (ll *LimitedLogger) logf(level LogLevel, format string, v ...any) {
	if !ll.enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	line := fmt.Sprintf("%s [%s] %s\n", ll.now().Format("2006/01/02 15:04:05"), level, strings.TrimRight(msg, "\n"))
	ll.Write([]byte(line))
}

func (ll *LimitedLogger) Trace(format string, v ...any) { ll.logf(LogLevelTrace, format, v...) }
func (ll *LimitedLogger) Debug(format string, v ...any) { ll.logf(LogLevelDebug, format, v...) }
func (ll *LimitedLogger) Info(format string, v ...any)  { ll.logf(LogLevelInfo, format, v...) }
func (ll *LimitedLogger) Warn(format string, v ...any)  { ll.logf(LogLevelWarn, format, v...) }
func (ll *LimitedLogger) Error(format string, v ...any) { ll.logf(LogLevelError, format, v...) }

// Fatal logs an error message and exits with code 1
func (ll *LimitedLogger) Fatal(format string, v ...any) {
	ll.logf(LogLevelError, format, v...)
	os.Exit(1)
}

func Debug(format string, v ...any) { current().Debug(format, v...) }
func Info(format string, v ...any)  { current().Info(format, v...) }
func Warn(format string, v ...any)  { current().Warn(format, v...) }
func Error(format string, v ...any) { current().Error(format, v...) }
func Fatal(format string, v ...any) { current().Fatal(format, v...) }

var noop = func() {}

// Trace returns a function that logs the time since Trace was called.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	ll := current()
	if !ll.enabled(LogLevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		ll.Trace("%s: %v", name, time.Since(start))
	}
}

// Write implements io.Writer
func (ll *LimitedLogger) Write(p []byte) (int, error) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	n, err := ll.file.Write(p)
	if err != nil {
		return n, err
	}
	ll.lineCount += strings.Count(string(p[:n]), "\n")
	if ll.maxLines > 0 && ll.lineCount > ll.maxLines {
		ll.trim()
	}
	return n, nil
}

// trim rewrites the file with only its last maxLines lines
func (ll *LimitedLogger) trim() {
	if _, err := ll.file.Seek(0, io.SeekStart); err != nil {
		return
	}
	keep := make([]string, 0, ll.maxLines+1)
	scanner := bufio.NewScanner(ll.file)
	for scanner.Scan() {
		keep = append(keep, scanner.Text())
		if len(keep) > ll.maxLines {
			keep = keep[1:]
		}
	}

	if err := ll.file.Truncate(0); err != nil {
		ll.file.Seek(0, io.SeekEnd)
		return
	}
	ll.file.Seek(0, io.SeekStart)
	w := bufio.NewWriter(ll.file)
	for _, line := range keep {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	w.Flush()
	ll.lineCount = len(keep)
}

func (ll *LimitedLogger) countLines() int {
	if ll.maxLines <= 0 {
		return 0
	}
	if _, err := ll.file.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	count := 0
	scanner := bufio.NewScanner(ll.file)
	for scanner.Scan() {
		count++
	}
	ll.file.Seek(0, io.SeekEnd)
	return count
}

// Close closes the underlying file
func (ll *LimitedLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	return ll.file.Close()
}

// stderrFile lets the default logger write to stderr without trimming
type stderrFile struct{}

func (stderrFile) Read([]byte) (int, error) { return 0, io.EOF }

func (stderrFile) Write(p []byte) (int, error) { return os.Stderr.Write(p) }

func (stderrFile) Seek(int64, int) (int64, error) { return 0, nil }

func (stderrFile) Truncate(int64) error { return nil }

func (stderrFile) Close() error { return nil }
