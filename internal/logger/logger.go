package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (lv LogLevel) String() string {
	if name, ok := levelNames[lv]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel accepts level names in any case and falls back to INFO.
func ParseLevel(s string) LogLevel {
	for lv, name := range levelNames {
		if strings.EqualFold(s, name) {
			return lv
		}
	}
	return INFO
}

type palette struct {
	level    *color.Color
	category *color.Color
}

var palettes = map[LogLevel]palette{
	DEBUG: {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {color.New(color.FgRed), color.New(color.FgRed, color.Bold)},
	FATAL: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	clockColor  = color.New(color.FgBlue)
	callerColor = color.New(color.FgMagenta)
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	mu       sync.Mutex
	min      LogLevel
	terminal io.Writer
	jsonOut  io.Writer
	logFile  *os.File
}

// NewLogger writes coloured lines to stdout and JSON lines to <dir>/<prefix>-<date>.log.
func NewLogger(dir, prefix string) *Logger {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	name := filepath.Join(dir, fmt.Sprintf("%s-%s.log", prefix, time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to create log file:", err)
	}

	l := &Logger{min: DEBUG, terminal: os.Stdout, jsonOut: file, logFile: file}
	l.Info("LOGGER", "Logging system initialized")
	l.Info("LOGGER", fmt.Sprintf("Log file: %s", name))
	return l
}

// NewConsoleLogger writes JSON lines only to w. Used by tests and tools.
func NewConsoleLogger(w io.Writer) *Logger {
	return &Logger{min: DEBUG, jsonOut: w}
}

// SetLevel drops entries below lv.
func (l *Logger) SetLevel(lv LogLevel) {
	l.mu.Lock()
	l.min = lv
	l.mu.Unlock()
}

func (l *Logger) write(lv LogLevel, category, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lv < l.min {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     lv.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.File, entry.Line = filepath.Base(file), line
	}

	if l.terminal != nil {
		io.WriteString(l.terminal, render(lv, entry))
	}
	if l.jsonOut != nil {
		if raw, err := json.Marshal(entry); err == nil {
			l.jsonOut.Write(append(raw, '\n'))
		}
	}
}

func render(lv LogLevel, entry LogEntry) string {
	p, ok := palettes[lv]
	if !ok {
		p = palettes[INFO]
	}

	var b strings.Builder
	b.WriteString(clockColor.Sprint(entry.Timestamp[11:19]))
	b.WriteByte(' ')
	b.WriteString(p.level.Sprintf("%-5s", entry.Level))
	b.WriteByte(' ')
	b.WriteString(p.category.Sprintf("[%-10s]", entry.Category))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	if entry.File != "" && entry.Line > 0 {
		b.WriteString(callerColor.Sprintf(" (%s:%d)", entry.File, entry.Line))
	}
	b.WriteByte('\n')
	return b.String()
}

func (l *Logger) Debug(category, message string) { l.write(DEBUG, category, message) }
func (l *Logger) Info(category, message string)  { l.write(INFO, category, message) }
func (l *Logger) Warn(category, message string)  { l.write(WARN, category, message) }
func (l *Logger) Error(category, message string) { l.write(ERROR, category, message) }

func (l *Logger) Fatal(category, message string) {
	l.write(FATAL, category, message)
	os.Exit(1)
}

// Domain helpers. Each records under a fixed category so log files can be
// filtered per concern.

func (l *Logger) LogRSVP(eventID, userID, message string) {
	l.write(INFO, "RSVP", fmt.Sprintf("[%s] %s - %s", eventID, userID, message))
}

func (l *Logger) LogWaitlist(action, eventID, message string) {
	l.write(INFO, "WAITLIST", fmt.Sprintf("[%s] %s - %s", action, eventID, message))
}

func (l *Logger) LogBringList(action, itemID, message string) {
	l.write(INFO, "BRINGLIST", fmt.Sprintf("[%s] %s - %s", action, itemID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.write(INFO, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.write(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.write(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.write(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
