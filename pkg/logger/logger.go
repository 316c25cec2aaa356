package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, encoding and destination for the process log.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or a file path
	TimeFormat string
}

// Logger wraps zerolog with a small typed-field API. An optional
// collector aggregates error lines for publishing.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	zl := zerolog.New(out).With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()
	return &Logger{zl: zl}, nil
}

// Field is one structured key/value pair on a log line.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, v string) Field                 { return Field{key, v} }
func Int(key string, v int) Field                { return Field{key, v} }
func Int64(key string, v int64) Field            { return Field{key, v} }
func Duration(key string, v time.Duration) Field { return Field{key, v} }
func Error(err error) Field                      { return Field{"error", err} }

// Strings flattens a slice into one comma-separated field.
func Strings(key string, v []string) Field {
	return Field{key, strings.Join(v, ",")}
}

func apply(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case int64:
			e = e.Int64(f.Key, v)
		case time.Duration:
			e = e.Dur(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	return e
}

func (l *Logger) Debug(msg string, fields ...Field) {
	apply(l.zl.Debug(), fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields ...Field) {
	apply(l.zl.Info(), fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	apply(l.zl.Warn(), fields).Msg(msg)
}

func (l *Logger) Error(msg string, fields ...Field) {
	apply(l.zl.Error(), fields).Msg(msg)
	l.collect("error", msg, fields)
}

// AddCollector attaches an aggregating collector for error lines,
// replacing any previous one.
func (l *Logger) AddCollector(cfg *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(cfg)
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.LastIndex(file, "PaperTune"); i >= 0 {
			file = file[i:]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	kv := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			kv[f.Key] = err.Error()
			continue
		}
		kv[f.Key] = f.Value
	}
	l.collector.Add(level, msg, kv, caller)
}
