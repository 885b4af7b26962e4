// Package logging adapts logrus to the scheduler's core.Logger.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/Swind/go-task-scheduler/core"
)

// LogrusLogger implements core.Logger on top of a logrus entry.
type LogrusLogger struct {
	entry *log.Entry
}

var _ core.Logger = (*LogrusLogger)(nil)

// Options configures NewLogrusLogger.
type Options struct {
	Level        string // logrus level name, e.g. "info"
	Output       io.Writer
	PrettyPrint  bool
	ReportCaller bool
}

// NewLogrusLogger builds a JSON logrus logger. Output defaults to stdout.
func NewLogrusLogger(opts Options) (*LogrusLogger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	l := log.New()
	l.SetFormatter(&log.JSONFormatter{
		PrettyPrint: opts.PrettyPrint,
	})
	l.SetReportCaller(opts.ReportCaller)
	l.SetLevel(level)
	l.SetOutput(out)

	return &LogrusLogger{entry: log.NewEntry(l)}, nil
}

// FromEntry wraps an existing logrus entry.
func FromEntry(entry *log.Entry) *LogrusLogger {
	return &LogrusLogger{entry: entry}
}

// With returns a logger that adds fields to every record.
func (l *LogrusLogger) With(fields ...core.Field) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithFields(toFields(fields))}
}

func (l *LogrusLogger) Debug(msg string, fields ...core.Field) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, fields ...core.Field) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, fields ...core.Field) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, fields ...core.Field) {
	l.entry.WithFields(toFields(fields)).Error(msg)
}

func toFields(fields []core.Field) log.Fields {
	out := make(log.Fields, len(fields))
	for _, f := range fields {
		// Store errors as text so every formatter prints the message
		if err, ok := f.Value.(error); ok {
			out[f.Key] = err.Error()
			continue
		}
		out[f.Key] = f.Value
	}
	return out
}
