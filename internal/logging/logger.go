// Package logging wires Curator's structured logging on top of logrus.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Level mirrors the loglevel values accepted by the configuration file
// (spec §6).
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Format selects the logrus formatter: "default" renders text, "json"
// renders JSON. New picks JSON for a logfile only when Format is empty;
// the config loader always supplies a format, defaulting to "default".
type Format string

const (
	FormatDefault Format = "default"
	FormatJSON    Format = "json"
)

// Config configures New.
type Config struct {
	Level     Level
	Format    Format
	LogFile   string // empty = stderr
	AddCaller bool
}

// DefaultConfig returns curator's out-of-the-box logging configuration.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: FormatDefault, AddCaller: false}
}

// New builds a logrus.Logger per cfg. The output defaults to stderr; a
// non-empty LogFile opens (or creates) the file for append and, when
// cfg.Format is empty, switches the format to JSON.
func New(cfg Config) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetLevel(toLogrusLevel(cfg.Level))
	l.SetReportCaller(cfg.AddCaller)

	format := cfg.Format
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out = f
		if format == "" {
			format = FormatJSON
		}
	}
	l.SetOutput(out)

	if format == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return l, nil
}

// ContextLogger wraps a *logrus.Logger together with a set of fields that
// are merged into every subsequent log line, plus a context-derived field
// set (run id). This mirrors the teacher's ContextLogger in
// spirit: callers derive scoped loggers with WithField/WithFields rather
// than threading raw *logrus.Logger handles everywhere.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger wraps logger with an empty field set.
func NewContextLogger(logger *logrus.Logger) *ContextLogger {
	return &ContextLogger{logger: logger, fields: logrus.Fields{}}
}

// WithField returns a derived ContextLogger carrying an additional field.
func (c *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	merged := cloneFields(c.fields)
	merged[key] = value
	return &ContextLogger{logger: c.logger, fields: merged}
}

// WithFields returns a derived ContextLogger carrying additional fields.
func (c *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	merged := cloneFields(c.fields)
	for k, v := range fields {
		merged[k] = v
	}
	return &ContextLogger{logger: c.logger, fields: merged}
}

type runIDKey struct{}

// ContextWithRunID attaches a run id to ctx for later extraction by
// WithContext. No command in this module attaches a run id, so their log
// lines carry no run_id field.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// WithContext extracts a run id (if present) from ctx and merges it in.
func (c *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	if runID, ok := ctx.Value(runIDKey{}).(string); ok && runID != "" {
		return c.WithField("run_id", runID)
	}
	return c
}

func (c *ContextLogger) entry() *logrus.Entry { return c.logger.WithFields(c.fields) }

func (c *ContextLogger) Debugf(format string, args ...interface{}) { c.entry().Debugf(format, args...) }
func (c *ContextLogger) Infof(format string, args ...interface{})  { c.entry().Infof(format, args...) }
func (c *ContextLogger) Warnf(format string, args ...interface{})  { c.entry().Warnf(format, args...) }
func (c *ContextLogger) Errorf(format string, args ...interface{}) { c.entry().Errorf(format, args...) }

func (c *ContextLogger) WithError(err error) *ContextLogger {
	return c.WithField("error", err.Error())
}

// LogOperation runs fn, logging start/duration/outcome at info (or error on
// failure). The orchestrator wraps each action's Validate/Build/Execute
// run in it.
func LogOperation(log *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	log.WithField("operation", operation).Infof("starting")
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		log.WithField("operation", operation).WithField("elapsed_ms", elapsed.Milliseconds()).WithError(err).Errorf("failed")
		return err
	}
	log.WithField("operation", operation).WithField("elapsed_ms", elapsed.Milliseconds()).Infof("completed")
	return nil
}

func cloneFields(f logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(f)+2)
	for k, v := range f {
		out[k] = v
	}
	return out
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarning:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelCritical:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
