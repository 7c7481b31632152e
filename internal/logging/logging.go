// Package logging builds the zap logger used by delimreport. Entries are JSON
// lines on stderr with the field names Cloud Logging's agent understands
// (severity, message, timestamp), so a run on a GCP runner is picked up with
// the right severity without extra configuration.
package logging

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/andywolf/delimreport/internal/security"
)

// Severity levels for structured logs.
type Severity string

const (
	SeverityDefault  Severity = "DEFAULT"
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Options configures New.
type Options struct {
	// Verbose enables debug entries.
	Verbose bool
	// Writer receives the log lines; os.Stderr when nil.
	Writer io.Writer
	// RunID and Repository are attached to every entry when set.
	RunID      string
	Repository string
	// Sanitizer masks credentials in messages and string fields. A fresh
	// sanitizer with the built-in patterns is used when nil.
	Sanitizer *security.LogSanitizer
}

// SeverityFor maps a zap level to its Cloud Logging severity.
func SeverityFor(level zapcore.Level) Severity {
	switch level {
	case zapcore.DebugLevel:
		return SeverityDebug
	case zapcore.InfoLevel:
		return SeverityInfo
	case zapcore.WarnLevel:
		return SeverityWarning
	case zapcore.ErrorLevel:
		return SeverityError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return SeverityCritical
	default:
		return SeverityDefault
	}
}

func encodeSeverity(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(string(SeverityFor(level)))
}

func encodeTimestamp(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

// EncoderConfig returns the JSON encoder settings for Cloud Logging.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		NameKey:        "logger",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeSeverity,
		EncodeTime:     encodeTimestamp,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// New creates a logger from opts.
func New(opts Options) *zap.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	sanitizer := opts.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewLogSanitizer()
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(EncoderConfig()), zapcore.AddSync(w), level)
	logger := zap.New(&sanitizingCore{Core: core, sanitizer: sanitizer}, zap.ErrorOutput(zapcore.AddSync(os.Stderr)))

	var fields []zap.Field
	if opts.RunID != "" {
		fields = append(fields, zap.String("run_id", opts.RunID))
	}
	if opts.Repository != "" {
		fields = append(fields, zap.String("repository", opts.Repository))
	}
	return logger.With(fields...)
}

// sanitizingCore masks credentials before entries reach the encoder.
type sanitizingCore struct {
	zapcore.Core
	sanitizer *security.LogSanitizer
}

func (c *sanitizingCore) With(fields []zapcore.Field) zapcore.Core {
	return &sanitizingCore{Core: c.Core.With(c.sanitizeFields(fields)), sanitizer: c.sanitizer}
}

func (c *sanitizingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sanitizingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.sanitizer.Sanitize(ent.Message)
	return c.Core.Write(ent, c.sanitizeFields(fields))
}

func (c *sanitizingCore) sanitizeFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = c.sanitizer.Sanitize(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				f = zap.String(f.Key, c.sanitizer.SanitizeError(err))
			}
		}
		out[i] = f
	}
	return out
}
