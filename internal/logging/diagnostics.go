// Package logging adapts slog to the extractor's located diagnostics.
package logging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Benny93/irfacts/internal/ir"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one located warning or error.
type Diagnostic struct {
	Severity Severity
	Message  string
	Location ir.Location
}

// DiagnosticLogger forwards located messages to slog and keeps a copy of
// each one. It is safe for concurrent use, so one logger can serve every
// session of a pipeline run.
type DiagnosticLogger struct {
	logger *slog.Logger

	mu    sync.Mutex
	diags []Diagnostic
}

// NewDiagnosticLogger wraps logger. A nil logger discards output but still
// records diagnostics.
func NewDiagnosticLogger(logger *slog.Logger) *DiagnosticLogger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DiagnosticLogger{logger: logger}
}

// Warn logs a non-critical problem.
func (d *DiagnosticLogger) Warn(msg string, loc ir.Location) {
	d.log(SeverityWarning, slog.LevelWarn, msg, loc)
}

// Error logs a recoverable extraction error.
func (d *DiagnosticLogger) Error(msg string, loc ir.Location) {
	d.log(SeverityError, slog.LevelError, msg, loc)
}

func (d *DiagnosticLogger) log(sev Severity, level slog.Level, msg string, loc ir.Location) {
	d.mu.Lock()
	d.diags = append(d.diags, Diagnostic{Severity: sev, Message: msg, Location: loc})
	d.mu.Unlock()

	d.logger.LogAttrs(context.Background(), level, msg, LocationAttrs(loc)...)
}

// LocationAttrs returns the file, line and col attributes of loc.
func LocationAttrs(loc ir.Location) []slog.Attr {
	return []slog.Attr{
		slog.String("file", loc.File),
		slog.Int("line", loc.StartLine),
		slog.Int("col", loc.StartCol),
	}
}

// Diagnostics returns a copy of everything logged so far.
func (d *DiagnosticLogger) Diagnostics() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.diags...)
}

// Counts returns the number of warnings and errors logged so far.
func (d *DiagnosticLogger) Counts() (warnings, errors int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, diag := range d.diags {
		switch diag.Severity {
		case SeverityWarning:
			warnings++
		case SeverityError:
			errors++
		}
	}
	return warnings, errors
}

// Slog returns the underlying logger.
func (d *DiagnosticLogger) Slog() *slog.Logger {
	return d.logger
}
