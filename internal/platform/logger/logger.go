// Package logger provides structured logging for the simulation server.
// Every decision taken by the simulation should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides structured logging with context.
type Logger struct {
	component   string
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance writing to stdout/stderr.
func NewLogger() *Logger {
	return New(os.Stdout, os.Stderr)
}

// New creates a logger over explicit writers. Tests pass io.Discard.
func New(out, errOut io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(out, "[FLEET-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(out, "[FLEET-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(errOut, "[FLEET-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// With returns a logger that tags every line with component.
func (l *Logger) With(component string) *Logger {
	c := *l
	c.component = component
	return &c
}

func (l *Logger) line(msg string) string {
	if l.component == "" {
		return msg
	}
	return l.component + ": " + msg
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, l.line(msg))
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(2, l.line(fmt.Sprintf(format, args...)))
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, l.line(msg))
}

// Warnf logs a formatted warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(2, l.line(fmt.Sprintf(format, args...)))
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, l.line(msg))
}

// Errorf logs a formatted error.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, l.line(fmt.Sprintf(format, args...)))
}

// Event logs a simulation event in one greppable line.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Output(2, l.line(fmt.Sprintf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details)))
}
