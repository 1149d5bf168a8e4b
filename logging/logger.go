// Package logging provides the engine's structured logger: a thin wrapper
// around logrus.Logger that stamps every entry with the engine/rule
// context a WAF audit trail needs (transaction ID, rule ID, phase) instead
// of the request-auth context a typical web service logs.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried through a transaction.
type ContextKey string

const (
	// TxIDKey is the context key for the current transaction ID.
	TxIDKey ContextKey = "tx_id"
	// RuleIDKey is the context key for the currently-executing rule ID.
	RuleIDKey ContextKey = "rule_id"
	// PhaseKey is the context key for the currently-executing phase name.
	PhaseKey ContextKey = "phase"
)

// Logger wraps logrus.Logger with the engine's field conventions.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a Logger for component (e.g. "operator", "managedcollection").
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv builds a Logger using the RULECORE_LOG_LEVEL and
// RULECORE_LOG_FORMAT environment variables, defaulting to "info"/"json".
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("RULECORE_LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("RULECORE_LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext builds an entry carrying whatever tx/rule/phase values ctx
// holds.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if txID := ctx.Value(TxIDKey); txID != nil {
		entry = entry.WithField("tx_id", txID)
	}
	if ruleID := ctx.Value(RuleIDKey); ruleID != nil {
		entry = entry.WithField("rule_id", ruleID)
	}
	if phase := ctx.Value(PhaseKey); phase != nil {
		entry = entry.WithField("phase", phase)
	}
	return entry
}

// WithTxID builds an entry stamped with a transaction ID directly, for
// call sites that have the ID but not a context.Context handy.
func (l *Logger) WithTxID(txID string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"component": l.component,
		"tx_id":     txID,
	})
}

// WithFields builds an entry with caller-supplied fields plus the
// component tag.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// WithError builds an entry carrying err's message alongside the
// component tag.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"component": l.component,
		"error":     err.Error(),
	})
}

// SetOutput redirects the logger's output (tests point this at a buffer).
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// WithTxID stamps ctx with a transaction ID.
func WithTxID(ctx context.Context, txID string) context.Context {
	return context.WithValue(ctx, TxIDKey, txID)
}

// GetTxID retrieves the transaction ID stamped on ctx, if any.
func GetTxID(ctx context.Context) string {
	if txID, ok := ctx.Value(TxIDKey).(string); ok {
		return txID
	}
	return ""
}

// WithRuleID stamps ctx with the currently-executing rule ID.
func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, RuleIDKey, ruleID)
}

// GetRuleID retrieves the rule ID stamped on ctx, if any.
func GetRuleID(ctx context.Context) string {
	if ruleID, ok := ctx.Value(RuleIDKey).(string); ok {
		return ruleID
	}
	return ""
}

// WithPhase stamps ctx with the currently-executing phase name.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, PhaseKey, phase)
}

// GetPhase retrieves the phase name stamped on ctx, if any.
func GetPhase(ctx context.Context) string {
	if phase, ok := ctx.Value(PhaseKey).(string); ok {
		return phase
	}
	return ""
}
