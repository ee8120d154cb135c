package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields logrus.Fields) Logger
	WithError(err error) Logger

	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})

	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	SetLevel(level logrus.Level)
}

type logger struct {
	*logrus.Entry
}

func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return &logger{logrus.NewEntry(l)}
}

// NewNop returns a logger that drops everything, used by tests and tools.
func NewNop() Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	l.SetLevel(logrus.PanicLevel)
	return &logger{logrus.NewEntry(l)}
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{l.Entry.WithField(key, value)}
}

func (l *logger) WithFields(fields logrus.Fields) Logger {
	return &logger{l.Entry.WithFields(fields)}
}

func (l *logger) WithError(err error) Logger {
	return &logger{l.Entry.WithError(err)}
}

func (l *logger) SetLevel(level logrus.Level) {
	l.Entry.Logger.SetLevel(level)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

type ctxKey struct{}

func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func LoggerFromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return logger
	}
	return New()
}
