package logging

import (
	"errors"
	"log/slog"

	"github.com/k10r/paymill-shopware/internal/orchestrator"
	"go.uber.org/zap"
)

const component = "payment_orchestrator"

type slogSink struct {
	logger *slog.Logger
}

// NewSlogLogger writes diagnostic entries to a slog logger at debug level.
func NewSlogLogger(logger *slog.Logger) orchestrator.Logger {
	return &slogSink{logger: logger.With("component", component)}
}

func (s *slogSink) Log(processID, message, detail string) error {
	s.logger.Debug(message, "process_id", processID, "detail", detail)
	return nil
}

type zapSink struct {
	logger *zap.Logger
}

// NewZapLogger writes diagnostic entries to a zap logger.
func NewZapLogger(logger *zap.Logger) orchestrator.Logger {
	return &zapSink{logger: logger.With(zap.String("component", component))}
}

func (z *zapSink) Log(processID, message, detail string) error {
	z.logger.Info(message, zap.String("process_id", processID), zap.String("detail", detail))
	return nil
}

type multi []orchestrator.Logger

// Multi fans every entry out to all non-nil loggers and joins their errors.
// A panicking sink does not stop the others.
func Multi(loggers ...orchestrator.Logger) orchestrator.Logger {
	out := make(multi, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multi) Log(processID, message, detail string) error {
	var errs []error
	for _, l := range m {
		if err := logOne(l, processID, message, detail); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func logOne(l orchestrator.Logger, processID, message, detail string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("logger panicked")
		}
	}()
	return l.Log(processID, message, detail)
}
