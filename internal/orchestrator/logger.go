package orchestrator

import "github.com/k10r/paymill-shopware/internal/domain"

// Logger receives a line for every step transition and every failure.
// processID identifies the attempt the line belongs to.
// Logging is best-effort: returned errors and panics are discarded and never
// change the outcome of a payment.
type Logger interface {
	Log(processID, message, detail string) error
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(processID, message, detail string) error

func (f LoggerFunc) Log(processID, message, detail string) error {
	return f(processID, message, detail)
}

type nopLogger struct{}

func (nopLogger) Log(string, string, string) error { return nil }

func (o *Orchestrator) log(pc *domain.ProcessingContext, message, detail string) {
	defer func() {
		_ = recover()
	}()
	_ = o.logger.Log(pc.ProcessID(), message, detail)
}
