package orchestrator_test

import (
	"context"
	"errors"
	"sync"

	"github.com/k10r/paymill-shopware/internal/gateway"
)

type response struct {
	env gateway.Envelope
	err error
}

// fakeResource records every create and replays scripted responses in order.
// Once the script runs out the last response repeats.
type fakeResource struct {
	mu        sync.Mutex
	kind      gateway.ResourceKind
	responses []response
	calls     []gateway.Params
}

func (f *fakeResource) Create(_ context.Context, params gateway.Params) (gateway.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, params)
	if len(f.responses) == 0 {
		return gateway.Envelope{}, errors.New("no response scripted for " + string(f.kind))
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	return r.env, r.err
}

func (f *fakeResource) Fetch(context.Context, string) (gateway.Envelope, error) {
	return gateway.Envelope{}, errors.New("fetch not supported")
}

func (f *fakeResource) reply(fields map[string]any) *fakeResource {
	f.responses = append(f.responses, response{env: gateway.NewEnvelope(fields)})
	return f
}

func (f *fakeResource) replyEnvelope(env gateway.Envelope) *fakeResource {
	f.responses = append(f.responses, response{env: env})
	return f
}

func (f *fakeResource) fail(err error) *fakeResource {
	f.responses = append(f.responses, response{err: err})
	return f
}

func (f *fakeResource) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeResource) Call(i int) gateway.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type fakeGateway struct {
	clients           *fakeResource
	paymentMethods    *fakeResource
	preauthorizations *fakeResource
	transactions      *fakeResource
	refunds           *fakeResource
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		clients:           &fakeResource{kind: gateway.KindClient},
		paymentMethods:    &fakeResource{kind: gateway.KindPaymentMethod},
		preauthorizations: &fakeResource{kind: gateway.KindPreauthorization},
		transactions:      &fakeResource{kind: gateway.KindTransaction},
		refunds:           &fakeResource{kind: gateway.KindRefund},
	}
}

func (g *fakeGateway) Clients() gateway.Clients {
	return gateway.Clients{
		Clients:           g.clients,
		PaymentMethods:    g.paymentMethods,
		Preauthorizations: g.preauthorizations,
		Transactions:      g.transactions,
		Refunds:           g.refunds,
	}
}

func (g *fakeGateway) TotalCalls() int {
	return g.clients.CallCount() + g.paymentMethods.CallCount() +
		g.preauthorizations.CallCount() + g.transactions.CallCount() + g.refunds.CallCount()
}

type logEntry struct {
	processID string
	message   string
	detail    string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Log(processID, message, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{processID: processID, message: message, detail: detail})
	return nil
}

func (l *recordingLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.message)
	}
	return out
}
