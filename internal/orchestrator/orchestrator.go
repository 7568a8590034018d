// Package orchestrator drives the payment gateway through the client,
// payment method, charge and correction steps of one processing attempt.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
)

// Orchestrator is stateless across calls; every attempt carries its state in
// a *domain.ProcessingContext.
type Orchestrator struct {
	clients                gateway.Clients
	logger                 Logger
	preauthorizeOnMismatch bool
	validate               *validator.Validate
}

type Option func(*Orchestrator)

// WithLogger injects the diagnostic logger. A nil logger is a no-op.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPreauthorizeOnMismatch makes an immediate capture with differing
// authorized and basket amounts hold the authorized amount and capture the
// basket against it, instead of charging and correcting.
func WithPreauthorizeOnMismatch(enabled bool) Option {
	return func(o *Orchestrator) {
		o.preauthorizeOnMismatch = enabled
	}
}

func New(clients gateway.Clients, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		clients:  clients,
		logger:   nopLogger{},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mode reports the path ProcessPayment would take for pc.
func (o *Orchestrator) Mode(pc *domain.ProcessingContext, captureImmediately bool) domain.Mode {
	return domain.SelectMode(pc, captureImmediately, o.preauthorizeOnMismatch)
}

// ProcessPayment runs one payment attempt. On failure the error code is
// recorded on pc; created client and payment method ids are kept so a retry
// can reuse them.
func (o *Orchestrator) ProcessPayment(ctx context.Context, pc *domain.ProcessingContext, captureImmediately bool) bool {
	if field := pc.IssuedIdentifier(); field != "" {
		err := domain.NewIdentifierAlreadySetError(field)
		o.log(pc, "Context already processed.", err.Error())
		pc.Fail(err)
		return false
	}

	if err := o.validateInput(pc.Input()); err != nil {
		o.log(pc, "Parameter validation failed.", err.Error())
		pc.Fail(err)
		return false
	}

	mode := o.Mode(pc, captureImmediately)
	o.log(pc, "Processing payment.", fmt.Sprintf("mode=%s captureImmediately=%t", mode, captureImmediately))

	if err := o.process(ctx, pc, mode, captureImmediately); err != nil {
		o.log(pc, "Payment processing failed.", err.Error())
		pc.Fail(err)
		return false
	}

	o.log(pc, "Payment processed.", fmt.Sprintf("mode=%s transaction=%s preauthorization=%s",
		mode, pc.TransactionID(), pc.PreauthorizationID()))
	return true
}

// Capture charges the basket amount against the preauthorization stored on pc.
func (o *Orchestrator) Capture(ctx context.Context, pc *domain.ProcessingContext) bool {
	if err := o.validateCapture(pc); err != nil {
		o.log(pc, "Capture validation failed.", err.Error())
		pc.Fail(err)
		return false
	}

	if err := o.capturePreauthorization(ctx, pc); err != nil {
		o.log(pc, "Capture failed.", err.Error())
		pc.Fail(err)
		return false
	}

	o.log(pc, "Capture processed.", pc.TransactionID())
	return true
}

func (o *Orchestrator) process(ctx context.Context, pc *domain.ProcessingContext, mode domain.Mode, captureImmediately bool) error {
	if err := o.ensureClient(ctx, pc); err != nil {
		return err
	}
	if err := o.ensurePaymentMethod(ctx, pc); err != nil {
		return err
	}

	switch mode {
	case domain.ModeDirect:
		return o.chargePaymentMethod(ctx, pc, pc.BasketAmount())

	case domain.ModePreauthorize:
		if err := o.createPreauthorization(ctx, pc, pc.HoldAmount()); err != nil {
			return err
		}
		if !captureImmediately {
			return nil
		}
		return o.capturePreauthorization(ctx, pc)

	case domain.ModeReconcile:
		authorized, _ := pc.AuthorizedAmount()
		if err := o.chargePaymentMethod(ctx, pc, authorized); err != nil {
			return err
		}
		return o.reconcile(ctx, pc, authorized)
	}

	return fmt.Errorf("unsupported processing mode %d", mode)
}

func (o *Orchestrator) ensureClient(ctx context.Context, pc *domain.ProcessingContext) error {
	if pc.ClientID() != "" {
		o.log(pc, "Client using: "+pc.ClientID(), "")
		return nil
	}

	env, err := o.create(ctx, pc, gateway.KindClient, gateway.Params{
		gateway.ParamEmail:       pc.CustomerEmail(),
		gateway.ParamDescription: pc.Description(),
	})
	if err != nil {
		return err
	}

	id, _ := env.ID()
	return pc.SetClientID(id)
}

func (o *Orchestrator) ensurePaymentMethod(ctx context.Context, pc *domain.ProcessingContext) error {
	if pc.PaymentMethodID() != "" {
		o.log(pc, "Payment using: "+pc.PaymentMethodID(), "")
		return nil
	}

	env, err := o.create(ctx, pc, gateway.KindPaymentMethod, gateway.Params{
		gateway.ParamToken:  pc.Token(),
		gateway.ParamClient: pc.ClientID(),
	})
	if err != nil {
		return err
	}

	id, _ := env.ID()
	return pc.SetPaymentMethodID(id)
}

// chargePaymentMethod creates the primary transaction against the payment method.
func (o *Orchestrator) chargePaymentMethod(ctx context.Context, pc *domain.ProcessingContext, amount int64) error {
	params := o.transactionParams(pc, amount)
	params[gateway.ParamPayment] = pc.PaymentMethodID()

	env, err := o.create(ctx, pc, gateway.KindTransaction, params)
	if err != nil {
		return err
	}

	id, _ := env.ID()
	return pc.SetTransactionID(id)
}

func (o *Orchestrator) createPreauthorization(ctx context.Context, pc *domain.ProcessingContext, amount int64) error {
	params := gateway.Params{
		gateway.ParamCurrency:    pc.Currency(),
		gateway.ParamDescription: pc.Description(),
		gateway.ParamPayment:     pc.PaymentMethodID(),
		gateway.ParamClient:      pc.ClientID(),
	}
	params.SetAmount(amount)

	env, err := o.create(ctx, pc, gateway.KindPreauthorization, params)
	if err != nil {
		return err
	}

	return pc.SetPreauthorizationID(preauthorizationID(env))
}

func (o *Orchestrator) capturePreauthorization(ctx context.Context, pc *domain.ProcessingContext) error {
	params := o.transactionParams(pc, pc.BasketAmount())
	params[gateway.ParamPreauthorization] = pc.PreauthorizationID()

	env, err := o.create(ctx, pc, gateway.KindTransaction, params)
	if err != nil {
		return err
	}

	id, _ := env.ID()
	return pc.SetTransactionID(id)
}

// reconcile issues the single corrective operation between the charged
// authorized amount and the basket.
func (o *Orchestrator) reconcile(ctx context.Context, pc *domain.ProcessingContext, authorized int64) error {
	correction := domain.Reconcile(authorized, pc.BasketAmount())
	o.log(pc, "Reconciling amounts.", fmt.Sprintf("authorized=%d basket=%d correction=%s amount=%d",
		authorized, pc.BasketAmount(), correction.Kind, correction.Amount))

	switch correction.Kind {
	case domain.CorrectionRefund:
		params := gateway.Params{
			gateway.ParamTransactionID: pc.TransactionID(),
			gateway.ParamDescription:   pc.Description(),
		}
		params.SetAmount(correction.Amount)

		env, err := o.create(ctx, pc, gateway.KindRefund, params)
		if err != nil {
			return err
		}
		id, _ := env.ID()
		return pc.SetRefundID(id)

	case domain.CorrectionTopUp:
		params := o.transactionParams(pc, correction.Amount)
		params[gateway.ParamPayment] = pc.PaymentMethodID()

		env, err := o.create(ctx, pc, gateway.KindTransaction, params)
		if err != nil {
			return err
		}
		id, _ := env.ID()
		return pc.SetTopUpTransactionID(id)
	}

	return nil
}

func (o *Orchestrator) transactionParams(pc *domain.ProcessingContext, amount int64) gateway.Params {
	params := gateway.Params{
		gateway.ParamCurrency:    pc.Currency(),
		gateway.ParamDescription: pc.Description(),
		gateway.ParamClient:      pc.ClientID(),
		gateway.ParamSource:      pc.Source(),
	}
	params.SetAmount(amount)
	return params
}

// create performs one remote create, records the raw result on pc and
// validates it.
func (o *Orchestrator) create(ctx context.Context, pc *domain.ProcessingContext, kind gateway.ResourceKind, params gateway.Params) (gateway.Envelope, error) {
	client := o.clients.For(kind)
	if client == nil {
		return gateway.Envelope{}, domain.NewGatewayUnreachableError(kind.String(), errors.New("no client configured"))
	}

	env, err := client.Create(ctx, params)
	if err != nil {
		if !domain.IsErrorCode(err, domain.ErrCodeGatewayUnreachable) {
			err = domain.NewGatewayUnreachableError(kind.String(), err)
		}
		o.log(pc, fmt.Sprintf("%s request failed.", kind), err.Error())
		return gateway.Envelope{}, err
	}

	pc.RecordResult(env.Raw)

	if err := Validate(env, kind); err != nil {
		o.log(pc, fmt.Sprintf("Invalid %s result.", kind), env.String())
		return env, err
	}

	o.log(pc, fmt.Sprintf("%s created.", kind), env.String())
	return env, nil
}

// preauthorizationID prefers the id of an embedded preauthorization object,
// at the top level or inside data.
func preauthorizationID(env gateway.Envelope) string {
	if preauth, ok := env.Nested("preauthorization"); ok {
		if id, ok := gateway.StringField(preauth, "id"); ok {
			return id
		}
	}
	if data, ok := env.Data(); ok {
		if preauth, ok := data["preauthorization"].(map[string]any); ok {
			if id, ok := gateway.StringField(preauth, "id"); ok {
				return id
			}
		}
	}
	id, _ := env.ID()
	return id
}

func (o *Orchestrator) validateInput(p domain.Params) error {
	return o.structError(o.validate.Struct(p))
}

type captureInput struct {
	PreauthorizationID string `validate:"required"`
	BasketAmount       int64  `validate:"min=0"`
	Currency           string `validate:"required"`
}

func (o *Orchestrator) validateCapture(pc *domain.ProcessingContext) error {
	if pc.TransactionID() != "" {
		return domain.NewIdentifierAlreadySetError("transactionId")
	}
	return o.structError(o.validate.Struct(captureInput{
		PreauthorizationID: pc.PreauthorizationID(),
		BasketAmount:       pc.BasketAmount(),
		Currency:           pc.Currency(),
	}))
}

func (o *Orchestrator) structError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(lowerFirst(fe.Field()), "failed "+fe.Tag()+" check")
	}
	return &domain.DomainError{
		Code:    domain.ErrCodeValidationFailed,
		Message: "parameter validation failed",
		Err:     err,
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
