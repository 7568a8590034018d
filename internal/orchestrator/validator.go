package orchestrator

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
)

const (
	statusClosed = "closed"
	statusOpen   = "open"
)

// Validate judges a raw gateway envelope for one resource kind. It returns a
// *domain.DomainError describing the first failed check, or nil.
func Validate(env gateway.Envelope, kind gateway.ResourceKind) error {
	if code, present := responseCode(env); present && code != domain.SuccessResponseCode {
		return domain.NewInvalidResponseCodeError(kind.String(), code)
	}

	if kind == gateway.KindTransaction && !env.IsObject() {
		return domain.NewNotIssuedError(kind.String())
	}

	holder, ok := idHolder(env)
	if !ok {
		return domain.NewInvalidIDError(kind.String())
	}

	if kind != gateway.KindTransaction {
		return nil
	}

	status, _ := gateway.StringField(holder, "status")
	switch status {
	case statusClosed:
		return nil
	case statusOpen:
		return domain.NewInvalidOrderStateError(kind.String())
	default:
		return domain.NewUnknownError(kind.String(), status)
	}
}

// idHolder returns the object carrying the resource id: the envelope itself,
// else its data object.
func idHolder(env gateway.Envelope) (map[string]any, bool) {
	if _, ok := gateway.StringField(env.Fields, "id"); ok {
		return env.Fields, true
	}
	if data, ok := env.Data(); ok {
		if _, ok := gateway.StringField(data, "id"); ok {
			return data, true
		}
	}
	return nil, false
}

// responseCode reads response_code from the top level or from data. A key
// holding an empty or unparsable value yields the 0 sentinel.
func responseCode(env gateway.Envelope) (int, bool) {
	if v, ok := env.Get("response_code"); ok && v != nil {
		return parseResponseCode(v), true
	}
	if data, ok := env.Data(); ok {
		if v, ok := data["response_code"]; ok && v != nil {
			return parseResponseCode(v), true
		}
	}
	return 0, false
}

func parseResponseCode(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil && f == math.Trunc(f) {
			return int(f)
		}
	case float64:
		if t == math.Trunc(t) {
			return int(t)
		}
	case int:
		return t
	case int64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}
