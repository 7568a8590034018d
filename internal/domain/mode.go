package domain

// Mode is the processing path chosen for one attempt.
type Mode int

const (
	// ModeDirect charges the basket amount in a single transaction.
	ModeDirect Mode = iota + 1
	// ModePreauthorize places a hold and optionally captures it right away.
	ModePreauthorize
	// ModeReconcile charges the authorized amount and corrects the difference
	// to the basket with one refund or one top-up transaction.
	ModeReconcile
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModePreauthorize:
		return "preauthorize"
	case ModeReconcile:
		return "reconcile"
	}
	return "unknown"
}

// SelectMode picks the processing path from the context's amounts.
func SelectMode(pc *ProcessingContext, captureImmediately, preauthorizeOnMismatch bool) Mode {
	if !captureImmediately {
		return ModePreauthorize
	}
	authorized, ok := pc.AuthorizedAmount()
	if !ok || authorized == pc.BasketAmount() {
		return ModeDirect
	}
	if preauthorizeOnMismatch {
		return ModePreauthorize
	}
	return ModeReconcile
}

// CorrectionKind names the corrective operation of a reconciliation.
type CorrectionKind int

const (
	CorrectionNone CorrectionKind = iota
	CorrectionRefund
	CorrectionTopUp
)

func (k CorrectionKind) String() string {
	switch k {
	case CorrectionRefund:
		return "refund"
	case CorrectionTopUp:
		return "top-up"
	}
	return "none"
}

// Correction is the single operation that brings a charged amount in line
// with what is owed.
type Correction struct {
	Kind   CorrectionKind
	Amount int64
}

// Reconcile computes delta = authorized - basket. A positive delta is refunded,
// a negative delta is charged again as -delta, zero needs nothing.
func Reconcile(authorized, basket int64) Correction {
	delta := authorized - basket
	switch {
	case delta > 0:
		return Correction{Kind: CorrectionRefund, Amount: delta}
	case delta < 0:
		return Correction{Kind: CorrectionTopUp, Amount: -delta}
	}
	return Correction{Kind: CorrectionNone}
}
