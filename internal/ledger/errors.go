package ledger

import "errors"

var (
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrNotFound           = errors.New("campaign not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInactive           = errors.New("campaign is not active")
	ErrBelowMinimum       = errors.New("donation below minimum contribution")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotEligible        = errors.New("refund not eligible")
	ErrNothingToRefund    = errors.New("nothing to refund")
	ErrAlreadyClosed      = errors.New("campaign already closed")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidParameters, "invalid_parameters"},
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInactive, "inactive"},
	{ErrBelowMinimum, "below_minimum"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrNotEligible, "not_eligible"},
	{ErrNothingToRefund, "nothing_to_refund"},
	{ErrAlreadyClosed, "already_closed"},
	{ErrArithmeticOverflow, "arithmetic_overflow"},
}

// CodeInternal is the code of any error that is not a ledger rule: a journal
// failure, a canceled context. Such errors leave the ledger unchanged.
const CodeInternal = "internal"

// Code returns the stable wire code for a ledger error, or CodeInternal.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// FromCode is the inverse of Code; unknown codes return nil.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
