package ledger

import "fmt"

// Validation error codes returned by the computation functions.
// Each code is stable and safe for the client app to switch on.
const (
	CodeInvalidLine             = "invalid_line"
	CodeVatRateRequired         = "vat_rate_required"
	CodeInvalidTerms            = "invalid_terms"
	CodeInvalidDueDate          = "invalid_due_date"
	CodeLineMustBeDebitOrCredit = "line_must_be_debit_or_credit"
	CodeUnbalancedEntry         = "unbalanced_entry"
	CodeOverAllocation          = "over_allocation"
	CodeInvalidAllocation       = "invalid_allocation"
	CodeInvalidPayment          = "invalid_payment"
)

// ValidationError describes a single business-rule violation, resolvable to
// the field or line it belongs to so the client can highlight it inline.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newError(field, code, format string, args ...interface{}) ValidationError {
	return ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}
