package models

// PaymentMethod is how money changed hands.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodMpesa  PaymentMethod = "mpesa"
	PaymentMethodCheque PaymentMethod = "cheque"
	PaymentMethodBank   PaymentMethod = "bank"
)

// ValidPaymentMethod reports whether s is a supported payment method.
func ValidPaymentMethod(s string) bool {
	switch PaymentMethod(s) {
	case PaymentMethodCash, PaymentMethodMpesa, PaymentMethodCheque, PaymentMethodBank:
		return true
	}
	return false
}
