package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrencyRound_HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1.00",
		"1.995":  "2.00",
		"320":    "320",
		"159.999": "160",
	}
	for in, want := range cases {
		got := KES.Round(d(in))
		assert.True(t, d(want).Equal(got), "Round(%s) = %s, want %s", in, got, want)
	}
}

func TestNewCurrency_NegativePrecisionPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewCurrency("XXX", -1)
	})
	assert.NotPanics(t, func() {
		NewCurrency("JPY", 0)
	})
}
