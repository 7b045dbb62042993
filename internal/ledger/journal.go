package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// JournalLine is one leg of a double-entry journal. Exactly one of Debit and
// Credit must be strictly positive.
type JournalLine struct {
	ID          string
	AccountID   string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// ValidateJournal checks a journal line set against the double-entry
// discipline: every line is either a debit or a credit (never both, never
// neither), and total debits equal total credits exactly. Decimal equality,
// no epsilon. The verdict is independent of line order.
func ValidateJournal(lines []JournalLine) []ValidationError {
	var errs []ValidationError
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for i, line := range lines {
		if isNegative(line.Debit) || isNegative(line.Credit) {
			errs = append(errs, newError(fmt.Sprintf("details.%d", i), CodeLineMustBeDebitOrCredit,
				"debit and credit cannot be negative"))
			continue
		}
		debit := isPositive(line.Debit)
		credit := isPositive(line.Credit)
		if debit == credit {
			errs = append(errs, newError(fmt.Sprintf("details.%d", i), CodeLineMustBeDebitOrCredit,
				"each line must have either a debit or a credit amount"))
			continue
		}
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}

	if len(errs) == 0 && !totalDebit.Equal(totalCredit) {
		errs = append(errs, newError("details", CodeUnbalancedEntry,
			"entry is not balanced: total debit %s does not equal total credit %s",
			totalDebit.String(), totalCredit.String()))
	}
	return errs
}
