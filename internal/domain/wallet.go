package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Wallet holds a non-negative balance in a single currency.
type Wallet struct {
	CurrencyCode string
	Balance      decimal.Decimal
}

// NewWallet creates an empty wallet for a normalized currency code.
func NewWallet(code string) (*Wallet, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	return &Wallet{CurrencyCode: normalized, Balance: decimal.Zero}, nil
}

// ValidateAmount checks that an operation amount is strictly positive.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("amount must be greater than 0, got %s", amount.String())
	}
	return nil
}

// Deposit credits the wallet.
func (w *Wallet) Deposit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	w.Balance = w.Balance.Add(amount)
	return nil
}

// Withdraw debits the wallet. The balance is left untouched when the
// requested amount exceeds it.
func (w *Wallet) Withdraw(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if w.Balance.LessThan(amount) {
		return &InsufficientFundsError{
			Available: w.Balance,
			Required:  amount,
			Code:      w.CurrencyCode,
		}
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

// BalanceInfo renders the wallet for display.
func (w *Wallet) BalanceInfo() string {
	return fmt.Sprintf("%s: %s", w.CurrencyCode, FormatAmount(w.CurrencyCode, w.Balance))
}
