package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Portfolio maps currency codes to wallets for one user. At most one
// wallet exists per currency; wallets are created lazily.
type Portfolio struct {
	UserID  int
	wallets map[string]*Wallet
}

// NewPortfolio creates an empty portfolio.
func NewPortfolio(userID int) (*Portfolio, error) {
	if userID <= 0 {
		return nil, NewValidationError("user_id must be a positive integer, got %d", userID)
	}
	return &Portfolio{UserID: userID, wallets: make(map[string]*Wallet)}, nil
}

// RestorePortfolio rebuilds a portfolio from stored wallets, rejecting
// duplicate currency codes.
func RestorePortfolio(userID int, wallets []*Wallet) (*Portfolio, error) {
	p, err := NewPortfolio(userID)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if _, exists := p.wallets[w.CurrencyCode]; exists {
			return nil, NewValidationError("duplicate wallet %q in portfolio of user %d", w.CurrencyCode, userID)
		}
		p.wallets[w.CurrencyCode] = w
	}
	return p, nil
}

// AddCurrency returns the wallet for code, creating it when absent.
func (p *Portfolio) AddCurrency(code string) (*Wallet, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	if w, ok := p.wallets[normalized]; ok {
		return w, nil
	}
	w, err := NewWallet(normalized)
	if err != nil {
		return nil, err
	}
	p.wallets[normalized] = w
	return w, nil
}

// Wallet returns the wallet for code, or nil when the portfolio has none.
func (p *Portfolio) Wallet(code string) *Wallet {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil
	}
	return p.wallets[normalized]
}

// Wallets returns the wallets sorted by currency code.
func (p *Portfolio) Wallets() []*Wallet {
	out := make([]*Wallet, 0, len(p.wallets))
	for _, w := range p.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrencyCode < out[j].CurrencyCode })
	return out
}

// TotalValue sums all non-zero balances into the base currency. Only
// the direct CODE_BASE pair is consulted in the snapshot, then the
// optional fallback table; a missing rate fails the valuation rather
// than silently counting as zero.
func (p *Portfolio) TotalValue(base string, snap Snapshot, fallback map[string]decimal.Decimal) (decimal.Decimal, error) {
	baseCode, err := NormalizeCode(base)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, w := range p.Wallets() {
		if w.Balance.IsZero() {
			continue
		}
		if w.CurrencyCode == baseCode {
			total = total.Add(w.Balance)
			continue
		}

		pairKey := Pair{From: w.CurrencyCode, To: baseCode}.Key()

		if entry, ok := snap.Pairs[pairKey]; ok && entry.Rate.IsPositive() {
			total = total.Add(w.Balance.Mul(entry.Rate))
			continue
		}
		if rate, ok := fallback[pairKey]; ok && rate.IsPositive() {
			total = total.Add(w.Balance.Mul(rate))
			continue
		}

		return decimal.Zero, NewValidationError(
			"no rate to convert %s->%s, run update-rates or pick another base currency",
			w.CurrencyCode, baseCode)
	}

	return total, nil
}
