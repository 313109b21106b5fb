// Package trading implements the user-facing operations: accounts,
// rate queries, buy/sell against the ledger, portfolio valuation.
package trading

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
	"github.com/valutatrade/hub/internal/services/rates"
	"github.com/valutatrade/hub/internal/storage/tradelog"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned by Login for a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid username or password")

const demoUSDBalance = 10000

// RateStore is the slice of the cache store the trading service reads.
type RateStore interface {
	Load() (domain.Snapshot, error)
}

// UserStore persists accounts and portfolios.
type UserStore interface {
	LoadUsers() ([]*domain.User, error)
	SaveUsers([]*domain.User) error
	LoadPortfolios() ([]*domain.Portfolio, error)
	SavePortfolios([]*domain.Portfolio) error
}

// TradeLog records executed trades for audit.
type TradeLog interface {
	Append(tradelog.Record) error
}

// Service composes the resolver, the stores and the audit log.
type Service struct {
	users    UserStore
	rates    RateStore
	resolver *rates.Resolver
	tradeLog TradeLog
	fallback map[string]decimal.Decimal
	base     string
	logger   *zap.Logger
}

// NewService wires the trading operations. base is the settlement
// currency every trade is priced in (USD).
func NewService(users UserStore, rateStore RateStore, resolver *rates.Resolver,
	tradeLog TradeLog, fallback map[string]decimal.Decimal, base string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:    users,
		rates:    rateStore,
		resolver: resolver,
		tradeLog: tradeLog,
		fallback: fallback,
		base:     base,
		logger:   logger,
	}
}

// TradeResult describes one executed trade.
type TradeResult struct {
	UserID        int
	Username      string
	Action        string
	CurrencyCode  string
	Amount        decimal.Decimal
	Rate          decimal.Decimal
	Base          string
	QuoteAmount   decimal.Decimal
	WalletsBefore map[string]string
	WalletsAfter  map[string]string
}

// Register creates an account, an empty portfolio and the demo USD
// balance, then persists both collections.
func (s *Service) Register(username, password string) (*domain.User, error) {
	users, err := s.users.LoadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == username {
			return nil, domain.NewValidationError("user %q already exists", username)
		}
	}

	nextID := 1
	for _, u := range users {
		if u.ID >= nextID {
			nextID = u.ID + 1
		}
	}

	user, err := domain.NewUser(nextID, username, password)
	if err != nil {
		return nil, err
	}

	portfolios, err := s.users.LoadPortfolios()
	if err != nil {
		return nil, err
	}
	portfolio, portfolios, err := getOrCreatePortfolio(user.ID, portfolios)
	if err != nil {
		return nil, err
	}

	usdWallet, err := portfolio.AddCurrency(s.base)
	if err != nil {
		return nil, err
	}
	if usdWallet.Balance.IsZero() {
		if err := usdWallet.Deposit(decimal.NewFromInt(demoUSDBalance)); err != nil {
			return nil, err
		}
	}

	users = append(users, user)
	if err := s.users.SaveUsers(users); err != nil {
		return nil, err
	}
	if err := s.users.SavePortfolios(portfolios); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int("user_id", user.ID),
		zap.String("username", user.Username))

	return user, nil
}

// Login verifies credentials and returns the account.
func (s *Service) Login(username, password string) (*domain.User, error) {
	users, err := s.users.LoadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == username {
			if !u.VerifyPassword(password) {
				break
			}
			return u, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// GetRate resolves from->to against the current snapshot, checking both
// currencies against the registry first.
func (s *Service) GetRate(from, to string) (domain.RateInfo, error) {
	if _, err := domain.GetCurrency(from); err != nil {
		return domain.RateInfo{}, err
	}
	if _, err := domain.GetCurrency(to); err != nil {
		return domain.RateInfo{}, err
	}

	snap, err := s.rates.Load()
	if err != nil {
		return domain.RateInfo{}, err
	}

	return s.resolver.Resolve(from, to, snap)
}

// Snapshot exposes the raw cache for display commands.
func (s *Service) Snapshot() (domain.Snapshot, error) {
	return s.rates.Load()
}

// Buy purchases amount of currencyCode priced in the base currency.
// The base wallet is debited before the target wallet is credited: a
// failed funds check ends the operation with no wallet touched.
func (s *Service) Buy(userID int, currencyCode string, amount decimal.Decimal) (*TradeResult, error) {
	return s.trade(userID, currencyCode, amount, "buy")
}

// Sell converts amount of currencyCode back into the base currency.
// The target wallet is debited before the base wallet is credited.
func (s *Service) Sell(userID int, currencyCode string, amount decimal.Decimal) (*TradeResult, error) {
	return s.trade(userID, currencyCode, amount, "sell")
}

func (s *Service) trade(userID int, currencyCode string, amount decimal.Decimal, action string) (*TradeResult, error) {
	result, err := s.executeTrade(userID, currencyCode, amount, action)
	if err != nil {
		s.logger.Error("trade failed",
			zap.String("action", action),
			zap.Int("user_id", userID),
			zap.String("currency", currencyCode),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("trade executed",
		zap.String("action", action),
		zap.Int("user_id", result.UserID),
		zap.String("username", result.Username),
		zap.String("currency", result.CurrencyCode),
		zap.String("amount", result.Amount.String()),
		zap.String("rate", result.Rate.String()),
		zap.String("base", result.Base),
		zap.Any("wallets_before", result.WalletsBefore),
		zap.Any("wallets_after", result.WalletsAfter))

	if s.tradeLog != nil {
		if err := s.tradeLog.Append(tradelog.Record{
			Action:        action,
			UserID:        result.UserID,
			Username:      result.Username,
			CurrencyCode:  result.CurrencyCode,
			Amount:        result.Amount.String(),
			Rate:          result.Rate.String(),
			Base:          result.Base,
			WalletsBefore: result.WalletsBefore,
			WalletsAfter:  result.WalletsAfter,
		}); err != nil {
			// The trade is already durable; a failed audit append must
			// not unwind it.
			s.logger.Error("trade audit append failed", zap.Error(err))
		}
	}

	return result, nil
}

func (s *Service) executeTrade(userID int, currencyCode string, amount decimal.Decimal, action string) (*TradeResult, error) {
	user, err := s.requireUser(userID)
	if err != nil {
		return nil, err
	}
	currency, err := domain.GetCurrency(currencyCode)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	portfolios, err := s.users.LoadPortfolios()
	if err != nil {
		return nil, err
	}
	portfolio, portfolios, err := getOrCreatePortfolio(user.ID, portfolios)
	if err != nil {
		return nil, err
	}

	before := walletsSnapshot(portfolio)

	baseWallet, err := portfolio.AddCurrency(s.base)
	if err != nil {
		return nil, err
	}

	rateInfo, err := s.GetRate(currency.Code, s.base)
	if err != nil {
		return nil, err
	}
	quoteAmount := amount.Mul(rateInfo.Rate)

	switch action {
	case "buy":
		targetWallet, err := portfolio.AddCurrency(currency.Code)
		if err != nil {
			return nil, err
		}
		// Withdraw first: an insufficient USD balance aborts before any
		// wallet changed.
		if err := baseWallet.Withdraw(quoteAmount); err != nil {
			return nil, err
		}
		if err := targetWallet.Deposit(amount); err != nil {
			return nil, err
		}
	case "sell":
		targetWallet := portfolio.Wallet(currency.Code)
		if targetWallet == nil {
			return nil, domain.NewValidationError("wallet %s is not in the portfolio", currency.Code)
		}
		if err := targetWallet.Withdraw(amount); err != nil {
			return nil, err
		}
		if err := baseWallet.Deposit(quoteAmount); err != nil {
			return nil, err
		}
	default:
		return nil, domain.NewValidationError("unknown trade action %q", action)
	}

	if err := s.users.SavePortfolios(portfolios); err != nil {
		return nil, err
	}

	return &TradeResult{
		UserID:        user.ID,
		Username:      user.Username,
		Action:        action,
		CurrencyCode:  currency.Code,
		Amount:        amount,
		Rate:          rateInfo.Rate,
		Base:          s.base,
		QuoteAmount:   quoteAmount,
		WalletsBefore: before,
		WalletsAfter:  walletsSnapshot(portfolio),
	}, nil
}

// PortfolioRow is one wallet line of the portfolio view.
type PortfolioRow struct {
	Currency       string
	Balance        decimal.Decimal
	BalanceDisplay string
}

// PortfolioView is the show-portfolio result.
type PortfolioView struct {
	UserID int
	Base   string
	Rows   []PortfolioRow
	Total  decimal.Decimal
}

// Portfolio values all wallets of a user in the base currency.
func (s *Service) Portfolio(userID int, base string) (*PortfolioView, error) {
	user, err := s.requireUser(userID)
	if err != nil {
		return nil, err
	}
	baseCurrency, err := domain.GetCurrency(base)
	if err != nil {
		return nil, err
	}

	portfolios, err := s.users.LoadPortfolios()
	if err != nil {
		return nil, err
	}
	portfolio, _, err := getOrCreatePortfolio(user.ID, portfolios)
	if err != nil {
		return nil, err
	}

	snap, err := s.rates.Load()
	if err != nil {
		return nil, err
	}

	total, err := portfolio.TotalValue(baseCurrency.Code, snap, s.fallback)
	if err != nil {
		return nil, err
	}

	view := &PortfolioView{UserID: user.ID, Base: baseCurrency.Code, Total: total}
	for _, w := range portfolio.Wallets() {
		view.Rows = append(view.Rows, PortfolioRow{
			Currency:       w.CurrencyCode,
			Balance:        w.Balance,
			BalanceDisplay: domain.FormatAmount(w.CurrencyCode, w.Balance),
		})
	}

	return view, nil
}

func (s *Service) requireUser(userID int) (*domain.User, error) {
	if userID <= 0 {
		return nil, domain.NewValidationError("invalid user_id %d", userID)
	}
	users, err := s.users.LoadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, domain.NewValidationError("user %d not found", userID)
}

// getOrCreatePortfolio returns the user's portfolio, appending a fresh
// empty one to the collection when none exists yet.
func getOrCreatePortfolio(userID int, portfolios []*domain.Portfolio) (*domain.Portfolio, []*domain.Portfolio, error) {
	for _, p := range portfolios {
		if p.UserID == userID {
			return p, portfolios, nil
		}
	}
	p, err := domain.NewPortfolio(userID)
	if err != nil {
		return nil, nil, err
	}
	return p, append(portfolios, p), nil
}

func walletsSnapshot(p *domain.Portfolio) map[string]string {
	snap := make(map[string]string)
	for _, w := range p.Wallets() {
		snap[w.CurrencyCode] = domain.FormatAmount(w.CurrencyCode, w.Balance)
	}
	return snap
}
