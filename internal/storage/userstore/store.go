// Package userstore persists user accounts and portfolios as whole
// JSON documents with the same atomic-rewrite discipline as ratestore.
package userstore

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
	"github.com/valutatrade/hub/internal/storage/fsjson"
)

// Store owns the users and portfolios files.
type Store struct {
	usersPath      string
	portfoliosPath string
	mu             sync.Mutex
}

// NewStore builds a store over the two file paths.
func NewStore(usersPath, portfoliosPath string) *Store {
	return &Store{usersPath: usersPath, portfoliosPath: portfoliosPath}
}

type userDTO struct {
	UserID           int    `json:"user_id"`
	Username         string `json:"username"`
	PasswordHash     string `json:"password_hash"`
	RegistrationDate string `json:"registration_date"`
}

type walletDTO struct {
	CurrencyCode string  `json:"currency_code"`
	Balance      float64 `json:"balance"`
}

type portfolioDTO struct {
	UserID  int         `json:"user_id"`
	Wallets []walletDTO `json:"wallets"`
}

// LoadUsers reads all accounts. A missing file is an empty user list so
// the very first register works on a fresh data directory.
func (s *Store) LoadUsers() ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dtos []userDTO
	if err := s.readList(s.usersPath, &dtos); err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(dtos))
	for _, dto := range dtos {
		if dto.UserID <= 0 || dto.Username == "" || dto.PasswordHash == "" {
			return nil, domain.NewValidationError("malformed user entry in %s", s.usersPath)
		}
		registeredAt, err := time.Parse(time.RFC3339, dto.RegistrationDate)
		if err != nil {
			return nil, domain.NewValidationError("malformed registration_date for user %d", dto.UserID)
		}
		users = append(users, &domain.User{
			ID:           dto.UserID,
			Username:     dto.Username,
			PasswordHash: dto.PasswordHash,
			RegisteredAt: registeredAt,
		})
	}

	return users, nil
}

// SaveUsers atomically rewrites the users file.
func (s *Store) SaveUsers(users []*domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dtos := make([]userDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, userDTO{
			UserID:           u.ID,
			Username:         u.Username,
			PasswordHash:     u.PasswordHash,
			RegistrationDate: u.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}

	return fsjson.WriteAtomic(s.usersPath, dtos)
}

// LoadPortfolios reads the whole portfolio collection.
func (s *Store) LoadPortfolios() ([]*domain.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dtos []portfolioDTO
	if err := s.readList(s.portfoliosPath, &dtos); err != nil {
		return nil, err
	}

	portfolios := make([]*domain.Portfolio, 0, len(dtos))
	for _, dto := range dtos {
		wallets := make([]*domain.Wallet, 0, len(dto.Wallets))
		for _, w := range dto.Wallets {
			if w.Balance < 0 {
				return nil, domain.NewValidationError(
					"negative balance for %s in portfolio of user %d", w.CurrencyCode, dto.UserID)
			}
			code, err := domain.NormalizeCode(w.CurrencyCode)
			if err != nil {
				return nil, err
			}
			wallets = append(wallets, &domain.Wallet{
				CurrencyCode: code,
				Balance:      decimal.NewFromFloat(w.Balance),
			})
		}
		p, err := domain.RestorePortfolio(dto.UserID, wallets)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}

	return portfolios, nil
}

// SavePortfolios atomically rewrites the entire portfolio collection.
// There is no per-wallet incremental persistence.
func (s *Store) SavePortfolios(portfolios []*domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dtos := make([]portfolioDTO, 0, len(portfolios))
	for _, p := range portfolios {
		wallets := make([]walletDTO, 0)
		for _, w := range p.Wallets() {
			wallets = append(wallets, walletDTO{
				CurrencyCode: w.CurrencyCode,
				Balance:      w.Balance.InexactFloat64(),
			})
		}
		dtos = append(dtos, portfolioDTO{UserID: p.UserID, Wallets: wallets})
	}

	return fsjson.WriteAtomic(s.portfoliosPath, dtos)
}

func (s *Store) readList(path string, target any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &domain.StorageError{Op: "read", Path: path, Err: err}
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return &domain.StorageError{Op: "decode", Path: path, Err: err}
	}

	return nil
}
