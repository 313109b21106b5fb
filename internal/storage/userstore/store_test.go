package userstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/hub/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "users.json"), filepath.Join(dir, "portfolios.json"))
}

func TestLoadUsersMissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)

	users, err := store.LoadUsers()
	require.NoError(t, err)
	require.Empty(t, users)

	portfolios, err := store.LoadPortfolios()
	require.NoError(t, err)
	require.Empty(t, portfolios)
}

func TestUsersRoundtrip(t *testing.T) {
	store := newTestStore(t)

	alice, err := domain.NewUser(1, "alice", "secret")
	require.NoError(t, err)
	require.NoError(t, store.SaveUsers([]*domain.User{alice}))

	users, err := store.LoadUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, alice.ID, users[0].ID)
	require.Equal(t, alice.Username, users[0].Username)
	require.Equal(t, alice.RegisteredAt, users[0].RegisteredAt)
	require.True(t, users[0].VerifyPassword("secret"))
}

func TestPortfoliosRoundtrip(t *testing.T) {
	store := newTestStore(t)

	p, err := domain.NewPortfolio(1)
	require.NoError(t, err)
	usd, err := p.AddCurrency("USD")
	require.NoError(t, err)
	require.NoError(t, usd.Deposit(decimal.NewFromInt(10000)))
	btc, err := p.AddCurrency("BTC")
	require.NoError(t, err)
	require.NoError(t, btc.Deposit(decimal.NewFromFloat(0.25)))

	require.NoError(t, store.SavePortfolios([]*domain.Portfolio{p}))

	loaded, err := store.LoadPortfolios()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, 1, loaded[0].UserID)

	wallets := loaded[0].Wallets()
	require.Len(t, wallets, 2)
	require.Equal(t, "BTC", wallets[0].CurrencyCode)
	require.True(t, wallets[0].Balance.Equal(decimal.NewFromFloat(0.25)))
	require.Equal(t, "USD", wallets[1].CurrencyCode)
	require.True(t, wallets[1].Balance.Equal(decimal.NewFromInt(10000)))
}

func TestLoadPortfoliosRejectsNegativeBalance(t *testing.T) {
	store := newTestStore(t)

	payload := `[{"user_id": 1, "wallets": [{"currency_code": "USD", "balance": -5}]}]`
	require.NoError(t, os.WriteFile(store.portfoliosPath, []byte(payload), 0o644))

	_, err := store.LoadPortfolios()
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestLoadUsersRejectsMalformedEntry(t *testing.T) {
	store := newTestStore(t)

	payload := `[{"user_id": 0, "username": "alice", "password_hash": "x", "registration_date": "2025-10-01T12:00:00Z"}]`
	require.NoError(t, os.WriteFile(store.usersPath, []byte(payload), 0o644))

	_, err := store.LoadUsers()
	require.Error(t, err)
}
