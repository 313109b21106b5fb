package cli

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/valutatrade/hub/internal/domain"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "insufficient funds",
			err: &domain.InsufficientFundsError{
				Available: decimal.NewFromInt(4000),
				Required:  decimal.NewFromInt(5000),
				Code:      "USD",
			},
			want: "insufficient funds: available 4000.00 USD, required 5000.00 USD",
		},
		{
			name: "stale cache",
			err:  &domain.StaleCacheError{Age: 2 * time.Hour, TTL: time.Hour},
			want: "rates cache is older than 1h0m0s, run 'valutahub update-rates'",
		},
		{
			name: "unknown currency",
			err:  &domain.CurrencyNotFoundError{Code: "XYZ"},
			want: `unknown currency "XYZ", see 'valutahub currencies'`,
		},
		{
			name: "aggregation failed",
			err:  errors.Wrap(domain.ErrAggregationFailed, "update"),
			want: "no provider yielded any rates, the cache was left untouched",
		},
		{
			name: "validation",
			err:  domain.NewValidationError("amount must be greater than 0"),
			want: "amount must be greater than 0",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, userMessage(tt.err))
		})
	}
}
