package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrAggregationFailed is returned by a rates update when every provider
// failed and nothing usable was fetched. The cache is left untouched.
var ErrAggregationFailed = errors.New("all rate providers failed, nothing to aggregate")

// ValidationError reports rejected input: malformed codes, non-positive
// amounts, unknown users.
type ValidationError struct {
	Reason string
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// CurrencyNotFoundError reports a code absent from the currency registry.
type CurrencyNotFoundError struct {
	Code string
}

func (e *CurrencyNotFoundError) Error() string {
	return fmt.Sprintf("currency %q not found", e.Code)
}

// RateNotFoundError reports that neither the direct nor the inverted
// entry for a pair exists in the cache.
type RateNotFoundError struct {
	Pair string
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no cached rate for pair %s", e.Pair)
}

// StaleCacheError reports a snapshot older than the freshness TTL. A
// stale cache fails every lookup, whatever pairs it holds.
type StaleCacheError struct {
	Age time.Duration
	TTL time.Duration
}

func (e *StaleCacheError) Error() string {
	return fmt.Sprintf("rates cache is stale: age %s exceeds ttl %s", e.Age, e.TTL)
}

// InsufficientFundsError reports a debit larger than the wallet balance.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
	Code      string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s wallet: available %s, required %s",
		e.Code, e.Available.StringFixed(8), e.Required.StringFixed(8))
}

// ProviderRequestError reports a failed fetch from one rate source:
// network failure, denied access, rate limit, malformed payload.
type ProviderRequestError struct {
	Source string
	Err    error
}

func (e *ProviderRequestError) Error() string {
	return fmt.Sprintf("provider %s request failed: %v", e.Source, e.Err)
}

func (e *ProviderRequestError) Unwrap() error {
	return e.Err
}

// StorageError reports a failed read or write of a persisted collection.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
