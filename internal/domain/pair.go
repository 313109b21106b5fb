package domain

import (
	"fmt"
	"strings"
)

const (
	codeMinLen = 2
	codeMaxLen = 5
)

// Pair is a directed currency conversion, keyed as FROM_TO.
type Pair struct {
	From string
	To   string
}

// NewPair validates and normalizes both codes.
func NewPair(from, to string) (Pair, error) {
	f, err := NormalizeCode(from)
	if err != nil {
		return Pair{}, err
	}
	t, err := NormalizeCode(to)
	if err != nil {
		return Pair{}, err
	}
	return Pair{From: f, To: t}, nil
}

// ParsePairKey splits a FROM_TO key back into a Pair.
func ParsePairKey(key string) (Pair, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 2 {
		return Pair{}, NewValidationError("invalid pair key %q", key)
	}
	return NewPair(parts[0], parts[1])
}

// Key returns the FROM_TO snapshot key.
func (p Pair) Key() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Inverted returns the TO_FROM direction of the same pair.
func (p Pair) Inverted() Pair {
	return Pair{From: p.To, To: p.From}
}

func (p Pair) String() string {
	return p.Key()
}

// NormalizeCode upper-cases a currency code and checks it is 2-5
// alphanumeric characters without spaces.
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if strings.Contains(normalized, " ") {
		return "", NewValidationError("currency code must not contain spaces")
	}
	if len(normalized) < codeMinLen || len(normalized) > codeMaxLen {
		return "", NewValidationError("currency code must be %d-%d characters, got %q", codeMinLen, codeMaxLen, code)
	}
	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", NewValidationError("currency code must be alphanumeric, got %q", code)
		}
	}
	return normalized, nil
}
