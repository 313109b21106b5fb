package updater

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsNonPositiveInterval(t *testing.T) {
	a := NewAggregator(nil, &fakeStore{}, nil)

	_, err := NewScheduler(a, 0, nil)
	require.Error(t, err)
	_, err = NewScheduler(a, -time.Second, nil)
	require.Error(t, err)
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("no snapshot yet")}
	a := newTestAggregator(store, &fakeProvider{source: "coingecko", results: nil, err: errors.New("down")})

	s, err := NewScheduler(a, time.Hour, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
