package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

type fakeWatchRepo struct {
	mu    sync.Mutex
	items map[string]map[string]bool
}

func newFakeWatchRepo() *fakeWatchRepo {
	return &fakeWatchRepo{items: make(map[string]map[string]bool)}
}

func (r *fakeWatchRepo) Add(_ context.Context, userID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[userID] == nil {
		r.items[userID] = make(map[string]bool)
	}
	r.items[userID][symbol] = true
	return nil
}

func (r *fakeWatchRepo) Remove(_ context.Context, userID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items[userID], symbol)
	return nil
}

func (r *fakeWatchRepo) List(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var symbols []string
	for s := range r.items[userID] {
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func (r *fakeWatchRepo) UsersWatching(_ context.Context, symbol string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []string
	for u, symbols := range r.items {
		if symbols[symbol] {
			users = append(users, u)
		}
	}
	return users, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []string
}

func (n *recordingNotifier) HandleWatchlistChange(_ context.Context, userID, symbol, action string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, userID+":"+symbol+":"+action)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

func TestAdd_NormalizesAndNotifies(t *testing.T) {
	repo := newFakeWatchRepo()
	notifier := &recordingNotifier{}
	svc := NewWatchlistService(repo, notifier)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", " aapl "))

	symbols, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAdd_DuplicateIsIdempotent(t *testing.T) {
	repo := newFakeWatchRepo()
	svc := NewWatchlistService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "AAPL"))
	require.NoError(t, svc.Add(ctx, "u1", "AAPL"))

	symbols, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, symbols, 1)
}

func TestAdd_EmptySymbol(t *testing.T) {
	svc := NewWatchlistService(newFakeWatchRepo(), nil)
	err := svc.Add(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, mddomain.ErrBadSymbol)
}

func TestRemove(t *testing.T) {
	repo := newFakeWatchRepo()
	svc := NewWatchlistService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "AAPL"))
	require.NoError(t, svc.Remove(ctx, "u1", "aapl"))

	symbols, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestUsersWatching(t *testing.T) {
	repo := newFakeWatchRepo()
	svc := NewWatchlistService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "AAPL"))
	require.NoError(t, svc.Add(ctx, "u2", "AAPL"))
	require.NoError(t, svc.Add(ctx, "u3", "MSFT"))

	users, err := svc.UsersWatching(ctx, "aapl")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, users)
}
