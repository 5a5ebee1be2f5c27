package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/papertrading/internal/alert/domain"
	ledgerdomain "github.com/wyfcoding/papertrading/internal/ledger/domain"
	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

type fakeAlertRepo struct {
	mu       sync.Mutex
	alerts   []*domain.Alert
	settings map[string]*domain.Settings
	saveErr  error
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{settings: make(map[string]*domain.Settings)}
}

func (r *fakeAlertRepo) SaveAlert(_ context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	clone := *alert
	r.alerts = append(r.alerts, &clone)
	return nil
}

func (r *fakeAlertRepo) ListAlerts(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Alert, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var filtered []*domain.Alert
	for i := len(r.alerts) - 1; i >= 0; i-- {
		a := r.alerts[i]
		if a.UserID != userID || (unreadOnly && a.Read) {
			continue
		}
		clone := *a
		filtered = append(filtered, &clone)
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (r *fakeAlertRepo) MarkRead(_ context.Context, userID, alertID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.UserID == userID && a.AlertID == alertID {
			a.Read = true
			return nil
		}
	}
	return errors.New("alert not found")
}

func (r *fakeAlertRepo) GetSettings(_ context.Context, userID string) (*domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[userID]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *fakeAlertRepo) SaveSettings(_ context.Context, settings *domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *settings
	r.settings[settings.UserID] = &clone
	return nil
}

func (r *fakeAlertRepo) alertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func (r *fakeAlertRepo) lastAlert() *domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.alerts) == 0 {
		return nil
	}
	return r.alerts[len(r.alerts)-1]
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*domain.Alert
	fail bool
}

func (s *fakeSender) Send(_ context.Context, alert *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker down")
	}
	s.sent = append(s.sent, alert)
	return nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeWatchlist struct {
	users map[string][]string
}

func (w *fakeWatchlist) UsersWatching(_ context.Context, symbol string) ([]string, error) {
	return w.users[symbol], nil
}

type engineFixture struct {
	engine   *Engine
	repo     *fakeAlertRepo
	sender   *fakeSender
	watchers *fakeWatchlist
	now      time.Time
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		repo:     newFakeAlertRepo(),
		sender:   &fakeSender{},
		watchers: &fakeWatchlist{users: map[string][]string{"AAPL": {"u1", "u2"}}},
		now:      time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(f.repo, f.sender, f.watchers, nil, 15*time.Minute, decimal.RequireFromString("5"))
	f.engine.now = func() time.Time { return f.now }
	return f
}

func bigMoveQuote() *mddomain.Quote {
	return &mddomain.Quote{
		Symbol:        "AAPL",
		Price:         decimal.RequireFromString("110"),
		PreviousClose: decimal.RequireFromString("100"),
	}
}

func smallMoveQuote() *mddomain.Quote {
	return &mddomain.Quote{
		Symbol:        "AAPL",
		Price:         decimal.RequireFromString("101"),
		PreviousClose: decimal.RequireFromString("100"),
	}
}

func TestHandleQuote_FansOutToWatchers(t *testing.T) {
	f := newEngineFixture()

	f.engine.HandleQuote(context.Background(), bigMoveQuote())

	assert.Equal(t, 2, f.repo.alertCount())
	assert.Equal(t, 2, f.sender.sentCount())
	alert := f.repo.lastAlert()
	assert.Equal(t, domain.TypePriceChange, alert.Type)
	assert.Contains(t, alert.Message, "AAPL")
	assert.Contains(t, alert.Message, "10.00")
}

func TestHandleQuote_BelowThresholdIgnored(t *testing.T) {
	f := newEngineFixture()

	f.engine.HandleQuote(context.Background(), smallMoveQuote())

	assert.Zero(t, f.repo.alertCount())
}

func TestHandleQuote_DownMoveTriggersToo(t *testing.T) {
	f := newEngineFixture()

	q := &mddomain.Quote{
		Symbol:        "AAPL",
		Price:         decimal.RequireFromString("90"),
		PreviousClose: decimal.RequireFromString("100"),
	}
	f.engine.HandleQuote(context.Background(), q)

	assert.Equal(t, 2, f.repo.alertCount())
	assert.Contains(t, f.repo.lastAlert().Message, "down")
}

func TestHandleQuote_DebounceWindow(t *testing.T) {
	f := newEngineFixture()

	f.engine.HandleQuote(context.Background(), bigMoveQuote())
	assert.Equal(t, 2, f.repo.alertCount())

	// 窗口内的重复触发被吞掉
	f.now = f.now.Add(5 * time.Minute)
	f.engine.HandleQuote(context.Background(), bigMoveQuote())
	assert.Equal(t, 2, f.repo.alertCount())

	// 窗口过后恢复触发
	f.now = f.now.Add(11 * time.Minute)
	f.engine.HandleQuote(context.Background(), bigMoveQuote())
	assert.Equal(t, 4, f.repo.alertCount())
}

func TestHandleQuote_DebouncePerUserSymbol(t *testing.T) {
	f := newEngineFixture()
	f.watchers.users["MSFT"] = []string{"u1"}

	f.engine.HandleQuote(context.Background(), bigMoveQuote())
	assert.Equal(t, 2, f.repo.alertCount())

	// 不同标的不受 AAPL 的去抖影响
	q := &mddomain.Quote{
		Symbol:        "MSFT",
		Price:         decimal.RequireFromString("330"),
		PreviousClose: decimal.RequireFromString("300"),
	}
	f.engine.HandleQuote(context.Background(), q)
	assert.Equal(t, 3, f.repo.alertCount())
}

func TestHandleQuote_RespectsDisabledSetting(t *testing.T) {
	f := newEngineFixture()
	require.NoError(t, f.repo.SaveSettings(context.Background(), &domain.Settings{
		UserID:             "u1",
		PriceEnabled:       false,
		TransactionEnabled: true,
		WatchlistEnabled:   true,
		PriceThreshold:     decimal.RequireFromString("5"),
	}))

	f.engine.HandleQuote(context.Background(), bigMoveQuote())

	// u1 关闭价格告警，只有 u2 收到
	assert.Equal(t, 1, f.repo.alertCount())
	assert.Equal(t, "u2", f.repo.lastAlert().UserID)
}

func TestHandleQuote_PerUserThreshold(t *testing.T) {
	f := newEngineFixture()
	require.NoError(t, f.repo.SaveSettings(context.Background(), &domain.Settings{
		UserID:             "u1",
		PriceEnabled:       true,
		TransactionEnabled: true,
		WatchlistEnabled:   true,
		PriceThreshold:     decimal.RequireFromString("0.5"),
	}))

	f.engine.HandleQuote(context.Background(), smallMoveQuote())

	// 1% 的波动只越过 u1 调低后的阈值
	assert.Equal(t, 1, f.repo.alertCount())
	assert.Equal(t, "u1", f.repo.lastAlert().UserID)
}

func TestHandleTrade(t *testing.T) {
	f := newEngineFixture()

	txn := &ledgerdomain.Transaction{
		TransactionID: "TXN-1",
		UserID:        "u1",
		Symbol:        "AAPL",
		Side:          ledgerdomain.SideBuy,
		Quantity:      10,
		Price:         decimal.RequireFromString("150"),
	}
	f.engine.HandleTrade(context.Background(), txn)

	require.Equal(t, 1, f.repo.alertCount())
	alert := f.repo.lastAlert()
	assert.Equal(t, domain.TypeTransaction, alert.Type)
	assert.Contains(t, alert.Message, "BUY 10 AAPL")
}

func TestHandleTrade_Disabled(t *testing.T) {
	f := newEngineFixture()
	require.NoError(t, f.repo.SaveSettings(context.Background(), &domain.Settings{
		UserID:         "u1",
		PriceEnabled:   true,
		PriceThreshold: decimal.RequireFromString("5"),
	}))

	f.engine.HandleTrade(context.Background(), &ledgerdomain.Transaction{UserID: "u1", Symbol: "AAPL", Side: ledgerdomain.SideBuy})

	assert.Zero(t, f.repo.alertCount())
}

func TestHandleWatchlistChange(t *testing.T) {
	f := newEngineFixture()

	f.engine.HandleWatchlistChange(context.Background(), "u1", "TSLA", "added")

	require.Equal(t, 1, f.repo.alertCount())
	alert := f.repo.lastAlert()
	assert.Equal(t, domain.TypeWatchlistUpdate, alert.Type)
	assert.Contains(t, alert.Message, "was added to")
}

func TestEmit_SenderFailureStillPersists(t *testing.T) {
	f := newEngineFixture()
	f.sender.fail = true

	f.engine.HandleWatchlistChange(context.Background(), "u1", "TSLA", "added")

	assert.Equal(t, 1, f.repo.alertCount())
	assert.Zero(t, f.sender.sentCount())
}

func TestGetSettings_LazyDefaults(t *testing.T) {
	f := newEngineFixture()

	settings, err := f.engine.GetSettings(context.Background(), "fresh")
	require.NoError(t, err)
	assert.True(t, settings.PriceEnabled)
	assert.True(t, settings.TransactionEnabled)
	assert.True(t, settings.WatchlistEnabled)
	assert.True(t, settings.PriceThreshold.Equal(decimal.RequireFromString("5")))

	// 默认值已持久化
	saved, err := f.repo.GetSettings(context.Background(), "fresh")
	require.NoError(t, err)
	require.NotNil(t, saved)
}

func TestUpdateSettings_NonPositiveThresholdFallsBack(t *testing.T) {
	f := newEngineFixture()

	err := f.engine.UpdateSettings(context.Background(), &domain.Settings{
		UserID:         "u1",
		PriceEnabled:   true,
		PriceThreshold: decimal.Zero,
	})
	require.NoError(t, err)

	saved, err := f.repo.GetSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, saved.PriceThreshold.Equal(decimal.RequireFromString("5")))
}

func TestListAlerts_UnreadFilterAndMarkRead(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.engine.HandleWatchlistChange(ctx, "u1", "TSLA", "added")
	f.engine.HandleWatchlistChange(ctx, "u1", "NVDA", "added")

	alerts, p, err := f.engine.ListAlerts(ctx, "u1", true, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Total)

	require.NoError(t, f.engine.MarkRead(ctx, "u1", alerts[0].AlertID))

	alerts, p, err = f.engine.ListAlerts(ctx, "u1", true, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Total)
	require.Len(t, alerts, 1)
}
