package usms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	mu         sync.Mutex
	logins     int
	token      string
	lastUpdate time.Time
	queries    []string
}

func (b *fakeBridge) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		b.logins++
		b.token = "token-" + string(rune('0'+b.logins))
		token := b.token
		b.mu.Unlock()
		json.NewEncoder(w).Encode(loginResponse{Token: token})
	})
	mux.HandleFunc("GET /api/account", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		last := b.lastUpdate
		b.mu.Unlock()
		json.NewEncoder(w).Encode(accountResponse{Meters: []meterResponse{{
			Type: "ELECTRIC", No: "1001", Unit: "kWh", RemainingUnit: 50, RemainingCredit: 9.5, LastUpdate: last,
		}}})
	})
	mux.HandleFunc("GET /api/meters/{no}/hourly", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.record(r.PathValue("no") + " hourly " + r.URL.RawQuery)
		json.NewEncoder(w).Encode([]HourlyConsumption{{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Consumption: 1.5}})
	})
	mux.HandleFunc("GET /api/meters/{no}/monthly", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.record(r.PathValue("no") + " monthly " + r.URL.RawQuery)
		json.NewEncoder(w).Encode([]DailyConsumption{{Consumption: 3, Cost: 0.3}})
	})
	return mux
}

func (b *fakeBridge) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token != "" && r.Header.Get("Authorization") == "Bearer "+b.token
}

func (b *fakeBridge) record(q string) {
	b.mu.Lock()
	b.queries = append(b.queries, q)
	b.mu.Unlock()
}

func (b *fakeBridge) expireSession() {
	b.mu.Lock()
	b.token = "rotated"
	b.mu.Unlock()
}

func newTestClient(t *testing.T, bridge *fakeBridge, now *time.Time) *Client {
	t.Helper()
	server := httptest.NewServer(bridge.handler(t))
	t.Cleanup(server.Close)

	c, err := NewClient(context.Background(), server.URL, "alice", "secret",
		WithClock(func() time.Time { return *now }),
		WithRefreshInterval(time.Hour),
	)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadCredentials(t *testing.T) {
	server := httptest.NewServer((&fakeBridge{}).handler(t))
	defer server.Close()

	_, err := NewClient(context.Background(), server.URL, "alice", "wrong")
	assert.ErrorIs(t, err, ErrLogin)

	_, err = NewClient(context.Background(), server.URL, "", "")
	assert.ErrorIs(t, err, ErrLogin)
}

func TestClientLoadsMeters(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	bridge := &fakeBridge{lastUpdate: now.Add(-time.Hour)}
	c := newTestClient(t, bridge, &now)

	assert.Equal(t, "alice", c.Username())
	meters := c.Meters()
	require.Len(t, meters, 1)
	assert.Equal(t, "ELECTRIC", meters[0].Type())
	assert.Equal(t, "1001", meters[0].No())
	assert.Equal(t, 50.0, meters[0].RemainingUnit())
	assert.Equal(t, 9.5, meters[0].RemainingCredit())
	assert.True(t, c.LastRefresh().Equal(now))
	assert.True(t, c.NextRefresh().Equal(now.Add(time.Hour)))
}

func TestClientUpdateDue(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	bridge := &fakeBridge{lastUpdate: now.Add(-time.Hour)}
	c := newTestClient(t, bridge, &now)

	assert.False(t, c.IsUpdateDue())
	now = now.Add(time.Hour)
	assert.True(t, c.IsUpdateDue())

	hasUpdates, err := c.RefreshData(context.Background())
	require.NoError(t, err)
	assert.False(t, hasUpdates, "same last update")
	assert.False(t, c.IsUpdateDue())

	bridge.mu.Lock()
	bridge.lastUpdate = now
	bridge.mu.Unlock()
	hasUpdates, err = c.RefreshData(context.Background())
	require.NoError(t, err)
	assert.True(t, hasUpdates)
}

func TestClientRenewsExpiredSession(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	bridge := &fakeBridge{lastUpdate: now}
	c := newTestClient(t, bridge, &now)

	bridge.expireSession()
	_, err := c.RefreshData(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, bridge.logins)
}

func TestMeterQueries(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	bridge := &fakeBridge{lastUpdate: now}
	c := newTestClient(t, bridge, &now)
	meter := c.Meters()[0]
	ctx := context.Background()

	hourly, err := meter.HourlyConsumptions(ctx, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, hourly, 1)
	assert.Equal(t, 1.5, hourly[0].Consumption)

	_, err = meter.LastNDaysHourlyConsumptions(ctx, 2)
	require.NoError(t, err)
	_, err = meter.AllHourlyConsumptions(ctx)
	require.NoError(t, err)
	monthly, err := meter.PreviousNMonthConsumptions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []DailyConsumption{{Consumption: 3, Cost: 0.3}}, monthly)

	assert.Equal(t, []string{
		"1001 hourly date=2024-01-02",
		"1001 hourly last_days=2",
		"1001 hourly all=1",
		"1001 monthly offset=1",
	}, bridge.queries)
}

func TestUnexpectedStatusIsNotALoginError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(context.Background(), server.URL, "alice", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLogin)
}

func TestClientDueOnEveryIntervalTick(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	bridge := &fakeBridge{lastUpdate: start}
	c := newTestClient(t, bridge, &now)

	for tick := 1; tick <= 4; tick++ {
		// the poller ticks on the hour, each refresh finishing a little later
		now = start.Add(time.Second + time.Duration(tick)*time.Hour)
		require.True(t, c.IsUpdateDue(), "tick %d", tick)

		now = now.Add(time.Millisecond)
		_, err := c.RefreshData(context.Background())
		require.NoError(t, err)
		assert.False(t, c.IsUpdateDue(), "tick %d right after refresh", tick)
	}
}

func TestNewClientRetriesAfterBridgeOutage(t *testing.T) {
	bridge := &fakeBridge{lastUpdate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var mu sync.Mutex
	down := true
	inner := bridge.handler(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		isDown := down
		mu.Unlock()
		if isDown {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		inner.ServeHTTP(w, r)
	}))
	defer server.Close()

	c := New(server.URL, "alice", "secret")
	assert.True(t, c.IsUpdateDue(), "a new client is due immediately")
	assert.Empty(t, c.Meters())

	_, err := c.RefreshData(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLogin)

	mu.Lock()
	down = false
	mu.Unlock()

	hasUpdates, err := c.RefreshData(context.Background())
	require.NoError(t, err)
	assert.True(t, hasUpdates)
	assert.Len(t, c.Meters(), 1)
	assert.Equal(t, 1, bridge.logins)
}
