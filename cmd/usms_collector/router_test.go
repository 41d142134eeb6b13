package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/coordinator"
	"github.com/NotCoffee418/usms_meter/pkg/entities"
	"github.com/NotCoffee418/usms_meter/pkg/livefeed"
	"github.com/NotCoffee418/usms_meter/pkg/statsdb"
	"github.com/NotCoffee418/usms_meter/pkg/usms"
	"github.com/NotCoffee418/usms_meter/pkg/usms/usmstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *usmstest.Meter) {
	t.Helper()
	store, err := statsdb.Open(filepath.Join(t.TempDir(), "statistics.db"))
	require.NoError(t, err)
	store.InitializeDatabase()
	t.Cleanup(func() { store.Close() })

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("BNT", 8*60*60))
	meter := &usmstest.Meter{MeterType: "WATER", Number: "55", MeterUnit: "m³", Remaining: 9}
	for h := 0; h < 24; h++ {
		meter.History = append(meter.History, usms.HourlyConsumption{Start: day.Add(time.Duration(h) * time.Hour), Consumption: 0.25})
	}
	account := &usmstest.Account{User: "bob", Due: true, MeterList: []*usmstest.Meter{meter}}

	c := coordinator.New(account, store)
	registry := entities.NewRegistry()
	registry.AddCoordinator(context.Background(), c)
	require.NoError(t, c.Refresh(context.Background()))

	return newRouter(registry, livefeed.NewHub(registry.Sensors)), meter
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterSensors(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/sensors")
	require.Equal(t, http.StatusOK, rec.Code)
	var sensors []entities.SensorState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sensors))
	require.Len(t, sensors, 1)
	assert.Equal(t, "water_meter_55", sensors[0].UniqueID)
	assert.Equal(t, entities.DeviceClassWater, sensors[0].DeviceClass)

	rec = do(t, router, http.MethodGet, "/sensors/water_meter_55")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/sensors/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
}

func TestRouterButtons(t *testing.T) {
	router, meter := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/buttons")
	require.Equal(t, http.StatusOK, rec.Code)
	var buttons []entities.ButtonState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buttons))
	assert.Len(t, buttons, 3)

	rec = do(t, router, http.MethodPost, "/buttons/water_meter_55_download_and_import_history/press")
	require.Equal(t, http.StatusOK, rec.Code)
	var result entities.PressResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 24, result.ImportedRows)

	rec = do(t, router, http.MethodGet, "/buttons/water_meter_55_download_and_import_history/press")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	meter.Err = errors.New("bridge down")
	rec = do(t, router, http.MethodPost, "/buttons/water_meter_55_download_and_import_history/press")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	meter.Err = usms.ErrLogin
	rec = do(t, router, http.MethodPost, "/buttons/water_meter_55_download_and_import_history/press")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/buttons/nope/press")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
