package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"furnace-scheduler/config"
	"furnace-scheduler/internal/db"
	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/mw"
	"furnace-scheduler/internal/scheduler"
	"furnace-scheduler/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testFurnaces = []engine.FurnaceSpec{
	{ID: "lo1", Name: "Lò 1", Lines: 1, MinGapHalves: 4},
	{ID: "lo2", Name: "Lò 2", Lines: 2, MinGapHalves: 4, AllowSundaySecondHalfStart: true},
}

type testEnv struct {
	router *gin.Engine
	store  store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", regexp.MustCompile(`\W`).ReplaceAllString(t.Name(), "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB)
	require.NoError(t, s.UpsertFurnaces(context.Background(), testFurnaces))

	eng := engine.New(engine.DefaultRules(), log.New(io.Discard, "", 0))
	svc := scheduler.NewService(s, eng, nil, testFurnaces)
	handler := NewHandler(svc, s, &webpush.Options{VAPIDPublicKey: "public-key"}, nil)
	router := NewRouter(handler, cache.New(cache.NoExpiration, 0), config.ServerConfig{CacheTTLSeconds: 60})
	return &testEnv{router: router, store: s}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestGetFurnaces(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/furnaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	furnaces := decode[[]engine.FurnaceSpec](t, w)
	require.Len(t, furnaces, 2)
	assert.Equal(t, "lo1", furnaces[0].ID)
	assert.True(t, furnaces[1].DualLine())
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/furnaces/lo1/bookings", gin.H{
		"id":         "a",
		"start_date": "2025-11-03",
		"registrant": "planner",
		"lines":      []gin.H{{"serial": "T-101", "voltage": "110 kV"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[engine.Booking](t, w)
	assert.Equal(t, "a", b.ID)
	require.NotNil(t, b.Timeline)
	assert.Equal(t, "2025-11-03", b.Timeline.Phase1().Start.String())
	assert.Equal(t, "2025-11-05", b.Timeline.Phase1().End.String())

	w = env.do(http.MethodGet, "/api/furnaces/lo1/bookings/a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "T-101", decode[engine.Booking](t, w).Lines[0].Serial)

	testCases := []struct {
		name     string
		furnace  string
		body     gin.H
		expected int
	}{
		{"missing start date", "lo1", gin.H{"lines": []gin.H{{"serial": "T-1"}}}, http.StatusBadRequest},
		{"malformed date", "lo1", gin.H{"start_date": "03/11/2025", "lines": []gin.H{{"serial": "T-1"}}}, http.StatusBadRequest},
		{"unknown voltage", "lo1", gin.H{"start_date": "2025-12-01", "lines": []gin.H{{"serial": "T-1", "voltage": "banana"}}}, http.StatusBadRequest},
		{"no lines", "lo1", gin.H{"start_date": "2025-12-01"}, http.StatusBadRequest},
		{"unknown furnace", "lo9", gin.H{"start_date": "2025-12-01", "lines": []gin.H{{"serial": "T-1"}}}, http.StatusNotFound},
		{"duplicate id", "lo1", gin.H{"id": "a", "start_date": "2025-12-01", "lines": []gin.H{{"serial": "T-1"}}}, http.StatusConflict},
		{"overlapping", "lo1", gin.H{"start_date": "2025-11-04", "lines": []gin.H{{"serial": "T-1"}}}, http.StatusConflict},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/furnaces/"+tc.furnace+"/bookings", tc.body)
			assert.Equal(t, tc.expected, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestCreateBooking_SerialSummaries(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/furnaces/lo2/bookings", gin.H{
		"id":         "a",
		"start_date": "2025-11-03",
		"serials":    []string{"T-101 (110 kV)", "T-202 (220 kV)"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[engine.Booking](t, w)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, engine.VoltageHigh, b.Lines[1].Voltage)
	assert.Equal(t, engine.VoltageHigh, b.EffectiveClass())
}

func TestBookingLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/furnaces/lo2/bookings", gin.H{
		"id":         "a",
		"start_date": "2025-11-03",
		"lines":      []gin.H{{"serial": "T-101"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodPost, "/api/furnaces/lo2/bookings/a/lines", gin.H{
		"lines": []gin.H{{"serial": "T-202", "voltage": "220"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[engine.Booking](t, w).Lines, 2)

	w = env.do(http.MethodPost, "/api/furnaces/lo2/bookings/a/status", gin.H{"action": "advance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, engine.StatusRegistered, decode[engine.Booking](t, w).Status)

	w = env.do(http.MethodPost, "/api/furnaces/lo2/bookings/a/status", gin.H{"action": "explode"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = env.do(http.MethodPut, "/api/furnaces/lo2/bookings/a", gin.H{"start_date": "2025-11-10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[engine.Booking](t, w)
	assert.Equal(t, "2025-11-10", moved.StartDate.String())
	assert.Equal(t, "2025-11-10", moved.Timeline.Phase1().Start.String())

	w = env.do(http.MethodDelete, "/api/furnaces/lo2/bookings/a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodDelete, "/api/furnaces/lo2/bookings/a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodPut, "/api/furnaces/lo2/bookings/a", gin.H{"start_date": "2025-11-10"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBookings_CacheInvalidatedByWrites(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/furnaces/lo1/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(mw.CacheHeader))

	w = env.do(http.MethodGet, "/api/furnaces/lo1/bookings", nil)
	assert.Equal(t, "HIT", w.Header().Get(mw.CacheHeader))

	w = env.do(http.MethodPost, "/api/furnaces/lo1/bookings", gin.H{
		"id":         "a",
		"start_date": "2025-11-03",
		"lines":      []gin.H{{"serial": "T-101"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodGet, "/api/furnaces/lo1/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(mw.CacheHeader))
	body := decode[struct {
		FurnaceID  string              `json:"furnace_id"`
		Bookings   []engine.Booking    `json:"bookings"`
		Serials    map[string][]string `json:"serials"`
		Violations []string            `json:"violations"`
	}](t, w)
	assert.Equal(t, "lo1", body.FurnaceID)
	require.Len(t, body.Bookings, 1)
	assert.Equal(t, "a", body.Bookings[0].ID)
	assert.Equal(t, []string{"T-101 (110 kV)"}, body.Serials["a"])
	assert.Empty(t, body.Violations)

	w = env.do(http.MethodGet, "/api/furnaces/lo2/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(mw.CacheHeader), "each furnace has its own cache entry")
	assert.Equal(t, "lo2", decode[struct {
		FurnaceID string `json:"furnace_id"`
	}](t, w).FurnaceID)

	w = env.do(http.MethodGet, "/api/furnaces/lo9/bookings", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAvailability(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/furnaces/lo1/bookings", gin.H{
		"id":         "a",
		"start_date": "2025-11-03",
		"lines":      []gin.H{{"serial": "T-101"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	type availability struct {
		Available bool            `json:"available"`
		Reason    string          `json:"reason"`
		Timeline  engine.Timeline `json:"timeline"`
	}

	w = env.do(http.MethodGet, "/api/furnaces/lo1/availability?date=2025-11-04", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	busy := decode[availability](t, w)
	assert.False(t, busy.Available)
	assert.NotEmpty(t, busy.Reason)

	w = env.do(http.MethodGet, "/api/furnaces/lo1/availability?date=2025-11-24&voltage=high", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	free := decode[availability](t, w)
	assert.True(t, free.Available)
	assert.Equal(t, "2025-11-24", free.Timeline.Phase1().Start.String())

	for _, query := range []string{"", "?date=tomorrow", "?date=2025-11-24&voltage=x", "?date=2025-11-24&lines=0"} {
		w = env.do(http.MethodGet, "/api/furnaces/lo1/availability"+query, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestHarmonize(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/furnaces/lo1/harmonize", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/furnaces/lo2/bookings", gin.H{
		"id":         "a",
		"start_date": "2025-11-03",
		"lines":      []gin.H{{"serial": "T-101"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/api/furnaces/lo2/harmonize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[struct {
		GlobalClass engine.VoltageClass `json:"global_class"`
		Changed     []string            `json:"changed"`
		Failures    []failureResponse   `json:"failures"`
	}](t, w)
	assert.Equal(t, engine.VoltageLow, report.GlobalClass)
	assert.Empty(t, report.Changed)
	assert.Empty(t, report.Failures)
}

func TestPreviewTimeline(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/timeline/preview", gin.H{
		"start_date":          "2025-11-03",
		"voltage":             "220 kV",
		"forced_phase2_start": "2025-11-12",
		"force_exact":         true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tl := decode[engine.Timeline](t, w)
	assert.Equal(t, "2025-11-03", tl.Phase1().Start.String())
	assert.Equal(t, "2025-11-12", tl.Phase2().Start.String())

	w = env.do(http.MethodPost, "/api/timeline/preview", gin.H{"voltage": "220 kV"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/timeline/preview", gin.H{"start_date": "2025-11-03", "furnace_id": "lo9"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	endpoint := "https://push.example.com/send/abc%3D"

	w := env.do(http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = env.do(http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint":            endpoint,
		"p256dh":              "key",
		"auth":                "secret",
		"subscribed_furnaces": []string{"lo2"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"subscribed_furnaces":["lo2"]}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"public-key"}`, w.Body.String())

	r := gin.New()
	r.GET("/api/vapid_public_key", NewHandler(nil, nil, nil, nil).GetVAPIDPublicKey)
	w = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/vapid_public_key", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServeWS_Disabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
