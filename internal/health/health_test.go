package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readyBody struct {
	Ready  bool             `json:"ready"`
	Checks map[string]Check `json:"checks"`
}

func ready(t *testing.T, c *Checker) (int, readyBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	c := NewChecker("demo", nil, nil)
	c.now = func() time.Time { return time.Date(2025, time.October, 19, 12, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	c.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","mode":"demo","timestamp":"2025-10-19T12:00:00Z"}`, rec.Body.String())
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker("demo", func(context.Context) error { return errors.New("down") }, nil).
		Live(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"live":true}`, rec.Body.String())
}

func TestReady_DatabaseAndRedisUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	code, body := ready(t, NewChecker("demo", db.PingContext, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.Ready)
	assert.Equal(t, StatusUp, body.Checks["database"].Status)
	assert.Equal(t, StatusUp, body.Checks["redis"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReady_DatabaseDown(t *testing.T) {
	code, body := ready(t, NewChecker("demo", func(context.Context) error {
		return errors.New("connection refused")
	}, nil))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, body.Ready)
	assert.Equal(t, StatusDown, body.Checks["database"].Status)
	assert.Equal(t, "connection refused", body.Checks["database"].Message)
	assert.Equal(t, StatusNotConfigured, body.Checks["redis"].Status)
}

func TestReady_RedisDownIsNotFatal(t *testing.T) {
	code, body := ready(t, NewChecker("demo", func(context.Context) error { return nil }, func(context.Context) error {
		return errors.New("i/o timeout")
	}))

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.Ready)
	assert.Equal(t, StatusDown, body.Checks["redis"].Status)
}
