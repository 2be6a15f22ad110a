package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func() error

func (f pingFunc) Ping() error { return f() }

func setupHealthHandlers(t *testing.T) *Handlers {
	rdb, _ := testutil.OpenRedis(t)
	return &Handlers{
		Rdb:            rdb,
		DB:             pingFunc(func() error { return nil }),
		HealthAdminKey: "test-admin-key",
	}
}

func TestLive(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health", h.Live)

	status, out := testutil.DoJSON(t, app, "GET", "/health", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", out["status"])
}

func TestReset_Unauthorized(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/reset", h.Reset)

	status, out := testutil.DoJSON(t, app, "GET", "/reset", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Unauthorized", out["message"])

	status, _ = testutil.DoJSON(t, app, "GET", "/reset?key=wrong", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestReset_Success(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/reset", h.Reset)

	ctx := context.Background()
	require.NoError(t, h.Rdb.Set(ctx, middleware.KeyReqTotal, "5", 0).Err())

	status, out := testutil.DoJSON(t, app, "GET", "/reset?key=test-admin-key", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Stats reset successfully", out["message"])

	_, err := h.Rdb.Get(ctx, middleware.KeyReqTotal).Result()
	assert.Error(t, err)
	_, err = h.Rdb.Get(ctx, middleware.KeyStartTime).Result()
	assert.NoError(t, err)
}

func TestReset_RedisDisabled(t *testing.T) {
	h := &Handlers{HealthAdminKey: "k"}
	app := fiber.New()
	app.Get("/reset", h.Reset)

	status, _ := testutil.DoJSON(t, app, "GET", "/reset?key=k", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestJSON_ReturnsStructure(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	status, out := testutil.DoJSON(t, app, "GET", "/health/json", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "impact-lending-api", out["service"])
	assert.Equal(t, "ok", out["status"])
	assert.Contains(t, out, "runtime")
	assert.Contains(t, out, "traffic")
	deps := out["dependencies"].(map[string]interface{})
	assert.Equal(t, "connected", deps["database"].(map[string]interface{})["status"])
}

func TestJSON_DatabaseDown(t *testing.T) {
	h := setupHealthHandlers(t)
	h.DB = pingFunc(func() error { return errors.New("connection refused") })
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	_, out := testutil.DoJSON(t, app, "GET", "/health/json", nil)
	assert.NotEqual(t, "ok", out["status"])
}

func TestErrors_ReturnsArray(t *testing.T) {
	h := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/errors", h.Errors)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var arr []interface{}
	require.NoError(t, json.Unmarshal(body, &arr))
	assert.Empty(t, arr)

	h.Rdb.LPush(context.Background(), middleware.KeyErrorLog, `{"path":"/api/loans","method":"POST","status":502}`)
	resp, err = app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/loans", entries[0]["path"])
}
