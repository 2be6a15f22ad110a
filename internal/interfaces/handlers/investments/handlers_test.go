package investments

import (
	"errors"
	"testing"

	investmentsvc "impact-lending-backend/internal/application/investments"
	"impact-lending-backend/internal/auth"
	"impact-lending-backend/internal/middleware"
	"impact-lending-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInvestmentsTest(t *testing.T) (*fiber.App, *testutil.FakeLedger) {
	db := testutil.OpenDB(t)
	fl := testutil.NewFakeLedger()
	investor := testutil.CreateInvestor(t, db)
	h := &Handlers{Service: &investmentsvc.Service{DB: db, Ledger: fl}}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetIdentity(c, &auth.Identity{UserID: investor.ID, Role: investor.Role})
		return c.Next()
	})
	app.Post("/investments", h.AddLiquidity)
	app.Get("/investments/me", h.MyInvestments)
	return app, fl
}

func TestAddLiquidity(t *testing.T) {
	app, _ := setupInvestmentsTest(t)

	status, resp := testutil.DoJSON(t, app, "POST", "/investments", map[string]interface{}{"amount": "250", "investorSecret": "SINV"})
	require.Equal(t, fiber.StatusCreated, status, resp)
	data := testutil.Data(t, resp)
	assert.Equal(t, "250", data["poolBalance"])

	status, _ = testutil.DoJSON(t, app, "POST", "/investments", map[string]interface{}{"amount": 50, "investorSecret": "SINV"})
	require.Equal(t, fiber.StatusCreated, status)

	status, resp = testutil.DoJSON(t, app, "GET", "/investments/me", nil)
	require.Equal(t, fiber.StatusOK, status)
	data = testutil.Data(t, resp)
	assert.Equal(t, "300", data["totalInvested"])
	assert.Len(t, data["investments"], 2)
}

func TestAddLiquidity_Rejections(t *testing.T) {
	app, fl := setupInvestmentsTest(t)

	status, resp := testutil.DoJSON(t, app, "POST", "/investments", map[string]interface{}{"amount": 0, "investorSecret": "S"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "amount must be greater than 0", resp["message"])

	status, resp = testutil.DoJSON(t, app, "POST", "/investments", map[string]interface{}{"amount": 10})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "investorSecret is required", resp["message"])

	fl.LiquidityErr = errors.New("relay down")
	status, _ = testutil.DoJSON(t, app, "POST", "/investments", map[string]interface{}{"amount": 10, "investorSecret": "S"})
	assert.Equal(t, fiber.StatusBadGateway, status)

	status, resp = testutil.DoJSON(t, app, "GET", "/investments/me", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "0", testutil.Data(t, resp)["totalInvested"])
}
