package lots

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withUser(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"user_id": userID,
		})
		return c.Next()
	}
}

func TestViewLots_Unauthorized(t *testing.T) {
	svc, _ := setupLotsTest(t)
	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Get("/view-lots", h.ViewLots)

	req := httptest.NewRequest("GET", "/view-lots", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestViewLots_Success(t *testing.T) {
	svc, db := setupLotsTest(t)
	h := &Handlers{Service: svc}
	userID := uuid.New()
	seedLot(t, db, userID, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 1, 1, 25000)

	app := fiber.New()
	app.Use(withUser(userID.String()))
	app.Get("/view-lots", h.ViewLots)

	req := httptest.NewRequest("GET", "/view-lots", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	data, _ := out["data"].(map[string]interface{})
	open, _ := data["open"].([]interface{})
	assert.Len(t, open, 1)
	closed, _ := data["closed"].([]interface{})
	assert.Empty(t, closed)
}

func TestViewAllocations_BadTxID(t *testing.T) {
	svc, _ := setupLotsTest(t)
	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Use(withUser(uuid.NewString()))
	app.Get("/view-allocations/:tx_id", h.ViewAllocations)

	req := httptest.NewRequest("GET", "/view-allocations/not-a-uuid", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestViewAllocations_NotFound(t *testing.T) {
	svc, _ := setupLotsTest(t)
	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Use(withUser(uuid.NewString()))
	app.Get("/view-allocations/:tx_id", h.ViewAllocations)

	req := httptest.NewRequest("GET", "/view-allocations/"+uuid.NewString(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestGainsSummary_Handler(t *testing.T) {
	svc, db := setupLotsTest(t)
	h := &Handlers{Service: svc}
	userID := uuid.New()

	lot := seedLot(t, db, userID, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), 1, 0, 10000)
	sale := seedSale(t, db, userID, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	seedAllocation(t, db, sale.TxID, lot.LotID, 1, 10000, 45000)

	app := fiber.New()
	app.Use(withUser(userID.String()))
	app.Get("/gains-summary", h.GainsSummary)

	req := httptest.NewRequest("GET", "/gains-summary", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	data, _ := out["data"].([]interface{})
	require.Len(t, data, 1)
	year, _ := data[0].(map[string]interface{})
	assert.Equal(t, float64(2024), year["year"])
	assert.Equal(t, float64(35000), year["long_term_gain"])
}
