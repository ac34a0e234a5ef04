package transactions

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"stacktax-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTxTest(t *testing.T) (*Handlers, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.BitcoinTransaction{}))
	svc := &Service{DB: db}
	h := &Handlers{Service: svc}
	return h, db
}

func withUser(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"user_id": userID,
		})
		return c.Next()
	}
}

func fptr(v float64) *float64 { return &v }

func TestGetTransactions_NoSession(t *testing.T) {
	h, _ := setupTxTest(t)
	app := fiber.New()
	app.Get("/get-transactions", h.GetTransactions)

	req := httptest.NewRequest("GET", "/get-transactions", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestGetTransactions_EmptyResult(t *testing.T) {
	h, _ := setupTxTest(t)
	app := fiber.New()
	app.Use(withUser(uuid.NewString()))
	app.Get("/get-transactions", h.GetTransactions)

	req := httptest.NewRequest("GET", "/get-transactions", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	data, ok := out["data"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, data)
}

func TestGetTransactions_NewestFirstAndNoCiphertext(t *testing.T) {
	h, db := setupTxTest(t)
	userID := uuid.New()
	other := uuid.New()

	older := &domain.BitcoinTransaction{
		TxID: uuid.New(), UserID: userID,
		Timestamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:      "buy", Amount: fptr(1), Price: fptr(20000),
		EncryptedData: "ciphertext-old",
	}
	newer := &domain.BitcoinTransaction{
		TxID: uuid.New(), UserID: userID,
		Timestamp: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Type:      "sell", Amount: fptr(0.5), Price: fptr(60000),
		Tags:          []byte(`["exchange","taxable"]`),
		EncryptedData: "ciphertext-new",
	}
	foreign := &domain.BitcoinTransaction{
		TxID: uuid.New(), UserID: other,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:      "buy", Amount: fptr(2), Price: fptr(30000),
		EncryptedData: "ciphertext-foreign",
	}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)
	require.NoError(t, db.Create(foreign).Error)

	app := fiber.New()
	app.Use(withUser(userID.String()))
	app.Get("/get-transactions", h.GetTransactions)

	req := httptest.NewRequest("GET", "/get-transactions", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(b), "ciphertext")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	data, ok := out["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 2)

	first, _ := data[0].(map[string]interface{})
	second, _ := data[1].(map[string]interface{})
	assert.Equal(t, newer.TxID.String(), first["tx_id"])
	assert.Equal(t, older.TxID.String(), second["tx_id"])

	tags, _ := first["tags"].([]interface{})
	assert.Equal(t, []interface{}{"exchange", "taxable"}, tags)
}
