package lots

import (
	"stacktax-backend/internal/middleware"
	"stacktax-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers bundles lot view handlers.
type Handlers struct {
	Service *Service
}

func sessionUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	user := middleware.GetUser(c)
	if user == nil {
		return uuid.Nil, false
	}
	m, ok := user.(map[string]interface{})
	if !ok {
		return uuid.Nil, false
	}
	idStr, _ := m["user_id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ViewLots GET /api/v1/lots/view-lots
func (h *Handlers) ViewLots(c *fiber.Ctx) error {
	userID, ok := sessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	data, err := h.Service.ViewLots(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Lots fetched successfully", data, nil)
}

// ViewAllocations GET /api/v1/lots/view-allocations/:tx_id
func (h *Handlers) ViewAllocations(c *fiber.Ctx) error {
	userID, ok := sessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	txID := c.Params("tx_id")
	data, err := h.Service.ViewAllocations(c.Context(), userID, txID)
	if err != nil {
		switch err.Error() {
		case "tx_id is required", "Invalid tx_id format (must be a valid UUID)":
			return response.Error(c, err.Error(), 400, nil)
		case "Transaction not found":
			return response.Error(c, err.Error(), 404, nil)
		case "Unauthorized access to transaction":
			return response.Error(c, err.Error(), 403, nil)
		default:
			return response.Error(c, "Internal Server Error", 500, nil)
		}
	}
	return response.Success(c, "Allocations fetched successfully", data, nil)
}

// GainsSummary GET /api/v1/lots/gains-summary
func (h *Handlers) GainsSummary(c *fiber.Ctx) error {
	userID, ok := sessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	data, err := h.Service.GainsSummary(c.Context(), userID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Gains summary fetched successfully", data, nil)
}
