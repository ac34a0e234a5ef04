package ledger

import (
	"errors"

	"stacktax-backend/internal/costbasis"
	"stacktax-backend/internal/middleware"
	"stacktax-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *Service
}

// ProcessTransaction POST /api/v1/transactions/process-transaction — one encrypted event.
func (h *Handlers) ProcessTransaction(c *fiber.Ctx) error {
	sess, err := sessionInfoFromCtx(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}

	var env Envelope
	if err := c.BodyParser(&env); err != nil {
		return response.Error(c, "Invalid request format", fiber.StatusBadRequest, nil)
	}

	id, perr := h.Service.ProcessTransaction(c.Context(), env, sess)
	if perr != nil {
		return respondError(c, perr)
	}
	return response.SuccessCreated(c, "Transaction processed successfully", fiber.Map{"id": id}, nil)
}

// BulkProcess POST /api/v1/transactions/bulk-process — already-imported ids.
func (h *Handlers) BulkProcess(c *fiber.Ctx) error {
	user := actorFromCtx(c)
	if user == nil || user.UserID == uuid.Nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	var body struct {
		TxIDs []string `json:"tx_ids"`
	}
	if err := c.BodyParser(&body); err != nil || len(body.TxIDs) == 0 {
		return response.Error(c, "tx_ids is required", fiber.StatusBadRequest, nil)
	}

	result := h.Service.ProcessBulkImported(c.Context(), user.UserID, body.TxIDs)
	return response.Success(c, "Bulk processing complete", result, nil)
}

// respondError maps the ledger taxonomy to HTTP. DatabaseError detail stays
// in the logs; the caller sees an opaque failure.
func respondError(c *fiber.Ctx, err error) error {
	switch KindOf(err) {
	case KindBadRequest:
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case KindLotSelectionFailed:
		return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, nil)
	default:
		var tagged *Error
		if errors.As(err, &tagged) && tagged.Err != nil {
			log.Error().Err(tagged.Err).Str("kind", tagged.Kind.String()).Msg(tagged.Message)
		} else {
			log.Error().Err(err).Msg("transaction processing failed")
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}

type actor struct {
	UserID           uuid.UUID
	EncryptionSalt   string
	AccountingMethod string
}

func actorFromCtx(c *fiber.Ctx) *actor {
	u := middleware.GetUser(c)
	m, ok := u.(map[string]interface{})
	if !ok {
		return nil
	}
	idStr, _ := m["user_id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil
	}
	salt, _ := m["encryption_salt"].(string)
	method, _ := m["accounting_method"].(string)
	return &actor{UserID: id, EncryptionSalt: salt, AccountingMethod: method}
}

func sessionInfoFromCtx(c *fiber.Ctx) (SessionInfo, error) {
	user := actorFromCtx(c)
	if user == nil {
		return SessionInfo{}, errors.New("User ID missing from session")
	}
	passphrase, _ := middleware.GetSessionValue(c, "passphrase").(string)

	var method costbasis.Method
	if m, ok := costbasis.ParseMethod(user.AccountingMethod); ok {
		method = m
	}
	return SessionInfo{
		UserID:           user.UserID,
		Passphrase:       passphrase,
		EncryptionSalt:   user.EncryptionSalt,
		AccountingMethod: method,
	}, nil
}
