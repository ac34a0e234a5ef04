package user

import (
	"stacktax-backend/internal/costbasis"
	"stacktax-backend/internal/domain"
	"stacktax-backend/internal/middleware"
	"stacktax-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const userSessionsPrefix = "user_sessions:"

// Handlers holds the user service and session config for register (session + cookie).
type Handlers struct {
	Service *Service
	Rdb     *redis.Client
	Config  middleware.SessionConfig
}

// RegisterRequest body: email, password, fullname.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
}

// Register POST /api/v1/users/register — create user, regenerate session, SAdd user_sessions, set cookie, return 201 with data.user.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if req.Email == "" || req.Password == "" || req.Fullname == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}

	u, err := h.Service.CreateUser(c.Context(), CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Fullname: req.Fullname,
	})
	if err != nil {
		return mapCreateError(c, err)
	}

	// Rotate session and set identity
	sid := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:           u.UserID.String(),
		Fullname:         u.Fullname,
		Email:            u.Email,
		EncryptionSalt:   u.EncryptionSalt,
		AccountingMethod: methodOrDefault(u),
	})
	if h.Rdb != nil {
		_ = h.Rdb.SAdd(c.Context(), userSessionsPrefix+u.UserID.String(), sid).Err()
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sid
	c.Cookie(&cookie)

	return response.SuccessCreated(c, "User created successfully", fiber.Map{"user": safeUser(u)}, nil)
}

// GetSettings GET /api/v1/users/settings — returns the session user's settings.
func (h *Handlers) GetSettings(c *fiber.Ctx) error {
	actor := getSessionActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	u, err := h.Service.ViewUser(c.Context(), actor.UserID)
	if err != nil {
		return mapViewError(c, err)
	}
	return response.Success(c, "Settings found", fiber.Map{
		"accounting_method": methodOrDefault(u),
	}, nil)
}

// UpdateSettingsRequest body: accounting_method.
type UpdateSettingsRequest struct {
	AccountingMethod string `json:"accounting_method"`
}

// UpdateSettings PUT /api/v1/users/settings — updates the session user's
// accounting method and mirrors it into the session.
func (h *Handlers) UpdateSettings(c *fiber.Ctx) error {
	actor := getSessionActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil || req.AccountingMethod == "" {
		return response.Error(c, "accounting_method is required", 400, nil)
	}

	u, err := h.Service.UpdateAccountingMethod(c.Context(), actor.UserID, req.AccountingMethod)
	if err != nil {
		return mapSettingsError(c, err)
	}

	method := methodOrDefault(u)
	middleware.UpdateSessionUserField(c, "accounting_method", method)
	return response.Success(c, "Settings updated successfully", fiber.Map{
		"accounting_method": method,
	}, nil)
}

type sessionActor struct {
	UserID string
}

func getSessionActor(c *fiber.Ctx) *sessionActor {
	u := middleware.GetUser(c)
	if u == nil {
		return nil
	}
	m, ok := u.(map[string]interface{})
	if !ok {
		return nil
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil
	}
	return &sessionActor{UserID: userID}
}

func methodOrDefault(u *domain.User) string {
	if u.AccountingMethod != nil && *u.AccountingMethod != "" {
		return *u.AccountingMethod
	}
	return string(costbasis.DefaultMethod)
}

func safeUser(u *domain.User) fiber.Map {
	return fiber.Map{
		"user_id":           u.UserID.String(),
		"fullname":          u.Fullname,
		"email":             u.Email,
		"accounting_method": methodOrDefault(u),
		"createdAt":         u.CreatedAt,
		"updatedAt":         u.UpdatedAt,
	}
}

func mapCreateError(c *fiber.Ctx, err error) error {
	msg := err.Error()
	status := 500
	switch {
	case msg == "Invalid email format", msg == "Invalid password format",
		msg == "Full name is required and must be a non-empty string",
		msg == "Full name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)":
		status = 400
	case msg == "Email already registered":
		status = 409
	}
	return response.Error(c, msg, status, nil)
}

func mapViewError(c *fiber.Ctx, err error) error {
	msg := err.Error()
	status := 500
	switch {
	case msg == "Missing user ID":
		status = 400
	case msg == "User not found":
		status = 404
	}
	return response.Error(c, msg, status, nil)
}

func mapSettingsError(c *fiber.Ctx, err error) error {
	msg := err.Error()
	status := 500
	switch {
	case msg == "Missing user ID", msg == "Invalid user ID format (must be a valid UUID)",
		msg == "Invalid accounting method (must be FIFO, LIFO, or HIFO)":
		status = 400
	case msg == "User not found":
		status = 404
	}
	return response.Error(c, msg, status, nil)
}
