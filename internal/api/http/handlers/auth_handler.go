package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AuthHandler exposes registration, login and self-service endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	transport *auth.Transport
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, transport *auth.Transport) *AuthHandler {
	return &AuthHandler{auth: authService, transport: transport}
}

// Register handles POST /auth/register. The response carries no token.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"user": dto.NewUserResponse(user)},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	delivery := h.transport.Deliver(c, res.Token, res.ExpiresAt)
	authRes := dto.AuthResponse{Token: delivery.Token, ExpiresAt: delivery.ExpiresAt}
	if delivery.Token != "" {
		authRes.TokenType = "Bearer"
	}
	return c.JSON(fiber.Map{
		"data": dto.LoginResponse{User: dto.NewUserResponse(res.User), Auth: authRes},
	})
}

// Logout handles POST /auth/logout. It succeeds with or without a valid token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var subject string
	if token, _ := h.transport.Extract(c); token != "" {
		if claims, err := h.auth.TokenManager().ParseToken(token); err == nil {
			subject = claims.Subject
		}
	}
	h.auth.Logout(c.UserContext(), subject)
	h.transport.Clear(c)
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "logged out"}})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Me(c.UserContext(), session.Identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateMe handles PUT /auth/me.
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), session.Identity.ID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), session.Identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(dst)
}

func currentSession(c *fiber.Ctx) (*auth.Session, error) {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return session, nil
}
