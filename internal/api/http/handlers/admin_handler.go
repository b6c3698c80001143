package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/service"
)

// AdminHandler exposes user management for administrators.
type AdminHandler struct {
	users *service.UserService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(users *service.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// ListUsers handles GET /admin/users?page=&per_page=.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page, err := h.users.List(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("per_page", service.DefaultPageSize))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserListResponse{
		Users:      dto.NewUserResponses(page.Users),
		Pagination: dto.Pagination{Page: page.Page, PerPage: page.PerPage, Total: page.Total},
	}})
}

// GetUser handles GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// SetRoles handles PUT /admin/users/:id/roles.
func (h *AdminHandler) SetRoles(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.SetRolesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	roles, err := req.RoleSet()
	if err != nil {
		return err
	}

	user, err := h.users.SetRoles(c.UserContext(), session.Identity.ID, c.Params("id"), roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// SetStatus handles PUT /admin/users/:id/status.
func (h *AdminHandler) SetStatus(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	var req dto.SetStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.users.SetStatus(c.UserContext(), session.Identity.ID, c.Params("id"), domain.UserStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// DeleteUser handles DELETE /admin/users/:id.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), session.Identity.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
