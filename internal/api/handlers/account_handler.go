package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type AccountHandler struct {
	s service.AccountService
}

func NewAccountHandler(service service.AccountService) *AccountHandler {
	return &AccountHandler{s: service}
}

func (h *AccountHandler) ConnectAccount(c *fiber.Ctx) error {
	var req transfer.ConnectAccount
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	acc, err := h.s.Connect(c.Context(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(acc)
}

func (h *AccountHandler) ListSocialAccounts(c *fiber.Ctx) error {
	accounts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) GetSocialAccount(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	acc, err := h.s.Get(c.Context(), GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(acc)
}

func (h *AccountHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.s.Delete(c.Context(), GetUserID(c), id); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
