package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type AIHandler struct {
	s service.AIService
}

func NewAIHandler(service service.AIService) *AIHandler {
	return &AIHandler{s: service}
}

func (h *AIHandler) StoreKey(c *fiber.Ctx) error {
	var req transfer.StoreAIKey
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.s.StoreKey(c.Context(), GetUserID(c), req.Provider, req.APIKey); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AIHandler) ListKeys(c *fiber.Ctx) error {
	keys, err := h.s.ListKeys(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(keys)
}

func (h *AIHandler) DeleteKey(c *fiber.Ctx) error {
	if err := h.s.DeleteKey(c.Context(), GetUserID(c), c.Params("provider")); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AIHandler) Generate(c *fiber.Ctx) error {
	var req transfer.GenerateText
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	text, err := h.s.Generate(c.Context(), GetUserID(c), req.Prompt, req.Model)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"text": text,
	})
}

func (h *AIHandler) Embedding(c *fiber.Ctx) error {
	var req transfer.Embedding
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	vector, err := h.s.Embedding(c.Context(), GetUserID(c), req.Text)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"embedding":  vector,
		"dimensions": len(vector),
	})
}
