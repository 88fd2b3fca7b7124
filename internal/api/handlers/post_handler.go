package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	var req transfer.SchedulePost
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	post, err := h.s.Schedule(c.Context(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.s.Remove(c.Context(), GetUserID(c), postID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	var req transfer.PublishNow
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	res, err := h.s.PublishNow(c.Context(), GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *PostHandler) History(c *fiber.Ctx) error {
	records, err := h.s.History(c.Context(), GetUserID(c), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(records)
}
