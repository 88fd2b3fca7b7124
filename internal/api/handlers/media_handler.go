package handlers

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/service"
)

type MediaHandler struct {
	s service.MediaService
}

// NewMediaHandler accepts a nil service when object storage is not
// configured; uploads then answer 503.
func NewMediaHandler(service service.MediaService) *MediaHandler {
	return &MediaHandler{s: service}
}

func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	if h.s == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "media storage is not configured",
		})
	}

	header, err := c.FormFile("file")
	if err != nil {
		return respondError(c, apperr.InvalidInput("file", "multipart field 'file' is required"))
	}
	if header.Size > service.MaxMediaSize {
		return respondError(c, apperr.InvalidInput("file", "file exceeds %d bytes", service.MaxMediaSize))
	}

	f, err := header.Open()
	if err != nil {
		slog.Error(err.Error())
		return respondError(c, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return respondError(c, err)
	}

	upload, err := h.s.Upload(c.Context(), GetUserID(c), data)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(upload)
}
