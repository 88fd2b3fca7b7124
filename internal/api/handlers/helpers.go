package handlers

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/apperr"
)

const UserIDKey = "user_id"

const unreadableCredentialMessage = "stored credential cannot be opened; reconnect the account"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := c.Locals(UserIDKey).(int64)
	return userID
}

// parseBody decodes the request body into dst and validates it.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		slog.Info(err.Error())
		return apperr.InvalidInput("body", "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.InvalidInput(fe.Field(), "failed on the '%s' rule", fe.Tag())
		}
		return apperr.InvalidInput("body", "%v", err)
	}
	return nil
}

// ErrorStatus maps a domain error to its HTTP status.
func ErrorStatus(err error) int {
	var (
		exhausted   *apperr.AllProvidersExhaustedError
		publishErr  *apperr.PublishError
		invalid     *apperr.InvalidInputError
		unsupported *apperr.UnsupportedProviderError
		decryption  *apperr.DecryptionError
	)

	switch {
	case errors.As(err, &exhausted), errors.As(err, &publishErr):
		return fiber.StatusBadGateway
	case errors.As(err, &invalid), errors.As(err, &unsupported):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &decryption):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := ErrorStatus(err)
	return c.Status(status).JSON(fiber.Map{
		"error": errorMessage(c, status, err),
	})
}

// errorMessage is what the caller sees. Internal and decryption details
// stay in the log.
func errorMessage(c *fiber.Ctx, status int, err error) string {
	switch status {
	case fiber.StatusInternalServerError:
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return "internal server error"
	case fiber.StatusUnprocessableEntity:
		slog.Warn("stored credential unreadable", "method", c.Method(), "path", c.Path(), "error", err)
		return unreadableCredentialMessage
	default:
		return err.Error()
	}
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput(name, "must be a positive integer")
	}
	return int64(id), nil
}
