package handlers

import (
	"errors"
	"fmt"

	"chillistore/internal/repositories"
	"chillistore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrSubmissionInFlight):
		return fiber.StatusConflict
	case errors.Is(err, repositories.ErrDuplicateSlug):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrUpload):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// messageFor is the short message shown above the form.
func messageFor(err error) string {
	var vErr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return "Not authorized"
	case errors.As(err, &vErr):
		return vErr.Reason
	case errors.Is(err, services.ErrNotFound):
		return "Product not found"
	case errors.Is(err, services.ErrSubmissionInFlight):
		return "This form is already being submitted"
	case errors.Is(err, services.ErrUpload):
		return "Image upload failed"
	default:
		return "Could not save product"
	}
}

// respondError writes err and, when form is not nil, echoes the attempted input back.
func respondError(c *fiber.Ctx, err error, form interface{}) error {
	body := fiber.Map{
		"message": messageFor(err),
		"error":   err.Error(),
	}
	if form != nil {
		body["form"] = form
	}
	return c.Status(statusFor(err)).JSON(body)
}

func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
