package response

import (
	"impact-lending-backend/internal/pkg/apperrors"

	"github.com/gofiber/fiber/v2"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

// FailureBody is the standardized failure JSON shape.
type FailureBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OK sends a 200 response with { success: true, data }.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(SuccessBody{Success: true, Data: data})
}

// Created sends a 201 response with { success: true, data }.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{Success: true, Data: data})
}

// Message sends a 200 response with a message and data.
func Message(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(SuccessBody{Success: true, Message: message, Data: data})
}

// Error sends { success: false, message } with the given status.
func Error(c *fiber.Ctx, message string, statusCode int) error {
	return c.Status(statusCode).JSON(FailureBody{Success: false, Message: message})
}

// Fail maps a domain error to its status and message.
func Fail(c *fiber.Ctx, err error) error {
	return Error(c, apperrors.Message(err), apperrors.HTTPStatus(err))
}

// Unauthorized sends 401 with the same shape as other errors.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized)
}
