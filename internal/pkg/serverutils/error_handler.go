package serverutils

import (
	"errors"

	"support-chat-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation:        fiber.StatusBadRequest,
	apperror.KindNotFound:          fiber.StatusNotFound,
	apperror.KindInvalidTransition: fiber.StatusConflict,
	apperror.KindSessionClosed:     fiber.StatusConflict,
	apperror.KindConflict:          fiber.StatusConflict,
	apperror.KindStoreUnavailable:  fiber.StatusServiceUnavailable,
	apperror.KindBusUnavailable:    fiber.StatusServiceUnavailable,
	apperror.KindGenerationFailed:  fiber.StatusBadGateway,
}

// StatusFor maps an error to the HTTP status the API reports for it.
func StatusFor(err error) int {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if status, ok := kindStatus[appErr.Kind]; ok {
			return status
		}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

// WriteError renders err as an ErrorBody. Internal errors never leak their text.
func WriteError(ctx *fiber.Ctx, err error) error {
	status := StatusFor(err)
	body := ErrorBody{Code: status}

	var appErr *apperror.AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		body.Kind = string(appErr.Kind)
		body.Message = appErr.Message
		body.Details = appErr.Details
	case errors.As(err, &fiberErr):
		body.Kind = "HTTP_ERROR"
		body.Message = fiberErr.Message
	default:
		body.Kind = "INTERNAL_ERROR"
		body.Message = "internal server error"
	}
	return ctx.Status(status).JSON(body)
}
