package serverutils

import (
	"strconv"

	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

func ValidateRequest(req interface{}) error {
	return validation.Struct(req)
}

// ParseBody decodes the JSON body and reports a malformed payload as a validation error.
func ParseBody(ctx *fiber.Ctx, out interface{}) error {
	if err := ctx.BodyParser(out); err != nil {
		return apperror.Validation("malformed request body", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// ParamID reads a positive numeric path parameter.
func ParamID(ctx *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(ctx.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid "+name, map[string]interface{}{name: ctx.Params(name)})
	}
	return id, nil
}

// QueryID reads an optional numeric query parameter. Absent means nil.
func QueryID(ctx *fiber.Ctx, name string) (*uint64, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, apperror.Validation("invalid "+name, map[string]interface{}{name: raw})
	}
	return &id, nil
}
