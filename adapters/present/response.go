package present

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-deck-export/export"
	errorslib "github.com/goliatone/go-errors"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WriteError writes err as JSON with a status derived from its kind.
func WriteError(c *fiber.Ctx, err error) error {
	if err == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	ge := export.AsGoError(err)
	return c.Status(statusForError(ge)).JSON(ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	})
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.TextCode {
	case string(export.KindNotImpl):
		return http.StatusNotImplemented
	case string(export.KindEnvironment):
		return http.StatusServiceUnavailable
	case string(export.KindNavigation):
		return http.StatusBadGateway
	case string(export.KindTimeout):
		return http.StatusGatewayTimeout
	case string(export.KindCanceled):
		return http.StatusConflict
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
