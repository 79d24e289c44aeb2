package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/roadchat/internal/domain"
)

// writeError translates a domain error into a status and a message safe to
// show clients.
func writeError(c echo.Context, err error) error {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrMalformed), errors.Is(err, domain.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrUnauthorized):
		status, msg = http.StatusForbidden, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "user cannot be contacted"
	case errors.Is(err, domain.ErrNotOwnerOrMissing):
		status, msg = http.StatusNotFound, domain.ErrNotOwnerOrMissing.Error()
	case errors.Is(err, domain.ErrConversationNotFound):
		status, msg = http.StatusNotFound, domain.ErrConversationNotFound.Error()
	case errors.Is(err, domain.ErrConflict):
		status, msg = http.StatusConflict, domain.ErrConflict.Error()
	}
	return c.JSON(status, map[string]string{"error": msg})
}

// bind decodes and validates the request body.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}
