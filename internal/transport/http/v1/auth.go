package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/roadchat/internal/domain"
)

const sessionKey = "session"

// Authenticate admits the request through the session verifier and stores
// the session on the context.
func (h *Handler) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := h.verifier.Verify(c.Request())
		if err != nil {
			return writeError(c, err)
		}
		c.Set(sessionKey, sess)
		return next(c)
	}
}

func sessionFrom(c echo.Context) (*domain.ClientSession, error) {
	sess, ok := c.Get(sessionKey).(*domain.ClientSession)
	if !ok || sess == nil {
		return nil, domain.ErrUnauthenticated
	}
	return sess, nil
}
