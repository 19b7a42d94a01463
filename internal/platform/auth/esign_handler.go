package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/labflow/labflow/internal/platform/apperr"
)

// ESignHandler exposes self-service management of the e-sign credential.
type ESignHandler struct {
	store *ESignStore
}

func NewESignHandler(store *ESignStore) *ESignHandler {
	return &ESignHandler{store: store}
}

func (h *ESignHandler) RegisterRoutes(api *echo.Group) {
	api.PUT("/esign/password", h.SetPassword)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// SetPassword sets the caller's own e-sign password.
func (h *ESignHandler) SetPassword(c echo.Context) error {
	userID := UserIDFromContext(c.Request().Context())
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req setPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.store.SetPassword(c.Request().Context(), userID, req.Password); err != nil {
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			return echo.NewHTTPError(http.StatusBadRequest, ve.Msg)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store credential")
	}

	return c.NoContent(http.StatusNoContent)
}
