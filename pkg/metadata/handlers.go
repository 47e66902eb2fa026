package metadata

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	metadataService *Service
}

// providers returns every loaded provider descriptor grouped by the
// library type it serves.
func (h *handler) providers(c echo.Context) error {
	grouped, err := h.metadataService.Providers()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, grouped))
}
