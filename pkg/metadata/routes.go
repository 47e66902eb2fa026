package metadata

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, metadataService *Service) {
	h := &handler{metadataService: metadataService}

	e.GET("/metadata/providers", h.providers)
}
