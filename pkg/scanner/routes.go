package scanner

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, scanner *Scanner) {
	h := &handler{scanner: scanner}

	e.POST("/libraries/:id/scan", h.start)
	e.GET("/libraries/:id/scan", h.status)
}
