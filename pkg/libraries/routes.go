package libraries

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, startScan StartScanFunc) {
	libraryService := NewService(db)

	h := &handler{
		libraryService: libraryService,
		startScan:      startScan,
	}

	e.POST("/libraries", h.create)
	e.GET("/libraries/:id", h.retrieve)
	e.GET("/libraries", h.list)
	e.PATCH("/libraries/:id", h.update)
	e.DELETE("/libraries/:id", h.delete)
}
