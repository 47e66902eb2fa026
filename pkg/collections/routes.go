package collections

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		collectionService: NewService(db),
	}

	e.POST("/collections", h.create)
	e.GET("/collections/:id", h.retrieve)
	e.GET("/collections", h.list)
	e.PATCH("/collections/:id", h.update)
	e.DELETE("/collections/:id", h.delete)
}
