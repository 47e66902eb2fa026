package opds

import (
	"github.com/devourer-reader/devourer/pkg/books"
	"github.com/devourer-reader/devourer/pkg/libraries"
	"github.com/devourer-reader/devourer/pkg/manga"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		libraryService: libraries.NewService(db),
		bookService:    books.NewService(db),
		mangaService:   manga.NewService(db),
	}

	g := e.Group("/opds")
	g.GET("", h.catalog)
	g.GET("/libraries/:id", h.libraryFeed)
	g.GET("/libraries/:id/series/:seriesID", h.seriesFeed)
	g.GET("/download/books/:id", h.downloadBook)
	g.GET("/download/manga/:id", h.downloadManga)
	g.GET("/covers/books/:id", h.bookCover)
	g.GET("/covers/series/:id", h.seriesCover)
	g.GET("/previews/manga/:id", h.mangaPreview)
}
