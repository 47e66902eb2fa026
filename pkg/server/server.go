package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/devourer-reader/devourer/pkg/binder"
	"github.com/devourer-reader/devourer/pkg/collections"
	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/libraries"
	"github.com/devourer-reader/devourer/pkg/metadata"
	"github.com/devourer-reader/devourer/pkg/opds"
	"github.com/devourer-reader/devourer/pkg/scanner"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, sc *scanner.Scanner, metadataService *metadata.Service) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	if cfg.FrontendURL != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{cfg.FrontendURL},
		}))
	} else {
		e.Use(middleware.CORS())
	}

	health.RegisterRoutes(e)
	libraries.RegisterRoutes(e, db, sc.StartScan)
	collections.RegisterRoutes(e, db)
	scanner.RegisterRoutes(e, sc)
	metadata.RegisterRoutes(e, metadataService)
	opds.RegisterRoutes(e, db)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
