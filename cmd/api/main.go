package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/database"
	"github.com/devourer-reader/devourer/pkg/metadata"
	"github.com/devourer-reader/devourer/pkg/migrations"
	"github.com/devourer-reader/devourer/pkg/ratelimit"
	"github.com/devourer-reader/devourer/pkg/scanner"
	"github.com/devourer-reader/devourer/pkg/server"
	"github.com/devourer-reader/devourer/pkg/version"
	"github.com/devourer-reader/devourer/pkg/watcher"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting devourer", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	metadataService := metadata.NewService(cfg, ratelimit.NewProviders())
	sc := scanner.New(cfg, db, metadataService)

	w := watcher.New(cfg, db, sc)
	if err := w.Start(ctx); err != nil {
		log.Err(err).Error("watcher start error")
	}

	srv, err := server.New(cfg, db, sc, metadataService)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"port": actualPort})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	w.Stop()
	log.Info("watcher shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
