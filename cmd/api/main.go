package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/microblog/internal/config"
	"github.com/emilythestrangee/microblog/internal/database"
	"github.com/emilythestrangee/microblog/internal/logger"
	"github.com/emilythestrangee/microblog/internal/server"
)

func gracefulShutdown(ctx context.Context, srv *http.Server, done chan<- struct{}) {
	<-ctx.Done()
	logrus.Info("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server forced to shutdown")
	}
	close(done)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger.Init(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	log := logrus.StandardLogger()

	db, err := database.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	srv, err := server.NewServer(cfg, db, log)
	if err != nil {
		log.WithError(err).Fatal("build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go gracefulShutdown(ctx, srv, done)

	log.WithField("addr", srv.Addr).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server error")
	}

	<-done
	log.Info("graceful shutdown complete")
}
