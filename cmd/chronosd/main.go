package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/auth"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/config"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/repository"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/server"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	repos := repository.NewRegistry(db)
	rolloverSvc := service.NewRolloverService(repos.Profiles, repos.Tasks)
	duplicateSvc := service.NewDuplicateService(repos)
	exportSvc := service.NewExportService(repos)

	verifier := auth.NewJWTVerifier(cfg.AuthSecret)
	srv := server.New(verifier, repos, rolloverSvc, duplicateSvc, exportSvc)

	if cfg.RolloverTime != "" {
		scheduler := service.NewSchedulerService(time.Local)
		if _, err := scheduler.ScheduleDaily(cfg.RolloverTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := rolloverSvc.RolloverAll(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("rollover job: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule rollover: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("chronos server listening on %s", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
