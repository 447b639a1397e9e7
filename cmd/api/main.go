package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/config"
	v1 "github.com/dmehra2102/prod-golang-projects/radflow/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/radflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/cache"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/radflow/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	zlog, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		zlog.Fatal("tracer init failed", zap.Error(err))
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db, zlog); err != nil {
		zlog.Fatal("database migration failed", zap.Error(err))
	}

	cacheClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		zlog.Fatal("redis connection failed", zap.Error(err))
	}
	defer func() { _ = cacheClient.Close() }()

	m := metrics.NewCollector("radflow")
	jwtManager := auth.NewJWTManager(cfg.JWT)

	studyRepo := postgres.NewStudyRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	userRepo := postgres.NewUserRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	txManager := postgres.NewTxManager(db)

	auditSvc := service.NewAuditService(auditRepo, zlog, m)
	authSvc := service.NewAuthService(userRepo, jwtManager, zlog)
	studySvc := service.NewStudyService(studyRepo, patientRepo, cacheClient, auditSvc, m, zlog)
	doctorSvc := service.NewDoctorService(doctorRepo, cacheClient, auditSvc, zlog)
	patientSvc := service.NewPatientService(patientRepo, cacheClient, auditSvc, zlog)
	assignmentSvc := service.NewAssignmentService(txManager, studyRepo, cacheClient, auditSvc, m, zlog, cfg.Workflow)

	go assignmentSvc.RunOverdueSweep(ctx, cfg.Workflow.OverdueSweepInterval)

	router := v1.NewRouter(v1.RouterDeps{
		JWTManager: jwtManager,
		Metrics:    m,
		Auth:       v1.NewAuthHandler(authSvc),
		Study:      v1.NewStudyHandler(studySvc, assignmentSvc),
		Doctor:     v1.NewDoctorHandler(doctorSvc),
		Patient:    v1.NewPatientHandler(patientSvc),
		Workflow:   v1.NewWorkflowHandler(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http server shutdown error", zap.Error(err))
	}

	// Drain the audit buffer before the process exits; entries still queued
	// after the timeout are lost.
	auditSvc.Shutdown()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		zlog.Error("tracer shutdown error", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zlog.Info("shutdown complete")
}
