package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/baticonnect/artisan-backend/internal/config"
	"github.com/baticonnect/artisan-backend/internal/db"
	httpHandlers "github.com/baticonnect/artisan-backend/internal/http/handlers"
	httpRouter "github.com/baticonnect/artisan-backend/internal/http/router"
	"github.com/baticonnect/artisan-backend/internal/logger"
	"github.com/baticonnect/artisan-backend/internal/repository"
	"github.com/baticonnect/artisan-backend/internal/service"
	"github.com/baticonnect/artisan-backend/internal/storage"
	"github.com/baticonnect/artisan-backend/internal/usecase/dispute"
	"github.com/baticonnect/artisan-backend/internal/usecase/escrow"
	"github.com/baticonnect/artisan-backend/internal/usecase/job"
	"github.com/baticonnect/artisan-backend/internal/usecase/sweep"
	"github.com/baticonnect/artisan-backend/internal/usecase/token"
	"github.com/baticonnect/artisan-backend/internal/usecase/worksite"
	"github.com/baticonnect/artisan-backend/internal/ws"
)

func main() {
	// Shutdown context, cancelled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: load config: %v", err)
	}

	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: connect to database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: run migrations: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	photoStorage, err := storage.NewPhotoStorage(cfg.PhotoStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: prepare photo storage: %v", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn, cfg.CurrencyCode)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	txRepo := repository.NewTransactionRepository(dbConn)
	tokenRepo := repository.NewTokenRepository(dbConn)
	worksiteRepo := repository.NewWorksiteRepository(dbConn, cfg.CurrencyCode)
	disputeRepo := repository.NewDisputeRepository(dbConn, cfg.CurrencyCode)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// WebSocket hub pushes notifications to connected users.
	hub := ws.NewHub()
	go hub.Run()

	// Services.
	gateway := service.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey)
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo, hub, logger.Log)
	mediatorAssigner := service.NewMediatorAssigner(userRepo)

	// Escrow movements.
	openEscrow := escrow.NewOpenEscrowUseCase(escrowRepo, txRepo, gateway)
	releaseFunds := escrow.NewReleaseFundsUseCase(escrowRepo, txRepo, gateway)
	refundEscrow := escrow.NewRefundEscrowUseCase(escrowRepo, txRepo, gateway)

	// Jobs and worksites.
	acceptQuote := job.NewAcceptQuoteUseCase(jobRepo, worksiteRepo, openEscrow, notificationService)
	addMilestone := worksite.NewAddMilestoneUseCase(worksiteRepo, escrowRepo)
	submitProof := worksite.NewSubmitProofUseCase(worksiteRepo, notificationService)
	validateMilestone := worksite.NewValidateMilestoneUseCase(worksiteRepo, releaseFunds, notificationService)
	contestMilestone := worksite.NewContestMilestoneUseCase(worksiteRepo, notificationService)
	completeWorksite := worksite.NewCompleteWorksiteUseCase(worksiteRepo, notificationService)

	// Material tokens.
	issueToken := token.NewIssueTokenUseCase(tokenRepo, escrowRepo)
	redeemToken := token.NewRedeemTokenUseCase(tokenRepo, escrowRepo, txRepo, gateway, notificationService)

	// Disputes.
	openDispute := dispute.NewOpenDisputeUseCase(disputeRepo, worksiteRepo, escrowRepo, notificationService)
	startMediation := dispute.NewStartMediationUseCase(disputeRepo, escrowRepo, mediatorAssigner)
	addCommunication := dispute.NewAddCommunicationUseCase(disputeRepo)
	resolveMediation := dispute.NewResolveMediationUseCase(disputeRepo, worksiteRepo, notificationService)
	escalateDispute := dispute.NewEscalateDisputeUseCase(disputeRepo, userRepo)
	renderDecision := dispute.NewRenderDecisionUseCase(disputeRepo, worksiteRepo, escrowRepo, txRepo, gateway, notificationService)
	closeDispute := dispute.NewCloseDisputeUseCase(disputeRepo)

	// Background sweep: auto-validation deadlines and token expiry.
	runSweep := sweep.NewRunSweepUseCase(worksiteRepo, tokenRepo, validateMilestone, notificationService, logger.Log)
	sweeper := sweep.NewSweeper(runSweep, cfg.SweepInterval, logger.Log)
	sweeper.Start(ctx)

	// HTTP handlers.
	authHandler := httpHandlers.NewAuthHandler(authService)
	jobHandler := httpHandlers.NewJobHandler(jobRepo, acceptQuote, cfg.CurrencyCode)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowRepo, txRepo, refundEscrow, cfg.CurrencyCode)
	tokenHandler := httpHandlers.NewTokenHandler(issueToken, redeemToken, tokenRepo, cfg.CurrencyCode)
	worksiteHandler := httpHandlers.NewWorksiteHandler(worksiteRepo, addMilestone, submitProof, validateMilestone, contestMilestone, completeWorksite, cfg.CurrencyCode)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeRepo, openDispute, startMediation, addCommunication, resolveMediation, escalateDispute, renderDecision, closeDispute, cfg.CurrencyCode)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	mediaHandler := httpHandlers.NewMediaHandler(photoStorage, cfg.PublicBaseURL)
	webhookHandler := httpHandlers.NewWebhookHandler(txRepo, cfg.GatewayAPIKey)
	sweepHandler := httpHandlers.NewSweepHandler(runSweep)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		jobHandler,
		escrowHandler,
		tokenHandler,
		worksiteHandler,
		disputeHandler,
		notificationHandler,
		mediaHandler,
		webhookHandler,
		sweepHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown: %v", err)
		}
	}()

	log.Printf("main: HTTP server listening on port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server stopped with error: %v", err)
	}
}

func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: close database: %v", err)
	}
}
