package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkinAPI/handlers"
	"checkinAPI/internal/config"
	"checkinAPI/middleware"
	"checkinAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := config.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse database URL")
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create connection pool")
	}
	defer func() {
		logger.Info().Msg("closing database connection pool")
		dbPool.Close()
	}()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping database")
	}

	store := services.NewPostgresStore(dbPool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}
	logger.Info().Msg("database ready")

	var sender services.EmailSender
	if cfg.SendgridAPIKey != "" {
		sender = services.NewSendgridSender(cfg.SendgridAPIKey, cfg.EmailFromName, cfg.EmailFromAddr)
	} else {
		logger.Warn().Msg("no SendGrid API key, reminder emails go to the log only")
		sender = services.NewConsoleSender(logger)
	}

	accountService := services.NewAccountService(store, logger)
	checkinService := services.NewCheckinService(store, accountService, logger)
	reminderService := services.NewReminderService(store, accountService, sender, logger, services.ReminderOptions{
		AppURL:        cfg.AppURL,
		DailyHour:     cfg.DailyTriggerHour,
		WeeklyHour:    cfg.WeeklyTriggerHour,
		WindowMinutes: cfg.TriggerWindowMin,
		MaxLog:        cfg.MaxLogEntries,
	})

	middleware.InitPrometheus()

	authHandler := handlers.NewAuthHandler(accountService, cfg.JWTSecret)
	adminHandler := handlers.NewAdminHandler(accountService)
	checkinHandler := handlers.NewCheckinHandler(checkinService)
	dashboardHandler := handlers.NewDashboardHandler(checkinService)
	reminderHandler := handlers.NewReminderHandler(reminderService, cfg.ReminderRunSecret)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "checkin-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/status", authHandler.Status).Methods("GET")
	api.HandleFunc("/auth/setup", authHandler.Setup).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Cron entrypoint. Guarded by REMINDER_RUN_SECRET when configured;
	// sending is idempotent per (member, type, date) either way.
	api.HandleFunc("/reminders/run", reminderHandler.Run).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	protected.HandleFunc("/auth/password", authHandler.ChangePassword).Methods("POST")
	protected.HandleFunc("/me/timezone", authHandler.SetTimezone).Methods("PUT")

	protected.HandleFunc("/checkins/days", checkinHandler.SelectableDays).Methods("GET")
	protected.HandleFunc("/checkins/daily/{date}", checkinHandler.SubmitDaily).Methods("POST")
	protected.HandleFunc("/checkins/weekly/{weekId}", checkinHandler.SubmitWeekly).Methods("POST")
	protected.HandleFunc("/checkins/pto", checkinHandler.TogglePTO).Methods("POST")
	protected.HandleFunc("/checkins/seen", checkinHandler.MarkSeen).Methods("POST")
	protected.HandleFunc("/checkins/stuck/{date}/reply", checkinHandler.ReplyStuck).Methods("POST")
	protected.HandleFunc("/checkins/weeks/{weekId}", checkinHandler.WeekDetail).Methods("GET")
	protected.HandleFunc("/checkins/summary", checkinHandler.Summary).Methods("GET")

	ceo := protected.PathPrefix("").Subrouter()
	ceo.Use(middleware.RequireCEO)

	ceo.HandleFunc("/admin/companies", adminHandler.ListCompanies).Methods("GET")
	ceo.HandleFunc("/admin/companies", adminHandler.CreateCompany).Methods("POST")
	ceo.HandleFunc("/admin/companies/{companyId}", adminHandler.DeleteCompany).Methods("DELETE")
	ceo.HandleFunc("/admin/companies/{companyId}/timezone", adminHandler.SetCompanyTimezone).Methods("PUT")
	ceo.HandleFunc("/admin/companies/{companyId}/teams", adminHandler.CreateTeam).Methods("POST")
	ceo.HandleFunc("/admin/companies/{companyId}/teams/{teamId}", adminHandler.DeleteTeam).Methods("DELETE")
	ceo.HandleFunc("/admin/companies/{companyId}/teams/{teamId}/members", adminHandler.AddMember).Methods("POST")
	ceo.HandleFunc("/admin/companies/{companyId}/members/{memberId}", adminHandler.RemoveMember).Methods("DELETE")
	ceo.HandleFunc("/admin/companies/{companyId}/members/{memberId}", adminHandler.UpdateMemberProfile).Methods("PUT")
	ceo.HandleFunc("/admin/companies/{companyId}/members/{memberId}/kpis", adminHandler.UpdateMemberKPIs).Methods("PUT")
	ceo.HandleFunc("/admin/companies/{companyId}/members/{memberId}/reset-password", adminHandler.ResetMemberPassword).Methods("POST")

	ceo.HandleFunc("/dashboard/{companyId}/daily/{date}", dashboardHandler.DailyFeed).Methods("GET")
	ceo.HandleFunc("/dashboard/{companyId}/weekly/{weekId}", dashboardHandler.WeeklyBoard).Methods("GET")
	ceo.HandleFunc("/dashboard/{companyId}/heatmap", dashboardHandler.Heatmap).Methods("GET")
	ceo.HandleFunc("/dashboard/{companyId}/members/{memberId}/weeks/{weekId}", dashboardHandler.MemberDetail).Methods("GET")
	ceo.HandleFunc("/dashboard/{companyId}/members/{memberId}/summary", dashboardHandler.MemberSummary).Methods("GET")
	ceo.HandleFunc("/dashboard/{companyId}/members/{memberId}/daily/{date}/comment", dashboardHandler.SetDailyComment).Methods("PUT")
	ceo.HandleFunc("/dashboard/{companyId}/members/{memberId}/weekly/{weekId}/comment", dashboardHandler.SetWeeklyComment).Methods("PUT")
	ceo.HandleFunc("/dashboard/{companyId}/members/{memberId}/stuck/{date}/reply", dashboardHandler.ReplyStuck).Methods("POST")

	ceo.HandleFunc("/reminders/{companyId}/config", reminderHandler.GetConfig).Methods("GET")
	ceo.HandleFunc("/reminders/{companyId}/config", reminderHandler.UpdateConfig).Methods("PUT")
	ceo.HandleFunc("/reminders/{companyId}/log", reminderHandler.Log).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	// WriteTimeout must outlast a throttled reminder run.
	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("error starting server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("server shutdown complete")
}
