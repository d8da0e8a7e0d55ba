package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consulta-backend/calendar"
	"consulta-backend/config"
	"consulta-backend/controllers"
	"consulta-backend/database"
	"consulta-backend/jobs"
	"consulta-backend/logging"
	"consulta-backend/mailer"
	"consulta-backend/middlewares"
	"consulta-backend/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.Development(), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// ---- Database
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("database connect", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("database migrate", zap.Error(err))
	}

	// ---- Calendar (billing preview and sync answer 503 without credentials)
	var cal calendar.Source = calendar.Disabled{}
	if cfg.GoogleCredentialsFile != "" {
		g, err := calendar.NewGoogleSource(context.Background(), cfg.GoogleCredentialsFile, cfg.Location)
		if err != nil {
			log.Fatal("google calendar", zap.Error(err))
		}
		cal = g
	} else {
		log.Warn("GOOGLE_CREDENTIALS_FILE not set; calendar features disabled")
	}

	// ---- Mail
	var transport mailer.Transport = mailer.NewLogTransport(log)
	if cfg.SMTPEnabled() {
		transport = mailer.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFromAddress, cfg.MailFromName)
	} else {
		log.Warn("SMTP not configured; emails are only logged")
	}
	mail := mailer.New(transport, cfg.MailFromName, log)

	auth, err := middlewares.NewAuth(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatal("auth", zap.Error(err))
	}
	h := controllers.NewHandler(cfg, db, log, mail, auth, cal)

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler(log),
		BodyLimit:    cfg.BodyLimitBytes,
	})

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
	}))

	// ---- Global rate limiter (default KeyGenerator = client IP)
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
	}))

	app.Use(middlewares.RequestLogger(log))

	// ---- Routes
	routes.Register(app, h)

	// ---- Jobs
	if cfg.JobsEnabled {
		scheduler, err := jobs.Start(&jobs.Runner{
			Syncer:       h.Syncer,
			Recalculator: h.Recalculator,
			Expenses:     h.Store,
			CalendarID:   cfg.CalendarID,
			Location:     cfg.Location,
			Log:          log,
		})
		if err != nil {
			log.Fatal("jobs", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	// ---- Start, then drain on SIGINT/SIGTERM
	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
