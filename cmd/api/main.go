package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/app"
	"github.com/xavierca1/prospect-pipeline/internal/config"
	"github.com/xavierca1/prospect-pipeline/internal/infra/cache"
	"github.com/xavierca1/prospect-pipeline/internal/infra/database"
	"github.com/xavierca1/prospect-pipeline/internal/infra/http/handlers"
	"github.com/xavierca1/prospect-pipeline/internal/infra/http/middleware"
	"github.com/xavierca1/prospect-pipeline/internal/infra/mail"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
	"github.com/xavierca1/prospect-pipeline/internal/infra/worker"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config inválida: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("falha ao iniciar dependências", zap.Error(err))
	}
	defer a.Close()

	if a.DB != nil {
		applied, err := database.Migrate(ctx, a.DB)
		if err != nil {
			logger.Fatal("falha nas migrations", zap.Error(err))
		}
		if len(applied) > 0 {
			logger.Info("migrations aplicadas", zap.Strings("files", applied))
		}
	}

	var wg sync.WaitGroup

	// 1. Entrega de emails (consome a fila)
	if a.RabbitMQ != nil {
		mailSender, err := mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.MailFrom)
		if err != nil {
			logger.Fatal("falha ao carregar templates de email", zap.Error(err))
		}
		consumerCh, err := a.ConsumerChannel()
		if err != nil {
			logger.Fatal("falha ao abrir canal do consumidor", zap.Error(err))
		}
		defer consumerCh.Close()

		outreachWorker := queue.NewWorker(consumerCh, mailSender, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := outreachWorker.Start(ctx, queue.QueueName); err != nil {
				logger.Error("consumidor de outreach parou", zap.Error(err))
				stop()
			}
		}()
	}

	// 2. Laço do orquestrador
	pipeline := worker.NewPipelineWorker(a.Orchestrator, cfg.LoopInterval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Start(ctx)
	}()

	if rl, ok := a.Limiter.(*cache.RateLimiter); ok {
		go rl.Cleanup(ctx, 10*time.Minute)
	}

	// 3. Handlers
	healthHandler := handlers.NewHealthHandler(a.DB, a.BrokerConn(), a.Redis)
	prospectHandler := handlers.NewProspectHandler(a.Prospects, a.Nurturer, a.Limiter, logger)
	onboardingHandler := handlers.NewOnboardingHandler(a.Onboarding, logger)

	// 4. Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/healthz", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/p/{token}", prospectHandler.Landing)
	r.Post("/p/{token}/chat", prospectHandler.Chat)

	if cfg.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(handlers.RequireToken(cfg.AdminToken))
			r.Post("/clients", onboardingHandler.CreateClient)
			r.Post("/campaigns", onboardingHandler.CreateCampaign)
		})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("servidor HTTP no ar", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("servidor HTTP caiu", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("encerrando")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown HTTP", zap.Error(err))
	}
	wg.Wait()
}
