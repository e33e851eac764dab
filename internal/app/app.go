// Package app monta o grafo de dependências compartilhado por cmd/api e cmd/ctl.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/config"
	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/cache"
	"github.com/xavierca1/prospect-pipeline/internal/infra/database"
	"github.com/xavierca1/prospect-pipeline/internal/infra/integration/apify"
	"github.com/xavierca1/prospect-pipeline/internal/infra/integration/gemini"
	"github.com/xavierca1/prospect-pipeline/internal/infra/integration/website"
	"github.com/xavierca1/prospect-pipeline/internal/infra/memory"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

// ErrNoBroker: o processo roda sem RabbitMQ e não há fila para consumir.
var ErrNoBroker = errors.New("rabbitmq não configurado")

type App struct {
	Config config.Config
	Logger *zap.Logger

	DB       *sql.DB         // nil sem DATABASE_URL: repositórios em memória
	RabbitMQ *queue.RabbitMQ // nil sem RABBITMQ_URL: mensagens só no log
	Redis    *redis.Client   // nil quando REDIS_URL não está configurado

	Prospects entity.ProspectRepository
	Campaigns entity.CampaignRepository
	Clients   entity.ClientRepository
	Tools     entity.ToolRepository
	Spend     entity.SpendRepository

	Limiter      usecase.RateLimiter
	Orchestrator *usecase.Orchestrator
	Nurturer     *usecase.Nurturer
	Onboarding   *usecase.Onboarding
}

// New conecta Postgres, RabbitMQ e Redis quando configurados e monta os casos
// de uso. Sem URL, cada dependência cai para a versão em processo.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := database.NewDBConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Prospects = database.NewProspectRepository(db)
		a.Campaigns = database.NewCampaignRepository(db)
		a.Clients = database.NewClientRepository(db)
		a.Tools = database.NewToolRepository(db)
		a.Spend = database.NewSpendRepository(db)
	} else {
		logger.Warn("DATABASE_URL vazio, estado só em memória")
		store := memory.NewStore()
		a.Prospects = store.Prospects()
		a.Campaigns = store.Campaigns()
		a.Clients = store.Clients()
		a.Tools = store.Tools()
		a.Spend = store.Spend()
	}

	var producer queue.OutreachPublisher
	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.RabbitMQ = rabbit
		producer = queue.NewProducer(rabbit.Conn, rabbit.Ch)
	} else {
		logger.Warn("RABBITMQ_URL vazio, mensagens vão só para o log")
		producer = queue.NewLogPublisher(logger)
	}

	var reputation usecase.ReputationCache
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis indisponível, usando caches em memória", zap.Error(err))
		} else {
			a.Redis = rdb
		}
	}
	if a.Redis != nil {
		reputation = cache.NewRedisReputationCache(a.Redis, 0)
		a.Limiter = cache.NewRedisRateLimiter(a.Redis, cfg.ChatRateLimit, cfg.ChatRateWindow)
	} else {
		reputation = cache.NewMemoryReputationCache()
		a.Limiter = cache.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
	}

	gen, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("gemini: %w", err)
	}

	// Gateways
	actors := apify.NewClient(cfg.ApifyToken, cfg.ApifyBaseURL, cfg.SpyActorID)
	probe := website.NewProbe(0)

	// Casos de uso
	governor := usecase.NewBudgetGovernor(a.Spend,
		usecase.BudgetPolicy{
			CeilingPerLead: cfg.HunterCeilingPerLead,
			CostPerCall:    cfg.HunterCostPerCall,
			MinCallsPerDay: cfg.MinCallsPerDay,
		},
		usecase.BudgetPolicy{
			CeilingPerLead: cfg.SpyCeilingPerLead,
			CostPerCall:    cfg.SpyCostPerCall,
			MinCallsPerDay: cfg.MinCallsPerDay,
		},
		logger, nil,
	)

	a.Nurturer = usecase.NewNurturer(a.Prospects, a.Campaigns, gen, producer, usecase.NurtureConfig{
		BatchSize:          cfg.BatchSize,
		ClaimTTL:           cfg.ClaimTTL,
		ValueDelay:         cfg.ValueDelay,
		SocialProofDelay:   cfg.SocialProofDelay,
		BreakupDelay:       cfg.BreakupDelay,
		MaxAttempts:        cfg.MaxAttempts,
		QualifiedThreshold: cfg.QualifiedThreshold,
		OperatorEmail:      cfg.OperatorEmail,
		PublicBaseURL:      cfg.PublicBaseURL,
	}, logger, nil)

	a.Onboarding = usecase.NewOnboarding(a.Clients, a.Campaigns, logger, nil)

	a.Orchestrator = &usecase.Orchestrator{
		Prospects:  a.Prospects,
		Campaigns:  a.Campaigns,
		Tools:      a.Tools,
		Billing:    usecase.NewBilling(a.Clients, a.Campaigns, producer, cfg.BillingAlertLead, cfg.BillingGrace, logger, nil),
		Strategist: usecase.NewStrategist(a.Campaigns, gen, logger),
		Hunter:     usecase.NewHunter(a.Prospects, actors, governor, logger),
		Spy:        usecase.NewSpy(a.Prospects, actors, governor, cfg.ClaimTTL, logger, nil),
		Analyst: usecase.NewAnalyst(a.Prospects, a.Campaigns, probe, gen, reputation, usecase.AnalystConfig{
			BatchSize:         cfg.BatchSize,
			Parallelism:       cfg.AnalystParallelism,
			ClaimTTL:          cfg.ClaimTTL,
			MaxAttempts:       cfg.MaxAttempts,
			SlowSiteThreshold: cfg.SlowSiteThreshold,
		}, logger, nil),
		Persuader: usecase.NewPersuader(a.Prospects, a.Campaigns, gen, usecase.PersuaderConfig{
			BatchSize:   cfg.BatchSize,
			ClaimTTL:    cfg.ClaimTTL,
			MaxAttempts: cfg.MaxAttempts,
		}, logger, nil),
		Dispatcher: usecase.NewOutreachDispatcher(a.Prospects, producer, cfg.PublicBaseURL, cfg.BatchSize, logger, nil),
		Nurturer:   a.Nurturer,
		Logger:     logger,
	}

	return a, nil
}

// ConsumerChannel abre um canal próprio para o consumidor, separado do publisher.
func (a *App) ConsumerChannel() (*amqp.Channel, error) {
	if a.RabbitMQ == nil {
		return nil, ErrNoBroker
	}
	ch, err := a.RabbitMQ.Conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir canal do consumidor: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

func (a *App) Close() {
	if a.RabbitMQ != nil {
		a.RabbitMQ.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// BrokerConn devolve a conexão AMQP para o health check, ou nil.
func (a *App) BrokerConn() *amqp.Connection {
	if a.RabbitMQ == nil {
		return nil
	}
	return a.RabbitMQ.Conn
}
