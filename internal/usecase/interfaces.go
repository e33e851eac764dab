package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
)

// DiscoveryRequest é uma chamada paga ao ator de descoberta.
type DiscoveryRequest struct {
	ActorID    string
	Platform   entity.Platform
	Query      string
	Location   string
	MaxRecords int
}

// DiscoveryRecord é o item cru devolvido pelo ator; o formato varia por plataforma.
type DiscoveryRecord map[string]any

type DiscoveryService interface {
	Discover(ctx context.Context, req DiscoveryRequest) ([]DiscoveryRecord, error)
}

// ContactProfile é o perfil público encontrado pelo Spy.
type ContactProfile struct {
	Handle      string
	Email       string
	Phone       string
	Biography   string
	ExternalURL string
}

type ContactLookup interface {
	LookupContact(ctx context.Context, handle string) (*ContactProfile, error)
}

// GenerationRequest: Deterministic pede temperatura zero (classificações).
type GenerationRequest struct {
	Purpose       string
	System        string
	Prompt        string
	JSON          bool
	Deterministic bool
}

type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type SiteReport struct {
	Reachable   bool
	StatusCode  int
	Latency     time.Duration
	HasWhatsApp bool
	HasMailto   bool
}

type SiteProbe interface {
	Probe(ctx context.Context, url string) (SiteReport, error)
}

// ReputationCache memoriza a classificação de reviews por fingerprint do texto.
type ReputationCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// RateLimiter limita mensagens do chat por chave.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type QueueProducerInterface interface {
	PublishOutreach(ctx context.Context, payload queue.OutreachPayload) error
}

// Clock permite congelar o tempo nos testes.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func clockOrSystem(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}
