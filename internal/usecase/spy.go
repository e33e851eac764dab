package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/metrics"
)

type SpyOutput struct {
	Promoted  int
	Attempted int
	Found     int
	Discarded int
	Abandoned int
}

// Spy completa canais de contato: primeiro a reclassificação grátis, depois
// no máximo uma consulta paga por prospect.
type Spy struct {
	Prospects entity.ProspectRepository
	Lookup    ContactLookup
	Governor  *BudgetGovernor
	ClaimTTL  time.Duration
	Logger    *zap.Logger
	Now       Clock
}

func NewSpy(prospects entity.ProspectRepository, lookup ContactLookup, governor *BudgetGovernor, claimTTL time.Duration, logger *zap.Logger, now Clock) *Spy {
	return &Spy{
		Prospects: prospects,
		Lookup:    lookup,
		Governor:  governor,
		ClaimTTL:  claimTTL,
		Logger:    logger,
		Now:       clockOrSystem(now),
	}
}

func (s *Spy) Execute(ctx context.Context, campaign *entity.Campaign) (SpyOutput, error) {
	var out SpyOutput
	log := s.Logger.With(zap.String("worker", "spy"), zap.String("campaign_id", campaign.ID))

	// Fase A: quem já tem contato não precisa de consulta paga
	promoted, err := s.Prospects.PromoteContacted(ctx, campaign.ID, s.Now())
	if err != nil {
		return out, newPipelineError(KindPersistence, "spy.promote", err)
	}
	out.Promoted = promoted

	// Fase B
	allowed, err := s.Governor.Allowance(ctx, campaign, entity.WorkerSpy)
	if err != nil {
		return out, err
	}
	if allowed == 0 {
		log.Debug("sem orçamento para consultas pagas", zap.Int("promoted", promoted))
		return out, nil
	}

	now := s.Now()
	token := uuid.New().String()
	batch, err := s.Prospects.Claim(ctx, entity.ClaimRequest{
		Statuses:    []entity.Status{entity.StatusHunted},
		CampaignID:  campaign.ID,
		Contact:     entity.ContactMissing,
		FreshForSpy: true,
		Limit:       allowed,
		Token:       token,
		Until:       now.Add(s.ClaimTTL),
		Now:         now,
	})
	if err != nil {
		return out, newPipelineError(KindPersistence, "spy.claim", err)
	}
	metrics.RecordClaims("spy", len(batch))

	for i, p := range batch {
		if ctx.Err() != nil {
			s.releaseRest(ctx, batch[i:], token, "cancelado")
			break
		}
		result, err := s.investigate(ctx, campaign, p, token)
		if err != nil {
			if isBudgetFailure(err) {
				log.Error("orçamento ilegível, encerrando lote", zap.String("prospect_id", p.ID), zap.Error(err))
				s.releaseRest(ctx, batch[i:], token, err.Error())
				return out, err
			}
			log.Error("falha no spy", zap.String("prospect_id", p.ID), zap.Error(err))
			s.releaseRest(ctx, batch[i:i+1], token, err.Error())
			continue
		}
		switch result {
		case entity.StatusSpied:
			out.Attempted++
			out.Found++
		case entity.StatusSpyDiscarded:
			out.Attempted++
			out.Discarded++
		case entity.StatusSpyAbandoned:
			out.Abandoned++
		}
	}

	log.Info("espionagem concluída",
		zap.Int("promoted", out.Promoted),
		zap.Int("attempted", out.Attempted),
		zap.Int("found", out.Found),
		zap.Int("discarded", out.Discarded),
		zap.Int("abandoned", out.Abandoned),
	)
	return out, nil
}

func (s *Spy) investigate(ctx context.Context, campaign *entity.Campaign, p *entity.Prospect, token string) (entity.Status, error) {
	handle := DeriveHandle(p)
	if handle == "" {
		return entity.StatusSpyAbandoned, s.advance(ctx, p, token, entity.StatusSpyAbandoned, "", "", "sem identidade para busca")
	}

	// a tentativa é gravada antes da cobrança: claim perdido não gasta orçamento
	if err := s.Prospects.MarkSpyAttempt(ctx, p.ID, token); err != nil {
		if errors.Is(err, entity.ErrClaimLost) {
			s.Logger.Warn("claim perdido no spy", zap.String("prospect_id", p.ID))
			return "", nil
		}
		return "", newPipelineError(KindPersistence, "spy.attempt", err)
	}
	if err := s.Governor.Charge(ctx, campaign.ID, entity.WorkerSpy, 1); err != nil {
		return "", err
	}

	profile, err := s.Lookup.LookupContact(ctx, handle)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			metrics.RecordIntegrationError("contact_lookup")
		}
		return entity.StatusSpyDiscarded, s.advance(ctx, p, token, entity.StatusSpyDiscarded, "", "", "consulta falhou: "+err.Error())
	}

	email, phone := ExtractContact(profile)
	if email == "" && phone == "" {
		return entity.StatusSpyDiscarded, s.advance(ctx, p, token, entity.StatusSpyDiscarded, "", "", "perfil sem contato público")
	}
	return entity.StatusSpied, s.advance(ctx, p, token, entity.StatusSpied, email, phone, "")
}

func (s *Spy) advance(ctx context.Context, p *entity.Prospect, token string, to entity.Status, email, phone, note string) error {
	err := s.Prospects.Advance(ctx, entity.Advance{
		ProspectID: p.ID,
		ClaimToken: token,
		From:       p.Status,
		To:         to,
		Email:      email,
		Phone:      phone,
		Note:       note,
		At:         s.Now(),
	})
	if errors.Is(err, entity.ErrClaimLost) {
		s.Logger.Warn("claim perdido no spy", zap.String("prospect_id", p.ID))
		return nil
	}
	if err != nil {
		return newPipelineError(KindPersistence, "spy.advance", err)
	}
	metrics.RecordTransition(string(p.Status), string(to))
	if to != entity.StatusSpied {
		s.Logger.Info("prospect sem contato utilizável",
			zap.String("prospect_id", p.ID),
			zap.String("status", string(to)),
			zap.Error(newPipelineError(KindDataQuality, "spy.investigate", errors.New(note))),
		)
	}
	return nil
}

func (s *Spy) releaseRest(ctx context.Context, rest []*entity.Prospect, token, reason string) {
	for _, p := range rest {
		if err := s.Prospects.Release(context.WithoutCancel(ctx), p.ID, token, reason); err != nil && !errors.Is(err, entity.ErrClaimLost) {
			s.Logger.Warn("falha ao liberar claim", zap.String("prospect_id", p.ID), zap.Error(err))
		}
	}
}

// DeriveHandle: handle do TikTok ou Instagram; senão o nome em minúsculas sem espaços.
func DeriveHandle(p *entity.Prospect) string {
	for _, platform := range []entity.Platform{entity.PlatformTikTok, entity.PlatformInstagram} {
		if h := handleFromProfile(p.SocialProfiles[string(platform)]); h != "" {
			return h
		}
	}
	var b strings.Builder
	for _, r := range strings.ToLower(p.BusinessName) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func handleFromProfile(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
		parts := strings.Split(strings.Trim(v, "/"), "/")
		if len(parts) < 2 {
			return ""
		}
		v = parts[1]
	}
	v = strings.TrimPrefix(v, "@")
	if i := strings.IndexAny(v, "?#/"); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(v)
}

// ExtractContact prefere o email público; senão procura um email na bio.
func ExtractContact(profile *ContactProfile) (string, string) {
	if profile == nil {
		return "", ""
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		email = EmailFromText(profile.Biography)
	}
	return email, strings.TrimSpace(profile.Phone)
}

// EmailFromText devolve o primeiro token com "@" e "." que seja um endereço válido.
func EmailFromText(text string) string {
	for _, tok := range strings.Fields(text) {
		if !strings.Contains(tok, "@") || !strings.Contains(tok, ".") {
			continue
		}
		tok = strings.Trim(tok, ".,;:!?()[]{}<>\"'📧✉️")
		tok = strings.TrimPrefix(strings.ToLower(tok), "mailto:")
		addr, err := mail.ParseAddress(tok)
		if err != nil || !strings.Contains(addr.Address[strings.Index(addr.Address, "@"):], ".") {
			continue
		}
		return addr.Address
	}
	return ""
}
