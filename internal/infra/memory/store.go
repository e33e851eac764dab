// Package memory implementa os repositórios em memória, com a mesma semântica
// de claim do Postgres. Usado em testes e no modo dev sem banco.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

type Store struct {
	mu        sync.Mutex
	prospects map[string]*entity.Prospect
	campaigns map[string]*entity.Campaign
	clients   map[string]*entity.Client
	tools     map[string]*entity.ToolCatalogEntry
	spend     map[spendKey]int

	// histórico de estágios por prospect, para inspeção em testes
	history map[string][]entity.Status
}

type spendKey struct {
	campaignID string
	worker     entity.PaidWorker
	day        time.Time
}

func NewStore() *Store {
	return &Store{
		prospects: make(map[string]*entity.Prospect),
		campaigns: make(map[string]*entity.Campaign),
		clients:   make(map[string]*entity.Client),
		tools:     make(map[string]*entity.ToolCatalogEntry),
		spend:     make(map[spendKey]int),
		history:   make(map[string][]entity.Status),
	}
}

func (s *Store) Prospects() *ProspectRepository { return &ProspectRepository{s} }
func (s *Store) Campaigns() *CampaignRepository { return &CampaignRepository{s} }
func (s *Store) Clients() *ClientRepository { return &ClientRepository{s} }
func (s *Store) Tools() *ToolRepository { return &ToolRepository{s} }
func (s *Store) Spend() *SpendRepository { return &SpendRepository{s} }

// History devolve a sequência de estágios pela qual o prospect passou.
func (s *Store) History(id string) []entity.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Status(nil), s.history[id]...)
}

func (s *Store) setStatus(p *entity.Prospect, to entity.Status) {
	p.Status = to
	s.history[p.ID] = append(s.history[p.ID], to)
}

func cloneProspect(p *entity.Prospect) *entity.Prospect {
	c := *p
	if p.SocialProfiles != nil {
		c.SocialProfiles = make(map[string]string, len(p.SocialProfiles))
		for k, v := range p.SocialProfiles {
			c.SocialProfiles[k] = v
		}
	}
	c.ReviewSnippets = append([]string(nil), p.ReviewSnippets...)
	c.Conversation = append([]entity.ChatTurn(nil), p.Conversation...)
	if p.PainPoints != nil {
		l := entity.PainLedger{Findings: append([]entity.Finding(nil), p.PainPoints.Findings...)}
		c.PainPoints = &l
	}
	if p.Content != nil {
		b := *p.Content
		c.Content = &b
	}
	return &c
}

// ---------------------------------------------------------------- prospects

type ProspectRepository struct{ s *Store }

var _ entity.ProspectRepository = (*ProspectRepository)(nil)

func (r *ProspectRepository) Insert(_ context.Context, p *entity.Prospect) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.prospects {
		if existing.CampaignID == p.CampaignID && existing.SourceKey == p.SourceKey {
			return false, nil
		}
	}
	c := cloneProspect(p)
	if c.Status == "" {
		c.Status = entity.StatusHunted
	}
	r.s.prospects[c.ID] = c
	r.s.history[c.ID] = []entity.Status{c.Status}
	return true, nil
}

func (r *ProspectRepository) FindByID(_ context.Context, id string) (*entity.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return cloneProspect(p), nil
}

func (r *ProspectRepository) FindByAccessToken(_ context.Context, token string) (*entity.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if token == "" {
		return nil, entity.ErrNotFound
	}
	for _, p := range r.s.prospects {
		if p.AccessToken == token {
			return cloneProspect(p), nil
		}
	}
	return nil, entity.ErrNotFound
}

func (r *ProspectRepository) CountCreatedSince(_ context.Context, campaignID string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.prospects {
		if p.CampaignID == campaignID && !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *ProspectRepository) PromoteContacted(_ context.Context, campaignID string, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.prospects {
		if p.CampaignID != campaignID || p.Status != entity.StatusHunted || !p.HasContact() {
			continue
		}
		if claimed(p, now) {
			continue
		}
		r.s.setStatus(p, entity.StatusSpied)
		p.UpdatedAt = now
		n++
	}
	return n, nil
}

func claimed(p *entity.Prospect, now time.Time) bool {
	return p.ClaimToken != "" && p.ClaimUntil != nil && p.ClaimUntil.After(now)
}

func matches(p *entity.Prospect, req entity.ClaimRequest) bool {
	if req.CampaignID != "" && p.CampaignID != req.CampaignID {
		return false
	}
	found := false
	for _, st := range req.Statuses {
		if p.Status == st {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	switch req.Contact {
	case entity.ContactPresent:
		if !p.HasContact() {
			return false
		}
	case entity.ContactMissing:
		if p.HasContact() {
			return false
		}
	}
	if req.FreshForSpy && p.SpyAttempts > 0 {
		return false
	}
	if req.TouchedBefore != nil {
		if p.LastTouchAt == nil || p.LastTouchAt.After(*req.TouchedBefore) {
			return false
		}
	}
	return true
}

func (r *ProspectRepository) Claim(_ context.Context, req entity.ClaimRequest) ([]*entity.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if req.Limit <= 0 {
		return nil, nil
	}
	var candidates []*entity.Prospect
	for _, p := range r.s.prospects {
		if claimed(p, req.Now) || !matches(p, req) {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}

	out := make([]*entity.Prospect, 0, len(candidates))
	for _, p := range candidates {
		until := req.Until
		p.ClaimToken = req.Token
		p.ClaimUntil = &until
		p.ProcessAttempts++
		p.UpdatedAt = req.Now
		out = append(out, cloneProspect(p))
	}
	return out, nil
}

func (r *ProspectRepository) Advance(_ context.Context, a entity.Advance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !entity.CanTransition(a.From, a.To) {
		return entity.ErrInvalidTransition
	}
	p, ok := r.s.prospects[a.ProspectID]
	if !ok || p.ClaimToken != a.ClaimToken || p.Status != a.From {
		return entity.ErrClaimLost
	}
	if a.AccessToken != "" && p.AccessToken == "" {
		for _, other := range r.s.prospects {
			if other.ID != p.ID && other.AccessToken == a.AccessToken {
				return entity.ErrDuplicate
			}
		}
		p.AccessToken = a.AccessToken
	}
	if p.Email == "" {
		p.Email = a.Email
	}
	if p.Phone == "" {
		p.Phone = a.Phone
	}
	if a.PainPoints != nil {
		l := entity.PainLedger{Findings: append([]entity.Finding(nil), a.PainPoints.Findings...)}
		p.PainPoints = &l
	}
	if a.Content != nil {
		b := *a.Content
		p.Content = &b
	}
	if a.Touch {
		at := a.At
		p.LastTouchAt = &at
	}
	p.LastError = a.Note
	p.ClaimToken = ""
	p.ClaimUntil = nil
	p.ProcessAttempts = 0
	p.UpdatedAt = a.At
	r.s.setStatus(p, a.To)
	return nil
}

func (r *ProspectRepository) Release(_ context.Context, id, claimToken, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok || p.ClaimToken != claimToken {
		return entity.ErrClaimLost
	}
	p.ClaimToken = ""
	p.ClaimUntil = nil
	p.LastError = reason
	return nil
}

func (r *ProspectRepository) MarkSpyAttempt(_ context.Context, id, claimToken string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok || p.ClaimToken != claimToken {
		return entity.ErrClaimLost
	}
	p.SpyAttempts++
	return nil
}

func (r *ProspectRepository) ReleaseExpired(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.prospects {
		if p.ClaimToken != "" && p.ClaimUntil != nil && !p.ClaimUntil.After(now) {
			p.ClaimToken = ""
			p.ClaimUntil = nil
			n++
		}
	}
	return n, nil
}

func (r *ProspectRepository) ListPendingOutreach(_ context.Context, limit int) ([]*entity.Prospect, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Prospect
	for _, p := range r.s.prospects {
		if p.Status == entity.StatusPersuaded && p.OutreachQueuedAt == nil {
			out = append(out, cloneProspect(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ProspectRepository) MarkOutreachQueued(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return entity.ErrNotFound
	}
	p.OutreachQueuedAt = &at
	p.LastTouchAt = &at
	return nil
}

func (r *ProspectRepository) RecordChatTurns(_ context.Context, id string, turns []entity.ChatTurn, threshold int, at time.Time) (entity.ChatState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return entity.ChatState{}, entity.ErrNotFound
	}
	for _, t := range turns {
		p.Conversation = entity.AppendTurn(p.Conversation, t)
	}
	p.Interactions++
	state := entity.ChatState{Interactions: p.Interactions}
	if !p.Qualified && threshold > 0 && p.Interactions >= threshold {
		p.Qualified = true
		p.QualifiedAt = &at
		state.NewlyQualified = true
	}
	state.Qualified = p.Qualified
	p.LastTouchAt = &at
	p.UpdatedAt = at
	return state, nil
}

func (r *ProspectRepository) Escalate(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return false, entity.ErrNotFound
	}
	if p.Status == entity.StatusHumanAlert {
		return false, nil
	}
	p.ClaimToken = ""
	p.ClaimUntil = nil
	p.UpdatedAt = at
	r.s.setStatus(p, entity.StatusHumanAlert)
	return true, nil
}

func (r *ProspectRepository) Reset(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prospects[id]
	if !ok {
		return entity.ErrNotFound
	}
	if !entity.CanReset(p.Status) {
		return entity.ErrInvalidTransition
	}
	p.ClaimToken = ""
	p.ClaimUntil = nil
	p.SpyAttempts = 0
	p.ProcessAttempts = 0
	p.OutreachQueuedAt = nil
	p.LastError = ""
	p.UpdatedAt = at
	r.s.setStatus(p, entity.StatusHunted)
	return nil
}

// ---------------------------------------------------------------- campaigns

type CampaignRepository struct{ s *Store }

var _ entity.CampaignRepository = (*CampaignRepository)(nil)

func (r *CampaignRepository) Create(_ context.Context, c *entity.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.campaigns[c.ID]; ok {
		return entity.ErrDuplicate
	}
	cp := *c
	cp.Competitors = append([]string(nil), c.Competitors...)
	r.s.campaigns[c.ID] = &cp
	return nil
}

func (r *CampaignRepository) FindByID(_ context.Context, id string) (*entity.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CampaignRepository) ListRunnable(_ context.Context) ([]*entity.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Campaign
	for _, c := range r.s.campaigns {
		if c.Status != entity.CampaignActive {
			continue
		}
		cl, ok := r.s.clients[c.ClientID]
		if !ok || !cl.PaidUp() {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CampaignRepository) UpdateStatus(_ context.Context, id string, status entity.CampaignStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return entity.ErrNotFound
	}
	c.Status = status
	return nil
}

func (r *CampaignRepository) SaveHuntPlan(_ context.Context, id string, plan entity.HuntPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return entity.ErrNotFound
	}
	c.Plan = plan
	return nil
}

func (r *CampaignRepository) PauseByClient(_ context.Context, clientID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.campaigns {
		if c.ClientID == clientID && c.Status == entity.CampaignActive {
			c.Status = entity.CampaignPaused
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------- clients

type ClientRepository struct{ s *Store }

var _ entity.ClientRepository = (*ClientRepository)(nil)

func (r *ClientRepository) Create(_ context.Context, c *entity.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.clients {
		if strings.EqualFold(existing.Email, c.Email) {
			return entity.ErrDuplicate
		}
	}
	cp := *c
	r.s.clients[c.ID] = &cp
	return nil
}

func (r *ClientRepository) FindByID(_ context.Context, id string) (*entity.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *ClientRepository) ListBillable(_ context.Context) ([]*entity.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Client
	for _, c := range r.s.clients {
		if c.BillingStatus == entity.BillingPurged {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ClientRepository) UpdateBilling(_ context.Context, c *entity.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.clients[c.ID]
	if !ok {
		return entity.ErrNotFound
	}
	existing.Balance = c.Balance
	existing.BillingStatus = c.BillingStatus
	existing.NextPaymentAt = c.NextPaymentAt
	existing.AlertSent = c.AlertSent
	existing.SuspendedAt = c.SuspendedAt
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *ClientRepository) Purge(_ context.Context, clientID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[clientID]
	if !ok {
		return entity.ErrNotFound
	}
	for id, camp := range r.s.campaigns {
		if camp.ClientID != clientID {
			continue
		}
		for pid, p := range r.s.prospects {
			if p.CampaignID == id {
				delete(r.s.prospects, pid)
				delete(r.s.history, pid)
			}
		}
		delete(r.s.campaigns, id)
	}
	c.BillingStatus = entity.BillingPurged
	c.UpdatedAt = at
	return nil
}

// ---------------------------------------------------------------- tools

type ToolRepository struct{ s *Store }

var _ entity.ToolRepository = (*ToolRepository)(nil)

func (r *ToolRepository) Best(_ context.Context, platform entity.Platform, audience entity.Audience) (*entity.ToolCatalogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *entity.ToolCatalogEntry
	for _, t := range r.s.tools {
		if t.Platform != platform || t.Audience != audience {
			continue
		}
		if best == nil || t.Confidence > best.Confidence ||
			(t.Confidence == best.Confidence && t.Name < best.Name) {
			best = t
		}
	}
	if best == nil {
		return nil, entity.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *ToolRepository) Upsert(_ context.Context, t *entity.ToolCatalogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tools {
		if existing.Name == t.Name {
			t.ID = existing.ID
			break
		}
	}
	cp := *t
	r.s.tools[t.ID] = &cp
	return nil
}

// ---------------------------------------------------------------- spend

type SpendRepository struct{ s *Store }

var _ entity.SpendRepository = (*SpendRepository)(nil)

func (r *SpendRepository) Usage(_ context.Context, campaignID string, worker entity.PaidWorker, now time.Time) (entity.SpendUsage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	day := entity.DayStart(now)
	month := entity.MonthStart(now)
	var u entity.SpendUsage
	for k, units := range r.s.spend {
		if k.campaignID != campaignID || k.worker != worker {
			continue
		}
		if k.day.Equal(day) {
			u.Today += units
		}
		if !k.day.Before(month) && !k.day.After(day) {
			u.Month += units
		}
	}
	return u, nil
}

func (r *SpendRepository) Record(_ context.Context, campaignID string, worker entity.PaidWorker, units int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.spend[spendKey{campaignID: campaignID, worker: worker, day: entity.DayStart(at)}] += units
	return nil
}
