package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/memory"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
)

var t0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

// ============ RELÓGIO ============

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// ============ MOCKS ============

type MockDiscovery struct {
	mock.Mock
}

func (m *MockDiscovery) Discover(ctx context.Context, req DiscoveryRequest) ([]DiscoveryRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DiscoveryRecord), args.Error(1)
}

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) LookupContact(ctx context.Context, handle string) (*ContactProfile, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ContactProfile), args.Error(1)
}

// genFunc responde por Purpose; seguro para chamadas concorrentes.
type genFunc func(ctx context.Context, req GenerationRequest) (string, error)

func (f genFunc) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	return f(ctx, req)
}

// countingGen conta chamadas por Purpose.
type countingGen struct {
	mu    sync.Mutex
	calls map[string]int
	reqs  []GenerationRequest
	reply func(req GenerationRequest) (string, error)
}

func newCountingGen(reply func(req GenerationRequest) (string, error)) *countingGen {
	return &countingGen{calls: map[string]int{}, reply: reply}
}

func (g *countingGen) Generate(_ context.Context, req GenerationRequest) (string, error) {
	g.mu.Lock()
	g.calls[req.Purpose]++
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	return g.reply(req)
}

func (g *countingGen) Calls(purpose string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[purpose]
}

func (g *countingGen) Last(purpose string) GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.reqs) - 1; i >= 0; i-- {
		if g.reqs[i].Purpose == purpose {
			return g.reqs[i]
		}
	}
	return GenerationRequest{}
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.OutreachPayload
	err  error
}

func (q *recordingQueue) PublishOutreach(_ context.Context, p queue.OutreachPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, p)
	return nil
}

func (q *recordingQueue) Messages() []queue.OutreachPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.OutreachPayload(nil), q.msgs...)
}

func (q *recordingQueue) Kinds() []queue.MessageKind {
	var out []queue.MessageKind
	for _, m := range q.Messages() {
		out = append(out, m.Kind)
	}
	return out
}

type probeFunc func(url string) (SiteReport, error)

func (f probeFunc) Probe(_ context.Context, url string) (SiteReport, error) { return f(url) }

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value
	return nil
}

// brokenSpend simula o banco fora do ar na leitura do orçamento.
type brokenSpend struct{}

func (brokenSpend) Usage(context.Context, string, entity.PaidWorker, time.Time) (entity.SpendUsage, error) {
	return entity.SpendUsage{}, errors.New("connection reset")
}

func (brokenSpend) Record(context.Context, string, entity.PaidWorker, int, time.Time) error {
	return errors.New("connection reset")
}

// ============ FIXTURES ============

var (
	hunterPolicy = BudgetPolicy{CeilingPerLead: 0.30, CostPerCall: 0.01, MinCallsPerDay: 1}
	spyPolicy    = BudgetPolicy{CeilingPerLead: 0.15, CostPerCall: 0.02, MinCallsPerDay: 1}
)

func seedClient(t *testing.T, store *memory.Store) *entity.Client {
	t.Helper()
	c, err := entity.NewClient("Agencia Sur", "ops@sur.pe", 50, t0.AddDate(0, 1, 0))
	require.NoError(t, err)
	c.Balance = 200
	require.NoError(t, store.Clients().Create(context.Background(), c))
	return c
}

func seedCampaign(t *testing.T, store *memory.Store, clientID string, quota int) *entity.Campaign {
	t.Helper()
	c, err := entity.NewCampaign(clientID, "Cafés Miraflores", "Menú digital con pedidos por WhatsApp", "cafeterías", "Miraflores, Lima", quota)
	require.NoError(t, err)
	require.NoError(t, store.Campaigns().Create(context.Background(), c))
	return c
}

type prospectOpt func(p *entity.Prospect)

func withEmail(e string) prospectOpt  { return func(p *entity.Prospect) { p.Email = e } }
func withPhone(ph string) prospectOpt { return func(p *entity.Prospect) { p.Phone = ph } }
func withStatus(s entity.Status) prospectOpt {
	return func(p *entity.Prospect) { p.Status = s }
}
func withSocial(platform, handle string) prospectOpt {
	return func(p *entity.Prospect) {
		if p.SocialProfiles == nil {
			p.SocialProfiles = map[string]string{}
		}
		p.SocialProfiles[platform] = handle
	}
}
func touchedAt(at time.Time) prospectOpt {
	return func(p *entity.Prospect) { p.LastTouchAt = &at }
}

func seedProspect(t *testing.T, store *memory.Store, campaignID, name string, created time.Time, opts ...prospectOpt) *entity.Prospect {
	t.Helper()
	p, err := entity.NewProspect(campaignID, name)
	require.NoError(t, err)
	p.SourceKey = "seed:" + name
	p.CreatedAt = created
	for _, o := range opts {
		o(p)
	}
	inserted, err := store.Prospects().Insert(context.Background(), p)
	require.NoError(t, err)
	require.True(t, inserted)
	return p
}

func mustFind(t *testing.T, store *memory.Store, id string) *entity.Prospect {
	t.Helper()
	p, err := store.Prospects().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func nop() *zap.Logger { return zap.NewNop() }
