package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/memory"
)

func newSpyFixture(t *testing.T) (*memory.Store, *entity.Campaign, *MockLookup, *Spy) {
	store := memory.NewStore()
	client := seedClient(t, store)
	campaign := seedCampaign(t, store, client.ID, 10)
	lookup := new(MockLookup)
	clock := newClock(t0)
	governor := NewBudgetGovernor(store.Spend(), hunterPolicy, spyPolicy, nop(), clock.Now)
	return store, campaign, lookup, NewSpy(store.Prospects(), lookup, governor, 10*time.Minute, nop(), clock.Now)
}

func TestSpy_PromotesThenLooksUpWithinBudget(t *testing.T) {
	store, campaign, lookup, spy := newSpyFixture(t)
	ctx := context.Background()

	withContact := seedProspect(t, store, campaign.ID, "Café Lima", t0.Add(-3*time.Hour), withEmail("hola@cafelima.pe"))
	found := seedProspect(t, store, campaign.ID, "Panadería Sol", t0.Add(-2*time.Hour), withSocial("tiktok", "@Panaderia_Sol"))
	missing := seedProspect(t, store, campaign.ID, "Bodega X", t0.Add(-time.Hour))
	later := seedProspect(t, store, campaign.ID, "Dulcería Ana", t0)

	lookup.On("LookupContact", mock.Anything, "panaderia_sol").
		Return(&ContactProfile{Handle: "panaderia_sol", Email: " Hola@Sol.pe "}, nil).Once()
	lookup.On("LookupContact", mock.Anything, "bodegax").
		Return(nil, entity.ErrNotFound).Once()

	out, err := spy.Execute(ctx, campaign)
	require.NoError(t, err)
	lookup.AssertExpectations(t)

	assert.Equal(t, SpyOutput{Promoted: 1, Attempted: 2, Found: 1, Discarded: 1}, out)
	assert.Equal(t, entity.StatusSpied, mustFind(t, store, withContact.ID).Status)

	got := mustFind(t, store, found.ID)
	assert.Equal(t, entity.StatusSpied, got.Status)
	assert.Equal(t, "hola@sol.pe", got.Email)
	assert.Equal(t, 1, got.SpyAttempts)
	assert.Empty(t, got.ClaimToken)

	gone := mustFind(t, store, missing.ID)
	assert.Equal(t, entity.StatusSpyDiscarded, gone.Status)
	assert.Contains(t, gone.LastError, "consulta falhou")

	// limite do dia era 2: o último espera o próximo ciclo
	assert.Equal(t, entity.StatusHunted, mustFind(t, store, later.ID).Status)

	used, err := store.Spend().Usage(ctx, campaign.ID, entity.WorkerSpy, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, used.Today)
}

func TestSpy_ProfileWithoutContactIsDiscarded(t *testing.T) {
	store, campaign, lookup, spy := newSpyFixture(t)
	p := seedProspect(t, store, campaign.ID, "Tienda Nube", t0, withSocial("instagram", "https://www.instagram.com/tiendanube.pe/"))

	lookup.On("LookupContact", mock.Anything, "tiendanube.pe").
		Return(&ContactProfile{Handle: "tiendanube.pe", Biography: "Ropa hecha a mano 🧵"}, nil).Once()

	out, err := spy.Execute(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Discarded)
	assert.Equal(t, entity.StatusSpyDiscarded, mustFind(t, store, p.ID).Status)
}

func TestSpy_BioEmailCounts(t *testing.T) {
	store, campaign, lookup, spy := newSpyFixture(t)
	p := seedProspect(t, store, campaign.ID, "Tienda Nube", t0, withSocial("instagram", "tiendanube.pe"))

	lookup.On("LookupContact", mock.Anything, "tiendanube.pe").
		Return(&ContactProfile{Biography: "Pedidos 📧 Ventas@TiendaNube.pe | envíos a todo Lima"}, nil).Once()

	_, err := spy.Execute(context.Background(), campaign)
	require.NoError(t, err)
	got := mustFind(t, store, p.ID)
	assert.Equal(t, entity.StatusSpied, got.Status)
	assert.Equal(t, "ventas@tiendanube.pe", got.Email)
}

func TestSpy_AbandonsWithoutIdentityAndFree(t *testing.T) {
	store, campaign, lookup, spy := newSpyFixture(t)
	p := seedProspect(t, store, campaign.ID, "& + &", t0)

	out, err := spy.Execute(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, SpyOutput{Abandoned: 1}, out)
	assert.Equal(t, entity.StatusSpyAbandoned, mustFind(t, store, p.ID).Status)
	lookup.AssertNotCalled(t, "LookupContact", mock.Anything, mock.Anything)

	used, _ := store.Spend().Usage(context.Background(), campaign.ID, entity.WorkerSpy, t0)
	assert.Zero(t, used.Today)
}

func TestSpy_ZeroBudgetOnlyPromotes(t *testing.T) {
	store, campaign, lookup, spy := newSpyFixture(t)
	ctx := context.Background()
	require.NoError(t, store.Spend().Record(ctx, campaign.ID, entity.WorkerSpy, 2, t0))

	seedProspect(t, store, campaign.ID, "Café Lima", t0, withPhone("+51 999 000 111"))
	waiting := seedProspect(t, store, campaign.ID, "Bodega X", t0)

	out, err := spy.Execute(ctx, campaign)
	require.NoError(t, err)
	assert.Equal(t, SpyOutput{Promoted: 1}, out)
	assert.Equal(t, entity.StatusHunted, mustFind(t, store, waiting.ID).Status)
	lookup.AssertNotCalled(t, "LookupContact", mock.Anything, mock.Anything)
}

func TestSpy_NeverLooksUpTwice(t *testing.T) {
	store, campaign, lookup, spy := newSpyFixture(t)
	ctx := context.Background()
	p := seedProspect(t, store, campaign.ID, "Bodega X", t0)

	// primeira tentativa marca spy_attempts e o claim expira sem avanço
	batch, err := store.Prospects().Claim(ctx, entity.ClaimRequest{
		Statuses: []entity.Status{entity.StatusHunted}, Limit: 1, Token: "tok", Until: t0.Add(-time.Second), Now: t0.Add(-time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, store.Prospects().MarkSpyAttempt(ctx, p.ID, "tok"))

	out, err := spy.Execute(ctx, campaign)
	require.NoError(t, err)
	assert.Zero(t, out.Attempted)
	lookup.AssertNotCalled(t, "LookupContact", mock.Anything, mock.Anything)
}

// attemptFailing falha o MarkSpyAttempt de um prospect específico.
type attemptFailing struct {
	entity.ProspectRepository
	failID string
	err    error
}

func (r *attemptFailing) MarkSpyAttempt(ctx context.Context, id, token string) error {
	if id == r.failID {
		return r.err
	}
	return r.ProspectRepository.MarkSpyAttempt(ctx, id, token)
}

// recordFailing lê o orçamento normalmente mas não consegue gravar gasto.
type recordFailing struct {
	entity.SpendRepository
}

func (recordFailing) Record(context.Context, string, entity.PaidWorker, int, time.Time) error {
	return errors.New("connection reset")
}

func TestSpy_AttemptFailureSkipsOnlyThatProspect(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		lastError string
	}{
		{"falha de banco", errors.New("connection reset"), "spy.attempt"},
		{"claim perdido", entity.ErrClaimLost, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, campaign, lookup, spy := newSpyFixture(t)
			ctx := context.Background()
			a := seedProspect(t, store, campaign.ID, "Bodega A", t0.Add(-time.Hour), withSocial("instagram", "bodega_a"))
			b := seedProspect(t, store, campaign.ID, "Bodega B", t0, withSocial("instagram", "bodega_b"))
			spy.Prospects = &attemptFailing{ProspectRepository: store.Prospects(), failID: a.ID, err: tt.err}

			lookup.On("LookupContact", mock.Anything, "bodega_b").
				Return(&ContactProfile{Email: "hola@bodegab.pe"}, nil).Once()

			out, err := spy.Execute(ctx, campaign)
			require.NoError(t, err)
			lookup.AssertExpectations(t)
			assert.Equal(t, SpyOutput{Attempted: 1, Found: 1}, out)

			gotA := mustFind(t, store, a.ID)
			assert.Equal(t, entity.StatusHunted, gotA.Status)
			assert.Zero(t, gotA.SpyAttempts)
			if tt.lastError != "" {
				assert.Empty(t, gotA.ClaimToken)
				assert.Contains(t, gotA.LastError, tt.lastError)
			}
			assert.Equal(t, entity.StatusSpied, mustFind(t, store, b.ID).Status)

			// só a consulta feita foi cobrada
			used, err := store.Spend().Usage(ctx, campaign.ID, entity.WorkerSpy, t0)
			require.NoError(t, err)
			assert.Equal(t, 1, used.Today)
		})
	}
}

func TestSpy_ChargeFailureStopsBatch(t *testing.T) {
	store, campaign, lookup, _ := newSpyFixture(t)
	ctx := context.Background()
	a := seedProspect(t, store, campaign.ID, "Bodega A", t0.Add(-time.Hour), withSocial("instagram", "bodega_a"))
	b := seedProspect(t, store, campaign.ID, "Bodega B", t0, withSocial("instagram", "bodega_b"))

	clock := newClock(t0)
	governor := NewBudgetGovernor(recordFailing{store.Spend()}, hunterPolicy, spyPolicy, nop(), clock.Now)
	spy := NewSpy(store.Prospects(), lookup, governor, 10*time.Minute, nop(), clock.Now)

	_, err := spy.Execute(ctx, campaign)
	require.Error(t, err)
	assert.True(t, isBudgetFailure(err))
	lookup.AssertNotCalled(t, "LookupContact", mock.Anything, mock.Anything)

	for _, id := range []string{a.ID, b.ID} {
		got := mustFind(t, store, id)
		assert.Equal(t, entity.StatusHunted, got.Status)
		assert.Empty(t, got.ClaimToken)
	}
}

func TestSpy_RejectionsAreTaggedAsDataQuality(t *testing.T) {
	store, campaign, lookup, spy := newSpyFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	spy.Logger = zap.New(core)

	seedProspect(t, store, campaign.ID, "& + &", t0)

	_, err := spy.Execute(context.Background(), campaign)
	require.NoError(t, err)
	lookup.AssertNotCalled(t, "LookupContact", mock.Anything, mock.Anything)

	entries := logs.FilterMessage("prospect sem contato utilizável").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], string(KindDataQuality))
}

func TestDeriveHandle(t *testing.T) {
	tests := []struct {
		name   string
		social map[string]string
		biz    string
		want   string
	}{
		{"tiktok com arroba", map[string]string{"tiktok": "@Dulce_Ana"}, "Dulcería Ana", "dulce_ana"},
		{"tiktok por url", map[string]string{"tiktok": "https://www.tiktok.com/@dulce_ana"}, "x", "dulce_ana"},
		{"instagram por url", map[string]string{"instagram": "https://www.instagram.com/cafe.lima/?hl=es"}, "x", "cafe.lima"},
		{"tiktok vence instagram", map[string]string{"instagram": "cafe.lima", "tiktok": "cafelima_pe"}, "x", "cafelima_pe"},
		{"nome do negócio", nil, "Café Lima 24h", "cafélima24h"},
		{"sem identidade", nil, "& + &", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &entity.Prospect{BusinessName: tt.biz, SocialProfiles: tt.social}
			assert.Equal(t, tt.want, DeriveHandle(p))
		})
	}
}

func TestEmailFromText(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Pedidos 📧 ventas@cafe.pe | WhatsApp", "ventas@cafe.pe"},
		{"Contacto: (Info@Sol.PE).", "info@sol.pe"},
		{"escríbenos a hola@cafe", ""},
		{"versión 1.0 @cafe", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EmailFromText(tt.text), tt.text)
	}
}
