package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/memory"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
)

const day = 24 * time.Hour

var nurtureConfig = NurtureConfig{
	BatchSize:          20,
	ClaimTTL:           10 * time.Minute,
	ValueDelay:         3 * day,
	SocialProofDelay:   7 * day,
	BreakupDelay:       15 * day,
	MaxAttempts:        3,
	QualifiedThreshold: 2,
	OperatorEmail:      "ventas@sur.pe",
	PublicBaseURL:      "https://app.example.pe",
}

type nurtureFixture struct {
	store    *memory.Store
	campaign *entity.Campaign
	clock    *testClock
	queue    *recordingQueue
	nurturer *Nurturer
}

func newNurtureFixture(t *testing.T, gen TextGenerator) *nurtureFixture {
	store := memory.NewStore()
	client := seedClient(t, store)
	f := &nurtureFixture{
		store:    store,
		campaign: seedCampaign(t, store, client.ID, 10),
		clock:    newClock(t0),
		queue:    &recordingQueue{},
	}
	f.nurturer = NewNurturer(store.Prospects(), store.Campaigns(), gen, f.queue, nurtureConfig, nop(), f.clock.Now)
	return f
}

func (f *nurtureFixture) persuaded(t *testing.T, name, token string) *entity.Prospect {
	return seedProspect(t, f.store, f.campaign.ID, name, t0,
		withEmail(strings.ToLower(strings.ReplaceAll(name, " ", ""))+"@mail.pe"),
		withStatus(entity.StatusPersuaded),
		touchedAt(t0),
		func(p *entity.Prospect) { p.AccessToken = token },
	)
}

func dripGen() *countingGen {
	return newCountingGen(func(req GenerationRequest) (string, error) {
		return `{"subject": "Seguimiento ` + req.Purpose + `", "body": "Hola de nuevo."}`, nil
	})
}

// ------------------------------------------------------------------ drip

func TestDrip_FollowsDelaysPerStage(t *testing.T) {
	gen := dripGen()
	f := newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")
	ctx := context.Background()

	steps := []struct {
		at      time.Duration
		status  entity.Status
		kinds   []queue.MessageKind
		message string
	}{
		{2 * day, entity.StatusPersuaded, nil, "antes de 3 dias nada acontece"},
		{3 * day, entity.StatusNurture1, []queue.MessageKind{queue.KindDripValue}, "valor no dia 3"},
		{9 * day, entity.StatusNurture1, []queue.MessageKind{queue.KindDripValue}, "prova social espera 7 dias do último toque"},
		{10 * day, entity.StatusNurture2, []queue.MessageKind{queue.KindDripValue, queue.KindDripSocialProof}, "prova social no dia 10"},
		{24 * day, entity.StatusNurture2, []queue.MessageKind{queue.KindDripValue, queue.KindDripSocialProof}, "despedida espera 15 dias"},
		{25 * day, entity.StatusColdLead, []queue.MessageKind{queue.KindDripValue, queue.KindDripSocialProof, queue.KindDripBreakup}, "despedida no dia 25"},
		{60 * day, entity.StatusColdLead, []queue.MessageKind{queue.KindDripValue, queue.KindDripSocialProof, queue.KindDripBreakup}, "lead frio é terminal"},
	}
	for _, s := range steps {
		f.clock.Set(t0.Add(s.at))
		_, err := f.nurturer.Drip(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.status, mustFind(t, f.store, p.ID).Status, s.message)
		assert.Equal(t, s.kinds, f.queue.Kinds(), s.message)
	}

	msgs := f.queue.Messages()
	assert.Equal(t, "cafelima@mail.pe", msgs[0].To)
	assert.Equal(t, "https://app.example.pe/p/tok-cafe", msgs[0].LandingURL)
	assert.Equal(t, "Seguimiento drip_value", msgs[0].Subject)
	assert.Equal(t, 1, gen.Calls("drip_breakup"))
}

func TestDrip_OneStagePerPass(t *testing.T) {
	f := newNurtureFixture(t, dripGen())
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")

	// parado há muito tempo: ainda assim só um estágio por passada
	f.clock.Set(t0.Add(90 * day))
	out, err := f.nurturer.Drip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Advanced)
	assert.Equal(t, entity.StatusNurture1, mustFind(t, f.store, p.ID).Status)
	assert.Len(t, f.queue.Messages(), 1)
}

func TestDrip_EscalationDuringGenerationWins(t *testing.T) {
	var f *nurtureFixture
	var target string
	gen := genFunc(func(ctx context.Context, req GenerationRequest) (string, error) {
		// o chat escala enquanto o drip ainda está gerando o texto
		_, err := f.store.Prospects().Escalate(ctx, target, f.clock.Now())
		require.NoError(t, err)
		return `{"subject": "Tip", "body": "Hola"}`, nil
	})
	f = newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")
	target = p.ID

	f.clock.Set(t0.Add(4 * day))
	out, err := f.nurturer.Drip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DripOutput{Released: 1}, out)
	assert.Equal(t, entity.StatusHumanAlert, mustFind(t, f.store, p.ID).Status)
	assert.Empty(t, f.queue.Messages(), "nenhum drip depois da escalada")
}

func TestDrip_GenerationFailureReleases(t *testing.T) {
	gen := genFunc(func(context.Context, GenerationRequest) (string, error) {
		return "", errors.New("deadline exceeded")
	})
	f := newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")

	f.clock.Set(t0.Add(4 * day))
	out, err := f.nurturer.Drip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Released)

	got := mustFind(t, f.store, p.ID)
	assert.Equal(t, entity.StatusPersuaded, got.Status)
	assert.Empty(t, got.ClaimToken)
	assert.True(t, got.LastTouchAt.Equal(t0), "sem toque, o próximo ciclo tenta de novo")
}

func TestDrip_ExhaustedAttemptsUseFallbackMessage(t *testing.T) {
	gen := genFunc(func(context.Context, GenerationRequest) (string, error) {
		return "", errors.New("deadline exceeded")
	})
	f := newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")
	f.clock.Set(t0.Add(4 * day))

	for i := 1; i < nurtureConfig.MaxAttempts; i++ {
		out, err := f.nurturer.Drip(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, out.Released, "passada %d", i)
	}
	assert.Empty(t, f.queue.Messages())

	out, err := f.nurturer.Drip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Advanced)

	got := mustFind(t, f.store, p.ID)
	assert.Equal(t, entity.StatusNurture1, got.Status)
	assert.Zero(t, got.ProcessAttempts)

	msgs := f.queue.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.KindDripValue, msgs[0].Kind)
	assert.Contains(t, msgs[0].Body, "Cafe Lima")
	assert.NotEmpty(t, msgs[0].Subject)
}

// ------------------------------------------------------------------ chat

func chatGen(intent string) *countingGen {
	return newCountingGen(func(req GenerationRequest) (string, error) {
		switch req.Purpose {
		case "chat_intent":
			return intent, nil
		case "chat_reply":
			return "  Con el menú digital recibes pedidos sin llamadas.  ", nil
		}
		return "", errors.New("purpose inesperado " + req.Purpose)
	})
}

func TestChat_UnknownTokenApologizes(t *testing.T) {
	gen := chatGen(`{"intent": "pregunta", "objection": "none"}`)
	f := newNurtureFixture(t, gen)

	assert.Equal(t, ApologyReply, f.nurturer.Reply(context.Background(), "nao-existe", "Hola"))
	assert.Equal(t, ApologyReply, f.nurturer.Reply(context.Background(), "", "Hola"))
	assert.Zero(t, gen.Calls("chat_intent"))
}

func TestChat_EmptyMessage(t *testing.T) {
	f := newNurtureFixture(t, chatGen(`{}`))
	f.persuaded(t, "Cafe Lima", "tok-cafe")
	assert.Equal(t, ApologyReply, f.nurturer.Reply(context.Background(), "tok-cafe", "   "))
}

func TestChat_KeywordEscalatesOnce(t *testing.T) {
	gen := chatGen(`{"intent": "otro", "objection": "none"}`)
	f := newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")
	ctx := context.Background()

	reply := f.nurturer.Reply(ctx, "tok-cafe", "Me interesa, ¿pueden LLAMARME mañana? Quiero hablar con un asesor")
	assert.Equal(t, EscalationReply, reply)
	assert.Zero(t, gen.Calls("chat_intent"), "palavra-chave dispensa a IA")

	got := mustFind(t, f.store, p.ID)
	assert.Equal(t, entity.StatusHumanAlert, got.Status)
	require.Len(t, got.Conversation, 2)
	assert.Equal(t, EscalationReply, got.Conversation[1].Text)

	msgs := f.queue.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.KindHumanAlert, msgs[0].Kind)
	assert.Equal(t, "ventas@sur.pe", msgs[0].To)
	assert.Equal(t, f.campaign.ClientID, msgs[0].ClientID)
	assert.Contains(t, msgs[0].Body, "cafelima@mail.pe")

	// já escalado: resposta fixa e nenhum alerta novo
	assert.Equal(t, EscalationReply, f.nurturer.Reply(ctx, "tok-cafe", "¿Siguen ahí?"))
	assert.Len(t, f.queue.Messages(), 1)
	assert.Zero(t, gen.Calls("chat_reply"))
}

func TestChat_ModelDetectsHumanRequest(t *testing.T) {
	gen := chatGen(`{"intent": "interes", "objection": "none", "human_requested": true}`)
	f := newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")

	reply := f.nurturer.Reply(context.Background(), "tok-cafe", "¿Me pueden contactar por teléfono?")
	assert.Equal(t, EscalationReply, reply)
	assert.Equal(t, 1, gen.Calls("chat_intent"))
	assert.Equal(t, entity.StatusHumanAlert, mustFind(t, f.store, p.ID).Status)
	assert.Equal(t, []queue.MessageKind{queue.KindHumanAlert}, f.queue.Kinds())
}

func TestChat_ObjectionPlaybookAndQualification(t *testing.T) {
	gen := chatGen("```json\n{\"intent\": \"objecion\", \"objection\": \"Financial\"}\n```")
	f := newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")
	ctx := context.Background()

	reply := f.nurturer.Reply(ctx, "tok-cafe", "Está muy caro para nosotros")
	assert.Equal(t, "Con el menú digital recibes pedidos sin llamadas.", reply)

	req := gen.Last("chat_reply")
	assert.Contains(t, req.Prompt, playbooks[ObjectionFinancial])
	assert.Contains(t, req.Prompt, "Está muy caro para nosotros")

	got := mustFind(t, f.store, p.ID)
	assert.Equal(t, entity.StatusPersuaded, got.Status, "chat não muda estágio")
	assert.Equal(t, 1, got.Interactions)
	assert.False(t, got.Qualified)

	f.clock.Advance(time.Hour)
	f.nurturer.Reply(ctx, "tok-cafe", "¿Y cuánto tarda la instalación?")
	got = mustFind(t, f.store, p.ID)
	assert.True(t, got.Qualified)
	require.NotNil(t, got.QualifiedAt)
	assert.True(t, got.QualifiedAt.Equal(t0.Add(time.Hour)))
	assert.Len(t, got.Conversation, 4)
	assert.Contains(t, gen.Last("chat_reply").Prompt, "prospect: Está muy caro para nosotros")
	assert.Empty(t, f.queue.Messages())
}

func TestChat_IntentFailureFallsBackToDefaultPlaybook(t *testing.T) {
	gen := newCountingGen(func(req GenerationRequest) (string, error) {
		if req.Purpose == "chat_intent" {
			return "", errors.New("timeout")
		}
		return "Claro, te explico.", nil
	})
	f := newNurtureFixture(t, gen)
	f.persuaded(t, "Cafe Lima", "tok-cafe")

	assert.Equal(t, "Claro, te explico.", f.nurturer.Reply(context.Background(), "tok-cafe", "¿Cómo funciona?"))
	assert.Contains(t, gen.Last("chat_reply").Prompt, playbooks[ObjectionNone])
}

func TestChat_ReplyFailureApologizesWithoutRecording(t *testing.T) {
	gen := newCountingGen(func(req GenerationRequest) (string, error) {
		if req.Purpose == "chat_intent" {
			return `{"objection": "time"}`, nil
		}
		return "", errors.New("safety block")
	})
	f := newNurtureFixture(t, gen)
	p := f.persuaded(t, "Cafe Lima", "tok-cafe")

	assert.Equal(t, ApologyReply, f.nurturer.Reply(context.Background(), "tok-cafe", "No tengo tiempo"))
	got := mustFind(t, f.store, p.ID)
	assert.Zero(t, got.Interactions)
	assert.Empty(t, got.Conversation)
}

func TestDetectHumanIntent(t *testing.T) {
	assert.True(t, DetectHumanIntent("Quiero AGENDAR UNA LLAMADA"))
	assert.True(t, DetectHumanIntent("please call me"))
	assert.False(t, DetectHumanIntent("¿Cuánto cuesta?"))
}
