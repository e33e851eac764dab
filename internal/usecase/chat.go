package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/metrics"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
)

const (
	ApologyReply    = "Disculpa, tuvimos un problema para responderte. ¿Puedes intentarlo de nuevo en unos minutos?"
	EscalationReply = "¡Perfecto! Un asesor de nuestro equipo te va a contactar personalmente muy pronto."
	maxChatMessage  = 2000
)

type Objection string

const (
	ObjectionFinancial Objection = "financial"
	ObjectionUnknown   Objection = "unfamiliar"
	ObjectionTime      Objection = "time"
	ObjectionDistrust  Objection = "distrust"
	ObjectionNone      Objection = "none"
)

var playbooks = map[Objection]string{
	ObjectionFinancial: "El prospecto duda por el precio. Habla de retorno: cuánto le cuesta hoy el problema detectado frente a la inversión.",
	ObjectionUnknown:   "El prospecto no conoce la solución. Explica en una frase simple qué hace y qué cambia en su día a día.",
	ObjectionTime:      "El prospecto no tiene tiempo o está estresado. Muestra que la implementación le quita trabajo en vez de sumarle.",
	ObjectionDistrust:  "El prospecto desconfía. Ofrece una prueba concreta y de bajo riesgo, sin presionar.",
	ObjectionNone:      "Responde la duda con claridad y propone un siguiente paso pequeño.",
}

// palavras que sozinhas já indicam pedido de contato humano
var humanIntentKeywords = []string{
	"hablar con alguien", "hablar con una persona", "hablar con un asesor", "asesor humano",
	"llámame", "llamame", "llamenme", "llámenme", "agendar una llamada", "agendar llamada",
	"quiero una reunión", "quiero una reunion", "cotización formal", "cotizacion formal",
	"talk to a human", "call me",
}

// DetectHumanIntent é a checagem local, sem IA.
func DetectHumanIntent(message string) bool {
	m := strings.ToLower(message)
	for _, kw := range humanIntentKeywords {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}

type intentReply struct {
	Intent         string `json:"intent"`
	Objection      string `json:"objection"`
	HumanRequested bool   `json:"human_requested"`
}

const intentSystemPrompt = `Clasificas el mensaje de un prospecto. Responde SOLO JSON:
{"intent": "pregunta" | "objecion" | "interes" | "otro",
 "objection": "financial" | "unfamiliar" | "time" | "distrust" | "none",
 "human_requested": true | false}
"human_requested" es true solo si pide explícitamente hablar con una persona, una llamada o una reunión.`

// Reply responde uma mensagem do chat da landing. Nunca devolve erro:
// qualquer falha vira a resposta de desculpas.
func (n *Nurturer) Reply(ctx context.Context, accessToken, message string) string {
	message = truncateRunes(strings.TrimSpace(message), maxChatMessage)
	if accessToken == "" || message == "" {
		metrics.RecordChatTurn("invalid")
		return ApologyReply
	}

	p, err := n.Prospects.FindByAccessToken(ctx, accessToken)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			n.Logger.Error("falha ao resolver token do chat", zap.Error(err))
		}
		metrics.RecordChatTurn("unknown_token")
		return ApologyReply
	}
	log := n.Logger.With(zap.String("worker", "chat"), zap.String("prospect_id", p.ID))

	if p.Status == entity.StatusHumanAlert {
		metrics.RecordChatTurn("already_escalated")
		return EscalationReply
	}

	campaign, err := n.Campaigns.FindByID(ctx, p.CampaignID)
	if err != nil {
		log.Error("campanha não encontrada", zap.Error(err))
		metrics.RecordChatTurn("error")
		return ApologyReply
	}

	human := DetectHumanIntent(message)
	objection := ObjectionNone
	if !human {
		intent, err := n.classifyIntent(ctx, message)
		if err != nil {
			log.Warn("classificação de intenção falhou, seguindo sem playbook", zap.Error(err))
		} else {
			human = intent.HumanRequested
			objection = parseObjection(intent.Objection)
		}
	}

	if human {
		return n.escalate(ctx, campaign, p, message)
	}

	reply, err := n.composeReply(ctx, campaign, p, message, objection)
	if err != nil {
		log.Warn("geração da resposta falhou", zap.Error(err))
		metrics.RecordChatTurn("error")
		return ApologyReply
	}

	now := n.Now()
	state, err := n.Prospects.RecordChatTurns(ctx, p.ID, []entity.ChatTurn{
		{Role: "prospect", Text: message, At: now},
		{Role: "agent", Text: reply, At: now},
	}, n.Config.QualifiedThreshold, now)
	if err != nil {
		log.Error("falha ao gravar conversa", zap.Error(err))
	} else if state.NewlyQualified {
		log.Info("prospect qualificado pelo chat", zap.Int("interactions", state.Interactions))
	}

	metrics.RecordChatTurn(string(objection))
	return reply
}

func (n *Nurturer) escalate(ctx context.Context, campaign *entity.Campaign, p *entity.Prospect, message string) string {
	log := n.Logger.With(zap.String("worker", "chat"), zap.String("prospect_id", p.ID))
	now := n.Now()

	changed, err := n.Prospects.Escalate(ctx, p.ID, now)
	if err != nil {
		log.Error("falha ao escalar para humano", zap.Error(err))
		metrics.RecordChatTurn("error")
		return ApologyReply
	}
	if changed {
		metrics.RecordTransition(string(p.Status), string(entity.StatusHumanAlert))
	}

	if _, err := n.Prospects.RecordChatTurns(ctx, p.ID, []entity.ChatTurn{
		{Role: "prospect", Text: message, At: now},
		{Role: "agent", Text: EscalationReply, At: now},
	}, n.Config.QualifiedThreshold, now); err != nil {
		log.Warn("falha ao gravar conversa escalada", zap.Error(err))
	}

	if changed && n.Config.OperatorEmail != "" {
		err := n.Queue.PublishOutreach(ctx, queue.OutreachPayload{
			Kind:       queue.KindHumanAlert,
			ProspectID: p.ID,
			CampaignID: campaign.ID,
			ClientID:   campaign.ClientID,
			To:         n.Config.OperatorEmail,
			Name:       p.BusinessName,
			Subject:    "Alerta: " + p.BusinessName + " quiere hablar con una persona",
			Body: fmt.Sprintf("Campaña: %s\nNegocio: %s\nEmail: %s\nTeléfono: %s\nMensaje: %s",
				campaign.Name, p.BusinessName, p.Email, p.Phone, message),
			LandingURL: n.Config.PublicBaseURL + "/p/" + p.AccessToken,
		})
		if err != nil {
			metrics.RecordIntegrationError("queue")
			log.Error("falha ao notificar operador", zap.Error(err))
		}
	}

	log.Info("prospect escalado para atendimento humano")
	metrics.RecordChatTurn("escalated")
	return EscalationReply
}

func (n *Nurturer) classifyIntent(ctx context.Context, message string) (intentReply, error) {
	raw, err := n.Generator.Generate(ctx, GenerationRequest{
		Purpose:       "chat_intent",
		System:        intentSystemPrompt,
		Prompt:        message,
		JSON:          true,
		Deterministic: true,
	})
	if err != nil {
		metrics.RecordIntegrationError("text_generation")
		return intentReply{}, newPipelineError(KindExternalAPI, "chat.intent", err)
	}
	var reply intentReply
	if err := decodeJSONReply(raw, &reply); err != nil {
		return intentReply{}, newPipelineError(KindGeneration, "chat.intent.decode", err)
	}
	return reply, nil
}

func parseObjection(s string) Objection {
	o := Objection(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := playbooks[o]; ok {
		return o
	}
	return ObjectionNone
}

func (n *Nurturer) composeReply(ctx context.Context, campaign *entity.Campaign, p *entity.Prospect, message string, objection Objection) (string, error) {
	ledger := entity.PainLedger{}
	if p.PainPoints != nil {
		ledger = *p.PainPoints
	}

	var history strings.Builder
	for _, t := range p.Conversation {
		history.WriteString(t.Role)
		history.WriteString(": ")
		history.WriteString(t.Text)
		history.WriteString("\n")
	}

	prompt := fmt.Sprintf("Estrategia: %s\nOferta: %s\nNegocio: %s\nHallazgos: %s\nConversación previa:\n%s\nMensaje del prospecto: %s",
		playbooks[objection], campaign.ProductDescription, p.BusinessName, ledger.Describe(), history.String(), message)

	raw, err := n.Generator.Generate(ctx, GenerationRequest{
		Purpose: "chat_reply",
		System:  "Eres un asesor comercial. Responde en máximo 3 frases, en texto plano, con tono " + toneOrDefault(campaign.Tone) + ".",
		Prompt:  prompt,
	})
	if err != nil {
		metrics.RecordIntegrationError("text_generation")
		return "", newPipelineError(KindGeneration, "chat.reply", err)
	}
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", newPipelineError(KindGeneration, "chat.reply", errors.New("resposta vazia"))
	}
	return reply, nil
}
