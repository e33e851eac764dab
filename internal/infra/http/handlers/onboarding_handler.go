package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

// OnboardingHandler expõe o cadastro de clientes e campanhas para o painel interno.
type OnboardingHandler struct {
	Onboarding *usecase.Onboarding
	Logger     *zap.Logger
}

func NewOnboardingHandler(uc *usecase.Onboarding, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{Onboarding: uc, Logger: logger}
}

// CreateClient (POST /admin/clients)
func (h *OnboardingHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var input usecase.CreateClientInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "JSON inválido: " + err.Error()})
		return
	}

	output, err := h.Onboarding.CreateClient(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, output)
}

// CreateCampaign (POST /admin/campaigns)
func (h *OnboardingHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input usecase.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "JSON inválido: " + err.Error()})
		return
	}

	output, err := h.Onboarding.CreateCampaign(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, output)
}

func (h *OnboardingHandler) writeError(w http.ResponseWriter, err error) {
	var de *usecase.DomainError
	if !errors.As(err, &de) {
		h.Logger.Error("erro no onboarding", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	status := http.StatusUnprocessableEntity
	switch de.Code {
	case "VALIDATION":
		status = http.StatusBadRequest
	case "DUPLICATE":
		status = http.StatusConflict
	case "CLIENT_NOT_FOUND":
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"code": de.Code, "error": de.Message})
}

// RequireToken protege as rotas /admin com um bearer fixo.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
