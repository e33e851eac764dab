package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

const maxChatBody = 8 << 10

// ChatResponder é o Nurturer visto pelo HTTP.
type ChatResponder interface {
	Reply(ctx context.Context, accessToken, message string) string
}

// ProspectHandler atende a página pessoal do prospect e o chat dela.
type ProspectHandler struct {
	Prospects entity.ProspectRepository
	Responder ChatResponder
	Limiter   usecase.RateLimiter
	Logger    *zap.Logger
}

func NewProspectHandler(prospects entity.ProspectRepository, responder ChatResponder, limiter usecase.RateLimiter, logger *zap.Logger) *ProspectHandler {
	return &ProspectHandler{
		Prospects: prospects,
		Responder: responder,
		Limiter:   limiter,
		Logger:    logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Landing (GET /p/{token})
func (h *ProspectHandler) Landing(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}

	out, err := usecase.FindLanding(r.Context(), h.Prospects, token)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
			return
		}
		h.Logger.Error("erro ao carregar landing", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// Chat (POST /p/{token}/chat). Sempre responde 200 com uma mensagem,
// menos em abuso (429) ou corpo ilegível (400).
func (h *ProspectHandler) Chat(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if h.Limiter != nil && !h.Limiter.Allow(r.Context(), "chat:"+clientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests, try again later"})
		return
	}

	var input usecase.ChatInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}

	reply := h.Responder.Reply(r.Context(), token, input.Message)
	writeJSON(w, http.StatusOK, usecase.ChatOutput{Reply: reply})
}

// clientIP usa só o RemoteAddr; atrás de proxy confiável o RealIP do chi
// já reescreveu esse campo.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
