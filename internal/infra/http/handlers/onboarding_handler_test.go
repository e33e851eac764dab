package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/infra/memory"
	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

func TestOnboardingRoutes(t *testing.T) {
	store := memory.NewStore()
	now := func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	h := NewOnboardingHandler(usecase.NewOnboarding(store.Clients(), store.Campaigns(), zap.NewNop(), now), zap.NewNop())

	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireToken("s3cret"))
		r.Post("/clients", h.CreateClient)
		r.Post("/campaigns", h.CreateCampaign)
	})

	do := func(path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	client := `{"name":"Agencia Sur","email":"ops@sur.pe","balance":100,"plan_cost":50}`

	assert.Equal(t, http.StatusUnauthorized, do("/admin/clients", "", client).Code)
	assert.Equal(t, http.StatusUnauthorized, do("/admin/clients", "wrong", client).Code)
	assert.Equal(t, http.StatusCreated, do("/admin/clients", "s3cret", client).Code)
	assert.Equal(t, http.StatusConflict, do("/admin/clients", "s3cret", client).Code)
	assert.Equal(t, http.StatusBadRequest, do("/admin/clients", "s3cret", `{"name":""}`).Code)

	rec := do("/admin/campaigns", "s3cret", `{"client_id":"missing","name":"c","product_description":"Menú digital con pedidos","target_audience":"cafés","geo":"Lima","daily_prospects_quota":5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "CLIENT_NOT_FOUND")
}
