package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/memory"
)

func TestStrategist_PlanHunt(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  entity.HuntPlan
	}{
		{
			name:  "vocabulário canônico",
			reply: `{"platform": "instagram", "audience": "person", "query": "reposteras"}`,
			want:  entity.HuntPlan{Platform: entity.PlatformInstagram, Audience: entity.AudiencePerson, Query: "reposteras"},
		},
		{
			name:  "aliases",
			reply: "Claro:\n{\"platform\": \"Google Maps\", \"audience\": \"empresas\", \"query\": \"cafeterías Miraflores\"}",
			want:  entity.HuntPlan{Platform: entity.PlatformGoogleMaps, Audience: entity.AudienceBusiness, Query: "cafeterías Miraflores"},
		},
		{
			name:  "query vazia usa o público da campanha",
			reply: `{"platform": "tiktok", "audience": "???", "query": ""}`,
			want:  entity.HuntPlan{Platform: entity.PlatformTikTok, Audience: entity.AudienceBusiness, Query: "cafeterías"},
		},
		{
			name:  "plataforma desconhecida",
			reply: `{"platform": "myspace", "audience": "business", "query": "x"}`,
			want:  entity.HuntPlan{Platform: entity.PlatformGoogleMaps, Audience: entity.AudienceBusiness, Query: "cafeterías"},
		},
		{
			name: "gerador fora do ar",
			err:  errors.New("unavailable"),
			want: entity.HuntPlan{Platform: entity.PlatformGoogleMaps, Audience: entity.AudienceBusiness, Query: "cafeterías"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			client := seedClient(t, store)
			campaign := seedCampaign(t, store, client.ID, 5)
			gen := newCountingGen(func(GenerationRequest) (string, error) { return tt.reply, tt.err })
			s := NewStrategist(store.Campaigns(), gen, nop())

			plan := s.PlanHunt(context.Background(), campaign)
			assert.Equal(t, tt.want, plan)
			assert.Equal(t, tt.want, campaign.Plan)

			saved, err := store.Campaigns().FindByID(context.Background(), campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, saved.Plan, "plano persistido")
			assert.True(t, gen.Last("hunt_plan").Deterministic)
		})
	}
}

func TestStrategist_ReusesStoredPlan(t *testing.T) {
	store := memory.NewStore()
	client := seedClient(t, store)
	campaign := seedCampaign(t, store, client.ID, 5)
	campaign.Plan = entity.HuntPlan{Platform: entity.PlatformFacebook, Audience: entity.AudienceBusiness, Query: "restaurantes"}

	gen := newCountingGen(func(GenerationRequest) (string, error) { return "", errors.New("não deveria ser chamado") })
	plan := NewStrategist(store.Campaigns(), gen, nop()).PlanHunt(context.Background(), campaign)

	assert.Equal(t, campaign.Plan, plan)
	assert.Zero(t, gen.Calls("hunt_plan"))
}
