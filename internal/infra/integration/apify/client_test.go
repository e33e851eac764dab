package apify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

func TestDiscover_MapsActor(t *testing.T) {
	var gotPath, gotAuth string
	var gotInput map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"title":"Café Central","phone":"+51 1 234"},{"title":"Pan Luz"},{"title":"Extra"}]`))
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, "apify/instagram-scraper")
	items, err := c.Discover(context.Background(), usecase.DiscoveryRequest{
		ActorID:    "compass/crawler-google-places",
		Platform:   entity.PlatformGoogleMaps,
		Query:      "restaurantes",
		Location:   "Lima",
		MaxRecords: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v2/acts/compass~crawler-google-places/run-sync-get-dataset-items", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, []any{"restaurantes"}, gotInput["searchStringsArray"])
	assert.Equal(t, "Lima", gotInput["locationQuery"])
	assert.EqualValues(t, 2, gotInput["maxCrawledPlacesPerSearch"])
	require.Len(t, items, 2)
	assert.Equal(t, "Café Central", items[0]["title"])
}

func TestDiscover_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"not-enough-usage","message":"sem créditos"}}`))
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, "")
	_, err := c.Discover(context.Background(), usecase.DiscoveryRequest{ActorID: "a/b", Query: "x", MaxRecords: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
	assert.Contains(t, err.Error(), "sem créditos")
}

func TestLookupContact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in socialInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in.Search == "ninguem" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"username":"cafecentral","publicEmail":"hola@cafe.pe","contactPhoneNumber":"+51 999","biography":"café de especialidad"}]`))
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL, "apify/instagram-scraper")

	profile, err := c.LookupContact(context.Background(), "cafecentral")
	require.NoError(t, err)
	assert.Equal(t, "hola@cafe.pe", profile.Email)
	assert.Equal(t, "+51 999", profile.Phone)

	_, err = c.LookupContact(context.Background(), "ninguem")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
