package website

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/full", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="https://wa.me/51999000111">WhatsApp</a>
			<footer><a href="MAILTO:hola@cafe.pe">Escríbenos</a></footer>
		</body></html>`))
	})
	mux.HandleFunc("/bare", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Solo una carta</p><a href="/menu">Menú</a></body></html>`))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewProbe(0)
	ctx := context.Background()

	full, err := p.Probe(ctx, srv.URL+"/full")
	require.NoError(t, err)
	assert.True(t, full.Reachable)
	assert.True(t, full.HasWhatsApp)
	assert.True(t, full.HasMailto)
	assert.Equal(t, http.StatusOK, full.StatusCode)

	bare, err := p.Probe(ctx, srv.URL+"/bare")
	require.NoError(t, err)
	assert.True(t, bare.Reachable)
	assert.False(t, bare.HasWhatsApp)
	assert.False(t, bare.HasMailto)

	down, err := p.Probe(ctx, srv.URL+"/down")
	require.NoError(t, err)
	assert.False(t, down.Reachable)
	assert.Equal(t, http.StatusServiceUnavailable, down.StatusCode)
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	report, err := NewProbe(0).Probe(context.Background(), url)
	require.NoError(t, err)
	assert.False(t, report.Reachable)
	assert.Zero(t, report.StatusCode)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://cafe.pe", normalizeURL(" cafe.pe "))
	assert.Equal(t, "http://cafe.pe", normalizeURL("http://cafe.pe"))
	assert.Empty(t, normalizeURL(""))
}
