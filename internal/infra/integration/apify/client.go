package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

// Client executa atores de forma síncrona (run-sync-get-dataset-items):
// uma chamada HTTP, itens do dataset na resposta.
type Client struct {
	baseURL    string
	token      string
	spyActorID string
	http       *http.Client
}

var (
	_ usecase.DiscoveryService = (*Client)(nil)
	_ usecase.ContactLookup    = (*Client)(nil)
)

func NewClient(token, baseURL, spyActorID string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		spyActorID: spyActorID,
		// atores de mapas demoram minutos
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Discover: uma chamada paga ao ator da ferramenta escolhida.
func (c *Client) Discover(ctx context.Context, req usecase.DiscoveryRequest) ([]usecase.DiscoveryRecord, error) {
	if req.ActorID == "" {
		return nil, fmt.Errorf("actor id is required")
	}

	var input any
	switch req.Platform {
	case entity.PlatformGoogleMaps, "":
		input = mapsInput{
			SearchStringsArray:        []string{req.Query},
			LocationQuery:             req.Location,
			MaxCrawledPlacesPerSearch: req.MaxRecords,
			MaxReviews:                10,
			ReviewsSort:               "lowestRanking",
		}
	default:
		query := req.Query
		if req.Location != "" {
			query = req.Query + " " + req.Location
		}
		input = socialInput{
			Search:       query,
			SearchType:   "user",
			ResultsLimit: req.MaxRecords,
			ResultsType:  "details",
		}
	}

	var items []usecase.DiscoveryRecord
	if err := c.run(ctx, req.ActorID, input, &items); err != nil {
		return nil, err
	}
	if req.MaxRecords > 0 && len(items) > req.MaxRecords {
		items = items[:req.MaxRecords]
	}
	return items, nil
}

// LookupContact busca o perfil público do handle. Perfil inexistente
// devolve entity.ErrNotFound.
func (c *Client) LookupContact(ctx context.Context, handle string) (*usecase.ContactProfile, error) {
	input := socialInput{
		Search:       handle,
		SearchType:   "user",
		ResultsLimit: 1,
		ResultsType:  "details",
	}

	var items []profileItem
	if err := c.run(ctx, c.spyActorID, input, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 || items[0].Username == "" {
		return nil, entity.ErrNotFound
	}

	it := items[0]
	return &usecase.ContactProfile{
		Handle:      it.Username,
		Email:       it.email(),
		Phone:       it.phone(),
		Biography:   it.Biography,
		ExternalURL: it.ExternalURL,
	}, nil
}

func (c *Client) run(ctx context.Context, actorID string, input any, out any) error {
	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?format=json&clean=true",
		c.baseURL, url.PathEscape(strings.ReplaceAll(actorID, "/", "~")))

	jsonBody, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("erro ao gerar json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("erro na conexão com apify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("apify rejeitou (status %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("apify rejeitou (status %d)", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("erro ao ler resposta apify: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ProspectPipeline/1.0")
}
