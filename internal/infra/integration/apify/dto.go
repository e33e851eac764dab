package apify

// input do ator de mapas (compass/crawler-google-places e compatíveis)
type mapsInput struct {
	SearchStringsArray        []string `json:"searchStringsArray"`
	LocationQuery             string   `json:"locationQuery,omitempty"`
	MaxCrawledPlacesPerSearch int      `json:"maxCrawledPlacesPerSearch"`
	MaxReviews                int      `json:"maxReviews"`
	ReviewsSort               string   `json:"reviewsSort,omitempty"`
}

// input dos scrapers de rede social
type socialInput struct {
	Search       string `json:"search"`
	SearchType   string `json:"searchType"`
	ResultsLimit int    `json:"resultsLimit"`
	ResultsType  string `json:"resultsType,omitempty"`
}

// profileItem é o item devolvido pelo scraper de perfil do Instagram.
type profileItem struct {
	Username            string `json:"username"`
	Biography           string `json:"biography"`
	ExternalURL         string `json:"externalUrl"`
	BusinessEmail       string `json:"businessEmail"`
	PublicEmail         string `json:"publicEmail"`
	BusinessPhoneNumber string `json:"businessPhoneNumber"`
	ContactPhoneNumber  string `json:"contactPhoneNumber"`
}

func (p profileItem) email() string {
	if p.BusinessEmail != "" {
		return p.BusinessEmail
	}
	return p.PublicEmail
}

func (p profileItem) phone() string {
	if p.BusinessPhoneNumber != "" {
		return p.BusinessPhoneNumber
	}
	return p.ContactPhoneNumber
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
