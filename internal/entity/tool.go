package entity

import "github.com/google/uuid"

type Platform string

const (
	PlatformGoogleMaps Platform = "google_maps"
	PlatformInstagram  Platform = "instagram"
	PlatformTikTok     Platform = "tiktok"
	PlatformFacebook   Platform = "facebook"
	PlatformLinkedIn   Platform = "linkedin"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogleMaps, PlatformInstagram, PlatformTikTok, PlatformFacebook, PlatformLinkedIn:
		return true
	}
	return false
}

type Audience string

const (
	AudienceBusiness Audience = "business"
	AudiencePerson   Audience = "person"
)

func (a Audience) Valid() bool {
	return a == AudienceBusiness || a == AudiencePerson
}

// ToolCatalogEntry: ferramenta de descoberta cadastrada pelo operador.
// Os workers só leem.
type ToolCatalogEntry struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Platform   Platform `json:"platform"`
	Audience   Audience `json:"audience"`
	ActorID    string   `json:"actor_id"`
	Confidence int      `json:"confidence"`
}

func NewToolCatalogEntry(name string, platform Platform, audience Audience, actorID string, confidence int) *ToolCatalogEntry {
	return &ToolCatalogEntry{
		ID:         uuid.New().String(),
		Name:       name,
		Platform:   platform,
		Audience:   audience,
		ActorID:    actorID,
		Confidence: confidence,
	}
}
