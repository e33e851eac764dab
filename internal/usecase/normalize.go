package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

const (
	maxReviewSnippets  = 10
	negativeStarsLimit = 3
)

// normalizeRecord traduz um item cru da descoberta para Prospect.
// Devolve false quando não há nome ou identidade para dedup.
func normalizeRecord(campaignID string, tool *entity.ToolCatalogEntry, platform entity.Platform, rec DiscoveryRecord) (*entity.Prospect, bool) {
	var name, website, phone, email, url string
	social := map[string]string{}

	switch platform {
	case entity.PlatformGoogleMaps:
		name = pick(rec, "title", "name")
		website = pick(rec, "website")
		phone = pick(rec, "phone", "phoneUnformatted")
		url = pick(rec, "url", "placeUrl")
		if ig := pick(rec, "instagrams.0", "instagram"); ig != "" {
			social[string(entity.PlatformInstagram)] = ig
		}
	case entity.PlatformInstagram:
		name = pick(rec, "fullName", "username")
		website = pick(rec, "externalUrl")
		phone = pick(rec, "contactPhoneNumber", "businessPhoneNumber")
		email = pick(rec, "publicEmail", "businessEmail")
		url = pick(rec, "url", "inputUrl")
		if u := pick(rec, "username"); u != "" {
			social[string(entity.PlatformInstagram)] = u
		}
	case entity.PlatformTikTok:
		name = pick(rec, "authorMeta.nickName", "authorMeta.name", "nickname")
		website = pick(rec, "authorMeta.bioLink.link", "bioLink")
		url = pick(rec, "authorMeta.profileUrl", "webVideoUrl")
		if h := pick(rec, "authorMeta.name", "uniqueId"); h != "" {
			social[string(entity.PlatformTikTok)] = "@" + strings.TrimPrefix(h, "@")
		}
	case entity.PlatformFacebook:
		name = pick(rec, "title", "pageName", "name")
		website = pick(rec, "website")
		phone = pick(rec, "phone")
		email = pick(rec, "email")
		url = pick(rec, "pageUrl", "url", "facebookUrl")
	case entity.PlatformLinkedIn:
		name = pick(rec, "companyName", "name")
		website = pick(rec, "website", "websiteUrl")
		url = pick(rec, "linkedinUrl", "url")
	default:
		name = pick(rec, "title", "name", "fullName")
		website = pick(rec, "website")
		phone = pick(rec, "phone")
		url = pick(rec, "url")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	key := entity.NaturalKey(url, name, phone, website)
	if key == "" {
		return nil, false
	}

	p, err := entity.NewProspect(campaignID, name)
	if err != nil {
		return nil, false
	}
	p.SourceKey = key
	p.Website = strings.TrimSpace(website)
	p.Phone = strings.TrimSpace(phone)
	p.Email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := social[string(platform)]; !ok && url != "" {
		social[string(platform)] = url
	}
	if len(social) > 0 {
		p.SocialProfiles = social
	}
	p.ReviewSnippets = negativeReviews(rec)
	if tool != nil {
		p.ToolID = tool.ID
	}
	if raw, err := json.Marshal(rec); err == nil {
		p.RawPayload = raw
	}
	return p, true
}

// negativeReviews guarda só o texto das reviews com nota <= 3.
func negativeReviews(rec DiscoveryRecord) []string {
	items, ok := rec["reviews"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(asString(m["text"]))
		if text == "" {
			continue
		}
		stars, ok := asNumber(m["stars"])
		if !ok || stars > negativeStarsLimit {
			continue
		}
		out = append(out, text)
		if len(out) == maxReviewSnippets {
			break
		}
	}
	return out
}

// pick devolve o primeiro caminho não vazio. Caminhos usam ponto
// ("authorMeta.name") e índice numérico em listas ("instagrams.0").
func pick(rec DiscoveryRecord, paths ...string) string {
	for _, path := range paths {
		if v := asString(lookup(map[string]any(rec), strings.Split(path, "."))); strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func lookup(cur any, parts []string) any {
	for _, part := range parts {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[part]
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case json.Number:
		return t.String()
	}
	return ""
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
