package entity

import (
	"sort"
	"strings"
)

// PainTag é o vocabulário fechado de achados do Analyst.
type PainTag string

const (
	PainNoWebsite         PainTag = "no_website"
	PainSiteUnreachable   PainTag = "site_unreachable"
	PainSlowSite          PainTag = "slow_site"
	PainNoWhatsAppLink    PainTag = "no_whatsapp_link"
	PainNoVisibleEmail    PainTag = "no_visible_email"
	PainNoEmailChannel    PainTag = "no_email_channel"
	PainNoPhoneChannel    PainTag = "no_phone_channel"
	PainServiceComplaints PainTag = "service_complaints"
	PainPriceComplaints   PainTag = "price_complaints"
	PainQualityComplaints PainTag = "quality_complaints"
	PainSlowResponse      PainTag = "slow_response_pattern"
	PainOtherComplaints   PainTag = "other_complaints"
	PainRedFlag           PainTag = "red_flag"
	PainCompetitor        PainTag = "competitor"
)

var painTags = map[PainTag]struct{}{
	PainNoWebsite: {}, PainSiteUnreachable: {}, PainSlowSite: {}, PainNoWhatsAppLink: {},
	PainNoVisibleEmail: {}, PainNoEmailChannel: {}, PainNoPhoneChannel: {},
	PainServiceComplaints: {}, PainPriceComplaints: {}, PainQualityComplaints: {},
	PainSlowResponse: {}, PainOtherComplaints: {}, PainRedFlag: {}, PainCompetitor: {},
}

func (t PainTag) Valid() bool {
	_, ok := painTags[t]
	return ok
}

// Disqualifying marca achados que descartam o prospect em vez de virar argumento de venda.
func (t PainTag) Disqualifying() bool {
	return t == PainRedFlag || t == PainCompetitor
}

type Finding struct {
	Tag      PainTag `json:"tag"`
	Evidence string  `json:"evidence,omitempty"`
}

// PainLedger é o documento persistido em prospects.pain_points.
type PainLedger struct {
	Findings []Finding `json:"findings"`
}

// Add ignora tags fora do vocabulário e duplicatas exatas.
func (l *PainLedger) Add(tag PainTag, evidence string) {
	if !tag.Valid() {
		return
	}
	evidence = strings.TrimSpace(evidence)
	for _, f := range l.Findings {
		if f.Tag == tag && f.Evidence == evidence {
			return
		}
	}
	l.Findings = append(l.Findings, Finding{Tag: tag, Evidence: evidence})
}

// Normalize ordena os achados; dois ledgers com o mesmo conteúdo ficam idênticos.
func (l *PainLedger) Normalize() {
	sort.SliceStable(l.Findings, func(i, j int) bool {
		if l.Findings[i].Tag != l.Findings[j].Tag {
			return l.Findings[i].Tag < l.Findings[j].Tag
		}
		return l.Findings[i].Evidence < l.Findings[j].Evidence
	})
}

func (l PainLedger) Has(tag PainTag) bool {
	for _, f := range l.Findings {
		if f.Tag == tag {
			return true
		}
	}
	return false
}

// SellingPoints são os achados que servem de argumento na abordagem.
func (l PainLedger) SellingPoints() []Finding {
	var out []Finding
	for _, f := range l.Findings {
		if !f.Tag.Disqualifying() {
			out = append(out, f)
		}
	}
	return out
}

// Describe gera o texto curto usado nos prompts.
func (l PainLedger) Describe() string {
	points := l.SellingPoints()
	if len(points) == 0 {
		return "sin hallazgos"
	}
	parts := make([]string, 0, len(points))
	for _, f := range points {
		if f.Evidence != "" {
			parts = append(parts, string(f.Tag)+" ("+f.Evidence+")")
		} else {
			parts = append(parts, string(f.Tag))
		}
	}
	return strings.Join(parts, "; ")
}
