package website

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

const maxBody = 1 << 20

// Probe faz um GET na home do prospect e procura canais de contato.
type Probe struct {
	http *http.Client
}

var _ usecase.SiteProbe = (*Probe)(nil)

func NewProbe(timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Probe{http: &http.Client{Timeout: timeout}}
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}

// Probe nunca devolve erro para site fora do ar: isso é um achado,
// não falha técnica. Erro só para URL inválida.
func (p *Probe) Probe(ctx context.Context, rawURL string) (usecase.SiteReport, error) {
	var report usecase.SiteReport
	target := normalizeURL(rawURL)
	if target == "" {
		return report, fmt.Errorf("url vazia")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return report, fmt.Errorf("url inválida: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ProspectPipeline/1.0)")

	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return report, nil
	}
	defer resp.Body.Close()

	report.StatusCode = resp.StatusCode
	if resp.StatusCode >= 400 {
		return report, nil
	}
	report.Reachable = true

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBody))
	report.Latency = time.Since(start)
	if err != nil {
		return report, nil
	}
	scanLinks(doc, &report)
	return report, nil
}

var whatsappHosts = []string{"wa.me/", "api.whatsapp.com/", "web.whatsapp.com/", "whatsapp://"}

func scanLinks(n *html.Node, report *usecase.SiteReport) {
	if n.Type == html.ElementNode && n.Data == "a" {
		href := strings.ToLower(getAttr(n, "href"))
		if strings.HasPrefix(href, "mailto:") {
			report.HasMailto = true
		}
		for _, h := range whatsappHosts {
			if strings.Contains(href, h) {
				report.HasWhatsApp = true
				break
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if report.HasMailto && report.HasWhatsApp {
			return
		}
		scanLinks(c, report)
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
