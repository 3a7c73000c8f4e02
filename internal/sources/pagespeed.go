package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"

	"golang.org/x/time/rate"

	"github.com/webpulse/webpulse/internal/model"
	"github.com/webpulse/webpulse/internal/source"
)

// Lighthouse categories requested from PageSpeed Insights.
var categories = []string{"performance", "seo", "accessibility", "best-practices"}

// Audit IDs of the Core Web Vitals.
const (
	auditFCP        = "first-contentful-paint"
	auditLCP        = "largest-contentful-paint"
	auditCLS        = "cumulative-layout-shift"
	auditSpeedIndex = "speed-index"
	auditTBT        = "total-blocking-time"
)

// Audits scoring below this become recommendations.
const recommendationThreshold = 0.9

// maxRecommendations caps the recommendations returned per audit.
const maxRecommendations = 10

// maxUpstreamBody bounds how much of a PageSpeed response is read.
const maxUpstreamBody = 20 << 20

// UpstreamError is a non-2xx PageSpeed response, relayed to the caller.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Lighthouse API request failed with status %d", e.StatusCode)
}

// PageSpeedConfig configures a PageSpeed client.
type PageSpeedConfig struct {
	APIURL   string
	APIKey   string
	Strategy string
	// RPS limits outgoing calls. Zero disables limiting.
	RPS float64
}

// PageSpeed runs Lighthouse audits through the PageSpeed Insights API.
type PageSpeed struct {
	cfg     PageSpeedConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewPageSpeed creates a PageSpeed client.
func NewPageSpeed(cfg PageSpeedConfig, client *http.Client) *PageSpeed {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(math.Ceil(cfg.RPS))))
	}
	return &PageSpeed{cfg: cfg, client: client, limiter: limiter}
}

type pagespeedPayload struct {
	LighthouseResult struct {
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
		Audits map[string]lighthouseAudit `json:"audits"`
	} `json:"lighthouseResult"`
}

type lighthouseAudit struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Score            *float64 `json:"score"`
	ScoreDisplayMode string   `json:"scoreDisplayMode"`
	NumericValue     *float64 `json:"numericValue"`
}

// Audit runs Lighthouse for pageURL and reshapes the result.
func (p *PageSpeed) Audit(ctx context.Context, pageURL string) (*source.AuditResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pagespeed rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(pageURL), nil)
	if err != nil {
		return nil, fmt.Errorf("build pagespeed request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pagespeed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("read pagespeed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload pagespeedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode pagespeed response: %w", err)
	}
	return reshape(payload), nil
}

func (p *PageSpeed) requestURL(pageURL string) string {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", p.cfg.Strategy)
	if p.cfg.APIKey != "" {
		q.Set("key", p.cfg.APIKey)
	}
	for _, c := range categories {
		q.Add("category", c)
	}
	return p.cfg.APIURL + "?" + q.Encode()
}

func reshape(payload pagespeedPayload) *source.AuditResponse {
	result := payload.LighthouseResult
	score := func(id string) *float64 {
		if c, ok := result.Categories[id]; ok {
			return c.Score
		}
		return nil
	}
	numeric := func(id string) *float64 {
		if a, ok := result.Audits[id]; ok {
			return a.NumericValue
		}
		return nil
	}

	out := &source.AuditResponse{
		Performance:     score("performance"),
		SEO:             score("seo"),
		Accessibility:   score("accessibility"),
		BestPractices:   score("best-practices"),
		FCP:             numeric(auditFCP),
		LCP:             numeric(auditLCP),
		CLS:             numeric(auditCLS),
		SpeedIndex:      numeric(auditSpeedIndex),
		TBT:             numeric(auditTBT),
		Recommendations: recommendations(result.Audits),
	}
	if out.CLS != nil {
		rounded := math.Round(*out.CLS*100) / 100
		out.CLS = &rounded
	}
	return out
}

// recommendations lists the worst-scoring audits first.
func recommendations(audits map[string]lighthouseAudit) []model.Recommendation {
	failing := make([]lighthouseAudit, 0)
	for id, a := range audits {
		if a.Score == nil || *a.Score >= recommendationThreshold || a.Title == "" {
			continue
		}
		if a.ScoreDisplayMode != "numeric" && a.ScoreDisplayMode != "binary" && a.ScoreDisplayMode != "metricSavings" {
			continue
		}
		a.ID = id
		failing = append(failing, a)
	}

	sort.Slice(failing, func(i, j int) bool {
		if *failing[i].Score != *failing[j].Score {
			return *failing[i].Score < *failing[j].Score
		}
		return failing[i].ID < failing[j].ID
	})
	if len(failing) > maxRecommendations {
		failing = failing[:maxRecommendations]
	}

	out := make([]model.Recommendation, 0, len(failing))
	for _, a := range failing {
		out = append(out, model.Recommendation{Title: a.Title, Description: a.Description})
	}
	return out
}
