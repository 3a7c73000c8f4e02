package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"github.com/webpulse/webpulse/internal/metric"
	"github.com/webpulse/webpulse/internal/model"
	"github.com/webpulse/webpulse/internal/source"
)

const (
	// wordsPerMinute is the reading speed used for reading time.
	wordsPerMinute = 200
	// maxPromptText bounds the page text sent to the model.
	maxPromptText = 4000
	// maxAIInsights caps the audit notes returned by the model.
	maxAIInsights = 3
)

// Generator is the chat model used for insights.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// LLMConfig configures the OpenAI-compatible chat model.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// RPM and Burst limit model calls.
	RPM   int
	Burst int
}

// NewOpenAIGenerator creates a chat model for an OpenAI-compatible API.
func NewOpenAIGenerator(ctx context.Context, cfg LLMConfig) (Generator, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	return cm, nil
}

// Insighter writes the narrative insight for a page and its audit.
// Without a Generator every insight comes from a fixed template.
type Insighter struct {
	gen     Generator
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewInsighter creates an Insighter. gen may be nil.
func NewInsighter(gen Generator, cfg LLMConfig, logger *slog.Logger) *Insighter {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), max(1, cfg.Burst))
	}
	return &Insighter{
		gen:     gen,
		limiter: limiter,
		logger:  logger.With("component", "insighter"),
	}
}

type readable struct {
	Title   string
	Excerpt string
	Text    string
	Words   int
}

func extractReadable(page *Page) readable {
	pageURL, _ := url.Parse(page.URL)
	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		return readable{}
	}
	text := collapse(article.TextContent)
	return readable{
		Title:   collapse(article.Title),
		Excerpt: collapse(article.Excerpt),
		Text:    text,
		Words:   len(strings.Fields(text)),
	}
}

// Analyze builds the /analyze payload for a fetched page.
func (i *Insighter) Analyze(ctx context.Context, page *Page) *source.InsightResponse {
	content := extractReadable(page)

	resp := &source.InsightResponse{
		Metrics: map[string]any{
			"name":               page.URL,
			"title":              content.Title,
			"wordCount":          content.Words,
			"readingTimeMinutes": readingTime(content.Words),
			"statusCode":         page.StatusCode,
			"responseTimeMs":     page.ResponseTime.Milliseconds(),
			"pageBytes":          len(page.Body),
		},
	}

	if i.gen != nil {
		insight, insights, err := i.pageInsight(ctx, page.URL, content)
		if err == nil {
			resp.Insight, resp.Insights = insight, insights
			return resp
		}
		i.logger.Warn("llm insight failed, using template", "url", page.URL, "error", err)
	}

	resp.Insight = fmt.Sprintf("AI Insight: %s has %d words of readable content (about %d min read).",
		page.URL, content.Words, readingTime(content.Words))
	resp.Insights = content.Excerpt
	return resp
}

func (i *Insighter) pageInsight(ctx context.Context, pageURL string, content readable) (string, string, error) {
	text := content.Text
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}

	prompt := fmt.Sprintf(`Page: %s
Title: %s
Content:
%s

Write a short assessment of this page for its owner. Reply with JSON only:
{"insight": "one sentence on what the page offers and how engaging it is", "insights": "one or two sentences with a concrete content improvement"}`,
		pageURL, content.Title, text)

	var out struct {
		Insight  string `json:"insight"`
		Insights string `json:"insights"`
	}
	if err := i.generateJSON(ctx, prompt, &out); err != nil {
		return "", "", err
	}
	if out.Insight == "" {
		return "", "", fmt.Errorf("model returned an empty insight")
	}
	return out.Insight, out.Insights, nil
}

// AuditInsights summarizes an audit in a few remediation notes.
// It returns nil without a Generator or when the model fails.
func (i *Insighter) AuditInsights(ctx context.Context, pageURL string, audit *source.AuditResponse) []string {
	if i.gen == nil {
		return nil
	}

	var b strings.Builder
	for _, key := range model.MetricKeys {
		value := model.ValueFor(key, audit.Raw(key))
		fmt.Fprintf(&b, "- %s: %s (%s)\n", key.Label(), metric.Format(key, value), metric.Classify(key, value))
	}
	for _, r := range audit.Recommendations {
		fmt.Fprintf(&b, "- failing audit: %s\n", r.Title)
	}

	prompt := fmt.Sprintf(`Lighthouse results for %s:
%s
Give at most %d short, specific recommendations to improve these results.
Reply with a JSON array of strings only.`, pageURL, b.String(), maxAIInsights)

	var notes []string
	if err := i.generateJSON(ctx, prompt, &notes); err != nil {
		i.logger.Warn("llm audit insights failed", "url", pageURL, "error", err)
		return nil
	}

	out := make([]string, 0, len(notes))
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	if len(out) > maxAIInsights {
		out = out[:maxAIInsights]
	}
	return out
}

func (i *Insighter) generateJSON(ctx context.Context, prompt string, out any) error {
	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm rate limit: %w", err)
	}

	resp, err := i.gen.Generate(ctx, []*schema.Message{
		schema.SystemMessage("You are a web performance and content analyst. Output JSON only, without markdown."),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if err := json.Unmarshal([]byte(stripFences(resp.Content)), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func readingTime(words int) int {
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}
