// Package advisor turns a vegetation-index time series into a short
// agronomic summary written by Gemini.
package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/assets"
)

// Generator is the subset of the genai Models service used here.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Advisor asks a Gemini model for insights.
type Advisor struct {
	models Generator
	model  string
}

func New(models Generator, model string) *Advisor {
	return &Advisor{models: models, model: model}
}

// NewFromAPIKey creates an Advisor backed by the Gemini API.
func NewFromAPIKey(ctx context.Context, apiKey, model string) (*Advisor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return New(client.Models, model), nil
}

// Summarize returns the model's summary of resp. An empty series yields
// an empty string without calling the model.
func (a *Advisor) Summarize(ctx context.Context, resp *assemble.Response) (string, error) {
	prompt := Prompt(resp)
	if prompt == "" {
		return "", nil
	}

	start := time.Now()
	out, err := a.models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(assets.InsightsSystemPrompt(), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
		MaxOutputTokens:   400,
	})
	if err != nil {
		return "", fmt.Errorf("generate insights: %w", err)
	}
	text := strings.TrimSpace(out.Text())
	if text == "" {
		return "", fmt.Errorf("empty insights from %s", a.model)
	}

	log.Debug().
		Str("model", a.model).
		Int("images", len(resp.Images)).
		Int("responseLength", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Insights generated")
	return text, nil
}

// Prompt renders the series in acquisition order, one line per image.
func Prompt(resp *assemble.Response) string {
	type point struct {
		date     string
		mean     float64
		category string
		strategy string
		cloud    float64
	}
	var series []point
	for _, img := range resp.Images {
		st := img.Statistics()
		if st == nil || img.AcquisitionDate == nil {
			continue
		}
		p := point{
			date:     *img.AcquisitionDate,
			mean:     st.Mean.Value,
			category: img.Interpretation.Category,
			cloud:    img.CloudCover.Value,
			strategy: "optical",
		}
		if img.IndexStrategy != nil {
			p.strategy = img.IndexStrategy.Strategy
		}
		series = append(series, p)
	}
	if len(series) == 0 {
		return ""
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].date < series[j].date })

	var b strings.Builder
	fmt.Fprintf(&b, "Index: %s\nPeriod: %s\nFarm area: %.2f hectares\n\n",
		resp.ProcessingInfo.Index, resp.Summary.DateRange, resp.AreaInfo.Area.Value)
	b.WriteString("date | mean | category | cloud % | source\n")
	for _, p := range series {
		fmt.Fprintf(&b, "%s | %.3f | %s | %.1f | %s\n", p.date, p.mean, p.category, p.cloud, p.strategy)
	}
	return b.String()
}
