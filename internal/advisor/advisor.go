// Package advisor asks Gemini for maintenance intervals and business advice.
// It is optional: without an API key every call returns ErrDisabled and
// callers fall back to the default rules.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"flota/internal/cache"
	"flota/internal/core"
	applog "flota/internal/log"
)

// ErrDisabled is returned by every call when no API key is configured.
var ErrDisabled = errors.New("advisor disabled: GEMINI_API_KEY not set")

const (
	suggestionTTL = 6 * time.Hour
	adviceTTL     = time.Hour
	cacheSize     = 128

	systemInstruction = "You are a helpful AI assistant for a transport business in Colombia."
)

// Generator produces a JSON text answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Advisor struct {
	gen    Generator
	logger *applog.Logger

	suggestions *cache.LRUCache[[]core.Suggestion]
	advice      *cache.LRUCache[[]Advice]
	analysis    *cache.LRUCache[*FleetAnalysis]
}

// New builds a Gemini-backed advisor. An empty apiKey yields a disabled
// advisor, not an error.
func New(ctx context.Context, apiKey, model string, logger *applog.Logger) (*Advisor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return NewWithGenerator(nil, logger), nil
	}
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini service: %w", err)
	}
	return NewWithGenerator(&gemini{svc: svc, model: modelName(model)}, logger), nil
}

func NewWithGenerator(gen Generator, logger *applog.Logger) *Advisor {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Advisor{
		gen:         gen,
		logger:      logger.WithComponent(applog.ComponentAdvisor),
		suggestions: cache.NewLRUCache[[]core.Suggestion](cacheSize, suggestionTTL),
		advice:      cache.NewLRUCache[[]Advice](cacheSize, adviceTTL),
		analysis:    cache.NewLRUCache[*FleetAnalysis](cacheSize, adviceTTL),
	}
}

func (a *Advisor) Enabled() bool {
	return a != nil && a.gen != nil
}

// Caches exposes the response caches for periodic cleanup.
func (a *Advisor) Caches() []cache.Cleaner {
	return []cache.Cleaner{a.suggestions, a.advice, a.analysis}
}

// SuggestMaintenance asks for model-specific service intervals.
func (a *Advisor) SuggestMaintenance(ctx context.Context, brand, model string, year, km int) ([]core.Suggestion, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	// Nearby odometer readings share an answer.
	key := fmt.Sprintf("%s|%s|%d|%d", strings.ToLower(brand), strings.ToLower(model), year, km/5000)
	return a.suggestions.GetOrLoad(key, func() ([]core.Suggestion, error) {
		text, err := a.generate(ctx, "suggest", maintenancePrompt(brand, model, year, km))
		if err != nil {
			return nil, err
		}
		return parseSuggestions(text)
	})
}

// VehicleAdvice asks for concrete advice for one vehicle given its history.
func (a *Advisor) VehicleAdvice(ctx context.Context, v core.Vehicle, txs []core.Transaction) ([]Advice, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	totals := core.Summarize([]core.Vehicle{v}, txs).Vehicles[0]
	key := fmt.Sprintf("%s|%d|%d|%d|%d", v.ID, v.CurrentOdometer, len(txs), totals.Income.Cents, totals.Expense.Cents)
	return a.advice.GetOrLoad(key, func() ([]Advice, error) {
		text, err := a.generate(ctx, "advice", advicePrompt(v, totals, len(txs)))
		if err != nil {
			return nil, err
		}
		return parseAdvice(text)
	})
}

// AnalyzeFleet asks for an executive analysis of the whole business.
func (a *Advisor) AnalyzeFleet(ctx context.Context, vehicles []core.Vehicle, txs []core.Transaction) (*FleetAnalysis, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	sum := core.Summarize(vehicles, txs)
	key := fmt.Sprintf("%d|%d|%d|%d", len(vehicles), len(txs), sum.Income.Cents, sum.Expense.Cents)
	return a.analysis.GetOrLoad(key, func() (*FleetAnalysis, error) {
		text, err := a.generate(ctx, "analysis", fleetPrompt(vehicles, sum, len(txs)))
		if err != nil {
			return nil, err
		}
		return parseAnalysis(text)
	})
}

func (a *Advisor) generate(ctx context.Context, op, prompt string) (string, error) {
	start := time.Now()
	text, err := a.gen.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		a.logger.ErrorContext(ctx, "Gemini request failed", "operation", op, "error", err)
		return "", fmt.Errorf("gemini %s: %w", op, err)
	}
	a.logger.DebugContext(ctx, "Gemini request completed",
		"operation", op,
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

type gemini struct {
	svc   *generativelanguage.Service
	model string
}

func modelName(model string) string {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func (g *gemini) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
		GenerationConfig: &generativelanguage.GenerationConfig{
			ResponseMimeType: "application/json",
		},
	}
	if system != "" {
		req.SystemInstruction = &generativelanguage.Content{
			Parts: []*generativelanguage.Part{{Text: system}},
		}
	}

	resp, err := g.svc.Models.GenerateContent(g.model, req).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
	return "", errors.New("empty response")
}
