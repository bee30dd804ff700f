// Package analyzer produces deal analyses for listings: after-repair
// value, repair buckets, and a maximum allowable offer. Claude backs the
// estimate when configured; a deterministic heuristic covers the disabled
// and failure paths so the surface always answers.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/store"
	"github.com/russellquealy-cloud/dealflow/pkg/anthropic"
)

const (
	defaultModel   = "claude-sonnet-4-5-20250929"
	heuristicModel = "heuristic"
	maxTokens      = 2000
	temperature    = 0.3
)

const systemPrompt = "You are a real estate investment analyst. Provide accurate, data-driven analysis for wholesale real estate deals. Respond with JSON only."

// Input describes the property under analysis.
type Input struct {
	Address      string                `json:"address"`
	Beds         float64               `json:"beds"`
	Baths        float64               `json:"baths"`
	Sqft         float64               `json:"sqft"`
	PropertyType string                `json:"property_type,omitempty"`
	YearBuilt    *int                  `json:"year_built,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	Market       *model.MarketSnapshot `json:"market,omitempty"`
}

// Range is a low/high dollar estimate.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ARV is the after-repair value estimate.
type ARV struct {
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Median     float64 `json:"median"`
	Confidence float64 `json:"confidence"`
}

// Repairs buckets estimated repair costs.
type Repairs struct {
	Cosmetic   Range `json:"cosmetic"`
	Structural Range `json:"structural"`
	Systems    Range `json:"systems"`
	Total      Range `json:"total"`
}

// MAO is the maximum allowable offer range.
type MAO struct {
	Low         float64 `json:"low"`
	High        float64 `json:"high"`
	Recommended float64 `json:"recommended"`
}

// Comp is one comparable sale.
type Comp struct {
	Address  string  `json:"address"`
	Price    float64 `json:"price"`
	Beds     float64 `json:"beds"`
	Baths    float64 `json:"baths"`
	Sqft     float64 `json:"sqft"`
	Distance float64 `json:"distance"`
	SoldDate string  `json:"sold_date"`
}

// Analysis is the full deal analysis.
type Analysis struct {
	ARV             ARV      `json:"arv"`
	Repairs         Repairs  `json:"repairs"`
	MAO             MAO      `json:"mao"`
	Comps           []Comp   `json:"comps"`
	Notes           []string `json:"analysis_notes"`
	ConfidenceScore float64  `json:"confidence_score"`
	Model           string   `json:"model"`
}

// UsageLogger records analysis invocations for usage metering.
type UsageLogger interface {
	InsertAnalysisLog(ctx context.Context, log store.AnalysisLog) error
}

// Analyzer runs deal analyses. A nil client limits it to the heuristic.
type Analyzer struct {
	client anthropic.Client
	model  string
	logs   UsageLogger
	now    func() time.Time
}

// New returns an Analyzer. logs may be nil to skip usage metering.
func New(client anthropic.Client, modelID string, logs UsageLogger) *Analyzer {
	if modelID == "" {
		modelID = defaultModel
	}
	return &Analyzer{client: client, model: modelID, logs: logs, now: time.Now}
}

// Analyze estimates the deal for userID's request. Claude failures fall
// back to the heuristic rather than erroring; only logging failures and
// context cancellation surface.
func (a *Analyzer) Analyze(ctx context.Context, userID, listingID string, in Input) (*Analysis, error) {
	analysis, tokens := a.run(ctx, in)

	if a.logs != nil {
		var lid *string
		if listingID != "" {
			lid = &listingID
		}
		err := a.logs.InsertAnalysisLog(ctx, store.AnalysisLog{
			UserID:    userID,
			ListingID: lid,
			Model:     analysis.Model,
			Tokens:    tokens,
		})
		if err != nil {
			return nil, eris.Wrap(err, "analyzer: log usage")
		}
	}
	return analysis, nil
}

func (a *Analyzer) run(ctx context.Context, in Input) (*Analysis, int) {
	if a.client == nil {
		return a.heuristic(in), 0
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(in)}},
		Temperature: floatPtr(temperature),
	})
	if err != nil {
		zap.L().Warn("analyzer: model call failed, using heuristic", zap.Error(err))
		return a.heuristic(in), 0
	}

	resp.Usage.LogCost(a.model, "deal-analysis")

	analysis, err := parseAnalysis(resp.Text())
	if err != nil {
		zap.L().Warn("analyzer: unparseable response, using heuristic", zap.Error(err))
		return a.heuristic(in), int(resp.Usage.Total())
	}
	analysis.Model = a.model
	return analysis, int(resp.Usage.Total())
}

// buildPrompt renders the property and its market context for the model.
func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this real estate property and provide a comprehensive market analysis:\n\n")
	fmt.Fprintf(&b, "Property Details:\n")
	fmt.Fprintf(&b, "- Address: %s\n", in.Address)
	fmt.Fprintf(&b, "- Beds: %g\n- Baths: %g\n- Square Feet: %g\n", in.Beds, in.Baths, in.Sqft)
	if in.PropertyType != "" {
		fmt.Fprintf(&b, "- Property Type: %s\n", in.PropertyType)
	}
	if in.YearBuilt != nil {
		fmt.Fprintf(&b, "- Year Built: %d\n", *in.YearBuilt)
	}
	if in.Notes != "" {
		fmt.Fprintf(&b, "- Notes: %s\n", in.Notes)
	}

	if m := in.Market; m != nil {
		fmt.Fprintf(&b, "\nMarket Context (%s, %s):\n", m.RegionName, m.StateName)
		if m.ZHVIMidSFR != nil {
			fmt.Fprintf(&b, "- ZHVI Mid-Tier Single Family: $%.0f\n", *m.ZHVIMidSFR)
		}
		if m.PctListingsPriceCut != nil {
			fmt.Fprintf(&b, "- %% Listings with Price Cuts: %.1f%%\n", *m.PctListingsPriceCut)
		}
		if m.MedianDaysToClose != nil {
			fmt.Fprintf(&b, "- Median Days to Close: %.0f days\n", *m.MedianDaysToClose)
		}
		b.WriteString("Use the market context to inform demand, pricing, and your analysis notes.\n")
	}

	b.WriteString(`
Provide: ARV (low/high/median/confidence), repair estimates by category
(cosmetic, structural, systems, total), MAO (low/high/recommended), 3-5
comparable sales, analysis notes, and a confidence score.

Return a JSON object with this structure:
{"arv":{"low":0,"high":0,"median":0,"confidence":0},
"repairs":{"cosmetic":{"low":0,"high":0},"structural":{"low":0,"high":0},"systems":{"low":0,"high":0},"total":{"low":0,"high":0}},
"mao":{"low":0,"high":0,"recommended":0},
"comps":[{"address":"","price":0,"beds":0,"baths":0,"sqft":0,"distance":0,"sold_date":""}],
"analysis_notes":[""],"confidence_score":0}
`)
	return b.String()
}

// parseAnalysis extracts the JSON object from a model response, tolerating
// code fences and prose around it.
func parseAnalysis(text string) (*Analysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.New("analyzer: no JSON object in response")
	}
	var a Analysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return nil, eris.Wrap(err, "analyzer: decode response")
	}
	if a.ARV.Median <= 0 {
		return nil, eris.New("analyzer: response missing ARV")
	}
	return &a, nil
}

func floatPtr(v float64) *float64 { return &v }
