package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russellquealy-cloud/dealflow/internal/model"
	"github.com/russellquealy-cloud/dealflow/internal/store"
	"github.com/russellquealy-cloud/dealflow/pkg/anthropic"
)

type fakeClient struct {
	resp    *anthropic.MessageResponse
	err     error
	lastReq anthropic.MessageRequest
	calls   int
}

func (c *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls++
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

type fakeUsageLog struct {
	entries []store.AnalysisLog
	err     error
}

func (l *fakeUsageLog) InsertAnalysisLog(_ context.Context, log store.AnalysisLog) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, log)
	return nil
}

func f64(v float64) *float64 { return &v }

func textResponse(text string, in, out int64) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: in, OutputTokens: out},
	}
}

func TestHeuristicFormulas(t *testing.T) {
	a := New(nil, "", nil)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	// basePrice 150000 + (3+2)*5000 = 175000
	got := a.heuristic(Input{Address: "1 Elm St", Beds: 3, Baths: 2, Sqft: 1000})

	assert.Equal(t, 148750.0, got.ARV.Low)
	assert.Equal(t, 201250.0, got.ARV.High)
	assert.Equal(t, 175000.0, got.ARV.Median)
	assert.Equal(t, 0.75, got.ARV.Confidence)

	// repairTotal 26250
	assert.Equal(t, 7875.0, got.Repairs.Cosmetic.Low)
	assert.Equal(t, 13125.0, got.Repairs.Cosmetic.High)
	assert.Equal(t, 5250.0, got.Repairs.Structural.Low)
	assert.Equal(t, 10500.0, got.Repairs.Structural.High)
	assert.Equal(t, 2625.0, got.Repairs.Systems.Low)
	assert.Equal(t, 7875.0, got.Repairs.Systems.High)
	assert.Equal(t, 15750.0, got.Repairs.Total.Low)
	assert.Equal(t, 31500.0, got.Repairs.Total.High)

	assert.Equal(t, 148750.0-31500-20000, got.MAO.Low)
	assert.Equal(t, 201250.0-15750-10000, got.MAO.High)
	assert.Equal(t, 136375.0, got.MAO.Recommended)

	assert.Equal(t, 0.8, got.ConfidenceScore)
	assert.Equal(t, heuristicModel, got.Model)
	require.Len(t, got.Comps, 3)
	assert.Equal(t, 161000.0, got.Comps[0].Price)
	assert.Equal(t, "2026-01-30", got.Comps[0].SoldDate)
}

func TestHeuristicNotes(t *testing.T) {
	a := New(nil, "", nil)

	small := a.heuristic(Input{Beds: 2, Baths: 1, Sqft: 800})
	assert.Len(t, small.Notes, 2)

	// arvBase 450000+25000 > thresholds for all three conditional notes
	large := a.heuristic(Input{Beds: 3, Baths: 2, Sqft: 3000})
	assert.Len(t, large.Notes, 5)
}

func TestHeuristicDeterministic(t *testing.T) {
	a := New(nil, "", nil)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	in := Input{Beds: 4, Baths: 2.5, Sqft: 1800}
	assert.Equal(t, a.heuristic(in), a.heuristic(in))
}

func TestAnalyzeNilClientUsesHeuristic(t *testing.T) {
	logs := &fakeUsageLog{}
	a := New(nil, "", logs)

	got, err := a.Analyze(context.Background(), "u1", "l1", Input{Beds: 3, Baths: 2, Sqft: 1000})
	require.NoError(t, err)
	assert.Equal(t, heuristicModel, got.Model)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, "u1", logs.entries[0].UserID)
	require.NotNil(t, logs.entries[0].ListingID)
	assert.Equal(t, "l1", *logs.entries[0].ListingID)
	assert.Equal(t, heuristicModel, logs.entries[0].Model)
	assert.Zero(t, logs.entries[0].Tokens)
}

func TestAnalyzeParsesModelResponse(t *testing.T) {
	body := `Here is the analysis:
` + "```json" + `
{"arv":{"low":180000,"high":240000,"median":210000,"confidence":0.82},
"repairs":{"cosmetic":{"low":5000,"high":9000},"structural":{"low":3000,"high":8000},
"systems":{"low":2000,"high":5000},"total":{"low":10000,"high":22000}},
"mao":{"low":120000,"high":160000,"recommended":145000},
"comps":[{"address":"12 Oak St","price":205000,"beds":3,"baths":2,"sqft":1400,"distance":0.4,"sold_date":"2026-01-10"}],
"analysis_notes":["Strong rental demand nearby."],
"confidence_score":0.82}
` + "```"
	client := &fakeClient{resp: textResponse(body, 900, 300)}
	logs := &fakeUsageLog{}
	a := New(client, "claude-sonnet-4-5-20250929", logs)

	got, err := a.Analyze(context.Background(), "u1", "", Input{Address: "9 Birch Ln", Beds: 3, Baths: 2, Sqft: 1400})
	require.NoError(t, err)

	assert.Equal(t, 210000.0, got.ARV.Median)
	assert.Equal(t, 145000.0, got.MAO.Recommended)
	assert.Equal(t, []string{"Strong rental demand nearby."}, got.Notes)
	assert.Equal(t, "claude-sonnet-4-5-20250929", got.Model)

	require.Len(t, logs.entries, 1)
	assert.Nil(t, logs.entries[0].ListingID)
	assert.Equal(t, 1200, logs.entries[0].Tokens)
}

func TestAnalyzePromptIncludesMarketContext(t *testing.T) {
	client := &fakeClient{err: eris.New("unavailable")}
	a := New(client, "", nil)

	market := &model.MarketSnapshot{
		RegionName:          "Austin",
		StateName:           "TX",
		ZHVIMidSFR:          f64(420000),
		PctListingsPriceCut: f64(31.5),
		MedianDaysToClose:   f64(34),
	}
	_, err := a.Analyze(context.Background(), "u1", "", Input{Address: "9 Birch Ln", Beds: 3, Baths: 2, Sqft: 1400, Market: market})
	require.NoError(t, err)

	require.Len(t, client.lastReq.Messages, 1)
	prompt := client.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "9 Birch Ln")
	assert.Contains(t, prompt, "Austin, TX")
	assert.Contains(t, prompt, "$420000")
	assert.Contains(t, prompt, "31.5%")
	assert.Contains(t, prompt, "34 days")
}

func TestAnalyzeFallsBackOnClientError(t *testing.T) {
	client := &fakeClient{err: eris.New("rate limited")}
	logs := &fakeUsageLog{}
	a := New(client, "", logs)

	got, err := a.Analyze(context.Background(), "u1", "l1", Input{Beds: 3, Baths: 2, Sqft: 1000})
	require.NoError(t, err)
	assert.Equal(t, heuristicModel, got.Model)
	assert.Equal(t, 175000.0, got.ARV.Median)
	assert.Equal(t, 1, client.calls)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, heuristicModel, logs.entries[0].Model)
}

func TestAnalyzeFallsBackOnGarbageResponse(t *testing.T) {
	client := &fakeClient{resp: textResponse("I cannot provide structured output today.", 500, 100)}
	a := New(client, "", nil)

	got, err := a.Analyze(context.Background(), "u1", "", Input{Beds: 2, Baths: 1, Sqft: 900})
	require.NoError(t, err)
	assert.Equal(t, heuristicModel, got.Model)
}

func TestAnalyzeLogFailureSurfaces(t *testing.T) {
	logs := &fakeUsageLog{err: eris.New("db down")}
	a := New(nil, "", logs)

	_, err := a.Analyze(context.Background(), "u1", "", Input{Beds: 2, Baths: 1, Sqft: 900})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log usage")
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "bare json", text: `{"arv":{"median":200000}}`},
		{name: "fenced json", text: "```json\n{\"arv\":{\"median\":200000}}\n```"},
		{name: "prose around json", text: "Sure. {\"arv\":{\"median\":200000}} Hope that helps."},
		{name: "no object", text: "no structured data here", wantErr: true},
		{name: "invalid json", text: `{"arv":{"median":`, wantErr: true},
		{name: "missing arv", text: `{"mao":{"recommended":100000}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysis(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 200000.0, got.ARV.Median)
		})
	}
}
