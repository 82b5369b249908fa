package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/raine/cheapeats-bot/internal/eats"
	"github.com/raine/cheapeats-bot/internal/observability"
)

type fakeGenerator struct {
	response *genai.GenerateContentResponse
	err      error

	calls    int
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.contents = contents
	f.config = config
	return f.response, f.err
}

func (f *fakeGenerator) prompt() string {
	var texts []string
	for _, c := range f.contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
	}
	return strings.Join(texts, "\n")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     1000,
			CandidatesTokenCount: 200,
			TotalTokenCount:      1200,
		},
	}
}

const searchJSON = `{"restaurants": [
	{"name": "Warung A", "price": "RM 9.00", "distance": 1.2, "travelTime": "15 min walk", "isOpen": true},
	{"name": "Kedai B", "price": null, "distance": 0.4, "travelTime": "5 min walk", "isOpen": false}
], "summary": "Warung A is the cheapest."}`

func TestSearch_WithCoordinates(t *testing.T) {
	gen := &fakeGenerator{response: textResponse(searchJSON)}
	metrics := observability.NewMetricsForTesting()
	g := newGemini(gen, SearchOptions{}, metrics)

	loc := eats.LocationQuery{Coords: &eats.Coordinates{Latitude: 3.139, Longitude: 101.6869}}
	rs, err := g.Search(context.Background(), "nasi lemak", loc)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, gen.model)
	require.Len(t, gen.config.Tools, 1)
	assert.NotNil(t, gen.config.Tools[0].GoogleMaps)
	require.NotNil(t, gen.config.ToolConfig)
	latLng := gen.config.ToolConfig.RetrievalConfig.LatLng
	assert.Equal(t, 3.139, *latLng.Latitude)
	assert.Equal(t, 101.6869, *latLng.Longitude)
	assert.Contains(t, gen.prompt(), "Based on my current location")
	assert.Contains(t, gen.prompt(), "at least 4.3 stars that serve 'nasi lemak' within a 3km radius")

	require.Len(t, rs.Entries, 2)
	assert.Equal(t, "Warung A", rs.Entries[0].Name)
	assert.Equal(t, "RM 9.00", *rs.Entries[0].Price)
	assert.Nil(t, rs.Entries[1].Price)
	assert.Equal(t, 0.4, rs.Entries[1].DistanceKm)
	assert.False(t, rs.Entries[1].IsOpen)
	assert.Equal(t, "Warung A is the cheapest.", rs.Summary)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues(opSearch, "success")))
	assert.InDelta(t, 0.0008, testutil.ToFloat64(metrics.ProviderCostUSD.WithLabelValues(opSearch)), 1e-9)
}

func TestSearch_WithText(t *testing.T) {
	gen := &fakeGenerator{response: textResponse(searchJSON)}
	g := newGemini(gen, SearchOptions{Model: "gemini-test", MinRating: 4.5, RadiusKm: 2.5}, nil)

	_, err := g.Search(context.Background(), "laksa", eats.LocationQuery{Text: "Penang"})
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", gen.model)
	assert.Nil(t, gen.config.ToolConfig)
	assert.Contains(t, gen.prompt(), `Based on the location "Penang"`)
	assert.Contains(t, gen.prompt(), "at least 4.5 stars")
	assert.Contains(t, gen.prompt(), "within a 2.5km radius")
}

func TestSearch_APIError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	metrics := observability.NewMetricsForTesting()
	g := newGemini(gen, SearchOptions{}, metrics)

	rs, err := g.Search(context.Background(), "laksa", eats.LocationQuery{Text: "Penang"})
	assert.Nil(t, rs)

	var perr *eats.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, strings.HasPrefix(perr.Message, "Failed to fetch restaurant data: "))
	assert.Contains(t, perr.Message, "quota exceeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues(opSearch, "error")))
}

func TestSearch_EmptyResponse(t *testing.T) {
	gen := &fakeGenerator{response: &genai.GenerateContentResponse{}}
	g := newGemini(gen, SearchOptions{}, nil)

	_, err := g.Search(context.Background(), "laksa", eats.LocationQuery{Text: "Penang"})

	var perr *eats.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Failed to fetch restaurant data: "+eats.MsgEmptyResponse, perr.Message)
}

func TestSearch_UnexpectedFormat(t *testing.T) {
	gen := &fakeGenerator{response: textResponse("Sorry, I cannot help with that.")}
	g := newGemini(gen, SearchOptions{}, nil)

	_, err := g.Search(context.Background(), "laksa", eats.LocationQuery{Text: "Penang"})

	var perr *eats.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Failed to fetch restaurant data: "+eats.MsgUnexpectedFormat, perr.Message)
}

func TestExtractPrice(t *testing.T) {
	gen := &fakeGenerator{response: textResponse(`"$12.50"`)}
	g := newGemini(gen, SearchOptions{}, nil)
	image := []byte{0xff, 0xd8, 0xff}

	price, err := g.ExtractPrice(context.Background(), "Pad Thai", image, "image/png")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, "$12.50", *price)

	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, image, parts[0].InlineData.Data)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Contains(t, parts[1].Text, `find the price for the dish "Pad Thai"`)
	assert.Nil(t, gen.config)
}

func TestExtractPrice_NotFound(t *testing.T) {
	gen := &fakeGenerator{response: textResponse("Not Found")}
	g := newGemini(gen, SearchOptions{}, nil)

	price, err := g.ExtractPrice(context.Background(), "Pad Thai", []byte{1}, "")
	require.NoError(t, err)
	assert.Nil(t, price)
	assert.Equal(t, "image/jpeg", gen.contents[0].Parts[0].InlineData.MIMEType)
}

func TestExtractPrice_EmptyReplyMeansNoPrice(t *testing.T) {
	for _, reply := range []string{"", "  \n"} {
		g := newGemini(&fakeGenerator{response: textResponse(reply)}, SearchOptions{}, nil)
		price, err := g.ExtractPrice(context.Background(), "Pad Thai", []byte{1}, "image/jpeg")
		require.NoError(t, err)
		assert.Nil(t, price)
	}
}

func TestExtractPrice_Errors(t *testing.T) {
	g := newGemini(&fakeGenerator{}, SearchOptions{}, nil)
	_, err := g.ExtractPrice(context.Background(), "Pad Thai", nil, "image/jpeg")
	assert.Error(t, err)

	g = newGemini(&fakeGenerator{err: errors.New("boom")}, SearchOptions{}, nil)
	_, err = g.ExtractPrice(context.Background(), "Pad Thai", []byte{1}, "image/jpeg")
	assert.ErrorContains(t, err, "boom")
}

func TestCalculateGeminiCost(t *testing.T) {
	cost := calculateGeminiCost(1_000_000, 1_000_000, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	assert.InDelta(t, 2.80, cost, 1e-9)
	assert.Equal(t, 0.0, calculateGeminiCost(0, 0, 1, 1))
}
