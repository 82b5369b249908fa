package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/raine/cheapeats-bot/internal/eats"
	"github.com/raine/cheapeats-bot/internal/observability"
)

const DefaultModel = "gemini-2.5-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30
	geminiOutputPricePerMillion = 2.50
)

const (
	opSearch       = "search"
	opExtractPrice = "extract_price"
)

const searchPrompt = `You are an expert food finding assistant. %s, find restaurants with a rating of at least %s stars that serve '%s' within a %skm radius. For each restaurant, provide the following details: the restaurant's name, the lowest price for '%s' found on their menu or in menu photos (the price must be null if it is unknown), the distance from the specified location in kilometers, the estimated travel time by walking or driving, and whether the restaurant is currently open. Sort the results primarily by price (cheapest first). If prices are the same or unknown, sort by distance (closest first). Finally, provide a concise one-sentence summary mentioning the cheapest option available and its travel time.

Your response must be a single valid JSON object with two keys: "restaurants" (an array of objects with the keys "name", "price", "distance", "travelTime" and "isOpen") and "summary" (a string).

Example response:
{"restaurants": [{"name": "Nasi Kandar Pelita", "price": "RM 7.50", "distance": 0.8, "travelTime": "10 min walk", "isOpen": true}], "summary": "Nasi Kandar Pelita is the cheapest at RM 7.50, a 10 minute walk away."}

Do not add any text or formatting outside of the JSON object.`

const pricePrompt = `From the provided menu image, find the price for the dish "%s". Respond with only the price as a string (e.g., "$15.99", "£12.50", "MYR 18.00"). If the dish or its price cannot be found, respond with "Not Found". Do not include any other text or explanation.`

// contentGenerator is the part of the genai client we use. *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// SearchOptions tunes the search prompt.
type SearchOptions struct {
	Model     string
	MinRating float64
	RadiusKm  float64
}

// Gemini implements search and menu price extraction on the Gemini API.
type Gemini struct {
	models  contentGenerator
	opts    SearchOptions
	metrics *observability.Metrics
}

// NewGemini creates a Gemini provider.
// It uses the GEMINI_API_KEY environment variable for authentication.
func NewGemini(ctx context.Context, opts SearchOptions, metrics *observability.Metrics) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGemini(client.Models, opts, metrics), nil
}

func newGemini(models contentGenerator, opts SearchOptions, metrics *observability.Metrics) *Gemini {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MinRating <= 0 {
		opts.MinRating = 4.3
	}
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = 3
	}
	return &Gemini{models: models, opts: opts, metrics: metrics}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// buildSearchPrompt returns the prompt and request config for a search.
// Coordinates are sent as retrieval lat/lng for the Maps grounding tool.
func (g *Gemini) buildSearchPrompt(dish string, location eats.LocationQuery) (string, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
	}

	locationPrompt := "Based on my current location"
	if location.IsCoordinates() {
		config.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(location.Coords.Latitude),
					Longitude: genai.Ptr(location.Coords.Longitude),
				},
			},
		}
	} else {
		locationPrompt = fmt.Sprintf("Based on the location %q", location.Text)
	}

	prompt := fmt.Sprintf(searchPrompt,
		locationPrompt,
		formatNumber(g.opts.MinRating),
		dish,
		formatNumber(g.opts.RadiusKm),
		dish,
	)
	return prompt, config
}

// Search asks the model for cheap restaurants serving dish near location.
// Every failure is returned as *eats.ProviderError.
func (g *Gemini) Search(ctx context.Context, dish string, location eats.LocationQuery) (*eats.ResultSet, error) {
	prompt, config := g.buildSearchPrompt(dish, location)

	result, err := g.generate(ctx, opSearch, []*genai.Part{genai.NewPartFromText(prompt)}, config)
	if err != nil {
		return nil, &eats.ProviderError{Op: opSearch, Message: fmt.Sprintf(eats.MsgSearchFailed, err.Error()), Err: err}
	}

	rs, err := ParseSearchResponse(result.Text())
	if err != nil {
		g.countOutcome(opSearch, "error")
		var perr *eats.ProviderError
		if errors.As(err, &perr) {
			perr.Message = fmt.Sprintf(eats.MsgSearchFailed, perr.Message)
		}
		return nil, err
	}

	log.Info().
		Str("dish", dish).
		Str("location", location.String()).
		Int("results", len(rs.Entries)).
		Msg("search llm call parsed")

	return rs, nil
}

// ExtractPrice reads the price of dish from a menu photo.
// A nil price with a nil error means the model reported "Not Found" or nothing at all.
func (g *Gemini) ExtractPrice(ctx context.Context, dish string, image []byte, mimeType string) (*string, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("no image provided")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(image, mimeType),
		genai.NewPartFromText(fmt.Sprintf(pricePrompt, dish)),
	}

	result, err := g.generate(ctx, opExtractPrice, parts, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze menu image: %w", err)
	}

	// An empty reply is treated like "Not Found".
	price := ParsePriceResponse(result.Text())
	log.Info().
		Str("dish", dish).
		Int("imageBytes", len(image)).
		Bool("found", price != nil).
		Msg("menu price llm call parsed")

	return price, nil
}

// generate executes one model call, recording duration, usage and cost.
func (g *Gemini) generate(ctx context.Context, op string, parts []*genai.Part, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	start := time.Now()
	result, err := g.models.GenerateContent(ctx, g.opts.Model, contents, config)
	if g.metrics != nil {
		g.metrics.ProviderDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		g.countOutcome(op, "error")
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}

	if g.metrics != nil {
		g.metrics.ProviderCostUSD.WithLabelValues(op).Add(usage.CostUSD)
	}
	g.countOutcome(op, "success")

	log.Info().
		Str("model", g.opts.Model).
		Str("op", op).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Dur("took", time.Since(start)).
		Msg("llm call")

	return result, nil
}

// countOutcome records a request outcome. A call that succeeded at the API
// level but failed parsing is counted once as success and once as error.
func (g *Gemini) countOutcome(op, outcome string) {
	if g.metrics == nil {
		return
	}
	g.metrics.ProviderRequests.WithLabelValues(op, outcome).Inc()
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}

// trimFences strips a surrounding markdown code fence with an optional
// language tag.
func trimFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl != -1 && !strings.ContainsAny(text[:nl], " {\"") {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
