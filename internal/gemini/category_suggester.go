package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"gitlab.com/yelinaung/moniclear/internal/logger"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

const (
	// MaxDescriptionLength caps the description embedded in a prompt.
	MaxDescriptionLength = 200
	// MinConfidence is the lowest confidence CategoryFor accepts.
	MinConfidence = 0.5

	suggestTimeout     = 10 * time.Second
	maxReasoningLength = 500
)

// CategorySuggestion is a suggested category for an expense description.
type CategorySuggestion struct {
	Category   models.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// SuggestCategory asks Gemini which expense category fits description.
func (c *Client) SuggestCategory(ctx context.Context, description string) (*CategorySuggestion, error) {
	if c == nil || c.generator == nil {
		return nil, ErrNotConfigured
	}
	description = SanitizeForPrompt(description, MaxDescriptionLength)
	if description == "" {
		return nil, fmt.Errorf("description is required")
	}

	names := models.CategoryNames()
	log := logger.Log.With().Str("description", logger.SanitizeDescription(description)).Logger()

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildPrompt(description, names)}},
	}}
	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(300),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: "You are a JSON API. Respond with a single JSON object and nothing else."}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category": {
					Type:        genai.TypeString,
					Enum:        names,
					Description: "The expense category",
				},
				"confidence": {
					Type:        genai.TypeNumber,
					Description: "Confidence between 0 and 1",
				},
				"reasoning": {
					Type:        genai.TypeString,
					Description: "One short sentence",
				},
			},
			Required: []string{"category", "confidence", "reasoning"},
		},
	}

	resp, err := c.generator.GenerateContent(ctx, ModelName, contents, config)
	if err != nil {
		log.Error().Err(err).Msg("Gemini category request failed")
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("no response from Gemini")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("no text content in response")
	}
	jsonText := extractJSON(text)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var raw struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	category, err := models.ParseCategory(raw.Category)
	if err != nil {
		log.Warn().Str("suggested_category", SanitizeForPrompt(raw.Category, 40)).Msg("Gemini suggested an unknown category")
		return nil, fmt.Errorf("suggested category %q not in available categories", raw.Category)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, fmt.Errorf("confidence out of range: %f", raw.Confidence)
	}

	suggestion := &CategorySuggestion{
		Category:   category,
		Confidence: raw.Confidence,
		Reasoning:  SanitizeForPrompt(raw.Reasoning, maxReasoningLength),
	}
	log.Debug().
		Str("category", string(suggestion.Category)).
		Float64("confidence", suggestion.Confidence).
		Msg("Gemini suggested category")
	return suggestion, nil
}

// CategoryFor returns the suggested category, or Other when the client is
// missing, the request fails or the confidence is below MinConfidence.
func (c *Client) CategoryFor(ctx context.Context, description string) models.Category {
	s, err := c.SuggestCategory(ctx, description)
	if err != nil || s.Confidence < MinConfidence {
		return models.CategoryOther
	}
	return s.Category
}

func buildPrompt(description string, categories []string) string {
	return fmt.Sprintf(`Categorize this personal expense: "%s"

Categories:
- %s

Rules:
- Choose exactly one category from the list
- "Food" covers groceries, restaurants and coffee
- "Transport" covers taxi, fuel, bus, train and parking
- "Utilities" covers electricity, water, internet and phone plans
- Use "Other" when nothing fits
- Confidence 0.8-1.0 for obvious matches, 0.5-0.7 for ambiguous ones

Return JSON only:
{"category": "exact category name", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`,
		description, strings.Join(categories, "\n- "))
}

// extractJSON returns the outermost {...} span of text. Models sometimes wrap
// JSON in prose or code fences even in JSON mode.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// SanitizeForPrompt strips quotes, control bytes and extra whitespace from
// input and truncates it to maxLength bytes.
func SanitizeForPrompt(input string, maxLength int) string {
	input = strings.ReplaceAll(input, `"`, `'`)
	input = strings.ReplaceAll(input, "`", "'")
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.Join(strings.Fields(input), " ")
	if len(input) > maxLength {
		input = strings.TrimSpace(input[:maxLength])
	}
	return input
}
