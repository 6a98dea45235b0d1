// Package pricing holds the static per-1K-token price table and the
// prompt-length model suggestion heuristic.
package pricing

import "strings"

// Price is the USD cost per 1K input/output tokens.
type Price struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Fallback is returned for any provider/model pair not in the table.
var Fallback = Price{Input: 0.001, Output: 0.002}

// table is read-only after initialization. Keys are lowercase.
var table = map[string]map[string]Price{
	"openai": {
		"gpt-4o":           {Input: 0.005, Output: 0.015},
		"gpt-4o-mini":      {Input: 0.15, Output: 0.60},
		"gpt-4":            {Input: 0.03, Output: 0.06},
		"gpt-4-turbo":      {Input: 0.01, Output: 0.03},
		"gpt-4-32k":        {Input: 0.06, Output: 0.12},
		"gpt-4.5":          {Input: 0.075, Output: 0.15},
		"gpt-3.5-turbo":    {Input: 0.0005, Output: 0.0015},
		"text-davinci-003": {Input: 0.02, Output: 0.02},
	},
	"anthropic": {
		"claude-3-opus":   {Input: 0.015, Output: 0.075},
		"claude-3-sonnet": {Input: 0.003, Output: 0.015},
		"claude-3-haiku":  {Input: 0.00025, Output: 0.00125},
		"claude-2":        {Input: 0.008, Output: 0.024},
	},
	"mistral": {
		"mistral-small":     {Input: 0.20, Output: 0.60},
		"mistral-medium":    {Input: 2.70, Output: 8.10},
		"mistral-large":     {Input: 4.00, Output: 12.00},
		"open-mistral-7b":   {Input: 0.25, Output: 0.25},
		"open-mixtral-8x7b": {Input: 0.70, Output: 0.70},
		"mistral-3.1-small": {Input: 0.10, Output: 0.30},
	},
	"cohere": {
		"command-r":  {Input: 0.0005, Output: 0.0015},
		"command-r+": {Input: 0.002, Output: 0.006},
	},
	"gemini": {
		"gemini-1.0-pro":   {Input: 0.000125, Output: 0.000375},
		"gemini-1.5-pro":   {Input: 0.000125, Output: 0.000375},
		"gemini-1.5-flash": {Input: 0.0000625, Output: 0.000125},
	},
}

// Get returns the price for a provider/model pair. Lookup is case-insensitive
// and never fails; unknown pairs get the fallback price.
func Get(provider, model string) Price {
	models, ok := table[strings.ToLower(provider)]
	if !ok {
		return Fallback
	}

	price, ok := models[strings.ToLower(model)]
	if !ok {
		return Fallback
	}

	return price
}

// Cost computes the USD cost of a call.
func Cost(provider, model string, inputTokens, outputTokens int) float64 {
	price := Get(provider, model)
	return float64(inputTokens)/1000.0*price.Input + float64(outputTokens)/1000.0*price.Output
}

// Suggestion is a recommended provider/model pair for a prompt.
type Suggestion struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Reason   string `json:"reason"`
	Pricing  Price  `json:"pricing"`
}

// Word-count tier boundaries.
const (
	shortPromptWords = 50
	midPromptWords   = 200
)

// SuggestModel picks a model tier from the prompt's word count: short prompts
// get the cheapest tier, moderate prompts the mid tier, long prompts the high
// tier.
func SuggestModel(prompt string) Suggestion {
	var model, tier string

	switch length := len(strings.Fields(prompt)); {
	case length <= shortPromptWords:
		model = "gpt-3.5-turbo"
		tier = "cheapest (suitable for short/simple prompts)"
	case length <= midPromptWords:
		model = "gpt-4-turbo"
		tier = "mid-tier (for moderate prompts)"
	default:
		model = "gpt-4o"
		tier = "high-tier (for long/complex prompts)"
	}

	return Suggestion{
		Provider: "openai",
		Model:    model,
		Reason:   tier,
		Pricing:  Get("openai", model),
	}
}
