// Package ai calls the hosted text-generation model that enriches project
// descriptions. The upstream is Gemini spoken to through its OpenAI-compatible
// endpoint; output is never trusted blindly, generative responses are
// validated before they reach the caller.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrGeneration marks every upstream failure: transport errors, empty
// completions, and malformed structured output. Callers treat it as
// retryable and keep the user's original text.
var ErrGeneration = errors.New("generation failed")

type FeatureSuggestion struct {
	UniqueSellingProposition string   `json:"uniqueSellingProposition"`
	CoreFeatures             []string `json:"coreFeatures"`
	GrowthFeatures           []string `json:"growthFeatures"`
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Gateway struct {
	client     chatClient
	model      string
	configured bool
}

func NewGateway(apiKey, baseURL, model string) *Gateway {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Gateway{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		configured: strings.TrimSpace(apiKey) != "",
	}
}

// NewGatewayWithClient creates a gateway from an existing client
func NewGatewayWithClient(client chatClient, model string) *Gateway {
	return &Gateway{client: client, model: model, configured: true}
}

func (g *Gateway) Configured() bool {
	return g.configured
}

const improvePrompt = `You are a professional business analyst and copywriter. A user has submitted a project idea. Your task is to rewrite their description to be clearer, more professional, and well-structured. Do not add new ideas; only enhance the existing description. Respond only with the rewritten text, without any introductory phrases like "Here is the rewritten description:".`

// ImproveDescription rewrites a project description for clarity. The
// original text is never modified here; on any failure the caller keeps it.
func (g *Gateway) ImproveDescription(ctx context.Context, description string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: improvePrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("User's description: %q", description)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrGeneration)
	}
	improved := strings.TrimSpace(resp.Choices[0].Message.Content)
	if improved == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGeneration)
	}
	return improved, nil
}

const suggestPrompt = `You are an expert Product Manager specializing in Nigerian startups. A user provides a project description. Based on this description, generate feature suggestions as a JSON object with exactly these keys:
- "uniqueSellingProposition": a single creative killer feature or unique market angle that would make this project stand out in the Nigerian market.
- "coreFeatures": a list of 3-5 absolutely essential features needed for the Minimum Viable Product.
- "growthFeatures": a list of 2-3 features that could be added later to help with user acquisition and retention.
Respond with the JSON object only.`

// SuggestFeatures derives structured feature suggestions from a description.
// The response schema is validated; a malformed completion is a generation
// error, never silently coerced.
func (g *Gateway) SuggestFeatures(ctx context.Context, description string) (FeatureSuggestion, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: suggestPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Project description: " + description},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return FeatureSuggestion{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return FeatureSuggestion{}, fmt.Errorf("%w: empty completion", ErrGeneration)
	}

	var suggestion FeatureSuggestion
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &suggestion); err != nil {
		return FeatureSuggestion{}, fmt.Errorf("%w: malformed response: %v", ErrGeneration, err)
	}
	if err := validateSuggestion(suggestion); err != nil {
		return FeatureSuggestion{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return suggestion, nil
}

func validateSuggestion(s FeatureSuggestion) error {
	if strings.TrimSpace(s.UniqueSellingProposition) == "" {
		return errors.New("missing uniqueSellingProposition")
	}
	if len(s.CoreFeatures) == 0 {
		return errors.New("missing coreFeatures")
	}
	if len(s.GrowthFeatures) == 0 {
		return errors.New("missing growthFeatures")
	}
	for _, feature := range append(append([]string{}, s.CoreFeatures...), s.GrowthFeatures...) {
		if strings.TrimSpace(feature) == "" {
			return errors.New("blank feature entry")
		}
	}
	return nil
}
