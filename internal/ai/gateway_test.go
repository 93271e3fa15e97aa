package ai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type fakeChatClient struct {
	content string
	err     error
	gotReq  openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestImproveDescriptionReturnsTrimmedText(t *testing.T) {
	client := &fakeChatClient{content: "  A polished bakery ordering site.  \n"}
	gateway := NewGatewayWithClient(client, "gemini-2.5-flash")

	improved, err := gateway.ImproveDescription(context.Background(), "website for my bakery")
	if err != nil {
		t.Fatalf("improve description: %v", err)
	}
	if improved != "A polished bakery ordering site." {
		t.Fatalf("unexpected result: %q", improved)
	}
	if client.gotReq.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected model: %q", client.gotReq.Model)
	}
}

func TestImproveDescriptionUpstreamFailure(t *testing.T) {
	client := &fakeChatClient{err: errors.New("upstream 500")}
	gateway := NewGatewayWithClient(client, "gemini-2.5-flash")

	_, err := gateway.ImproveDescription(context.Background(), "website for my bakery")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestImproveDescriptionEmptyCompletion(t *testing.T) {
	client := &fakeChatClient{content: "   "}
	gateway := NewGatewayWithClient(client, "gemini-2.5-flash")

	_, err := gateway.ImproveDescription(context.Background(), "website for my bakery")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestSuggestFeaturesParsesValidResponse(t *testing.T) {
	client := &fakeChatClient{content: `{
		"uniqueSellingProposition": "Same-day delivery within Lagos",
		"coreFeatures": ["Menu catalog", "Online ordering", "Payment checkout"],
		"growthFeatures": ["Loyalty points", "Referral codes"]
	}`}
	gateway := NewGatewayWithClient(client, "gemini-2.5-flash")

	suggestion, err := gateway.SuggestFeatures(context.Background(), "bakery ordering site")
	if err != nil {
		t.Fatalf("suggest features: %v", err)
	}
	if suggestion.UniqueSellingProposition == "" {
		t.Fatal("expected USP")
	}
	if len(suggestion.CoreFeatures) != 3 || len(suggestion.GrowthFeatures) != 2 {
		t.Fatalf("unexpected feature counts: %+v", suggestion)
	}
	if client.gotReq.ResponseFormat == nil || client.gotReq.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatal("expected JSON response format request")
	}
}

func TestSuggestFeaturesRejectsMalformedResponse(t *testing.T) {
	cases := map[string]string{
		"not json":      "here are some ideas: ...",
		"missing usp":   `{"coreFeatures":["a"],"growthFeatures":["b"]}`,
		"empty core":    `{"uniqueSellingProposition":"x","coreFeatures":[],"growthFeatures":["b"]}`,
		"blank feature": `{"uniqueSellingProposition":"x","coreFeatures":[" "],"growthFeatures":["b"]}`,
	}
	for name, content := range cases {
		gateway := NewGatewayWithClient(&fakeChatClient{content: content}, "gemini-2.5-flash")
		if _, err := gateway.SuggestFeatures(context.Background(), "desc"); !errors.Is(err, ErrGeneration) {
			t.Fatalf("%s: expected ErrGeneration, got %v", name, err)
		}
	}
}
