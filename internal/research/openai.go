package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"
)

// OpenAIClient implements ModelInvoker and SearchProvider over the OpenAI
// chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the given API key and model name.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	log.Debug().Str("model", model).Msg("initializing openai client")
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}, nil
}

func (o *OpenAIClient) Name() string { return "openai" }

// Invoke sends one chat completion request and returns the first choice.
func (o *OpenAIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, prompt, nil)
}

// InvokeJSON forces a JSON-object response and unmarshals it into out.
func (o *OpenAIClient) InvokeJSON(ctx context.Context, prompt string, out any) error {
	format := &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	raw, err := o.complete(ctx, prompt, format)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

// Search phrases the query as a research request. The provider has no live
// web index; it relies on the model's knowledge, which is sufficient for the
// engine's contract of one text result per query.
func (o *OpenAIClient) Search(ctx context.Context, query string) (string, error) {
	prompt := fmt.Sprintf("Research the following and report the key facts, figures, and sources you know of.\n\nQuery: %s", query)
	return o.complete(ctx, prompt, nil)
}

func (o *OpenAIClient) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a meticulous research assistant."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if format != nil {
		req.ResponseFormat = format
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai api call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
