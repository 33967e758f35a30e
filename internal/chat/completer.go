package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"formdwatch/internal/session"
)

// Completer turns a conversation into the next assistant reply.
type Completer interface {
	Complete(ctx context.Context, apiKey string, history []session.Message) (string, error)
}

// OpenAICompleter calls an OpenAI-compatible chat completion endpoint. A new
// client is built per call because the key belongs to the visitor.
type OpenAICompleter struct {
	baseURL      string
	model        string
	systemPrompt string
	timeout      time.Duration
}

// NewOpenAICompleter creates a completer. An empty baseURL uses the SDK default.
func NewOpenAICompleter(baseURL, model, systemPrompt string, timeout time.Duration) *OpenAICompleter {
	return &OpenAICompleter{
		baseURL:      baseURL,
		model:        model,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

// Complete sends the system prompt, if any, followed by the whole history.
func (o *OpenAICompleter) Complete(ctx context.Context, apiKey string, history []session.Message) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}

	if o.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.timeout))
	}

	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: BuildMessages(o.systemPrompt, history),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	return resp.Choices[0].Message.Content, nil
}

// BuildMessages converts history to request messages, prefixed by systemPrompt
// when it is set.
func BuildMessages(systemPrompt string, history []session.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)

	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}

	for _, m := range history {
		switch m.Role {
		case session.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}

	return out
}
