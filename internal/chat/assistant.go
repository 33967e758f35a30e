// Package chat passes a visitor's conversation through to a chat completion API.
package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"formdwatch/internal/logger"
	"formdwatch/internal/metrics"
	"formdwatch/internal/session"
)

// Chat errors.
var (
	ErrMissingAPIKey = errors.New("an API key is required")
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrEmptyReply    = errors.New("chat completion returned no choices")
)

// Metric result labels.
const (
	resultOK           = "ok"
	resultMissingKey   = "missing_key"
	resultUnauthorized = "unauthorized"
	resultTimeout      = "timeout"
	resultError        = "error"
)

// Assistant keeps a session's transcript in step with the completion API.
type Assistant struct {
	completer  Completer
	logger     *logger.Logger
	maxHistory int
}

// NewAssistant creates an assistant. maxHistory below 2 disables the cap.
func NewAssistant(completer Completer, maxHistory int, log *logger.Logger) *Assistant {
	if log == nil {
		log = logger.Discard()
	}

	return &Assistant{
		completer:  completer,
		maxHistory: maxHistory,
		logger:     log.With("component", "chat"),
	}
}

// Send forwards prompt with the session's history and records the exchange.
// The transcript only changes on success, so a failed call leaves it exactly
// as it was. The session lock is not held during the network call.
func (a *Assistant) Send(ctx context.Context, st *session.State, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	snapshot := st.Chat()
	if snapshot.APIKey == "" {
		metrics.ObserveChat(resultMissingKey)

		return "", ErrMissingAPIKey
	}

	pending := session.Message{Role: session.RoleUser, Content: prompt}
	history := a.capHistory(append(snapshot.History, pending))

	start := time.Now()

	reply, err := a.completer.Complete(ctx, snapshot.APIKey, history)
	if err != nil {
		result := classify(err)
		metrics.ObserveChat(result)
		a.logger.Warn("chat completion failed", "session", st.ID(), "result", result, "error", err)

		return "", err
	}

	metrics.ObserveChat(resultOK)
	a.logger.Debug("chat completion", "session", st.ID(), "duration", time.Since(start), "history", len(history))

	st.UpdateChat(func(c *session.ChatState) {
		c.History = a.capHistory(append(c.History, pending, session.Message{Role: session.RoleAssistant, Content: reply}))
		c.Error = ""
	})

	return reply, nil
}

// Reset clears the transcript but keeps the key.
func (a *Assistant) Reset(st *session.State) {
	st.UpdateChat(func(c *session.ChatState) {
		c.History = nil
		c.Error = ""
	})
}

// capHistory keeps the newest maxHistory messages. When trimming, it drops a
// leading assistant message so the transcript still opens with the user.
func (a *Assistant) capHistory(history []session.Message) []session.Message {
	if a.maxHistory < 2 || len(history) <= a.maxHistory {
		return history
	}

	trimmed := history[len(history)-a.maxHistory:]
	if trimmed[0].Role == session.RoleAssistant {
		trimmed = trimmed[1:]
	}

	return append([]session.Message(nil), trimmed...)
}

// UserMessage maps a chat error to text safe to show a visitor.
func UserMessage(err error) string {
	switch classify(err) {
	case resultMissingKey:
		return "Enter an API key to use the assistant."
	case resultUnauthorized:
		return "The API key was rejected. Check it and try again."
	case resultTimeout:
		return "The assistant took too long to respond. Please try again."
	}

	if errors.Is(err, ErrEmptyPrompt) {
		return "Type a message first."
	}

	return "The assistant is unavailable right now. Please try again."
}

func classify(err error) string {
	if errors.Is(err, ErrMissingAPIKey) {
		return resultMissingKey
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return resultTimeout
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return resultUnauthorized
	}

	return resultError
}
