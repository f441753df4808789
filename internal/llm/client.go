// Package llm is the boundary to the text-generation model.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior chat turn.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request is a single generation call.
type Request struct {
	Prompt          string
	System          string
	History         []Message
	MaxOutputTokens int32
}

// Client generates text for a prompt. Implementations do not retry.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// StripCodeFences removes a surrounding ``` or ```lang fence the model may
// have wrapped its answer in.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	idx := strings.Index(s, "\n")
	if idx == -1 {
		return s
	}
	s = strings.TrimSpace(s[idx+1:])
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
