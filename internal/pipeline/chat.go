package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/prompts"
)

// Chat answers questions about a set of GL entries, keeping the conversation history.
type Chat struct {
	client  llm.Client
	system  string
	timeout time.Duration
	history []llm.Message
}

// NewChat builds a chat over entries. maxRows <= 0 uses prompts.DefaultGLContextRows.
func NewChat(client llm.Client, entries []domain.GLEntry, maxRows int, timeout time.Duration) *Chat {
	return &Chat{
		client:  client,
		system:  prompts.ChatSystem(prompts.FormatGLContext(entries, maxRows)),
		timeout: timeout,
	}
}

// WithHistory replaces the conversation so far.
func (c *Chat) WithHistory(history []llm.Message) *Chat {
	c.history = append([]llm.Message(nil), history...)
	return c
}

// Ask sends question with the prior turns and records both sides on success.
func (c *Chat) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("Ask: empty question")
	}
	answer, err := generate(ctx, c.client, c.timeout, llm.Request{
		Prompt:          question,
		System:          c.system,
		History:         c.history,
		MaxOutputTokens: prompts.AccountMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("Ask: %w", err)
	}
	c.history = append(c.history,
		llm.Message{Role: llm.RoleUser, Text: question},
		llm.Message{Role: llm.RoleAssistant, Text: answer},
	)
	return answer, nil
}

// History returns a copy of the conversation.
func (c *Chat) History() []llm.Message {
	return append([]llm.Message(nil), c.history...)
}

// Transcript renders the conversation as plain text.
func (c *Chat) Transcript() string {
	var b strings.Builder
	for i, m := range c.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := "User"
		if m.Role == llm.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s", label, m.Text)
	}
	return b.String()
}
