// Package extraction adapts a chat model to the workflow's extraction,
// critic and semantic-check collaborators. Each adapter composes a prompt,
// sends it through a Completer and parses the JSON response.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

var (
	ErrUnknownTask   = errors.New("unknown prompt task")
	ErrEmptyResponse = errors.New("empty model response")
)

// Completer sends a prompt to a chat model and returns its text response.
type Completer func(ctx context.Context, prompt string) (string, error)

// AgentCompleter returns a Completer backed by a go-agents agent. An agent
// is created per call so concurrent documents do not share conversation state.
func AgentCompleter(cfg gaconfig.AgentConfig) Completer {
	return func(ctx context.Context, prompt string) (string, error) {
		a, err := agent.New(&cfg)
		if err != nil {
			return "", fmt.Errorf("create agent: %w", err)
		}

		resp, err := a.Chat(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("chat call: %w", err)
		}

		content := resp.Content()
		if content == "" {
			return "", ErrEmptyResponse
		}
		return content, nil
	}
}
