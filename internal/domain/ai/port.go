package ai

import "context"

// Role of a message in a model exchange.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one single-shot generation call.
type Request struct {
	Model       string
	Temperature float32
	Messages    []Message
	// JSONOutput asks the provider to answer with a JSON document.
	JSONOutput bool
}

// Client is a remote text-generation service. Generate blocks until the
// provider answers and returns the raw response text.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
