package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/soyeahso/supportline/internal/connector"
)

// Responder produces automatic agent replies to visitor messages.
type Responder interface {
	Reply(ctx context.Context, sessionID string, msg connector.OutgoingMessage) []string
}

// Greeter answers the first message of each session with a greeting and
// stays quiet afterwards, leaving the conversation to a human operator.
type Greeter struct {
	AgentName string

	mu      sync.Mutex
	greeted map[string]bool
}

func (g *Greeter) Reply(_ context.Context, sessionID string, msg connector.OutgoingMessage) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.greeted == nil {
		g.greeted = make(map[string]bool)
	}
	if g.greeted[sessionID] {
		return nil
	}
	g.greeted[sessionID] = true

	name := strings.TrimSpace(msg.User)
	if name == "" {
		name = "there"
	}
	return []string{fmt.Sprintf("Hi %s, this is %s. Thanks for your message, we will reply here shortly.", name, g.agent())}
}

// Forget drops per-session state once a session ends.
func (g *Greeter) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.greeted, sessionID)
}

func (g *Greeter) agent() string {
	if g.AgentName == "" {
		return "Support"
	}
	return g.AgentName
}
