package session

import (
	"context"
	"log/slog"

	"telecoder/pkg/opencode"
)

// AgentLister is the narrow slice of the assistant-server client the cycling
// operation needs.
type AgentLister interface {
	Agents(ctx context.Context) ([]opencode.Agent, error)
}

// CycleAgent advances the user's session to the next available agent mode,
// wrapping to the first after the last. A current mode that no longer exists
// server-side counts as the position before index 0, so the first listed
// agent is selected. Fails softly: the second return is false when there is
// no session or no agents, and this never propagates an error.
func (r *Registry) CycleAgent(ctx context.Context, userID int64, lister AgentLister) (string, bool) {
	s, err := r.Get(userID)
	if err != nil {
		return "", false
	}

	agents, err := lister.Agents(ctx)
	if err != nil {
		slog.Error("Failed to list agents", "error", err)
		return "", false
	}
	if len(agents) == 0 {
		slog.Error("No agents available to cycle through")
		return "", false
	}

	currentIndex := -1
	for i, a := range agents {
		if a.Name == s.Agent {
			currentIndex = i
			break
		}
	}

	next := agents[(currentIndex+1)%len(agents)].Name
	r.SetAgent(userID, next)

	slog.Info("Cycled agent", "user", userID, "from", s.Agent, "to", next)
	return next, true
}
