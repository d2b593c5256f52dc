package bot

import (
	"fmt"
	"sync"

	"telecoder/pkg/markup"
)

// Notifier delivers the admin alert for an unauthorized attempt. The bot
// satisfies it; tests substitute a recorder.
type Notifier interface {
	NotifyAdmin(html string)
}

// Gate enforces the user allow-list. Unauthorized users get no reply and no
// session; every denied attempt alerts the admin so repeated probing stays
// visible.
type Gate struct {
	mu       sync.Mutex
	allowed  map[int64]bool
	autoKill bool
	notifier Notifier
	onKill   func()
}

func NewGate(allowedIDs []int64, autoKill bool, notifier Notifier, onKill func()) *Gate {
	g := &Gate{
		allowed:  make(map[int64]bool, len(allowedIDs)),
		autoKill: autoKill,
		notifier: notifier,
		onKill:   onKill,
	}
	for _, id := range allowedIDs {
		g.allowed[id] = true
	}
	return g
}

// Reload swaps in a fresh allow-list, typically after the .env file changed.
func (g *Gate) Reload(allowedIDs []int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowed = make(map[int64]bool, len(allowedIDs))
	for _, id := range allowedIDs {
		g.allowed[id] = true
	}
}

// Check returns whether userID may use the bot. Every denial alerts the
// admin and, when auto-kill is enabled, triggers shutdown.
func (g *Gate) Check(userID int64, username, firstName, lastName string) bool {
	g.mu.Lock()
	if g.allowed[userID] {
		g.mu.Unlock()
		return true
	}
	kill := g.autoKill
	g.mu.Unlock()

	if g.notifier != nil {
		g.notifier.NotifyAdmin(describeIntruder(userID, username, firstName, lastName, kill))
	}
	if kill && g.onKill != nil {
		g.onKill()
	}
	return false
}

func describeIntruder(userID int64, username, firstName, lastName string, kill bool) string {
	name := firstName
	if lastName != "" {
		name += " " + lastName
	}
	if name == "" {
		name = "(no name)"
	}
	if username == "" {
		username = "(none)"
	}

	msg := fmt.Sprintf(
		"🚨 <b>Unauthorized access attempt</b>\n\nUser ID: <code>%d</code>\nUsername: @%s\nName: %s",
		userID, markup.EscapeHTML(username), markup.EscapeHTML(name))
	if kill {
		msg += "\n\n⚠️ Auto-kill is enabled. Shutting down."
	}
	return msg
}
