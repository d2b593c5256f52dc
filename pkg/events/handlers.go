package events

import (
	"fmt"
	"log/slog"

	"telecoder/pkg/markup"
	"telecoder/pkg/opencode"
	"telecoder/pkg/render"
)

// knownEventTypes is the closed set of event kinds the assistant server
// emits today. Kinds outside this set hit the dispatcher's unknown policy.
var knownEventTypes = map[string]bool{
	"message.updated":               true,
	"message.removed":               true,
	"message.part.updated":          true,
	"message.part.removed":          true,
	"permission.updated":            true,
	"permission.replied":            true,
	"session.status":                true,
	"session.idle":                  true,
	"session.compacted":             true,
	"session.error":                 true,
	"session.created":               true,
	"session.updated":               true,
	"session.deleted":               true,
	"session.diff":                  true,
	"file.edited":                   true,
	"file.watcher.updated":          true,
	"todo.updated":                  true,
	"command.executed":              true,
	"vcs.branch.updated":            true,
	"installation.updated":          true,
	"installation.update-available": true,
	"lsp.client.diagnostics":        true,
	"lsp.updated":                   true,
	"tui.prompt.append":             true,
	"tui.command.execute":           true,
	"tui.toast.show":                true,
	"pty.created":                   true,
	"pty.updated":                   true,
	"pty.exited":                    true,
	"pty.deleted":                   true,
	"server.instance.disposed":      true,
	"server.connected":              true,
}

// defaultHandlers is the per-kind routing table. Most lifecycle kinds are
// log-only; the streaming and notice-worthy kinds do real work.
func defaultHandlers() map[string]HandlerFunc {
	handlers := map[string]HandlerFunc{
		"message.part.updated":          handlePartUpdated,
		"session.status":                handleSessionStatus,
		"permission.updated":            handlePermissionUpdated,
		"installation.update-available": handleUpdateAvailable,
		"tui.prompt.append":             handlePromptAppend,
		"file.watcher.updated":          handleFileWatcher,
		"vcs.branch.updated":            handleBranchUpdated,
		"server.instance.disposed":      handleInstanceDisposed,
		"pty.deleted":                   handlePtyDeleted,
	}

	// Everything else in the known set is observed but produces no output.
	for typ := range knownEventTypes {
		if _, ok := handlers[typ]; !ok {
			handlers[typ] = logOnly
		}
	}
	return handlers
}

func logOnly(ev opencode.Event, env *Env) (string, error) {
	slog.Debug("Event observed", "type", ev.Type)
	return "", nil
}

// handlePartUpdated feeds streaming message parts into the render
// coordinator, one independent state machine per stream kind.
func handlePartUpdated(ev opencode.Event, env *Env) (string, error) {
	var update opencode.PartUpdate
	if err := json.Unmarshal(ev.Properties, &update); err != nil {
		return "", fmt.Errorf("failed to decode part update: %w", err)
	}

	part := update.Part
	chatID := env.Session.ChatID
	sessionID := env.Session.SessionID

	// The event stream is server-wide; only render parts belonging to the
	// session this subscription was opened for.
	if part.SessionID != "" && part.SessionID != sessionID {
		return "", nil
	}

	switch part.Type {
	case "text":
		if part.Text != "" {
			env.Renderer.Update(sessionID, chatID, render.KindText, part.Text)
		}
	case "reasoning":
		env.Renderer.Update(sessionID, chatID, render.KindReasoning, "💭 Reasoning")
	case "tool":
		if part.Tool != "" {
			env.Renderer.Update(sessionID, chatID, render.KindTool, fmt.Sprintf("🔧 %s", part.Tool))
		}
	}
	return "", nil
}

func handleSessionStatus(ev opencode.Event, env *Env) (string, error) {
	var status opencode.SessionStatus
	if err := json.Unmarshal(ev.Properties, &status); err != nil {
		return "", fmt.Errorf("failed to decode session status: %w", err)
	}

	emoji := "🔄"
	switch status.Status.Type {
	case "busy":
		emoji = "🟢"
	case "idle":
		emoji = "⏸️"
	}
	return fmt.Sprintf("%s <b>Session status:</b> %s", emoji, markup.EscapeHTML(status.Status.Type)), nil
}

func handlePermissionUpdated(ev opencode.Event, env *Env) (string, error) {
	var p opencode.Permission
	if err := json.Unmarshal(ev.Properties, &p); err != nil {
		return "", fmt.Errorf("failed to decode permission: %w", err)
	}
	return fmt.Sprintf("🔐 <b>Permission updated:</b> %s (id=<code>%s</code>)",
		markup.EscapeHTML(p.Title), markup.EscapeHTML(p.ID)), nil
}

func handleUpdateAvailable(ev opencode.Event, env *Env) (string, error) {
	var u opencode.InstallationUpdate
	if err := json.Unmarshal(ev.Properties, &u); err != nil {
		return "", fmt.Errorf("failed to decode installation update: %w", err)
	}
	return fmt.Sprintf("🔔 <b>Update available:</b> %s", markup.EscapeHTML(u.Version)), nil
}

func handlePromptAppend(ev opencode.Event, env *Env) (string, error) {
	var p opencode.PromptAppend
	if err := json.Unmarshal(ev.Properties, &p); err != nil {
		return "", fmt.Errorf("failed to decode prompt append: %w", err)
	}
	return fmt.Sprintf("🖊️ <b>TUI prompt append:</b> %s", markup.EscapeHTML(p.Text)), nil
}

func handleFileWatcher(ev opencode.Event, env *Env) (string, error) {
	var w opencode.FileWatch
	if err := json.Unmarshal(ev.Properties, &w); err != nil {
		return "", fmt.Errorf("failed to decode file watch: %w", err)
	}
	return fmt.Sprintf("📂 <b>File watcher:</b> %s %s",
		markup.EscapeHTML(w.Event), markup.EscapeHTML(w.File)), nil
}

func handleBranchUpdated(ev opencode.Event, env *Env) (string, error) {
	var b opencode.BranchUpdate
	if err := json.Unmarshal(ev.Properties, &b); err != nil {
		return "", fmt.Errorf("failed to decode branch update: %w", err)
	}
	branch := b.Branch
	if branch == "" {
		branch = "(unknown)"
	}
	return fmt.Sprintf("🌿 <b>VCS branch updated:</b> %s", markup.EscapeHTML(branch)), nil
}

func handleInstanceDisposed(ev opencode.Event, env *Env) (string, error) {
	var d opencode.InstanceDisposed
	if err := json.Unmarshal(ev.Properties, &d); err != nil {
		return "", fmt.Errorf("failed to decode instance disposal: %w", err)
	}
	return fmt.Sprintf("🗑️ <b>Server instance disposed:</b> <code>%s</code>",
		markup.EscapeHTML(d.Directory)), nil
}

func handlePtyDeleted(ev opencode.Event, env *Env) (string, error) {
	var p opencode.PtyLifecycle
	if err := json.Unmarshal(ev.Properties, &p); err != nil {
		return "", fmt.Errorf("failed to decode pty lifecycle: %w", err)
	}
	return fmt.Sprintf("🗑️ <b>PTY deleted:</b> %s", markup.EscapeHTML(p.ID)), nil
}
