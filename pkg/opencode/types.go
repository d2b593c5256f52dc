package opencode

import (
	jsoniter "github.com/json-iterator/go"
)

// Session is the server's representation of one conversation.
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Agent describes one assistant mode advertised by the server.
type Agent struct {
	Name        string `json:"name"`
	Mode        string `json:"mode"` // "primary", "subagent" or "all"
	Hidden      bool   `json:"hidden"`
	Description string `json:"description"`
}

// Part is one typed fragment of a message. Only text parts are consumed by
// the prompt path; reasoning and tool parts arrive through the event stream.
type Part struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Tool      string `json:"tool,omitempty"`
	SessionID string `json:"sessionID,omitempty"`
}

// Event is one entry of the server-sent event stream: a type tag plus a
// payload whose shape depends on the tag. Properties stays raw so each
// handler can decode just the fields it needs.
type Event struct {
	Type       string              `json:"type"`
	Properties jsoniter.RawMessage `json:"properties"`
}

// PartUpdate is the payload of message.part.updated events.
type PartUpdate struct {
	Part Part `json:"part"`
}

// SessionStatus is the payload of session.status events.
type SessionStatus struct {
	Status struct {
		Type string `json:"type"`
	} `json:"status"`
}

// Permission is the payload of permission.updated events.
type Permission struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FileWatch is the payload of file.watcher.updated events.
type FileWatch struct {
	Event string `json:"event"`
	File  string `json:"file"`
}

// InstallationUpdate is the payload of installation.update-available events.
type InstallationUpdate struct {
	Version string `json:"version"`
}

// BranchUpdate is the payload of vcs.branch.updated events.
type BranchUpdate struct {
	Branch string `json:"branch"`
}

// PromptAppend is the payload of tui.prompt.append events.
type PromptAppend struct {
	Text string `json:"text"`
}

// InstanceDisposed is the payload of server.instance.disposed events.
type InstanceDisposed struct {
	Directory string `json:"directory"`
}

// PtyLifecycle is the payload of pty.* events.
type PtyLifecycle struct {
	ID string `json:"id"`
}
