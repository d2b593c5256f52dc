package opencode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"time"
)

// ServerManager probes and, when necessary, spawns the local `opencode serve`
// process. Starting is a single composite operation: probe liveness, spawn,
// then poll until ready within a bounded timeout.
type ServerManager struct {
	baseURL      string
	startTimeout time.Duration
	cmd          *exec.Cmd
}

func NewServerManager(baseURL string, startTimeout time.Duration) *ServerManager {
	return &ServerManager{
		baseURL:      baseURL,
		startTimeout: startTimeout,
	}
}

// IsRunning probes the server with a short HEAD request. Any answered
// request counts; a 4xx still proves a listener is there.
func (m *ServerManager) IsRunning(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, m.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// Start brings the server up if it is not already running. On failure the
// returned StartError carries user-facing guidance.
func (m *ServerManager) Start(ctx context.Context) error {
	if m.IsRunning(ctx) {
		return nil
	}

	binPath, err := exec.LookPath("opencode")
	if err != nil {
		return &StartError{
			Message: "the opencode command is not available; install OpenCode first (npm install -g opencode-ai)",
			Err:     err,
		}
	}

	u, err := url.Parse(m.baseURL)
	if err != nil {
		return &StartError{Message: "invalid OPENCODE_SERVER_URL", Err: err}
	}
	port := u.Port()
	if port == "" {
		port = "4096"
	}
	hostname := u.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	// Detach: the server must outlive a bot restart.
	cmd := exec.Command(binPath, "serve", "--port", port, "--hostname", hostname)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return &StartError{Message: "failed to spawn opencode serve", Err: err}
	}
	m.cmd = cmd
	go cmd.Wait() // reap, we never inspect the exit status

	deadline := time.Now().Add(m.startTimeout)
	for time.Now().Before(deadline) {
		if m.IsRunning(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return &StartError{Message: "cancelled while waiting for opencode serve", Err: ctx.Err()}
		case <-time.After(time.Second):
		}
	}

	return &StartError{
		Message: fmt.Sprintf("opencode serve did not respond within %s; start it manually with `opencode serve`", m.startTimeout),
	}
}

// Stop kills a process this manager spawned. A server that was already
// running stays untouched.
func (m *ServerManager) Stop() {
	if m.cmd != nil && m.cmd.Process != nil {
		m.cmd.Process.Kill()
		m.cmd = nil
	}
}
