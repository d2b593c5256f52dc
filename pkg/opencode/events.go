package opencode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Subscribe opens the server's process-wide event stream and returns a
// channel of decoded events. The channel closes when the context is
// cancelled or the stream ends; subscription errors after the initial
// connect are logged, not surfaced, because the caller's loop must outlive
// any single bad frame.
func (c *Client) Subscribe(ctx context.Context) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/event", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream stays open for the session's lifetime; the request context
	// is the only cutoff.
	client := &http.Client{Timeout: 0}
	resp, err := client.Do(req)
	if err != nil {
		return nil, c.classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	events := make(chan Event, 64)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		// Tool output events can carry large payloads.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var data bytes.Buffer
		for scanner.Scan() {
			line := scanner.Text()

			switch {
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			case line == "":
				if data.Len() == 0 {
					continue
				}
				var ev Event
				if err := json.Unmarshal(data.Bytes(), &ev); err != nil {
					slog.Debug("Skipping undecodable event frame", "error", err)
				} else if ev.Type != "" {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
				data.Reset()
			default:
				// Comment lines and id:/event: fields are not used by the
				// opencode stream.
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			slog.Error("Event stream terminated", "error", err)
		}
	}()

	return events, nil
}
