package opencode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeParsesEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/event", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")

		flusher := w.(http.Flusher)
		frames := []string{
			"data: {\"type\":\"session.idle\",\"properties\":{}}\n\n",
			"data: {\"type\":\"message.part.updated\",\"properties\":{\"part\":{\"type\":\"text\",\"text\":\"hi\"}}}\n\n",
		}
		for _, frame := range frames {
			_, _ = w.Write([]byte(frame))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	require.Equal(t, "session.idle", events[0].Type)
	require.Equal(t, "message.part.updated", events[1].Type)

	var update PartUpdate
	require.NoError(t, json.Unmarshal(events[1].Properties, &update))
	require.Equal(t, "hi", update.Part.Text)
}

func TestSubscribeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Subscribe(context.Background())
	require.Error(t, err)
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL)
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-ch:
		require.False(t, open, "channel should close after cancellation")
	case <-time.After(3 * time.Second):
		t.Fatal("event channel did not close after context cancellation")
	}
}
