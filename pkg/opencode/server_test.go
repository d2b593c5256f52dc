package opencode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsRunningWithLiveServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // any answer below 500 counts
	}))
	defer srv.Close()

	m := NewServerManager(srv.URL, time.Second)
	require.True(t, m.IsRunning(context.Background()))
}

func TestIsRunningWithoutServer(t *testing.T) {
	m := NewServerManager("http://127.0.0.1:1", time.Second)
	require.False(t, m.IsRunning(context.Background()))
}

func TestIsRunningServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewServerManager(srv.URL, time.Second)
	require.False(t, m.IsRunning(context.Background()))
}

func TestStartSkipsWhenAlreadyRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := NewServerManager(srv.URL, time.Second)
	require.NoError(t, m.Start(context.Background()))
	require.Nil(t, m.cmd, "no process should be spawned for a live server")
}

func TestStopWithoutSpawnIsNoop(t *testing.T) {
	m := NewServerManager("http://localhost:4096", time.Second)
	m.Stop()
}
