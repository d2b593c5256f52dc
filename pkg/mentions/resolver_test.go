package mentions

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	matches map[string][]string
	content map[string]string
	reads   []string
}

func (f *fakeFinder) FindFiles(ctx context.Context, query string) ([]string, error) {
	return f.matches[query], nil
}

func (f *fakeFinder) ReadFile(ctx context.Context, path string) (string, error) {
	f.reads = append(f.reads, path)
	return f.content[path], nil
}

func TestResolveSingleMatchLoadsImmediately(t *testing.T) {
	finder := &fakeFinder{
		matches: map[string][]string{"main.go": {"cmd/main.go"}},
		content: map[string]string{"cmd/main.go": "package main"},
	}
	r := NewResolver(finder, 0)

	res, err := r.Resolve(context.Background(), "fix @main.go")
	require.NoError(t, err)
	require.Len(t, res.Resolved, 1)
	require.Equal(t, "cmd/main.go", res.Resolved[0].Path)
	require.Equal(t, "package main", res.Resolved[0].Content)
	require.Empty(t, res.Ambiguous)
	require.Empty(t, res.NotFound)
}

func TestResolveMultipleMatchesDefersToPick(t *testing.T) {
	finder := &fakeFinder{
		matches: map[string][]string{"config": {"pkg/config/config.go", "config.json"}},
	}
	r := NewResolver(finder, 0)

	res, err := r.Resolve(context.Background(), "check @config")
	require.NoError(t, err)
	require.Empty(t, res.Resolved)
	require.Len(t, res.Ambiguous, 1)
	require.Equal(t, []string{"pkg/config/config.go", "config.json"}, res.Ambiguous[0].Candidates)
	// Nothing is read until the user picks.
	require.Empty(t, finder.reads)
}

func TestResolveNoMatchesReported(t *testing.T) {
	finder := &fakeFinder{}
	r := NewResolver(finder, 0)

	res, err := r.Resolve(context.Background(), "what about @ghost.go")
	require.NoError(t, err)
	require.Len(t, res.NotFound, 1)
	require.Equal(t, "ghost.go", res.NotFound[0].Query)
}

func TestLoadOmitsOversizedContent(t *testing.T) {
	finder := &fakeFinder{
		content: map[string]string{"big.txt": strings.Repeat("z", 200)},
	}
	r := NewResolver(finder, 100)

	loaded, err := r.Load(context.Background(), FileMention{Query: "big.txt"}, "big.txt")
	require.NoError(t, err)
	require.True(t, loaded.Omitted)
	require.Empty(t, loaded.Content)
	require.Equal(t, "big.txt", loaded.Path)
}

func TestFormatForPromptOmittedFileByPathOnly(t *testing.T) {
	out := FormatForPrompt("review", []ResolvedFile{
		{Path: "big.txt", Omitted: true},
		{Path: "a.go", Content: "package a"},
	})
	require.Contains(t, out, "big.txt:\n(Content not included)")
	require.NotContains(t, out, "big.txt:\n```")
	require.Contains(t, out, "a.go:\n```\npackage a\n```")
}

func TestFormatForPrompt(t *testing.T) {
	out := FormatForPrompt("explain this", []ResolvedFile{
		{Path: "a.go", Content: "package a"},
	})
	require.True(t, strings.HasPrefix(out, "explain this"))
	require.Contains(t, out, "📎 Referenced Files:")
	require.Contains(t, out, "a.go:\n```\npackage a\n```")
}

func TestFormatForPromptNoFiles(t *testing.T) {
	require.Equal(t, "explain this", FormatForPrompt("explain this", nil))
}
