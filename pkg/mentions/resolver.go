package mentions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"telecoder/pkg/markup"
)

// Finder is the slice of the assistant-server client the resolver needs.
type Finder interface {
	FindFiles(ctx context.Context, query string) ([]string, error)
	ReadFile(ctx context.Context, path string) (string, error)
}

// ResolvedFile is a mention bound to a concrete path. Content stays empty
// when the file exceeded the size ceiling; the prompt then references it by
// path alone.
type ResolvedFile struct {
	Mention FileMention
	Path    string
	Content string
	Omitted bool
}

// Ambiguity is a mention that matched more than one path. The caller is
// expected to ask the user to pick one, then call Load with the choice.
type Ambiguity struct {
	Mention    FileMention
	Candidates []string
}

// Result partitions the mentions of one prompt: resolved, ambiguous, and
// queries that matched nothing.
type Result struct {
	Resolved  []ResolvedFile
	Ambiguous []Ambiguity
	NotFound  []FileMention
}

// Resolver turns @-mentions into file content via the assistant server's
// file search.
type Resolver struct {
	finder   Finder
	maxBytes int
}

func NewResolver(finder Finder, maxBytes int) *Resolver {
	return &Resolver{finder: finder, maxBytes: maxBytes}
}

// Resolve searches every mention in text. A single match is loaded
// immediately; multiple matches are surfaced for an interactive pick;
// zero matches are reported so the caller can warn the user.
func (r *Resolver) Resolve(ctx context.Context, text string) (*Result, error) {
	result := &Result{}
	for _, m := range Parse(text) {
		paths, err := r.finder.FindFiles(ctx, m.Query)
		if err != nil {
			return nil, fmt.Errorf("failed to search files for %q: %w", m.Query, err)
		}

		switch len(paths) {
		case 0:
			result.NotFound = append(result.NotFound, m)
		case 1:
			resolved, err := r.Load(ctx, m, paths[0])
			if err != nil {
				return nil, err
			}
			result.Resolved = append(result.Resolved, resolved)
		default:
			result.Ambiguous = append(result.Ambiguous, Ambiguity{Mention: m, Candidates: paths})
		}
	}
	return result, nil
}

// Load reads one chosen path. A file beyond the configured byte ceiling is
// kept by path only, with no content, so a huge file never bloats the prompt.
func (r *Resolver) Load(ctx context.Context, m FileMention, path string) (ResolvedFile, error) {
	content, err := r.finder.ReadFile(ctx, path)
	if err != nil {
		return ResolvedFile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if r.maxBytes > 0 && len(content) > r.maxBytes {
		slog.Warn("File too large, omitting content", "path", path, "size", len(content))
		return ResolvedFile{Mention: m, Path: path, Omitted: true}, nil
	}
	return ResolvedFile{Mention: m, Path: path, Content: content}, nil
}

// FormatForPrompt appends each referenced file under the user's text, fenced
// so the assistant sees the mentions and the exact content together.
func FormatForPrompt(text string, files []ResolvedFile) string {
	if len(files) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n📎 Referenced Files:\n")
	for _, f := range files {
		if f.Omitted {
			fmt.Fprintf(&b, "\n%s:\n(Content not included)\n", f.Path)
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n```\n%s\n```\n", f.Path, f.Content)
	}
	return b.String()
}

// DescribeNotFound builds the warning notice for unmatched mentions.
func DescribeNotFound(missing []FileMention) string {
	if len(missing) == 0 {
		return ""
	}
	queries := make([]string, len(missing))
	for i, m := range missing {
		queries[i] = markup.EscapeHTML(m.Query)
	}
	return fmt.Sprintf("⚠️ <b>No files found for:</b> %s", strings.Join(queries, ", "))
}
