package markup

import (
	"fmt"
	"regexp"
	"strings"
)

// Telegram rejects HTML parse-mode payloads containing unescaped entities, so
// every piece of user or AI authored text must pass through EscapeHTML before
// any of our own tags are added.
func EscapeHTML(text string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(text)
}

var (
	fenceRe  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n?(.*?)```")
	inlineRe = regexp.MustCompile("`([^`\n]+)`")
	boldRe   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicRe = regexp.MustCompile(`(^|[^*])\*([^*\n]+)\*`)
	headerRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// FormatHTML converts markdown-flavoured assistant output into Telegram HTML.
// The input is escaped first, so literal <, > and & in content can never be
// interpreted as formatting tags; conversion then rewrites the markdown
// constructs Telegram understands (code fences, inline code, bold, italic,
// headers).
func FormatHTML(text string) string {
	out := EscapeHTML(text)

	out = fenceRe.ReplaceAllString(out, "<pre>$2</pre>")
	out = inlineRe.ReplaceAllString(out, "<code>$1</code>")
	out = boldRe.ReplaceAllString(out, "<b>$1</b>")
	out = italicRe.ReplaceAllString(out, "$1<i>$2</i>")
	out = headerRe.ReplaceAllString(out, "<b>$1</b>")

	return out
}

// TruncateLines keeps only the last max lines of text. Long streaming
// fragments would otherwise exceed Telegram's message ceiling and flood
// mobile screens; showing the tail keeps the freshest output visible.
func TruncateLines(text string, max int) string {
	if max <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= max {
		return text
	}
	kept := lines[len(lines)-max:]
	return fmt.Sprintf("... (%d earlier lines)\n%s", len(lines)-max, strings.Join(kept, "\n"))
}

// SplitChunks splits text into pieces of at most limit characters, breaking
// only on line boundaries. Joining the chunks back with newlines reproduces
// the input exactly. A single line longer than limit becomes its own chunk.
func SplitChunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if current.Len() > 0 && current.Len()+len(line)+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// ShortenPath abbreviates a long file path for inline-keyboard labels,
// always preserving the filename.
func ShortenPath(path string, max int) string {
	if len(path) <= max {
		return path
	}
	parts := strings.Split(path, "/")
	if len(parts) <= 2 {
		return path
	}

	filename := parts[len(parts)-1]
	remaining := max - len(filename) - 4
	if remaining <= 0 {
		return ".../" + filename
	}

	var prefix strings.Builder
	for _, p := range parts[:len(parts)-1] {
		if prefix.Len()+len(p)+1 > remaining {
			break
		}
		prefix.WriteString(p)
		prefix.WriteByte('/')
	}
	return prefix.String() + ".../" + filename
}
