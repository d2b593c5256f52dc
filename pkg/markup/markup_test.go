package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeHTML(t *testing.T) {
	require.Equal(t, "a &amp; b &lt;c&gt; &quot;d&quot;", EscapeHTML(`a & b <c> "d"`))
}

func TestFormatHTMLEscapesBeforeMarkup(t *testing.T) {
	// Raw angle brackets in content must survive as entities, never as tags.
	out := FormatHTML("compare a < b && b > c")
	require.Equal(t, "compare a &lt; b &amp;&amp; b &gt; c", out)
}

func TestFormatHTMLCodeFence(t *testing.T) {
	out := FormatHTML("```go\nfmt.Println(\"hi\")\n```")
	require.Contains(t, out, "<pre>")
	require.Contains(t, out, "</pre>")
	require.Contains(t, out, "fmt.Println(&quot;hi&quot;)")
	require.NotContains(t, out, "```")
}

func TestFormatHTMLInlineConstructs(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"use `go test` here", "use <code>go test</code> here"},
		{"this is **bold** text", "this is <b>bold</b> text"},
		{"this is *italic* text", "this is <i>italic</i> text"},
		{"# Heading", "<b>Heading</b>"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatHTML(tc.in), "input: %q", tc.in)
	}
}

func TestFormatHTMLBoldNotItalic(t *testing.T) {
	// ** must not be consumed by the single-star italic rule.
	out := FormatHTML("**strong**")
	require.Equal(t, "<b>strong</b>", out)
}

func TestTruncateLinesKeepsTail(t *testing.T) {
	lines := make([]string, 60)
	for i := range lines {
		lines[i] = "line"
	}
	lines[59] = "last"

	out := TruncateLines(strings.Join(lines, "\n"), 50)
	require.True(t, strings.HasPrefix(out, "... (10 earlier lines)\n"))
	require.True(t, strings.HasSuffix(out, "last"))
	// header line + 50 kept lines
	require.Len(t, strings.Split(out, "\n"), 51)
}

func TestTruncateLinesUnderLimit(t *testing.T) {
	in := "a\nb\nc"
	require.Equal(t, in, TruncateLines(in, 50))
}

func TestSplitChunksRoundTrip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString(strings.Repeat("x", 30))
		b.WriteByte('\n')
	}
	b.WriteString("final line")
	in := b.String()

	chunks := SplitChunks(in, 4000)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 4000)
	}
	require.Equal(t, in, strings.Join(chunks, "\n"))
}

func TestSplitChunksOversizedLine(t *testing.T) {
	long := strings.Repeat("y", 5000)
	chunks := SplitChunks("short\n"+long, 4000)
	require.Equal(t, []string{"short", long}, chunks)
}

func TestSplitChunksShortInput(t *testing.T) {
	require.Equal(t, []string{"hello"}, SplitChunks("hello", 4000))
}

func TestShortenPathKeepsFilename(t *testing.T) {
	path := "internal/server/router/api/v1/resource_service.go"
	out := ShortenPath(path, 30)
	require.LessOrEqual(t, len(out), 30+4)
	require.True(t, strings.HasSuffix(out, "resource_service.go"))
}
