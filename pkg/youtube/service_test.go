package youtube

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testService() *Service {
	return &Service{ytDlpPath: "/usr/local/bin/yt-dlp", outputDir: "/tmp/media", maxFileSizeMB: 50}
}

func TestIsYouTubeURL(t *testing.T) {
	s := testService()
	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/abc123", true},
		{"https://www.youtube.com/playlist?list=PLabc", true},
		{"http://youtube.com/watch?v=x", true},
		{"file:///etc/passwd", false},
		{"ftp://youtube.com/watch?v=x", false},
		{"youtube.com/watch?v=x", false},
		{"https://example.com/watch?v=x", false},
		{"https://www.youtube.com/watch?v=" + strings.Repeat("a", 3000), false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, s.IsYouTubeURL(tc.url), "url: %.80s", tc.url)
	}
}

func TestExtractURLs(t *testing.T) {
	s := testService()
	text := "check https://youtu.be/abc and also https://www.youtube.com/watch?v=def thanks"
	urls := s.ExtractURLs(text)
	require.Len(t, urls, 2)
	require.Equal(t, "https://youtu.be/abc", urls[0])

	require.Empty(t, s.ExtractURLs("no links here"))
	// Scheme-less matches are extracted by the loose regex but rejected by
	// validation.
	require.Empty(t, s.ExtractURLs("see youtube.com/watch?v=abc"))
}

func TestIsPlaylistURL(t *testing.T) {
	s := testService()
	require.True(t, s.IsPlaylistURL("https://www.youtube.com/playlist?list=PLabc123"))
	require.True(t, s.IsPlaylistURL("https://www.youtube.com/watch?v=x&list=PLabc123"))
	require.False(t, s.IsPlaylistURL("https://www.youtube.com/watch?v=x"))
	require.False(t, s.IsPlaylistURL("not a url"))
}

func TestPlaylistID(t *testing.T) {
	require.Equal(t, "PLabc-123_x", PlaylistID("https://www.youtube.com/watch?v=y&list=PLabc-123_x&index=2"))
	require.Empty(t, PlaylistID("https://www.youtube.com/watch?v=y"))
}

func TestNextBitrateComputedFromObservedSize(t *testing.T) {
	s := testService()

	// 100MB at ~256kbps against a 50MB cap lands near 121kbps.
	got := s.nextBitrate(1, 100*1024*1024)
	require.InDelta(t, 121, got, 2)

	// Never below the floor.
	require.Equal(t, 48, s.nextBitrate(1, 1024*1024*1024))
}

func TestNextBitrateFallbackLadder(t *testing.T) {
	s := testService()
	require.Equal(t, 192, s.nextBitrate(1, 0))
	require.Equal(t, 128, s.nextBitrate(2, 0))
	require.Equal(t, 48, s.nextBitrate(5, 0))
	// The ladder clamps at its last rung.
	require.Equal(t, 48, s.nextBitrate(9, 0))
}

func TestWithinOutputDir(t *testing.T) {
	s := testService()
	require.True(t, s.withinOutputDir("/tmp/media/song.mp3"))
	require.False(t, s.withinOutputDir("/tmp/other/song.mp3"))
	require.False(t, s.withinOutputDir("/etc/passwd"))
}
