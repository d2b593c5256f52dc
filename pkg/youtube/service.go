package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrTooLarge marks a download that exceeded the size cap even after the
// bitrate fallback ladder.
var ErrTooLarge = errors.New("file too large")

const maxURLLength = 2048

var (
	urlExtractRe = regexp.MustCompile(`(?i)(https?://)?(www\.)?(youtube\.com/(watch\?v=|shorts/|playlist\?list=)|youtu\.be/)[^\s]+`)
	youtubeRe    = regexp.MustCompile(`(?i)^https?://(www\.)?(youtube\.com/(watch\?v=|shorts/|playlist\?list=)|youtu\.be/)`)
	playlistRe   = regexp.MustCompile(`[?&]list=([a-zA-Z0-9_-]+)`)
)

// fallbackBitrates is the quality ladder tried when a file blows the size
// cap and no better estimate is available, in kbps.
var fallbackBitrates = []int{192, 128, 96, 64, 48}

// VideoInfo is metadata fetched without downloading.
type VideoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Type     string  `json:"_type"`
}

// PlaylistInfo enumerates a playlist without downloading anything.
type PlaylistInfo struct {
	Title  string
	Videos []VideoInfo
}

// Result describes one finished download attempt.
type Result struct {
	FilePath  string
	FileName  string
	SizeBytes int64
}

// StatusFunc receives human-readable progress lines during a download.
type StatusFunc func(message string)

// Service wraps the yt-dlp executable. All invocations pass the URL after a
// "--" separator so it can never be parsed as a flag.
type Service struct {
	ytDlpPath     string
	outputDir     string
	maxFileSizeMB int
}

// NewService validates the yt-dlp path up front so a misconfiguration fails
// at startup, not on the first download.
func NewService(ytDlpPath, outputDir string, maxFileSizeMB int) (*Service, error) {
	info, err := os.Stat(ytDlpPath)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found at %s: %w", ytDlpPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("yt-dlp path is not a file: %s", ytDlpPath)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Service{ytDlpPath: ytDlpPath, outputDir: outputDir, maxFileSizeMB: maxFileSizeMB}, nil
}

// IsYouTubeURL reports whether url is a well-formed YouTube link. Length and
// scheme are checked first so file:// and oversized inputs never reach
// yt-dlp.
func (s *Service) IsYouTubeURL(url string) bool {
	if len(url) > maxURLLength {
		slog.Warn("URL exceeds maximum length", "length", len(url))
		return false
	}
	if !strings.HasPrefix(strings.ToLower(url), "http://") &&
		!strings.HasPrefix(strings.ToLower(url), "https://") {
		return false
	}
	return youtubeRe.MatchString(url)
}

// ExtractURLs pulls every valid YouTube link out of free text.
func (s *Service) ExtractURLs(text string) []string {
	var urls []string
	for _, candidate := range urlExtractRe.FindAllString(text, -1) {
		if s.IsYouTubeURL(candidate) {
			urls = append(urls, candidate)
		}
	}
	return urls
}

// IsPlaylistURL reports whether url refers to a playlist, either a playlist
// page or a watch link carrying a list parameter.
func (s *Service) IsPlaylistURL(url string) bool {
	if len(url) > maxURLLength || !s.IsYouTubeURL(url) {
		return false
	}
	return playlistRe.MatchString(url)
}

// PlaylistID extracts the list parameter, or "" when absent.
func PlaylistID(url string) string {
	m := playlistRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// GetPlaylistInfo enumerates playlist entries via --flat-playlist, one JSON
// object per line.
func (s *Service) GetPlaylistInfo(ctx context.Context, url string) (*PlaylistInfo, error) {
	out, err := s.run(ctx, "--dump-json", "--flat-playlist", "--", url)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playlist: %w", err)
	}

	info := &PlaylistInfo{Title: "Unknown Playlist"}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var v VideoInfo
		if err := json.UnmarshalFromString(line, &v); err != nil {
			slog.Warn("Failed to parse playlist entry", "error", err)
			continue
		}
		if v.Type == "playlist" {
			if v.Title != "" {
				info.Title = v.Title
			}
			continue
		}
		if v.ID != "" {
			info.Videos = append(info.Videos, v)
		}
	}
	return info, nil
}

// GetVideoInfo fetches single-video metadata without downloading.
func (s *Service) GetVideoInfo(ctx context.Context, url string) (*VideoInfo, error) {
	out, err := s.run(ctx, "--dump-json", "--no-playlist", "--", url)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	var v VideoInfo
	if err := json.UnmarshalFromString(strings.TrimSpace(out), &v); err != nil {
		return nil, fmt.Errorf("failed to parse video info: %w", err)
	}
	if v.Title == "" {
		v.Title = "Unknown"
	}
	return &v, nil
}

// WatchURL rebuilds a canonical watch link from a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// DownloadAudio fetches a single video's audio as MP3. The first attempt
// uses the best quality; when the result exceeds the size cap the bitrate
// is lowered and the download retried, up to six attempts.
func (s *Service) DownloadAudio(ctx context.Context, url string, status StatusFunc) (*Result, error) {
	const maxAttempts = 6

	result, size, err := s.attempt(ctx, url, "0")
	attempt := 1

	for err != nil && errors.Is(err, ErrTooLarge) && attempt < maxAttempts {
		bitrate := s.nextBitrate(attempt, size)
		if status != nil {
			status(fmt.Sprintf("⚠️ File too large (%.1fMB). Trying %dkbps... [Attempt %d/%d]",
				float64(size)/(1024*1024), bitrate, attempt+1, maxAttempts))
		}
		result, size, err = s.attempt(ctx, url, fmt.Sprintf("%dK", bitrate))
		attempt++
	}

	if err != nil {
		if errors.Is(err, ErrTooLarge) && status != nil {
			status(fmt.Sprintf("❌ Unable to reduce file size below %dMB even at lowest quality. Please try a shorter video.", s.maxFileSizeMB))
		}
		return nil, err
	}
	return result, nil
}

// nextBitrate picks the bitrate for the next attempt: computed from the
// observed oversize ratio on the first retry, otherwise walking the
// predefined ladder. Never below 48kbps.
func (s *Service) nextBitrate(attempt int, observedSize int64) int {
	if attempt == 1 && observedSize > 0 {
		actualMB := float64(observedSize) / (1024 * 1024)
		// Best-quality MP3 lands near 256kbps; scale from there with a
		// safety margin to stay under the cap.
		computed := int(256 * (float64(s.maxFileSizeMB) / actualMB) * 0.95)
		if computed < 48 {
			computed = 48
		}
		return computed
	}
	idx := attempt - 1
	if idx >= len(fallbackBitrates) {
		idx = len(fallbackBitrates) - 1
	}
	return fallbackBitrates[idx]
}

// attempt runs one download at the given quality and validates the output
// size. An oversized file is removed and reported as ErrTooLarge together
// with the observed size.
func (s *Service) attempt(ctx context.Context, url, quality string) (*Result, int64, error) {
	outputTemplate := filepath.Join(s.outputDir, "%(title)s.%(ext)s")
	out, err := s.run(ctx,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", quality,
		"--no-playlist",
		"--output", outputTemplate,
		"--print", "after_move:filepath",
		"--no-warnings",
		"--", url)
	if err != nil {
		if strings.Contains(err.Error(), "File is larger than max-filesize") {
			return nil, 0, ErrTooLarge
		}
		return nil, 0, err
	}

	filePath := s.detectOutput(out)
	if filePath == "" {
		return nil, 0, errors.New("downloaded file not found")
	}
	if !s.withinOutputDir(filePath) {
		return nil, 0, fmt.Errorf("output path escapes media directory: %s", filePath)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat downloaded file: %w", err)
	}
	if info.Size() > int64(s.maxFileSizeMB)*1024*1024 {
		if rmErr := os.Remove(filePath); rmErr != nil {
			slog.Warn("Failed to remove oversized file", "path", filePath, "error", rmErr)
		}
		return nil, info.Size(), ErrTooLarge
	}

	return &Result{
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		SizeBytes: info.Size(),
	}, info.Size(), nil
}

// detectOutput finds the final MP3 path in yt-dlp's --print output, falling
// back to the newest recent MP3 in the media directory.
func (s *Service) detectOutput(output string) string {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasSuffix(line, ".mp3") {
			continue
		}
		if _, err := os.Stat(line); err == nil {
			return line
		}
	}

	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	cutoff := time.Now().Add(-3 * time.Minute)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp3") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = filepath.Join(s.outputDir, e.Name())
			newestMod = info.ModTime()
		}
	}
	return newest
}

func (s *Service) withinOutputDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	base, err := filepath.Abs(s.outputDir)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, base+string(filepath.Separator)) || abs == base
}

// run executes yt-dlp and returns stdout. stderr rides along in the error.
func (s *Service) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, s.ytDlpPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("yt-dlp failed: %s", msg)
	}
	return stdout.String(), nil
}
