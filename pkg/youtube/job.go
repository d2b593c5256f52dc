package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Job tracks one playlist download: a cancellation flag polled between
// videos and counters exposed for the final summary. Failed videos never
// stop the loop.
type Job struct {
	ID         string
	URL        string
	Total      int
	downloaded atomic.Int32
	failed     atomic.Int32
	cancelled  atomic.Bool
}

func NewJob(url string) *Job {
	return &Job{ID: uuid.NewString(), URL: url}
}

// Cancel flips the stop flag. The loop notices before the next video.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

func (j *Job) Downloaded() int {
	return int(j.downloaded.Load())
}

func (j *Job) Failed() int {
	return int(j.failed.Load())
}

// Skipped is how many videos the loop never reached, nonzero only after a
// cancellation.
func (j *Job) Skipped() int {
	return j.Total - j.Downloaded() - j.Failed()
}

// JobTracker indexes in-flight playlist jobs by id for the stop button.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*Job)}
}

func (t *JobTracker) Add(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[job.ID] = job
}

func (t *JobTracker) Get(id string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	return job, ok
}

func (t *JobTracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// PlaylistOptions tunes one playlist run.
type PlaylistOptions struct {
	MaxSize int
	Delay   time.Duration
	// Status receives per-video progress lines.
	Status StatusFunc
	// VideoStatus receives quality-fallback lines from individual downloads.
	VideoStatus StatusFunc
	// OnResult is called with each successful download so the caller can
	// ship the file while the loop continues.
	OnResult func(*Result)
}

// DownloadPlaylist runs the sequential playlist loop for job. The playlist
// is enumerated first, capped at opts.MaxSize, and downloaded one video at a
// time with opts.Delay between videos.
func (s *Service) DownloadPlaylist(ctx context.Context, job *Job, opts PlaylistOptions) error {
	info, err := s.GetPlaylistInfo(ctx, job.URL)
	if err != nil {
		return err
	}
	if len(info.Videos) == 0 {
		return fmt.Errorf("playlist is empty or could not be read")
	}

	videos := info.Videos
	if opts.MaxSize > 0 && len(videos) > opts.MaxSize {
		if opts.Status != nil {
			opts.Status(fmt.Sprintf("⚠️ Playlist has %d videos. Downloading first %d only.",
				len(videos), opts.MaxSize))
		}
		videos = videos[:opts.MaxSize]
	}
	job.Total = len(videos)

	for i, video := range videos {
		if job.Cancelled() {
			slog.Info("Playlist download stopped", "job_id", job.ID, "at", i+1, "total", job.Total)
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if opts.Status != nil {
			opts.Status(fmt.Sprintf("📥 [%d/%d] Downloading: %s", i+1, job.Total, video.Title))
		}

		result, err := s.DownloadAudio(ctx, WatchURL(video.ID), opts.VideoStatus)
		if err != nil {
			job.failed.Add(1)
			slog.Warn("Playlist item failed", "job_id", job.ID, "title", video.Title, "error", err)
			if opts.Status != nil {
				opts.Status(fmt.Sprintf("❌ [%d/%d] Failed: %s", i+1, job.Total, video.Title))
			}
		} else {
			job.downloaded.Add(1)
			if opts.Status != nil {
				opts.Status(fmt.Sprintf("✅ [%d/%d] Complete: %s (%.1fMB)",
					i+1, job.Total, video.Title, float64(result.SizeBytes)/(1024*1024)))
			}
			if opts.OnResult != nil {
				opts.OnResult(result)
			}
		}

		if i < len(videos)-1 && opts.Delay > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
