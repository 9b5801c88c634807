// Package downloads runs queued download tasks to completion.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/pkg/models"
)

var processed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stockdesk_downloads_processed_total",
	Help: "Download tasks settled by the processor, by final status.",
}, []string{"status"})

var errTooLarge = errors.New("file exceeds the size limit")

// Store is the task storage the Processor needs.
type Store interface {
	GetTask(ctx context.Context, id string) (*models.DownloadTask, error)
	UpdateTask(ctx context.Context, task *models.DownloadTask) error
	ListTasksByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.DownloadTask, error)
}

// Config tunes the Processor.
type Config struct {
	Interval  time.Duration
	BatchSize int
	MaxBytes  int64
}

// Processor polls pending tasks and fetches their media.
type Processor struct {
	store Store
	http  *http.Client
	cfg   Config
	now   func() time.Time
}

// NewProcessor creates a Processor. A nil client uses a 5 minute timeout.
func NewProcessor(store Store, client *http.Client, cfg Config) *Processor {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Processor{store: store, http: client, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Run processes pending tasks every Interval until ctx is done.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("download processor pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce settles up to BatchSize pending tasks and returns how many it
// handled.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	tasks, err := p.store.ListTasksByStatus(ctx, models.TaskPending, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing pending tasks: %w", err)
	}
	n := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if err := p.process(ctx, t); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (p *Processor) process(ctx context.Context, t *models.DownloadTask) error {
	if err := p.move(ctx, t, models.TaskInProgress); err != nil {
		return err
	}

	start := time.Now()
	name, size, final, err := p.fetch(ctx, t.URL)
	t.Duration = time.Since(start).Seconds()

	if err != nil {
		t.ErrorMessage = err.Error()
		log.Warn().Str("task_id", t.ID).Err(err).Msg("download failed")
		return p.move(ctx, t, models.TaskFailed)
	}
	t.Filename = name
	t.FileSize = size
	t.DownloadURL = final
	t.Progress = 100
	t.ErrorMessage = ""
	log.Info().Str("task_id", t.ID).Int64("bytes", size).Msg("download completed")
	return p.move(ctx, t, models.TaskCompleted)
}

func (p *Processor) move(ctx context.Context, t *models.DownloadTask, next models.TaskStatus) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = p.now()
	if err := p.store.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("updating task %s: %w", t.ID, err)
	}
	if next.Settled() {
		processed.WithLabelValues(string(next)).Inc()
	}
	return nil
}

// fetch downloads rawURL and returns the file name, byte count and the URL
// the content was finally served from.
func (p *Processor) fetch(ctx context.Context, rawURL string) (string, int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, "", fmt.Errorf("building request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return "", 0, "", fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, "", fmt.Errorf("source responded %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body io.Reader = resp.Body
	if p.cfg.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, p.cfg.MaxBytes+1)
	}
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return "", 0, "", fmt.Errorf("reading media: %w", err)
	}
	if p.cfg.MaxBytes > 0 && n > p.cfg.MaxBytes {
		return "", 0, "", errTooLarge
	}

	final := resp.Request.URL
	return filename(resp.Header.Get("Content-Disposition"), final.Path), n, final.String(), nil
}

func filename(disposition, urlPath string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	base := path.Base(urlPath)
	if base == "." || base == "/" {
		return "download"
	}
	return base
}
