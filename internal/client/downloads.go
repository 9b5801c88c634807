package client

import (
	"context"
	"net/http"
	"time"

	"github.com/org/stockdesk/pkg/models"
)

const (
	pathDownloads     = "/api/downloads"
	pathDownloadRetry = "/api/downloads/retry"

	// DefaultPollInterval replaces a non-positive PollTask interval.
	DefaultPollInterval = 2 * time.Second
)

// ListTasks returns the caller's download tasks.
func (c *Client) ListTasks(ctx context.Context) models.Envelope[[]models.DownloadTask] {
	return request[[]models.DownloadTask](ctx, c, call{
		resource: "download.list",
		method:   http.MethodGet,
		path:     pathDownloads,
		auth:     authRequired,
	})
}

// CreateTask asks the backend to fetch url. Two calls create two tasks.
func (c *Client) CreateTask(ctx context.Context, url string) models.Envelope[models.DownloadCreated] {
	return request[models.DownloadCreated](ctx, c, call{
		resource: "download.create",
		method:   http.MethodPost,
		path:     pathDownloads,
		body:     models.DownloadCreateRequest{URL: url},
		auth:     authRequired,
	})
}

// RetryTask requests failed -> pending for a task. The task state is not
// checked here; the backend rejects retries of tasks that have not failed.
func (c *Client) RetryTask(ctx context.Context, id string) models.Envelope[models.DownloadRetried] {
	return request[models.DownloadRetried](ctx, c, call{
		resource: "download.retry",
		method:   http.MethodPost,
		path:     pathDownloadRetry,
		body:     models.DownloadRetryRequest{TaskID: id},
		auth:     authRequired,
	})
}

// PollTask lists tasks every interval until task id is completed or failed.
// onUpdate, if set, sees every observed state. Unlike single requests,
// polling stops when ctx is done.
func (c *Client) PollTask(ctx context.Context, id string, interval time.Duration, onUpdate func(models.DownloadTask)) models.Envelope[models.DownloadTask] {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		list := c.ListTasks(ctx)
		if !list.Success {
			return models.Envelope[models.DownloadTask]{Error: list.Error}
		}
		task, ok := findTask(list.Data, id)
		if !ok {
			return models.Fail[models.DownloadTask](models.KindAPI, models.TextID("not_found"), "Download task not found.")
		}
		if onUpdate != nil {
			onUpdate(task)
		}
		if task.Status.Settled() {
			return models.OK(&task)
		}
		select {
		case <-ctx.Done():
			return models.Fail[models.DownloadTask](models.KindUnknown, models.TextID("cancelled"), ctx.Err().Error())
		case <-ticker.C:
		}
	}
}

func findTask(tasks *[]models.DownloadTask, id string) (models.DownloadTask, bool) {
	if tasks == nil {
		return models.DownloadTask{}, false
	}
	for _, t := range *tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.DownloadTask{}, false
}
