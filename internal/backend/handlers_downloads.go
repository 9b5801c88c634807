package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

// matchSite returns the enabled site serving host, or nil.
func (s *Server) matchSite(ctx context.Context, host string) (*models.Site, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	for _, site := range sites {
		if site.Enabled && (host == site.Host || strings.HasSuffix(host, "."+site.Host)) {
			return site, nil
		}
	}
	return nil, nil
}

// DownloadsListHandler handles GET /api/downloads
func (s *Server) DownloadsListHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromCtx(r.Context())
	tasks, err := s.store.ListTasks(r.Context(), user.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, list(tasks))
}

// DownloadCreateHandler handles POST /api/downloads. Each task costs one
// credit, charged when it is queued.
func (s *Server) DownloadCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadCreateRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	ctx := r.Context()
	// Re-read the balance; the one in the request context may be stale.
	user, err := s.store.GetUserByID(ctx, userFromCtx(ctx).ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	now := s.now()
	if user.Credits <= 0 {
		writeFail(w, http.StatusPaymentRequired, errInsufficient, "not enough credits")
		return
	}
	if user.ExpiresAt != nil && !now.Before(*user.ExpiresAt) {
		writeFail(w, http.StatusPaymentRequired, errExpired, "subscription has expired")
		return
	}

	host, err := siteHost(req.URL)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	site, err := s.matchSite(ctx, host)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if site == nil {
		writeFail(w, http.StatusUnprocessableEntity, errUnsupportedSite, "downloads from "+host+" are not supported")
		return
	}

	if _, err := s.store.AdjustCredits(ctx, user.ID, -1); err != nil {
		writeErr(w, r, err)
		return
	}
	task := &models.DownloadTask{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Platform:  site.Name,
		Status:    models.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    user.ID,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		if _, rerr := s.store.AdjustCredits(ctx, user.ID, 1); rerr != nil {
			log.Error().Err(rerr).Str("user_id", user.ID).Msg("refunding credit")
		}
		writeErr(w, r, err)
		return
	}
	event := &models.CreditEvent{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		Action:    models.CreditDownload,
		Amount:    -1,
		CreatedAt: now,
	}
	if err := s.store.WriteCreditEvent(ctx, event); err != nil {
		log.Warn().Err(err).Str("task_id", task.ID).Msg("recording credit event")
	}
	creditsCharged.Inc()
	tasksCreated.WithLabelValues(site.Name).Inc()

	writeOK(w, http.StatusCreated, models.DownloadCreated{TaskID: task.ID, Status: task.Status})
}

// DownloadRetryHandler handles POST /api/downloads/retry. Only failed tasks
// can be retried and a retry is not charged again.
func (s *Server) DownloadRetryHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadRetryRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	ctx := r.Context()
	user := userFromCtx(ctx)
	task, err := s.store.GetTask(ctx, req.TaskID)
	if err != nil || task.UserID != user.ID {
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			writeFail(w, http.StatusNotFound, errNotFound, "task not found")
			return
		}
		writeErr(w, r, err)
		return
	}
	if !task.Status.CanTransition(models.TaskPending) {
		writeFail(w, http.StatusConflict, errInvalidState, "only failed tasks can be retried")
		return
	}

	task.Status = models.TaskPending
	task.Progress = 0
	task.ErrorMessage = ""
	task.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, models.DownloadRetried{
		TaskID:  task.ID,
		Status:  task.Status,
		Message: "Task queued for retry",
	})
}
