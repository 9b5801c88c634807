package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/org/stockdesk/pkg/models"
)

const day = 24 * time.Hour

// creditChange applies a balance change and appends the matching event.
func (s *Server) creditChange(ctx context.Context, u *models.User, action models.CreditAction, credits int, expires *time.Time, days int) (*models.CreditResult, error) {
	if err := s.store.SetUserCredits(ctx, u.ID, credits, expires); err != nil {
		return nil, err
	}
	event := &models.CreditEvent{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Email:     u.Email,
		Action:    action,
		Amount:    credits - u.Credits,
		Days:      days,
		CreatedAt: s.now(),
	}
	if err := s.store.WriteCreditEvent(ctx, event); err != nil {
		return nil, err
	}
	return &models.CreditResult{
		Email:     u.Email,
		Credits:   credits,
		ExpiresAt: expires,
		Message:   "Credit " + string(action) + " applied",
	}, nil
}

func (s *Server) userAndPlan(ctx context.Context, email, planID string) (*models.User, *models.PricingPlan, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, err
	}
	p, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	return u, p, nil
}

// CreditSubscribeHandler handles POST /api/credit/subscribe
func (s *Server) CreditSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreditSubscribeRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	u, plan, err := s.userAndPlan(r.Context(), req.Email, req.PlanID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	expires := s.now().Add(time.Duration(plan.ValidityDays) * day)
	res, err := s.creditChange(r.Context(), u, models.CreditSubscribe, plan.Credits, &expires, plan.ValidityDays)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res)
}

// CreditUpgradeHandler handles POST /api/credit/upgrade
func (s *Server) CreditUpgradeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreditUpgradeRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	u, plan, err := s.userAndPlan(r.Context(), req.Email, req.PlanID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	expires := s.now().Add(time.Duration(plan.ValidityDays) * day)
	if u.ExpiresAt != nil && u.ExpiresAt.After(expires) {
		expires = *u.ExpiresAt
	}
	res, err := s.creditChange(r.Context(), u, models.CreditUpgrade, u.Credits+plan.Credits, &expires, plan.ValidityDays)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res)
}

// CreditExtendHandler handles POST /api/credit/extend
func (s *Server) CreditExtendHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreditExtendRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	base := s.now()
	if u.ExpiresAt != nil && u.ExpiresAt.After(base) {
		base = *u.ExpiresAt
	}
	expires := base.Add(time.Duration(req.Days) * day)
	res, err := s.creditChange(r.Context(), u, models.CreditExtend, u.Credits, &expires, req.Days)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res)
}

// CreditDeleteHandler handles POST /api/credit/delete
func (s *Server) CreditDeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreditDeleteRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	res, err := s.creditChange(r.Context(), u, models.CreditDelete, 0, nil, 0)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res)
}

// CreditAnalyticsHandler handles GET /api/credit/analytics
func (s *Server) CreditAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	events, err := s.store.ListCreditEvents(ctx, "")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	now := s.now()
	var a models.CreditAnalytics
	a.TotalUsers = len(users)
	for _, u := range users {
		a.CreditsOutstanding += u.Credits
		if u.SubscriptionActive(now) {
			a.ActiveSubscriptions++
		}
	}
	for _, e := range events {
		switch e.Action {
		case models.CreditSubscribe, models.CreditUpgrade:
			if e.Amount > 0 {
				a.CreditsGranted += e.Amount
			}
		case models.CreditDownload:
			a.CreditsSpent -= e.Amount
		}
	}
	writeOK(w, http.StatusOK, a)
}

// CreditHistoryHandler handles GET /api/credit/history. Admins see every
// event, users only their own.
func (s *Server) CreditHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromCtx(r.Context())
	filter := user.ID
	if isAdmin(r.Context()) {
		filter = ""
	}
	events, err := s.store.ListCreditEvents(r.Context(), filter)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, list(events))
}
