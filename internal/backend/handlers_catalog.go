package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/org/stockdesk/pkg/models"
)

// siteHost extracts the bare host a site serves media from.
func siteHost(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fail(http.StatusUnprocessableEntity, errValidation, "url must be absolute")
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}

// SitesListHandler handles GET /api/sites
func (s *Server) SitesListHandler(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, list(sites))
}

// SiteAddHandler handles POST /api/sites/add
func (s *Server) SiteAddHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SiteAddRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	host, err := siteHost(req.URL)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	now := s.now()
	site := &models.Site{
		ID:        uuid.NewString(),
		Name:      req.Name,
		URL:       req.URL,
		Host:      host,
		Enabled:   req.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.WriteSite(r.Context(), site); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, site)
}

// SiteEditHandler handles POST /api/sites/edit
func (s *Server) SiteEditHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SiteEditRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	site, err := s.store.GetSite(r.Context(), req.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	host, err := siteHost(req.URL)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	site.Name = req.Name
	site.URL = req.URL
	site.Host = host
	site.Enabled = req.Enabled
	site.UpdatedAt = s.now()
	if err := s.store.WriteSite(r.Context(), site); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, site)
}

// SiteDeleteHandler handles POST /api/sites/delete
func (s *Server) SiteDeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SiteDeleteRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.store.DeleteSite(r.Context(), req.ID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, models.MessageResult{Message: "Site deleted"})
}

// PricingListHandler handles GET /api/pricing
func (s *Server) PricingListHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.ListPlans(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, list(plans))
}

// PricingAddHandler handles POST /api/pricing/add
func (s *Server) PricingAddHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PricingAddRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	now := s.now()
	plan := &models.PricingPlan{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Credits:      req.Credits,
		Price:        req.Price,
		ValidityDays: req.ValidityDays,
		Description:  req.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.WritePlan(r.Context(), plan); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, plan)
}

// PricingEditHandler handles POST /api/pricing/edit
func (s *Server) PricingEditHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PricingEditRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	plan, err := s.store.GetPlan(r.Context(), req.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	plan.Name = req.Name
	plan.Credits = req.Credits
	plan.Price = req.Price
	plan.ValidityDays = req.ValidityDays
	plan.Description = req.Description
	plan.UpdatedAt = s.now()
	if err := s.store.WritePlan(r.Context(), plan); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, plan)
}

// PricingDeleteHandler handles POST /api/pricing/delete
func (s *Server) PricingDeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PricingDeleteRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.store.DeletePlan(r.Context(), req.ID); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, models.MessageResult{Message: "Pricing plan deleted"})
}
