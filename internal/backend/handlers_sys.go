package backend

import "net/http"

// HealthHandler handles GET /api/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]string{"status": "ok"})
}
