package backend

import "net/http"

// UserDataHandler handles GET /api/user
func (s *Server) UserDataHandler(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, userFromCtx(r.Context()))
}

// UsersListHandler handles GET /api/users
func (s *Server) UsersListHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, list(users))
}
