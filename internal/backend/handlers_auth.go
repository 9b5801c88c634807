package backend

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/internal/auth"
	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

const minPasswordLen = 8

// reveal checks the freshness token and decodes the obfuscated password.
func (s *Server) reveal(freshness, credential string) (string, error) {
	if err := auth.CheckFreshness(freshness, s.now()); err != nil {
		if errors.Is(err, auth.ErrStaleRequest) {
			return "", fail(http.StatusBadRequest, errStaleRequest, "request expired, check your clock")
		}
		return "", fail(http.StatusBadRequest, errInvalidRequest, "malformed request token")
	}
	password, err := auth.RevealCredential(credential)
	if err != nil {
		return "", fail(http.StatusBadRequest, errInvalidRequest, "malformed credential")
	}
	return password, nil
}

// LoginHandler handles POST /api/auth/login
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	password, err := s.reveal(req.Token, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, storage.ErrNotFound) {
		writeFail(w, http.StatusUnauthorized, errInvalidCredentials, "invalid email or password")
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		log.Info().Str("user_id", user.ID).Msg("login rejected")
		writeFail(w, http.StatusUnauthorized, errInvalidCredentials, "invalid email or password")
		return
	}

	ttl := auth.SessionTTL
	if req.RememberMe {
		ttl = auth.RememberTTL
	}
	plaintext, _, err := s.tokens.Issue(ctx, user.ID, ttl)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, models.LoginResult{
		AccessToken: plaintext,
		Email:       user.Email,
		Message:     "Login successful",
	})
}

// RegisterHandler handles POST /api/auth/register
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := s.decode(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	password, err := s.reveal(req.Token, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if len(password) < minPasswordLen {
		writeFail(w, http.StatusUnprocessableEntity, errWeakPassword, "password must be at least 8 characters")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(req.Email),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleUser,
		CreatedAt:    s.now(),
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			writeFail(w, http.StatusConflict, errEmailTaken, "an account with this email already exists")
			return
		}
		writeErr(w, r, err)
		return
	}

	plaintext, _, err := s.tokens.Issue(ctx, user.ID, auth.SessionTTL)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	log.Info().Str("user_id", user.ID).Msg("account registered")
	writeOK(w, http.StatusCreated, models.LoginResult{
		AccessToken: plaintext,
		Email:       user.Email,
		Message:     "Registration successful",
	})
}

// LogoutHandler handles POST /api/auth/logout
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Revoke(r.Context(), bearerToken(r)); err != nil {
		writeErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, models.LogoutResult{Message: "Logged out"})
}
