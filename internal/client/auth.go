package client

import (
	"context"
	"net/http"

	"github.com/org/stockdesk/internal/codec"
	"github.com/org/stockdesk/internal/session"
	"github.com/org/stockdesk/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	pathLogin    = "/api/auth/login"
	pathRegister = "/api/auth/register"
	pathLogout   = "/api/auth/logout"
)

// RegisterInput is what the registration form collects.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Login signs in and stores the returned token in the durable slot when
// rememberMe is set, otherwise in the tab-scoped slot. The password is sent
// only in its obfuscated form.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) models.Envelope[models.LoginResult] {
	body := models.LoginRequest{
		Email:      email,
		Password:   codec.EncodeCredential(password),
		Token:      c.fresh.Generate(),
		RememberMe: rememberMe,
	}
	env := request[models.LoginResult](ctx, c, call{
		resource: "auth.login",
		method:   http.MethodPost,
		path:     pathLogin,
		body:     body,
	})
	return c.keepSession(env, rememberMe)
}

// Register creates an account. The new session is kept for this tab only.
func (c *Client) Register(ctx context.Context, in RegisterInput) models.Envelope[models.LoginResult] {
	body := models.RegisterRequest{
		Email:     in.Email,
		Password:  codec.EncodeCredential(in.Password),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Token:     c.fresh.Generate(),
	}
	env := request[models.LoginResult](ctx, c, call{
		resource: "auth.register",
		method:   http.MethodPost,
		path:     pathRegister,
		body:     body,
	})
	return c.keepSession(env, false)
}

func (c *Client) keepSession(env models.Envelope[models.LoginResult], rememberMe bool) models.Envelope[models.LoginResult] {
	if !env.Success || env.Data == nil || env.Data.AccessToken == "" {
		return env
	}
	if err := c.sessions.Save(session.AuthSession{Token: env.Data.AccessToken, RememberMe: rememberMe}); err != nil {
		log.Warn().Err(err).Msg("storing session")
		return unknownFailure[models.LoginResult]()
	}
	return env
}

// Logout tells the backend to revoke the token, then clears both session
// slots whatever the backend answered.
func (c *Client) Logout(ctx context.Context) models.Envelope[models.LogoutResult] {
	env := request[models.LogoutResult](ctx, c, call{
		resource: "auth.logout",
		method:   http.MethodPost,
		path:     pathLogout,
		auth:     authOptional,
	})
	if err := c.sessions.Clear(); err != nil {
		log.Warn().Err(err).Msg("clearing session")
	}
	return env
}
