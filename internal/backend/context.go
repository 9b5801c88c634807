package backend

import (
	"context"

	"github.com/org/stockdesk/pkg/models"
)

type contextKey string

const (
	ctxKeyUser      contextKey = "user"
	ctxKeyRequestID contextKey = "request_id"
)

// withUser stores the account authMiddleware loaded for the access token.
// Handlers read this snapshot rather than the token, so role and credits are
// as of the start of the request.
func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// userFromCtx returns the authenticated account, or nil on public routes.
func userFromCtx(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxKeyUser).(*models.User)
	return u
}

func isAdmin(ctx context.Context) bool {
	u := userFromCtx(ctx)
	return u != nil && u.Role == models.RoleAdmin
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
