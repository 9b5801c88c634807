package client

import (
	"context"
	"net/http"

	"github.com/org/stockdesk/pkg/models"
)

// UserData returns the signed-in user.
func (c *Client) UserData(ctx context.Context) models.Envelope[models.User] {
	return request[models.User](ctx, c, call{
		resource: "user.get",
		method:   http.MethodGet,
		path:     "/api/user",
		auth:     authOptional,
	})
}

// ListUsers returns every account. Admin only.
func (c *Client) ListUsers(ctx context.Context) models.Envelope[[]models.User] {
	return request[[]models.User](ctx, c, call{
		resource: "user.list",
		method:   http.MethodGet,
		path:     "/api/users",
		auth:     authOptional,
	})
}
