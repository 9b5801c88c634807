package client

import (
	"context"
	"net/http"

	"github.com/org/stockdesk/pkg/models"
)

func (c *Client) creditCall(ctx context.Context, op string, body any) models.Envelope[models.CreditResult] {
	return request[models.CreditResult](ctx, c, call{
		resource: "credit." + op,
		method:   http.MethodPost,
		path:     "/api/credit/" + op,
		body:     body,
		auth:     authOptional,
	})
}

// SubscribeCredit grants a plan's credits to a user, replacing the balance.
func (c *Client) SubscribeCredit(ctx context.Context, req models.CreditSubscribeRequest) models.Envelope[models.CreditResult] {
	return c.creditCall(ctx, "subscribe", req)
}

// UpgradeCredit adds a plan's credits to a user's balance.
func (c *Client) UpgradeCredit(ctx context.Context, req models.CreditUpgradeRequest) models.Envelope[models.CreditResult] {
	return c.creditCall(ctx, "upgrade", req)
}

// ExtendCredit pushes back a user's expiry.
func (c *Client) ExtendCredit(ctx context.Context, req models.CreditExtendRequest) models.Envelope[models.CreditResult] {
	return c.creditCall(ctx, "extend", req)
}

// DeleteCredit removes a user's credits.
func (c *Client) DeleteCredit(ctx context.Context, req models.CreditDeleteRequest) models.Envelope[models.CreditResult] {
	return c.creditCall(ctx, "delete", req)
}

func (c *Client) CreditAnalytics(ctx context.Context) models.Envelope[models.CreditAnalytics] {
	return request[models.CreditAnalytics](ctx, c, call{
		resource: "credit.analytics",
		method:   http.MethodGet,
		path:     "/api/credit/analytics",
		auth:     authOptional,
	})
}

func (c *Client) CreditHistory(ctx context.Context) models.Envelope[[]models.CreditEvent] {
	return request[[]models.CreditEvent](ctx, c, call{
		resource: "credit.history",
		method:   http.MethodGet,
		path:     "/api/credit/history",
		auth:     authOptional,
	})
}
