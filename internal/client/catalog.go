package client

import (
	"context"
	"net/http"

	"github.com/org/stockdesk/pkg/models"
)

func post[T any](ctx context.Context, c *Client, resource, path string, body any) models.Envelope[T] {
	return request[T](ctx, c, call{
		resource: resource,
		method:   http.MethodPost,
		path:     path,
		body:     body,
		auth:     authOptional,
	})
}

func get[T any](ctx context.Context, c *Client, resource, path string) models.Envelope[T] {
	return request[T](ctx, c, call{
		resource: resource,
		method:   http.MethodGet,
		path:     path,
		auth:     authOptional,
	})
}

// --- sites ---

func (c *Client) AddSite(ctx context.Context, req models.SiteAddRequest) models.Envelope[models.Site] {
	return post[models.Site](ctx, c, "site.add", "/api/sites/add", req)
}

func (c *Client) EditSite(ctx context.Context, req models.SiteEditRequest) models.Envelope[models.Site] {
	return post[models.Site](ctx, c, "site.edit", "/api/sites/edit", req)
}

func (c *Client) DeleteSite(ctx context.Context, id string) models.Envelope[models.MessageResult] {
	return post[models.MessageResult](ctx, c, "site.delete", "/api/sites/delete", models.SiteDeleteRequest{ID: id})
}

func (c *Client) ListSites(ctx context.Context) models.Envelope[[]models.Site] {
	return get[[]models.Site](ctx, c, "site.list", "/api/sites")
}

// --- pricing ---

func (c *Client) AddPricing(ctx context.Context, req models.PricingAddRequest) models.Envelope[models.PricingPlan] {
	return post[models.PricingPlan](ctx, c, "pricing.add", "/api/pricing/add", req)
}

func (c *Client) EditPricing(ctx context.Context, req models.PricingEditRequest) models.Envelope[models.PricingPlan] {
	return post[models.PricingPlan](ctx, c, "pricing.edit", "/api/pricing/edit", req)
}

func (c *Client) DeletePricing(ctx context.Context, id string) models.Envelope[models.MessageResult] {
	return post[models.MessageResult](ctx, c, "pricing.delete", "/api/pricing/delete", models.PricingDeleteRequest{ID: id})
}

func (c *Client) ListPricing(ctx context.Context) models.Envelope[[]models.PricingPlan] {
	return get[[]models.PricingPlan](ctx, c, "pricing.list", "/api/pricing")
}
