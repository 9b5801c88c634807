package models

import "time"

// Site is a stock-media source the platform resells downloads from.
type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Host      string    `json:"host"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SiteAddRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	URL     string `json:"url" validate:"required,url"`
	Enabled bool   `json:"enabled"`
}

type SiteEditRequest struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required,max=100"`
	URL     string `json:"url" validate:"required,url"`
	Enabled bool   `json:"enabled"`
}

type SiteDeleteRequest struct {
	ID string `json:"id" validate:"required"`
}

// PricingPlan is a purchasable credit bundle.
type PricingPlan struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Credits      int       `json:"credits"`
	Price        float64   `json:"price"`
	ValidityDays int       `json:"validity_days"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PricingAddRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Credits      int     `json:"credits" validate:"required,gt=0"`
	Price        float64 `json:"price" validate:"gte=0"`
	ValidityDays int     `json:"validity_days" validate:"required,gt=0"`
	Description  string  `json:"description" validate:"max=500"`
}

type PricingEditRequest struct {
	ID           string  `json:"id" validate:"required"`
	Name         string  `json:"name" validate:"required,max=100"`
	Credits      int     `json:"credits" validate:"required,gt=0"`
	Price        float64 `json:"price" validate:"gte=0"`
	ValidityDays int     `json:"validity_days" validate:"required,gt=0"`
	Description  string  `json:"description" validate:"max=500"`
}

type PricingDeleteRequest struct {
	ID string `json:"id" validate:"required"`
}
