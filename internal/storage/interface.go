package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/stockdesk/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when trying to create a resource that already exists.
var ErrAlreadyExists = errors.New("already exists")

// ErrInsufficientCredits is returned when a charge would take a balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Backend defines the persistence interface for the reseller backend.
type Backend interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	SetUserCredits(ctx context.Context, id string, credits int, expiresAt *time.Time) error
	// AdjustCredits adds delta to the balance and returns the new balance.
	AdjustCredits(ctx context.Context, id string, delta int) (int, error)

	// Access tokens
	WriteAccessToken(ctx context.Context, token *models.AccessToken) error
	GetAccessToken(ctx context.Context, hash string) (*models.AccessToken, error)
	RevokeAccessToken(ctx context.Context, hash string) error

	// Credit history; an empty userID lists everything
	WriteCreditEvent(ctx context.Context, event *models.CreditEvent) error
	ListCreditEvents(ctx context.Context, userID string) ([]*models.CreditEvent, error)

	// Sites
	WriteSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id string) (*models.Site, error)
	DeleteSite(ctx context.Context, id string) error
	ListSites(ctx context.Context) ([]*models.Site, error)

	// Pricing
	WritePlan(ctx context.Context, plan *models.PricingPlan) error
	GetPlan(ctx context.Context, id string) (*models.PricingPlan, error)
	DeletePlan(ctx context.Context, id string) error
	ListPlans(ctx context.Context) ([]*models.PricingPlan, error)

	// Download tasks
	CreateTask(ctx context.Context, task *models.DownloadTask) error
	GetTask(ctx context.Context, id string) (*models.DownloadTask, error)
	UpdateTask(ctx context.Context, task *models.DownloadTask) error
	ListTasks(ctx context.Context, userID string) ([]*models.DownloadTask, error)
	ListTasksByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.DownloadTask, error)

	// Audit
	WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error

	// Lifecycle
	Close()
}
