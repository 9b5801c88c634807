package models

import "time"

// CreditAction names a change to a user's credit balance.
type CreditAction string

const (
	CreditSubscribe CreditAction = "subscribe"
	CreditUpgrade   CreditAction = "upgrade"
	CreditExtend    CreditAction = "extend"
	CreditDelete    CreditAction = "delete"
	CreditDownload  CreditAction = "download"
)

type CreditSubscribeRequest struct {
	Email  string `json:"email" validate:"required,email"`
	PlanID string `json:"plan_id" validate:"required"`
}

type CreditUpgradeRequest struct {
	Email  string `json:"email" validate:"required,email"`
	PlanID string `json:"plan_id" validate:"required"`
}

type CreditExtendRequest struct {
	Email string `json:"email" validate:"required,email"`
	Days  int    `json:"days" validate:"required,gt=0,lte=3650"`
}

type CreditDeleteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CreditResult is the balance of a user after a credit operation.
type CreditResult struct {
	Email     string     `json:"email"`
	Credits   int        `json:"credits"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message"`
}

// CreditEvent is one entry of the credit history.
type CreditEvent struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Email     string       `json:"email"`
	Action    CreditAction `json:"action"`
	Amount    int          `json:"amount"`
	Days      int          `json:"days,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// CreditAnalytics aggregates credit usage across the platform.
type CreditAnalytics struct {
	TotalUsers          int `json:"total_users"`
	ActiveSubscriptions int `json:"active_subscriptions"`
	CreditsOutstanding  int `json:"credits_outstanding"`
	CreditsGranted      int `json:"credits_granted"`
	CreditsSpent        int `json:"credits_spent"`
}
