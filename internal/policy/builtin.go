package policy

import (
	"context"

	"github.com/org/stockdesk/pkg/models"
)

// Set is a fixed collection of policies keyed by name.
type Set map[string]*Policy

// GetPolicy implements PolicyGetter.
func (s Set) GetPolicy(_ context.Context, name string) (*Policy, error) {
	if p, ok := s[name]; ok {
		return p, nil
	}
	return nil, ErrUnknownPolicy
}

// Builtin returns the role policies the backend ships with. Admins may do
// everything. Users may read their own account and credit history, browse
// sites and pricing, manage their own downloads and log out.
func Builtin() Set {
	rw := PathRule{Capabilities: []string{CapRead, CapWrite}}
	ro := PathRule{Capabilities: []string{CapRead}}
	return Set{
		string(models.RoleAdmin): {
			Name:  string(models.RoleAdmin),
			Rules: map[string]PathRule{"*": rw},
		},
		string(models.RoleUser): {
			Name: string(models.RoleUser),
			Rules: map[string]PathRule{
				"api/user":           ro,
				"api/credit/history": ro,
				"api/sites":          ro,
				"api/pricing":        ro,
				"api/downloads/**":   rw,
				"api/auth/logout":    {Capabilities: []string{CapWrite}},
			},
		},
	}
}
