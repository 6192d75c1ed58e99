// Package directory defines the account directory: the source of truth for
// each operator's role and status. Management flows mutate it; the gateway
// only reads it while refreshing a session's snapshot.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/engagehq/console/internal/services/console/policy"
)

// ErrNotFound reports a principal with no directory record.
var ErrNotFound = errors.New("directory: account not found")

// Account is one operator's authorization record plus display attributes.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         policy.Role
	Status       policy.Status
	LastLogin    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Directory resolves current authorization state for a principal.
type Directory interface {
	// Lookup returns the account for the principal ID, or ErrNotFound.
	Lookup(ctx context.Context, principalID string) (Account, error)
}
