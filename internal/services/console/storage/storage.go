// Package storage declares the persistence interfaces the console depends
// on, keeping handlers and the gateway decoupled from the SQLite driver.
package storage

import (
	"context"
	"time"

	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/policy"
)

// AuditEvent is one append-only record of a security-relevant action.
type AuditEvent struct {
	ID        string
	ActorID   string
	Action    string
	SubjectID string
	Detail    string
	CreatedAt time.Time
}

// Audit action names recorded by the console.
const (
	AuditSignIn       = "sign-in"
	AuditSignInDenied = "sign-in-denied"
	AuditStatusChange = "status-change"
	AuditRoleChange   = "role-change"
	AuditAccountNew   = "account-created"
)

// AccountStore persists operator accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account directory.Account) error
	GetAccount(ctx context.Context, id string) (directory.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (directory.Account, error)
	ListAccounts(ctx context.Context) ([]directory.Account, error)
	UpdateRole(ctx context.Context, id string, role policy.Role) error
	UpdateStatus(ctx context.Context, id string, status policy.Status) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// AuditStore persists the audit trail.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, event AuditEvent) error
	ListAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error)
}

// Store is the full persistence surface of the console process.
type Store interface {
	AccountStore
	AuditStore
	directory.Directory
	Close() error
}
