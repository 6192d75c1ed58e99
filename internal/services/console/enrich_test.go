package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/policy"
	"github.com/engagehq/console/internal/services/console/session"
)

// fakeDirectory serves canned accounts keyed by principal ID.
type fakeDirectory struct {
	accounts map[string]directory.Account
	err      error
	block    bool
}

func (f *fakeDirectory) Lookup(ctx context.Context, principalID string) (directory.Account, error) {
	if f.block {
		<-ctx.Done()
		return directory.Account{}, ctx.Err()
	}
	if f.err != nil {
		return directory.Account{}, f.err
	}
	account, ok := f.accounts[principalID]
	if !ok {
		return directory.Account{}, directory.ErrNotFound
	}
	return account, nil
}

func TestRefreshOverwritesSnapshot(t *testing.T) {
	dir := &fakeDirectory{accounts: map[string]directory.Account{
		"adm-1": {
			ID:     "adm-1",
			Name:   "Dana",
			Email:  "dana@example.com",
			Role:   policy.RoleSupport,
			Status: policy.StatusRestricted,
		},
	}}
	enricher := NewEnricher(dir, time.Second)

	stale := session.Session{
		PrincipalID: "adm-1",
		Name:        "Old Name",
		Email:       "old@example.com",
		Role:        policy.RoleSuperAdmin,
		Status:      policy.StatusActive,
		IssuedAt:    time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	got, err := enricher.Refresh(context.Background(), stale)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got.Role != policy.RoleSupport {
		t.Fatalf("Role = %q, want %q", got.Role, policy.RoleSupport)
	}
	if got.Status != policy.StatusRestricted {
		t.Fatalf("Status = %q, want %q", got.Status, policy.StatusRestricted)
	}
	if got.Name != "Dana" || got.Email != "dana@example.com" {
		t.Fatalf("identity = %q/%q, want refreshed values", got.Name, got.Email)
	}
	if !got.ExpiresAt.Equal(stale.ExpiresAt) {
		t.Fatalf("ExpiresAt changed: got %v, want %v", got.ExpiresAt, stale.ExpiresAt)
	}
}

func TestRefreshDowngradesMissingAccount(t *testing.T) {
	enricher := NewEnricher(&fakeDirectory{}, time.Second)

	got, err := enricher.Refresh(context.Background(), session.Session{
		PrincipalID: "gone",
		Role:        policy.RoleAdmin,
		Status:      policy.StatusActive,
	})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got.PrincipalID != "gone" {
		t.Fatalf("PrincipalID = %q, want %q", got.PrincipalID, "gone")
	}
	if got.Role != policy.RoleNone {
		t.Fatalf("Role = %q, want none", got.Role)
	}
	if got.Status != policy.StatusUnknown {
		t.Fatalf("Status = %q, want unknown", got.Status)
	}
}

func TestRefreshPropagatesDirectoryFailure(t *testing.T) {
	dirErr := errors.New("directory down")
	enricher := NewEnricher(&fakeDirectory{err: dirErr}, time.Second)

	if _, err := enricher.Refresh(context.Background(), session.Session{PrincipalID: "adm-1"}); !errors.Is(err, dirErr) {
		t.Fatalf("Refresh() error = %v, want wrapped %v", err, dirErr)
	}
}

func TestRefreshTimesOut(t *testing.T) {
	enricher := NewEnricher(&fakeDirectory{block: true}, 10*time.Millisecond)

	if _, err := enricher.Refresh(context.Background(), session.Session{PrincipalID: "adm-1"}); err == nil {
		t.Fatal("Refresh() error = nil, want timeout")
	}
}
