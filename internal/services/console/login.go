package console

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/policy"
	"github.com/engagehq/console/internal/services/console/storage"
)

// Credential verification failures surfaced to the sign-in page. Banned and
// restricted accounts get distinct messages at verification time.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBanned      = errors.New("access denied: account is banned")
	ErrAccountRestricted  = errors.New("access denied: account is restricted")
	ErrTooManyAttempts    = errors.New("too many sign-in attempts, try again later")
)

// loginAttemptInterval is the sustained rate allowed per identifier.
const loginAttemptInterval = 10 * time.Second

// loginAttemptBurst is the number of attempts allowed before throttling.
const loginAttemptBurst = 5

// loginLimiterCap bounds the tracked identifiers before a full reset.
const loginLimiterCap = 4096

// Authenticator verifies sign-in credentials against the account directory
// and records the outcome on the audit trail.
type Authenticator struct {
	accounts storage.AccountStore
	audit    storage.AuditStore
	limiter  *loginLimiter
	now      func() time.Time
}

// NewAuthenticator builds an authenticator over the account store.
func NewAuthenticator(accounts storage.AccountStore, audit storage.AuditStore, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	return &Authenticator{
		accounts: accounts,
		audit:    audit,
		limiter:  newLoginLimiter(),
		now:      now,
	}
}

// Verify authenticates one sign-in attempt. On success it stamps the
// account's last login and returns the directory record the session issuer
// snapshots into the token.
func (a *Authenticator) Verify(ctx context.Context, email, password string) (directory.Account, error) {
	if a == nil || a.accounts == nil {
		return directory.Account{}, errors.New("authenticator is not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return directory.Account{}, ErrInvalidCredentials
	}
	if !a.limiter.allow(email) {
		return directory.Account{}, ErrTooManyAttempts
	}

	account, err := a.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return directory.Account{}, ErrInvalidCredentials
		}
		return directory.Account{}, fmt.Errorf("verify credentials: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return directory.Account{}, ErrInvalidCredentials
	}

	switch account.Status {
	case policy.StatusBanned:
		a.recordAudit(ctx, storage.AuditEvent{
			ActorID: account.ID,
			Action:  storage.AuditSignInDenied,
			Detail:  string(policy.StatusBanned),
		})
		return directory.Account{}, ErrAccountBanned
	case policy.StatusRestricted:
		a.recordAudit(ctx, storage.AuditEvent{
			ActorID: account.ID,
			Action:  storage.AuditSignInDenied,
			Detail:  string(policy.StatusRestricted),
		})
		return directory.Account{}, ErrAccountRestricted
	}

	if err := a.accounts.TouchLastLogin(ctx, account.ID, a.now().UTC()); err != nil {
		// A failed stamp must not block an otherwise valid sign-in.
		log.Printf("console touch last login: %v", err)
	}
	a.recordAudit(ctx, storage.AuditEvent{ActorID: account.ID, Action: storage.AuditSignIn})
	return account, nil
}

func (a *Authenticator) recordAudit(ctx context.Context, event storage.AuditEvent) {
	if a.audit == nil {
		return
	}
	if err := a.audit.AppendAuditEvent(ctx, event); err != nil {
		log.Printf("console audit append: %v", err)
	}
}

// loginLimiter throttles attempts per identifier with a token bucket each.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.limiters) > loginLimiterCap {
		l.limiters = make(map[string]*rate.Limiter)
	}
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(loginAttemptInterval), loginAttemptBurst)
		l.limiters[key] = limiter
	}
	return limiter.Allow()
}
