package console

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engagehq/console/internal/platform/timeouts"
	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/policy"
	"github.com/engagehq/console/internal/services/console/session"
)

// Enricher refreshes a session's role/status snapshot from the account
// directory so bans and role edits take effect without re-login.
type Enricher struct {
	dir     directory.Directory
	timeout time.Duration
}

// NewEnricher builds an enricher. timeout <= 0 falls back to the platform
// directory lookup budget.
func NewEnricher(dir directory.Directory, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = timeouts.DirectoryLookup
	}
	return &Enricher{dir: dir, timeout: timeout}
}

// Refresh overwrites the session's role and status with the directory's
// current values, leaving every other claim untouched.
//
// A directory miss downgrades the session to no role and unknown status: the
// principal keeps its identity but cannot prove any privilege. A directory
// failure returns an error; the caller must treat the request as
// unauthenticated rather than trust the stale token snapshot.
func (e *Enricher) Refresh(ctx context.Context, sess session.Session) (session.Session, error) {
	if e == nil || e.dir == nil {
		return session.Session{}, errors.New("enricher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	account, err := e.dir.Lookup(lookupCtx, sess.PrincipalID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			sess.Role = policy.RoleNone
			sess.Status = policy.StatusUnknown
			return sess, nil
		}
		return session.Session{}, fmt.Errorf("directory lookup: %w", err)
	}

	sess.Role = account.Role
	sess.Status = account.Status
	sess.Name = account.Name
	sess.Email = account.Email
	return sess, nil
}
