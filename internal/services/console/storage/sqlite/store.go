// Package sqlite implements the console's storage interfaces over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/engagehq/console/internal/platform/id"
	"github.com/engagehq/console/internal/platform/storage/sqlitemigrate"
	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/policy"
	consolestorage "github.com/engagehq/console/internal/services/console/storage"
	"github.com/engagehq/console/internal/services/console/storage/sqlite/migrations"
)

// defaultAuditListLimit caps audit listings when the caller passes no limit.
const defaultAuditListLimit = 100

// Store is a SQLite-backed account directory and audit trail.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens the store at path and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ensureDB() error {
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}
	return nil
}

// CreateAccount inserts a new operator account. The email is normalized to
// lowercase; the id is generated when absent.
func (s *Store) CreateAccount(ctx context.Context, account directory.Account) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.Name = strings.TrimSpace(account.Name)
	if account.Email == "" {
		return errors.New("email is required")
	}
	if account.Name == "" {
		return errors.New("name is required")
	}
	if account.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if account.ID == "" {
		generated, err := id.NewID()
		if err != nil {
			return fmt.Errorf("generate account id: %w", err)
		}
		account.ID = generated
	}
	if account.Status == policy.StatusUnknown {
		account.Status = policy.StatusActive
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now().UTC()
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, role, status, last_login, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, account.Email, account.PasswordHash,
		string(account.Role), string(account.Status),
		toMillis(account.LastLogin), toMillis(account.CreatedAt), toMillis(account.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const accountColumns = `id, name, email, password_hash, role, status, last_login, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (directory.Account, error) {
	var account directory.Account
	var role, status string
	var lastLogin, createdAt, updatedAt int64
	err := row.Scan(
		&account.ID, &account.Name, &account.Email, &account.PasswordHash,
		&role, &status, &lastLogin, &createdAt, &updatedAt,
	)
	if err != nil {
		return directory.Account{}, err
	}
	account.Role = policy.ParseRole(role)
	account.Status = policy.ParseStatus(status)
	account.LastLogin = fromMillis(lastLogin)
	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return account, nil
}

// GetAccount returns the account by id, or directory.ErrNotFound.
func (s *Store) GetAccount(ctx context.Context, accountID string) (directory.Account, error) {
	if err := s.ensureDB(); err != nil {
		return directory.Account{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.Account{}, directory.ErrNotFound
		}
		return directory.Account{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetAccountByEmail returns the account by email, or directory.ErrNotFound.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (directory.Account, error) {
	if err := s.ensureDB(); err != nil {
		return directory.Account{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.Account{}, directory.ErrNotFound
		}
		return directory.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context) ([]directory.Account, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []directory.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// UpdateRole sets the account's role.
func (s *Store) UpdateRole(ctx context.Context, accountID string, role policy.Role) error {
	return s.updateField(ctx, accountID, "role", string(role))
}

// UpdateStatus sets the account's status.
func (s *Store) UpdateStatus(ctx context.Context, accountID string, status policy.Status) error {
	return s.updateField(ctx, accountID, "status", string(status))
}

// UpdatePassword sets the account's password hash.
func (s *Store) UpdatePassword(ctx context.Context, accountID string, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return errors.New("password hash is required")
	}
	return s.updateField(ctx, accountID, "password_hash", passwordHash)
}

// updateField updates one account column and bumps updated_at.
func (s *Store) updateField(ctx context.Context, accountID, column, value string) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE accounts SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, toMillis(s.now().UTC()), accountID)
	if err != nil {
		return fmt.Errorf("update account %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account %s: %w", column, err)
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful sign-in time.
func (s *Store) TouchLastLogin(ctx context.Context, accountID string, at time.Time) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.now().UTC()
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE accounts SET last_login = ? WHERE id = ?`,
		toMillis(at), accountID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// Lookup implements directory.Directory.
func (s *Store) Lookup(ctx context.Context, principalID string) (directory.Account, error) {
	return s.GetAccount(ctx, principalID)
}

// AppendAuditEvent records one audit trail entry.
func (s *Store) AppendAuditEvent(ctx context.Context, event consolestorage.AuditEvent) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if strings.TrimSpace(event.Action) == "" {
		return errors.New("audit action is required")
	}
	if event.ID == "" {
		generated, err := id.NewID()
		if err != nil {
			return fmt.Errorf("generate audit id: %w", err)
		}
		event.ID = generated
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO audit_events (id, actor_id, action, subject_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.ActorID, event.Action, event.SubjectID, event.Detail, toMillis(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the newest events first, capped at limit.
func (s *Store) ListAuditEvents(ctx context.Context, limit int) ([]consolestorage.AuditEvent, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, actor_id, action, subject_id, detail, created_at
		FROM audit_events ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []consolestorage.AuditEvent
	for rows.Next() {
		var event consolestorage.AuditEvent
		var createdAt int64
		if err := rows.Scan(&event.ID, &event.ActorID, &event.Action, &event.SubjectID, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

var _ consolestorage.Store = (*Store)(nil)
