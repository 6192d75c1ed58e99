package console

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/policy"
	"github.com/engagehq/console/internal/services/console/routepath"
	"github.com/engagehq/console/internal/services/console/session"
	"github.com/engagehq/console/internal/services/console/storage"
)

// fakeStore composes the in-memory account and audit fakes into a full Store.
type fakeStore struct {
	*fakeAccounts
	*fakeAudit
}

func (f *fakeStore) Lookup(ctx context.Context, principalID string) (directory.Account, error) {
	return f.GetAccount(ctx, principalID)
}

func (f *fakeStore) Close() error { return nil }

var _ storage.Store = (*fakeStore)(nil)

func newTestHandler(t *testing.T, accounts ...directory.Account) (http.Handler, *fakeStore, *session.Codec) {
	t.Helper()
	store := &fakeStore{
		fakeAccounts: newFakeAccounts(accounts...),
		fakeAudit:    &fakeAudit{},
	}
	codec, err := session.NewCodec(gatewayTestSecret, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	gateway := NewGateway(codec, NewEnricher(store, time.Second), policy.Default())
	auth := NewAuthenticator(store, store, nil)
	handler := NewHandler(store, auth, codec, gateway)
	return handler.Routes(), store, codec
}

func superAdminAccount(t *testing.T) directory.Account {
	t.Helper()
	return directory.Account{
		ID:           "root-1",
		Name:         "Root",
		Email:        "root@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
		Role:         policy.RoleSuperAdmin,
		Status:       policy.StatusActive,
	}
}

func postForm(t *testing.T, handler http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPage(t *testing.T, handler http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestSignInFlow(t *testing.T) {
	handler, store, _ := newTestHandler(t, superAdminAccount(t))

	rec := postForm(t, handler, routepath.SignIn, url.Values{
		"email":    {"root@example.com"},
		"password": {"correct horse"},
	}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != routepath.Dashboard {
		t.Fatalf("Location = %q, want %q", got, routepath.Dashboard)
	}
	cookie := sessionCookie(t, rec)

	page := getPage(t, handler, routepath.Dashboard, cookie)
	if page.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, want %d", page.Code, http.StatusOK)
	}
	if !strings.Contains(page.Body.String(), "Dashboard") {
		t.Fatal("dashboard page missing title")
	}

	stamped, _ := store.GetAccount(context.Background(), "root-1")
	if stamped.LastLogin.IsZero() {
		t.Fatal("sign-in did not stamp last login")
	}
}

func TestSignInWrongPassword(t *testing.T) {
	handler, _, _ := newTestHandler(t, superAdminAccount(t))

	rec := postForm(t, handler, routepath.SignIn, url.Values{
		"email":    {"root@example.com"},
		"password": {"wrong"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Invalid email or password") {
		t.Fatal("error message missing from sign-in page")
	}
}

func TestSignInBannedShowsDistinctMessage(t *testing.T) {
	banned := superAdminAccount(t)
	banned.Status = policy.StatusBanned
	handler, _, _ := newTestHandler(t, banned)

	rec := postForm(t, handler, routepath.SignIn, url.Values{
		"email":    {"root@example.com"},
		"password": {"correct horse"},
	}, nil)
	if !strings.Contains(rec.Body.String(), "banned") {
		t.Fatal("banned message missing from sign-in page")
	}
}

func TestSignOutClearsCookie(t *testing.T) {
	handler, _, codec := newTestHandler(t, superAdminAccount(t))
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.SignOut, nil, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("session cookie was not cleared")
	}
}

func TestRootRedirectsToDashboard(t *testing.T) {
	handler, _, codec := newTestHandler(t, superAdminAccount(t))
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := getPage(t, handler, routepath.Root, cookie)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if got := rec.Header().Get("Location"); got != routepath.Dashboard {
		t.Fatalf("Location = %q, want %q", got, routepath.Dashboard)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := getPage(t, handler, routepath.APIPrefix+"health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != `{"status":"ok"}` {
		t.Fatalf("body = %q, want ok payload", got)
	}
}

func TestForbiddenPageStatus(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := getPage(t, handler, routepath.Forbidden, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAdminCreate(t *testing.T) {
	handler, store, codec := newTestHandler(t, superAdminAccount(t))
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.AdminsCreate, url.Values{
		"name":     {"Sam"},
		"email":    {"sam@example.com"},
		"password": {"longenough"},
		"role":     {string(policy.RoleSupport)},
	}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusSeeOther, rec.Body.String())
	}

	created, err := store.GetAccountByEmail(context.Background(), "sam@example.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail() error = %v", err)
	}
	if created.Role != policy.RoleSupport {
		t.Fatalf("Role = %q, want %q", created.Role, policy.RoleSupport)
	}
	if created.Status != policy.StatusActive {
		t.Fatalf("Status = %q, want %q", created.Status, policy.StatusActive)
	}

	var audited bool
	for _, event := range store.fakeAudit.events {
		if event.Action == storage.AuditAccountNew && event.ActorID == "root-1" {
			audited = true
		}
	}
	if !audited {
		t.Fatal("account creation was not audited")
	}
}

func TestAdminCreateShortPassword(t *testing.T) {
	handler, _, codec := newTestHandler(t, superAdminAccount(t))
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.AdminsCreate, url.Values{
		"name":     {"Sam"},
		"email":    {"sam@example.com"},
		"password": {"shrt"},
		"role":     {string(policy.RoleSupport)},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want re-rendered form", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "at least") {
		t.Fatal("password length error missing")
	}
}

func TestAdminBanToggle(t *testing.T) {
	target := directory.Account{
		ID:           "adm-2",
		Name:         "Sam",
		Email:        "sam@example.com",
		PasswordHash: "x",
		Role:         policy.RoleSupport,
		Status:       policy.StatusActive,
	}
	handler, store, codec := newTestHandler(t, superAdminAccount(t), target)
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.AdminBanUnban("adm-2"), nil, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	banned, _ := store.GetAccount(context.Background(), "adm-2")
	if banned.Status != policy.StatusBanned {
		t.Fatalf("Status = %q, want %q", banned.Status, policy.StatusBanned)
	}

	postForm(t, handler, routepath.AdminBanUnban("adm-2"), nil, cookie)
	unbanned, _ := store.GetAccount(context.Background(), "adm-2")
	if unbanned.Status != policy.StatusActive {
		t.Fatalf("Status = %q, want %q after second toggle", unbanned.Status, policy.StatusActive)
	}

	var changes int
	for _, event := range store.fakeAudit.events {
		if event.Action == storage.AuditStatusChange && event.SubjectID == "adm-2" {
			changes++
		}
	}
	if changes != 2 {
		t.Fatalf("status-change audit events = %d, want 2", changes)
	}
}

func TestAdminCannotToggleOwnStatus(t *testing.T) {
	handler, store, codec := newTestHandler(t, superAdminAccount(t))
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.AdminBanUnban("root-1"), nil, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want redirect", rec.Code)
	}
	self, _ := store.GetAccount(context.Background(), "root-1")
	if self.Status != policy.StatusActive {
		t.Fatalf("Status = %q, want unchanged", self.Status)
	}
}

func TestAdminEditRole(t *testing.T) {
	target := directory.Account{
		ID:     "adm-2",
		Email:  "sam@example.com",
		Role:   policy.RoleSupport,
		Status: policy.StatusActive,
	}
	handler, store, codec := newTestHandler(t, superAdminAccount(t), target)
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.AdminEditRole("adm-2"), url.Values{
		"role": {string(policy.RoleModerator)},
	}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	updated, _ := store.GetAccount(context.Background(), "adm-2")
	if updated.Role != policy.RoleModerator {
		t.Fatalf("Role = %q, want %q", updated.Role, policy.RoleModerator)
	}
}

func TestChangePassword(t *testing.T) {
	handler, store, codec := newTestHandler(t, superAdminAccount(t))
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.ProfileChangePassword, url.Values{
		"current": {"correct horse"},
		"new":     {"battery staple"},
	}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusSeeOther, rec.Body.String())
	}
	updated, _ := store.GetAccount(context.Background(), "root-1")
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("battery staple")); err != nil {
		t.Fatalf("new password does not verify: %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	handler, _, codec := newTestHandler(t, superAdminAccount(t))
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := postForm(t, handler, routepath.ProfileChangePassword, url.Values{
		"current": {"wrong"},
		"new":     {"battery staple"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want re-rendered profile", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Current password is incorrect") {
		t.Fatal("wrong-current error missing")
	}
}

func TestLogsPageListsAuditTrail(t *testing.T) {
	handler, store, codec := newTestHandler(t, superAdminAccount(t))
	store.fakeAudit.events = append(store.fakeAudit.events, storage.AuditEvent{
		ActorID:   "root-1",
		Action:    storage.AuditSignIn,
		CreatedAt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
	})
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "root-1"})

	rec := getPage(t, handler, routepath.Logs, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), storage.AuditSignIn) {
		t.Fatal("audit action missing from logs page")
	}
}

func TestModeratorBlockedFromAdmins(t *testing.T) {
	moderator := directory.Account{
		ID:     "adm-3",
		Email:  "mod@example.com",
		Role:   policy.RoleModerator,
		Status: policy.StatusActive,
	}
	handler, _, codec := newTestHandler(t, moderator)
	cookie := issueCookie(t, codec, session.Session{PrincipalID: "adm-3"})

	rec := getPage(t, handler, routepath.Admins, cookie)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != routepath.Forbidden {
		t.Fatalf("Location = %q, want %q", got, routepath.Forbidden)
	}
}

func TestStaticAssetServed(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := getPage(t, handler, "/static/css/console.css", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/css") {
		t.Fatalf("Content-Type = %q, want css", rec.Header().Get("Content-Type"))
	}
}
