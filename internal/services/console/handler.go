package console

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/message"

	"github.com/engagehq/console/internal/platform/requestctx"
	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/i18n"
	"github.com/engagehq/console/internal/services/console/policy"
	"github.com/engagehq/console/internal/services/console/routepath"
	"github.com/engagehq/console/internal/services/console/session"
	"github.com/engagehq/console/internal/services/console/static"
	"github.com/engagehq/console/internal/services/console/storage"
)

const (
	// auditListPageSize caps the number of audit events shown on the logs page.
	auditListPageSize = 100
	// minPasswordLength is the floor for new operator passwords.
	minPasswordLength = 6
	// lastLoginFormat renders last-login timestamps in tables.
	lastLoginFormat = "2006-01-02 15:04"
)

// Handler routes console requests. Authorization happens in the Gateway
// middleware before any handler runs; handlers only read the principal.
type Handler struct {
	store   storage.Store
	auth    *Authenticator
	codec   *session.Codec
	gateway *Gateway
}

// NewHandler wires the console's HTTP surface.
func NewHandler(store storage.Store, auth *Authenticator, codec *session.Codec, gateway *Gateway) *Handler {
	return &Handler{store: store, auth: auth, codec: codec, gateway: gateway}
}

// Routes builds the route table with the gateway guarding every request.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(routepath.StaticPrefix, http.StripPrefix(routepath.StaticPrefix, http.FileServer(http.FS(static.FS))))
	mux.Handle(routepath.Root, http.HandlerFunc(h.handleRoot))
	mux.Handle(routepath.SignIn, http.HandlerFunc(h.handleSignIn))
	mux.Handle(routepath.SignOut, http.HandlerFunc(h.handleSignOut))
	mux.Handle(routepath.Dashboard, h.sectionPage("Dashboard", "Engagement overview and recent activity."))
	mux.Handle(routepath.Users, h.sectionPage("Users", "Search and review end-user accounts."))
	mux.Handle(routepath.Tasks, h.sectionPage("Tasks", "Review and resolve moderation tasks."))
	mux.Handle(routepath.Engagement, h.sectionPage("Engagement", "Campaign and notification tooling."))
	mux.Handle(routepath.Admins, http.HandlerFunc(h.handleAdmins))
	mux.Handle(routepath.AdminsCreate, http.HandlerFunc(h.handleAdminCreate))
	mux.Handle(routepath.AdminsPrefix, http.HandlerFunc(h.handleAdminRoutes))
	mux.Handle(routepath.Profile, http.HandlerFunc(h.handleProfile))
	mux.Handle(routepath.ProfileChangePassword, http.HandlerFunc(h.handleChangePassword))
	mux.Handle(routepath.Logs, http.HandlerFunc(h.handleLogs))
	mux.Handle(routepath.Support, http.HandlerFunc(h.handleSupport))
	mux.Handle(routepath.Forbidden, http.HandlerFunc(h.handleForbidden))
	mux.Handle(routepath.APIPrefix+"health", http.HandlerFunc(h.handleHealth))
	return h.gateway.Guard(mux)
}

func (h *Handler) localizer(w http.ResponseWriter, r *http.Request) *message.Printer {
	tag, persist := i18n.ResolveTag(r)
	if persist {
		i18n.SetLanguageCookie(w, tag)
	}
	return i18n.Printer(tag)
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func currentPrincipal(r *http.Request) requestctx.Principal {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	return principal
}

// handleRoot sends the landing path to the dashboard. Any other unregistered
// path falls through here and 404s.
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routepath.Root {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, routepath.Dashboard, http.StatusFound)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(w, r)
	view := loginView{AppName: appName, Title: loc.Sprintf("Sign in")}

	if r.Method == http.MethodGet {
		h.render(w, "login.html", view)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		view.Error = loc.Sprintf("Invalid form submission.")
		h.render(w, "login.html", view)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	view.Email = email

	account, err := h.auth.Verify(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountBanned):
			view.Error = loc.Sprintf("Access denied. This account is banned.")
		case errors.Is(err, ErrAccountRestricted):
			view.Error = loc.Sprintf("Access denied. This account is restricted.")
		case errors.Is(err, ErrTooManyAttempts):
			view.Error = loc.Sprintf("Too many attempts. Try again in a moment.")
		default:
			view.Error = loc.Sprintf("Invalid email or password.")
		}
		h.render(w, "login.html", view)
		return
	}

	token, err := h.codec.Issue(session.Session{
		PrincipalID: account.ID,
		Name:        account.Name,
		Email:       account.Email,
		Role:        account.Role,
		Status:      account.Status,
	})
	if err != nil {
		log.Printf("issue session: %v", err)
		view.Error = loc.Sprintf("Sign-in failed. Try again.")
		h.render(w, "login.html", view)
		return
	}
	session.WriteCookie(w, token, h.codec.TTL())
	http.Redirect(w, r, routepath.Dashboard, http.StatusSeeOther)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session.ClearCookie(w)
	http.Redirect(w, r, routepath.SignIn, http.StatusSeeOther)
}

// sectionPage renders a titled placeholder page for a console section.
func (h *Handler) sectionPage(title, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := h.localizer(w, r)
		principal := currentPrincipal(r)
		h.render(w, "page.html", pageView{
			AppName: appName,
			Title:   loc.Sprintf(title),
			Name:    principal.Name,
			Role:    principal.Role,
			Body:    loc.Sprintf(body),
		})
	})
}

var roleOptions = []string{
	string(policy.RoleSuperAdmin),
	string(policy.RoleAdmin),
	string(policy.RoleModerator),
	string(policy.RoleSupport),
}

func (h *Handler) loadAdminsView(r *http.Request, loc *message.Printer, errMsg string) (adminsView, error) {
	principal := currentPrincipal(r)
	view := adminsView{
		AppName: appName,
		Title:   loc.Sprintf("Admins"),
		Name:    principal.Name,
		Error:   errMsg,
		Roles:   roleOptions,
	}
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		return view, err
	}
	for _, account := range accounts {
		lastLogin := loc.Sprintf("never")
		if !account.LastLogin.IsZero() {
			lastLogin = account.LastLogin.UTC().Format(lastLoginFormat)
		}
		view.Admins = append(view.Admins, adminRow{
			ID:        account.ID,
			Name:      account.Name,
			Email:     account.Email,
			Role:      string(account.Role),
			Status:    string(account.Status),
			LastLogin: lastLogin,
		})
	}
	return view, nil
}

func (h *Handler) handleAdmins(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(w, r)
	view, err := h.loadAdminsView(r, loc, r.URL.Query().Get("error"))
	if err != nil {
		log.Printf("list accounts: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, "admins.html", view)
}

func (h *Handler) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	loc := h.localizer(w, r)

	fail := func(msg string) {
		view, err := h.loadAdminsView(r, loc, msg)
		if err != nil {
			log.Printf("list accounts: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.render(w, "admins.html", view)
	}

	if err := r.ParseForm(); err != nil {
		fail(loc.Sprintf("Invalid form submission."))
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	role := policy.ParseRole(strings.TrimSpace(r.FormValue("role")))

	if name == "" || email == "" {
		fail(loc.Sprintf("Name and email are required."))
		return
	}
	if len(password) < minPasswordLength {
		fail(loc.Sprintf("Password must be at least %d characters.", minPasswordLength))
		return
	}
	if role == policy.RoleNone {
		fail(loc.Sprintf("Choose a valid role."))
		return
	}
	if _, err := h.store.GetAccountByEmail(r.Context(), email); err == nil {
		fail(loc.Sprintf("An admin with that email already exists."))
		return
	} else if !errors.Is(err, directory.ErrNotFound) {
		log.Printf("check email: %v", err)
		fail(loc.Sprintf("Could not create admin. Try again."))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("hash password: %v", err)
		fail(loc.Sprintf("Could not create admin. Try again."))
		return
	}
	account := directory.Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       policy.StatusActive,
	}
	if err := h.store.CreateAccount(r.Context(), account); err != nil {
		log.Printf("create account: %v", err)
		fail(loc.Sprintf("Could not create admin. Try again."))
		return
	}
	h.appendAudit(r, storage.AuditEvent{
		Action:    storage.AuditAccountNew,
		SubjectID: strings.ToLower(email),
		Detail:    string(role),
	})
	http.Redirect(w, r, routepath.Admins, http.StatusSeeOther)
}

// handleAdminRoutes dispatches POST actions of the form /admins/{id}/{action}.
func (h *Handler) handleAdminRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, routepath.AdminsPrefix)
	segments := strings.Split(rest, "/")
	if len(segments) != 2 || segments[0] == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	adminID := segments[0]
	switch segments[1] {
	case "ban-unban":
		h.toggleStatus(w, r, adminID, policy.StatusBanned)
	case "restrict":
		h.toggleStatus(w, r, adminID, policy.StatusRestricted)
	case "edit-role":
		h.editRole(w, r, adminID)
	default:
		http.NotFound(w, r)
	}
}

// toggleStatus flips an account between target and Active. Toggling your own
// account is rejected so an operator cannot lock themselves out by accident.
func (h *Handler) toggleStatus(w http.ResponseWriter, r *http.Request, adminID string, target policy.Status) {
	principal := currentPrincipal(r)
	if adminID == principal.ID {
		http.Redirect(w, r, routepath.Admins+"?error=You+cannot+change+your+own+status.", http.StatusSeeOther)
		return
	}
	account, err := h.store.GetAccount(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Printf("get account: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	next := target
	if account.Status == target {
		next = policy.StatusActive
	}
	if err := h.store.UpdateStatus(r.Context(), adminID, next); err != nil {
		log.Printf("update status: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.appendAudit(r, storage.AuditEvent{
		Action:    storage.AuditStatusChange,
		SubjectID: adminID,
		Detail:    string(account.Status) + " to " + string(next),
	})
	http.Redirect(w, r, routepath.Admins, http.StatusSeeOther)
}

func (h *Handler) editRole(w http.ResponseWriter, r *http.Request, adminID string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	role := policy.ParseRole(strings.TrimSpace(r.FormValue("role")))
	if role == policy.RoleNone {
		http.Redirect(w, r, routepath.Admins+"?error=Choose+a+valid+role.", http.StatusSeeOther)
		return
	}
	account, err := h.store.GetAccount(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Printf("get account: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if account.Role == role {
		http.Redirect(w, r, routepath.Admins, http.StatusSeeOther)
		return
	}
	if err := h.store.UpdateRole(r.Context(), adminID, role); err != nil {
		log.Printf("update role: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.appendAudit(r, storage.AuditEvent{
		Action:    storage.AuditRoleChange,
		SubjectID: adminID,
		Detail:    string(account.Role) + " to " + string(role),
	})
	http.Redirect(w, r, routepath.Admins, http.StatusSeeOther)
}

func (h *Handler) loadProfileView(r *http.Request, loc *message.Printer) (profileView, error) {
	principal := currentPrincipal(r)
	view := profileView{
		AppName: appName,
		Title:   loc.Sprintf("Profile"),
		Name:    principal.Name,
		Email:   principal.Email,
		Role:    principal.Role,
		Status:  principal.Status,
	}
	account, err := h.store.GetAccount(r.Context(), principal.ID)
	if err != nil {
		return view, err
	}
	view.Name = account.Name
	view.Email = account.Email
	view.Role = string(account.Role)
	view.Status = string(account.Status)
	return view, nil
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(w, r)
	view, err := h.loadProfileView(r, loc)
	if err != nil {
		log.Printf("load profile: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("changed") == "1" {
		view.Notice = loc.Sprintf("Password changed.")
	}
	h.render(w, "profile.html", view)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	loc := h.localizer(w, r)

	fail := func(msg string) {
		view, err := h.loadProfileView(r, loc)
		if err != nil {
			log.Printf("load profile: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		view.Error = msg
		h.render(w, "profile.html", view)
	}

	if err := r.ParseForm(); err != nil {
		fail(loc.Sprintf("Invalid form submission."))
		return
	}
	current := r.FormValue("current")
	next := r.FormValue("new")
	if len(next) < minPasswordLength {
		fail(loc.Sprintf("Password must be at least %d characters.", minPasswordLength))
		return
	}

	principal := currentPrincipal(r)
	account, err := h.store.GetAccount(r.Context(), principal.ID)
	if err != nil {
		log.Printf("get account: %v", err)
		fail(loc.Sprintf("Could not change password. Try again."))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		fail(loc.Sprintf("Current password is incorrect."))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("hash password: %v", err)
		fail(loc.Sprintf("Could not change password. Try again."))
		return
	}
	if err := h.store.UpdatePassword(r.Context(), account.ID, string(hash)); err != nil {
		log.Printf("update password: %v", err)
		fail(loc.Sprintf("Could not change password. Try again."))
		return
	}
	http.Redirect(w, r, routepath.Profile+"?changed=1", http.StatusSeeOther)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(w, r)
	principal := currentPrincipal(r)
	events, err := h.store.ListAuditEvents(r.Context(), auditListPageSize)
	if err != nil {
		log.Printf("list audit events: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	view := logsView{AppName: appName, Title: loc.Sprintf("Logs"), Name: principal.Name}
	for _, event := range events {
		view.Events = append(view.Events, auditRow{
			When:    event.CreatedAt.UTC().Format(time.DateTime),
			Actor:   event.ActorID,
			Action:  event.Action,
			Subject: event.SubjectID,
			Detail:  event.Detail,
		})
	}
	h.render(w, "logs.html", view)
}

func (h *Handler) handleSupport(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(w, r)
	principal := currentPrincipal(r)
	h.render(w, "page.html", pageView{
		AppName: appName,
		Title:   loc.Sprintf("Support"),
		Name:    principal.Name,
		Role:    principal.Role,
		Body:    loc.Sprintf("Your account has limited access. Contact a console administrator to restore it."),
	})
}

func (h *Handler) handleForbidden(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(w, r)
	principal := currentPrincipal(r)
	w.WriteHeader(http.StatusForbidden)
	h.render(w, "page.html", pageView{
		AppName: appName,
		Title:   loc.Sprintf("Forbidden"),
		Name:    principal.Name,
		Role:    principal.Role,
		Body:    loc.Sprintf("You do not have permission to view that page."),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		log.Printf("write health response: %v", err)
	}
}

// appendAudit records an event attributed to the current principal. Audit
// failures are logged, never surfaced; the action itself already succeeded.
func (h *Handler) appendAudit(r *http.Request, event storage.AuditEvent) {
	event.ActorID = currentPrincipal(r).ID
	if err := h.store.AppendAuditEvent(r.Context(), event); err != nil {
		log.Printf("append audit event: %v", err)
	}
}
