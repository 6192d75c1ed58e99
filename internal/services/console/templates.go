package console

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// appName is the product name shown on console pages.
const appName = "Engage Console"

// loginView feeds the sign-in page.
type loginView struct {
	AppName string
	Title   string
	Error   string
	Email   string
}

// pageView feeds the simple titled pages (dashboard, sections, support, 403).
type pageView struct {
	AppName string
	Title   string
	Name    string
	Role    string
	Body    string
}

// adminRow is one formatted account line on the admins page.
type adminRow struct {
	ID        string
	Name      string
	Email     string
	Role      string
	Status    string
	LastLogin string
}

// adminsView feeds the admins management page.
type adminsView struct {
	AppName string
	Title   string
	Name    string
	Error   string
	Admins  []adminRow
	Roles   []string
}

// profileView feeds the operator's own profile page.
type profileView struct {
	AppName string
	Title   string
	Name    string
	Email   string
	Role    string
	Status  string
	Error   string
	Notice  string
}

// auditRow is one formatted audit trail line.
type auditRow struct {
	When    string
	Actor   string
	Action  string
	Subject string
	Detail  string
}

// logsView feeds the audit log page.
type logsView struct {
	AppName string
	Title   string
	Name    string
	Events  []auditRow
}
