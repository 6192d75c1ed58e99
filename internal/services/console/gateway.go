package console

import (
	"log"
	"net/http"
	"time"

	"github.com/engagehq/console/internal/platform/requestctx"
	"github.com/engagehq/console/internal/services/console/policy"
	"github.com/engagehq/console/internal/services/console/routepath"
	"github.com/engagehq/console/internal/services/console/session"
)

// Gateway intercepts every request: it decodes the session, refreshes the
// role/status snapshot through the enricher, evaluates the route policy, and
// either forwards the request or redirects it.
type Gateway struct {
	codec    *session.Codec
	enricher *Enricher
	policy   policy.RoutePolicy
}

// NewGateway builds the gateway middleware.
func NewGateway(codec *session.Codec, enricher *Enricher, routePolicy policy.RoutePolicy) *Gateway {
	return &Gateway{codec: codec, enricher: enricher, policy: routePolicy}
}

// Guard wraps next with the authorization pipeline.
func (g *Gateway) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if policy.IsBypassPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		subject := policy.Subject{}
		var sess session.Session
		if token := session.TokenFromRequest(r); token != "" {
			decoded, err := g.codec.Parse(token)
			if err != nil {
				// Tampered or expired token: drop it and continue
				// as unauthenticated.
				session.ClearCookie(w)
			} else {
				refreshed, err := g.enricher.Refresh(r.Context(), decoded)
				if err != nil {
					// Directory unreachable: fail closed. The
					// login redirect is indistinguishable from a
					// plain expired session on purpose.
					log.Printf("console gateway enrich: %v", err)
					session.ClearCookie(w)
					http.Redirect(w, r, routepath.SignIn, http.StatusFound)
					return
				}
				sess = refreshed
				subject = policy.Subject{
					Authenticated: true,
					Role:          sess.Role,
					Status:        sess.Status,
				}
			}
		}

		switch g.decide(subject, path) {
		case policy.DecisionAllow:
			if subject.Authenticated {
				g.rewriteCookie(w, sess)
				ctx := requestctx.WithPrincipal(r.Context(), requestctx.Principal{
					ID:     sess.PrincipalID,
					Name:   sess.Name,
					Email:  sess.Email,
					Role:   string(sess.Role),
					Status: string(sess.Status),
				})
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		case policy.DecisionLogin:
			http.Redirect(w, r, routepath.SignIn, http.StatusFound)
		case policy.DecisionLimitedArea:
			g.rewriteCookie(w, sess)
			http.Redirect(w, r, g.policy.LimitedArea(), http.StatusFound)
		case policy.DecisionForbidden:
			g.rewriteCookie(w, sess)
			http.Redirect(w, r, routepath.Forbidden, http.StatusFound)
		case policy.DecisionDashboard:
			http.Redirect(w, r, routepath.Dashboard, http.StatusFound)
		default:
			http.Redirect(w, r, routepath.SignIn, http.StatusFound)
		}
	})
}

// decide evaluates the policy and converts any panic into the safest
// outcome, so no failure inside the decision escapes the gateway.
func (g *Gateway) decide(subject policy.Subject, path string) (decision policy.Decision) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("console gateway decide panic: %v", recovered)
			decision = policy.DecisionLogin
		}
	}()
	return g.policy.Decide(subject, path)
}

// rewriteCookie sends the refreshed snapshot back to the browser without
// extending the session's lifetime.
func (g *Gateway) rewriteCookie(w http.ResponseWriter, sess session.Session) {
	if sess.PrincipalID == "" {
		return
	}
	token, err := g.codec.Reissue(sess)
	if err != nil {
		log.Printf("console gateway reissue: %v", err)
		return
	}
	remaining := time.Until(sess.ExpiresAt)
	if remaining <= 0 {
		return
	}
	session.WriteCookie(w, token, remaining)
}
