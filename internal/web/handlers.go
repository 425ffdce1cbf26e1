package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/muse/internal/auth"
	"github.com/justestif/muse/internal/capsule"
	"github.com/justestif/muse/internal/catalog"
	"github.com/justestif/muse/internal/closet"
	"github.com/justestif/muse/internal/logger"
)

const (
	stateCookieName    = "oauth_state"
	callbackCookieName = "oauth_callback"
	oauthCookieMaxAge  = 300
	signInTimeout      = 10 * time.Second
)

// IdentityProvider is the external sign-in provider.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identity(ctx context.Context, token *oauth2.Token) (auth.Identity, error)
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	log       *logger.Logger
	baseURL   string
	catalog   *catalog.Catalog
	closets   *closet.Store
	waitlist  auth.Waitlist
	signIn    *auth.SignIn
	provider  IdentityProvider
	sessions  SessionManager
	templates *Templates
	capsules  capsule.Config
}

// closetFor returns the closet of the requesting device.
func (h *Handlers) closetFor(r *http.Request) *closet.Closet {
	return h.closets.For(DeviceID(r.Context()))
}

func (h *Handlers) pageData(r *http.Request, title string) PageData {
	data := PageData{Title: title, CurrentPath: r.URL.Path}
	if s := h.sessions.GetFromRequest(r); s != nil {
		data.User = &UserData{ID: s.UserID, Name: s.Name, Email: s.Email}
	}
	return data
}

func (h *Handlers) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, page, data); err != nil {
		h.log.Error("rendering template failed", "page", page, "error", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := HomePageData{PageData: h.pageData(r, "Muse")}
	data.Authenticated = data.User != nil

	profile, err := h.closetFor(r).Profile(r.Context())
	if err != nil {
		h.log.Warn("loading profile failed", "error", err)
	}
	if profile != nil && profile.OnboardingComplete {
		for _, a := range profile.Aesthetic {
			data.Aesthetics = append(data.Aesthetics, h.catalog.AestheticLabel(a))
		}
		data.Items = h.catalog.ForAesthetics(profile.Aesthetic)
	} else {
		data.Items = h.catalog.Items()
	}

	h.render(w, "home", data)
}

// LoginPage shows the sign-in page (GET /login).
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := LoginPageData{
		PageData:      h.pageData(r, "Sign in"),
		SignInEnabled: h.provider != nil,
	}
	if r.URL.Query().Get("error") != "" {
		data.Flash = &FlashMessage{Type: "error", Message: "Sign-in failed. Please try again."}
	}
	h.render(w, "login", data)
}

// AlreadyRegistered shows the post-sign-in landing page (GET /already-registered).
func (h *Handlers) AlreadyRegistered(w http.ResponseWriter, r *http.Request) {
	h.render(w, "already-registered", h.pageData(r, "You're on the list"))
}

// ComingSoon shows the waitlist page (GET /coming-soon).
func (h *Handlers) ComingSoon(w http.ResponseWriter, r *http.Request) {
	h.render(w, "coming-soon", h.pageData(r, "Coming soon"))
}

// Login initiates the Google OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.Redirect(w, r, auth.PathLogin+"?"+auth.LoginErrorQuery, http.StatusTemporaryRedirect)
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	setShortCookie(w, stateCookieName, state)
	if target := r.URL.Query().Get("callbackUrl"); target != "" {
		setShortCookie(w, callbackCookieName, target)
	}

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow (GET /auth/callback). The sign-in
// chain runs before the session is created; its waitlist failures never
// block the sign-in.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	fail := func(reason string, err error) {
		h.log.Warn("sign-in failed", "reason", reason, "error", err)
		http.Redirect(w, r, auth.Redirect("error", h.baseURL), http.StatusTemporaryRedirect)
	}

	if h.provider == nil {
		fail("provider disabled", auth.ErrMissingCredentials)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		fail("state", auth.ErrStateMismatch)
		return
	}
	clearShortCookie(w, stateCookieName)

	if e := r.URL.Query().Get("error"); e != "" {
		fail("provider error: "+e, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), signInTimeout)
	defer cancel()

	token, err := h.provider.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		fail("exchange", err)
		return
	}

	id, err := h.provider.Identity(ctx, token)
	if err != nil {
		fail("identity", err)
		return
	}

	if !h.signIn.Allow(ctx, id) {
		fail("rejected", auth.ErrIncompleteIdentity)
		return
	}

	session, err := h.sessions.Create(ctx, id)
	if err != nil {
		h.log.Error("creating session failed", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, session)
	h.log.Info("user signed in", "user_id", session.UserID)

	target := ""
	if c, err := r.Cookie(callbackCookieName); err == nil {
		target = c.Value
		clearShortCookie(w, callbackCookieName)
	}
	http.Redirect(w, r, auth.Redirect(target, h.baseURL), http.StatusTemporaryRedirect)
}

// CheckStatus routes signed-in users to a fixed destination
// (GET /auth/check-status).
func (h *Handlers) CheckStatus(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, strings.TrimRight(h.baseURL, "/")+"/already-registered", http.StatusTemporaryRedirect)
}

// Logout ends the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func setShortCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   oauthCookieMaxAge,
	})
}

func clearShortCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
