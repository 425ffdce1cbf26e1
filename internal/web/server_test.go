package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/justestif/muse/internal/auth"
	"github.com/justestif/muse/internal/catalog"
	"github.com/justestif/muse/internal/closet"
	"github.com/justestif/muse/internal/storage"
	"github.com/justestif/muse/internal/waitlist"
	webfs "github.com/justestif/muse/web"
)

type fakeProvider struct {
	id          auth.Identity
	exchangeErr error
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "token-for-" + code}, nil
}

func (f *fakeProvider) Identity(context.Context, *oauth2.Token) (auth.Identity, error) {
	return f.id, nil
}

type failingStore struct{}

func (failingStore) InsertIfAbsent(context.Context, waitlist.Entry) (bool, error) {
	return false, errors.New("database unavailable")
}

func (failingStore) Get(context.Context, string) (waitlist.Entry, error) {
	return waitlist.Entry{}, errors.New("database unavailable")
}

type testEnv struct {
	baseURL  string
	client   *http.Client
	waitlist *waitlist.MemoryStore
	sessions *SessionStore
	srv      *Server
}

func newTestEnv(t *testing.T, configure ...func(*ServerConfig)) *testEnv {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	require.NoError(t, err)
	static, err := fs.Sub(webfs.StaticFS, "static")
	require.NoError(t, err)
	devices, err := NewDeviceTokens("test-secret")
	require.NoError(t, err)

	ts := httptest.NewUnstartedServer(http.NotFoundHandler())
	baseURL := "http://" + ts.Listener.Addr().String()

	wl := waitlist.NewMemoryStore()
	sessions := NewSessionStore()
	cfg := ServerConfig{
		BaseURL:     baseURL,
		Catalog:     cat,
		Closets:     closet.NewStore(storage.NewMemoryStorage(), closet.NewHub()),
		Waitlist:    waitlist.NewService(wl),
		Sessions:    sessions,
		Devices:     devices,
		TemplatesFS: templates,
		StaticFS:    static,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	ts.Config.Handler = srv.Handler()
	ts.Start()
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		baseURL: baseURL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		waitlist: wl,
		sessions: sessions,
		srv:      srv,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.baseURL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}

func TestWaitlistEndpoints(t *testing.T) {
	for _, prefix := range []string{"/api/waitlist", "/waitlist"} {
		t.Run(prefix, func(t *testing.T) {
			env := newTestEnv(t)

			resp, body := env.do(t, http.MethodPost, prefix, `{"email":"A@x.com","name":"Ann"}`)
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			assert.JSONEq(t, `{"success":true,"message":"Successfully added to waitlist"}`, string(body))

			resp, body = env.do(t, http.MethodPost, prefix, `{"email":"a@x.com","name":"Ann Again"}`)
			require.Equal(t, http.StatusConflict, resp.StatusCode)
			conflict := decode[map[string]any](t, body)
			assert.Equal(t, true, conflict["alreadyRegistered"])
			assert.Equal(t, msgWaitlistDuplicate, conflict["message"])
			assert.Equal(t, 1, env.waitlist.Len())

			resp, body = env.do(t, http.MethodGet, prefix+"?email=a@X.com", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			res := decode[waitlist.CheckResult](t, body)
			assert.True(t, res.Exists)
			require.NotNil(t, res.User)
			assert.Equal(t, "A@x.com", res.User.Email)
			assert.Equal(t, "Ann", res.User.Name)
			assert.False(t, res.User.Timestamp.IsZero())

			resp, body = env.do(t, http.MethodGet, prefix+"?email=nobody@x.com", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, `{"exists":false}`, string(body))
		})
	}
}

func TestWaitlistValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		wantMsg string
	}{
		{"missing name", http.MethodPost, "/api/waitlist", `{"email":"a@x.com"}`, msgWaitlistFieldsRequired},
		{"missing email", http.MethodPost, "/api/waitlist", `{"name":"Ann"}`, msgWaitlistFieldsRequired},
		{"blank fields", http.MethodPost, "/api/waitlist", `{"email":"  ","name":" "}`, msgWaitlistFieldsRequired},
		{"malformed body", http.MethodPost, "/api/waitlist", `{"email":`, msgInvalidBody},
		{"missing query", http.MethodGet, "/api/waitlist", "", msgWaitlistEmailRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, decode[errorResponse](t, body).Error)
		})
	}
	assert.Equal(t, 0, env.waitlist.Len())
}

func TestWaitlistStoreFailure(t *testing.T) {
	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.Waitlist = waitlist.NewService(failingStore{})
	})

	resp, body := env.do(t, http.MethodPost, "/api/waitlist", `{"email":"a@x.com","name":"Ann"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, msgInternalError, decode[errorResponse](t, body).Error)

	resp, _ = env.do(t, http.MethodGet, "/api/waitlist?email=a@x.com", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", "Discover"},
		{"/login", "Sign-in is not available"},
		{"/login?error=auth_failed", "Sign-in failed"},
		{"/already-registered", "on the Muse waitlist"},
		{"/coming-soon", "Join the waitlist"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
			assert.Contains(t, string(body), tt.want)
		})
	}

	resp, body := env.do(t, http.MethodGet, "/static/css/app.css", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), ".grid")
}

func TestHomeFollowsOnboardedAesthetic(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/profile/onboarding", `{"name":"Bo","aesthetic":["boho"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(body)
	assert.Contains(t, page, "Picked for your Boho style")
	assert.Contains(t, page, "Tiered Floral Maxi Dress")
	assert.NotContains(t, page, "Nylon Cargo Pants")
}

func withProvider(p IdentityProvider) func(*ServerConfig) {
	return func(cfg *ServerConfig) { cfg.Provider = p }
}

// startLogin follows /auth/login and returns the state sent to the provider.
func startLogin(t *testing.T, env *testEnv, query string) string {
	t.Helper()
	resp, _ := env.do(t, http.MethodGet, "/auth/login"+query, "")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "https://accounts.example.com/"), loc)
	_, state, ok := strings.Cut(loc, "state=")
	require.True(t, ok)
	return state
}

func TestSignInFlow(t *testing.T) {
	provider := &fakeProvider{id: auth.Identity{Subject: "g-1", Email: "b@x.com", Name: "Bo"}}
	env := newTestEnv(t, withProvider(provider))

	state := startLogin(t, env, "")
	resp, _ := env.do(t, http.MethodGet, CallbackPath+"?code=abc&state="+state, "")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, env.baseURL+auth.PathCheckStatus, resp.Header.Get("Location"))

	assert.Equal(t, 1, env.waitlist.Len())

	resp, _ = env.do(t, http.MethodGet, auth.PathCheckStatus, "")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, env.baseURL+"/already-registered", resp.Header.Get("Location"))

	resp, body := env.do(t, http.MethodGet, "/already-registered", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Welcome back, Bo")

	// A second sign-in finds the existing entry and does not register again.
	state = startLogin(t, env, "")
	resp, _ = env.do(t, http.MethodGet, CallbackPath+"?code=def&state="+state, "")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, 1, env.waitlist.Len())

	resp, _ = env.do(t, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = env.do(t, http.MethodGet, "/already-registered", "")
	assert.NotContains(t, string(body), "Welcome back, Bo")
}

func TestSignInCallbackTarget(t *testing.T) {
	provider := &fakeProvider{id: auth.Identity{Subject: "g-1", Email: "b@x.com", Name: "Bo"}}

	tests := []struct {
		name  string
		query string
		want  func(base string) string
	}{
		{"relative target", "?callbackUrl=/coming-soon", func(b string) string { return b + "/coming-soon" }},
		{"foreign target", "?callbackUrl=https://evil.example.com/", func(b string) string { return b + auth.PathCheckStatus }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, withProvider(provider))
			state := startLogin(t, env, tt.query)
			resp, _ := env.do(t, http.MethodGet, CallbackPath+"?code=abc&state="+state, "")
			require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
			assert.Equal(t, tt.want(env.baseURL), resp.Header.Get("Location"))
		})
	}
}

func TestSignInFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		state    func(real string) string
	}{
		{
			name:     "state mismatch",
			provider: &fakeProvider{id: auth.Identity{Email: "b@x.com", Name: "Bo"}},
			state:    func(string) string { return "forged" },
		},
		{
			name:     "exchange error",
			provider: &fakeProvider{exchangeErr: errors.New("bad code")},
			state:    func(s string) string { return s },
		},
		{
			name:     "identity without name",
			provider: &fakeProvider{id: auth.Identity{Email: "b@x.com"}},
			state:    func(s string) string { return s },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, withProvider(tt.provider))
			state := startLogin(t, env, "")

			resp, _ := env.do(t, http.MethodGet, CallbackPath+"?code=abc&state="+tt.state(state), "")
			require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
			assert.Equal(t, env.baseURL+auth.PathLogin+"?"+auth.LoginErrorQuery, resp.Header.Get("Location"))
			assert.Equal(t, 0, env.waitlist.Len())
			for _, c := range resp.Cookies() {
				assert.NotEqual(t, sessionCookieName, c.Name)
			}
		})
	}
}

func TestSignInSurvivesWaitlistFailure(t *testing.T) {
	provider := &fakeProvider{id: auth.Identity{Subject: "g-2", Email: "c@x.com", Name: "Cy"}}
	env := newTestEnv(t, withProvider(provider), func(cfg *ServerConfig) {
		cfg.Waitlist = waitlist.NewService(failingStore{})
	})

	state := startLogin(t, env, "")
	resp, _ := env.do(t, http.MethodGet, CallbackPath+"?code=abc&state="+state, "")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, env.baseURL+auth.PathCheckStatus, resp.Header.Get("Location"))

	var hasSession bool
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			hasSession = true
		}
	}
	assert.True(t, hasSession, "sign-in should create a session")
}

func TestLoginWithoutProvider(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/auth/login", "")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, auth.PathLogin+"?"+auth.LoginErrorQuery, resp.Header.Get("Location"))
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	h := requestLogger(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/brew"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestServerSweepsExpiredSessions(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionStore()
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	sess, err := sessions.Create(ctx, auth.Identity{Subject: "g-1", Email: "a@x.com", Name: "Ann"})
	require.NoError(t, err)

	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.Sessions = sessions
		cfg.SessionSweep = 5 * time.Millisecond
	})

	mu.Lock()
	now = now.Add(sessionTTL + time.Minute)
	mu.Unlock()

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		env.srv.sweepSessions(sweepCtx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		sessions.mu.RLock()
		defer sessions.mu.RUnlock()
		_, ok := sessions.sessions[sess.ID]
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
