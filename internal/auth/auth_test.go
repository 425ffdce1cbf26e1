package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/muse/internal/waitlist"
)

type fakeWaitlist struct {
	exists      bool
	checkErr    error
	registerErr error

	checks    []string
	registers []string
}

func (f *fakeWaitlist) Check(_ context.Context, email string) (waitlist.CheckResult, error) {
	f.checks = append(f.checks, email)
	if f.checkErr != nil {
		return waitlist.CheckResult{}, f.checkErr
	}
	return waitlist.CheckResult{Exists: f.exists}, nil
}

func (f *fakeWaitlist) Register(_ context.Context, email, name string) (waitlist.Entry, error) {
	f.registers = append(f.registers, email+"|"+name)
	if f.registerErr != nil {
		return waitlist.Entry{}, f.registerErr
	}
	return waitlist.Entry{Email: email, Name: name}, nil
}

func TestSignIn_Allow(t *testing.T) {
	tests := []struct {
		name          string
		id            Identity
		wl            *fakeWaitlist
		want          bool
		wantChecks    int
		wantRegisters int
	}{
		{
			name: "missing email rejected",
			id:   Identity{Name: "Bo"},
			wl:   &fakeWaitlist{},
			want: false,
		},
		{
			name: "missing name rejected",
			id:   Identity{Email: "b@x.com", Name: " "},
			wl:   &fakeWaitlist{},
			want: false,
		},
		{
			name:          "new user registered",
			id:            Identity{Email: "b@x.com", Name: "Bo"},
			wl:            &fakeWaitlist{},
			want:          true,
			wantChecks:    1,
			wantRegisters: 1,
		},
		{
			name:       "existing user not registered again",
			id:         Identity{Email: "b@x.com", Name: "Bo"},
			wl:         &fakeWaitlist{exists: true},
			want:       true,
			wantChecks: 1,
		},
		{
			name:       "check failure still allows",
			id:         Identity{Email: "b@x.com", Name: "Bo"},
			wl:         &fakeWaitlist{checkErr: errors.New("timeout")},
			want:       true,
			wantChecks: 1,
		},
		{
			name:          "register failure still allows",
			id:            Identity{Email: "b@x.com", Name: "Bo"},
			wl:            &fakeWaitlist{registerErr: errors.New("500")},
			want:          true,
			wantChecks:    1,
			wantRegisters: 1,
		},
		{
			name:          "concurrent registration still allows",
			id:            Identity{Email: "b@x.com", Name: "Bo"},
			wl:            &fakeWaitlist{registerErr: waitlist.ErrAlreadyRegistered},
			want:          true,
			wantChecks:    1,
			wantRegisters: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSignIn(tt.wl, nil).Allow(context.Background(), tt.id)
			if got != tt.want {
				t.Errorf("Allow() = %v, want %v", got, tt.want)
			}
			if len(tt.wl.checks) != tt.wantChecks {
				t.Errorf("checks = %d, want %d", len(tt.wl.checks), tt.wantChecks)
			}
			if len(tt.wl.registers) != tt.wantRegisters {
				t.Errorf("registers = %d, want %d", len(tt.wl.registers), tt.wantRegisters)
			}
		})
	}
}

func TestSignIn_RegistersWithRealService(t *testing.T) {
	ctx := context.Background()
	svc := waitlist.NewService(waitlist.NewMemoryStore())

	if !NewSignIn(svc, nil).Allow(ctx, Identity{Email: "b@x.com", Name: "Bo"}) {
		t.Fatal("Allow() = false, want true")
	}
	res, err := svc.Check(ctx, "B@X.com")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Exists || res.User.Name != "Bo" {
		t.Errorf("Check() = %+v, want Bo registered", res)
	}
}

func TestRedirect(t *testing.T) {
	const base = "http://localhost:3000"

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"error target", base + "/api/auth/error?x=1", base + "/login?error=auth_failed"},
		{"error anywhere", "https://other.com/?error=denied", base + "/login?error=auth_failed"},
		{"same origin passes", base + "/closet", base + "/closet"},
		{"relative path resolved", "/feed?x=1", base + "/feed?x=1"},
		{"other origin", "https://evil.example/", base + "/auth/check-status"},
		{"host prefix trick", "http://localhost:3000.evil.example/", base + "/auth/check-status"},
		{"protocol relative", "//evil.example/x", base + "/auth/check-status"},
		{"empty", "", base + "/auth/check-status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redirect(tt.target, base+"/"); got != tt.want {
				t.Errorf("Redirect(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, _ := GenerateState()
	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
	if a == b {
		t.Error("states should differ")
	}
}

func TestNewGoogle_MissingCredentials(t *testing.T) {
	if _, err := NewGoogle("", "secret", "http://x/cb"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want ErrMissingCredentials", err)
	}
}

func TestGoogleAuthenticator_Flow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "g-1", "email": "b@x.com", "name": "Bo"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a, err := NewGoogle("client", "secret", "http://localhost:3000/auth/callback",
		WithEndpoint(oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"}),
		WithUserInfoURL(server.URL+"/userinfo"),
	)
	if err != nil {
		t.Fatalf("NewGoogle() error = %v", err)
	}

	authURL := a.AuthURL("state-1")
	if !strings.HasPrefix(authURL, server.URL+"/auth?") || !strings.Contains(authURL, "state=state-1") {
		t.Errorf("AuthURL() = %q", authURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := a.Exchange(ctx, "good-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	id, err := a.Identity(ctx, token)
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if id != (Identity{Subject: "g-1", Email: "b@x.com", Name: "Bo"}) {
		t.Errorf("Identity() = %+v", id)
	}

	if _, err := a.Exchange(ctx, "bad-code"); err == nil {
		t.Error("Exchange(bad-code) should fail")
	}
}
