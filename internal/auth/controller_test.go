package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/household"
	"github.com/kgcollins/parishport/internal/model"
	"github.com/kgcollins/parishport/internal/session"
	"github.com/kgcollins/parishport/internal/statedb"
)

type testFixture struct {
	ctrl     *Controller
	cache    *household.Cache
	sessions *session.Store
	apiHits  *atomic.Int64
}

func newTestFixture(t *testing.T, apiHandler http.Handler) *testFixture {
	t.Helper()

	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sessions := session.NewStore(db, "test-passphrase", nil)

	var hits atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		apiHandler.ServeHTTP(w, r)
	}))
	t.Cleanup(api.Close)

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": gateway.Config{
				APIURL: api.URL,
				Endpoints: gateway.Endpoints{
					Register:  "/api/household/register",
					Login:     "/api/household/login",
					Logout:    "/api/household/logout",
					Household: "/api/household",
					Members:   "/api/household/members",
					Member:    "/api/members",
				},
			},
		})
	}))
	t.Cleanup(proxy.Close)

	gw := gateway.NewClient(proxy.URL, "nonce", sessions, nil)
	cache := household.NewCache(gw, sessions, nil)
	ctrl := NewController(gw, sessions, cache, nil)
	gw.SetUnauthorizedHook(ctrl.ForceUnauthenticated)

	return &testFixture{ctrl: ctrl, cache: cache, sessions: sessions, apiHits: &hits}
}

// authHandler answers the register/login/household endpoints like the remote
// API would for a single household.
func authHandler(token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/household/register", "/api/household/login":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"token":     token,
					"household": map[string]any{"id": 7, "name": "Smith Family"},
				},
			})
		case "/api/household":
			w.Write([]byte(`{"id":7,"name":"Smith Family","members":[{"id":1,"first_name":"Ada","last_name":"Smith"}]}`))
		case "/api/household/logout":
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestRegisterMismatchedPasswordsSkipsNetwork(t *testing.T) {
	f := newTestFixture(t, authHandler("T1"))

	err := f.ctrl.Register(context.Background(), RegisterInput{
		HouseholdName:   "Smith Family",
		Email:           "a@b.com",
		Password:        "secret123",
		PasswordConfirm: "different",
		TermsAccepted:   true,
	})
	if !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := f.apiHits.Load(); got != 0 {
		t.Errorf("API hits = %d, want 0", got)
	}
	if f.ctrl.State() != Unauthenticated {
		t.Errorf("state = %v, want unauthenticated", f.ctrl.State())
	}
}

func TestRegisterRequiresTerms(t *testing.T) {
	f := newTestFixture(t, authHandler("T1"))

	err := f.ctrl.Register(context.Background(), RegisterInput{
		Password:        "secret123",
		PasswordConfirm: "secret123",
		TermsAccepted:   false,
	})
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "terms_accepted" {
		t.Fatalf("expected terms validation error, got %v", err)
	}
	if got := f.apiHits.Load(); got != 0 {
		t.Errorf("API hits = %d, want 0", got)
	}
}

func TestRegisterStartsSession(t *testing.T) {
	f := newTestFixture(t, authHandler("T1"))

	err := f.ctrl.Register(context.Background(), RegisterInput{
		HouseholdName:   "Smith Family",
		Email:           "a@b.com",
		Password:        "secret123",
		PasswordConfirm: "secret123",
		TermsAccepted:   true,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.ctrl.State() != Authenticated {
		t.Errorf("state = %v, want authenticated", f.ctrl.State())
	}
	if !f.sessions.HasValidToken() {
		t.Error("expected persisted session token")
	}
	h, ok := f.cache.Current()
	if !ok || h.Name != "Smith Family" {
		t.Errorf("cached household = %+v, %v", h, ok)
	}
	if got := f.cache.Members(); len(got) != 1 {
		t.Errorf("members = %+v, want reload to have run", got)
	}
}

func TestLoginFailureStaysUnauthenticated(t *testing.T) {
	f := newTestFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
	}))

	err := f.ctrl.Login(context.Background(), "a@b.com", "wrong")
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid credentials" {
		t.Fatalf("expected invalid-credentials APIError, got %v", err)
	}
	if f.ctrl.State() != Unauthenticated {
		t.Errorf("state = %v, want unauthenticated", f.ctrl.State())
	}
	if f.sessions.HasValidToken() {
		t.Error("expected no session token after failed login")
	}
}

func TestUnauthorizedResponseForcesLogout(t *testing.T) {
	authenticated := true
	f := newTestFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authenticated {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		authHandler("T1").ServeHTTP(w, r)
	}))

	if err := f.ctrl.Login(context.Background(), "a@b.com", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	hookFired := false
	f.ctrl.SetLogoutHook(func() { hookFired = true })

	authenticated = false
	if err := f.cache.Load(context.Background()); err == nil {
		t.Fatal("expected load to fail with 401")
	}
	if f.ctrl.State() != Unauthenticated {
		t.Errorf("state = %v, want unauthenticated after 401", f.ctrl.State())
	}
	if f.sessions.HasValidToken() {
		t.Error("expected token cleared after 401")
	}
	if _, ok := f.cache.Current(); ok {
		t.Error("expected cache cleared after 401")
	}
	if !hookFired {
		t.Error("expected logout hook to fire")
	}
}

func TestLogoutClearsStateEvenWhenRemoteFails(t *testing.T) {
	remoteFails := false
	f := newTestFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if remoteFails && r.URL.Path == "/api/household/logout" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		authHandler("T1").ServeHTTP(w, r)
	}))

	if err := f.ctrl.Login(context.Background(), "a@b.com", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	hookFired := false
	f.ctrl.SetLogoutHook(func() { hookFired = true })

	remoteFails = true
	f.ctrl.Logout(context.Background())
	if f.ctrl.State() != Unauthenticated {
		t.Errorf("state = %v, want unauthenticated", f.ctrl.State())
	}
	if f.sessions.HasValidToken() {
		t.Error("expected token cleared")
	}
	if _, ok := f.cache.Current(); ok {
		t.Error("expected cache cleared")
	}
	if !hookFired {
		t.Error("expected logout hook to fire")
	}
}

func TestCheckAuthenticationStatus(t *testing.T) {
	f := newTestFixture(t, authHandler("T1"))

	if err := f.ctrl.CheckAuthenticationStatus(context.Background()); err != nil {
		t.Fatalf("check status: %v", err)
	}
	if f.ctrl.State() != Unauthenticated {
		t.Errorf("state without token = %v, want unauthenticated", f.ctrl.State())
	}

	f.sessions.SetToken("T1")
	if err := f.ctrl.CheckAuthenticationStatus(context.Background()); err != nil {
		t.Fatalf("check status: %v", err)
	}
	if f.ctrl.State() != Authenticated {
		t.Errorf("state with token = %v, want authenticated", f.ctrl.State())
	}
	if h, ok := f.cache.Current(); !ok || h.Name != "Smith Family" {
		t.Errorf("cached household = %+v, %v", h, ok)
	}
}

func TestCompleteResetValidation(t *testing.T) {
	f := newTestFixture(t, authHandler("T1"))

	if _, err := f.ctrl.CompleteReset(context.Background(), "tok", "a@b.com", "secret123", "other"); !model.IsValidation(err) {
		t.Errorf("mismatch: err = %v, want validation error", err)
	}
	if _, err := f.ctrl.CompleteReset(context.Background(), "tok", "a@b.com", "short", "short"); !model.IsValidation(err) {
		t.Errorf("short password: err = %v, want validation error", err)
	}
	if got := f.apiHits.Load(); got != 0 {
		t.Errorf("API hits = %d, want 0", got)
	}
}

func TestStateString(t *testing.T) {
	if Unauthenticated.String() != "unauthenticated" || Authenticating.String() != "authenticating" || Authenticated.String() != "authenticated" {
		t.Error("unexpected state strings")
	}
}
