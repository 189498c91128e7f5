package household

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/model"
	"github.com/kgcollins/parishport/internal/session"
	"github.com/kgcollins/parishport/internal/statedb"
)

func newTestCache(t *testing.T, apiHandler http.Handler) (*Cache, *session.Store) {
	t.Helper()

	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sessions := session.NewStore(db, "test-passphrase", nil)

	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": gateway.Config{
				APIURL: api.URL,
				Endpoints: gateway.Endpoints{
					Household: "/api/household",
					Members:   "/api/household/members",
					Member:    "/api/members",
				},
			},
		})
	}))
	t.Cleanup(proxy.Close)

	gw := gateway.NewClient(proxy.URL, "nonce", sessions, nil)
	return NewCache(gw, sessions, nil), sessions
}

func TestLoadWithoutTokenIsNoop(t *testing.T) {
	apiCalled := false
	cache, _ := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalled = true
	}))

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if apiCalled {
		t.Error("expected no API call without a session token")
	}
	if _, ok := cache.Current(); ok {
		t.Error("expected empty cache")
	}
}

func TestLoadEmbeddedMembers(t *testing.T) {
	memberCalls := 0
	cache, sessions := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/household":
			w.Write([]byte(`{"id":7,"name":"Smith Family","members":[{"id":1,"first_name":"Ada","last_name":"Smith"}]}`))
		case "/api/household/members":
			memberCalls++
			w.Write([]byte(`[]`))
		}
	}))
	sessions.SetToken("T1")

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if memberCalls != 0 {
		t.Errorf("member endpoint called %d times, want 0 (roster was embedded)", memberCalls)
	}
	if got := cache.Members(); len(got) != 1 || got[0].FirstName != "Ada" {
		t.Errorf("members = %+v", got)
	}
}

func TestLoadSeparateMemberFetch(t *testing.T) {
	cache, sessions := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/household":
			w.Write([]byte(`{"id":7,"name":"Smith Family"}`))
		case "/api/household/members":
			w.Write([]byte(`[{"id":1,"first_name":"Ada","last_name":"Smith"},{"id":2,"first_name":"Ben","last_name":"Smith"}]`))
		}
	}))
	sessions.SetToken("T1")

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cache.Members(); len(got) != 2 {
		t.Errorf("members = %+v, want 2", got)
	}
}

func TestLoadMemberFetchFailureKeepsHousehold(t *testing.T) {
	cache, sessions := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/household":
			w.Write([]byte(`{"id":7,"name":"Smith Family"}`))
		case "/api/household/members":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	sessions.SetToken("T1")

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	h, ok := cache.Current()
	if !ok || h.Name != "Smith Family" {
		t.Fatalf("household = %+v, %v", h, ok)
	}
	if got := cache.Members(); len(got) != 0 {
		t.Errorf("members = %+v, want empty roster", got)
	}
}

func TestLoadFailureLeavesCacheUntouched(t *testing.T) {
	fail := false
	cache, sessions := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id":7,"name":"Smith Family","members":[]}`))
	}))
	sessions.SetToken("T1")

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	fail = true
	if err := cache.Load(context.Background()); err == nil {
		t.Fatal("expected load failure")
	}
	h, ok := cache.Current()
	if !ok || h.Name != "Smith Family" {
		t.Errorf("cache after failed load = %+v, %v; want previous record kept", h, ok)
	}
}

func TestUpdatePreservesMembers(t *testing.T) {
	cache, sessions := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/household":
			w.Write([]byte(`{"id":7,"name":"Smith Family","members":[{"id":1,"first_name":"Ada","last_name":"Smith"}]}`))
		case r.Method == http.MethodPut && r.URL.Path == "/api/household":
			var u gateway.HouseholdUpdate
			json.NewDecoder(r.Body).Decode(&u)
			json.NewEncoder(w).Encode(map[string]any{"id": 7, "name": u.Name, "city": u.City})
		}
	}))
	sessions.SetToken("T1")

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	updated, err := cache.Update(context.Background(), gateway.HouseholdUpdate{Name: "Smith-Jones Family", City: "Halifax"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Smith-Jones Family" {
		t.Errorf("name = %q", updated.Name)
	}
	if got := cache.Members(); len(got) != 1 || got[0].FirstName != "Ada" {
		t.Errorf("members after update = %+v, want preserved roster", got)
	}
}

func TestUpdateWithoutSession(t *testing.T) {
	cache, _ := newTestCache(t, http.NotFoundHandler())

	if _, err := cache.Update(context.Background(), gateway.HouseholdUpdate{Name: "X"}); err != model.ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestUpdateFailureLeavesCacheUntouched(t *testing.T) {
	cache, sessions := newTestCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"message": "Name is required"})
			return
		}
		w.Write([]byte(`{"id":7,"name":"Smith Family","members":[]}`))
	}))
	sessions.SetToken("T1")

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cache.Update(context.Background(), gateway.HouseholdUpdate{}); err == nil {
		t.Fatal("expected update failure")
	}
	h, _ := cache.Current()
	if h.Name != "Smith Family" {
		t.Errorf("name = %q, want unchanged", h.Name)
	}
}

func TestClearAndFindMember(t *testing.T) {
	cache, _ := newTestCache(t, http.NotFoundHandler())

	cache.Seed(model.Household{ID: 7, Name: "Smith Family", Members: []model.Member{
		{ID: 1, FirstName: "Ada", LastName: "Smith"},
	}})

	m, ok := cache.FindMember(1)
	if !ok || m.FirstName != "Ada" {
		t.Fatalf("find member = %+v, %v", m, ok)
	}
	// Returned member is a copy; mutations must not leak into the cache.
	m.FirstName = "Mutated"
	if got, _ := cache.FindMember(1); got.FirstName != "Ada" {
		t.Errorf("cache mutated through FindMember copy")
	}

	cache.Clear()
	if _, ok := cache.Current(); ok {
		t.Error("expected empty cache after clear")
	}
	if _, ok := cache.FindMember(1); ok {
		t.Error("expected no member after clear")
	}
}
