// Package household holds the single authenticated household's record and
// member list in memory. The cache is the sole in-memory representation: the
// member controller borrows its list rather than keeping a divergent copy.
package household

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/model"
	"github.com/kgcollins/parishport/internal/session"
)

type Cache struct {
	gw       *gateway.Client
	sessions *session.Store
	logger   *slog.Logger

	mu      sync.RWMutex
	current *model.Household
}

func NewCache(gw *gateway.Client, sessions *session.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{gw: gw, sessions: sessions, logger: logger}
}

// Load fetches the household and stores it as the cached record. Without a
// valid token it is a no-op; session gating belongs to the auth controller.
// The household response may embed the member list; when it does not, the
// members are fetched separately. A failed load leaves the previous cache
// untouched (401 handling already ran inside the gateway).
func (c *Cache) Load(ctx context.Context) error {
	if !c.sessions.HasValidToken() {
		c.logger.Debug("load skipped, no session token")
		return nil
	}

	h, err := c.gw.Household(ctx)
	if err != nil {
		return err
	}

	if h.Members == nil {
		members, err := c.gw.Members(ctx)
		if err != nil {
			var apiErr *gateway.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				return err
			}
			// Keep the household; an empty roster renders as "no members".
			c.logger.Warn("load members", "error", err)
			members = []model.Member{}
		}
		h.Members = members
	}

	c.mu.Lock()
	c.current = h
	c.mu.Unlock()
	c.logger.Debug("household loaded", "household_id", h.ID, "members", len(h.Members))
	return nil
}

// Seed installs a household returned by login/registration without a remote
// fetch. A Load typically follows to pick up the member list.
func (c *Cache) Seed(h model.Household) {
	c.mu.Lock()
	c.current = &h
	c.mu.Unlock()
}

// Update sends a full-replacement household update. On success the returned
// record is merged into the cache with the existing member list preserved:
// the update endpoint does not return members and the cache must not drop
// them. Failure leaves the cache untouched.
func (c *Cache) Update(ctx context.Context, u gateway.HouseholdUpdate) (*model.Household, error) {
	if !c.sessions.HasValidToken() {
		return nil, model.ErrNoSession
	}

	updated, err := c.gw.UpdateHousehold(ctx, u)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.current != nil && updated.Members == nil {
		updated.Members = c.current.Members
	}
	c.current = updated
	c.mu.Unlock()

	out := *updated
	return &out, nil
}

// Clear drops the cached household and member list. Called only on logout;
// the remote record is untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Current returns the cached household record.
func (c *Cache) Current() (*model.Household, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, false
	}
	return c.current, true
}

// Members returns the cached member list.
func (c *Cache) Members() []model.Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	return c.current.Members
}

// SetMembers replaces the cached member list wholesale. This is the member
// controller's single write path into the cache; replacement (never merge)
// guarantees no orphaned local records.
func (c *Cache) SetMembers(members []model.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.Members = members
}

// FindMember looks up a member by id in the cached list.
func (c *Cache) FindMember(id int64) (*model.Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, false
	}
	for i := range c.current.Members {
		if c.current.Members[i].ID == id {
			m := c.current.Members[i]
			return &m, true
		}
	}
	return nil, false
}
