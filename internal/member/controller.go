// Package member implements CRUD over the household's member collection and
// the per-member certificate attachments. The household cache is the source
// of truth for who exists; every mutation is followed by a full list reload
// so the local roster is never more than one round trip stale.
package member

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/household"
	"github.com/kgcollins/parishport/internal/model"
	"github.com/kgcollins/parishport/internal/session"
)

type Controller struct {
	gw       *gateway.Client
	cache    *household.Cache
	sessions *session.Store
	logger   *slog.Logger

	mu        sync.Mutex
	editing   bool
	editingID int64
}

func NewController(gw *gateway.Client, cache *household.Cache, sessions *session.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{gw: gw, cache: cache, sessions: sessions, logger: logger}
}

func (c *Controller) requireSession() error {
	if !c.sessions.HasValidToken() {
		return model.ErrNoSession
	}
	return nil
}

// List fetches the remote members and replaces the cached list wholesale.
func (c *Controller) List(ctx context.Context) ([]model.Member, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	members, err := c.gw.Members(ctx)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []model.Member{}
	}
	c.cache.SetMembers(members)
	return members, nil
}

// cleanPayload clears each sacrament's date and parish when its occurred
// flag is off, so stale form values never reach the API.
func cleanPayload(p gateway.MemberPayload) gateway.MemberPayload {
	if !p.Baptised {
		p.BaptismDate, p.BaptismParish = "", ""
	}
	if !p.FirstCommunion {
		p.FirstCommunionDate, p.FirstCommunionParish = "", ""
	}
	if !p.Confirmed {
		p.ConfirmationDate, p.ConfirmationParish = "", ""
	}
	return p
}

// Create adds a member and reloads the roster.
func (c *Controller) Create(ctx context.Context, p gateway.MemberPayload) (*model.Member, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	m, err := c.gw.CreateMember(ctx, cleanPayload(p))
	if err != nil {
		return nil, err
	}
	if _, err := c.List(ctx); err != nil {
		c.logger.Warn("reload members after create", "error", err)
	}
	return m, nil
}

// Update edits an existing member and reloads the roster.
func (c *Controller) Update(ctx context.Context, id int64, p gateway.MemberPayload) (*model.Member, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	m, err := c.gw.UpdateMember(ctx, id, cleanPayload(p))
	if err != nil {
		return nil, err
	}
	if _, err := c.List(ctx); err != nil {
		c.logger.Warn("reload members after update", "error", err)
	}
	return m, nil
}

// Delete removes a member remotely (no local-only soft delete) and reloads
// the roster.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if err := c.gw.DeleteMember(ctx, id); err != nil {
		return err
	}
	if _, err := c.List(ctx); err != nil {
		c.logger.Warn("reload members after delete", "error", err)
	}
	return nil
}

// BeginEdit enters edit mode for the given member. The cached list is tried
// first; on a miss the household is reloaded once and the lookup retried
// before giving up.
func (c *Controller) BeginEdit(ctx context.Context, id int64) (*model.Member, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	m, ok := c.cache.FindMember(id)
	if !ok {
		if err := c.cache.Load(ctx); err != nil {
			return nil, err
		}
		if m, ok = c.cache.FindMember(id); !ok {
			return nil, fmt.Errorf("member %d not found", id)
		}
	}

	c.mu.Lock()
	c.editing = true
	c.editingID = id
	c.mu.Unlock()
	return m, nil
}

// CancelEdit leaves edit mode without saving.
func (c *Controller) CancelEdit() {
	c.ResetEditState()
}

// ResetEditState returns the form to add-mode. Called on cancel, after a
// successful save, and on logout.
func (c *Controller) ResetEditState() {
	c.mu.Lock()
	c.editing = false
	c.editingID = 0
	c.mu.Unlock()
}

// Editing reports whether the form is in edit-mode and for which member.
func (c *Controller) Editing() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID, c.editing
}
