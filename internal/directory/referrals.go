package directory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"refdash/internal/apperr"
	"refdash/internal/metrics"
	"refdash/internal/model"
)

// Resolver maps a user id to the user currently shown in the active listing.
type Resolver func(id string) (model.User, bool)

type referralState struct {
	gen     uint64
	entry   *model.ReferralPagination
	rows    []model.User
	loading bool
	err     error
}

// ReferralCache holds the loaded referral page of each user, keyed by user id.
// Loads for different users run independently; for one user the newest load wins.
type ReferralCache struct {
	lister  Lister
	limit   int
	resolve Resolver
	logger  *zap.Logger

	mu     sync.Mutex
	seq    uint64
	states map[string]*referralState
}

func NewReferralCache(lister Lister, limit int, resolve Resolver, logger *zap.Logger) *ReferralCache {
	if limit <= 0 {
		limit = 10
	}
	return &ReferralCache{
		lister:  lister,
		limit:   limit,
		resolve: resolve,
		logger:  logger,
		states:  make(map[string]*referralState),
	}
}

// Limit is the referral page size sent to the server.
func (c *ReferralCache) Limit() int { return c.limit }

// Load fetches referral page refPage for the user with id and replaces its rows.
// The loading flag is set for the duration of the fetch and always cleared by the
// load that owns it. A failed fetch keeps the rows and pagination entry as they were.
func (c *ReferralCache) Load(ctx context.Context, id string, refPage int) error {
	user, ok := c.resolve(id)
	if !ok {
		c.logger.Warn("referral load for unknown user", zap.String("id", id))
		return apperr.NotFoundError(nil, "user "+id+" is not in the current listing")
	}
	if refPage < 1 {
		refPage = 1
	}

	c.mu.Lock()
	st, ok := c.states[id]
	if !ok {
		st = &referralState{}
		c.states[id] = st
	}
	c.seq++
	gen := c.seq
	st.gen = gen
	st.loading = true
	c.mu.Unlock()

	page, err := c.lister.ListReferrals(ctx, user.WalletAddress, refPage, c.limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.states[id]
	if !ok || cur.gen != gen {
		// evicted, reset or superseded by a newer load
		metrics.IncReferralFetch("stale")
		return nil
	}
	cur.loading = false
	if err != nil {
		metrics.IncReferralFetch("error")
		cur.err = err
		c.logger.Warn("referral fetch failed", zap.String("id", id), zap.Int("page", refPage), zap.Error(err))
		return err
	}
	metrics.IncReferralFetch("ok")
	cur.err = nil
	cur.rows = page.Users
	cur.entry = &model.ReferralPagination{
		TotalReferred: page.TotalReferred,
		CurrentPage:   page.CurrentPage,
		TotalPages:    page.TotalPages,
	}
	return nil
}

// SetCurrentPage records page as the user's current referral page ahead of the fetch.
// It has no effect before the first successful load.
func (c *ReferralCache) SetCurrentPage(id string, page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[id]; ok && st.entry != nil {
		st.entry.CurrentPage = page
	}
}

// Evict drops everything held for id. Loads in flight for id are discarded.
func (c *ReferralCache) Evict(id string) {
	c.mu.Lock()
	delete(c.states, id)
	c.mu.Unlock()
}

// Reset drops every entry and discards all loads in flight.
func (c *ReferralCache) Reset() {
	c.mu.Lock()
	c.states = make(map[string]*referralState)
	c.mu.Unlock()
}

// Entry returns the pagination entry for id.
func (c *ReferralCache) Entry(id string) (model.ReferralPagination, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[id]
	if !ok || st.entry == nil {
		return model.ReferralPagination{}, false
	}
	return *st.entry, true
}

// Rows returns a copy of the loaded referral page for id, empty when none is loaded.
func (c *ReferralCache) Rows(id string) []model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[id]
	if !ok {
		return []model.User{}
	}
	return append([]model.User{}, st.rows...)
}

func (c *ReferralCache) Loading(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[id]
	return ok && st.loading
}

// Err returns the error of the last completed load for id.
func (c *ReferralCache) Err(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[id]; ok {
		return st.err
	}
	return nil
}

// Len is the number of users with cached state.
func (c *ReferralCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}
